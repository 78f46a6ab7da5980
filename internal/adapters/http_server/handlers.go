package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hotelbook/internal/adapters/auth"
	"hotelbook/internal/app"
)

type Handlers struct {
	Search   *app.SearchService
	Listings *app.ListingService
}

// MountHandlers registers the public listing routes and the owner routes
// guarded by requireAuth.
func (s *Server) MountHandlers(h *Handlers, requireAuth func(http.Handler) http.Handler) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/api/hotels", func(r chi.Router) {
		r.Get("/search", h.search)
		r.Get("/{id}", h.getListing)
	})

	s.mux.Route("/api/my-hotels", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", h.createMine)
		r.Get("/", h.listMine)
		r.Get("/{id}", h.getMine)
		r.Put("/{id}", h.updateMine)
	})
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	c, err := parseSearch(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.Search.Search(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWithETag(w, r, page)
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.Listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWithETag(w, r, l)
}

func (h *Handlers) createMine(w http.ResponseWriter, r *http.Request) {
	owner := auth.Identity(r.Context())
	req, err := parseListingForm(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.Listings.Create(r.Context(), owner, req.Draft, req.Images)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handlers) listMine(w http.ResponseWriter, r *http.Request) {
	ls, err := h.Listings.Mine(r.Context(), auth.Identity(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

func (h *Handlers) getMine(w http.ResponseWriter, r *http.Request) {
	l, err := h.Listings.MineByID(r.Context(), auth.Identity(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) updateMine(w http.ResponseWriter, r *http.Request) {
	owner := auth.Identity(r.Context())
	req, err := parseListingForm(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.Listings.Update(r.Context(), owner, chi.URLParam(r, "id"), app.UpdateListingInput{
		Draft:         req.Draft,
		KeepImageURLs: req.KeepImageURLs,
		NewImages:     req.Images,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}
