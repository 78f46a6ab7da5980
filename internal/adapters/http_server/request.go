package httpserver

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"hotelbook/internal/domain"
)

const (
	imageField      = "imageFiles"
	multipartMemory = 32 << 20
	// maxFormBytes leaves room for the text fields next to a full image batch.
	maxFormBytes = domain.MaxImagesPerListing*domain.MaxImageBytes + 1<<20
)

var (
	queryDecoder   = form.NewDecoder()
	queryValidator = newQueryValidator()
)

func newQueryValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ---- search query ----

type searchQuery struct {
	Destination string   `form:"destination"`
	AdultCount  *int     `form:"adultCount" validate:"omitempty,gte=0"`
	ChildCount  *int     `form:"childCount" validate:"omitempty,gte=0"`
	Facilities  []string `form:"facilities"`
	Types       []string `form:"types"`
	Stars       []int    `form:"stars" validate:"dive,gte=1,lte=5"`
	MaxPrice    *float64 `form:"maxPrice" validate:"omitempty,gte=0"`
	SortOption  string   `form:"sortOption"`
	Page        *int     `form:"page" validate:"omitempty,gte=1"`
}

var searchMessages = map[string]string{
	"adultCount": "must be a non-negative integer",
	"childCount": "must be a non-negative integer",
	"stars":      "must be integers between 1 and 5",
	"maxPrice":   "must be a non-negative number",
	"page":       "must be a positive integer",
}

var searchMultiKeys = []string{"facilities", "types", "stars"}

// normalizeSearch trims the query and folds "key[]" and "key[N]" forms of
// the multi-valued keys into repeated plain keys. Empty values are dropped.
func normalizeSearch(q url.Values) url.Values {
	out := url.Values{}
	for _, k := range searchMultiKeys {
		if vs, _ := formValues(q, k); len(vs) > 0 {
			out[k] = vs
		}
	}
	for _, k := range []string{"destination", "adultCount", "childCount", "maxPrice", "sortOption", "page"} {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			out.Set(k, v)
		}
	}
	return out
}

func parseSearch(q url.Values) (domain.SearchCriteria, error) {
	ve := &domain.ValidationError{}
	addField := func(ns string) {
		field, _, _ := strings.Cut(ns, "[")
		if !ve.Has(field) {
			msg, ok := searchMessages[field]
			if !ok {
				msg = "is invalid"
			}
			ve.Add(field, msg)
		}
	}

	var sq searchQuery
	if err := queryDecoder.Decode(&sq, normalizeSearch(q)); err != nil {
		var derrs form.DecodeErrors
		if !errors.As(err, &derrs) {
			return domain.SearchCriteria{}, fmt.Errorf("decode search query: %w", err)
		}
		keys := make([]string, 0, len(derrs))
		for k := range derrs {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			addField(k)
		}
	}
	if sq.MaxPrice != nil && (math.IsNaN(*sq.MaxPrice) || math.IsInf(*sq.MaxPrice, 0)) {
		addField("maxPrice")
	}
	if err := queryValidator.Struct(sq); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.SearchCriteria{}, fmt.Errorf("validate search query: %w", err)
		}
		for _, fe := range verrs {
			addField(fe.Field())
		}
	}

	c := domain.SearchCriteria{
		Destination: sq.Destination,
		Facilities:  sq.Facilities,
		Types:       sq.Types,
		Sort:        domain.SortKey(sq.SortOption),
		Page:        1,
	}
	if !ve.Has("adultCount") {
		c.AdultCount = sq.AdultCount
	}
	if !ve.Has("childCount") {
		c.ChildCount = sq.ChildCount
	}
	if !ve.Has("stars") {
		c.Stars = sq.Stars
	}
	if !ve.Has("maxPrice") {
		c.MaxPrice = sq.MaxPrice
	}
	if sq.Page != nil && !ve.Has("page") {
		c.Page = *sq.Page
	}
	if !c.Sort.Valid() {
		ve.Add("sortOption", fmt.Sprintf("must be one of %s, %s, %s",
			domain.SortRatingDesc, domain.SortPriceAsc, domain.SortPriceDesc))
	}
	return c, ve.Err()
}

// formValues collects a multi-valued field sent as repeated keys, "key[]"
// keys or indexed "key[N]" keys. Empty and repeated values are dropped. The
// bool reports whether the field was sent at all.
func formValues(vs url.Values, key string) ([]string, bool) {
	plain, ok1 := vs[key]
	brackets, ok2 := vs[key+"[]"]
	present := ok1 || ok2

	type indexed struct {
		i int
		v []string
	}
	var idx []indexed
	prefix := key + "["
	for k, v := range vs {
		if !strings.HasPrefix(k, prefix) || !strings.HasSuffix(k, "]") {
			continue
		}
		n, err := strconv.Atoi(k[len(prefix) : len(k)-1])
		if err != nil || n < 0 {
			continue
		}
		idx = append(idx, indexed{n, v})
		present = true
	}
	slices.SortFunc(idx, func(a, b indexed) int { return a.i - b.i })

	all := append(append([]string{}, plain...), brackets...)
	for _, e := range idx {
		all = append(all, e.v...)
	}
	for i := range all {
		all[i] = strings.TrimSpace(all[i])
	}
	return domain.UniqueStrings(all), present
}

// ---- listing form ----

type listingRequest struct {
	Draft domain.ListingDraft
	// KeepImageURLs is nil when the client did not send imageUrls.
	KeepImageURLs []string
	Images        []domain.Image
}

// parseListingForm reads a multipart (or urlencoded) listing write. Field
// validation runs before any image payload is read.
func parseListingForm(w http.ResponseWriter, r *http.Request) (listingRequest, error) {
	if r.ContentLength > maxFormBytes {
		return listingRequest{}, fmt.Errorf("%w: request body is %d bytes", domain.ErrPayloadTooLarge, r.ContentLength)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return listingRequest{}, fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrPayloadTooLarge, mbe.Limit)
		}
		return listingRequest{}, (&domain.ValidationError{}).Add("body", "malformed form body").Err()
	}
	vs := r.PostForm

	ve := &domain.ValidationError{}
	d := domain.ListingDraft{
		Name:        strings.TrimSpace(vs.Get("name")),
		City:        strings.TrimSpace(vs.Get("city")),
		Country:     strings.TrimSpace(vs.Get("country")),
		Description: strings.TrimSpace(vs.Get("description")),
		Type:        strings.TrimSpace(vs.Get("type")),
	}
	d.Facilities, _ = formValues(vs, "facilities")
	d.AdultCount = formInt(vs, "adultCount", ve)
	d.ChildCount = formInt(vs, "childCount", ve)
	d.StarRating = formInt(vs, "starRating", ve)
	d.PricePerNight = formFloat(vs, "pricePerNight", ve)

	if err := ve.Merge(d.Validate()); err != nil {
		return listingRequest{}, fmt.Errorf("validate listing: %w", err)
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File[imageField]
	}
	if len(files) > domain.MaxImagesPerListing {
		ve.Add(imageField, fmt.Sprintf("at most %d images are allowed", domain.MaxImagesPerListing))
	}
	if err := ve.Err(); err != nil {
		return listingRequest{}, err
	}

	req := listingRequest{Draft: d}
	if keep, ok := formValues(vs, "imageUrls"); ok {
		req.KeepImageURLs = keep
	}
	for i, fh := range files {
		img, err := readImage(i, fh)
		if err != nil {
			return listingRequest{}, err
		}
		req.Images = append(req.Images, img)
	}
	return req, nil
}

func readImage(i int, fh *multipart.FileHeader) (domain.Image, error) {
	if fh.Size > domain.MaxImageBytes {
		return domain.Image{}, fmt.Errorf("%w: %s is %d bytes", domain.ErrPayloadTooLarge, fh.Filename, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return domain.Image{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, domain.MaxImageBytes+1))
	if err != nil {
		return domain.Image{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	if len(data) > domain.MaxImageBytes {
		return domain.Image{}, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrPayloadTooLarge, fh.Filename, domain.MaxImageBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return domain.Image{}, (&domain.ValidationError{}).
			Add(fmt.Sprintf("%s[%d]", imageField, i), "must be an image").Err()
	}
	return domain.Image{Name: fh.Filename, ContentType: mt.String(), Data: data}, nil
}

func formInt(vs url.Values, key string, ve *domain.ValidationError) int {
	s := strings.TrimSpace(vs.Get(key))
	if s == "" {
		ve.Add(key, "is required")
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		ve.Add(key, "must be an integer")
		return 0
	}
	return n
}

func formFloat(vs url.Values, key string, ve *domain.ValidationError) float64 {
	s := strings.TrimSpace(vs.Get(key))
	if s == "" {
		ve.Add(key, "is required")
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		ve.Add(key, "must be a number")
		return 0
	}
	return f
}
