package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hotelbook/internal/domain"
)

const (
	SubjectListingCreated = "hotels.created"
	SubjectListingUpdated = "hotels.updated"
)

type ListingService struct {
	repo     domain.ListingRepository
	uploader *ImageUploader
	cache    domain.Cache
	events   domain.EventPublisher
	cacheTTL time.Duration
	now      func() time.Time
}

// NewListingService wires the listing read/write paths. cache and events may be nil.
func NewListingService(r domain.ListingRepository, u *ImageUploader, c domain.Cache, ev domain.EventPublisher, ttl time.Duration) *ListingService {
	return &ListingService{repo: r, uploader: u, cache: c, events: ev, cacheTTL: ttl, now: time.Now}
}

type UpdateListingInput struct {
	Draft domain.ListingDraft
	// KeepImageURLs are the existing locators to retain, in order. URLs not
	// already on the listing are ignored. Nil keeps every existing image;
	// an empty non-nil slice keeps none.
	KeepImageURLs []string
	NewImages     []domain.Image
}

// ListingEvent is published after a successful write.
type ListingEvent struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"userId"`
	At      time.Time `json:"at"`
}

// Get is the public read of a single listing.
func (s *ListingService) Get(ctx context.Context, id string) (domain.Listing, error) {
	key := listingKey(id)
	if s.cache != nil {
		var l domain.Listing
		if ok, err := s.cache.Get(ctx, key, &l); ok && err == nil {
			return l, nil
		}
	}
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, l, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache listing failed")
		}
	}
	return l, nil
}

// Mine returns every listing owned by ownerID.
func (s *ListingService) Mine(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	ls, err := s.repo.Find(ctx, domain.Filter{OwnerID: ownerID}, domain.SortNone, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list owned listings: %w", err)
	}
	if ls == nil {
		ls = []domain.Listing{}
	}
	return ls, nil
}

// MineByID returns the listing only when ownerID owns it; otherwise
// ErrNotFound, the same as for a missing id.
func (s *ListingService) MineByID(ctx context.Context, ownerID, id string) (domain.Listing, error) {
	f, err := ownedBy(ownerID, id)
	if err != nil {
		return domain.Listing{}, err
	}
	return s.repo.FindOne(ctx, f)
}

// Create uploads the images and then persists the listing. Nothing is written
// to the document store unless every image upload succeeded.
func (s *ListingService) Create(ctx context.Context, ownerID string, d domain.ListingDraft, imgs []domain.Image) (domain.Listing, error) {
	if ownerID == "" {
		return domain.Listing{}, domain.ErrUnauthenticated
	}
	if err := d.Validate(); err != nil {
		return domain.Listing{}, err
	}
	if len(imgs) > domain.MaxImagesPerListing {
		return domain.Listing{}, (&domain.ValidationError{}).
			Add("imageFiles", fmt.Sprintf("at most %d images are allowed", domain.MaxImagesPerListing))
	}

	// uploads finish even if the client goes away
	ctx = context.WithoutCancel(ctx)

	urls, err := s.uploader.Upload(ctx, ownerID, imgs)
	if err != nil {
		return domain.Listing{}, err
	}
	l, err := s.repo.Insert(ctx, domain.NewListing(ownerID, d, urls, s.now().UTC()))
	if err != nil {
		return domain.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	log.Info().Str("id", l.ID).Str("owner", ownerID).Int("images", len(urls)).Msg("listing created")
	s.publish(ctx, SubjectListingCreated, l)
	return l, nil
}

// Update rewrites an owned listing. New images come first, followed by the
// kept existing ones. The write only lands if the stored images still match
// the ones the kept set was computed from; otherwise the kept set is
// recomputed from a fresh read, up to updateAttempts times.
func (s *ListingService) Update(ctx context.Context, ownerID, id string, in UpdateListingInput) (domain.Listing, error) {
	f, err := ownedBy(ownerID, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if err := in.Draft.Validate(); err != nil {
		return domain.Listing{}, err
	}
	cur, err := s.repo.FindOne(ctx, f)
	if err != nil {
		return domain.Listing{}, err
	}
	if err := checkImageTotal(cur.ImageURLs, in); err != nil {
		return domain.Listing{}, err
	}

	ctx = context.WithoutCancel(ctx)

	urls, err := s.uploader.Upload(ctx, ownerID, in.NewImages)
	if err != nil {
		return domain.Listing{}, err
	}

	var l domain.Listing
	for attempt := 1; ; attempt++ {
		l, err = s.repo.UpdateOne(ctx, f, domain.ListingUpdate{
			Draft:         in.Draft,
			ImageURLs:     append(append([]string{}, urls...), keepExisting(cur.ImageURLs, in.KeepImageURLs)...),
			PrevImageURLs: append([]string{}, cur.ImageURLs...),
			LastUpdated:   s.now().UTC(),
		})
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, fmt.Errorf("update listing %s: %w", id, err)
		}
		// a miss means the listing is gone or its images changed underneath us
		if cur, err = s.repo.FindOne(ctx, f); err != nil {
			return domain.Listing{}, err
		}
		if attempt == updateAttempts {
			return domain.Listing{}, fmt.Errorf("update listing %s: %w", id, domain.ErrConflict)
		}
		if err := checkImageTotal(cur.ImageURLs, in); err != nil {
			return domain.Listing{}, err
		}
		log.Debug().Str("id", id).Int("attempt", attempt).Msg("listing images changed concurrently, retrying update")
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, listingKey(id)); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("cache invalidation failed")
		}
	}
	log.Info().Str("id", id).Str("owner", ownerID).Int("new_images", len(urls)).Msg("listing updated")
	s.publish(ctx, SubjectListingUpdated, l)
	return l, nil
}

const updateAttempts = 3

func checkImageTotal(existing []string, in UpdateListingInput) error {
	if n := len(keepExisting(existing, in.KeepImageURLs)) + len(in.NewImages); n > domain.MaxImagesPerListing {
		return (&domain.ValidationError{}).
			Add("imageFiles", fmt.Sprintf("a listing holds at most %d images, got %d", domain.MaxImagesPerListing, n))
	}
	return nil
}

func (s *ListingService) publish(ctx context.Context, subject string, l domain.Listing) {
	if s.events == nil {
		return
	}
	ev := ListingEvent{ID: l.ID, OwnerID: l.OwnerID, At: l.LastUpdated}
	if err := s.events.Publish(ctx, subject, ev); err != nil {
		log.Warn().Err(err).Str("subject", subject).Str("id", l.ID).Msg("publish listing event failed")
	}
}

// ownedBy is the ownership gate: every owner-scoped lookup conjoins the id
// with the caller's identity.
func ownedBy(ownerID, id string) (domain.Filter, error) {
	if ownerID == "" {
		return domain.Filter{}, domain.ErrUnauthenticated
	}
	if id == "" {
		return domain.Filter{}, domain.ErrNotFound
	}
	return domain.Filter{ID: id, OwnerID: ownerID}, nil
}

func keepExisting(existing, keep []string) []string {
	if keep == nil {
		return append([]string{}, existing...)
	}
	have := make(map[string]struct{}, len(existing))
	for _, u := range existing {
		have[u] = struct{}{}
	}
	out := make([]string, 0, len(keep))
	for _, u := range keep {
		if _, ok := have[u]; ok {
			out = append(out, u)
		}
	}
	return out
}

func listingKey(id string) string { return "listing:" + id }
