package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotelbook/internal/domain"
)

// SeedListing is one record of a bulk import file.
type SeedListing struct {
	OwnerID       string   `json:"userId"`
	Name          string   `json:"name"`
	City          string   `json:"city"`
	Country       string   `json:"country"`
	Description   string   `json:"description"`
	Type          string   `json:"type"`
	AdultCount    int      `json:"adultCount"`
	ChildCount    int      `json:"childCount"`
	Facilities    []string `json:"facilities"`
	PricePerNight float64  `json:"pricePerNight"`
	StarRating    int      `json:"starRating"`
	ImageURLs     []string `json:"imageUrls"`
}

func (s SeedListing) draft() domain.ListingDraft {
	return domain.ListingDraft{
		Name:          strings.TrimSpace(s.Name),
		City:          strings.TrimSpace(s.City),
		Country:       strings.TrimSpace(s.Country),
		Description:   strings.TrimSpace(s.Description),
		Type:          strings.TrimSpace(s.Type),
		AdultCount:    s.AdultCount,
		ChildCount:    s.ChildCount,
		Facilities:    s.Facilities,
		PricePerNight: s.PricePerNight,
		StarRating:    s.StarRating,
	}
}

// validate checks the import-only fields, then the shared listing rules.
func (s SeedListing) validate() error {
	ve := &domain.ValidationError{}
	if strings.TrimSpace(s.OwnerID) == "" {
		ve.Add("userId", "is required")
	}
	if len(s.ImageURLs) > domain.MaxImagesPerListing {
		ve.Add("imageUrls", fmt.Sprintf("at most %d images are allowed", domain.MaxImagesPerListing))
	}
	if err := ve.Merge(s.draft().Validate()); err != nil {
		return err
	}
	return ve.Err()
}

type ImportReport struct {
	Created int64
	Failed  int64
}

// ImportService loads seed listings through the regular create path so the
// same upload and persistence rules apply.
type ImportService struct {
	listings *ListingService
	images   domain.ImageSource
	workers  int64
}

func NewImportService(l *ListingService, src domain.ImageSource, workers int) *ImportService {
	if workers <= 0 {
		workers = 4
	}
	return &ImportService{listings: l, images: src, workers: int64(workers)}
}

func (s *ImportService) ImportOne(ctx context.Context, seed SeedListing) (domain.Listing, error) {
	if err := seed.validate(); err != nil {
		return domain.Listing{}, err
	}
	imgs := make([]domain.Image, 0, len(seed.ImageURLs))
	for i, u := range seed.ImageURLs {
		img, err := s.images.Fetch(ctx, u)
		if err != nil {
			return domain.Listing{}, fmt.Errorf("fetch image %d: %w", i, err)
		}
		imgs = append(imgs, img)
	}
	return s.listings.Create(ctx, seed.OwnerID, seed.draft(), imgs)
}

// Import runs ImportOne for every seed with at most workers in flight. A
// failed seed is logged and counted; it never stops the batch.
func (s *ImportService) Import(ctx context.Context, seeds []SeedListing) ImportReport {
	sem := semaphore.NewWeighted(s.workers)
	var (
		wg              sync.WaitGroup
		created, failed atomic.Int64
	)
	for i, seed := range seeds {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			failed.Add(int64(len(seeds) - i))
			log.Warn().Err(err).Int("remaining", len(seeds)-i).Msg("import interrupted")
			break
		}
		wg.Add(1)
		go func(i int, seed SeedListing) {
			defer wg.Done()
			defer sem.Release(1)

			l, err := s.ImportOne(ctx, seed)
			if err != nil {
				failed.Add(1)
				log.Warn().Int("index", i).Str("name", seed.Name).Err(err).Msg("import failed")
				return
			}
			created.Add(1)
			log.Info().Int("index", i).Str("id", l.ID).Msg("import ok")
		}(i, seed)
	}
	wg.Wait()
	return ImportReport{Created: created.Load(), Failed: failed.Load()}
}
