package domain

import "time"

const (
	// MaxImagesPerListing bounds both a create batch and the stored locator list.
	MaxImagesPerListing = 6
	// MaxImageBytes is the per-image payload ceiling (5 MiB).
	MaxImageBytes = 5 << 20
)

type Listing struct {
	ID            string    `json:"_id"`
	OwnerID       string    `json:"userId"`
	Name          string    `json:"name"`
	City          string    `json:"city"`
	Country       string    `json:"country"`
	Description   string    `json:"description"`
	Type          string    `json:"type"`
	AdultCount    int       `json:"adultCount"`
	ChildCount    int       `json:"childCount"`
	Facilities    []string  `json:"facilities"`
	PricePerNight float64   `json:"pricePerNight"`
	StarRating    int       `json:"starRating"`
	ImageURLs     []string  `json:"imageUrls"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// ListingDraft is the validated, client-editable part of a listing. It never
// carries identity or ownership.
type ListingDraft struct {
	Name          string   `json:"name" validate:"required"`
	City          string   `json:"city" validate:"required"`
	Country       string   `json:"country" validate:"required"`
	Description   string   `json:"description" validate:"required"`
	Type          string   `json:"type" validate:"required"`
	AdultCount    int      `json:"adultCount" validate:"gte=1"`
	ChildCount    int      `json:"childCount" validate:"gte=0"`
	Facilities    []string `json:"facilities" validate:"min=1,dive,required"`
	PricePerNight float64  `json:"pricePerNight" validate:"gte=0"`
	StarRating    int      `json:"starRating" validate:"gte=1,lte=5"`
}

// Image is one raw payload of an upload batch.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// ListingUpdate is what an owner update writes: the new draft fields plus the
// final image order. When PrevImageURLs is non-nil the update only applies
// if the stored images still equal it; a mismatch reads as ErrNotFound.
type ListingUpdate struct {
	Draft         ListingDraft
	ImageURLs     []string
	PrevImageURLs []string
	LastUpdated   time.Time
}

// NewListing stamps a draft with its owner. The owner comes from the
// authenticated caller only.
func NewListing(ownerID string, d ListingDraft, images []string, now time.Time) Listing {
	return Listing{
		OwnerID:       ownerID,
		Name:          d.Name,
		City:          d.City,
		Country:       d.Country,
		Description:   d.Description,
		Type:          d.Type,
		AdultCount:    d.AdultCount,
		ChildCount:    d.ChildCount,
		Facilities:    UniqueStrings(d.Facilities),
		PricePerNight: d.PricePerNight,
		StarRating:    d.StarRating,
		ImageURLs:     images,
		LastUpdated:   now,
	}
}

// UniqueStrings drops empty and repeated values, keeping first-seen order.
func UniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
