package domain

import (
	"context"
	"time"
)

type ListingRepository interface {
	// Find returns matching listings ordered by sort; limit <= 0 means no limit.
	Find(ctx context.Context, f Filter, sort SortKey, skip, limit int64) ([]Listing, error)
	Count(ctx context.Context, f Filter) (int64, error)
	FindByID(ctx context.Context, id string) (Listing, error)
	FindOne(ctx context.Context, f Filter) (Listing, error)
	Insert(ctx context.Context, l Listing) (Listing, error)
	// UpdateOne applies u to the single listing matching f and returns it
	// post-update, or ErrNotFound.
	UpdateOne(ctx context.Context, f Filter, u ListingUpdate) (Listing, error)
}

type ObjectStore interface {
	// Upload stores data under key and returns its public locator.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

type TokenVerifier interface {
	// Verify returns the identity encoded in a signed credential.
	Verify(token string) (string, error)
}

type ImageSource interface {
	// Fetch downloads one remote image for a bulk import.
	Fetch(ctx context.Context, url string) (Image, error)
}
