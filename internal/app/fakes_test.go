package app_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hotelbook/internal/domain"
)

// ---- in-memory listing repo ----

type memRepo struct {
	mu     sync.Mutex
	items  []domain.Listing
	nextID int
	calls  atomic.Int32
	err    error
	// onUpdate runs at the start of every UpdateOne, outside the lock.
	onUpdate func()
}

func (r *memRepo) add(ls ...domain.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range ls {
		r.nextID++
		if l.ID == "" {
			l.ID = fmt.Sprintf("%06d", r.nextID)
		}
		r.items = append(r.items, l)
	}
}

func (r *memRepo) Find(ctx context.Context, f domain.Filter, key domain.SortKey, skip, limit int64) ([]domain.Listing, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	if skip < 0 {
		return nil, fmt.Errorf("negative skip %d", skip)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Listing
	for _, l := range r.items {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch key {
		case domain.SortRatingDesc:
			if a.StarRating != b.StarRating {
				return a.StarRating > b.StarRating
			}
		case domain.SortPriceAsc:
			if a.PricePerNight != b.PricePerNight {
				return a.PricePerNight < b.PricePerNight
			}
		case domain.SortPriceDesc:
			if a.PricePerNight != b.PricePerNight {
				return a.PricePerNight > b.PricePerNight
			}
		}
		return a.ID < b.ID
	})
	if skip >= int64(len(out)) {
		return []domain.Listing{}, nil
	}
	out = out[skip:]
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) Count(ctx context.Context, f domain.Filter) (int64, error) {
	r.calls.Add(1)
	if r.err != nil {
		return 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.items {
		if f.Matches(l) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) FindByID(ctx context.Context, id string) (domain.Listing, error) {
	return r.FindOne(ctx, domain.Filter{ID: id})
}

func (r *memRepo) FindOne(ctx context.Context, f domain.Filter) (domain.Listing, error) {
	r.calls.Add(1)
	if r.err != nil {
		return domain.Listing{}, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.items {
		if f.Matches(l) {
			return l, nil
		}
	}
	return domain.Listing{}, domain.ErrNotFound
}

func (r *memRepo) Insert(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	r.calls.Add(1)
	if r.err != nil {
		return domain.Listing{}, r.err
	}
	l.ID = ""
	r.add(l)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[len(r.items)-1], nil
}

func (r *memRepo) UpdateOne(ctx context.Context, f domain.Filter, u domain.ListingUpdate) (domain.Listing, error) {
	r.calls.Add(1)
	if r.err != nil {
		return domain.Listing{}, r.err
	}
	if r.onUpdate != nil {
		r.onUpdate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.items {
		if !f.Matches(l) {
			continue
		}
		if u.PrevImageURLs != nil && !slices.Equal(l.ImageURLs, u.PrevImageURLs) {
			return domain.Listing{}, domain.ErrNotFound
		}
		n := domain.NewListing(l.OwnerID, u.Draft, u.ImageURLs, u.LastUpdated)
		n.ID = l.ID
		r.items[i] = n
		return n, nil
	}
	return domain.Listing{}, domain.ErrNotFound
}

func (r *memRepo) setImages(id string, urls []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].ImageURLs = urls
		}
	}
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// ---- object store ----

type fakeStore struct {
	calls  atomic.Int32
	failOn string
	delay  time.Duration
	mu     sync.Mutex
	keys   []string
}

func (s *fakeStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.failOn != "" && strings.Contains(string(data), s.failOn) {
		return "", errors.New("store rejected payload")
	}
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return "https://img.test/" + string(data), nil
}

// ---- cache ----

type fakeCache struct {
	mu     sync.Mutex
	store  map[string]any
	dels   []string
	setErr error
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.Listing:
		*d = v.(domain.Listing)
	case *domain.SearchPage:
		*d = v.(domain.SearchPage)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.store, k)
		c.dels = append(c.dels, k)
	}
	return nil
}

// ---- events ----

type fakeEvents struct {
	mu       sync.Mutex
	subjects []string
}

func (e *fakeEvents) Publish(ctx context.Context, subject string, v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
	return nil
}

func ptr[T any](v T) *T { return &v }
