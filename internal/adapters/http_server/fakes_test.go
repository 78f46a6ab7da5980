package httpserver_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"hotelbook/internal/domain"
)

type memRepo struct {
	mu     sync.Mutex
	items  []domain.Listing
	nextID int
	calls  atomic.Int32
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

func (r *memRepo) matching(f domain.Filter) []domain.Listing {
	var out []domain.Listing
	for _, l := range r.items {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRepo) Find(ctx context.Context, f domain.Filter, _ domain.SortKey, skip, limit int64) ([]domain.Listing, error) {
	r.calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.matching(f)
	if skip >= int64(len(ls)) {
		return []domain.Listing{}, nil
	}
	ls = ls[skip:]
	if limit > 0 && int64(len(ls)) > limit {
		ls = ls[:limit]
	}
	return ls, nil
}

func (r *memRepo) Count(ctx context.Context, f domain.Filter) (int64, error) {
	r.calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(f))), nil
}

func (r *memRepo) FindByID(ctx context.Context, id string) (domain.Listing, error) {
	return r.FindOne(ctx, domain.Filter{ID: id})
}

func (r *memRepo) FindOne(ctx context.Context, f domain.Filter) (domain.Listing, error) {
	r.calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if ls := r.matching(f); len(ls) > 0 {
		return ls[0], nil
	}
	return domain.Listing{}, domain.ErrNotFound
}

func (r *memRepo) Insert(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	r.calls.Add(1)
	r.add(l)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[len(r.items)-1], nil
}

func (r *memRepo) UpdateOne(ctx context.Context, f domain.Filter, u domain.ListingUpdate) (domain.Listing, error) {
	r.calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.items {
		if f.Matches(l) {
			n := domain.NewListing(l.OwnerID, u.Draft, u.ImageURLs, u.LastUpdated)
			n.ID = l.ID
			r.items[i] = n
			return n, nil
		}
	}
	return domain.Listing{}, domain.ErrNotFound
}

type fakeStore struct {
	calls atomic.Int32
	fail  bool
}

func (s *fakeStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.calls.Add(1)
	if s.fail {
		return "", errors.New("bucket unavailable")
	}
	return "https://img.test/" + key, nil
}
