package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hotelbook/internal/domain"
)

type SearchService struct {
	repo     domain.ListingRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewSearchService builds the search executor. cache may be nil.
func NewSearchService(r domain.ListingRepository, c domain.Cache, ttl time.Duration) *SearchService {
	return &SearchService{repo: r, cache: c, cacheTTL: ttl}
}

// Search runs one page of a listing search. Page is 1-based; a page past the
// end yields no data but accurate totals.
func (s *SearchService) Search(ctx context.Context, c domain.SearchCriteria) (domain.SearchPage, error) {
	if c.Page < 1 {
		c.Page = 1
	}

	key := searchKey(c)
	if s.cache != nil && key != "" {
		var cached domain.SearchPage
		if ok, err := s.cache.Get(ctx, key, &cached); ok && err == nil {
			return cached, nil
		}
	}

	f := BuildFilter(c)
	// pages whose offset does not fit an int64 lie past any result set
	pastEnd := int64(c.Page-1) > math.MaxInt64/domain.PageSize
	skip := int64(c.Page-1) * domain.PageSize

	var (
		items []domain.Listing
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	if !pastEnd {
		g.Go(func() error {
			var err error
			items, err = s.repo.Find(gctx, f, c.Sort, skip, domain.PageSize)
			if err != nil {
				return fmt.Errorf("find listings: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, f)
		if err != nil {
			return fmt.Errorf("count listings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.SearchPage{}, err
	}

	if items == nil {
		items = []domain.Listing{}
	}
	page := domain.SearchPage{
		Data: items,
		Pagination: domain.Pagination{
			Total: total,
			Page:  c.Page,
			Pages: (total + domain.PageSize - 1) / domain.PageSize,
		},
	}

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, page, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache search page failed")
		}
	}
	return page, nil
}

// searchKey hashes the criteria so equivalent queries share a cache entry.
func searchKey(c domain.SearchCriteria) string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(b)
	return "search:" + hex.EncodeToString(sum[:])
}
