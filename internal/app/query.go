package app

import (
	"strings"

	"hotelbook/internal/domain"
)

// BuildFilter maps search criteria onto a listing filter. It is pure: absent
// criteria leave the corresponding clause unset.
func BuildFilter(c domain.SearchCriteria) domain.Filter {
	f := domain.Filter{
		Destination: strings.TrimSpace(c.Destination),
		MinAdults:   c.AdultCount,
		MinChildren: c.ChildCount,
		MaxPrice:    c.MaxPrice,
	}
	if fs := domain.UniqueStrings(c.Facilities); len(fs) > 0 {
		f.Facilities = fs
	}
	if ts := domain.UniqueStrings(c.Types); len(ts) > 0 {
		f.Types = ts
	}
	if len(c.Stars) > 0 {
		f.Stars = uniqueInts(c.Stars)
	}
	return f
}

func uniqueInts(in []int) []int {
	out := make([]int, 0, len(in))
	seen := make(map[int]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
