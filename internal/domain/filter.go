package domain

import "strings"

// Filter is a conjunction of optional clauses over the listing collection.
// Zero-valued clauses are absent and never restrict the result. Storage
// adapters translate it into their native query form; Matches evaluates it
// in memory with the same semantics.
type Filter struct {
	ID      string
	OwnerID string

	// Destination matches city OR country, case-insensitive substring.
	Destination string
	MinAdults   *int
	MinChildren *int
	// Facilities must all be present on the listing.
	Facilities []string
	// Types and Stars match when the listing value is any of the given ones.
	Types    []string
	Stars    []int
	MaxPrice *float64
}

func (f Filter) IsEmpty() bool {
	return f.ID == "" && f.OwnerID == "" && f.Destination == "" &&
		f.MinAdults == nil && f.MinChildren == nil && len(f.Facilities) == 0 &&
		len(f.Types) == 0 && len(f.Stars) == 0 && f.MaxPrice == nil
}

func (f Filter) Matches(l Listing) bool {
	if f.ID != "" && l.ID != f.ID {
		return false
	}
	if f.OwnerID != "" && l.OwnerID != f.OwnerID {
		return false
	}
	if f.Destination != "" {
		d := strings.ToLower(f.Destination)
		if !strings.Contains(strings.ToLower(l.City), d) && !strings.Contains(strings.ToLower(l.Country), d) {
			return false
		}
	}
	if f.MinAdults != nil && l.AdultCount < *f.MinAdults {
		return false
	}
	if f.MinChildren != nil && l.ChildCount < *f.MinChildren {
		return false
	}
	if len(f.Facilities) > 0 {
		have := make(map[string]struct{}, len(l.Facilities))
		for _, fc := range l.Facilities {
			have[fc] = struct{}{}
		}
		for _, want := range f.Facilities {
			if _, ok := have[want]; !ok {
				return false
			}
		}
	}
	if len(f.Types) > 0 && !containsString(f.Types, l.Type) {
		return false
	}
	if len(f.Stars) > 0 && !containsInt(f.Stars, l.StarRating) {
		return false
	}
	if f.MaxPrice != nil && l.PricePerNight > *f.MaxPrice {
		return false
	}
	return true
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
