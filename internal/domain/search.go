package domain

// PageSize is the fixed search page size.
const PageSize = 5

type SortKey string

const (
	SortNone       SortKey = ""
	SortRatingDesc SortKey = "starRating"
	SortPriceAsc   SortKey = "pricePerNightAsc"
	SortPriceDesc  SortKey = "pricePerNightDesc"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortNone, SortRatingDesc, SortPriceAsc, SortPriceDesc:
		return true
	}
	return false
}

// SearchCriteria is the typed form of the public search query. Nil or empty
// fields mean "no constraint".
type SearchCriteria struct {
	Destination string   `json:"destination,omitempty"`
	AdultCount  *int     `json:"adultCount,omitempty"`
	ChildCount  *int     `json:"childCount,omitempty"`
	Facilities  []string `json:"facilities,omitempty"`
	Types       []string `json:"types,omitempty"`
	Stars       []int    `json:"stars,omitempty"`
	MaxPrice    *float64 `json:"maxPrice,omitempty"`
	Sort        SortKey  `json:"sortOption,omitempty"`
	Page        int      `json:"page"`
}

type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int64 `json:"pages"`
}

type SearchPage struct {
	Data       []Listing  `json:"data"`
	Pagination Pagination `json:"pagination"`
}
