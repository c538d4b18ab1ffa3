package store

// Pagination defaults and bounds, shared by both backends.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Page describes the slice of results a caller wants. A zero value asks
// for the first page at the default size with the backend's default
// ordering (creation time descending).
type Page struct {
	Page     int
	PageSize int
	// SortBy is an entity field name (JSON name, e.g. "startDate").
	// Adapters map it through a whitelist; unknown fields fall back to
	// the default ordering.
	SortBy string
	Order  SortOrder
}

// Normalize floors the page to >= 1 and clamps the page size into
// [1, MaxPageSize], applying defaults for unset values.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.Order != SortAsc && p.Order != SortDesc {
		p.Order = SortDesc
	}
	return p
}

// Offset returns the number of records to skip for this page.
// Call Normalize first.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Pagination is the response-scoped metadata derived from a page request
// and a total count. JSON field names match the public wire format.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// NewPagination derives pagination metadata for a normalized page request
// and the total number of matching items.
func NewPagination(p Page, totalItems int) Pagination {
	totalPages := (totalItems + p.PageSize - 1) / p.PageSize
	return Pagination{
		CurrentPage: p.Page,
		PageSize:    p.PageSize,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     p.Page < totalPages,
		HasPrev:     p.Page > 1,
	}
}
