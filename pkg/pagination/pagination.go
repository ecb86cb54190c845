// Package pagination carries the page metadata attached to list responses.
package pagination

// DefaultLimit is the page size used when the caller does not send one.
const DefaultLimit = 10

// Page describes one page of a paginated result set.
//
// A Limit of 0 means "everything on a single page": Total == len(items),
// TotalPages == 1 and both HasPrev and HasNext are false.
type Page struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasPrev    bool  `json:"hasPrev"`
	HasNext    bool  `json:"hasNext"`
}

// NewPage computes the page metadata for page/limit over total items.
func NewPage(page, limit int, total int64) Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		// single page holding everything
		return Page{Page: 1, Limit: 0, Total: total, TotalPages: 1}
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	if pages < 1 {
		pages = 1
	}

	return Page{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasPrev:    page > 1,
		HasNext:    page < pages,
	}
}

// Offset returns the number of items to skip for this page.
func (p Page) Offset() int {
	if p.Limit <= 0 || p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}
