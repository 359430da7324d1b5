package store

// PageRequest describes offset-based pagination input.
// Page and Size are 1-based; Offset is derived as (page-1)*size.
type PageRequest struct {
	Page int
	Size int
}

// DefaultPageSize is applied when a page request carries no size.
const DefaultPageSize = 20

// Normalize clamps the request into valid bounds: page >= 1 and
// size in [1, maxSize]. A zero or negative size becomes DefaultPageSize
// (capped at maxSize).
func (p PageRequest) Normalize(maxSize int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

// Offset returns the number of rows to skip for this page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

// PageResult holds one page of items plus the pagination metadata derived
// from the total row count.
type PageResult[T any] struct {
	Items []T
	Total int
	Page  int
	Size  int
	Pages int
}

// NewPageResult builds a PageResult for the given request.
// Pages is ceil(total/size) and is at least 1 even when total is 0, so a
// client can always render "page 1 of 1" for an empty listing.
func NewPageResult[T any](items []T, total int, req PageRequest) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 1
	if req.Size > 0 && total > req.Size {
		pages = (total + req.Size - 1) / req.Size
	}
	return PageResult[T]{
		Items: items,
		Total: total,
		Page:  req.Page,
		Size:  req.Size,
		Pages: pages,
	}
}
