package store

import "time"

// Filters is a caller-supplied set of field constraints, ANDed together.
// A scalar value means equality; a slice value means membership (IN).
// Which keys are legal for an entity is decided by that entity's column
// allow-list in the postgres layer, not by runtime attribute probing.
type Filters map[string]any

// Clone returns a shallow copy so callers can rewrite filters (e.g. the
// date-range translation in the service layer) without mutating the input.
func (f Filters) Clone() Filters {
	if f == nil {
		return Filters{}
	}
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Range constrains a column to a half-open interval. Either bound may be
// nil, meaning unbounded on that side. Bounds are inclusive.
type Range struct {
	From any
	To   any
}

// TimeRange builds a Range over time bounds; nil pointers leave the
// corresponding side unbounded.
func TimeRange(from, to *time.Time) Range {
	r := Range{}
	if from != nil {
		r.From = *from
	}
	if to != nil {
		r.To = *to
	}
	return r
}

// ListQuery bundles everything a List operation accepts: conjunctive
// filters, an optional substring search ORed across SearchFields, one
// optional sort column, and offset pagination.
type ListQuery struct {
	Filters      Filters
	Search       string
	SearchFields []string
	SortBy       string
	SortDesc     bool
	Page         PageRequest
}
