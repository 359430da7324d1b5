package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/stackmesh/commerce-api/internal/store"
)

// ListOptions is the raw listing input as it arrives from the transport
// layer, before normalization.
type ListOptions struct {
	Page     int
	Size     int
	SortBy   string
	SortDesc bool
	Search   string
	Filters  store.Filters
	DateFrom *time.Time
	DateTo   *time.Time
}

// ListingPolicy controls how list queries are normalized across all
// entity services.
type ListingPolicy struct {
	// MaxPageSize caps the page size; larger requests are clamped, not
	// rejected.
	MaxPageSize int

	// StrictFilters rejects unknown filter keys with a validation error.
	// When false, unknown keys are silently dropped.
	StrictFilters bool
}

// buildListQuery normalizes raw listing input into a store.ListQuery:
// pagination is clamped into bounds, the sort column is checked against
// the entity's allow-list, unknown filters are dropped or rejected per
// policy, and date_from/date_to are rewritten into a created_at range.
func buildListQuery(opts ListOptions, policy ListingPolicy, sortFields, filterFields, searchFields []string) (store.ListQuery, error) {
	q := store.ListQuery{
		Search:       strings.TrimSpace(opts.Search),
		SearchFields: searchFields,
		SortDesc:     opts.SortDesc,
		Page:         store.PageRequest{Page: opts.Page, Size: opts.Size}.Normalize(policy.MaxPageSize),
	}

	// A search against an entity with no searchable columns would silently
	// return the unfiltered listing; reject it instead.
	if q.Search != "" && len(searchFields) == 0 {
		return store.ListQuery{}, NewFieldError("search", "search is not supported for this listing")
	}

	// Sort columns are always validated strictly. A typo'd sort silently
	// falling back to the default would hide bugs in callers.
	if opts.SortBy != "" {
		if !containsString(sortFields, opts.SortBy) {
			return store.ListQuery{}, NewFieldError("sort_by",
				fmt.Sprintf("unknown sort field %q, allowed: %s", opts.SortBy, strings.Join(sortFields, ", ")))
		}
		q.SortBy = opts.SortBy
	}

	filters := opts.Filters.Clone()

	if opts.DateFrom != nil || opts.DateTo != nil {
		if opts.DateFrom != nil && opts.DateTo != nil && opts.DateTo.Before(*opts.DateFrom) {
			return store.ListQuery{}, NewFieldError("date_to", "date_to must not be before date_from")
		}
		filters["created_at"] = store.TimeRange(opts.DateFrom, opts.DateTo)
	}

	unknown := make([]string, 0)
	for key := range filters {
		if !containsString(filterFields, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		if policy.StrictFilters {
			fields := make(map[string]string, len(unknown))
			for _, key := range unknown {
				fields[key] = fmt.Sprintf("unknown filter field, allowed: %s", strings.Join(filterFields, ", "))
			}
			return store.ListQuery{}, NewValidationError(fields)
		}
		for _, key := range unknown {
			delete(filters, key)
		}
	}

	q.Filters = filters
	return q, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
