package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/service"
	"github.com/stackmesh/commerce-api/internal/store"
)

// validate is the shared validator instance used for request structs.
var validate = validator.New()

// validateRequest runs struct validation and converts failures into a
// service validation error with one entry per offending field.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return service.NewFieldError("body", err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = validationMessage(fe)
	}
	return service.NewValidationError(fields)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation rule %q", fe.Tag())
	}
}

// parseUUIDParam extracts and parses a UUID path parameter.
func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, service.NewFieldError(name, "must be a valid UUID")
	}
	return id, nil
}

// listParamKeys are query keys with dedicated meaning; everything else
// in the query string becomes an equality filter.
var listParamKeys = map[string]bool{
	"page":      true,
	"size":      true,
	"sort_by":   true,
	"order":     true,
	"search":    true,
	"date_from": true,
	"date_to":   true,
	"price_min": true,
	"price_max": true,
}

// parseListOptions extracts pagination, sorting, search, date bounds and
// the remaining query parameters (as filters) from the request.
func parseListOptions(r *http.Request) (service.ListOptions, error) {
	q := r.URL.Query()
	opts := service.ListOptions{
		Search:  q.Get("search"),
		Filters: store.Filters{},
	}

	// A search parameter that is present but blank is a malformed request,
	// not a request for everything.
	if q.Has("search") && strings.TrimSpace(opts.Search) == "" {
		return opts, service.NewFieldError("search", "must not be empty")
	}

	var err error
	if opts.Page, err = parseIntParam(q.Get("page"), "page"); err != nil {
		return opts, err
	}
	if opts.Size, err = parseIntParam(q.Get("size"), "size"); err != nil {
		return opts, err
	}

	opts.SortBy = q.Get("sort_by")
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		opts.SortDesc = true
	default:
		return opts, service.NewFieldError("order", `must be "asc" or "desc"`)
	}

	if opts.DateFrom, err = parseTimeParam(q.Get("date_from"), "date_from"); err != nil {
		return opts, err
	}
	if opts.DateTo, err = parseTimeParam(q.Get("date_to"), "date_to"); err != nil {
		return opts, err
	}

	for key, values := range q {
		if listParamKeys[key] || len(values) == 0 {
			continue
		}
		if len(values) > 1 {
			parsed := make([]any, len(values))
			for i, v := range values {
				parsed[i] = parseFilterValue(v)
			}
			opts.Filters[key] = parsed
		} else {
			opts.Filters[key] = parseFilterValue(values[0])
		}
	}

	return opts, nil
}

// parseFilterValue converts boolean-looking filter values so is_active=true
// matches a boolean column.
func parseFilterValue(v string) any {
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	default:
		return v
	}
}

func parseIntParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, service.NewFieldError(name, "must be an integer")
	}
	return n, nil
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Accept bare dates as midnight UTC.
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, service.NewFieldError(name, "must be RFC 3339 or YYYY-MM-DD")
		}
	}
	return &t, nil
}

func parseFloatParam(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, service.NewFieldError(name, "must be a number")
	}
	return &f, nil
}

// pageMeta builds the response metadata from a page result.
func pageMeta[T any](result store.PageResult[T]) shared.Meta {
	return shared.Meta{
		Page:  result.Page,
		Size:  result.Size,
		Total: result.Total,
		Pages: result.Pages,
	}
}
