package postgres

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/stackmesh/commerce-api/internal/store"
)

// queryBuilder assembles the WHERE / ORDER BY / LIMIT clauses shared by all
// listing queries: conjunctive equality and membership filters, an optional
// substring search ORed across columns, one sort column from an allow-list,
// and offset pagination.
//
// Filter keys are checked against a column allow-list here as a final
// guard; keys outside the list are dropped. The strict-versus-lenient
// decision about unknown keys belongs to the service layer, which validates
// against the same list before the query is ever built.
type queryBuilder struct {
	conds []string
	args  []any
}

// applyFilters adds one conjunctive condition per filter key, in sorted key
// order so the generated SQL is deterministic. Scalar values become
// equality checks, slices become IN lists, and store.Range values become
// inclusive bound checks.
func (b *queryBuilder) applyFilters(filters store.Filters, allowed []string) {
	keys := make([]string, 0, len(filters))
	for key := range filters {
		if containsField(allowed, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filters[key]

		if r, ok := value.(store.Range); ok {
			if r.From != nil {
				b.conds = append(b.conds, fmt.Sprintf("%s >= %s", key, b.bind(r.From)))
			}
			if r.To != nil {
				b.conds = append(b.conds, fmt.Sprintf("%s <= %s", key, b.bind(r.To)))
			}
			continue
		}

		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice {
			if rv.Len() == 0 {
				// An empty membership list matches nothing.
				b.conds = append(b.conds, "FALSE")
				continue
			}
			placeholders := make([]string, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				placeholders[i] = b.bind(rv.Index(i).Interface())
			}
			b.conds = append(b.conds, fmt.Sprintf("%s IN (%s)", key, strings.Join(placeholders, ", ")))
			continue
		}

		b.conds = append(b.conds, fmt.Sprintf("%s = %s", key, b.bind(value)))
	}
}

// applySearch adds a case-insensitive substring match ORed across the given
// columns. No ranking, no tokenization; the query is bound once and reused
// for every column.
func (b *queryBuilder) applySearch(query string, fields []string) {
	if query == "" || len(fields) == 0 {
		return
	}
	placeholder := b.bind("%" + escapeLike(query) + "%")
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprintf("%s ILIKE %s", field, placeholder)
	}
	b.conds = append(b.conds, "("+strings.Join(parts, " OR ")+")")
}

// whereClause renders the accumulated conditions, or an empty string when
// there are none.
func (b *queryBuilder) whereClause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// orderClause renders the ORDER BY clause. The sort column must already be
// validated against the entity's allow-list; unknown columns fall back to
// the default to keep the query safe even if a caller skipped validation.
func orderClause(sortBy string, desc bool, allowed []string, defaultSort string) string {
	column := defaultSort
	if sortBy != "" && containsField(allowed, sortBy) {
		column = sortBy
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, direction)
}

// limitOffset renders the pagination clause with bound parameters.
func (b *queryBuilder) limitOffset(page store.PageRequest) string {
	return fmt.Sprintf(" LIMIT %s OFFSET %s", b.bind(page.Size), b.bind(page.Offset()))
}

// bind appends an argument and returns its placeholder.
func (b *queryBuilder) bind(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

// escapeLike escapes the LIKE metacharacters in a raw search string so user
// input cannot widen the match.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func containsField(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}
