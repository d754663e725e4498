package issues

import (
	"net/url"

	"github.com/google/go-querystring/query"
)

// Sort directions accepted by the list endpoint.
const (
	SortNewest = -1
	SortOldest = 1
)

// Query is the filter/sort/pagination state driving the list fetch. Exactly
// one list fetch is derived from it at a time; any change makes a logically
// new query (see Store.SetQuery).
type Query struct {
	Page     int    `url:"page"`
	Limit    int    `url:"limit"`
	Search   string `url:"search,omitempty"`
	Category string `url:"category,omitempty"`
	Status   string `url:"status,omitempty"`
	Sort     int    `url:"sort"`
}

// DefaultQuery is the initial query: first page, ten per page, newest first,
// no filters.
func DefaultQuery() Query {
	return Query{Page: 1, Limit: 10, Sort: SortNewest}
}

// sameFilters reports whether the non-pagination fields match.
func (q Query) sameFilters(o Query) bool {
	return q.Search == o.Search &&
		q.Category == o.Category &&
		q.Status == o.Status &&
		q.Sort == o.Sort
}

// values encodes the query for the wire, omitting empty filter fields.
func (q Query) values() (url.Values, error) {
	return query.Values(q)
}

// QueryUpdate is a partial Query; nil fields are left unchanged by SetQuery.
type QueryUpdate struct {
	Page     *int
	Limit    *int
	Search   *string
	Category *string
	Status   *string
	Sort     *int
}

// Int and Str build pointer fields for QueryUpdate literals.
func Int(v int) *int       { return &v }
func Str(v string) *string { return &v }
