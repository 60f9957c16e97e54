package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-garage-desk/internal/errors"
)

// Reserved parameter keys.
const (
	KeySelect     = "select"
	KeyOrder      = "order"
	KeyLimit      = "limit"
	KeyOffset     = "offset"
	KeyOr         = "or"
	KeyOnConflict = "on_conflict"
)

// Order is a single (column, direction) ordering.
type Order struct {
	Column    string
	Direction Direction
}

// Query is an immutable composition of filters, OR groups, an optional
// ordering, an optional window and an optional exact-count request. Every
// builder method returns a modified copy.
//
// Without an explicit ordering the backend returns rows in an unspecified
// order that may differ between identical calls; callers that need
// determinism must call OrderBy.
type Query struct {
	filters    []Filter
	orGroups   [][]Filter
	order      *Order
	limit      *int
	offset     *int
	columns    []string
	onConflict []string
	exactCount bool
}

// New returns an empty query: no filters, backend order, no window.
func New() Query {
	return Query{}
}

// Where adds filters combined with implicit AND.
func (q Query) Where(filters ...Filter) Query {
	q.filters = append(clone(q.filters), filters...)
	return q
}

// Or adds one parenthesised OR clause across the given filters, which may
// target different columns.
func (q Query) Or(filters ...Filter) Query {
	groups := make([][]Filter, len(q.orGroups), len(q.orGroups)+1)
	copy(groups, q.orGroups)
	q.orGroups = append(groups, clone(filters))
	return q
}

func (q Query) OrderBy(column string, direction Direction) Query {
	q.order = &Order{Column: column, Direction: direction}
	return q
}

// Page sets the (limit, offset) window.
func (q Query) Page(limit, offset int) Query {
	q.limit = &limit
	q.offset = &offset
	return q
}

func (q Query) Limit(limit int) Query {
	q.limit = &limit
	return q
}

func (q Query) Select(columns ...string) Query {
	q.columns = append([]string(nil), columns...)
	return q
}

// OnConflict names the natural-key columns an upsert merges on.
func (q Query) OnConflict(columns ...string) Query {
	q.onConflict = append([]string(nil), columns...)
	return q
}

// WithExactCount asks the backend to report the total number of matching rows.
func (q Query) WithExactCount() Query {
	q.exactCount = true
	return q
}

func (q Query) ExactCount() bool { return q.exactCount }

func (q Query) Filters() []Filter { return clone(q.filters) }

func (q Query) Ordering() (Order, bool) {
	if q.order == nil {
		return Order{}, false
	}
	return *q.order, true
}

// Values renders the query as wire parameters. It fails with InvalidQuery
// rather than emit a call the backend could read as "match everything".
func (q Query) Values() (url.Values, error) {
	values := url.Values{}

	for _, f := range q.filters {
		v, err := f.Value()
		if err != nil {
			return nil, err
		}
		values.Add(f.column, v)
	}

	for _, group := range q.orGroups {
		if len(group) == 0 {
			return nil, errors.InvalidQuery("empty OR group")
		}
		clauses := make([]string, len(group))
		for i, f := range group {
			c, err := f.clause()
			if err != nil {
				return nil, err
			}
			clauses[i] = c
		}
		values.Add(KeyOr, "("+strings.Join(clauses, ",")+")")
	}

	if len(q.columns) > 0 {
		values.Set(KeySelect, strings.Join(q.columns, ","))
	}

	if len(q.onConflict) > 0 {
		values.Set(KeyOnConflict, strings.Join(q.onConflict, ","))
	}

	if q.order != nil {
		if strings.TrimSpace(q.order.Column) == "" {
			return nil, errors.InvalidQuery("ordering column is empty")
		}
		values.Set(KeyOrder, q.order.Column+"."+q.order.Direction.Token())
	}

	if q.limit != nil {
		if *q.limit < 0 {
			return nil, errors.InvalidQuery("negative limit %d", *q.limit)
		}
		values.Set(KeyLimit, strconv.Itoa(*q.limit))
	}
	if q.offset != nil {
		if *q.offset < 0 {
			return nil, errors.InvalidQuery("negative offset %d", *q.offset)
		}
		values.Set(KeyOffset, strconv.Itoa(*q.offset))
	}

	return values, nil
}

// ByIDs is the single "value in set" filter used for bulk operations.
func ByIDs[V any](idColumn string, ids []V) Query {
	return New().Where(OneOf(idColumn, ids...))
}

func clone[T any](s []T) []T {
	return append([]T(nil), s...)
}
