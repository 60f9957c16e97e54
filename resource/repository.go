// Package resource provides a typed CRUD and query surface over one named
// backend resource (table).
//
// Results are unordered unless ordered: without an explicit ordering the
// backend may return rows in a different order on every call.
package resource

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultIDColumn = "id"

// Transport is the subset of transport.Client a repository needs.
type Transport interface {
	Rest(ctx context.Context, req transport.Request) (*transport.Response, error)
	Count(ctx context.Context, resource string, q query.Query) (int, error)
}

var _ Transport = (*transport.Client)(nil)

type options struct {
	idColumn   string
	naturalKey []string
	logger     zerolog.Logger
}

type Option func(*options)

func WithIDColumn(column string) Option {
	return func(o *options) {
		o.idColumn = column
	}
}

// WithNaturalKey declares the columns Upsert merges on.
func WithNaturalKey(columns ...string) Option {
	return func(o *options) {
		o.naturalKey = append([]string(nil), columns...)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Repository is stateless beyond its resource name and shared transport; it
// reads the session fresh on every call through the transport.
type Repository[T any] struct {
	name       string
	idColumn   string
	naturalKey []string
	client     Transport
	logger     zerolog.Logger
}

// New creates a repository for the named resource.
func New[T any](client Transport, name string, opts ...Option) *Repository[T] {
	o := options{idColumn: defaultIDColumn, logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T]{
		name:       name,
		idColumn:   o.idColumn,
		naturalKey: o.naturalKey,
		client:     client,
		logger:     o.logger.With().Str("resource", name).Logger(),
	}
}

func (r *Repository[T]) Name() string { return r.name }

// Get returns the record with id, or nil when there is none.
func (r *Repository[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	return r.first(ctx, query.New().Where(query.Equal(r.idColumn, id)))
}

// List returns the records matching q. An empty slice is a valid result.
func (r *Repository[T]) List(ctx context.Context, q query.Query) ([]T, error) {
	resp, err := r.client.Rest(ctx, transport.Request{Method: http.MethodGet, Resource: r.name, Query: q})
	if err != nil {
		return nil, err
	}
	return transport.DecodeList[T](resp)
}

// All returns every record in backend order. Use deliberately: the result
// is unbounded.
func (r *Repository[T]) All(ctx context.Context) ([]T, error) {
	return r.List(ctx, query.New())
}

func (r *Repository[T]) AllOrdered(ctx context.Context, column string, direction query.Direction) ([]T, error) {
	return r.List(ctx, query.New().OrderBy(column, direction))
}

// Page returns one (limit, offset) window in backend order.
func (r *Repository[T]) Page(ctx context.Context, limit, offset int) ([]T, error) {
	return r.List(ctx, query.New().Page(limit, offset))
}

func (r *Repository[T]) FindBy(ctx context.Context, column string, value any) ([]T, error) {
	return r.List(ctx, query.New().Where(query.Equal(column, value)))
}

// FindOneBy returns one record whose column equals value, or nil.
func (r *Repository[T]) FindOneBy(ctx context.Context, column string, value any) (*T, error) {
	return r.first(ctx, query.New().Where(query.Equal(column, value)))
}

// FindOne returns one record matching all filters, or nil.
func (r *Repository[T]) FindOne(ctx context.Context, filters ...query.Filter) (*T, error) {
	return r.first(ctx, query.New().Where(filters...))
}

func (r *Repository[T]) Filter(ctx context.Context, filter query.Filter) ([]T, error) {
	return r.List(ctx, query.New().Where(filter))
}

func (r *Repository[T]) FilterAndOrder(ctx context.Context, filter query.Filter, column string, direction query.Direction) ([]T, error) {
	return r.List(ctx, query.New().Where(filter).OrderBy(column, direction))
}

// Range returns records with low <= column <= high.
func (r *Repository[T]) Range(ctx context.Context, column string, low, high any) ([]T, error) {
	return r.List(ctx, query.New().Where(query.AtLeast(column, low), query.AtMost(column, high)))
}

// Search returns records whose column contains term, ignoring case.
func (r *Repository[T]) Search(ctx context.Context, column, term string) ([]T, error) {
	return r.List(ctx, query.New().Where(query.Contains(column, term)))
}

// SearchMultiple returns records where any of columns contains term.
func (r *Repository[T]) SearchMultiple(ctx context.Context, term string, columns ...string) ([]T, error) {
	if len(columns) == 0 {
		return nil, errors.InvalidQuery("search on %s needs at least one column", r.name)
	}
	filters := make([]query.Filter, len(columns))
	for i, c := range columns {
		filters[i] = query.Contains(c, term)
	}
	return r.List(ctx, query.New().Or(filters...))
}

// Create inserts value and returns it with server-assigned fields.
func (r *Repository[T]) Create(ctx context.Context, value T) (T, error) {
	return r.mutateOne(ctx, transport.Request{Method: http.MethodPost, Resource: r.name, Body: value}, "create")
}

// CreateMany inserts values in one call. The backend applies it atomically.
func (r *Repository[T]) CreateMany(ctx context.Context, values []T) ([]T, error) {
	if len(values) == 0 {
		return []T{}, nil
	}
	resp, err := r.client.Rest(ctx, transport.Request{Method: http.MethodPost, Resource: r.name, Body: values})
	if err != nil {
		return nil, err
	}
	return transport.DecodeList[T](resp)
}

// Update replaces the record with id. A missing record is ErrNotFound.
func (r *Repository[T]) Update(ctx context.Context, id uuid.UUID, value T) (T, error) {
	return r.Patch(ctx, id, value)
}

// Patch sends only the given fields for the record with id. fields is any
// JSON-encodable value, typically a map or a struct with omitempty tags.
func (r *Repository[T]) Patch(ctx context.Context, id uuid.UUID, fields any) (T, error) {
	return r.mutateOne(ctx, transport.Request{
		Method:   http.MethodPatch,
		Resource: r.name,
		Query:    query.New().Where(query.Equal(r.idColumn, id)),
		Body:     fields,
	}, "update")
}

// UpdateWhere patches every record matching filters and returns them.
func (r *Repository[T]) UpdateWhere(ctx context.Context, fields any, filters ...query.Filter) ([]T, error) {
	if len(filters) == 0 {
		return nil, errors.InvalidQuery("update on %s without filters", r.name)
	}
	resp, err := r.client.Rest(ctx, transport.Request{
		Method:   http.MethodPatch,
		Resource: r.name,
		Query:    query.New().Where(filters...),
		Body:     fields,
	})
	if err != nil {
		return nil, err
	}
	return transport.DecodeList[T](resp)
}

// Upsert inserts value or merges it into the record sharing its natural key.
func (r *Repository[T]) Upsert(ctx context.Context, value T) (T, error) {
	if len(r.naturalKey) == 0 {
		var zero T
		return zero, errors.InvalidQuery("%s has no natural key to upsert on", r.name)
	}
	return r.mutateOne(ctx, transport.Request{
		Method:   http.MethodPost,
		Resource: r.name,
		Query:    query.New().OnConflict(r.naturalKey...),
		Body:     value,
		Upsert:   true,
	}, "upsert")
}

// Delete removes the record with id. Deleting a missing record succeeds.
func (r *Repository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, query.New().Where(query.Equal(r.idColumn, id)))
}

// DeleteAll removes every record of the resource.
func (r *Repository[T]) DeleteAll(ctx context.Context) error {
	return r.delete(ctx, query.New())
}

// DeleteMany removes the records with ids in a single call.
func (r *Repository[T]) DeleteMany(ctx context.Context, ids []uuid.UUID) error {
	return r.delete(ctx, query.ByIDs(r.idColumn, ids))
}

func (r *Repository[T]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	v, err := r.Get(ctx, id)
	return v != nil, err
}

func (r *Repository[T]) ExistsBy(ctx context.Context, column string, value any) (bool, error) {
	v, err := r.FindOneBy(ctx, column, value)
	return v != nil, err
}

// Count returns the exact number of records matching q. A backend that does
// not report the total yields 0.
func (r *Repository[T]) Count(ctx context.Context, q query.Query) (int, error) {
	return r.client.Count(ctx, r.name, q)
}

func (r *Repository[T]) first(ctx context.Context, q query.Query) (*T, error) {
	items, err := r.List(ctx, q.Limit(1))
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

func (r *Repository[T]) mutateOne(ctx context.Context, req transport.Request, op string) (T, error) {
	var zero T
	resp, err := r.client.Rest(ctx, req)
	if err != nil {
		return zero, err
	}
	items, err := transport.DecodeList[T](resp)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		if req.Method == http.MethodPatch {
			return zero, errors.Wrapf(errors.ErrNotFound, "[Repository.%s] %s", op, r.name)
		}
		return zero, &errors.RemoteRequestFailedError{Status: resp.Status, Body: "empty representation for " + op}
	}
	if len(items) > 1 {
		r.logger.Warn().Str("op", op).Int("affected", len(items)).Msg("mutation affected more than one record")
	}
	return items[0], nil
}

func (r *Repository[T]) delete(ctx context.Context, q query.Query) error {
	resp, err := r.client.Rest(ctx, transport.Request{Method: http.MethodDelete, Resource: r.name, Query: q})
	if err != nil {
		return err
	}
	r.logger.Debug().Int("status", resp.Status).Msg("delete confirmed")
	return nil
}
