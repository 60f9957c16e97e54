package query_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/stretchr/testify/require"
)

func TestFilter_OperatorTokens(t *testing.T) {
	tests := []struct {
		name   string
		filter query.Filter
		want   string
	}{
		{"eq", query.Equal("status", "Pending"), "eq.Pending"},
		{"neq", query.NotEqual("status", "Cancelled"), "neq.Cancelled"},
		{"gt", query.GreaterThan("year", 2010), "gt.2010"},
		{"gte", query.AtLeast("amount", 10.5), "gte.10.5"},
		{"lt", query.LessThan("base_price", 99.99), "lt.99.99"},
		{"lte", query.AtMost("quantity", int64(3)), "lte.3"},
		{"ilike wraps in wildcards", query.Contains("name", "brake"), "ilike.*brake*"},
		{"in", query.OneOf("status", "Pending", "In Progress"), "in.(Pending,In Progress)"},
		{"bool", query.Equal("is_approved", true), "eq.true"},
		{"where in", query.Where("role", query.In, []string{"client", "admin"}), "in.(client,admin)"},
		{"where in ints", query.Where("year", query.In, []int{2019, 2020}), "in.(2019,2020)"},
		{"where in array", query.Where("quantity", query.In, [2]int64{1, 3}), "in.(1,3)"},
		{"where in single uuid", query.Where("id", query.In, uuid.MustParse("0b7f4f4e-3a4b-4c1e-9a51-5d2f8cf0a001")), "in.(0b7f4f4e-3a4b-4c1e-9a51-5d2f8cf0a001)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Value()
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.filter.Operator().Token(), got[:len(tt.filter.Operator().Token())])
		})
	}
}

func TestFilter_ValueRendering(t *testing.T) {
	id := uuid.MustParse("0b7f4f4e-3a4b-4c1e-9a51-5d2f8cf0a001")
	v, err := query.Equal("id", id).Value()
	require.NoError(t, err)
	require.Equal(t, "eq.0b7f4f4e-3a4b-4c1e-9a51-5d2f8cf0a001", v)

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	v, err = query.AtLeast("created_at", ts).Value()
	require.NoError(t, err)
	require.Equal(t, "gte.2025-01-02T02:04:05Z", v)

	v, err = query.OneOf("name", "Oil, filter", `say "hi"`).Value()
	require.NoError(t, err)
	require.Equal(t, `in.("Oil, filter","say \"hi\"")`, v)
}

func TestFilter_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		filter query.Filter
	}{
		{"empty in set", query.OneOf[uuid.UUID]("id")},
		{"empty column", query.Equal("", "x")},
		{"nil value", query.Equal("shop_id", nil)},
		{"zero filter", query.Filter{}},
		{"unknown operator", query.Where("x", query.Operator(42), 1)},
		{"empty typed in set", query.Where("year", query.In, []int{})},
		{"empty uuid in set", query.Where("id", query.In, []uuid.UUID{})},
		{"slice as scalar", query.Equal("year", []int{2019, 2020})},
		{"map value", query.Equal("meta", map[string]int{"a": 1})},
		{"struct value", query.Equal("x", struct{ A int }{1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.filter.Value()
			require.ErrorIs(t, err, errors.ErrInvalidQuery)

			_, err = query.New().Where(tt.filter).Values()
			require.ErrorIs(t, err, errors.ErrInvalidQuery)
		})
	}
}

func TestQuery_ParameterCount(t *testing.T) {
	t.Run("three triples with a range, order and window give five parameters", func(t *testing.T) {
		q := query.New().
			Where(
				query.Equal("status", "Pending"),
				query.AtLeast("amount", 10),
				query.AtMost("amount", 100),
			).
			OrderBy("created_at", query.Descending).
			Page(20, 40)

		values, err := q.Values()
		require.NoError(t, err)
		require.Len(t, values, 5)
		require.Equal(t, []string{"gte.10", "lte.100"}, values["amount"])
		require.Equal(t, "eq.Pending", values.Get("status"))
		require.Equal(t, "created_at.desc", values.Get("order"))
		require.Equal(t, "20", values.Get("limit"))
		require.Equal(t, "40", values.Get("offset"))
	})

	t.Run("distinct columns each get a parameter", func(t *testing.T) {
		values, err := query.New().
			Where(query.Equal("a", 1), query.Equal("b", 2), query.Equal("c", 3)).
			OrderBy("a", query.Ascending).
			Page(1, 0).
			Values()
		require.NoError(t, err)
		require.Len(t, values, 6)
		require.Equal(t, "a.asc", values.Get("order"))
	})
}

func TestQuery_OrGroup(t *testing.T) {
	values, err := query.New().
		Or(query.Contains("full_name", "ann"), query.Contains("email", "ann")).
		Values()
	require.NoError(t, err)
	require.Equal(t, "(full_name.ilike.*ann*,email.ilike.*ann*)", values.Get("or"))

	values, err = query.New().
		Or(query.Equal("status", "Pending"), query.OneOf("mechanic_id", "a", "b")).
		Values()
	require.NoError(t, err)
	require.Equal(t, "(status.eq.Pending,mechanic_id.in.(a,b))", values.Get("or"))

	_, err = query.New().Or().Values()
	require.ErrorIs(t, err, errors.ErrInvalidQuery)
}

func TestQuery_OrderingAndPaging(t *testing.T) {
	values, err := query.New().Values()
	require.NoError(t, err)
	require.Empty(t, values, "no ordering and no window by default")

	_, ok := query.New().Ordering()
	require.False(t, ok)

	_, err = query.New().Page(-1, 0).Values()
	require.ErrorIs(t, err, errors.ErrInvalidQuery)
	_, err = query.New().Page(10, -5).Values()
	require.ErrorIs(t, err, errors.ErrInvalidQuery)
	_, err = query.New().OrderBy(" ", query.Ascending).Values()
	require.ErrorIs(t, err, errors.ErrInvalidQuery)

	values, err = query.New().Limit(1).Select("id", "email").Values()
	require.NoError(t, err)
	require.Equal(t, "1", values.Get("limit"))
	require.Equal(t, "id,email", values.Get("select"))
	require.Empty(t, values.Get("offset"))
}

func TestQuery_Immutable(t *testing.T) {
	base := query.New().Where(query.Equal("status", "Pending"))
	narrowed := base.Where(query.Equal("shop_id", "s1")).OrderBy("created_at", query.Ascending).WithExactCount()

	require.Len(t, base.Filters(), 1)
	require.Len(t, narrowed.Filters(), 2)
	require.False(t, base.ExactCount())
	require.True(t, narrowed.ExactCount())
	_, ok := base.Ordering()
	require.False(t, ok)
}

func TestByIDs_SingleInFilter(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	values, err := query.ByIDs("id", ids).Values()
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Len(t, values["id"], 1)
	require.Equal(t, "in.("+ids[0].String()+","+ids[1].String()+","+ids[2].String()+")", values.Get("id"))

	_, err = query.ByIDs("id", []uuid.UUID{}).Values()
	require.ErrorIs(t, err, errors.ErrInvalidQuery)
}

func TestParseOperator(t *testing.T) {
	for _, op := range []query.Operator{query.Eq, query.Neq, query.Gt, query.Gte, query.Lt, query.Lte, query.Like, query.In} {
		parsed, ok := query.ParseOperator(op.Token())
		require.True(t, ok)
		require.Equal(t, op, parsed)
	}
	_, ok := query.ParseOperator("is")
	require.False(t, ok)
}
