package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
)

const wildcard = "*"

// Filter is one (column, operator, value) triple. Filters are built with
// the operator constructors below; the zero Filter is invalid.
type Filter struct {
	column string
	op     Operator
	values []any
}

func Equal(column string, value any) Filter       { return Filter{column: column, op: Eq, values: []any{value}} }
func NotEqual(column string, value any) Filter    { return Filter{column: column, op: Neq, values: []any{value}} }
func GreaterThan(column string, value any) Filter { return Filter{column: column, op: Gt, values: []any{value}} }
func AtLeast(column string, value any) Filter     { return Filter{column: column, op: Gte, values: []any{value}} }
func LessThan(column string, value any) Filter    { return Filter{column: column, op: Lt, values: []any{value}} }
func AtMost(column string, value any) Filter      { return Filter{column: column, op: Lte, values: []any{value}} }

// Contains matches rows whose column contains term, ignoring case.
func Contains(column, term string) Filter {
	return Filter{column: column, op: Like, values: []any{term}}
}

// OneOf matches rows whose column equals any of values.
func OneOf[V any](column string, values ...V) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{column: column, op: In, values: vs}
}

// Where builds a filter from an explicit operator. For In, value may be a
// slice or array of any element type; any other operator takes a single
// value.
func Where(column string, op Operator, value any) Filter {
	if op == In {
		if vs, ok := value.([]any); ok {
			return Filter{column: column, op: In, values: vs}
		}
		if vs, ok := elements(value); ok {
			return Filter{column: column, op: In, values: vs}
		}
	}
	return Filter{column: column, op: op, values: []any{value}}
}

// elements unpacks a slice or array. Byte slices and uuid.UUID (a [16]byte)
// are single values, not sets.
func elements(value any) ([]any, bool) {
	switch value.(type) {
	case nil, []byte, uuid.UUID:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	vs := make([]any, rv.Len())
	for i := range vs {
		vs[i] = rv.Index(i).Interface()
	}
	return vs, true
}

func (f Filter) Column() string     { return f.column }
func (f Filter) Operator() Operator { return f.op }

// Value renders the operator-prefixed wire value, e.g. "gte.10".
func (f Filter) Value() (string, error) {
	operand, err := f.operand(false)
	if err != nil {
		return "", err
	}
	return f.op.Token() + "." + operand, nil
}

// clause renders the filter as "column.op.value" for use inside an OR group.
func (f Filter) clause() (string, error) {
	operand, err := f.operand(true)
	if err != nil {
		return "", err
	}
	return f.column + "." + f.op.Token() + "." + operand, nil
}

func (f Filter) operand(nested bool) (string, error) {
	if strings.TrimSpace(f.column) == "" {
		return "", errors.InvalidQuery("filter column is empty")
	}
	if !f.op.Valid() {
		return "", errors.InvalidQuery("unknown operator %s on %q", f.op, f.column)
	}

	switch f.op {
	case In:
		if len(f.values) == 0 {
			return "", errors.InvalidQuery("empty value set for %q", f.column)
		}
		rendered := make([]string, len(f.values))
		for i, v := range f.values {
			s, err := render(v)
			if err != nil {
				return "", errors.InvalidQuery("%q: %v", f.column, err)
			}
			rendered[i] = quote(s)
		}
		return "(" + strings.Join(rendered, ",") + ")", nil
	case Like:
		s, err := render(f.single())
		if err != nil {
			return "", errors.InvalidQuery("%q: %v", f.column, err)
		}
		s = wildcard + s + wildcard
		if nested {
			return quote(s), nil
		}
		return s, nil
	default:
		if len(f.values) != 1 {
			return "", errors.InvalidQuery("%s on %q takes exactly one value", f.op, f.column)
		}
		s, err := render(f.single())
		if err != nil {
			return "", errors.InvalidQuery("%q: %v", f.column, err)
		}
		if nested {
			return quote(s), nil
		}
		return s, nil
	}
}

func (f Filter) single() any {
	if len(f.values) == 0 {
		return nil
	}
	return f.values[0]
}

// render formats a filter value canonically.
func render(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", fmt.Errorf("nil value")
	case string:
		return t, nil
	case uuid.UUID:
		return t.String(), nil
	case *uuid.UUID:
		if t == nil {
			return "", fmt.Errorf("nil value")
		}
		return t.String(), nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Pointer, reflect.Chan, reflect.Func:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
	return fmt.Sprint(v), nil
}

// quote wraps values containing grammar-reserved characters in double quotes.
func quote(s string) string {
	if !strings.ContainsAny(s, `,()":`) && s != "" {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
