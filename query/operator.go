// Package query translates typed filter, ordering and pagination requests
// into the backend's REST querying grammar (operator-prefixed query-string
// values such as "eq.5", "in.(a,b)" or "or=(a.eq.1,b.eq.2)").
package query

import "fmt"

// Operator is the closed set of comparison operators the grammar supports.
type Operator int

const (
	Eq   Operator = iota + 1 // equal
	Neq                      // not equal
	Gt                       // greater than
	Gte                      // greater than or equal
	Lt                       // less than
	Lte                      // less than or equal
	Like                     // case-insensitive substring match
	In                       // value in set
)

var operatorTokens = map[Operator]string{
	Eq:   "eq",
	Neq:  "neq",
	Gt:   "gt",
	Gte:  "gte",
	Lt:   "lt",
	Lte:  "lte",
	Like: "ilike",
	In:   "in",
}

// Token returns the wire token prefixed to filter values.
func (o Operator) Token() string {
	return operatorTokens[o]
}

func (o Operator) Valid() bool {
	_, ok := operatorTokens[o]
	return ok
}

func (o Operator) String() string {
	if t, ok := operatorTokens[o]; ok {
		return t
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ParseOperator maps a wire token back to its Operator.
func ParseOperator(token string) (Operator, bool) {
	for op, t := range operatorTokens {
		if t == token {
			return op, true
		}
	}
	return 0, false
}

// Direction is an ordering direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) Token() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}
