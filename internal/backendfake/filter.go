package backendfake

import (
	"cmp"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-garage-desk/query"
)

var reservedKeys = map[string]bool{
	query.KeySelect:     true,
	query.KeyOrder:      true,
	query.KeyLimit:      true,
	query.KeyOffset:     true,
	query.KeyOnConflict: true,
	"columns":           true,
}

type condition struct {
	column  string
	op      query.Operator
	operand string
	set     []string
	pattern *regexp.Regexp
}

type predicate struct {
	and []condition
	ors [][]condition
}

func parsePredicate(params url.Values) (predicate, error) {
	var p predicate
	for key, values := range params {
		if reservedKeys[key] {
			continue
		}
		for _, raw := range values {
			if key == query.KeyOr {
				group, err := parseGroup(raw)
				if err != nil {
					return predicate{}, err
				}
				p.ors = append(p.ors, group)
				continue
			}
			c, err := parseCondition(key, raw)
			if err != nil {
				return predicate{}, err
			}
			p.and = append(p.and, c)
		}
	}
	return p, nil
}

func parseGroup(raw string) ([]condition, error) {
	if !strings.HasPrefix(raw, "(") || !strings.HasSuffix(raw, ")") {
		return nil, fmt.Errorf("failed to parse logic tree (%s)", raw)
	}
	var group []condition
	for _, clause := range splitTop(raw[1 : len(raw)-1]) {
		column, rest, ok := strings.Cut(clause, ".")
		if !ok {
			return nil, fmt.Errorf("failed to parse filter (%s)", clause)
		}
		c, err := parseCondition(column, rest)
		if err != nil {
			return nil, err
		}
		group = append(group, c)
	}
	if len(group) == 0 {
		return nil, fmt.Errorf("empty logic tree")
	}
	return group, nil
}

func parseCondition(column, raw string) (condition, error) {
	token, operand, ok := strings.Cut(raw, ".")
	if !ok {
		return condition{}, fmt.Errorf("failed to parse filter (%s)", raw)
	}
	op, ok := query.ParseOperator(token)
	if !ok {
		return condition{}, fmt.Errorf("unknown operator %q", token)
	}

	c := condition{column: column, op: op}
	switch op {
	case query.In:
		if !strings.HasPrefix(operand, "(") || !strings.HasSuffix(operand, ")") {
			return condition{}, fmt.Errorf("failed to parse list (%s)", operand)
		}
		for _, item := range splitTop(operand[1 : len(operand)-1]) {
			c.set = append(c.set, unquote(item))
		}
	case query.Like:
		pattern := regexp.QuoteMeta(unquote(operand))
		pattern = strings.NewReplacer(`\*`, ".*", "%", ".*").Replace(pattern)
		re, err := regexp.Compile("(?is)^" + pattern + "$")
		if err != nil {
			return condition{}, err
		}
		c.pattern = re
	default:
		c.operand = unquote(operand)
	}
	return c, nil
}

// splitTop splits s on commas outside parentheses and double quotes.
func splitTop(s string) []string {
	var parts []string
	depth, start := 0, 0
	inQuotes, escaped := false, false
	for i, ch := range s {
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inQuotes:
			escaped = true
		case ch == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return strings.NewReplacer(`\\`, `\`, `\"`, `"`).Replace(s[1 : len(s)-1])
}

func (p predicate) match(r row) bool {
	for _, c := range p.and {
		if !c.match(r) {
			return false
		}
	}
	for _, group := range p.ors {
		matched := false
		for _, c := range group {
			if c.match(r) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (c condition) match(r row) bool {
	v, ok := r[c.column]
	if !ok || v == nil {
		return false
	}
	switch c.op {
	case query.Like:
		return c.pattern.MatchString(fmt.Sprint(v))
	case query.In:
		for _, item := range c.set {
			if n, ok := compareOperand(v, item); ok && n == 0 {
				return true
			}
		}
		return false
	}

	n, ok := compareOperand(v, c.operand)
	if !ok {
		return false
	}
	switch c.op {
	case query.Eq:
		return n == 0
	case query.Neq:
		return n != 0
	case query.Gt:
		return n > 0
	case query.Gte:
		return n >= 0
	case query.Lt:
		return n < 0
	case query.Lte:
		return n <= 0
	}
	return false
}

// compareOperand compares a stored value with a wire operand.
func compareOperand(v any, operand string) (int, bool) {
	switch t := v.(type) {
	case float64:
		f, err := strconv.ParseFloat(operand, 64)
		if err != nil {
			return 0, false
		}
		return cmp.Compare(t, f), true
	case bool:
		b, err := strconv.ParseBool(operand)
		if err != nil {
			return 0, false
		}
		if t == b {
			return 0, true
		}
		return 1, true
	case string:
		return compareStrings(t, operand), true
	default:
		return strings.Compare(fmt.Sprint(t), operand), true
	}
}

// compareAny orders two stored values; nil sorts last.
func compareAny(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			return cmp.Compare(fa, fb)
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return compareStrings(sa, sb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareStrings(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}
