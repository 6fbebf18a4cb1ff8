package filter

import (
	"fmt"
	"strings"
)

// FieldResolver looks up a field's value from whatever record is being
// matched (a Memory, an Entity, a vector-backend payload). A missing field
// resolves to (nil, false).
type FieldResolver func(field string) (interface{}, bool)

// Matches evaluates e against resolve in-process, used by the in-memory
// graph store and the SQLite fallback vector backend (SPEC_FULL.md §4
// "rook-vector-stores factory pattern").
func Matches(e Expr, resolve FieldResolver) (bool, error) {
	switch {
	case e.IsZero():
		return true, nil
	case e.Condition != nil:
		return matchCondition(*e.Condition, resolve)
	case e.And != nil:
		for _, sub := range e.And {
			ok, err := Matches(sub, resolve)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case e.Or != nil:
		for _, sub := range e.Or {
			ok, err := Matches(sub, resolve)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case e.Not != nil:
		ok, err := Matches(*e.Not, resolve)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return true, nil
	}
}

func matchCondition(c Condition, resolve FieldResolver) (bool, error) {
	value, present := resolve(c.Field)

	switch c.Operator {
	case OpExists:
		return present, nil
	case OpNotExists:
		return !present, nil
	case OpIsNull:
		return present && value == nil, nil
	case OpIsNotNull:
		return present && value != nil, nil
	}

	if !present {
		return false, nil
	}

	switch c.Operator {
	case OpEq:
		return equal(value, c.Value), nil
	case OpNe:
		return !equal(value, c.Value), nil
	case OpGt, OpGte, OpLt, OpLte:
		return compareNumeric(c.Operator, value, c.Value)
	case OpIn:
		return inSlice(value, c.Value), nil
	case OpNin:
		return !inSlice(value, c.Value), nil
	case OpContains:
		return strings.Contains(toString(value), toString(c.Value)), nil
	case OpIcontains:
		return strings.Contains(strings.ToLower(toString(value)), strings.ToLower(toString(c.Value))), nil
	case OpBetween:
		geMin, err := compareNumeric(OpGte, value, c.Min)
		if err != nil {
			return false, err
		}
		leMax, err := compareNumeric(OpLte, value, c.Max)
		if err != nil {
			return false, err
		}
		return geMin && leMax, nil
	case OpWildcard:
		return matchWildcard(toString(c.Value), toString(value)), nil
	default:
		return false, fmt.Errorf("filter: unsupported operator %q", c.Operator)
	}
}

func equal(a, b interface{}) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func compareNumeric(op Operator, a, b interface{}) (bool, error) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		// Fall back to string comparison for non-numeric types (e.g. dates
		// already formatted as RFC3339, which sort correctly as strings).
		as, bs := toString(a), toString(b)
		switch op {
		case OpGt:
			return as > bs, nil
		case OpGte:
			return as >= bs, nil
		case OpLt:
			return as < bs, nil
		case OpLte:
			return as <= bs, nil
		}
		return false, fmt.Errorf("filter: operator %q requires comparable values", op)
	}
	switch op {
	case OpGt:
		return af > bf, nil
	case OpGte:
		return af >= bf, nil
	case OpLt:
		return af < bf, nil
	case OpLte:
		return af <= bf, nil
	}
	return false, fmt.Errorf("filter: unsupported numeric operator %q", op)
}

func inSlice(value interface{}, set interface{}) bool {
	items, ok := set.([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if equal(value, item) {
			return true
		}
	}
	return false
}

// matchWildcard supports a single '*' glob against the whole string (e.g.
// "proj-*" matches "proj-123"). Multiple '*' are treated as consecutive
// substrings that must appear in order.
func matchWildcard(pattern, value string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == value
	}
	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(value[pos:], part)
		if idx == -1 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}
	if last := parts[len(parts)-1]; last != "" {
		return strings.HasSuffix(value, last)
	}
	return true
}
