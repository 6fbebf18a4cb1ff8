package filter

import (
	"fmt"
	"strings"
)

// Translator converts an Expr into a backend-specific query fragment. Each
// storage/vector backend provides its own FilterTranslator implementation.
type Translator interface {
	Translate(e Expr) (string, []interface{}, error)
}

// SQLTranslator renders Expr into a parameterized `WHERE`-clause fragment
// using `?` placeholders, for the SQLite and Postgres backends. Fields not
// present in AllowedFields are rejected, the same allowedSortFields
// whitelist pattern ListOptions.Normalize uses (defends against
// SQL-injection via attacker-controlled field names).
type SQLTranslator struct {
	// AllowedFields maps a public field name to its column expression.
	AllowedFields map[string]string
}

// NewSQLTranslator builds a SQLTranslator restricted to allowed.
func NewSQLTranslator(allowed map[string]string) *SQLTranslator {
	return &SQLTranslator{AllowedFields: allowed}
}

func (t *SQLTranslator) column(field string) (string, error) {
	col, ok := t.AllowedFields[field]
	if !ok {
		return "", fmt.Errorf("filter: field %q is not filterable", field)
	}
	return col, nil
}

// Translate implements Translator.
func (t *SQLTranslator) Translate(e Expr) (string, []interface{}, error) {
	if e.IsZero() {
		return "1=1", nil, nil
	}
	switch {
	case e.Condition != nil:
		return t.translateCondition(*e.Condition)
	case e.And != nil:
		return t.translateJoin(e.And, "AND")
	case e.Or != nil:
		return t.translateJoin(e.Or, "OR")
	case e.Not != nil:
		clause, args, err := t.Translate(*e.Not)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + clause + ")", args, nil
	default:
		return "1=1", nil, nil
	}
}

func (t *SQLTranslator) translateJoin(exprs []Expr, joiner string) (string, []interface{}, error) {
	if len(exprs) == 0 {
		return "1=1", nil, nil
	}
	clauses := make([]string, 0, len(exprs))
	var args []interface{}
	for _, sub := range exprs {
		clause, subArgs, err := t.Translate(sub)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, "("+clause+")")
		args = append(args, subArgs...)
	}
	return strings.Join(clauses, " "+joiner+" "), args, nil
}

func (t *SQLTranslator) translateCondition(c Condition) (string, []interface{}, error) {
	col, err := t.column(c.Field)
	if err != nil {
		return "", nil, err
	}

	switch c.Operator {
	case OpEq:
		return col + " = ?", []interface{}{c.Value}, nil
	case OpNe:
		return col + " != ?", []interface{}{c.Value}, nil
	case OpGt:
		return col + " > ?", []interface{}{c.Value}, nil
	case OpGte:
		return col + " >= ?", []interface{}{c.Value}, nil
	case OpLt:
		return col + " < ?", []interface{}{c.Value}, nil
	case OpLte:
		return col + " <= ?", []interface{}{c.Value}, nil
	case OpIn, OpNin:
		items, ok := c.Value.([]interface{})
		if !ok || len(items) == 0 {
			// An empty IN() is always false; empty NOT IN() is always true.
			if c.Operator == OpIn {
				return "1=0", nil, nil
			}
			return "1=1", nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(items)), ",")
		op := "IN"
		if c.Operator == OpNin {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, op, placeholders), items, nil
	case OpContains:
		return col + " LIKE ?", []interface{}{"%" + toString(c.Value) + "%"}, nil
	case OpIcontains:
		return "LOWER(" + col + ") LIKE ?", []interface{}{"%" + strings.ToLower(toString(c.Value)) + "%"}, nil
	case OpBetween:
		return col + " BETWEEN ? AND ?", []interface{}{c.Min, c.Max}, nil
	case OpIsNull:
		return col + " IS NULL", nil, nil
	case OpIsNotNull:
		return col + " IS NOT NULL", nil, nil
	case OpExists, OpNotExists:
		// SQL columns are always "present"; Exists/NotExists only have
		// meaning against schemaless payloads (vector-backend JSON). For a
		// relational column, treat Exists as always-true and NotExists as
		// always-false.
		if c.Operator == OpExists {
			return "1=1", nil, nil
		}
		return "1=0", nil, nil
	case OpWildcard:
		pattern := strings.ReplaceAll(toString(c.Value), "*", "%")
		return col + " LIKE ?", []interface{}{pattern}, nil
	default:
		return "", nil, fmt.Errorf("filter: unsupported operator %q", c.Operator)
	}
}
