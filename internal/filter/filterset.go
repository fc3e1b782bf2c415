package filter

import (
	"errors"
	"strings"
)

// Constraint is one parsed, normalized (field, operator, value) unit.
type Constraint struct {
	Field Field
	Op    Operator
	Value string // normalized
	Raw   string // as written
}

func (c Constraint) String() string {
	return string(c.Field) + string(c.Op) + c.Value
}

// FilterSet groups constraints by field. Fields keep the order in which
// they were first added. The zero value is an empty set.
type FilterSet struct {
	order   []Field
	byField map[Field][]Constraint
}

// NewFilterSet returns an empty set.
func NewFilterSet() *FilterSet {
	return &FilterSet{byField: make(map[Field][]Constraint)}
}

// Add appends c to its field's constraint list.
func (s *FilterSet) Add(c Constraint) {
	if s.byField == nil {
		s.byField = make(map[Field][]Constraint)
	}
	if _, ok := s.byField[c.Field]; !ok {
		s.order = append(s.order, c.Field)
	}
	s.byField[c.Field] = append(s.byField[c.Field], c)
}

// Fields returns fields with at least one constraint, in insertion order.
func (s *FilterSet) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, 0, len(s.order))
	for _, f := range s.order {
		if len(s.byField[f]) > 0 {
			out = append(out, f)
		}
	}
	return out
}

// Constraints returns the constraints on f in insertion order.
func (s *FilterSet) Constraints(f Field) []Constraint {
	if s == nil {
		return nil
	}
	return append([]Constraint(nil), s.byField[f]...)
}

// Len returns the total number of constraints.
func (s *FilterSet) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, cs := range s.byField {
		n += len(cs)
	}
	return n
}

// IsEmpty reports whether the set holds no constraints.
func (s *FilterSet) IsEmpty() bool {
	return s.Len() == 0
}

// String renders the set back to filter syntax, grouped by field.
func (s *FilterSet) String() string {
	var parts []string
	for _, f := range s.Fields() {
		for _, c := range s.byField[f] {
			parts = append(parts, c.String())
		}
	}
	return strings.Join(parts, ",")
}

// Parse tokenizes, classifies and normalizes text. Expressions are handled
// left to right and the first failure aborts the parse; nothing after the
// bad expression is looked at.
func Parse(text string) (*FilterSet, error) {
	set := NewFilterSet()
	for _, expr := range SplitExpressions(text) {
		tok, err := TokenizeExpr(expr)
		if err != nil {
			return nil, err
		}
		info, err := Classify(tok.Field)
		if err != nil {
			return nil, withExpr(err, tok.Expr)
		}
		value, err := Normalize(info.Field, tok.Value)
		if err != nil {
			return nil, withExpr(err, tok.Expr)
		}
		set.Add(Constraint{Field: info.Field, Op: tok.Op, Value: value, Raw: tok.Value})
	}
	return set, nil
}

func withExpr(err error, expr string) error {
	var fe *Error
	if errors.As(err, &fe) {
		fe.Expr = expr
	}
	return err
}
