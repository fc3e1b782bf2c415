package predicate

import (
	"errors"
	"fmt"
	"strings"

	"ledger/internal/core"
	"ledger/internal/filter"
)

// Column expressions of the expense listing query. The aliases match the
// joins in storage's base query.
var columns = map[filter.Attribute]string{
	filter.AttrAmount:        "e.amount_cents",
	filter.AttrDate:          "e.date",
	filter.AttrCategory:      "c.category_name",
	filter.AttrTag:           "t.tag_name",
	filter.AttrPaymentMethod: "pm.payment_method_name",
	filter.AttrMonth:         "strftime('%m', e.date)",
}

const ownerColumn = "ue.username"

var errUnsupportedNode = errors.New("unsupported predicate node")

// SQL is a rendered WHERE clause body and its positional arguments.
// Where is empty when there is nothing to restrict.
type SQL struct {
	Where string
	Args  []any
}

// ToSQL renders root as parameterized SQLite. Only column names from a
// fixed table and validated operators reach the SQL text; every value is
// bound as an argument.
func ToSQL(root Node) (SQL, error) {
	if root == nil {
		return SQL{}, nil
	}
	r := &sqlRenderer{}
	var err error
	// The top-level conjunction is not parenthesized.
	if and, ok := root.(*And); ok {
		err = r.terms(and.Terms, " AND ")
	} else {
		err = r.render(root)
	}
	if err != nil {
		return SQL{}, err
	}
	return SQL{Where: r.sb.String(), Args: r.args}, nil
}

type sqlRenderer struct {
	sb   strings.Builder
	args []any
}

func (r *sqlRenderer) render(n Node) error {
	switch n := n.(type) {
	case *And:
		return r.group(n.Terms, " AND ")
	case *Or:
		return r.group(n.Terms, " OR ")
	case *OwnedBy:
		r.sb.WriteString(ownerColumn + " = ?")
		r.args = append(r.args, n.User)
		return nil
	case *Compare:
		col, ok := columns[n.Attr]
		if !ok {
			return fmt.Errorf("%w: attribute %q", errUnsupportedNode, n.Attr)
		}
		if !n.Op.Valid() {
			return fmt.Errorf("%w: operator %q", errUnsupportedNode, n.Op)
		}
		if n.Attr == filter.AttrAmount {
			r.amount(col, n.Op, n.Value)
			return nil
		}
		r.compare(col, n.Op, n.Value)
		return nil
	default:
		return fmt.Errorf("%w: %T", errUnsupportedNode, n)
	}
}

func (r *sqlRenderer) group(terms []Node, sep string) error {
	r.sb.WriteString("(")
	if err := r.terms(terms, sep); err != nil {
		return err
	}
	r.sb.WriteString(")")
	return nil
}

func (r *sqlRenderer) terms(terms []Node, sep string) error {
	for i, t := range terms {
		if i > 0 {
			r.sb.WriteString(sep)
		}
		if err := r.render(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqlRenderer) compare(col string, op filter.Operator, arg any) {
	r.sb.WriteString(col + " " + string(op) + " ?")
	r.args = append(r.args, arg)
}

// amount compares the integer cents column against the exact literal.
// A literal between two cents is replaced by the neighbour that keeps the
// comparison's answer for every integer. When no int64 can change the
// answer (fractional equality, out-of-range literals) the term becomes a
// NULL test on the NOT NULL column, which is constant. Non-numeric literals
// are bound as text, which SQLite orders after every number.
func (r *sqlRenderer) amount(col string, op filter.Operator, value string) {
	lit, err := core.ParseNumber(value)
	if err != nil {
		r.compare(col, op, value)
		return
	}
	cents := lit.Shift(2)

	bound := cents
	switch op {
	case filter.OpLt, filter.OpGe:
		bound = cents.Ceil()
	case filter.OpLe, filter.OpGt:
		bound = cents.Floor()
	}

	switch {
	case bound.GreaterThan(core.MaxCents):
		r.constant(col, ordered(-1, op))
	case bound.LessThan(core.MinCents):
		r.constant(col, ordered(1, op))
	case !bound.Equal(cents) && (op == filter.OpEq || op == filter.OpNe):
		r.constant(col, op == filter.OpNe)
	default:
		r.compare(col, op, bound.IntPart())
	}
}

func (r *sqlRenderer) constant(col string, result bool) {
	if result {
		r.sb.WriteString(col + " IS NOT NULL")
		return
	}
	r.sb.WriteString(col + " IS NULL")
}
