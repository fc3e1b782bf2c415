package predicate

import (
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/filter"
)

// Record is the flat view of one expense that Eval matches against.
// Nil reference names behave like SQL NULL: no comparison matches them.
type Record struct {
	Owner         string
	Date          string // YYYY-MM-DD
	Amount        decimal.Decimal
	Category      *string
	Tag           *string
	PaymentMethod *string
}

// Eval reports whether rec satisfies root. A nil root matches everything.
// Results agree with ToSQL run against the SQLite store.
func Eval(root Node, rec Record) bool {
	if root == nil {
		return true
	}
	switch n := root.(type) {
	case *And:
		for _, t := range n.Terms {
			if !Eval(t, rec) {
				return false
			}
		}
		return true
	case *Or:
		for _, t := range n.Terms {
			if Eval(t, rec) {
				return true
			}
		}
		return false
	case *OwnedBy:
		return rec.Owner == n.User
	case *Compare:
		return evalCompare(n, rec)
	default:
		return false
	}
}

func evalCompare(c *Compare, rec Record) bool {
	switch c.Attr {
	case filter.AttrAmount:
		return compareAmount(rec.Amount, c.Op, c.Value)
	case filter.AttrDate:
		return compareText(&rec.Date, c.Op, c.Value)
	case filter.AttrMonth:
		if len(rec.Date) < 7 {
			return false
		}
		m := rec.Date[5:7]
		return compareText(&m, c.Op, c.Value)
	case filter.AttrCategory:
		return compareText(rec.Category, c.Op, c.Value)
	case filter.AttrTag:
		return compareText(rec.Tag, c.Op, c.Value)
	case filter.AttrPaymentMethod:
		return compareText(rec.PaymentMethod, c.Op, c.Value)
	default:
		return false
	}
}

func compareAmount(amount decimal.Decimal, op filter.Operator, value string) bool {
	lit, err := core.ParseNumber(value)
	if err != nil {
		// A number sorts before any text.
		return ordered(-1, op)
	}
	return ordered(amount.Cmp(lit), op)
}

func compareText(v *string, op filter.Operator, value string) bool {
	if v == nil {
		return false
	}
	return ordered(strings.Compare(*v, value), op)
}

// ordered applies op to the result of a three-way comparison.
func ordered(cmp int, op filter.Operator) bool {
	switch op {
	case filter.OpEq:
		return cmp == 0
	case filter.OpNe:
		return cmp != 0
	case filter.OpLt:
		return cmp < 0
	case filter.OpLe:
		return cmp <= 0
	case filter.OpGt:
		return cmp > 0
	case filter.OpGe:
		return cmp >= 0
	default:
		return false
	}
}
