package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// NamedAmount represents an amount aggregated by a grouping name.
type NamedAmount struct {
	Name   string          `json:"name"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Analytics summarizes a filtered set of expense rows.
type Analytics struct {
	Count           int             `json:"count"`
	Total           decimal.Decimal `json:"total"`
	Average         decimal.Decimal `json:"average"`
	Max             decimal.Decimal `json:"max"`
	Min             decimal.Decimal `json:"min"`
	ByCategory      []NamedAmount   `json:"by_category"`
	ByPaymentMethod []NamedAmount   `json:"by_payment_method"`
	ByTag           []NamedAmount   `json:"by_tag"`
	ByMonth         []NamedAmount   `json:"by_month"`
}

// unassigned labels rows whose reference name is missing.
const unassigned = "n/a"

// Summarize computes totals and per-group breakdowns for rows.
// Groups are ordered by amount descending, then name.
func Summarize(rows []ExpenseRow) Analytics {
	a := Analytics{
		ByCategory:      []NamedAmount{},
		ByPaymentMethod: []NamedAmount{},
		ByTag:           []NamedAmount{},
		ByMonth:         []NamedAmount{},
	}
	if len(rows) == 0 {
		return a
	}

	cats := newGrouper()
	pays := newGrouper()
	tags := newGrouper()
	months := newGrouper()

	a.Max = rows[0].Amount
	a.Min = rows[0].Amount
	for _, r := range rows {
		a.Count++
		a.Total = a.Total.Add(r.Amount)
		if r.Amount.GreaterThan(a.Max) {
			a.Max = r.Amount
		}
		if r.Amount.LessThan(a.Min) {
			a.Min = r.Amount
		}
		cats.add(nameOr(r.Category), r.Amount)
		pays.add(nameOr(r.PaymentMethod), r.Amount)
		tags.add(nameOr(r.Tag), r.Amount)
		if len(r.Date) >= 7 {
			months.add(r.Date[:7], r.Amount)
		}
	}
	a.Average = a.Total.DivRound(decimal.NewFromInt(int64(a.Count)), 2)
	a.ByCategory = cats.sorted()
	a.ByPaymentMethod = pays.sorted()
	a.ByTag = tags.sorted()
	a.ByMonth = months.sorted()
	return a
}

func nameOr(p *string) string {
	if p == nil || *p == "" {
		return unassigned
	}
	return *p
}

type grouper struct {
	order []string
	byKey map[string]*NamedAmount
}

func newGrouper() *grouper {
	return &grouper{byKey: make(map[string]*NamedAmount)}
}

func (g *grouper) add(name string, amount decimal.Decimal) {
	na, ok := g.byKey[name]
	if !ok {
		na = &NamedAmount{Name: name}
		g.byKey[name] = na
		g.order = append(g.order, name)
	}
	na.Count++
	na.Amount = na.Amount.Add(amount)
}

func (g *grouper) sorted() []NamedAmount {
	out := make([]NamedAmount, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, *g.byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
