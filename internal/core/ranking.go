package core

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var ErrInvalidCount = errors.New("count must be a positive integer")

// AboveAverage is an expense whose amount is above the average of its
// category within the same row set.
type AboveAverage struct {
	ExpenseRow
	CategoryAverage decimal.Decimal `json:"category_average"`
	DiffPercent     decimal.Decimal `json:"diff_percent"`
}

// TopExpenses returns the n largest rows by amount. Equal amounts keep the
// lower id first.
func TopExpenses(rows []ExpenseRow, n int) ([]ExpenseRow, error) {
	if n <= 0 {
		return nil, ErrInvalidCount
	}
	out := append([]ExpenseRow{}, rows...)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// AboveCategoryAverage returns the rows whose amount is strictly above the
// average of their category. Rows without a category are grouped under
// "n/a". The result is ordered by category, then amount descending.
func AboveCategoryAverage(rows []ExpenseRow) []AboveAverage {
	type bucket struct {
		total decimal.Decimal
		count int64
	}
	buckets := make(map[string]*bucket)
	for _, r := range rows {
		name := nameOr(r.Category)
		b, ok := buckets[name]
		if !ok {
			b = &bucket{}
			buckets[name] = b
		}
		b.total = b.total.Add(r.Amount)
		b.count++
	}

	out := []AboveAverage{}
	hundred := decimal.NewFromInt(100)
	for _, r := range rows {
		b := buckets[nameOr(r.Category)]
		n := decimal.NewFromInt(b.count)
		// amount > total/count without dividing
		if !r.Amount.Mul(n).GreaterThan(b.total) {
			continue
		}
		avg := b.total.Div(n)
		a := AboveAverage{ExpenseRow: r, CategoryAverage: avg.Round(2)}
		if !avg.IsZero() {
			a.DiffPercent = r.Amount.Sub(avg).Div(avg.Abs()).Mul(hundred).Round(2)
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := nameOr(out[i].Category), nameOr(out[j].Category)
		if ci != cj {
			return ci < cj
		}
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}
