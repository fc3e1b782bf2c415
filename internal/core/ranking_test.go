package core

import (
	"errors"
	"testing"
)

func idsOf(rows []ExpenseRow) []int64 {
	out := []int64{}
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestTopExpenses(t *testing.T) {
	rows := []ExpenseRow{
		{ID: 1, Amount: mustAmount(t, "10")},
		{ID: 3, Amount: mustAmount(t, "30")},
		{ID: 2, Amount: mustAmount(t, "30")},
		{ID: 4, Amount: mustAmount(t, "-5")},
	}

	top, err := TopExpenses(rows, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := idsOf(top); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("TopExpenses(2) ids = %v, want [2 3]", got)
	}
	if rows[0].ID != 1 {
		t.Errorf("input reordered: %v", idsOf(rows))
	}

	all, _ := TopExpenses(rows, 10)
	if got := idsOf(all); len(got) != 4 || got[3] != 4 {
		t.Errorf("TopExpenses(10) ids = %v", got)
	}

	empty, _ := TopExpenses(nil, 3)
	if empty == nil || len(empty) != 0 {
		t.Errorf("TopExpenses(nil) = %#v, want empty slice", empty)
	}

	if _, err := TopExpenses(rows, 0); !errors.Is(err, ErrInvalidCount) {
		t.Errorf("TopExpenses(0) error = %v", err)
	}
}

func TestAboveCategoryAverage(t *testing.T) {
	rows := []ExpenseRow{
		{ID: 1, Amount: mustAmount(t, "10"), Category: strPtr("food")},
		{ID: 2, Amount: mustAmount(t, "30"), Category: strPtr("food")},
		{ID: 3, Amount: mustAmount(t, "20"), Category: strPtr("food")},
		{ID: 4, Amount: mustAmount(t, "100"), Category: strPtr("rent")},
		{ID: 5, Amount: mustAmount(t, "-5")},
		{ID: 6, Amount: mustAmount(t, "5")},
		{ID: 7, Amount: mustAmount(t, "0.01"), Category: strPtr("misc")},
		{ID: 8, Amount: mustAmount(t, "0.01"), Category: strPtr("misc")},
		{ID: 9, Amount: mustAmount(t, "0.02"), Category: strPtr("misc")},
	}

	got := AboveCategoryAverage(rows)
	if len(got) != 3 {
		t.Fatalf("AboveCategoryAverage = %+v", got)
	}

	want := []struct {
		id       int64
		avg, pct string
	}{
		{2, "20.00", "50.00"},
		{9, "0.01", "50.00"},
		{6, "0.00", "0.00"},
	}
	for i, w := range want {
		a := got[i]
		if a.ID != w.id || FormatAmount(a.CategoryAverage) != w.avg || a.DiffPercent.StringFixed(2) != w.pct {
			t.Errorf("row %d = id %d avg %s pct %s, want %+v", i, a.ID, FormatAmount(a.CategoryAverage), a.DiffPercent.StringFixed(2), w)
		}
	}

	if out := AboveCategoryAverage(nil); out == nil || len(out) != 0 {
		t.Errorf("AboveCategoryAverage(nil) = %#v, want empty slice", out)
	}
}
