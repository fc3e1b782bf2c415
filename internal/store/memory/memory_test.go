package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/filter"
	"ledger/internal/predicate"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New([]string{"food", "rent", "utilities"}, []string{"cash", "card"})
	for _, u := range []core.User{{Username: "alice", Role: core.RoleUser}, {Username: "bob", Role: core.RoleUser}} {
		if err := s.AddUser(ctx, u); err != nil {
			t.Fatalf("add user: %v", err)
		}
	}
	expenses := []core.Expense{
		{Date: core.NewDate(2023, 6, 10), Amount: decimal.NewFromInt(25), Category: "food", PaymentMethod: "cash", Owner: "alice"},
		{Date: core.NewDate(2023, 6, 1), Amount: decimal.NewFromInt(150), Category: "rent", PaymentMethod: "card", Tag: "home", Owner: "alice"},
		{Date: core.NewDate(2023, 3, 15), Amount: decimal.NewFromInt(500), Category: "utilities", PaymentMethod: "card", Owner: "bob"},
	}
	for _, e := range expenses {
		if _, err := s.AddExpense(ctx, e); err != nil {
			t.Fatalf("add expense: %v", err)
		}
	}
	return s
}

func query(t *testing.T, s *Store, text string, scope core.Scope) []core.ExpenseRow {
	t.Helper()
	set, err := filter.Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	rows, err := s.QueryExpenses(context.Background(), predicate.Build(set, scope), scope.AllRows)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return rows
}

func ids(rows []core.ExpenseRow) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueryExpenses(t *testing.T) {
	s := seeded(t)
	tests := []struct {
		name   string
		filter string
		scope  core.Scope
		want   []int64
	}{
		{"amount above 100 for alice", "amount>100", core.SelfOnly("alice"), []int64{2}},
		{"either category for admin", "category=food,category=rent", core.AllRows(), []int64{1, 2}},
		{"no filter for alice", "", core.SelfOnly("alice"), []int64{1, 2}},
		{"no filter for admin", "", core.AllRows(), []int64{1, 2, 3}},
		{"bob rows hidden from alice", "amount>=0,category=utilities", core.SelfOnly("alice"), nil},
		{"month name", "month=june", core.AllRows(), []int64{1, 2}},
		{"tag skips untagged rows", "tag=home", core.AllRows(), []int64{2}},
		{"cross field narrows", "category=food,payment_method=card", core.AllRows(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(query(t, s, tt.filter, tt.scope))
			if !equalIDs(got, tt.want) {
				t.Fatalf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryExpensesOwnerOnlyForAllRows(t *testing.T) {
	s := seeded(t)
	for _, r := range query(t, s, "", core.SelfOnly("alice")) {
		if r.Owner != "" {
			t.Fatalf("owner leaked for self scope: %+v", r)
		}
	}
	rows := query(t, s, "category=utilities", core.AllRows())
	if len(rows) != 1 || rows[0].Owner != "bob" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Tag != nil {
		t.Fatalf("expected nil tag, got %q", *rows[0].Tag)
	}
}

func TestAddExpenseReferenceChecks(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	base := core.Expense{Date: core.NewDate(2023, 1, 1), Amount: decimal.Zero, Category: "food", PaymentMethod: "cash", Owner: "alice"}

	e := base
	e.Category = "travel"
	if _, err := s.AddExpense(ctx, e); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	e = base
	e.PaymentMethod = "crypto"
	if _, err := s.AddExpense(ctx, e); !errors.Is(err, core.ErrUnknownPaymentMethod) {
		t.Fatalf("expected ErrUnknownPaymentMethod, got %v", err)
	}
	e = base
	e.Owner = "carol"
	if _, err := s.AddExpense(ctx, e); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	e = base
	e.Category = "  FOOD "
	if _, err := s.AddExpense(ctx, e); err != nil {
		t.Fatalf("normalized category rejected: %v", err)
	}
}

func TestUsersAndActivities(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	if err := s.AddUser(ctx, core.User{Username: "alice", Role: core.RoleAdmin}); !errors.Is(err, core.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := s.GetUser(ctx, "nobody"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	_ = s.RecordActivity(ctx, core.Activity{Username: "alice", Type: core.ActivityListExpenses, Details: "a"})
	_ = s.RecordActivity(ctx, core.Activity{Username: "bob", Type: core.ActivityListExpenses})
	_ = s.RecordActivity(ctx, core.Activity{Username: "alice", Type: core.ActivityAnalyzeExpense, Details: "b"})

	got, _ := s.ListActivities(ctx, "alice", 10)
	if len(got) != 2 || got[0].Details != "b" || got[1].Details != "a" {
		t.Fatalf("unexpected activities: %+v", got)
	}
	if got[0].Timestamp.IsZero() {
		t.Fatalf("timestamp not set")
	}
	all, _ := s.ListActivities(ctx, "", 1)
	if len(all) != 1 || all[0].Username != "alice" {
		t.Fatalf("unexpected limited list: %+v", all)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(ctx)
	pays, _ := s.ListPaymentMethods(ctx)
	if len(cats) == 0 || len(pays) == 0 {
		t.Fatalf("expected defaults when files missing")
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_categories.txt", "# header\nFood\nrent\nfood\n\n")
	mustWrite("seed_payment_methods.txt", "# header\ncash\nCASH\ncard\n\n")

	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(ctx)
	if len(cats) != 2 || cats[0] != "food" || cats[1] != "rent" {
		t.Fatalf("unexpected categories: %v", cats)
	}
	pays, _ = s.ListPaymentMethods(ctx)
	if len(pays) != 2 || pays[0] != "card" || pays[1] != "cash" {
		t.Fatalf("unexpected payment methods: %v", pays)
	}
}

func TestUpdateExpense(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	change := func(field, value string) core.ExpenseChange {
		t.Helper()
		c, err := core.ParseExpenseChange(field, value)
		if err != nil {
			t.Fatalf("ParseExpenseChange(%q, %q): %v", field, value, err)
		}
		return c
	}

	for _, c := range []core.ExpenseChange{
		change("amount", "30.555"),
		change("category", "Rent"),
		change("tag", "Trip"),
		change("payment_method", "card"),
		change("description", "moved"),
		change("date", "2023-07-01"),
	} {
		if err := s.UpdateExpense(ctx, 1, c); err != nil {
			t.Fatalf("UpdateExpense(%s): %v", c, err)
		}
	}
	rows := query(t, s, "tag=trip", core.AllRows())
	if len(rows) != 1 || rows[0].ID != 1 {
		t.Fatalf("tag=trip rows = %+v", rows)
	}
	r := rows[0]
	if core.FormatAmount(r.Amount) != "30.56" || *r.Category != "rent" || *r.PaymentMethod != "card" ||
		r.Description != "moved" || r.Date != "2023-07-01" || r.Owner != "alice" {
		t.Fatalf("updated row = %+v", r)
	}

	if err := s.UpdateExpense(ctx, 1, change("tag", "")); err != nil {
		t.Fatal(err)
	}
	rows = query(t, s, "tag=trip", core.AllRows())
	if len(rows) != 0 {
		t.Fatalf("tag not cleared: %+v", rows)
	}

	cases := []struct {
		id   int64
		c    core.ExpenseChange
		want error
	}{
		{1, change("category", "travel"), core.ErrUnknownCategory},
		{1, change("payment_method", "cheque"), core.ErrUnknownPaymentMethod},
		{99, change("amount", "1"), core.ErrExpenseNotFound},
		{1, core.ExpenseChange{Field: "owner", Text: "bob"}, core.ErrFieldNotUpdatable},
	}
	for _, tc := range cases {
		if err := s.UpdateExpense(ctx, tc.id, tc.c); !errors.Is(err, tc.want) {
			t.Errorf("UpdateExpense(%d, %s) error = %v, want %v", tc.id, tc.c, err, tc.want)
		}
	}
	rows = query(t, s, "category=rent", core.SelfOnly("alice"))
	if len(rows) != 2 {
		t.Errorf("failed update changed the expense: %+v", rows)
	}
}

func TestDeleteExpenseAndOwner(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	owner, err := s.ExpenseOwner(ctx, 3)
	if err != nil || owner != "bob" {
		t.Fatalf("ExpenseOwner(3) = %q, %v", owner, err)
	}
	if err := s.DeleteExpense(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ExpenseOwner(ctx, 3); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Errorf("ExpenseOwner after delete error = %v", err)
	}
	if err := s.DeleteExpense(ctx, 3); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Errorf("second DeleteExpense error = %v", err)
	}
	rows, _ := s.QueryExpenses(ctx, nil, false)
	if len(rows) != 2 {
		t.Fatalf("rows after delete = %+v", rows)
	}

	id, _ := s.AddExpense(ctx, core.Expense{Date: core.NewDate(2023, 8, 1), Amount: decimal.NewFromInt(1), Category: "food", PaymentMethod: "cash", Owner: "bob"})
	if id != 4 {
		t.Errorf("ids are reused after delete: got %d", id)
	}
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	users, _ := s.ListUsers(ctx)
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob" {
		t.Fatalf("ListUsers = %+v", users)
	}

	if err := s.DeleteCategory(ctx, "Food"); !errors.Is(err, core.ErrCategoryInUse) {
		t.Errorf("DeleteCategory(in use) error = %v", err)
	}
	if err := s.DeleteCategory(ctx, "travel"); !errors.Is(err, core.ErrUnknownCategory) {
		t.Errorf("DeleteCategory(missing) error = %v", err)
	}
	if err := s.AddCategory(ctx, "travel"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCategory(ctx, " Travel "); err != nil {
		t.Fatalf("DeleteCategory(unused): %v", err)
	}
	if cats, _ := s.ListCategories(ctx); len(cats) != 3 {
		t.Errorf("ListCategories = %v", cats)
	}

	if err := s.DeletePaymentMethod(ctx, "card"); !errors.Is(err, core.ErrPaymentMethodInUse) {
		t.Errorf("DeletePaymentMethod(in use) error = %v", err)
	}
	if err := s.DeletePaymentMethod(ctx, "cheque"); !errors.Is(err, core.ErrUnknownPaymentMethod) {
		t.Errorf("DeletePaymentMethod(missing) error = %v", err)
	}

	_ = s.RecordActivity(ctx, core.Activity{Username: "alice", Type: core.ActivityListExpenses})
	_ = s.RecordActivity(ctx, core.Activity{Username: "bob", Type: core.ActivityListExpenses})
	if err := s.DeleteUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetUser(ctx, "alice"); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("GetUser after delete error = %v", err)
	}
	rows, _ := s.QueryExpenses(ctx, nil, true)
	if len(rows) != 1 || rows[0].Owner != "bob" {
		t.Errorf("rows after DeleteUser = %+v", rows)
	}
	if acts, _ := s.ListActivities(ctx, "", 10); len(acts) != 1 || acts[0].Username != "bob" {
		t.Errorf("activities after DeleteUser = %+v", acts)
	}
	if err := s.DeleteUser(ctx, "alice"); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("second DeleteUser error = %v", err)
	}
	if err := s.DeleteCategory(ctx, "food"); err != nil {
		t.Errorf("DeleteCategory after owner removal: %v", err)
	}
}
