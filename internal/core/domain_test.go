package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2023-06-10", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2023-02-30", false},
		{"2023/01/01", false},
		{"2023-1-01", false},
		{"20230101", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseDate(%q) unexpected error: %v", tc.in, err)
			}
			if d.String() != tc.in {
				t.Fatalf("ParseDate(%q).String() = %q", tc.in, d.String())
			}
			continue
		}
		if err != ErrInvalidDate {
			t.Fatalf("ParseDate(%q) error = %v, want ErrInvalidDate", tc.in, err)
		}
	}
}

func TestActorScope(t *testing.T) {
	admin := Actor{Username: "root", Role: RoleAdmin}
	if s := admin.Scope(); !s.AllRows {
		t.Fatalf("admin scope = %v, want all_rows", s)
	}

	user := Actor{Username: "alice", Role: RoleUser}
	s := user.Scope()
	if s.AllRows || s.User != "alice" {
		t.Fatalf("user scope = %v, want self_only:alice", s)
	}
	if s.String() != "self_only:alice" {
		t.Fatalf("String() = %q", s.String())
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Admin "); err != nil || r != RoleAdmin {
		t.Fatalf("ParseRole(Admin) = %v, %v", r, err)
	}
	if r, err := ParseRole("user"); err != nil || r != RoleUser {
		t.Fatalf("ParseRole(user) = %v, %v", r, err)
	}
	if _, err := ParseRole("root"); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:          NewDate(2025, 1, 1),
		Description:   "ok",
		Amount:        mustAmount(t, "-3.50"),
		Category:      "Food",
		PaymentMethod: "cash",
		Owner:         "alice",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Date: Date{Time: time.Time{}}, Category: "c", PaymentMethod: "p", Owner: "o"},
		{Date: NewDate(2025, 1, 1), Category: " ", PaymentMethod: "p", Owner: "o"},
		{Date: NewDate(2025, 1, 1), Category: "c", PaymentMethod: "", Owner: "o"},
		{Date: NewDate(2025, 1, 1), Category: "c", PaymentMethod: "p", Owner: ""},
		{Date: NewDate(2025, 1, 1), Amount: mustAmount(t, "1e17"), Category: "c", PaymentMethod: "p", Owner: "o"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Groceries "); got != "groceries" {
		t.Fatalf("NormalizeName = %q", got)
	}
}
