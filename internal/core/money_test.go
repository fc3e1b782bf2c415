package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return d
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{"12.345", "12.35", true},
		{"12.344", "12.34", true},
		{"0", "0.00", true},
		{"-25", "-25.00", true},
		{" 150 ", "150.00", true},
		{"", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,2.3", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tc.in, err)
			}
			if FormatAmount(got) != tc.want {
				t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, FormatAmount(got), tc.want)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParseAmount(%q) expected error", tc.in)
		}
	}
}

func TestParseNumberKeepsPrecision(t *testing.T) {
	cases := map[string]string{
		"25.004":  "25.004",
		"24,996":  "24.996",
		"1e17":    "100000000000000000",
		"-0.0001": "-0.0001",
	}
	for in, want := range cases {
		got, err := ParseNumber(in)
		if err != nil {
			t.Fatalf("ParseNumber(%q): %v", in, err)
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("ParseNumber(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseNumber("1.2.3"); err == nil {
		t.Error("ParseNumber(1.2.3) expected error")
	}
}

func TestCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"25", 2500, true},
		{"-12.505", -1251, true},
		{"92233720368547758.07", 9223372036854775807, true},
		{"-92233720368547758.08", -9223372036854775808, true},
		{"92233720368547758.08", 0, false},
		{"1e17", 0, false},
		{"-1e17", 0, false},
	}
	for _, tc := range cases {
		got, err := Cents(mustAmount(t, tc.in))
		if tc.ok {
			if err != nil || got != tc.want {
				t.Errorf("Cents(%s) = %d, %v; want %d", tc.in, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Cents(%s) error = %v, want ErrInvalidAmount", tc.in, err)
		}
	}
}
