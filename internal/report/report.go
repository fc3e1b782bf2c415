// Package report renders query results for the command line.
//
// Two formats are supported:
//   - table: aligned ASCII tables
//   - json: one indented JSON document
//
// Example usage:
//
//	if err := report.WriteRows(os.Stdout, rows, report.FormatTable, true); err != nil {
//	    return err
//	}
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"ledger/internal/core"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat accepts "table" or "json", case-insensitively. Empty means
// table.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q: must be table or json", s)
	}
}

// WriteRows writes expense rows. The owner column is shown only when
// withOwner is set.
func WriteRows(w io.Writer, rows []core.ExpenseRow, format Format, withOwner bool) error {
	if format == FormatJSON {
		if rows == nil {
			rows = []core.ExpenseRow{}
		}
		return writeJSON(w, rows)
	}

	header := []string{"ID", "Date", "Amount", "Description", "Category", "Tag", "Payment", "Detail"}
	if withOwner {
		header = append(header, "Owner")
	}

	t := newTable(w, header)
	t.SetColumnAlignment(rowAlignment(len(header)))
	for _, r := range rows {
		line := []string{
			strconv.FormatInt(r.ID, 10),
			r.Date,
			core.FormatAmount(r.Amount),
			r.Description,
			orDash(r.Category),
			orDash(r.Tag),
			orDash(r.PaymentMethod),
			orDash(r.PaymentDetail),
		}
		if withOwner {
			line = append(line, r.Owner)
		}
		t.Append(line)
	}
	t.SetFooter(footer(len(header), len(rows)))
	t.Render()
	return nil
}

// WriteAnalytics writes the totals followed by one table per breakdown.
// Empty breakdowns are skipped.
func WriteAnalytics(w io.Writer, a core.Analytics, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, a)
	}

	t := newTable(w, []string{"Metric", "Value"})
	t.AppendBulk([][]string{
		{"Count", strconv.Itoa(a.Count)},
		{"Total", core.FormatAmount(a.Total)},
		{"Average", core.FormatAmount(a.Average)},
		{"Max", core.FormatAmount(a.Max)},
		{"Min", core.FormatAmount(a.Min)},
	})
	t.Render()

	sections := []struct {
		title  string
		groups []core.NamedAmount
	}{
		{"Category", a.ByCategory},
		{"Payment method", a.ByPaymentMethod},
		{"Tag", a.ByTag},
		{"Month", a.ByMonth},
	}
	for _, s := range sections {
		if len(s.groups) == 0 {
			continue
		}
		fmt.Fprintln(w)
		t := newTable(w, []string{s.title, "Count", "Amount"})
		t.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
		for _, g := range s.groups {
			t.Append([]string{g.Name, strconv.Itoa(g.Count), core.FormatAmount(g.Amount)})
		}
		t.Render()
	}
	return nil
}

// WriteActivities writes activity log entries, newest first as given.
func WriteActivities(w io.Writer, acts []core.Activity, format Format) error {
	if format == FormatJSON {
		if acts == nil {
			acts = []core.Activity{}
		}
		return writeJSON(w, acts)
	}
	t := newTable(w, []string{"Time", "User", "Type", "Details"})
	for _, a := range acts {
		t.Append([]string{a.Timestamp.UTC().Format("2006-01-02 15:04:05"), a.Username, a.Type, a.Details})
	}
	t.Render()
	return nil
}

// WriteAboveAverage writes expenses above their category average, one
// table for all categories in the given order.
func WriteAboveAverage(w io.Writer, rows []core.AboveAverage, format Format, withOwner bool) error {
	if format == FormatJSON {
		if rows == nil {
			rows = []core.AboveAverage{}
		}
		return writeJSON(w, rows)
	}

	header := []string{"Category", "ID", "Date", "Amount", "Category avg", "Diff %", "Description"}
	if withOwner {
		header = append(header, "Owner")
	}
	t := newTable(w, header)
	align := make([]int, len(header))
	for i := range align {
		align[i] = tablewriter.ALIGN_LEFT
	}
	for _, i := range []int{1, 3, 4, 5} {
		align[i] = tablewriter.ALIGN_RIGHT
	}
	t.SetColumnAlignment(align)
	for _, r := range rows {
		line := []string{
			orDash(r.Category),
			strconv.FormatInt(r.ID, 10),
			r.Date,
			core.FormatAmount(r.Amount),
			core.FormatAmount(r.CategoryAverage),
			"+" + r.DiffPercent.StringFixed(2) + "%",
			r.Description,
		}
		if withOwner {
			line = append(line, r.Owner)
		}
		t.Append(line)
	}
	t.SetFooter(footer(len(header), len(rows)))
	t.Render()
	return nil
}

// WriteUsers writes usernames with their roles.
func WriteUsers(w io.Writer, users []core.User, format Format) error {
	if format == FormatJSON {
		if users == nil {
			users = []core.User{}
		}
		return writeJSON(w, users)
	}
	t := newTable(w, []string{"Username", "Role"})
	for _, u := range users {
		t.Append([]string{u.Username, string(u.Role)})
	}
	t.Render()
	return nil
}

// WriteNames writes a single-column list of reference names under title.
func WriteNames(w io.Writer, title string, names []string, format Format) error {
	if format == FormatJSON {
		if names == nil {
			names = []string{}
		}
		return writeJSON(w, names)
	}
	t := newTable(w, []string{title})
	for _, n := range names {
		t.Append([]string{n})
	}
	t.Render()
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	return t
}

func rowAlignment(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = tablewriter.ALIGN_LEFT
	}
	out[0] = tablewriter.ALIGN_RIGHT
	out[2] = tablewriter.ALIGN_RIGHT
	return out
}

func footer(n, count int) []string {
	out := make([]string, n)
	out[0] = "Rows"
	out[1] = strconv.Itoa(count)
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
