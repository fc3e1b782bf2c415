package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func strPtr(s string) *string { return &s }

func sampleRows() []core.ExpenseRow {
	return []core.ExpenseRow{
		{ID: 2, Date: "2023-06-01", Amount: decimal.NewFromInt(150), Description: "June rent",
			Category: strPtr("rent"), Tag: strPtr("home"), PaymentMethod: strPtr("card"), PaymentDetail: strPtr("visa-1234"), Owner: "alice"},
		{ID: 1, Date: "2023-05-10", Amount: decimal.RequireFromString("-12.5"), Description: "refund", Owner: "bob"},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "TABLE": FormatTable, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("csv")
	assert.ErrorContains(t, err, `unknown output format "csv"`)
}

func TestWriteRows_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, sampleRows(), FormatTable, true))
	out := buf.String()

	for _, want := range []string{"Owner", "June rent", "150.00", "-12.50", "visa-1234", "alice", "bob", "Rows"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "June rent"), strings.Index(out, "refund"), "row order is kept")

	buf.Reset()
	require.NoError(t, WriteRows(&buf, sampleRows(), FormatTable, false))
	assert.NotContains(t, buf.String(), "Owner")
	assert.NotContains(t, buf.String(), "alice")
}

func TestWriteRows_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, sampleRows(), FormatJSON, true))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "rent", got[0]["category"])
	assert.Nil(t, got[1]["category"])

	buf.Reset()
	require.NoError(t, WriteRows(&buf, nil, FormatJSON, false))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteAnalytics(t *testing.T) {
	a := core.Summarize(sampleRows())

	var buf bytes.Buffer
	require.NoError(t, WriteAnalytics(&buf, a, FormatTable))
	out := buf.String()
	for _, want := range []string{"Total", "137.50", "Category", "rent", "Payment method", "2023-06"} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	require.NoError(t, WriteAnalytics(&buf, core.Analytics{}, FormatTable))
	assert.NotContains(t, buf.String(), "Payment method", "empty breakdowns are skipped")
}

func TestWriteActivities(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteActivities(&buf, []core.Activity{
		{Username: "alice", Type: core.ActivityListExpenses, Details: "amount>5"},
	}, FormatTable))
	assert.Contains(t, buf.String(), "list_expenses")
	assert.Contains(t, buf.String(), "amount>5")
}

func TestWriteAboveAverage(t *testing.T) {
	rows := core.AboveCategoryAverage([]core.ExpenseRow{
		{ID: 1, Date: "2023-06-01", Amount: decimal.NewFromInt(150), Category: strPtr("rent"), Owner: "alice"},
		{ID: 3, Date: "2023-05-01", Amount: decimal.NewFromInt(900), Category: strPtr("rent"), Description: "deposit", Owner: "bob"},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteAboveAverage(&buf, rows, FormatTable, true))
	out := buf.String()
	assert.Contains(t, out, "Category avg")
	assert.Contains(t, out, "525.00")
	assert.Contains(t, out, "+71.43%")
	assert.Contains(t, out, "deposit")
	assert.NotContains(t, out, "150.00")

	buf.Reset()
	require.NoError(t, WriteAboveAverage(&buf, nil, FormatJSON, false))
	assert.JSONEq(t, `[]`, buf.String())

	buf.Reset()
	require.NoError(t, WriteAboveAverage(&buf, rows, FormatJSON, false))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, float64(3), decoded[0]["id"])
	assert.Equal(t, "525", decoded[0]["category_average"])
}

func TestWriteUsersAndNames(t *testing.T) {
	var buf bytes.Buffer
	users := []core.User{{Username: "alice", Role: core.RoleUser}, {Username: "root", Role: core.RoleAdmin}}
	require.NoError(t, WriteUsers(&buf, users, FormatTable))
	assert.Contains(t, buf.String(), "Username")
	assert.Contains(t, buf.String(), "admin")

	buf.Reset()
	require.NoError(t, WriteUsers(&buf, users, FormatJSON))
	assert.JSONEq(t, `[{"username":"alice","role":"user"},{"username":"root","role":"admin"}]`, buf.String())

	buf.Reset()
	require.NoError(t, WriteNames(&buf, "Category", []string{"food", "rent"}, FormatTable))
	assert.True(t, strings.Contains(buf.String(), "food") && strings.Contains(buf.String(), "rent"), buf.String())

	buf.Reset()
	require.NoError(t, WriteNames(&buf, "Category", nil, FormatJSON))
	assert.JSONEq(t, `[]`, buf.String())
}
