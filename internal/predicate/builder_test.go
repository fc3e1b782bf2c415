package predicate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/filter"
)

func mustParse(t *testing.T, text string) *filter.FilterSet {
	t.Helper()
	set, err := filter.Parse(text)
	require.NoError(t, err)
	return set
}

func strPtr(s string) *string { return &s }

func TestBuild_ScopeOnly(t *testing.T) {
	root := Build(mustParse(t, ""), core.SelfOnly("alice"))
	sql, err := ToSQL(root)
	require.NoError(t, err)
	assert.Equal(t, "ue.username = ?", sql.Where)
	assert.Equal(t, []any{"alice"}, sql.Args)

	root = Build(mustParse(t, ""), core.AllRows())
	assert.Nil(t, root)
	sql, err = ToSQL(root)
	require.NoError(t, err)
	assert.Empty(t, sql.Where)
	assert.Empty(t, sql.Args)
}

func TestBuild_SQL(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		scope  core.Scope
		where  string
		args   []any
	}{
		{
			name:   "same field in AND group",
			filter: "amount>10,amount<100",
			scope:  core.SelfOnly("alice"),
			where:  "ue.username = ? AND (e.amount_cents > ? AND e.amount_cents < ?)",
			args:   []any{"alice", int64(1000), int64(10000)},
		},
		{
			name:   "same field in OR group",
			filter: "category=food,category=rent",
			scope:  core.AllRows(),
			where:  "(c.category_name = ? OR c.category_name = ?)",
			args:   []any{"food", "rent"},
		},
		{
			name:   "different OR fields still join with AND",
			filter: "category=food,tag=trip,payment_method=cash",
			scope:  core.AllRows(),
			where:  "(c.category_name = ?) AND (t.tag_name = ?) AND (pm.payment_method_name = ?)",
			args:   []any{"food", "trip", "cash"},
		},
		{
			name:   "month compares extracted month",
			filter: "month=march,month=4",
			scope:  core.SelfOnly("bob"),
			where:  "ue.username = ? AND (strftime('%m', e.date) = ? OR strftime('%m', e.date) = ?)",
			args:   []any{"bob", "03", "04"},
		},
		{
			name:   "field order follows first appearance",
			filter: "date>=2023-01-01,category=food,date<2023-07-01,amount!=0",
			scope:  core.AllRows(),
			where:  "(e.date >= ? AND e.date < ?) AND (c.category_name = ?) AND (e.amount_cents != ?)",
			args:   []any{"2023-01-01", "2023-07-01", "food", int64(0)},
		},
		{
			name:   "non-numeric amount bound as text",
			filter: "amount<abc",
			scope:  core.AllRows(),
			where:  "(e.amount_cents < ?)",
			args:   []any{"abc"},
		},
		{
			name:   "fractional literal below uses the next cent up",
			filter: "amount<25.004",
			scope:  core.AllRows(),
			where:  "(e.amount_cents < ?)",
			args:   []any{int64(2501)},
		},
		{
			name:   "fractional literal at most uses the cent below",
			filter: "amount<=24.996",
			scope:  core.AllRows(),
			where:  "(e.amount_cents <= ?)",
			args:   []any{int64(2499)},
		},
		{
			name:   "fractional equality matches nothing",
			filter: "amount=25.005",
			scope:  core.AllRows(),
			where:  "(e.amount_cents IS NULL)",
		},
		{
			name:   "fractional inequality matches everything",
			filter: "amount!=25.005",
			scope:  core.SelfOnly("alice"),
			where:  "ue.username = ? AND (e.amount_cents IS NOT NULL)",
			args:   []any{"alice"},
		},
		{
			name:   "literal beyond int64 cents does not wrap",
			filter: "amount<1e17,amount>-100000000000000000",
			scope:  core.AllRows(),
			where:  "(e.amount_cents IS NOT NULL AND e.amount_cents IS NOT NULL)",
		},
		{
			name:   "huge lower bound matches nothing",
			filter: "amount>=1e17",
			scope:  core.AllRows(),
			where:  "(e.amount_cents IS NULL)",
		},
		{
			name:   "injection attempt stays a bound value",
			filter: "category=x' OR '1'='1",
			scope:  core.SelfOnly("alice"),
			where:  "ue.username = ? AND (c.category_name = ?)",
			args:   []any{"alice", "x' OR '1'='1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := ToSQL(Build(mustParse(t, tt.filter), tt.scope))
			require.NoError(t, err)
			assert.Equal(t, tt.where, sql.Where)
			assert.Equal(t, tt.args, sql.Args)
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	const text = "tag=a,amount>1,month=may,category=x,payment_method=card,date<2024-01-01,tag=b"
	first, err := ToSQL(Build(mustParse(t, text), core.SelfOnly("alice")))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := ToSQL(Build(mustParse(t, text), core.SelfOnly("alice")))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuilder_Accumulates(t *testing.T) {
	b := NewBuilder(core.AllRows())
	b.Add(filter.Constraint{Field: filter.FieldCategory, Op: filter.OpEq, Value: "food"})
	b.Add(filter.Constraint{Field: filter.FieldAmount, Op: filter.OpGt, Value: "5"})
	b.Add(filter.Constraint{Field: filter.FieldCategory, Op: filter.OpEq, Value: "rent"})

	sql, err := ToSQL(b.Build())
	require.NoError(t, err)
	assert.Equal(t, "(c.category_name = ? OR c.category_name = ?) AND (e.amount_cents > ?)", sql.Where)
	assert.Equal(t, "((category_name = food OR category_name = rent) AND (amount > 5))", b.Build().String())
}

func TestToSQL_RejectsForeignNodes(t *testing.T) {
	_, err := ToSQL(&And{Terms: []Node{&Compare{Attr: "password", Op: filter.OpEq, Value: "x"}}})
	require.ErrorIs(t, err, errUnsupportedNode)

	_, err = ToSQL(&Compare{Attr: filter.AttrTag, Op: "; DROP TABLE expenses; --", Value: "x"})
	require.ErrorIs(t, err, errUnsupportedNode)
}

func TestEval(t *testing.T) {
	food := Record{Owner: "alice", Date: "2023-03-10", Amount: decimal.NewFromInt(25), Category: strPtr("food")}
	rent := Record{Owner: "alice", Date: "2023-06-01", Amount: decimal.NewFromInt(150), Category: strPtr("rent"), Tag: strPtr("home")}
	util := Record{Owner: "bob", Date: "2023-03-15", Amount: decimal.NewFromInt(200), Category: strPtr("utilities")}
	small := Record{Owner: "alice", Date: "2023-01-01", Amount: decimal.NewFromInt(5)}
	mid := Record{Owner: "alice", Date: "2023-01-02", Amount: decimal.NewFromInt(50)}

	eval := func(text string, scope core.Scope, rec Record) bool {
		return Eval(Build(mustParse(t, text), scope), rec)
	}

	t.Run("amount range is a conjunction", func(t *testing.T) {
		assert.False(t, eval("amount>10,amount<100", core.AllRows(), small))
		assert.False(t, eval("amount>10,amount<100", core.AllRows(), util))
		assert.True(t, eval("amount>10,amount<100", core.AllRows(), mid))
	})

	t.Run("categories are a disjunction", func(t *testing.T) {
		assert.True(t, eval("category=food,category=rent", core.AllRows(), food))
		assert.True(t, eval("category=food,category=rent", core.AllRows(), rent))
		assert.False(t, eval("category=food,category=rent", core.AllRows(), util))
	})

	t.Run("month spellings agree", func(t *testing.T) {
		for _, text := range []string{"month=march", "month=3", "month=03"} {
			assert.True(t, eval(text, core.AllRows(), food), text)
			assert.False(t, eval(text, core.AllRows(), rent), text)
		}
	})

	t.Run("scope hides other owners", func(t *testing.T) {
		assert.False(t, eval("", core.SelfOnly("alice"), util))
		assert.False(t, eval("amount>=0", core.SelfOnly("alice"), util))
		assert.True(t, eval("", core.AllRows(), util))
	})

	t.Run("missing reference name never matches", func(t *testing.T) {
		assert.False(t, eval("tag=home", core.AllRows(), food))
		assert.False(t, eval("tag!=home", core.AllRows(), food))
		assert.True(t, eval("tag!=work", core.AllRows(), rent))
	})

	t.Run("non-numeric amount sorts after numbers", func(t *testing.T) {
		assert.True(t, eval("amount<abc", core.AllRows(), mid))
		assert.False(t, eval("amount>abc", core.AllRows(), mid))
		assert.False(t, eval("amount=abc", core.AllRows(), mid))
	})

	t.Run("date bounds", func(t *testing.T) {
		assert.True(t, eval("date>=2023-03-01,date<=2023-03-31", core.AllRows(), food))
		assert.False(t, eval("date>=2023-03-01,date<=2023-03-31", core.AllRows(), rent))
	})

	t.Run("nil root matches", func(t *testing.T) {
		assert.True(t, Eval(nil, util))
	})
}

func TestEval_AmountLiteralsAreExact(t *testing.T) {
	rec := Record{Owner: "alice", Date: "2023-06-10", Amount: decimal.NewFromInt(25)}
	tests := map[string]bool{
		"amount<25.004":  true,
		"amount<=24.996": false,
		"amount=25.000":  true,
		"amount=25.001":  false,
		"amount>24.999":  true,
		"amount<1e17":    true,
		"amount>-1e17":   true,
		"amount>=1e17":   false,
	}
	for text, want := range tests {
		t.Run(text, func(t *testing.T) {
			assert.Equal(t, want, Eval(Build(mustParse(t, text), core.AllRows()), rec))
		})
	}
}
