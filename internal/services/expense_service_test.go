package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
)

func newExpense(owner string) core.Expense {
	return core.Expense{
		Date:          core.NewDate(2023, 7, 4),
		Amount:        decimal.RequireFromString("12.5"),
		Category:      "Food",
		PaymentMethod: "cash",
		Owner:         owner,
	}
}

func TestExpenseService_CreateExpense(t *testing.T) {
	ctx := context.Background()
	alice := core.Actor{Username: "alice", Role: core.RoleUser}
	root := core.Actor{Username: "root", Role: core.RoleAdmin}

	t.Run("owner defaults to actor", func(t *testing.T) {
		s := newStore(t)
		svc := NewExpenseService(s, s, nil, log.Discard())

		id, err := svc.CreateExpense(ctx, alice, newExpense(""))
		require.NoError(t, err)
		assert.Equal(t, int64(4), id)

		rows, err := NewQueryService(s, s, nil, WithLogger(log.Discard())).List(ctx, alice, "date=2023-07-04")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("12.5")), rows[0].Amount.String())

		acts, err := s.ListActivities(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, acts, 1)
		assert.Equal(t, core.ActivityAddExpense, acts[0].Type)
		assert.Equal(t, "#4 2023-07-04 12.50 food", acts[0].Details)
	})

	t.Run("users cannot record for others", func(t *testing.T) {
		s := newStore(t)
		svc := NewExpenseService(s, s, nil, log.Discard())

		_, err := svc.CreateExpense(ctx, alice, newExpense("bob"))
		require.ErrorIs(t, err, ErrForbidden)

		id, err := svc.CreateExpense(ctx, root, newExpense("bob"))
		require.NoError(t, err)
		assert.Positive(t, id)
	})

	t.Run("store errors keep their kind", func(t *testing.T) {
		s := newStore(t)
		svc := NewExpenseService(s, s, nil, log.Discard())

		e := newExpense("")
		e.Category = "travel"
		_, err := svc.CreateExpense(ctx, alice, e)
		require.ErrorIs(t, err, core.ErrUnknownCategory)

		acts, _ := s.ListActivities(ctx, "", 10)
		assert.Empty(t, acts)
	})

	t.Run("activity goes through the publisher", func(t *testing.T) {
		s := newStore(t)
		pub := &fakePublisher{}
		svc := NewExpenseService(s, s, pub, log.Discard())

		_, err := svc.CreateExpense(ctx, alice, newExpense(""))
		require.NoError(t, err)
		require.Len(t, pub.msgs, 1)
		assert.Equal(t, core.ActivityAddExpense, pub.msgs[0].Type)

		pub.err = amqp.ErrCircuitOpen
		_, err = svc.CreateExpense(ctx, alice, newExpense(""))
		require.NoError(t, err)
		acts, _ := s.ListActivities(ctx, "alice", 10)
		require.Len(t, acts, 1)
	})
}

func TestExpenseService_UpdateExpense(t *testing.T) {
	ctx := context.Background()
	alice := core.Actor{Username: "alice", Role: core.RoleUser}
	root := core.Actor{Username: "root", Role: core.RoleAdmin}

	change := func(field, value string) core.ExpenseChange {
		c, err := core.ParseExpenseChange(field, value)
		require.NoError(t, err)
		return c
	}

	s := newStore(t)
	svc := NewExpenseService(s, s, nil, log.Discard())

	require.NoError(t, svc.UpdateExpense(ctx, alice, 1, change("amount", "30")))
	acts, err := s.ListActivities(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, core.ActivityUpdateExpense, acts[0].Type)
	assert.Equal(t, "#1 amount=30.00", acts[0].Details)

	err = svc.UpdateExpense(ctx, alice, 3, change("amount", "1"))
	require.ErrorIs(t, err, core.ErrExpenseNotFound, "another user's expense reads as missing")
	require.ErrorIs(t, svc.UpdateExpense(ctx, alice, 99, change("amount", "1")), core.ErrExpenseNotFound)
	require.ErrorIs(t, svc.UpdateExpense(ctx, alice, 1, change("category", "travel")), core.ErrUnknownCategory)

	require.NoError(t, svc.UpdateExpense(ctx, root, 3, change("category", "food")))

	rows, err := NewQueryService(s, s, nil, WithLogger(log.Discard())).List(ctx, root, "")
	require.NoError(t, err)
	byID := map[int64]core.ExpenseRow{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	assert.Equal(t, "30.00", core.FormatAmount(byID[1].Amount))
	assert.Equal(t, "900.00", core.FormatAmount(byID[3].Amount))
	assert.Equal(t, "food", *byID[3].Category)

	acts, _ = s.ListActivities(ctx, "", 10)
	assert.Len(t, acts, 2, "failed updates are not logged")
}

func TestExpenseService_DeleteExpense(t *testing.T) {
	ctx := context.Background()
	alice := core.Actor{Username: "alice", Role: core.RoleUser}
	root := core.Actor{Username: "root", Role: core.RoleAdmin}

	s := newStore(t)
	pub := &fakePublisher{}
	svc := NewExpenseService(s, s, pub, log.Discard())

	require.ErrorIs(t, svc.DeleteExpense(ctx, alice, 3), core.ErrExpenseNotFound)
	require.NoError(t, svc.DeleteExpense(ctx, alice, 1))
	require.ErrorIs(t, svc.DeleteExpense(ctx, alice, 1), core.ErrExpenseNotFound)
	require.NoError(t, svc.DeleteExpense(ctx, root, 3))

	rows, err := s.QueryExpenses(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, rowIDs(rows))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, core.ActivityDeleteExpense, pub.msgs[0].Type)
	assert.Equal(t, "#1", pub.msgs[0].Details)
	assert.Equal(t, "root", pub.msgs[1].Username)
}
