// Package store declares the ports the query service needs from a backend.
package store

import (
	"context"

	"ledger/internal/core"
	"ledger/internal/predicate"
)

// Ports for outbound adapters.
type (
	// ExpenseQuerier returns the rows matching a predicate tree. A nil root
	// returns every row.
	ExpenseQuerier interface {
		QueryExpenses(ctx context.Context, root predicate.Node, includeOwner bool) ([]core.ExpenseRow, error)
	}

	UserReader interface {
		GetUser(ctx context.Context, username string) (core.User, error)
	}

	ActivityRecorder interface {
		RecordActivity(ctx context.Context, a core.Activity) error
	}

	ActivityLister interface {
		ListActivities(ctx context.Context, username string, limit int) ([]core.Activity, error)
	}

	// ExpenseWriter changes stored expenses. Unknown ids are
	// core.ErrExpenseNotFound.
	ExpenseWriter interface {
		AddExpense(ctx context.Context, e core.Expense) (int64, error)
		UpdateExpense(ctx context.Context, id int64, c core.ExpenseChange) error
		DeleteExpense(ctx context.Context, id int64) error
		ExpenseOwner(ctx context.Context, id int64) (string, error)
	}

	// Seeder creates reference data and expenses.
	Seeder interface {
		ExpenseWriter
		AddUser(ctx context.Context, u core.User) error
		AddCategory(ctx context.Context, name string) error
		AddPaymentMethod(ctx context.Context, name string) error
	}

	// Catalog lists and removes reference data. Categories and payment
	// methods still linked to an expense cannot be deleted; deleting a user
	// removes their expenses and activity entries with them.
	Catalog interface {
		ListUsers(ctx context.Context) ([]core.User, error)
		ListCategories(ctx context.Context) ([]string, error)
		ListPaymentMethods(ctx context.Context) ([]string, error)
		DeleteUser(ctx context.Context, username string) error
		DeleteCategory(ctx context.Context, name string) error
		DeletePaymentMethod(ctx context.Context, name string) error
	}

	// Pinger reports backend health for the readiness check.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Backend is everything a storage implementation provides.
	Backend interface {
		ExpenseQuerier
		UserReader
		ActivityRecorder
		ActivityLister
		Seeder
		Catalog
		Pinger
		Close() error
	}

	// RowExporter appends query results to an external destination.
	RowExporter interface {
		ExportRows(ctx context.Context, rows []core.ExpenseRow) (int, error)
	}
)
