package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/predicate"

	_ "modernc.org/sqlite"
)

// baseExpenseQuery joins every reference table with LEFT JOINs so expenses
// without a tag still come back. The aliases are the ones predicate.ToSQL
// renders against.
const baseExpenseQuery = `SELECT
    e.expense_id,
    e.date,
    e.amount_cents,
    e.description,
    c.category_name,
    t.tag_name,
    pm.payment_method_name,
    pme.payment_detail_identifier,
    ue.username
FROM expenses e
LEFT JOIN category_expense ce ON ce.expense_id = e.expense_id
LEFT JOIN categories c ON c.category_id = ce.category_id
LEFT JOIN tag_expense te ON te.expense_id = e.expense_id
LEFT JOIN tags t ON t.tag_id = te.tag_id
LEFT JOIN payment_method_expense pme ON pme.expense_id = e.expense_id
LEFT JOIN payment_methods pm ON pm.payment_method_id = pme.payment_method_id
LEFT JOIN user_expense ue ON ue.expense_id = e.expense_id`

const expenseOrder = ` ORDER BY e.date DESC, e.expense_id DESC`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// QueryExpenses renders root to SQL and runs the listing query with it.
// Owner is only filled in when includeOwner is set.
func (r *SQLiteRepository) QueryExpenses(ctx context.Context, root predicate.Node, includeOwner bool) ([]core.ExpenseRow, error) {
	where, err := predicate.ToSQL(root)
	if err != nil {
		return nil, fmt.Errorf("render predicate: %w", err)
	}

	var q strings.Builder
	q.WriteString(baseExpenseQuery)
	if where.Where != "" {
		q.WriteString(" WHERE ")
		q.WriteString(where.Where)
	}
	q.WriteString(expenseOrder)

	rows, err := r.db.QueryContext(ctx, q.String(), where.Args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRow
	for rows.Next() {
		var row core.ExpenseRow
		var cents int64
		var category, tag, payment, detail, owner sql.NullString
		if err := rows.Scan(&row.ID, &row.Date, &cents, &row.Description,
			&category, &tag, &payment, &detail, &owner); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		row.Amount = decimal.New(cents, -2)
		row.Category = nullable(category)
		row.Tag = nullable(tag)
		row.PaymentMethod = nullable(payment)
		row.PaymentDetail = nullable(detail)
		if includeOwner {
			row.Owner = owner.String
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// AddExpense stores e with its reference links in one transaction. The
// owner, category and payment method must already exist; the tag is created
// on first use.
func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getUser(ctx, tx, e.Owner); err != nil {
		return 0, err
	}
	categoryID, err := lookupID(ctx, tx, "SELECT category_id FROM categories WHERE category_name = ?",
		core.NormalizeName(e.Category), core.ErrUnknownCategory)
	if err != nil {
		return 0, err
	}
	paymentID, err := lookupID(ctx, tx, "SELECT payment_method_id FROM payment_methods WHERE payment_method_name = ?",
		core.NormalizeName(e.PaymentMethod), core.ErrUnknownPaymentMethod)
	if err != nil {
		return 0, err
	}

	cents, err := core.Cents(e.Amount)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO expenses (date, amount_cents, description) VALUES (?, ?, ?)",
		e.Date.String(), cents, e.Description)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense id: %w", err)
	}

	var detail any
	if d := strings.TrimSpace(e.PaymentDetail); d != "" {
		detail = d
	}
	links := []struct {
		query string
		args  []any
	}{
		{"INSERT INTO category_expense (expense_id, category_id) VALUES (?, ?)", []any{id, categoryID}},
		{"INSERT INTO payment_method_expense (expense_id, payment_method_id, payment_detail_identifier) VALUES (?, ?, ?)", []any{id, paymentID, detail}},
		{"INSERT INTO user_expense (expense_id, username) VALUES (?, ?)", []any{id, e.Owner}},
	}
	for _, l := range links {
		if _, err := tx.ExecContext(ctx, l.query, l.args...); err != nil {
			return 0, fmt.Errorf("link expense: %w", err)
		}
	}

	if tag := core.NormalizeName(e.Tag); tag != "" {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags (tag_name) VALUES (?)", tag); err != nil {
			return 0, fmt.Errorf("create tag: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tag_expense (expense_id, tag_id) SELECT ?, tag_id FROM tags WHERE tag_name = ?",
			id, tag); err != nil {
			return 0, fmt.Errorf("link tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"owner", e.Owner,
		"amount_cents", cents,
		"date", e.Date.String())

	return id, nil
}

// AddCategory creates a category. Adding an existing name is a no-op.
func (r *SQLiteRepository) AddCategory(ctx context.Context, name string) error {
	return r.addName(ctx, "INSERT OR IGNORE INTO categories (category_name) VALUES (?)", name, core.ErrEmptyCategory)
}

// AddPaymentMethod creates a payment method. Adding an existing name is a no-op.
func (r *SQLiteRepository) AddPaymentMethod(ctx context.Context, name string) error {
	return r.addName(ctx, "INSERT OR IGNORE INTO payment_methods (payment_method_name) VALUES (?)", name, core.ErrEmptyPayment)
}

func (r *SQLiteRepository) addName(ctx context.Context, query, name string, errEmpty error) error {
	name = core.NormalizeName(name)
	if name == "" {
		return errEmpty
	}
	if _, err := r.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("insert %q: %w", name, err)
	}
	return nil
}

func (r *SQLiteRepository) AddUser(ctx context.Context, u core.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	role, _ := core.ParseRole(string(u.Role))
	res, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO users (username, role) VALUES (?, ?)",
		strings.TrimSpace(u.Username), string(role))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrUserExists, u.Username)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, username string) (core.User, error) {
	return getUser(ctx, r.db, username)
}

// RecordActivity appends an audit entry.
func (r *SQLiteRepository) RecordActivity(ctx context.Context, a core.Activity) error {
	ts := a.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO activity_logs (username, activity_type, details, timestamp) VALUES (?, ?, ?, ?)",
		a.Username, a.Type, a.Details, ts.UTC())
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListActivities returns the newest entries first. An empty username lists
// every user's entries.
func (r *SQLiteRepository) ListActivities(ctx context.Context, username string, limit int) ([]core.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT log_id, username, activity_type, details, timestamp FROM activity_logs"
	args := []any{}
	if username != "" {
		query += " WHERE username = ?"
		args = append(args, username)
	}
	query += " ORDER BY log_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var out []core.Activity
	for rows.Next() {
		var a core.Activity
		if err := rows.Scan(&a.ID, &a.Username, &a.Type, &a.Details, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}

// UpdateExpense applies c to expense id in one transaction. Category and
// payment method must exist; a new tag is created on first use and an empty
// one unlinks the tag.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, c core.ExpenseChange) error {
	if err := c.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := expenseOwner(ctx, tx, id); err != nil {
		return err
	}

	name := core.NormalizeName(c.Text)
	switch c.Field {
	case core.ChangeAmount:
		cents, err := core.Cents(c.Amount)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE expenses SET amount_cents = ? WHERE expense_id = ?", cents, id)
		if err != nil {
			return fmt.Errorf("update amount: %w", err)
		}
	case core.ChangeDate:
		if _, err := tx.ExecContext(ctx, "UPDATE expenses SET date = ? WHERE expense_id = ?", c.Date.String(), id); err != nil {
			return fmt.Errorf("update date: %w", err)
		}
	case core.ChangeDescription:
		if _, err := tx.ExecContext(ctx, "UPDATE expenses SET description = ? WHERE expense_id = ?", c.Text, id); err != nil {
			return fmt.Errorf("update description: %w", err)
		}
	case core.ChangeCategory:
		categoryID, err := lookupID(ctx, tx, "SELECT category_id FROM categories WHERE category_name = ?",
			name, core.ErrUnknownCategory)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO category_expense (expense_id, category_id) VALUES (?, ?)
			ON CONFLICT(expense_id) DO UPDATE SET category_id = excluded.category_id`,
			id, categoryID); err != nil {
			return fmt.Errorf("relink category: %w", err)
		}
	case core.ChangePaymentMethod:
		paymentID, err := lookupID(ctx, tx, "SELECT payment_method_id FROM payment_methods WHERE payment_method_name = ?",
			name, core.ErrUnknownPaymentMethod)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payment_method_expense (expense_id, payment_method_id) VALUES (?, ?)
			ON CONFLICT(expense_id) DO UPDATE SET payment_method_id = excluded.payment_method_id`,
			id, paymentID); err != nil {
			return fmt.Errorf("relink payment method: %w", err)
		}
	case core.ChangeTag:
		if _, err := tx.ExecContext(ctx, "DELETE FROM tag_expense WHERE expense_id = ?", id); err != nil {
			return fmt.Errorf("unlink tag: %w", err)
		}
		if name != "" {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags (tag_name) VALUES (?)", name); err != nil {
				return fmt.Errorf("create tag: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO tag_expense (expense_id, tag_id) SELECT ?, tag_id FROM tags WHERE tag_name = ?",
				id, name); err != nil {
				return fmt.Errorf("link tag: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit expense update: %w", err)
	}
	slog.InfoContext(ctx, "Expense updated in SQLite", "id", id, "field", string(c.Field))
	return nil
}

// DeleteExpense removes expense id. Its reference links go with it through
// ON DELETE CASCADE.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE expense_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: #%d", core.ErrExpenseNotFound, id)
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	return nil
}

func (r *SQLiteRepository) ExpenseOwner(ctx context.Context, id int64) (string, error) {
	return expenseOwner(ctx, r.db, id)
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT username, role FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	out := []core.User{}
	for rows.Next() {
		var u core.User
		var role string
		if err := rows.Scan(&u.Username, &role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = core.Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	return r.listNames(ctx, "SELECT category_name FROM categories ORDER BY category_name")
}

func (r *SQLiteRepository) ListPaymentMethods(ctx context.Context) ([]string, error) {
	return r.listNames(ctx, "SELECT payment_method_name FROM payment_methods ORDER BY payment_method_name")
}

func (r *SQLiteRepository) listNames(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return out, nil
}

// DeleteUser removes username together with their expenses and activity
// log entries.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, username string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getUser(ctx, tx, username); err != nil {
		return err
	}
	for _, q := range []string{
		"DELETE FROM expenses WHERE expense_id IN (SELECT expense_id FROM user_expense WHERE username = ?)",
		"DELETE FROM activity_logs WHERE username = ?",
		"DELETE FROM users WHERE username = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, username); err != nil {
			return fmt.Errorf("delete user %s: %w", username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user delete: %w", err)
	}
	slog.InfoContext(ctx, "User deleted from SQLite", "username", username)
	return nil
}

// DeleteCategory removes an unused category.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, name string) error {
	return r.deleteName(ctx, name, nameTable{
		lookup:     "SELECT category_id FROM categories WHERE category_name = ?",
		usage:      "SELECT COUNT(*) FROM category_expense WHERE category_id = ?",
		remove:     "DELETE FROM categories WHERE category_id = ?",
		errMissing: core.ErrUnknownCategory,
		errInUse:   core.ErrCategoryInUse,
	})
}

// DeletePaymentMethod removes an unused payment method.
func (r *SQLiteRepository) DeletePaymentMethod(ctx context.Context, name string) error {
	return r.deleteName(ctx, name, nameTable{
		lookup:     "SELECT payment_method_id FROM payment_methods WHERE payment_method_name = ?",
		usage:      "SELECT COUNT(*) FROM payment_method_expense WHERE payment_method_id = ?",
		remove:     "DELETE FROM payment_methods WHERE payment_method_id = ?",
		errMissing: core.ErrUnknownPaymentMethod,
		errInUse:   core.ErrPaymentMethodInUse,
	})
}

type nameTable struct {
	lookup, usage, remove string
	errMissing, errInUse  error
}

func (r *SQLiteRepository) deleteName(ctx context.Context, name string, t nameTable) error {
	name = core.NormalizeName(name)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := lookupID(ctx, tx, t.lookup, name, t.errMissing)
	if err != nil {
		return err
	}
	var n int
	if err := tx.QueryRowContext(ctx, t.usage, id).Scan(&n); err != nil {
		return fmt.Errorf("count usage of %q: %w", name, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s is used by %d expenses", t.errInUse, name, n)
	}
	if _, err := tx.ExecContext(ctx, t.remove, id); err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getUser(ctx context.Context, q queryer, username string) (core.User, error) {
	var u core.User
	var role string
	err := q.QueryRowContext(ctx, "SELECT username, role FROM users WHERE username = ?", username).Scan(&u.Username, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("%w: %s", core.ErrUserNotFound, username)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = core.Role(role)
	return u, nil
}

func expenseOwner(ctx context.Context, q queryer, id int64) (string, error) {
	var owner sql.NullString
	err := q.QueryRowContext(ctx,
		"SELECT ue.username FROM expenses e LEFT JOIN user_expense ue ON ue.expense_id = e.expense_id WHERE e.expense_id = ?",
		id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: #%d", core.ErrExpenseNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("expense owner: %w", err)
	}
	return owner.String, nil
}

func lookupID(ctx context.Context, q queryer, query, name string, errMissing error) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, query, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", errMissing, name)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup %q: %w", name, err)
	}
	return id, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
