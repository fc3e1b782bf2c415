package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for storage and filters.
const DateLayout = "2006-01-02"

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type (
	Role string

	Date struct {
		time.Time
	}

	// Actor is the user on whose behalf a query runs.
	Actor struct {
		Username string
		Role     Role
	}

	// Scope restricts which owners' rows a query may see.
	Scope struct {
		AllRows bool
		User    string
	}

	Expense struct {
		ID            int64
		Date          Date
		Amount        decimal.Decimal // negative for refunds
		Description   string
		Category      string
		PaymentMethod string
		PaymentDetail string // card/account identifier, optional
		Tag           string // optional
		Owner         string
	}

	// ExpenseRow is one expense as returned by a filtered query. Reference
	// names are nil when the join found nothing; Owner is only set for
	// all-rows scopes.
	ExpenseRow struct {
		ID            int64           `json:"id"`
		Date          string          `json:"date"`
		Amount        decimal.Decimal `json:"amount"`
		Description   string          `json:"description"`
		Category      *string         `json:"category"`
		Tag           *string         `json:"tag"`
		PaymentMethod *string         `json:"payment_method"`
		PaymentDetail *string         `json:"payment_detail,omitempty"`
		Owner         string          `json:"owner,omitempty"`
	}

	// User is an account known to the ledger.
	User struct {
		Username string `json:"username"`
		Role     Role   `json:"role"`
	}

	// Activity is a single audit entry for a user action.
	Activity struct {
		ID        int64     `json:"id"`
		Username  string    `json:"username"`
		Type      string    `json:"type"`
		Details   string    `json:"details"`
		Timestamp time.Time `json:"timestamp"`
	}
)

// Activity types written to the activity log.
const (
	ActivityListExpenses   = "list_expenses"
	ActivityAnalyzeExpense = "analyze_expenses"
	ActivityExportExpenses = "export_expenses"
	ActivityAddExpense     = "add_expense"
	ActivityUpdateExpense  = "update_expense"
	ActivityDeleteExpense  = "delete_expense"
	ActivityReportExpenses = "report_expenses"
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidRole      = errors.New("invalid role")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyPayment     = errors.New("empty payment method")
	ErrEmptyOwner       = errors.New("empty owner")
	ErrEmptyUsername    = errors.New("empty username")
	ErrDescriptionLimit = errors.New("description too long (max 200 characters)")

	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
)

// ParseRole accepts "admin" or "user", case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", ErrInvalidRole
	}
}

// SelfOnly returns a scope limited to rows owned by username.
func SelfOnly(username string) Scope {
	return Scope{User: username}
}

// AllRows returns an unrestricted scope.
func AllRows() Scope {
	return Scope{AllRows: true}
}

// Scope derives the row visibility of the actor from its role.
func (a Actor) Scope() Scope {
	if a.Role == RoleAdmin {
		return AllRows()
	}
	return SelfOnly(a.Username)
}

func (s Scope) String() string {
	if s.AllRows {
		return "all_rows"
	}
	return "self_only:" + s.User
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a strict YYYY-MM-DD calendar date. Dates that do not
// exist (2023-02-30) are rejected.
func ParseDate(s string) (Date, error) {
	if len(s) != len(DateLayout) {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NormalizeName lower-cases and trims a reference entity name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if _, err := Cents(e.Amount); err != nil {
		return err
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLimit
	}
	if NormalizeName(e.Category) == "" {
		return ErrEmptyCategory
	}
	if NormalizeName(e.PaymentMethod) == "" {
		return ErrEmptyPayment
	}
	if strings.TrimSpace(e.Owner) == "" {
		return ErrEmptyOwner
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return ErrEmptyUsername
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	return nil
}
