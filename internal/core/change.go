package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ExpenseField names an expense attribute that can be changed after the
// expense is recorded.
type ExpenseField string

const (
	ChangeAmount        ExpenseField = "amount"
	ChangeDate          ExpenseField = "date"
	ChangeDescription   ExpenseField = "description"
	ChangeCategory      ExpenseField = "category"
	ChangeTag           ExpenseField = "tag"
	ChangePaymentMethod ExpenseField = "payment_method"
)

var (
	ErrExpenseNotFound    = errors.New("expense not found")
	ErrFieldNotUpdatable  = errors.New("field cannot be updated")
	ErrCategoryInUse      = errors.New("category has expenses")
	ErrPaymentMethodInUse = errors.New("payment method has expenses")
)

// ExpenseChange sets one field of a stored expense. Amount and Date carry
// the parsed value for their fields; every other field uses Text. An empty
// tag removes the expense's tag.
type ExpenseChange struct {
	Field  ExpenseField
	Amount decimal.Decimal
	Date   Date
	Text   string
}

// ParseExpenseChange validates value for field. Field names are matched
// case-insensitively.
func ParseExpenseChange(field, value string) (ExpenseChange, error) {
	c := ExpenseChange{Field: ExpenseField(strings.ToLower(strings.TrimSpace(field)))}
	switch c.Field {
	case ChangeAmount:
		amt, err := ParseAmount(value)
		if err != nil {
			return ExpenseChange{}, err
		}
		c.Amount = amt
	case ChangeDate:
		d, err := ParseDate(strings.TrimSpace(value))
		if err != nil {
			return ExpenseChange{}, err
		}
		c.Date = d
	case ChangeDescription:
		c.Text = value
	case ChangeCategory, ChangeTag, ChangePaymentMethod:
		c.Text = NormalizeName(value)
	default:
		return ExpenseChange{}, fmt.Errorf("%w: %q", ErrFieldNotUpdatable, field)
	}
	return c, c.Validate()
}

// Validate applies the same rules Expense.Validate uses to the changed field.
func (c ExpenseChange) Validate() error {
	switch c.Field {
	case ChangeAmount:
		_, err := Cents(c.Amount)
		return err
	case ChangeDate:
		return c.Date.Validate()
	case ChangeDescription:
		if len(c.Text) > 200 {
			return ErrDescriptionLimit
		}
	case ChangeCategory:
		if NormalizeName(c.Text) == "" {
			return ErrEmptyCategory
		}
	case ChangePaymentMethod:
		if NormalizeName(c.Text) == "" {
			return ErrEmptyPayment
		}
	case ChangeTag:
	default:
		return fmt.Errorf("%w: %q", ErrFieldNotUpdatable, c.Field)
	}
	return nil
}

// Apply writes the change into e. Reference names are normalized; whether
// they exist is up to the store.
func (c ExpenseChange) Apply(e *Expense) {
	switch c.Field {
	case ChangeAmount:
		e.Amount = c.Amount.Round(2)
	case ChangeDate:
		e.Date = c.Date
	case ChangeDescription:
		e.Description = c.Text
	case ChangeCategory:
		e.Category = NormalizeName(c.Text)
	case ChangeTag:
		e.Tag = NormalizeName(c.Text)
	case ChangePaymentMethod:
		e.PaymentMethod = NormalizeName(c.Text)
	}
}

// Value renders the new value the way it is stored.
func (c ExpenseChange) Value() string {
	switch c.Field {
	case ChangeAmount:
		return FormatAmount(c.Amount)
	case ChangeDate:
		return c.Date.String()
	case ChangeDescription:
		return c.Text
	default:
		return NormalizeName(c.Text)
	}
}

func (c ExpenseChange) String() string {
	return string(c.Field) + "=" + c.Value()
}
