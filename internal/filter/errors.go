package filter

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every *Error unwraps to exactly one of them.
var (
	ErrInvalidFilterSyntax = errors.New("invalid filter syntax")
	ErrUnknownField        = errors.New("unknown field")
	ErrInvalidDateFormat   = errors.New("invalid date format")
)

// Error describes why a filter string was rejected.
type Error struct {
	Kind  error
	Expr  string
	Field string
	Value string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnknownField:
		return fmt.Sprintf("%v %q in %q", e.Kind, e.Field, e.Expr)
	case ErrInvalidDateFormat:
		return fmt.Sprintf("%v %q for %s: must be YYYY-MM-DD", e.Kind, e.Value, e.Field)
	default:
		return fmt.Sprintf("%v: no valid operator in %q", e.Kind, e.Expr)
	}
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// KindName returns the stable name of the error kind, or "" when err is not
// a filter error.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFilterSyntax):
		return "InvalidFilterSyntax"
	case errors.Is(err, ErrUnknownField):
		return "UnknownField"
	case errors.Is(err, ErrInvalidDateFormat):
		return "InvalidDateFormat"
	default:
		return ""
	}
}

func syntaxError(expr string) error {
	return &Error{Kind: ErrInvalidFilterSyntax, Expr: expr}
}
