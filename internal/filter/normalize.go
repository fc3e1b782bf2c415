package filter

import (
	"strings"

	"ledger/internal/core"
)

var monthNames = map[string]string{
	"january":   "01",
	"february":  "02",
	"march":     "03",
	"april":     "04",
	"may":       "05",
	"june":      "06",
	"july":      "07",
	"august":    "08",
	"september": "09",
	"october":   "10",
	"november":  "11",
	"december":  "12",
}

// NormalizeMonth maps month names to "01".."12" and left-pads single
// characters with a zero. Anything else passes through untouched: values
// outside the name table are not rejected.
func NormalizeMonth(value string) string {
	if num, ok := monthNames[strings.ToLower(value)]; ok {
		return num
	}
	if len(value) == 1 {
		return "0" + value
	}
	return value
}

// Normalize returns the canonical comparable form of value for field f.
func Normalize(f Field, value string) (string, error) {
	switch f {
	case FieldDate:
		d, err := core.ParseDate(value)
		if err != nil {
			return "", &Error{Kind: ErrInvalidDateFormat, Field: string(f), Value: value}
		}
		return d.String(), nil
	case FieldMonth:
		return NormalizeMonth(value), nil
	default:
		return value, nil
	}
}
