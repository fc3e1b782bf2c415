// Package filter parses ledger filter expressions such as
// "amount>100,category=food,month=march" into a FilterSet.
//
// The package knows nothing about storage: it tokenizes, classifies fields
// into their join groups and normalizes values. Turning a FilterSet into a
// query is the job of the predicate package.
package filter

import "strings"

// Operator is a comparison operator accepted in filter expressions.
type Operator string

const (
	OpLe Operator = "<="
	OpGe Operator = ">="
	OpNe Operator = "!="
	OpEq Operator = "="
	OpLt Operator = "<"
	OpGt Operator = ">"
)

// operators in match precedence: two-character operators come before their
// one-character prefixes so "<=" is never split as "<".
var operators = []Operator{OpLe, OpGe, OpNe, OpEq, OpLt, OpGt}

// Operators returns the accepted operators in match precedence.
func Operators() []Operator {
	return append([]Operator(nil), operators...)
}

// Valid reports whether op is one of the accepted operators.
func (op Operator) Valid() bool {
	for _, o := range operators {
		if o == op {
			return true
		}
	}
	return false
}

// Token is one raw expression split into field, operator and value.
type Token struct {
	Expr  string
	Field string
	Op    Operator
	Value string
}

// SplitExpressions splits filter text on commas. Blank text yields no
// expressions.
func SplitExpressions(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// TokenizeExpr splits a single expression at its first operator. The
// operator found at the leftmost position wins, preferring the longer
// operator at that position, so values may themselves contain '='.
func TokenizeExpr(expr string) (Token, error) {
	expr = strings.TrimSpace(expr)
	for i := 0; i < len(expr); i++ {
		for _, op := range operators {
			if !strings.HasPrefix(expr[i:], string(op)) {
				continue
			}
			field := strings.TrimSpace(expr[:i])
			value := strings.TrimSpace(expr[i+len(op):])
			if field == "" || value == "" {
				return Token{}, syntaxError(expr)
			}
			return Token{Expr: expr, Field: field, Op: op, Value: value}, nil
		}
	}
	return Token{}, syntaxError(expr)
}

// Tokenize splits text into tokens, stopping at the first malformed
// expression.
func Tokenize(text string) ([]Token, error) {
	exprs := SplitExpressions(text)
	tokens := make([]Token, 0, len(exprs))
	for _, expr := range exprs {
		tok, err := TokenizeExpr(expr)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
