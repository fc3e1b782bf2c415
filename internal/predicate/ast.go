// Package predicate turns a parsed FilterSet and a row scope into a small
// boolean tree, and renders that tree for a store.
//
// Building never touches SQL text. The tree is rendered once, at the end,
// by ToSQL (parameterized SQLite) or evaluated directly by Eval for
// in-memory stores.
package predicate

import (
	"strings"

	"ledger/internal/filter"
)

// Node is any predicate tree node.
// The marker method keeps other packages from adding node types.
type Node interface {
	node()
	String() string
}

// And is the conjunction of Terms.
type And struct {
	Terms []Node
}

// Or is the disjunction of Terms.
type Or struct {
	Terms []Node
}

// Compare is a leaf comparing one record attribute against a literal.
type Compare struct {
	Attr  filter.Attribute
	Op    filter.Operator
	Value string
}

// OwnedBy restricts rows to a single owner.
type OwnedBy struct {
	User string
}

func (*And) node()     {}
func (*Or) node()      {}
func (*Compare) node() {}
func (*OwnedBy) node() {}

func (a *And) String() string {
	return "(" + joinTerms(a.Terms, " AND ") + ")"
}

func (o *Or) String() string {
	return "(" + joinTerms(o.Terms, " OR ") + ")"
}

func (c *Compare) String() string {
	return string(c.Attr) + " " + string(c.Op) + " " + c.Value
}

func (o *OwnedBy) String() string {
	return "owner = " + o.User
}

func joinTerms(terms []Node, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}
