package predicate

import (
	"ledger/internal/core"
	"ledger/internal/filter"
)

// Builder accumulates the scope term and one group per field.
//
// Constraints on the same field are joined by that field's group operator.
// Different fields, and the scope, are always joined with AND, so two
// OR-group fields still narrow each other.
type Builder struct {
	scope  core.Scope
	order  []filter.Field
	groups map[filter.Field][]filter.Constraint
}

// NewBuilder starts a predicate for scope.
func NewBuilder(scope core.Scope) *Builder {
	return &Builder{
		scope:  scope,
		groups: make(map[filter.Field][]filter.Constraint),
	}
}

// Add appends constraints to their field's group. Calling Add again for a
// field already present extends the same group.
func (b *Builder) Add(cs ...filter.Constraint) *Builder {
	for _, c := range cs {
		if _, ok := b.groups[c.Field]; !ok {
			b.order = append(b.order, c.Field)
		}
		b.groups[c.Field] = append(b.groups[c.Field], c)
	}
	return b
}

// AddSet adds every constraint of set in field order.
func (b *Builder) AddSet(set *filter.FilterSet) *Builder {
	for _, f := range set.Fields() {
		b.Add(set.Constraints(f)...)
	}
	return b
}

// Build returns the finished tree. A nil result means no restriction at
// all, which only happens for an all-rows scope with no constraints.
func (b *Builder) Build() Node {
	var terms []Node
	if !b.scope.AllRows {
		terms = append(terms, &OwnedBy{User: b.scope.User})
	}
	for _, f := range b.order {
		cs := b.groups[f]
		if len(cs) == 0 {
			continue
		}
		info, ok := filter.Lookup(f)
		if !ok {
			continue
		}
		terms = append(terms, group(info, cs))
	}
	if len(terms) == 0 {
		return nil
	}
	return &And{Terms: terms}
}

func group(info filter.FieldInfo, cs []filter.Constraint) Node {
	leaves := make([]Node, len(cs))
	for i, c := range cs {
		leaves[i] = &Compare{Attr: info.Attribute, Op: c.Op, Value: c.Value}
	}
	if info.Group == filter.GroupOr {
		return &Or{Terms: leaves}
	}
	return &And{Terms: leaves}
}

// Build is shorthand for NewBuilder(scope).AddSet(set).Build().
func Build(set *filter.FilterSet, scope core.Scope) Node {
	return NewBuilder(scope).AddSet(set).Build()
}
