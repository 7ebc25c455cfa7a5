// Package sexp provides the S-expression tokenizer, node tree and
// canonical writer used by the KiCad schematic codec. The tree is
// schema-less: atoms are typed (bare symbol, quoted string, number) but
// no tag names are interpreted here.
package sexp

import (
	"strconv"
	"strings"
)

// Node is an S-expression node: either an atom (Symbol, Str, Number)
// or a *List of nodes.
type Node interface {
	// IsLeaf returns true for atoms.
	IsLeaf() bool

	// String returns the compact single-line canonical form.
	String() string
}

// Symbol is a bare (unquoted) atom.
type Symbol string

func (s Symbol) IsLeaf() bool   { return true }
func (s Symbol) String() string { return string(s) }

// Str is a quoted string atom. The stored value is unescaped; quoting
// and escaping are applied by the writer.
type Str string

func (s Str) IsLeaf() bool   { return true }
func (s Str) String() string { return QuoteIfNeeded(string(s)) }

// Number is a numeric atom. Raw keeps the source spelling so that
// re-serialization preserves the precision of untouched values.
type Number struct {
	Value float64
	Raw   string
}

// NewNumber builds a Number from a float with canonical formatting.
func NewNumber(v float64) Number {
	return Number{Value: v, Raw: FormatFloat(v)}
}

func (n Number) IsLeaf() bool { return true }

func (n Number) String() string {
	if n.Raw != "" {
		return n.Raw
	}
	return FormatFloat(n.Value)
}

// Int returns the value truncated to int.
func (n Number) Int() int { return int(n.Value) }

// List is an ordered sequence of nodes. The first element is
// conventionally the tag symbol.
type List struct {
	Items []Node
}

// NewList builds a list from the given nodes.
func NewList(items ...Node) *List { return &List{Items: items} }

func (l *List) IsLeaf() bool { return false }

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, item := range l.Items {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(item.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Len returns the number of elements.
func (l *List) Len() int { return len(l.Items) }

// At returns the element at index, or nil when out of range.
func (l *List) At(index int) Node {
	if index < 0 || index >= len(l.Items) {
		return nil
	}
	return l.Items[index]
}

// Append adds nodes to the end of the list.
func (l *List) Append(nodes ...Node) { l.Items = append(l.Items, nodes...) }

// Tag returns the leading symbol of the list, or "" when the list is
// empty or starts with a non-symbol.
func (l *List) Tag() string {
	if len(l.Items) == 0 {
		return ""
	}
	if sym, ok := l.Items[0].(Symbol); ok {
		return string(sym)
	}
	return ""
}

// Child returns the first sub-list whose tag matches.
func (l *List) Child(tag string) (*List, bool) {
	for _, item := range l.Items {
		if sub, ok := item.(*List); ok && sub.Tag() == tag {
			return sub, true
		}
	}
	return nil, false
}

// Children returns every sub-list whose tag matches, in order.
func (l *List) Children(tag string) []*List {
	var result []*List
	for _, item := range l.Items {
		if sub, ok := item.(*List); ok && sub.Tag() == tag {
			result = append(result, sub)
		}
	}
	return result
}

// StringAt returns the atom at index as a string. Symbols, quoted
// strings and numbers all convert; sub-lists do not.
func (l *List) StringAt(index int) (string, bool) {
	switch v := l.At(index).(type) {
	case Symbol:
		return string(v), true
	case Str:
		return string(v), true
	case Number:
		return v.String(), true
	}
	return "", false
}

// FloatAt returns the atom at index as a float64.
func (l *List) FloatAt(index int) (float64, bool) {
	switch v := l.At(index).(type) {
	case Number:
		return v.Value, true
	case Symbol:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	case Str:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	}
	return 0, false
}

// IntAt returns the atom at index as an int.
func (l *List) IntAt(index int) (int, bool) {
	f, ok := l.FloatAt(index)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// HasFlag reports whether the list contains the bare symbol name, or a
// (name yes) sub-list. KiCad emits both spellings depending on version.
func (l *List) HasFlag(name string) bool {
	for _, item := range l.Items {
		if sym, ok := item.(Symbol); ok && string(sym) == name {
			return true
		}
	}
	if sub, ok := l.Child(name); ok {
		if v, ok := sub.StringAt(1); ok {
			return v == "yes"
		}
	}
	return false
}

// BoolChild reads a (tag yes|no) child, returning def when absent.
func (l *List) BoolChild(tag string, def bool) bool {
	sub, ok := l.Child(tag)
	if !ok {
		return def
	}
	v, ok := sub.StringAt(1)
	if !ok {
		return def
	}
	return v == "yes"
}
