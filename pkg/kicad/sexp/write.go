package sexp

import (
	"math"
	"strconv"
	"strings"
)

// Canonical text emission. Layout matches KiCad's own writer: a list
// with no sub-lists renders on one line; otherwise leading atoms stay
// on the tag line, each sub-list goes on its own tab-indented line and
// the closing paren gets its own line.

// Format renders a node tree as canonical document text with a
// trailing newline.
func Format(n Node) string {
	var b strings.Builder
	WriteNode(&b, n, 0)
	b.WriteByte('\n')
	return b.String()
}

// WriteNode renders a node at the given indentation depth.
func WriteNode(b *strings.Builder, n Node, depth int) {
	list, ok := n.(*List)
	if !ok {
		b.WriteString(n.String())
		return
	}

	if isInline(list) {
		b.WriteString(list.String())
		return
	}

	b.WriteByte('(')
	i := 0
	for ; i < len(list.Items); i++ {
		if _, sub := list.Items[i].(*List); sub {
			break
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(list.Items[i].String())
	}
	for ; i < len(list.Items); i++ {
		b.WriteByte('\n')
		writeIndent(b, depth+1)
		WriteNode(b, list.Items[i], depth+1)
	}
	b.WriteByte('\n')
	writeIndent(b, depth)
	b.WriteByte(')')
}

func isInline(l *List) bool {
	for _, item := range l.Items {
		if !item.IsLeaf() {
			return false
		}
	}
	return true
}

func writeIndent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteByte('\t')
	}
}

// FormatFloat renders a float the way KiCad does: integral values with
// no decimal point, everything else with the minimal digits that
// round-trip.
func FormatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Bare-symbol alphabet: alphanumerics plus "_:.-". Anything else (or
// an empty value) forces quoting.
func isBareRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == ':' || r == '.' || r == '-':
		return true
	}
	return false
}

// NeedsQuotes reports whether a string value must be quoted on output.
func NeedsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if !isBareRune(r) {
			return true
		}
	}
	return false
}

// QuoteIfNeeded renders a string atom, quoting and escaping only when
// the bare form would be ambiguous.
func QuoteIfNeeded(s string) string {
	if !NeedsQuotes(s) {
		return s
	}
	return Quote(s)
}

// Quote renders a string atom in quoted, escaped form.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
