package sexp

import (
	"errors"
	"strings"
	"testing"
)

func TestLexerTokens(t *testing.T) {
	input := `(symbol "hello world" 42 -3.5 x_1)`
	lex := NewLexer(strings.NewReader(input))

	want := []struct {
		typ   TokenType
		value string
	}{
		{TokenLeftParen, "("},
		{TokenSymbol, "symbol"},
		{TokenString, "hello world"},
		{TokenNumber, "42"},
		{TokenNumber, "-3.5"},
		{TokenSymbol, "x_1"},
		{TokenRightParen, ")"},
		{TokenEOF, ""},
	}

	for i, w := range want {
		tok, err := lex.NextToken()
		if err != nil {
			t.Fatalf("Token %d: unexpected error: %v", i, err)
		}
		if tok.Type != w.typ {
			t.Errorf("Token %d: expected type %v, got %v", i, w.typ, tok.Type)
		}
		if tok.Value != w.value {
			t.Errorf("Token %d: expected value %q, got %q", i, w.value, tok.Value)
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	lex := NewLexer(strings.NewReader(`"a\"b\\c\nd"`))

	tok, err := lex.NextToken()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tok.Value != "a\"b\\c\nd" {
		t.Errorf("Expected unescaped string, got %q", tok.Value)
	}
}

func TestLexerSkipsComments(t *testing.T) {
	input := "# leading comment\n(a # trailing\n b)"
	node, err := ParseString(input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	list, ok := node.(*List)
	if !ok || list.Len() != 2 {
		t.Fatalf("Expected 2-element list, got %v", node)
	}
}

func TestLexerTracksPosition(t *testing.T) {
	lex := NewLexer(strings.NewReader("(a\n  b)"))

	lex.NextToken() // (
	lex.NextToken() // a
	tok, err := lex.NextToken()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tok.Line != 2 || tok.Col != 3 {
		t.Errorf("Expected b at line 2 col 3, got line %d col %d", tok.Line, tok.Col)
	}
}

func TestUnterminatedString(t *testing.T) {
	_, err := ParseString("(a \"never closed")
	if err == nil {
		t.Fatal("Expected error for unterminated string")
	}

	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected SyntaxError, got %T: %v", err, err)
	}
	if !strings.Contains(serr.Msg, "unterminated") {
		t.Errorf("Expected 'unterminated' in message, got %q", serr.Msg)
	}
	if serr.Line != 1 {
		t.Errorf("Expected error on line 1, got %d", serr.Line)
	}
}

func TestUnbalancedParens(t *testing.T) {
	for _, input := range []string{"(a (b c)", "(", "(x (y (z"} {
		_, err := ParseString(input)
		if err == nil {
			t.Errorf("Expected error for %q", input)
			continue
		}
		var serr *SyntaxError
		if !errors.As(err, &serr) {
			t.Errorf("Expected SyntaxError for %q, got %T", input, err)
		}
	}
}

func TestStrayClosingParen(t *testing.T) {
	_, err := ParseString(")")
	if err == nil {
		t.Fatal("Expected error for stray ')'")
	}
}

func TestTrailingContent(t *testing.T) {
	_, err := ParseString("(a) (b)")
	if err == nil {
		t.Fatal("Expected error for trailing content after top-level expression")
	}
}

func TestParseAll(t *testing.T) {
	nodes, err := ParseAll(strings.NewReader("(a 1) (b 2) (c 3)"))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("Expected 3 expressions, got %d", len(nodes))
	}
	if tag := nodes[2].(*List).Tag(); tag != "c" {
		t.Errorf("Expected third tag 'c', got %q", tag)
	}
}

func TestNumberKeepsRawText(t *testing.T) {
	node, err := ParseString("(at 93.980 81.28 0.0)")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	list := node.(*List)
	n, ok := list.At(1).(Number)
	if !ok {
		t.Fatalf("Expected Number, got %T", list.At(1))
	}
	if n.Value != 93.98 {
		t.Errorf("Expected value 93.98, got %v", n.Value)
	}
	if n.Raw != "93.980" {
		t.Errorf("Expected raw text '93.980', got %q", n.Raw)
	}
	if n.String() != "93.980" {
		t.Errorf("Expected serialized form '93.980', got %q", n.String())
	}
}

func TestListAccessors(t *testing.T) {
	node, err := ParseString(`(wire (pts (xy 0 0) (xy 10 0)) (stroke (width 0) (type default)) (uuid "abc"))`)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	list := node.(*List)

	if list.Tag() != "wire" {
		t.Errorf("Expected tag 'wire', got %q", list.Tag())
	}

	pts, ok := list.Child("pts")
	if !ok {
		t.Fatal("Expected pts child")
	}
	if xys := pts.Children("xy"); len(xys) != 2 {
		t.Errorf("Expected 2 xy children, got %d", len(xys))
	}

	stroke, _ := list.Child("stroke")
	width, _ := stroke.Child("width")
	if v, ok := width.FloatAt(1); !ok || v != 0 {
		t.Errorf("Expected width 0, got %v ok=%v", v, ok)
	}

	uuidList, _ := list.Child("uuid")
	if s, ok := uuidList.StringAt(1); !ok || s != "abc" {
		t.Errorf("Expected uuid 'abc', got %q ok=%v", s, ok)
	}
}

func TestHasFlag(t *testing.T) {
	node, _ := ParseString("(effects (font (size 1.27 1.27)) hide)")
	if !node.(*List).HasFlag("hide") {
		t.Error("Expected bare 'hide' flag to be detected")
	}

	node, _ = ParseString("(effects (hide yes))")
	if !node.(*List).HasFlag("hide") {
		t.Error("Expected '(hide yes)' flag to be detected")
	}

	node, _ = ParseString("(effects (hide no))")
	if node.(*List).HasFlag("hide") {
		t.Error("Expected '(hide no)' to not count as set")
	}
}

func TestQuoting(t *testing.T) {
	cases := []struct {
		in     string
		quoted bool
	}{
		{"eeschema", false},
		{"Device:R", false},
		{"R_0603_1608Metric", false},
		{"9.0", false},
		{"", true},
		{"hello world", true},
		{"a(b)", true},
		{"tab\there", true},
	}

	for _, c := range cases {
		if got := NeedsQuotes(c.in); got != c.quoted {
			t.Errorf("NeedsQuotes(%q): expected %v, got %v", c.in, c.quoted, got)
		}
	}

	if q := Quote(`say "hi"`); q != `"say \"hi\""` {
		t.Errorf("Unexpected quoted form: %s", q)
	}
}

func TestFormatFloat(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{5, "5"},
		{-12, "-12"},
		{1.27, "1.27"},
		{93.98, "93.98"},
		{0.254, "0.254"},
	}

	for _, c := range cases {
		if got := FormatFloat(c.in); got != c.want {
			t.Errorf("FormatFloat(%v): expected %q, got %q", c.in, c.want, got)
		}
	}
}

func TestFormatInlineAndNested(t *testing.T) {
	// Atom-only lists stay on one line.
	node, _ := ParseString("(version 20250114)")
	if got := Format(node); got != "(version 20250114)\n" {
		t.Errorf("Unexpected inline format: %q", got)
	}

	// Lists with sublists break across lines with tab indentation.
	// The quoted "j1" comes back bare: its characters need no quoting.
	node, _ = ParseString(`(junction (at 5 10) (uuid "j1"))`)
	want := "(junction\n\t(at 5 10)\n\t(uuid j1)\n)\n"
	if got := Format(node); got != want {
		t.Errorf("Expected:\n%q\ngot:\n%q", want, got)
	}

	// A value outside the bare alphabet stays quoted.
	node, _ = ParseString(`(title "two words")`)
	if got := Format(node); got != "(title \"two words\")\n" {
		t.Errorf("Unexpected quoted format: %q", got)
	}
}

func TestRoundTripPreservesStructure(t *testing.T) {
	input := `(kicad_sch
	(version 20250114)
	(generator "eeschema")
	(junction
		(at 5.08 10.16)
		(diameter 0)
		(uuid "fe3c8a1c")
	)
)
`
	node, err := ParseString(input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	out := Format(node)
	reparsed, err := ParseString(out)
	if err != nil {
		t.Fatalf("Failed to reparse formatted output: %v", err)
	}
	if Format(reparsed) != out {
		t.Error("Formatting is not a fixed point")
	}
}
