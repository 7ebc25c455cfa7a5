package sexp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"unicode"
)

// TokenType classifies a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenLeftParen
	TokenRightParen
	TokenSymbol
	TokenString
	TokenNumber
)

// Token is a single lexical token with its source position.
type Token struct {
	Type  TokenType
	Value string
	Line  int
	Col   int
}

// SyntaxError reports malformed S-expression text: unbalanced
// parentheses, an unterminated quoted string, or empty input.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

func syntaxErr(line, col int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

// Lexer tokenizes S-expressions from an io.Reader, tracking line and
// column for error reporting.
type Lexer struct {
	reader *bufio.Reader
	peeked *rune
	line   int
	col    int
}

// NewLexer creates a lexer over r.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{
		reader: bufio.NewReader(r),
		line:   1,
		col:    0,
	}
}

// NextToken reads the next token from the input.
func (l *Lexer) NextToken() (Token, error) {
	// Skip whitespace and # comments
	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				return Token{Type: TokenEOF, Line: l.line, Col: l.col}, nil
			}
			return Token{}, err
		}

		if unicode.IsSpace(ch) {
			l.read()
			continue
		}

		if ch == '#' {
			for {
				c, err := l.read()
				if err != nil || c == '\n' {
					break
				}
			}
			continue
		}

		break
	}

	ch, err := l.peek()
	if err != nil {
		if err == io.EOF {
			return Token{Type: TokenEOF, Line: l.line, Col: l.col}, nil
		}
		return Token{}, err
	}

	line, col := l.line, l.col+1

	switch ch {
	case '(':
		l.read()
		return Token{Type: TokenLeftParen, Value: "(", Line: line, Col: col}, nil

	case ')':
		l.read()
		return Token{Type: TokenRightParen, Value: ")", Line: line, Col: col}, nil

	case '"':
		return l.readString(line, col)

	default:
		return l.readBare(line, col)
	}
}

func (l *Lexer) peek() (rune, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}

	ch, _, err := l.reader.ReadRune()
	if err != nil {
		return 0, err
	}

	l.peeked = &ch
	return ch, nil
}

func (l *Lexer) read() (rune, error) {
	var ch rune
	var err error

	if l.peeked != nil {
		ch = *l.peeked
		l.peeked = nil
	} else {
		ch, _, err = l.reader.ReadRune()
		if err != nil {
			return ch, err
		}
	}

	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, nil
}

// readString reads a quoted string, handling backslash escapes.
func (l *Lexer) readString(line, col int) (Token, error) {
	l.read() // opening quote

	var result []rune
	for {
		ch, err := l.read()
		if err != nil {
			if err == io.EOF {
				return Token{}, syntaxErr(line, col, "unterminated string")
			}
			return Token{}, err
		}

		if ch == '"' {
			break
		}

		if ch == '\\' {
			next, err := l.read()
			if err != nil {
				return Token{}, syntaxErr(line, col, "unterminated string after backslash")
			}
			switch next {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 'r':
				result = append(result, '\r')
			case '\\':
				result = append(result, '\\')
			case '"':
				result = append(result, '"')
			default:
				// Unknown escape, keep the character as-is
				result = append(result, next)
			}
			continue
		}

		result = append(result, ch)
	}

	return Token{Type: TokenString, Value: string(result), Line: line, Col: col}, nil
}

// readBare reads an unquoted atom and classifies it as a number when
// the whole token parses as a float, otherwise as a symbol.
func (l *Lexer) readBare(line, col int) (Token, error) {
	var result []rune

	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				break
			}
			return Token{}, err
		}

		if unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == '"' {
			break
		}

		l.read()
		result = append(result, ch)
	}

	if len(result) == 0 {
		return Token{}, syntaxErr(line, col, "empty symbol")
	}

	value := string(result)
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return Token{Type: TokenNumber, Value: value, Line: line, Col: col}, nil
	}
	return Token{Type: TokenSymbol, Value: value, Line: line, Col: col}, nil
}
