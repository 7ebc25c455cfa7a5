package sexp

import (
	"io"
	"strconv"
	"strings"
)

// Parser builds the node tree from a token stream.
type Parser struct {
	lexer   *Lexer
	current Token
}

// NewParser creates a parser over r.
func NewParser(r io.Reader) *Parser {
	return &Parser{lexer: NewLexer(r)}
}

// Parse reads a single top-level S-expression document from r. It
// fails with *SyntaxError on empty input, unbalanced parentheses or
// trailing content after the top-level list.
func Parse(r io.Reader) (Node, error) {
	p := NewParser(r)

	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.current.Type == TokenEOF {
		return nil, syntaxErr(p.current.Line, p.current.Col, "empty input")
	}

	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, syntaxErr(p.current.Line, p.current.Col,
			"unexpected content after top-level expression")
	}

	return node, nil
}

// ParseString parses a single S-expression document from a string.
func ParseString(s string) (Node, error) {
	return Parse(strings.NewReader(s))
}

// ParseAll reads every top-level S-expression from r. Used for symbol
// library files, which hold multiple sibling expressions.
func ParseAll(r io.Reader) ([]Node, error) {
	p := NewParser(r)

	var result []Node
	for {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.current.Type == TokenEOF {
			return result, nil
		}

		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		result = append(result, node)
	}
}

func (p *Parser) advance() error {
	tok, err := p.lexer.NextToken()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

// parseExpr parses the expression starting at the current token.
func (p *Parser) parseExpr() (Node, error) {
	switch p.current.Type {
	case TokenLeftParen:
		return p.parseList()

	case TokenSymbol:
		return Symbol(p.current.Value), nil

	case TokenString:
		return Str(p.current.Value), nil

	case TokenNumber:
		value, _ := strconv.ParseFloat(p.current.Value, 64)
		return Number{Value: value, Raw: p.current.Value}, nil

	case TokenRightParen:
		return nil, syntaxErr(p.current.Line, p.current.Col, "unexpected ')'")

	default:
		return nil, syntaxErr(p.current.Line, p.current.Col, "unexpected end of input")
	}
}

// parseList parses ( ... ) starting at the opening paren.
func (p *Parser) parseList() (Node, error) {
	open := p.current
	list := &List{}

	for {
		if err := p.advance(); err != nil {
			return nil, err
		}

		switch p.current.Type {
		case TokenRightParen:
			return list, nil

		case TokenEOF:
			return nil, syntaxErr(open.Line, open.Col, "unbalanced '(': list never closed")

		default:
			elem, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list.Append(elem)
		}
	}
}
