package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over the token stream
// ---------------------------------------------------------------------------
//
// Grammar:
//
//	expr   := term2 (('+'|'-') term2)*
//	term2  := term3 (('*'|'/') term3)*
//	term3  := term4 ('^' term4)*
//	term4  := ('+'|'-') term5 | term5
//	term5  := Number | '(' expr ')'
//
// '+', '-', '*', '/' are left-associative. '^' is also folded left to
// right: a^b^c parses as (a^b)^c. Unary '+'/'-' binds tighter than '^'
// and is desugared through a zero Value node.

// ParseError is a syntax error produced by the parser. Parse errors are
// recoverable: the REPL prints them and resumes.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// Parser builds an AST from a token sequence.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses a full expression string: lex, parse, and require that
// the entire input is consumed.
func Parse(input string) (*Node, error) {
	return NewParser().Parse(Lex(input))
}

// Parse parses a token sequence into an AST. The sequence must end with
// an End token; after the top production the next token must be End or
// the parse fails with "there's an excess part of expression".
func (p *Parser) Parse(tokens []Token) (*Node, error) {
	p.tokens = tokens
	p.pos = 0

	n, err := p.addSub()
	if err != nil {
		return nil, err
	}

	if !p.check(TokenEnd) {
		return nil, parseErrorf("there's an excess part of expression")
	}

	return n, nil
}

func (p *Parser) current() Token {
	return p.tokens[p.pos]
}

func (p *Parser) next() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *Parser) check(t TokenType) bool {
	return p.current().Type == t
}

func (p *Parser) accept(t TokenType) bool {
	if p.check(t) {
		p.next()
		return true
	}
	return false
}

// addSub parses expr := term2 (('+'|'-') term2)*.
func (p *Parser) addSub() (*Node, error) {
	n, err := p.mulDiv()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.accept(TokenPlus):
			r, err := p.mulDiv()
			if err != nil {
				return nil, err
			}
			n = NewBinary(OpAdd, n, r)
		case p.accept(TokenMinus):
			r, err := p.mulDiv()
			if err != nil {
				return nil, err
			}
			n = NewBinary(OpSub, n, r)
		default:
			return n, nil
		}
	}
}

// mulDiv parses term2 := term3 (('*'|'/') term3)*.
func (p *Parser) mulDiv() (*Node, error) {
	n, err := p.power()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.accept(TokenStar):
			r, err := p.power()
			if err != nil {
				return nil, err
			}
			n = NewBinary(OpMul, n, r)
		case p.accept(TokenSlash):
			r, err := p.power()
			if err != nil {
				return nil, err
			}
			n = NewBinary(OpDiv, n, r)
		default:
			return n, nil
		}
	}
}

// power parses term3 := term4 ('^' term4)*, folding left to right.
func (p *Parser) power() (*Node, error) {
	n, err := p.unary()
	if err != nil {
		return nil, err
	}

	for p.accept(TokenCaret) {
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		n = NewBinary(OpPow, n, r)
	}

	return n, nil
}

// unary parses term4 := ('+'|'-') term5 | term5. A unary sign is
// desugared through a zero Value node.
func (p *Parser) unary() (*Node, error) {
	if p.accept(TokenPlus) {
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		return NewBinary(OpAdd, NewValue(0), r), nil
	}
	if p.accept(TokenMinus) {
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		return NewBinary(OpSub, NewValue(0), r), nil
	}
	return p.term()
}

// term parses term5 := Number | '(' expr ')'.
func (p *Parser) term() (*Node, error) {
	switch {
	case p.check(TokenNumber):
		tok := p.current()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, parseErrorf("unknown token '%s'", tok.Literal)
		}
		p.next()
		return NewValue(v), nil

	case p.accept(TokenLParen):
		n, err := p.addSub()
		if err != nil {
			return nil, err
		}
		if !p.accept(TokenRParen) {
			return nil, parseErrorf("unmatched parentheses")
		}
		return n, nil

	case p.check(TokenIdentifier):
		return nil, parseErrorf("unknown token '%s'", p.current().Literal)

	case p.check(TokenEnd):
		return nil, parseErrorf("unexpected end of expression")

	default:
		return nil, parseErrorf("unexpected token '%s'", p.current().Text())
	}
}
