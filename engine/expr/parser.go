package expr

import (
	"fmt"
	"strconv"
)

type Parser struct {
	lex *Lexer
	cur Token
}

func NewParser(input string) *Parser {
	l := NewLexer(input)
	p := &Parser{lex: l}
	p.cur = p.lex.NextToken()
	return p
}

func (p *Parser) next() Token {
	t := p.cur
	p.cur = p.lex.NextToken()
	return t
}

func (p *Parser) expect(typ TokenType) (Token, error) {
	if p.cur.Typ == typ {
		return p.next(), nil
	}
	return Token{}, fmt.Errorf("expected token %v, got %q", typ, p.cur.Val)
}

// Parse reads one full expression: condition operators plus a trailing
// filter pipeline, the pipeline binding loosest.
func (p *Parser) Parse() (Expr, error) {
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	return p.parseFilters(e)
}

// ParseAll parses an expression and requires the input to be fully consumed.
func (p *Parser) ParseAll() (Expr, error) {
	e, err := p.Parse()
	if err != nil {
		return nil, err
	}
	if p.cur.Typ != TokEOF {
		return nil, fmt.Errorf("unexpected trailing token %q", p.cur.Val)
	}
	return e, nil
}

// AtEOF reports whether the parser has consumed all input.
func (p *Parser) AtEOF() bool {
	return p.cur.Typ == TokEOF
}

// Peek exposes the current token so tag parsers can read keyword arguments
// (for, in, reversed, cols: ...) between expressions.
func (p *Parser) Peek() Token {
	return p.cur
}

// Next consumes and returns the current token.
func (p *Parser) Next() Token {
	return p.next()
}

// ParseOperand reads a single operand without filters or boolean operators;
// tag parsers use it for arguments like limit: N.
func (p *Parser) ParseOperand() (Expr, error) {
	return p.parsePrimary()
}

func (p *Parser) parseFilters(input Expr) (Expr, error) {
	for p.cur.Typ == TokPipe {
		p.next()
		nameTok, err := p.expect(TokIdent)
		if err != nil {
			return nil, fmt.Errorf("expected filter name: %w", err)
		}
		fe := &FilterExpr{Input: input, Name: nameTok.Val}
		if p.cur.Typ == TokColon {
			p.next()
			for {
				arg, err := p.parseFilterArg()
				if err != nil {
					return nil, err
				}
				fe.Args = append(fe.Args, arg)
				if p.cur.Typ != TokComma {
					break
				}
				p.next()
			}
		}
		input = fe
	}
	return input, nil
}

func (p *Parser) parseFilterArg() (FilterArg, error) {
	// named argument: ident ':' value
	if p.cur.Typ == TokIdent {
		save := *p.lex
		nameTok := p.cur
		nxt := p.lex.NextToken()
		if nxt.Typ == TokColon {
			p.cur = p.lex.NextToken()
			val, err := p.parsePrimary()
			if err != nil {
				return FilterArg{}, err
			}
			return FilterArg{Name: nameTok.Val, Val: val}, nil
		}
		// not named; rewind the lookahead
		*p.lex = save
		p.cur = nameTok
	}
	val, err := p.parsePrimary()
	if err != nil {
		return FilterArg{}, err
	}
	return FilterArg{Val: val}, nil
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == TokIdent && p.cur.Val == "or" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == TokIdent && p.cur.Val == "and" {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur.Typ == TokOp {
		op := p.next().Val
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil
	}
	if p.cur.Typ == TokIdent && p.cur.Val == "contains" {
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: "contains", Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.cur.Typ {
	case TokString:
		t := p.next()
		return &Literal{Val: t.Val}, nil
	case TokNumber:
		t := p.next()
		return numberLiteral(t.Val)
	case TokLParen:
		// only range literals use parens: (from..to)
		p.next()
		from, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokDotDot); err != nil {
			return nil, err
		}
		to, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return &RangeLit{From: from, To: to}, nil
	case TokIdent:
		t := p.next()
		switch t.Val {
		case "true":
			return &Literal{Val: true}, nil
		case "false":
			return &Literal{Val: false}, nil
		case "nil", "null":
			return &Literal{Val: nil}, nil
		case "empty", "blank":
			return &EmptyLit{}, nil
		}
		return p.parsePathChain(t.Val)
	default:
		return nil, fmt.Errorf("unexpected token %q", p.cur.Val)
	}
}

func (p *Parser) parsePathChain(name string) (Expr, error) {
	path := &Path{Name: name}
	for {
		if p.cur.Typ == TokDot {
			p.next()
			fld, err := p.expect(TokIdent)
			if err != nil {
				return nil, fmt.Errorf("expected field after dot: %w", err)
			}
			path.Segments = append(path.Segments, Segment{Field: fld.Val})
			continue
		}
		if p.cur.Typ == TokLBracket {
			p.next()
			key, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokRBracket); err != nil {
				return nil, err
			}
			path.Segments = append(path.Segments, Segment{Index: key})
			continue
		}
		break
	}
	return path, nil
}

func numberLiteral(s string) (Expr, error) {
	if i, err := strconv.Atoi(s); err == nil {
		return &Literal{Val: i}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("bad number literal %q", s)
	}
	return &Literal{Val: f}, nil
}
