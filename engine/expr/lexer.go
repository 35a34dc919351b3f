package expr

import (
	"unicode"
)

type TokenType int

const (
	TokEOF TokenType = iota
	TokIdent
	TokString
	TokNumber
	TokDot
	TokDotDot
	TokLBracket
	TokRBracket
	TokLParen
	TokRParen
	TokPipe
	TokColon
	TokComma
	TokOp
	TokOther
)

type Token struct {
	Typ TokenType
	Val string
}

type Lexer struct {
	input []rune
	pos   int
}

func NewLexer(s string) *Lexer {
	return &Lexer{input: []rune(s), pos: 0}
}

func (l *Lexer) next() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r := l.input[l.pos]
	l.pos++
	return r
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) emitToken(typ TokenType, val string) Token {
	return Token{Typ: typ, Val: val}
}

func (l *Lexer) NextToken() Token {
	for {
		ch := l.peek()
		if ch == 0 {
			return l.emitToken(TokEOF, "")
		}
		if unicode.IsSpace(ch) {
			l.next()
			continue
		}
		switch ch {
		case '|':
			l.next()
			return l.emitToken(TokPipe, "|")
		case ':':
			l.next()
			return l.emitToken(TokColon, ":")
		case ',':
			l.next()
			return l.emitToken(TokComma, ",")
		case '(':
			l.next()
			return l.emitToken(TokLParen, "(")
		case ')':
			l.next()
			return l.emitToken(TokRParen, ")")
		case '[':
			l.next()
			return l.emitToken(TokLBracket, "[")
		case ']':
			l.next()
			return l.emitToken(TokRBracket, "]")
		case '.':
			l.next()
			if l.peek() == '.' {
				l.next()
				return l.emitToken(TokDotDot, "..")
			}
			return l.emitToken(TokDot, ".")
		case '"', '\'':
			q := l.next()
			var buf []rune
			for {
				r := l.next()
				if r == 0 {
					break
				}
				if r == '\\' {
					nxt := l.next()
					switch nxt {
					case 'n':
						buf = append(buf, '\n')
					case 't':
						buf = append(buf, '\t')
					default:
						buf = append(buf, nxt)
					}
					continue
				}
				if r == q {
					break
				}
				buf = append(buf, r)
			}
			return l.emitToken(TokString, string(buf))
		case '=', '!':
			op := string(l.next())
			if l.peek() == '=' {
				op += string(l.next())
			}
			return l.emitToken(TokOp, op)
		case '<', '>':
			op := string(l.next())
			if l.peek() == '=' {
				op += string(l.next())
			} else if op == "<" && l.peek() == '>' {
				// <> is the legacy spelling of !=
				l.next()
				op = "!="
			}
			return l.emitToken(TokOp, op)
		case '-':
			// negative number literal, otherwise a bare operator
			if unicode.IsDigit(l.peekAt(1)) {
				l.next()
				return l.lexNumber("-")
			}
			l.next()
			return l.emitToken(TokOp, "-")
		default:
			if unicode.IsDigit(ch) {
				return l.lexNumber("")
			}
			if unicode.IsLetter(ch) || ch == '_' {
				var buf []rune
				for isIdentRune(l.peek()) || (l.peek() == '-' && isIdentRune(l.peekAt(1))) {
					// identifiers may carry dashes (setting ids, handles)
					buf = append(buf, l.next())
				}
				return l.emitToken(TokIdent, string(buf))
			}
			l.next()
			return l.emitToken(TokOther, string(ch))
		}
	}
}

func (l *Lexer) lexNumber(prefix string) Token {
	buf := []rune(prefix)
	for unicode.IsDigit(l.peek()) {
		buf = append(buf, l.next())
	}
	// fractional part; stop before '..' so range literals lex cleanly
	if l.peek() == '.' && unicode.IsDigit(l.peekAt(1)) {
		buf = append(buf, l.next())
		for unicode.IsDigit(l.peek()) {
			buf = append(buf, l.next())
		}
	}
	return l.emitToken(TokNumber, string(buf))
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
