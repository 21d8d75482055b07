package compiler

import (
	"iter"
	"unicode/utf8"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"def":    DEF,
	"with":   WITH,
	"main":   MAIN,
	"int":    INT,
	"float":  FLOAT,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"for":    FOR,
	"from":   FROM,
	"to":     TO,
	"downto": DOWNTO,
	"read":   READ,
	"write":  WRITE,
	"call":   CALL,
}

// single maps one-character tokens that never start a longer token.
var single = map[byte]TokenType{
	'{': LBRACE,
	'}': RBRACE,
	'(': LPAREN,
	')': RPAREN,
	'[': LBRACKET,
	']': RBRACKET,
	',': COMMA,
	';': SEMICOLON,
	'+': PLUS,
	'-': MINUS,
	'*': STAR,
	'/': SLASH,
	'%': PERCENT,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  string
	pos  int // index of the next byte to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1}
}

func isIdentByte(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') }
func isDigit(c byte) bool     { return c >= '0' && c <= '9' }

// peek returns the byte at the current position without advancing.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the byte one position ahead of the current position.
func (l *Lexer) peek2() byte {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// skipBlank discards spaces and tabs and counts newlines.
func (l *Lexer) skipBlank() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\n':
			l.line++
		case ' ', '\t', '\r':
		default:
			return
		}
		l.pos++
	}
}

func (l *Lexer) scanWhile(pred func(byte) bool) string {
	start := l.pos
	for l.pos < len(l.src) && pred(l.src[l.pos]) {
		l.pos++
	}
	return l.src[start:l.pos]
}

// scanNumber collects an integer or a float literal. A float needs digits on
// both sides of the dot; "1." leaves the dot for the next call.
func (l *Lexer) scanNumber() Token {
	line := l.line
	start := l.pos
	l.scanWhile(isDigit)
	if l.peek() == '.' && isDigit(l.peek2()) {
		l.pos++
		l.scanWhile(isDigit)
		return Token{Type: FLOAT_LIT, Lexeme: l.src[start:l.pos], Line: line}
	}
	return Token{Type: INT_LIT, Lexeme: l.src[start:l.pos], Line: line}
}

// nextToken skips blanks and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	l.skipBlank()
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Lexeme: "", Line: l.line}, nil
	}

	ch := l.peek()
	line := l.line

	switch {
	case isIdentByte(ch):
		lexeme := l.scanWhile(isIdentByte)
		tt := PID
		if kw, ok := keywords[lexeme]; ok {
			tt = kw
		}
		return Token{Type: tt, Lexeme: lexeme, Line: line}, nil
	case isDigit(ch):
		return l.scanNumber(), nil
	}

	if tt, ok := single[ch]; ok {
		l.pos++
		return Token{tt, string(ch), line}, nil
	}

	two := func(alone, withEq TokenType) (Token, error) {
		l.pos++
		if l.peek() == '=' { // lookahead: distinguish = vs ==
			l.pos++
			return Token{withEq, l.src[l.pos-2 : l.pos], line}, nil
		}
		return Token{alone, string(ch), line}, nil
	}

	switch ch {
	case '=':
		return two(ASSIGN, EQUALS)
	case '<':
		return two(LESS, LESS_EQ)
	case '>':
		return two(GREATER, GREATER_EQ)
	case '!':
		if l.peek2() == '=' {
			l.pos += 2
			return Token{NOT_EQ, "!=", line}, nil
		}
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return Token{}, &LexicalError{Char: r, Line: line}
}

// Tokens returns a lazy token sequence over src. Each range over it scans
// from the beginning. The sequence ends after EOF or after the first error.
func Tokens(src string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		l := newLexer(src)
		for {
			tok, err := l.nextToken()
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !yield(tok, nil) || tok.Type == EOF {
				return
			}
		}
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// On the first illegal character it returns no tokens and a *LexicalError.
func Lex(src string) ([]Token, error) {
	var tokens []Token
	for tok, err := range Tokens(src) {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
