// Package lang supplies the evaluation engine's external
// collaborators: a hand-rolled lexer producing the
// interp.TokenStream/LexerState the engine consumes, a
// recursive-descent statement dispatcher implementing the engine's
// statement-executor callback, and a file-based module loader. The
// engine itself (package interp) never imports this package; lang
// imports interp and wires itself in via
// interp.Interpreter.SetStatementExecutor.
package lang

import (
	"fmt"
	"strings"

	"github.com/scriptlang/scriptlang/interp"
)

// keywords maps reserved words to their token kind. Every other
// identifier-shaped run of characters becomes TokIdent.
var keywords = map[string]interp.TokenKind{
	"true":      interp.TokTrue,
	"false":     interp.TokFalse,
	"null":      interp.TokNull,
	"self":      interp.TokSelfKw,
	"super":     interp.TokSuperKw,
	"await":     interp.TokAwaitKw,
	"and":       interp.TokAndKw,
	"or":        interp.TokOrKw,
	"not":       interp.TokNotKw,
	"let":       interp.TokLet,
	"show":      interp.TokShow,
	"if":        interp.TokIf,
	"else":      interp.TokElse,
	"while":     interp.TokWhile,
	"for":       interp.TokFor,
	"in":        interp.TokIn,
	"funct":     interp.TokFunct,
	"async":     interp.TokAsync,
	"return":    interp.TokReturn,
	"break":     interp.TokBreak,
	"continue":  interp.TokContinue,
	"blueprint": interp.TokBlueprintKw,
	"inherits":  interp.TokInherits,
	"try":       interp.TokTry,
	"catch":     interp.TokCatch,
	"finally":   interp.TokFinally,
	"raise":     interp.TokRaise,
	"import":    interp.TokImport,
}

// Lexer is a byte-oriented hand-rolled scanner. The LexerState it
// saves/restores is a plain snapshot of text, offset, and source
// position. While a token is peeked but not yet consumed, GetState
// reports the position that token was scanned from, so restoring the
// snapshot and peeking again reproduces the same token.
type Lexer struct {
	src    string
	offset int
	cur    byte
	line   int
	column int

	peeked    interp.Token
	hasPeeked bool
	peekedAt  interp.LexerState
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	l := &Lexer{src: src, line: 1, column: 1}
	if len(src) > 0 {
		l.cur = src[0]
	}
	return l
}

// GetState returns the current position snapshot.
func (l *Lexer) GetState() interp.LexerState {
	if l.hasPeeked {
		return l.peekedAt
	}
	return interp.LexerState{
		Text:        l.src,
		Offset:      l.offset,
		CurrentChar: l.cur,
		Line:        l.line,
		Column:      l.column,
	}
}

// SetState restores a previously captured snapshot in O(1).
func (l *Lexer) SetState(s interp.LexerState) {
	l.src = s.Text
	l.offset = s.Offset
	l.cur = s.CurrentChar
	l.line = s.Line
	l.column = s.Column
	l.hasPeeked = false
}

func (l *Lexer) advance() {
	if l.cur == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.offset++
	if l.offset < len(l.src) {
		l.cur = l.src[l.offset]
	} else {
		l.cur = 0
	}
}

func (l *Lexer) atEOF() bool { return l.offset >= len(l.src) }

// Peek returns the next token without consuming it, caching the scan
// result until Next is called.
func (l *Lexer) Peek() interp.Token {
	if !l.hasPeeked {
		l.peekedAt = l.GetState()
		l.peeked = l.scan()
		l.hasPeeked = true
	}
	return l.peeked
}

// Next consumes and returns the next token.
func (l *Lexer) Next() interp.Token {
	t := l.Peek()
	l.hasPeeked = false
	return t
}

// Eat consumes the next token, reporting an error if its kind doesn't
// match expected.
func (l *Lexer) Eat(expected interp.TokenKind) (interp.Token, error) {
	t := l.Peek()
	if t.Kind != expected {
		return t, fmt.Errorf("line %d, col %d: expected token kind %d, got %d (%q)",
			t.Line, t.Column, expected, t.Kind, t.Literal)
	}
	l.hasPeeked = false
	return t, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isAlnum(b byte) bool { return isAlpha(b) || isDigit(b) }
func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' }

func (l *Lexer) skipSpaceAndComments() {
	for !l.atEOF() {
		if isSpace(l.cur) {
			l.advance()
			continue
		}
		if l.cur == '#' {
			for !l.atEOF() && l.cur != '\n' {
				l.advance()
			}
			continue
		}
		break
	}
}

// scan produces exactly one token at the current offset. Newlines are
// significant (statement separators), so they are never folded into
// skipSpaceAndComments.
func (l *Lexer) scan() interp.Token {
	l.skipSpaceAndComments()
	line, col := l.line, l.column
	if l.atEOF() {
		return interp.Token{Kind: interp.TokEOF, Line: line, Column: col}
	}

	c := l.cur
	switch {
	case c == '\n':
		l.advance()
		return interp.Token{Kind: interp.TokNewline, Line: line, Column: col}
	case isDigit(c):
		return l.scanNumber(line, col)
	case c == '"':
		return l.scanString(line, col)
	case isAlpha(c):
		return l.scanIdentOrKeyword(line, col)
	}

	two := ""
	if l.offset+1 < len(l.src) {
		two = string(c) + string(l.src[l.offset+1])
	}
	switch two {
	case "==":
		l.advance()
		l.advance()
		return interp.Token{Kind: interp.TokEqEq, Literal: "==", Line: line, Column: col}
	case "!=":
		l.advance()
		l.advance()
		return interp.Token{Kind: interp.TokNotEq, Literal: "!=", Line: line, Column: col}
	case "<=":
		l.advance()
		l.advance()
		return interp.Token{Kind: interp.TokLe, Literal: "<=", Line: line, Column: col}
	case ">=":
		l.advance()
		l.advance()
		return interp.Token{Kind: interp.TokGe, Literal: ">=", Line: line, Column: col}
	}

	single := map[byte]interp.TokenKind{
		'+': interp.TokPlus, '-': interp.TokMinus, '*': interp.TokStar,
		'/': interp.TokSlash, '%': interp.TokPercent, '^': interp.TokCaret,
		'<': interp.TokLt, '>': interp.TokGt, '=': interp.TokAssign,
		'?': interp.TokQuestion, ':': interp.TokColon, ',': interp.TokComma,
		'.': interp.TokDot, '(': interp.TokLParen, ')': interp.TokRParen,
		'[': interp.TokLBracket, ']': interp.TokRBracket,
		'{': interp.TokLBrace, '}': interp.TokRBrace,
		';': interp.TokSemicolon,
	}
	if k, ok := single[c]; ok {
		l.advance()
		return interp.Token{Kind: k, Literal: string(c), Line: line, Column: col}
	}

	l.advance()
	return interp.Token{Kind: interp.TokError, Literal: string(c), Line: line, Column: col}
}

func (l *Lexer) scanNumber(line, col int) interp.Token {
	start := l.offset
	for !l.atEOF() && isDigit(l.cur) {
		l.advance()
	}
	isFloat := false
	if !l.atEOF() && l.cur == '.' && l.offset+1 < len(l.src) && isDigit(l.src[l.offset+1]) {
		isFloat = true
		l.advance()
		for !l.atEOF() && isDigit(l.cur) {
			l.advance()
		}
	}
	lit := l.src[start:l.offset]
	kind := interp.TokInt
	if isFloat {
		kind = interp.TokFloat
	}
	return interp.Token{Kind: kind, Literal: lit, Line: line, Column: col}
}

func (l *Lexer) scanIdentOrKeyword(line, col int) interp.Token {
	start := l.offset
	for !l.atEOF() && isAlnum(l.cur) {
		l.advance()
	}
	lit := l.src[start:l.offset]
	if k, ok := keywords[lit]; ok {
		return interp.Token{Kind: k, Literal: lit, Line: line, Column: col}
	}
	return interp.Token{Kind: interp.TokIdent, Literal: lit, Line: line, Column: col}
}

// scanString reads a double-quoted string literal, handling `\"`,
// `\\`, `\n`, `\t` escapes. If the raw literal contains a `${` splice
// marker, it is tokenized as TokInterpString and left unescaped-for-
// splices; the evaluator (interp.evalInterpString) re-parses it.
func (l *Lexer) scanString(line, col int) interp.Token {
	l.advance() // opening quote
	var b strings.Builder
	hasSplice := false
	for !l.atEOF() && l.cur != '"' {
		if l.cur == '\\' && l.offset+1 < len(l.src) {
			l.advance()
			switch l.cur {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(l.cur)
			}
			l.advance()
			continue
		}
		if l.cur == '$' && l.offset+1 < len(l.src) && l.src[l.offset+1] == '{' {
			hasSplice = true
		}
		b.WriteByte(l.cur)
		l.advance()
	}
	if !l.atEOF() {
		l.advance() // closing quote
	}
	kind := interp.TokString
	if hasSplice {
		kind = interp.TokInterpString
	}
	return interp.Token{Kind: kind, Literal: b.String(), Line: line, Column: col}
}
