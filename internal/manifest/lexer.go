package manifest

import (
	"fmt"
	"strings"

	"github.com/roach88/rift/internal/source"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIllegal
	tokRift   // @rift
	tokFuse   // @fuse
	tokTarget // @target
	tokTask   // @task
	tokFrom   // from
	tokCall   // call
	tokWith   // with
	tokIdent
	tokString
	tokLBrace
	tokRBrace
	tokSemi
)

var tokenNames = map[tokenType]string{
	tokEOF:     "end of file",
	tokIllegal: "illegal token",
	tokRift:    "@rift",
	tokFuse:    "@fuse",
	tokTarget:  "@target",
	tokTask:    "@task",
	tokFrom:    "from",
	tokCall:    "call",
	tokWith:    "with",
	tokIdent:   "identifier",
	tokString:  "string",
	tokLBrace:  "{",
	tokRBrace:  "}",
	tokSemi:    ";",
}

func (t tokenType) String() string { return tokenNames[t] }

var directives = map[string]tokenType{
	"@rift":   tokRift,
	"@fuse":   tokFuse,
	"@target": tokTarget,
	"@task":   tokTask,
}

var keywords = map[string]tokenType{
	"from": tokFrom,
	"call": tokCall,
	"with": tokWith,
}

type token struct {
	typ  tokenType
	text string // decoded value for strings, raw text otherwise
	pos  source.Pos
}

// describe renders the token for a "found ..." message.
func (t token) describe() string {
	switch t.typ {
	case tokEOF:
		return "end of file"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	case tokIdent:
		return fmt.Sprintf("identifier %q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

type lexer struct {
	file string
	src  string
	off  int
	line int
	col  int
}

func newLexer(file, src string) *lexer {
	return &lexer{file: file, src: src, line: 1, col: 1}
}

func (l *lexer) peekByte() byte {
	if l.off >= len(l.src) {
		return 0
	}
	return l.src[l.off]
}

func (l *lexer) advance() byte {
	c := l.src[l.off]
	l.off++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) skipSpaceAndComments() {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && strings.HasPrefix(l.src[l.off:], "//"):
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func isIdentByte(c byte, first bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return !first && (c >= '0' && c <= '9' || c == '-')
}

func (l *lexer) next() token {
	l.skipSpaceAndComments()
	pos := source.Pos{File: l.file, Line: l.line, Col: l.col}
	if l.off >= len(l.src) {
		return token{typ: tokEOF, pos: pos}
	}
	c := l.peekByte()
	switch {
	case c == '{':
		l.advance()
		return token{typ: tokLBrace, text: "{", pos: pos}
	case c == '}':
		l.advance()
		return token{typ: tokRBrace, text: "}", pos: pos}
	case c == ';':
		l.advance()
		return token{typ: tokSemi, text: ";", pos: pos}
	case c == '"':
		return l.str(pos)
	case c == '@':
		start := l.off
		l.advance()
		for l.off < len(l.src) && isIdentByte(l.peekByte(), false) {
			l.advance()
		}
		word := l.src[start:l.off]
		if typ, ok := directives[word]; ok {
			return token{typ: typ, text: word, pos: pos}
		}
		return token{typ: tokIllegal, text: word, pos: pos}
	case isIdentByte(c, true):
		start := l.off
		for l.off < len(l.src) && isIdentByte(l.peekByte(), false) {
			l.advance()
		}
		word := l.src[start:l.off]
		if typ, ok := keywords[word]; ok {
			return token{typ: typ, text: word, pos: pos}
		}
		return token{typ: tokIdent, text: word, pos: pos}
	}
	l.advance()
	return token{typ: tokIllegal, text: string(c), pos: pos}
}

// str scans a double-quoted string. Strings may span lines.
func (l *lexer) str(pos source.Pos) token {
	l.advance()
	var b strings.Builder
	for {
		if l.off >= len(l.src) {
			return token{typ: tokIllegal, text: "unterminated string", pos: pos}
		}
		c := l.advance()
		switch c {
		case '"':
			return token{typ: tokString, text: b.String(), pos: pos}
		case '\\':
			if l.off >= len(l.src) {
				return token{typ: tokIllegal, text: "unterminated string", pos: pos}
			}
			switch e := l.advance(); e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '"':
				b.WriteByte(e)
			default:
				return token{typ: tokIllegal, text: `\` + string(e), pos: pos}
			}
		default:
			b.WriteByte(c)
		}
	}
}
