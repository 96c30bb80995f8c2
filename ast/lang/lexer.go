// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package lang implements the lexer and recursive-descent parser for
// the Overpass-QL subset described in spec.md §4.1/§4.2.
package lang

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind enumerates the token kinds the lexer produces.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokPeriod
	TokArrow       // ->
	TokDoubleColon // ::
	TokColon
	TokSemicolon
	TokComma
	TokMinus // -
	TokRecurseUpRelations   // <<
	TokRecurseUp            // <
	TokRecurseDownRelations // >>
	TokRecurseDown          // >
	TokEquals               // =
	TokNotEquals            // !=
	TokTilde                // ~
	TokNotTilde             // !~
	TokBang                 // !
	TokNumber
	TokString
	TokIdent
)

func (k TokenKind) String() string {
	names := map[TokenKind]string{
		TokEOF: "EOF", TokLParen: "(", TokRParen: ")",
		TokLBracket: "[", TokRBracket: "]", TokPeriod: ".",
		TokArrow: "->", TokDoubleColon: "::", TokColon: ":",
		TokSemicolon: ";", TokComma: ",", TokMinus: "-",
		TokRecurseUpRelations: "<<", TokRecurseUp: "<",
		TokRecurseDownRelations: ">>", TokRecurseDown: ">",
		TokEquals: "=", TokNotEquals: "!=", TokTilde: "~",
		TokNotTilde: "!~", TokBang: "!",
		TokNumber: "number", TokString: "string", TokIdent: "identifier",
	}
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one lexed token together with its source byte position.
type Token struct {
	Pos    int
	Kind   TokenKind
	String string  // TokString, TokIdent: the decoded text
	Number float64 // TokNumber
}

// literalTokens is checked longest-first so that, e.g., "->" wins over
// "-" and "<<" wins over "<". Order within a shared prefix matters.
var literalTokens = []struct {
	s string
	k TokenKind
}{
	{"->", TokArrow},
	{"::", TokDoubleColon},
	{"<<", TokRecurseUpRelations},
	{">>", TokRecurseDownRelations},
	{"!=", TokNotEquals},
	{"!~", TokNotTilde},
	{"(", TokLParen},
	{")", TokRParen},
	{"[", TokLBracket},
	{"]", TokRBracket},
	{".", TokPeriod},
	{":", TokColon},
	{";", TokSemicolon},
	{",", TokComma},
	{"-", TokMinus},
	{"<", TokRecurseUp},
	{">", TokRecurseDown},
	{"=", TokEquals},
	{"~", TokTilde},
	{"!", TokBang},
}

// lexer is a scanner over the UTF-8 script source, producing a lazy
// sequence of positioned tokens. Whitespace is skipped between tokens.
type lexer struct {
	src []byte
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []byte(src)}
}

func (l *lexer) eof() bool { return l.pos >= len(l.src) }

func (l *lexer) skipSpace() {
	for !l.eof() {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.pos++
			continue
		}
		break
	}
}

// next returns the next token, or a *LexError.
func (l *lexer) next() (Token, error) {
	l.skipSpace()
	if l.eof() {
		return Token{Pos: l.pos, Kind: TokEOF}, nil
	}
	start := l.pos

	for _, lt := range literalTokens {
		if l.hasPrefix(lt.s) {
			l.pos += len(lt.s)
			return Token{Pos: start, Kind: lt.k}, nil
		}
	}

	c := l.src[l.pos]
	if c == '"' || c == '\'' {
		s, err := l.scanString(c)
		if err != nil {
			return Token{}, err
		}
		return Token{Pos: start, Kind: TokString, String: s}, nil
	}

	if isDigit(c) {
		n, err := l.scanNumber()
		if err != nil {
			return Token{}, err
		}
		return Token{Pos: start, Kind: TokNumber, Number: n}, nil
	}

	if isIdentStart(c) {
		s := l.scanIdent()
		return Token{Pos: start, Kind: TokIdent, String: s}, nil
	}

	return Token{}, &LexError{Pos: start, Msg: fmt.Sprintf("illegal character %q", c)}
}

func (l *lexer) hasPrefix(s string) bool {
	if l.pos+len(s) > len(l.src) {
		return false
	}
	return string(l.src[l.pos:l.pos+len(s)]) == s
}

func (l *lexer) scanString(delim byte) (string, error) {
	start := l.pos
	l.pos++ // opening delimiter
	var b strings.Builder
	for {
		if l.eof() {
			return "", &LexError{Pos: start, Msg: "unterminated string literal"}
		}
		c := l.src[l.pos]
		if c == delim {
			l.pos++
			return b.String(), nil
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			b.WriteByte(l.src[l.pos])
			l.pos++
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
}

func (l *lexer) scanNumber() (float64, error) {
	start := l.pos
	for !l.eof() && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if !l.eof() && l.src[l.pos] == '.' {
		// Only consume the dot as a decimal point if followed by a
		// digit; otherwise it's the Period token and this number has
		// no fractional part (e.g. "node(1).foo" isn't a concern here
		// since numbers only ever appear inside "(...)" filter lists,
		// but bare "5 . 6" must still lex as Number, Period, Number).
		if l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
			l.pos++
			for !l.eof() && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
	text := string(l.src[start:l.pos])
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &LexError{Pos: start, Msg: fmt.Sprintf("malformed number %q", text)}
	}
	return n, nil
}

func (l *lexer) scanIdent() string {
	start := l.pos
	for !l.eof() && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
