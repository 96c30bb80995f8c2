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

package lang

import "fmt"

// LexError is a fatal lexing failure: an illegal character, an
// unterminated string literal, or a malformed number (spec.md §7).
type LexError struct {
	Pos int
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at byte %d: %s", e.Pos, e.Msg)
}

// ParseError is a fatal parsing failure: an unexpected token, an
// unterminated group, or a missing semicolon (spec.md §7).
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at byte %d: %s", e.Pos, e.Msg)
}

// RegexError wraps an invalid regular expression encountered while
// compiling a TagSpec at parse time (spec.md §7).
type RegexError struct {
	Pos    int
	Source string
	Cause  error
}

func (e *RegexError) Error() string {
	return fmt.Sprintf("invalid regex %q at byte %d: %s", e.Source, e.Pos, e.Cause)
}

func (e *RegexError) Unwrap() error { return e.Cause }
