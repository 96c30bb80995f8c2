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

package ast

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"regexp"
)

// TagSpec is either an exact string literal or a compiled regular
// expression with a case-insensitive flag, per spec.md §3. Regexes are
// compiled once, at parse time (never at evaluation time), with
// multiline mode and Unicode on.
type TagSpec struct {
	// Literal holds the exact-match source when Regex is nil.
	Literal string
	// Source is the regex's original pattern text, kept alongside the
	// compiled form so two TagSpecs can be compared by declared
	// structure rather than by automaton (spec.md §9).
	Source     string
	CaseInsens bool
	Regex      *regexp.Regexp
}

// NewLiteralTagSpec builds a TagSpec matching exactly the given string.
func NewLiteralTagSpec(s string) TagSpec {
	return TagSpec{Literal: s}
}

// NewRegexTagSpec compiles src as a regular expression. Multiline and
// Unicode modes are always enabled; caseInsensitive controls RE2's
// "(?i)" flag. Returns an error the caller should surface as a
// RegexError (spec.md §7).
func NewRegexTagSpec(src string, caseInsensitive bool) (TagSpec, error) {
	pattern := "(?m)" + src
	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return TagSpec{}, err
	}
	return TagSpec{Source: src, CaseInsens: caseInsensitive, Regex: re}, nil
}

// IsRegex reports whether t is the regex variant.
func (t TagSpec) IsRegex() bool {
	return t.Regex != nil
}

// Test reports whether s satisfies this TagSpec.
func (t TagSpec) Test(s string) bool {
	if t.IsRegex() {
		return t.Regex.MatchString(s)
	}
	return s == t.Literal
}

// Equal reports whether two TagSpecs are the same variant with the
// same literal source (and, for regexes, the same case-insensitivity
// flag). Compiled automata are never compared, per spec.md §9.
func (t TagSpec) Equal(o TagSpec) bool {
	if t.IsRegex() != o.IsRegex() {
		return false
	}
	if t.IsRegex() {
		return t.Source == o.Source && t.CaseInsens == o.CaseInsens
	}
	return t.Literal == o.Literal
}

// gobTagSpec is TagSpec's wire shape for gob persistence (cache.Store):
// the compiled Regex is never serialized, only the declared source it
// was built from, and recompiled on decode.
type gobTagSpec struct {
	Literal    string
	Source     string
	CaseInsens bool
	IsRegex    bool
}

// GobEncode implements gob.GobEncoder, dropping the compiled Regex in
// favor of its declared source.
func (t TagSpec) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	g := gobTagSpec{Literal: t.Literal, Source: t.Source, CaseInsens: t.CaseInsens, IsRegex: t.IsRegex()}
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder, recompiling the Regex from its
// declared source.
func (t *TagSpec) GobDecode(data []byte) error {
	var g gobTagSpec
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	if !g.IsRegex {
		*t = NewLiteralTagSpec(g.Literal)
		return nil
	}
	ts, err := NewRegexTagSpec(g.Source, g.CaseInsens)
	if err != nil {
		return fmt.Errorf("ast: recompiling cached regex %q: %w", g.Source, err)
	}
	*t = ts
	return nil
}

func (t TagSpec) String() string {
	if t.IsRegex() {
		if t.CaseInsens {
			return fmt.Sprintf("~%q,i", t.Source)
		}
		return fmt.Sprintf("~%q", t.Source)
	}
	return fmt.Sprintf("%q", t.Literal)
}

// FilterKind discriminates Filter's variants (spec.md §3).
type FilterKind int

const (
	FilterQueryType FilterKind = iota
	FilterID
	FilterBoundingBox
	FilterTagExist
	FilterTagNotExist
	FilterTagEqual
	FilterTagNotEqual
	FilterIntersection
)

func (k FilterKind) String() string {
	switch k {
	case FilterQueryType:
		return "QueryType"
	case FilterID:
		return "Id"
	case FilterBoundingBox:
		return "BoundingBox"
	case FilterTagExist:
		return "TagExist"
	case FilterTagNotExist:
		return "TagNotExist"
	case FilterTagEqual:
		return "TagEqual"
	case FilterTagNotEqual:
		return "TagNotEqual"
	case FilterIntersection:
		return "Intersection"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

// Filter is a single predicate over an Item, one of the variants in
// spec.md §3. Exactly the fields relevant to Kind are meaningful.
type Filter struct {
	Kind FilterKind

	QueryType QueryType // FilterQueryType
	ID        uint64    // FilterID

	// FilterBoundingBox
	S, W, N, E float64

	K TagSpec // FilterTagExist, FilterTagNotExist, FilterTagEqual, FilterTagNotEqual
	V TagSpec // FilterTagEqual, FilterTagNotEqual

	Intersection SetName // FilterIntersection
}

// Equal reports structural equality of two filters, including TagSpec
// comparison by declared source rather than compiled automaton.
func (f Filter) Equal(o Filter) bool {
	if f.Kind != o.Kind {
		return false
	}
	switch f.Kind {
	case FilterQueryType:
		return f.QueryType == o.QueryType
	case FilterID:
		return f.ID == o.ID
	case FilterBoundingBox:
		return f.S == o.S && f.W == o.W && f.N == o.N && f.E == o.E
	case FilterTagExist, FilterTagNotExist:
		return f.K.Equal(o.K)
	case FilterTagEqual, FilterTagNotEqual:
		return f.K.Equal(o.K) && f.V.Equal(o.V)
	case FilterIntersection:
		return f.Intersection == o.Intersection
	default:
		return false
	}
}
