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

import (
	"fmt"

	"github.com/overpassql/overpassql/ast"
)

// queryTypes maps the bare-identifier query type keywords (spec.md
// §4.2) to their ast.QueryType value.
var queryTypes = map[string]ast.QueryType{
	"node":     ast.QueryNode,
	"way":      ast.QueryWay,
	"relation": ast.QueryRelation,
	"area":     ast.QueryArea,
	"derived":  ast.QueryDerived,
	"nwr":      ast.QueryNWR,
}

// Parse lexes and parses a full script into its top-level statement
// specifications, per spec.md §4.2.
func Parse(src string) ([]ast.StatementSpec, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var out []ast.StatementSpec
	for !p.atEOF() {
		spec, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

func tokenize(src string) ([]Token, error) {
	l := newLexer(src)
	var toks []Token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Kind == TokEOF {
			return toks, nil
		}
	}
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) atEOF() bool { return p.peek().Kind == TokEOF }

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) peekAt(offset int) Token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[i]
}

func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k TokenKind) (Token, error) {
	t := p.peek()
	if t.Kind != k {
		return Token{}, &ParseError{Pos: t.Pos, Msg: fmt.Sprintf("expected %s, found %s", k, t.Kind)}
	}
	return p.advance(), nil
}

// parseStatement parses one top-level or nested "statement ';'"
// production (spec.md §4.2).
func (p *parser) parseStatement() (ast.StatementSpec, error) {
	var inputs []ast.SetName

	if p.peek().Kind == TokPeriod {
		name, err := p.parseDotName()
		if err != nil {
			return ast.StatementSpec{}, err
		}
		// Per SPEC_FULL.md §1: if nothing but ';' or '->' follows, the
		// leading ".Name" IS the whole body (an Item statement).
		if next := p.peek().Kind; next == TokSemicolon || next == TokArrow {
			return p.finishStatement([]ast.SetName{name}, ast.Statement{Kind: ast.StmtItem})
		}
		inputs = []ast.SetName{name}
	}

	switch t := p.peek(); {
	case t.Kind == TokLParen:
		stmt, err := p.parseParenBody()
		if err != nil {
			return ast.StatementSpec{}, err
		}
		return p.finishStatement(inputs, stmt)

	case t.Kind == TokRecurseUp || t.Kind == TokRecurseUpRelations ||
		t.Kind == TokRecurseDown || t.Kind == TokRecurseDownRelations:
		rt := recurseTypeFor(p.advance().Kind)
		if len(inputs) == 0 {
			inputs = []ast.SetName{ast.DefaultSetName}
		}
		return p.finishStatement(inputs, ast.Statement{Kind: ast.StmtRecurse, Recurse: rt})

	case t.Kind == TokIdent && t.String == "out":
		p.advance()
		if len(inputs) == 0 {
			inputs = []ast.SetName{ast.DefaultSetName}
		}
		return p.finishStatement(inputs, ast.Statement{Kind: ast.StmtOutput})

	case t.Kind == TokIdent:
		if _, ok := queryTypes[t.String]; ok {
			stmt, err := p.parseQuery()
			if err != nil {
				return ast.StatementSpec{}, err
			}
			return p.finishStatement(inputs, stmt)
		}
		return ast.StatementSpec{}, &ParseError{Pos: t.Pos, Msg: fmt.Sprintf("unknown query type %q", t.String)}

	default:
		return ast.StatementSpec{}, &ParseError{Pos: t.Pos, Msg: fmt.Sprintf("unexpected token %s", t.Kind)}
	}
}

func recurseTypeFor(k TokenKind) ast.RecurseType {
	switch k {
	case TokRecurseUp:
		return ast.RecurseUp
	case TokRecurseUpRelations:
		return ast.RecurseUpRelations
	case TokRecurseDown:
		return ast.RecurseDown
	case TokRecurseDownRelations:
		return ast.RecurseDownRelations
	default:
		panic("recurseTypeFor: not a recurse token")
	}
}

// finishStatement parses the optional "-> .Name" output and the
// mandatory terminating ';', completing a StatementSpec.
func (p *parser) finishStatement(inputs []ast.SetName, stmt ast.Statement) (ast.StatementSpec, error) {
	output := ast.DefaultSetName
	if p.peek().Kind == TokArrow {
		p.advance()
		name, err := p.parseDotName()
		if err != nil {
			return ast.StatementSpec{}, err
		}
		output = name
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return ast.StatementSpec{}, err
	}
	return ast.StatementSpec{Inputs: inputs, Statement: stmt, Output: output}, nil
}

// parseDotName parses a '.' Name pair and returns Name.
func (p *parser) parseDotName() (ast.SetName, error) {
	if _, err := p.expect(TokPeriod); err != nil {
		return "", err
	}
	t := p.peek()
	if t.Kind != TokIdent && t.Kind != TokString {
		return "", &ParseError{Pos: t.Pos, Msg: fmt.Sprintf("expected set name after '.', found %s", t.Kind)}
	}
	p.advance()
	return ast.SetName(t.String), nil
}

// parseParenBody parses the "(" ... ")" body shared by union and
// difference (spec.md §4.2): after the first member, a lone '-' token
// signals a difference; otherwise further members accumulate a union.
func (p *parser) parseParenBody() (ast.Statement, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return ast.Statement{}, err
	}
	if p.peek().Kind == TokRParen {
		p.advance()
		return ast.Statement{Kind: ast.StmtUnion}, nil
	}

	first, err := p.parseStatement()
	if err != nil {
		return ast.Statement{}, err
	}

	if p.peek().Kind == TokMinus {
		p.advance()
		second, err := p.parseStatement()
		if err != nil {
			return ast.Statement{}, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return ast.Statement{}, err
		}
		return ast.Statement{Kind: ast.StmtDifference, Source: &first, Remove: &second}, nil
	}

	members := []ast.StatementSpec{first}
	for p.peek().Kind != TokRParen {
		if p.atEOF() {
			return ast.Statement{}, &ParseError{Pos: p.peek().Pos, Msg: "unterminated group"}
		}
		m, err := p.parseStatement()
		if err != nil {
			return ast.Statement{}, err
		}
		members = append(members, m)
	}
	p.advance() // ')'
	return ast.Statement{Kind: ast.StmtUnion, Members: members}, nil
}

// parseQuery parses "queryType filter*" (spec.md §4.2). The QueryType
// filter is always first, guaranteeing cheap short-circuit evaluation.
func (p *parser) parseQuery() (ast.Statement, error) {
	t := p.advance()
	qt := queryTypes[t.String]
	filters := []ast.Filter{{Kind: ast.FilterQueryType, QueryType: qt}}
	for {
		switch p.peek().Kind {
		case TokLParen:
			f, err := p.parseNumericFilter()
			if err != nil {
				return ast.Statement{}, err
			}
			filters = append(filters, f)
		case TokLBracket:
			f, err := p.parseBracketFilter()
			if err != nil {
				return ast.Statement{}, err
			}
			filters = append(filters, f)
		case TokPeriod:
			name, err := p.parseDotName()
			if err != nil {
				return ast.Statement{}, err
			}
			filters = append(filters, ast.Filter{Kind: ast.FilterIntersection, Intersection: name})
		default:
			return ast.Statement{Kind: ast.StmtQuery, Filters: filters}, nil
		}
	}
}

// parseNumericFilter parses "(" Number ")" -> Id, or
// "(" Number "," Number "," Number "," Number ")" -> BoundingBox.
func (p *parser) parseNumericFilter() (ast.Filter, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return ast.Filter{}, err
	}
	n1, err := p.expect(TokNumber)
	if err != nil {
		return ast.Filter{}, err
	}
	if p.peek().Kind == TokRParen {
		p.advance()
		return ast.Filter{Kind: ast.FilterID, ID: uint64(n1.Number)}, nil
	}
	var nums [4]float64
	nums[0] = n1.Number
	for i := 1; i < 4; i++ {
		if _, err := p.expect(TokComma); err != nil {
			return ast.Filter{}, err
		}
		n, err := p.expect(TokNumber)
		if err != nil {
			return ast.Filter{}, err
		}
		nums[i] = n.Number
	}
	if _, err := p.expect(TokRParen); err != nil {
		return ast.Filter{}, err
	}
	return ast.Filter{Kind: ast.FilterBoundingBox, S: nums[0], W: nums[1], N: nums[2], E: nums[3]}, nil
}

// parseBracketFilter parses "[" tagFilter "]" (spec.md §4.2).
func (p *parser) parseBracketFilter() (ast.Filter, error) {
	if _, err := p.expect(TokLBracket); err != nil {
		return ast.Filter{}, err
	}
	f, err := p.parseTagFilter()
	if err != nil {
		return ast.Filter{}, err
	}
	if _, err := p.expect(TokRBracket); err != nil {
		return ast.Filter{}, err
	}
	return f, nil
}

// parseTagFilter implements the tagFilter production. See
// SPEC_FULL.md/DESIGN.md for how the grammar's overlapping '~' forms
// are disambiguated: a leading "!~" token negates and regex-matches
// the key in one step; otherwise an optional leading '!' negates
// existence, and an explicit '~' immediately after '=' or '!'
// switches the value to a regex parsed from the following string.
func (p *parser) parseTagFilter() (ast.Filter, error) {
	if p.peek().Kind == TokNotTilde {
		p.advance()
		k, err := p.parseRegexBody()
		if err != nil {
			return ast.Filter{}, err
		}
		return ast.Filter{Kind: ast.FilterTagNotExist, K: k}, nil
	}

	negate := false
	if p.peek().Kind == TokBang {
		p.advance()
		negate = true
	}

	k, err := p.parseTagSpec()
	if err != nil {
		return ast.Filter{}, err
	}

	switch p.peek().Kind {
	case TokEquals:
		p.advance()
		if p.peek().Kind == TokTilde {
			p.advance()
			v, err := p.parseRegexBody()
			if err != nil {
				return ast.Filter{}, err
			}
			return ast.Filter{Kind: ast.FilterTagEqual, K: k, V: v}, nil
		}
		v, err := p.parseTagSpec()
		if err != nil {
			return ast.Filter{}, err
		}
		return ast.Filter{Kind: ast.FilterTagEqual, K: k, V: v}, nil

	case TokNotEquals:
		p.advance()
		v, err := p.parseTagSpec()
		if err != nil {
			return ast.Filter{}, err
		}
		return ast.Filter{Kind: ast.FilterTagNotEqual, K: k, V: v}, nil

	case TokBang, TokNotTilde:
		// "!~" lexes as a single token; a separate '!' must be
		// followed by '~'.
		if p.advance().Kind == TokBang {
			if _, err := p.expect(TokTilde); err != nil {
				return ast.Filter{}, err
			}
		}
		v, err := p.parseRegexBody()
		if err != nil {
			return ast.Filter{}, err
		}
		return ast.Filter{Kind: ast.FilterTagNotEqual, K: k, V: v}, nil

	default:
		if negate {
			return ast.Filter{Kind: ast.FilterTagNotExist, K: k}, nil
		}
		return ast.Filter{Kind: ast.FilterTagExist, K: k}, nil
	}
}

// parseTagSpec parses "StringLiteral | BareIdent | '~' StringLiteral
// (',' 'i')?".
func (p *parser) parseTagSpec() (ast.TagSpec, error) {
	if p.peek().Kind == TokTilde {
		p.advance()
		return p.parseRegexBody()
	}
	t := p.peek()
	if t.Kind != TokString && t.Kind != TokIdent {
		return ast.TagSpec{}, &ParseError{Pos: t.Pos, Msg: fmt.Sprintf("expected tag literal, found %s", t.Kind)}
	}
	p.advance()
	return ast.NewLiteralTagSpec(t.String), nil
}

// parseRegexBody parses "StringLiteral (',' 'i')?" — the source text
// of a regex TagSpec, following a '~' the caller already consumed.
func (p *parser) parseRegexBody() (ast.TagSpec, error) {
	t, err := p.expect(TokString)
	if err != nil {
		return ast.TagSpec{}, err
	}
	caseInsensitive := false
	if p.peek().Kind == TokComma {
		p.advance()
		flag, err := p.expect(TokIdent)
		if err != nil {
			return ast.TagSpec{}, err
		}
		if flag.String != "i" {
			return ast.TagSpec{}, &ParseError{Pos: flag.Pos, Msg: fmt.Sprintf("unknown regex flag %q", flag.String)}
		}
		caseInsensitive = true
	}
	ts, err := ast.NewRegexTagSpec(t.String, caseInsensitive)
	if err != nil {
		return ast.TagSpec{}, &RegexError{Pos: t.Pos, Source: t.String, Cause: err}
	}
	return ts, nil
}
