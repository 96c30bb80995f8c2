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
	"testing"

	"github.com/overpassql/overpassql/ast"
)

func TestParseEmptyUnion(t *testing.T) {
	specs, err := Parse("();")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(specs) != 1 || specs[0].Statement.Kind != ast.StmtUnion || len(specs[0].Statement.Members) != 0 {
		t.Fatalf("got %+v", specs)
	}
}

func TestParseBareNodeQuery(t *testing.T) {
	specs, err := Parse("node;")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("got %d statements, want 1", len(specs))
	}
	s := specs[0]
	if s.Statement.Kind != ast.StmtQuery || s.Output != ast.DefaultSetName {
		t.Fatalf("got %+v", s)
	}
	if len(s.Statement.Filters) != 1 || s.Statement.Filters[0].Kind != ast.FilterQueryType || s.Statement.Filters[0].QueryType != ast.QueryNode {
		t.Fatalf("expected a single QueryType filter, got %+v", s.Statement.Filters)
	}
}

func TestParseItemPassthrough(t *testing.T) {
	specs, err := Parse("._;")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(specs) != 1 || specs[0].Statement.Kind != ast.StmtItem {
		t.Fatalf("got %+v", specs)
	}
	if len(specs[0].Inputs) != 1 || specs[0].Inputs[0] != ast.DefaultSetName {
		t.Fatalf("expected input [_], got %+v", specs[0].Inputs)
	}
}

func TestParseDifference(t *testing.T) {
	specs, err := Parse("( node; - node(1); );")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("got %d statements, want 1", len(specs))
	}
	s := specs[0].Statement
	if s.Kind != ast.StmtDifference {
		t.Fatalf("expected StmtDifference, got %v", s.Kind)
	}
	if s.Source.Statement.Kind != ast.StmtQuery || s.Remove.Statement.Kind != ast.StmtQuery {
		t.Fatalf("expected both difference operands to be queries, got %+v", s)
	}
	if len(s.Remove.Statement.Filters) != 2 || s.Remove.Statement.Filters[1].Kind != ast.FilterID || s.Remove.Statement.Filters[1].ID != 1 {
		t.Fatalf("expected remove side to carry an Id(1) filter, got %+v", s.Remove.Statement.Filters)
	}
}

func TestParseUnionOfMultipleMembers(t *testing.T) {
	specs, err := Parse("( node; way; relation; );")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := specs[0].Statement
	if s.Kind != ast.StmtUnion || len(s.Members) != 3 {
		t.Fatalf("got %+v", s)
	}
}

func TestParseBoundingBoxFilter(t *testing.T) {
	specs, err := Parse("node(1,2,3,4);")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := specs[0].Statement.Filters[1]
	if f.Kind != ast.FilterBoundingBox {
		t.Fatalf("expected FilterBoundingBox, got %v", f.Kind)
	}
	if f.S != 1 || f.W != 2 || f.N != 3 || f.E != 4 {
		t.Fatalf("got %+v", f)
	}
}

func TestParseTagExistAndNotExist(t *testing.T) {
	specs, err := Parse(`node[amenity];`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := specs[0].Statement.Filters[1]
	if f.Kind != ast.FilterTagExist || f.K.Literal != "amenity" {
		t.Fatalf("got %+v", f)
	}

	specs, err = Parse(`node[!amenity];`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f = specs[0].Statement.Filters[1]
	if f.Kind != ast.FilterTagNotExist || f.K.Literal != "amenity" {
		t.Fatalf("got %+v", f)
	}
}

func TestParseTagEqual(t *testing.T) {
	specs, err := Parse(`node[amenity=cafe];`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := specs[0].Statement.Filters[1]
	if f.Kind != ast.FilterTagEqual || f.K.Literal != "amenity" || f.V.Literal != "cafe" {
		t.Fatalf("got %+v", f)
	}
}

func TestParseTagNotEqual(t *testing.T) {
	specs, err := Parse(`node[amenity!=cafe];`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := specs[0].Statement.Filters[1]
	if f.Kind != ast.FilterTagNotEqual || f.K.Literal != "amenity" || f.V.Literal != "cafe" {
		t.Fatalf("got %+v", f)
	}
}

// TestParseCaseInsensitiveRegexScenario mirrors spec.md §8's worked
// example: 'node[amenity=~"Workshop",i];'.
func TestParseCaseInsensitiveRegexScenario(t *testing.T) {
	specs, err := Parse(`node[amenity=~"Workshop",i];`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := specs[0].Statement.Filters[1]
	if f.Kind != ast.FilterTagEqual {
		t.Fatalf("expected FilterTagEqual, got %v", f.Kind)
	}
	if f.K.Literal != "amenity" {
		t.Fatalf("expected plain key %q, got %+v", "amenity", f.K)
	}
	if !f.V.IsRegex() || !f.V.CaseInsens {
		t.Fatalf("expected a case-insensitive regex value, got %+v", f.V)
	}
	if !f.V.Test("workshop") || !f.V.Test("WORKSHOP") {
		t.Fatalf("expected the compiled regex to match case-insensitively")
	}
}

func TestParseIntersectionFilter(t *testing.T) {
	specs, err := Parse("node -> .a; node.a;")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := specs[1].Statement.Filters[1]
	if f.Kind != ast.FilterIntersection || f.Intersection != ast.SetName("a") {
		t.Fatalf("got %+v", f)
	}
}

func TestParseRecurseUp(t *testing.T) {
	specs, err := Parse("node -> .a; .a <;")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := specs[1]
	if s.Statement.Kind != ast.StmtRecurse || s.Statement.Recurse != ast.RecurseUp {
		t.Fatalf("got %+v", s)
	}
	if len(s.Inputs) != 1 || s.Inputs[0] != ast.SetName("a") {
		t.Fatalf("expected input [a], got %+v", s.Inputs)
	}
}

func TestParseOutputStatement(t *testing.T) {
	specs, err := Parse("node; out;")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := specs[1]
	if s.Statement.Kind != ast.StmtOutput {
		t.Fatalf("got %+v", s)
	}
	if len(s.Inputs) != 1 || s.Inputs[0] != ast.DefaultSetName {
		t.Fatalf("expected default input, got %+v", s.Inputs)
	}
}

func TestParseUnterminatedGroupIsFatal(t *testing.T) {
	_, err := Parse("( node;")
	if err == nil {
		t.Fatalf("expected a ParseError for an unterminated group")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestParseUnknownQueryTypeIsFatal(t *testing.T) {
	_, err := Parse("bogus;")
	if err == nil {
		t.Fatalf("expected a ParseError for an unknown query type")
	}
}

func TestParseRoundTripEquality(t *testing.T) {
	a, err := Parse("node[amenity=cafe];")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse("node[amenity=cafe];")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(a) != len(b) || !a[0].Equal(b[0]) {
		t.Fatalf("expected two parses of the same source to be structurally equal")
	}
}
