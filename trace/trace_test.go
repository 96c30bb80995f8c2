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

package trace

import (
	"testing"

	"github.com/overpassql/overpassql/ast"
	"github.com/overpassql/overpassql/ast/lang"
)

func mustParse(t *testing.T, src string) []ast.StatementSpec {
	t.Helper()
	stmts, err := lang.Parse(src)
	if err != nil {
		t.Fatalf("parse(%q): %v", src, err)
	}
	return stmts
}

func TestBuildSimpleQuery(t *testing.T) {
	stmts := mustParse(t, "node;")
	tr, err := Build(stmts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tr) != 1 {
		t.Fatalf("expected 1 node, got %d", len(tr))
	}
	for _, n := range tr {
		if n.Process.Kind != ProcessQuery {
			t.Fatalf("expected ProcessQuery, got %v", n.Process.Kind)
		}
		if len(n.Inputs) != 0 {
			t.Fatalf("expected no inputs for a bare query, got %v", n.InputSlice())
		}
	}
}

func TestBuildItemIsAliasNotNode(t *testing.T) {
	stmts := mustParse(t, "node; ._;")
	tr, err := Build(stmts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tr) != 1 {
		t.Fatalf("item statement should not add a node, got %d nodes", len(tr))
	}
}

func TestBuildDifferencePreservesSourceAndRemove(t *testing.T) {
	stmts := mustParse(t, "( node; - node(1); );")
	tr, err := Build(stmts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var diff *TraceNode
	for id := range tr {
		n := tr[id]
		if n.Process.Kind == ProcessDifference {
			diff = &n
		}
	}
	if diff == nil {
		t.Fatalf("expected a ProcessDifference node")
	}
	if diff.Process.Source == diff.Process.Remove {
		t.Fatalf("source and remove must be distinct UniqueSets")
	}
	if _, ok := diff.Inputs[diff.Process.Source]; !ok {
		t.Errorf("Source UniqueSet must appear in Inputs")
	}
	if _, ok := diff.Inputs[diff.Process.Remove]; !ok {
		t.Errorf("Remove UniqueSet must appear in Inputs")
	}
}

func TestBuildUnresolvedSetIsFatal(t *testing.T) {
	stmts := mustParse(t, ".missing out;")
	if _, err := Build(stmts); err == nil {
		t.Fatalf("expected ResolveError for undefined set")
	} else if _, ok := err.(*ResolveError); !ok {
		t.Fatalf("expected *ResolveError, got %T: %v", err, err)
	}
}

func TestBuildIsIdempotentOverRepeatedCalls(t *testing.T) {
	stmts := mustParse(t, "node[amenity]; <;")
	a, err := Build(stmts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := Build(stmts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("two builds of the same statements produced different graph sizes: %d vs %d", len(a), len(b))
	}
}

func TestIntersectionFilterFoldedIntoInputs(t *testing.T) {
	stmts := mustParse(t, "node -> .a; node.a;")
	tr, err := Build(stmts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var aID UniqueSet
	var bNode *TraceNode
	for id := range tr {
		n := tr[id]
		if n.Process.Kind == ProcessQuery && len(n.Inputs) == 0 {
			aID = id
		}
	}
	for id := range tr {
		n := tr[id]
		if n.Process.Kind == ProcessQuery && len(n.Inputs) == 1 {
			bNode = &n
		}
	}
	if bNode == nil {
		t.Fatalf("expected a query node with a folded intersection input")
	}
	if _, ok := bNode.Inputs[aID]; !ok {
		t.Errorf("expected intersection filter to fold referenced set %d into Inputs, got %v", aID, bNode.InputSlice())
	}
}
