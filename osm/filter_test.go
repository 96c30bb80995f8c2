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

package osm

import (
	"testing"

	"github.com/overpassql/overpassql/ast"
	"github.com/overpassql/overpassql/ast/lang"
	"github.com/overpassql/overpassql/trace"
)

// queryProcess returns the Process of the last query statement in src
// (the query node with the highest UniqueSet).
func queryProcess(t *testing.T, src string) trace.Process {
	t.Helper()
	stmts, err := lang.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr, err := trace.Build(stmts)
	if err != nil {
		t.Fatalf("trace.Build: %v", err)
	}
	var last trace.UniqueSet
	found := false
	for id, n := range tr {
		if n.Process.Kind == trace.ProcessQuery && (!found || id > last) {
			last, found = id, true
		}
	}
	if found {
		return tr[last].Process
	}
	t.Fatalf("no query process found in %q", src)
	return trace.Process{}
}

func TestEvalConjunctionShortCircuits(t *testing.T) {
	proc := queryProcess(t, `node[amenity=cafe][name];`)
	match := Item{Kind: ast.KindNode, Tags: map[string]string{"amenity": "cafe", "name": "Joe's"}}
	ok, err := Eval(proc, match, nil)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	noName := Item{Kind: ast.KindNode, Tags: map[string]string{"amenity": "cafe"}}
	ok, err = Eval(proc, noName, nil)
	if err != nil || ok {
		t.Fatalf("expected no match (missing name tag), got ok=%v err=%v", ok, err)
	}

	wrongKind := Item{Kind: ast.KindWay, Tags: map[string]string{"amenity": "cafe", "name": "x"}}
	ok, err = Eval(proc, wrongKind, nil)
	if err != nil || ok {
		t.Fatalf("expected no match (wrong primitive kind), got ok=%v err=%v", ok, err)
	}
}

func TestEvalBoundingBoxRejectsNonNode(t *testing.T) {
	proc := queryProcess(t, `node(1,2,3,4);`)
	way := Item{Kind: ast.KindWay}
	ok, err := Eval(proc, way, nil)
	if err != nil || ok {
		t.Fatalf("expected a BoundingBox filter never to match a non-Node item, got ok=%v err=%v", ok, err)
	}

	inside := Item{Kind: ast.KindNode, Lat: 2, Lon: 3}
	ok, err = Eval(proc, inside, nil)
	if err != nil || !ok {
		t.Fatalf("expected a Node within bounds to match, got ok=%v err=%v", ok, err)
	}

	outside := Item{Kind: ast.KindNode, Lat: 99, Lon: 99}
	ok, err = Eval(proc, outside, nil)
	if err != nil || ok {
		t.Fatalf("expected a Node outside bounds not to match, got ok=%v err=%v", ok, err)
	}
}

func TestEvalTagNotEqualMissingKeySatisfies(t *testing.T) {
	proc := queryProcess(t, `node[amenity!=cafe];`)
	missing := Item{Kind: ast.KindNode, Tags: map[string]string{}}
	ok, err := Eval(proc, missing, nil)
	if err != nil || !ok {
		t.Fatalf("expected a missing key to satisfy !=, got ok=%v err=%v", ok, err)
	}

	different := Item{Kind: ast.KindNode, Tags: map[string]string{"amenity": "bar"}}
	ok, err = Eval(proc, different, nil)
	if err != nil || !ok {
		t.Fatalf("expected a different value to satisfy !=, got ok=%v err=%v", ok, err)
	}

	same := Item{Kind: ast.KindNode, Tags: map[string]string{"amenity": "cafe"}}
	ok, err = Eval(proc, same, nil)
	if err != nil || ok {
		t.Fatalf("expected an equal value to fail !=, got ok=%v err=%v", ok, err)
	}
}

// TestEvalTagEqualRegexKeyRequiresMatchingPair guards against folding
// the value test against the wrong key: a regex key can match several
// tags with different values, and only the (key,value) pair together
// satisfies the filter.
func TestEvalTagEqualRegexKeyRequiresMatchingPair(t *testing.T) {
	proc := queryProcess(t, `node[~"addr:.*"="Main St"];`)
	match := Item{Kind: ast.KindNode, Tags: map[string]string{"addr:x": "other", "addr:y": "Main St"}}
	ok, err := Eval(proc, match, nil)
	if err != nil || !ok {
		t.Fatalf("expected the addr:y pair to satisfy the filter, got ok=%v err=%v", ok, err)
	}

	noMatch := Item{Kind: ast.KindNode, Tags: map[string]string{"addr:x": "other", "addr:y": "Side St"}}
	ok, err = Eval(proc, noMatch, nil)
	if err != nil || ok {
		t.Fatalf("expected no addr:* key to have value \"Main St\", got ok=%v err=%v", ok, err)
	}
}

func TestEvalIntersectionFilter(t *testing.T) {
	proc := queryProcess(t, "node -> .a; node.a;")
	var aID trace.UniqueSet
	for _, id := range proc.Intersections {
		aID = id
	}
	sets := map[trace.UniqueSet]*Set{aID: NewSet()}
	sets[aID].Insert(Identity{Kind: ast.KindNode, ID: 7})

	member := Item{Kind: ast.KindNode, ID: 7}
	ok, err := Eval(proc, member, sets)
	if err != nil || !ok {
		t.Fatalf("expected a member of the referenced set to match, got ok=%v err=%v", ok, err)
	}

	nonMember := Item{Kind: ast.KindNode, ID: 8}
	ok, err = Eval(proc, nonMember, sets)
	if err != nil || ok {
		t.Fatalf("expected a non-member not to match, got ok=%v err=%v", ok, err)
	}
}

func TestEvalIntersectionFilterMissingSetIsError(t *testing.T) {
	proc := queryProcess(t, "node -> .a; node.a;")
	_, err := Eval(proc, Item{Kind: ast.KindNode, ID: 1}, nil)
	if err == nil {
		t.Fatalf("expected an error when the referenced set was never supplied")
	}
}

func TestEvalAreaQueryType(t *testing.T) {
	proc := queryProcess(t, "area;")
	closedWay := Item{Kind: ast.KindWay, NodeRefs: []uint64{1, 2, 3, 1}}
	ok, err := Eval(proc, closedWay, nil)
	if err != nil || !ok {
		t.Fatalf("expected a closed way to match an area query, got ok=%v err=%v", ok, err)
	}
	node := Item{Kind: ast.KindNode}
	ok, err = Eval(proc, node, nil)
	if err != nil || ok {
		t.Fatalf("expected a node never to match an area query, got ok=%v err=%v", ok, err)
	}
}
