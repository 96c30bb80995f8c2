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
)

func TestIsAreaClosedWay(t *testing.T) {
	closed := Item{Kind: ast.KindWay, NodeRefs: []uint64{1, 2, 3, 1}}
	if !closed.IsArea() {
		t.Errorf("expected a closed way to be an area")
	}
	triangle := Item{Kind: ast.KindWay, NodeRefs: []uint64{1, 2, 1}}
	if !triangle.IsArea() {
		t.Errorf("expected a closed 3-ref loop to be an area")
	}
	open := Item{Kind: ast.KindWay, NodeRefs: []uint64{1, 2, 3}}
	if open.IsArea() {
		t.Errorf("expected an open way not to be an area")
	}
	openLoop := Item{Kind: ast.KindWay, NodeRefs: []uint64{1, 2, 3, 4}}
	if openLoop.IsArea() {
		t.Errorf("expected a way whose first and last refs differ not to be an area")
	}
	empty := Item{Kind: ast.KindWay}
	if empty.IsArea() {
		t.Errorf("expected a way with no refs not to be an area")
	}
}

func TestIsAreaNeverMatchesRelation(t *testing.T) {
	mp := Item{Kind: ast.KindRelation, Tags: map[string]string{"type": "multipolygon"}}
	if mp.IsArea() {
		t.Errorf("spec.md §4.5 restricts area to kind==Way; a relation is never an area")
	}
}

func TestIsAreaNeverMatchesNode(t *testing.T) {
	n := Item{Kind: ast.KindNode}
	if n.IsArea() {
		t.Errorf("a bare node can never be an area")
	}
}
