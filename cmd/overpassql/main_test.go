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

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/overpassql/overpassql/ast"
	"github.com/overpassql/overpassql/ast/lang"
	"github.com/overpassql/overpassql/engine"
	"github.com/overpassql/overpassql/osm"
	"github.com/overpassql/overpassql/planner"
	"github.com/overpassql/overpassql/source"
	"github.com/overpassql/overpassql/trace"
)

func TestIsUserError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&lang.ParseError{Pos: 0, Msg: "x"}, true},
		{&lang.LexError{Pos: 0, Msg: "x"}, true},
		{&trace.ResolveError{Name: "n"}, true},
		{&planner.PlanError{Msg: "cycle"}, true},
		{&source.IOError{Path: "p", Cause: errors.New("boom")}, true},
		{&source.DecodeError{Path: "p", Cause: errors.New("boom")}, false},
		{&engine.RunError{Cause: &trace.ResolveError{Name: "n"}}, true},
		{&engine.RunError{Cause: errors.New("decode failure")}, false},
		{errors.New("generic"), false},
	}
	for _, c := range cases {
		if got := isUserError(c.err); got != c.want {
			t.Errorf("isUserError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestSinkWritesOutputsInOrder(t *testing.T) {
	statements, err := lang.Parse("node->.n; .n out;")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr, err := trace.Build(statements)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	outputs := tr.Outputs()
	if len(outputs) != 1 {
		t.Fatalf("want 1 output, got %d", len(outputs))
	}

	set := osm.NewSet()
	set.Insert(osm.Identity{Kind: ast.KindNode, ID: 2})
	set.Insert(osm.Identity{Kind: ast.KindNode, ID: 1})
	sets := map[trace.UniqueSet]*osm.Set{outputs[0]: set}

	var buf bytes.Buffer
	if err := sink(&buf, tr, sets); err != nil {
		t.Fatalf("sink: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 items") {
		t.Fatalf("output missing item count: %q", out)
	}
	iNode1 := strings.Index(out, "node 1")
	iNode2 := strings.Index(out, "node 2")
	if iNode1 < 0 || iNode2 < 0 || iNode2 > iNode1 {
		t.Fatalf("identities not printed in sorted order: %q", out)
	}
}
