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

import "github.com/overpassql/overpassql/ast"

// Recurse evaluates one membership-closure step over a single
// decoded primitive against an already-materialized input Set,
// inserting any newly reachable Identity into out (spec.md §4.5). New
// code: the original prototype never implements the Recurse family,
// so this is grounded on Item's own Way/Relation payload shapes
// rather than translated from original_source.
//
//   - Down:          way/relation -> its member nodes/ways/relations,
//     one hop only. A relation member that is itself a relation is not
//     transitively expanded (spec.md §9 leaves recurse transitivity an
//     open question); DownRelations is currently identical to Down.
//   - Up:            node/way -> the way/relation(s) that reference it
//   - UpRelations:   as Up, and additionally relation -> the
//     relation(s) that reference it (one hop)
//
// Up/UpRelations require scanning the containing primitive (a way or
// relation) and testing whether it references a member already in
// the input Set; Down/DownRelations require scanning the containing
// primitive itself and, if it is already in the input Set, inserting
// every member it references. Both directions are evaluated from the
// "container" side during a pass's scan, since a Node's own payload
// carries no back-references (spec.md §3).
func Recurse(rt ast.RecurseType, item Item, in *Set, out *Set) {
	switch rt {
	case ast.RecurseDown:
		recurseDown(rt, item, in, out)
	case ast.RecurseDownRelations:
		recurseDown(rt, item, in, out)
	case ast.RecurseUp, ast.RecurseUpRelations:
		recurseUp(rt, item, in, out)
	}
}

func recurseDown(rt ast.RecurseType, item Item, in *Set, out *Set) {
	if !in.Has(item.Identity()) {
		return
	}
	switch item.Kind {
	case ast.KindWay:
		for _, ref := range item.NodeRefs {
			out.Insert(Identity{Kind: ast.KindNode, ID: ref})
		}
	case ast.KindRelation:
		for _, m := range item.Members {
			out.Insert(Identity{Kind: m.Kind, ID: m.ID})
		}
	}
}

func recurseUp(rt ast.RecurseType, item Item, in *Set, out *Set) {
	switch item.Kind {
	case ast.KindWay:
		for _, ref := range item.NodeRefs {
			if in.Has(Identity{Kind: ast.KindNode, ID: ref}) {
				out.Insert(item.Identity())
				return
			}
		}
	case ast.KindRelation:
		for _, m := range item.Members {
			if rt == ast.RecurseUp && m.Kind == ast.KindRelation {
				continue
			}
			if in.Has(Identity{Kind: m.Kind, ID: m.ID}) {
				out.Insert(item.Identity())
				return
			}
		}
	}
}
