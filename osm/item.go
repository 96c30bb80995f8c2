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

// Package osm holds the primitive data model (nodes, ways, relations)
// and the in-memory machinery (sets, filter evaluation, recursion)
// that the engine operates on once a PBF blob has been decoded.
package osm

import "github.com/overpassql/overpassql/ast"

// Member is one entry of a relation's member list: a reference to
// another primitive plus its role string (spec.md §3).
type Member struct {
	Kind ast.Kind
	ID   uint64
	Role string
}

// Item is one decoded OSM primitive, tagged by Kind. Only the fields
// relevant to Kind are populated; this mirrors the tagged-union
// convention used throughout ast (Kind enum + switch) rather than an
// interface-and-subtype hierarchy.
type Item struct {
	Kind ast.Kind
	ID   uint64
	Tags map[string]string

	// Node
	Lat, Lon float64

	// Way
	NodeRefs []uint64

	// Relation
	Members []Member
}

// Identity is the (Kind,ID) pair a Set de-duplicates and a recursion
// step traverses by.
type Identity struct {
	Kind ast.Kind
	ID   uint64
}

func (it Item) Identity() Identity { return Identity{Kind: it.Kind, ID: it.ID} }

// IsArea reports whether this primitive can stand in for an "area"
// query type (spec.md §4.2's area/derived query types, resolved in
// SPEC_FULL.md §1): true iff it is a Way and its ref list is non-empty
// and closed (first ref equals last ref).
func (it Item) IsArea() bool {
	if it.Kind != ast.KindWay || len(it.NodeRefs) == 0 {
		return false
	}
	return it.NodeRefs[0] == it.NodeRefs[len(it.NodeRefs)-1]
}
