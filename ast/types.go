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

// Package ast defines the abstract syntax tree produced by parsing an
// Overpass-QL-subset script: statement specifications, filters, and
// the small set of scalar value types (SetName, TagSpec, QueryType)
// that appear inside them.
package ast

import "fmt"

// SetName is a user-visible set name as it appears in a script. The
// sentinel name "_" is the default input/output.
type SetName string

// DefaultSetName is the sentinel name bound/read when a statement
// omits an explicit ".Name" input or "-> .Name" output.
const DefaultSetName SetName = "_"

// Kind is the OSM primitive kind of a materialized Item.
type Kind int

const (
	KindNode Kind = iota
	KindWay
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindWay:
		return "way"
	case KindRelation:
		return "relation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// QueryType is the primitive-class selector that begins every Query
// statement body (spec.md §4.2's "queryType" production).
type QueryType int

const (
	QueryNode QueryType = iota
	QueryWay
	QueryRelation
	QueryArea
	QueryDerived
	QueryNWR
)

func (q QueryType) String() string {
	switch q {
	case QueryNode:
		return "node"
	case QueryWay:
		return "way"
	case QueryRelation:
		return "relation"
	case QueryArea:
		return "area"
	case QueryDerived:
		return "derived"
	case QueryNWR:
		return "nwr"
	default:
		return fmt.Sprintf("QueryType(%d)", int(q))
	}
}

// RecurseType selects one of the four structural-membership closures
// spec.md §4.5 defines.
type RecurseType int

const (
	RecurseUp RecurseType = iota
	RecurseUpRelations
	RecurseDown
	RecurseDownRelations
)

func (r RecurseType) String() string {
	switch r {
	case RecurseUp:
		return "<"
	case RecurseUpRelations:
		return "<<"
	case RecurseDown:
		return ">"
	case RecurseDownRelations:
		return ">>"
	default:
		return fmt.Sprintf("RecurseType(%d)", int(r))
	}
}

// Statement is the tagged union of statement bodies a StatementSpec
// can carry. Exactly one of the typed fields is non-nil/meaningful,
// selected by Kind.
type Statement struct {
	Kind StatementKind

	// Query
	Filters []Filter

	// Union
	Members []StatementSpec

	// Difference
	Source *StatementSpec
	Remove *StatementSpec

	// Recurse
	Recurse RecurseType

	// Item, Output: no extra fields; StatementSpec.Inputs carries
	// the referenced set name(s).
}

// StatementKind discriminates Statement's variants.
type StatementKind int

const (
	StmtQuery StatementKind = iota
	StmtUnion
	StmtDifference
	StmtRecurse
	StmtItem
	StmtOutput
)

func (k StatementKind) String() string {
	switch k {
	case StmtQuery:
		return "Query"
	case StmtUnion:
		return "Union"
	case StmtDifference:
		return "Difference"
	case StmtRecurse:
		return "Recurse"
	case StmtItem:
		return "Item"
	case StmtOutput:
		return "Output"
	default:
		return fmt.Sprintf("StatementKind(%d)", int(k))
	}
}

// StatementSpec is one parsed top-level (or nested) statement: the
// named input sets it consumes, its body, and the named output set it
// binds. An omitted input defaults to DefaultSetName; an omitted
// output binds DefaultSetName.
type StatementSpec struct {
	Inputs    []SetName
	Statement Statement
	Output    SetName
}
