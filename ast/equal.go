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

// Equal reports deep structural equality between two StatementSpecs,
// used by the parser's round-trip tests (spec.md §8). TagSpec
// equality (inside Filter.Equal) compares declared source, never
// compiled automata.
func (s StatementSpec) Equal(o StatementSpec) bool {
	if len(s.Inputs) != len(o.Inputs) || s.Output != o.Output {
		return false
	}
	for i := range s.Inputs {
		if s.Inputs[i] != o.Inputs[i] {
			return false
		}
	}
	return s.Statement.Equal(o.Statement)
}

// Equal reports deep structural equality between two Statements.
func (s Statement) Equal(o Statement) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case StmtQuery:
		if len(s.Filters) != len(o.Filters) {
			return false
		}
		for i := range s.Filters {
			if !s.Filters[i].Equal(o.Filters[i]) {
				return false
			}
		}
		return true
	case StmtUnion:
		if len(s.Members) != len(o.Members) {
			return false
		}
		for i := range s.Members {
			if !s.Members[i].Equal(o.Members[i]) {
				return false
			}
		}
		return true
	case StmtDifference:
		return s.Source.Equal(*o.Source) && s.Remove.Equal(*o.Remove)
	case StmtRecurse:
		return s.Recurse == o.Recurse
	case StmtItem, StmtOutput:
		return true
	default:
		return false
	}
}
