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
	"fmt"

	"github.com/overpassql/overpassql/ast"
	"github.com/overpassql/overpassql/trace"
)

// Eval reports whether item satisfies every filter of proc's chain
// (conjunction, spec.md §4.5). sets supplies the already-materialized
// UniqueSets an Intersection filter tests membership against; it may
// be nil when the chain carries no Intersection filter.
func Eval(proc trace.Process, item Item, sets map[trace.UniqueSet]*Set) (bool, error) {
	for i, f := range proc.Filters {
		ok, err := evalOne(f, item, sets, proc.Intersections[i])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalOne(f ast.Filter, item Item, sets map[trace.UniqueSet]*Set, intersectionID trace.UniqueSet) (bool, error) {
	switch f.Kind {
	case ast.FilterQueryType:
		return matchesQueryType(f.QueryType, item), nil

	case ast.FilterID:
		return item.ID == f.ID, nil

	case ast.FilterBoundingBox:
		if item.Kind != ast.KindNode {
			// spec.md §4.5: a BoundingBox filter only ever matches
			// Node primitives directly; way/relation containment is
			// handled by recursion, not by this filter.
			return false, nil
		}
		return item.Lat >= f.S && item.Lat <= f.N && item.Lon >= f.W && item.Lon <= f.E, nil

	case ast.FilterTagExist:
		_, ok := matchTag(item.Tags, f.K)
		return ok, nil

	case ast.FilterTagNotExist:
		_, ok := matchTag(item.Tags, f.K)
		return !ok, nil

	case ast.FilterTagEqual:
		return matchTagPair(item.Tags, f.K, f.V), nil

	case ast.FilterTagNotEqual:
		// The negation of TagEqual: a missing key counts as
		// satisfying "!=" (there is nothing equal to compare).
		return !matchTagPair(item.Tags, f.K, f.V), nil

	case ast.FilterIntersection:
		set := sets[intersectionID]
		if set == nil {
			return false, fmt.Errorf("osm: intersection filter referenced unscheduled set %d", intersectionID)
		}
		return set.Has(item.Identity()), nil

	default:
		return false, fmt.Errorf("osm: unhandled filter kind %v", f.Kind)
	}
}

// matchTag looks up k in tags, honoring k's own TagSpec (literal or
// regex — spec.md §4.1 permits a regex key, not just a regex value).
func matchTag(tags map[string]string, k ast.TagSpec) (string, bool) {
	if !k.IsRegex() {
		v, ok := tags[k.Literal]
		return v, ok
	}
	for tk, tv := range tags {
		if k.Test(tk) {
			return tv, true
		}
	}
	return "", false
}

// matchTagPair reports whether any (tk,tv) pair in tags satisfies both
// k and v — spec.md §4.5: "else any (tk,tv) pair satisfies both
// specs". A key-only lookup (matchTag) isn't enough here: k can match
// several keys with different values, and only the pair itself
// determines whether the filter is satisfied.
func matchTagPair(tags map[string]string, k, v ast.TagSpec) bool {
	if !k.IsRegex() {
		tv, ok := tags[k.Literal]
		return ok && v.Test(tv)
	}
	for tk, tv := range tags {
		if k.Test(tk) && v.Test(tv) {
			return true
		}
	}
	return false
}

func matchesQueryType(qt ast.QueryType, item Item) bool {
	switch qt {
	case ast.QueryNode:
		return item.Kind == ast.KindNode
	case ast.QueryWay:
		return item.Kind == ast.KindWay
	case ast.QueryRelation:
		return item.Kind == ast.KindRelation
	case ast.QueryArea:
		return item.IsArea()
	case ast.QueryNWR:
		return true
	case ast.QueryDerived:
		// spec.md §9's resolution: "derived" has no primitive-level
		// identity of its own — it only ever denotes the output of a
		// prior set-algebra statement, so it never matches a raw
		// decoded primitive directly.
		return false
	default:
		return false
	}
}
