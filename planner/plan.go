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

// Package planner schedules a trace.Trace into an ordered list of
// Passes (spec.md §4.4): each Pass is one linear scan of the PBF
// source, during which every query-family node whose dependencies are
// already satisfied executes concurrently, followed by the map-family
// (pure in-memory) nodes that only depend on sets produced so far.
package planner

import (
	"golang.org/x/exp/slices"

	"github.com/overpassql/overpassql/trace"
)

// Pass is one linear scan of the primitive source. Scan holds the
// query-family nodes (Query, Recurse) that must observe every
// primitive during this pass; Map holds the pure set-algebra nodes
// (Union, Difference, Output) that can run afterward, purely from
// already-materialized sets, in the given order.
type Pass struct {
	Scan []trace.UniqueSet
	Map  []trace.UniqueSet
}

// Plan is the ordered sequence of Passes that realizes a Trace.
type Plan struct {
	Passes []Pass
}

// Build schedules tr into a Plan. Grounded on
// original_source/src/planner.rs's plan(): repeatedly drain the set of
// not-yet-scheduled nodes whose Inputs are all already satisfied,
// partitioning each round into the nodes that require a scan
// (IsQueryFamily) versus those that are pure transforms of already
// materialized sets. Unlike the prototype, a round that schedules
// nothing is treated as a fatal *PlanError instead of looping forever
// (spec.md §4.4 step 4) — the prototype never accounts for a cyclic or
// otherwise malformed trace.Trace reaching the planner.
func Build(tr trace.Trace) (Plan, error) {
	remaining := required(tr)
	satisfied := make(map[trace.UniqueSet]struct{}, len(tr))

	var passes []Pass
	for len(remaining) > 0 {
		// Step 1: schedule every query-family node whose inputs are
		// already satisfied by a strictly earlier pass as this pass's
		// scan set.
		var scan []trace.UniqueSet
		for id := range remaining {
			n := tr[id]
			if n.Process.IsQueryFamily() && inputsSatisfied(n, satisfied) {
				scan = append(scan, id)
			}
		}
		slices.Sort(scan)
		for _, id := range scan {
			satisfied[id] = struct{}{}
			delete(remaining, id)
		}

		// Step 2: iteratively drain map-family nodes whose inputs are
		// now satisfied, including inputs produced by this pass's own
		// scan or by a map node already drained earlier in this same
		// pass (e.g. a Union of two Differences scheduled together).
		var mapped []trace.UniqueSet
		for {
			progress := false
			for id := range remaining {
				n := tr[id]
				if n.Process.IsQueryFamily() {
					continue
				}
				if inputsSatisfied(n, satisfied) {
					mapped = append(mapped, id)
					satisfied[id] = struct{}{}
					delete(remaining, id)
					progress = true
				}
			}
			if !progress {
				break
			}
		}
		slices.Sort(mapped)

		if len(scan) == 0 && len(mapped) == 0 {
			return Plan{}, &PlanError{Msg: "no forward progress: remaining nodes form a cycle or reference an unresolved set", Remaining: remainingSlice(remaining)}
		}

		passes = append(passes, Pass{Scan: scan, Map: mapped})
	}

	return Plan{Passes: passes}, nil
}

// required walks backward from every Output node (original_source/
// src/planner.rs's plan() starts from the statements actually needed,
// not the whole graph; spec.md §4.4 step 1) and returns every UniqueSet
// reachable from one: a node bound but never consumed by an Output
// doesn't force a scan pass.
func required(tr trace.Trace) map[trace.UniqueSet]struct{} {
	seen := make(map[trace.UniqueSet]struct{}, len(tr))
	var walk func(id trace.UniqueSet)
	walk = func(id trace.UniqueSet) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		for in := range tr[id].Inputs {
			walk(in)
		}
	}
	for _, id := range tr.Outputs() {
		walk(id)
	}
	return seen
}

// inputsSatisfied reports whether every UniqueSet a node depends on
// has already been scheduled in an earlier pass or earlier in the
// current pass.
func inputsSatisfied(n trace.TraceNode, satisfied map[trace.UniqueSet]struct{}) bool {
	for id := range n.Inputs {
		if _, ok := satisfied[id]; !ok {
			return false
		}
	}
	return true
}

func remainingSlice(m map[trace.UniqueSet]struct{}) []trace.UniqueSet {
	out := make([]trace.UniqueSet, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
