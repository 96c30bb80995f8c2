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

// Package trace walks a parsed script's statement specifications in
// source order and builds the data-flow graph (spec.md §4.3): a map
// from unique set id to a trace node carrying its input sets and the
// process that produces it.
package trace

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/overpassql/overpassql/ast"
)

// UniqueSet is a process-local, monotonically increasing identifier
// for a materialized set. Because a script may rebind the same
// ast.SetName many times, SetName->UniqueSet is many-to-one over the
// run, but each UniqueSet is written by exactly one statement.
type UniqueSet uint32

// ProcessKind mirrors ast.StatementKind, minus nesting: by the time a
// TraceNode exists, nested unions/differences have already been
// lowered to their own UniqueSets referenced by id.
type ProcessKind int

const (
	ProcessQuery ProcessKind = iota
	ProcessUnion
	ProcessDifference
	ProcessRecurse
	ProcessOutput
)

func (k ProcessKind) String() string {
	switch k {
	case ProcessQuery:
		return "Query"
	case ProcessUnion:
		return "Union"
	case ProcessDifference:
		return "Difference"
	case ProcessRecurse:
		return "Recurse"
	case ProcessOutput:
		return "Output"
	default:
		return "Process(?)"
	}
}

// Process is the per-node payload of a TraceNode: the operation that
// produces this UniqueSet's contents.
type Process struct {
	Kind ProcessKind

	// ProcessQuery: the filter chain to evaluate against every
	// primitive in the scan (QueryType is always Filters[0]).
	// Intersections maps a Filters index (for the FilterIntersection
	// entries among them) to the UniqueSet it was resolved against, so
	// osm.Eval never has to re-resolve an ast.SetName itself.
	Filters       []ast.Filter
	Intersections map[int]UniqueSet

	// ProcessRecurse
	Recurse ast.RecurseType

	// ProcessDifference: which input is the source and which is
	// removed. Both are also present in TraceNode.Inputs, but the set
	// of inputs alone doesn't encode which is which (spec.md §4.3),
	// so the process record retains them explicitly.
	Source, Remove UniqueSet
}

// IsQueryFamily reports whether this process is a primary data
// producer that must run as part of a scan pass (spec.md §4.4), as
// opposed to a pure in-memory transform of already-materialized sets.
func (p Process) IsQueryFamily() bool {
	return p.Kind == ProcessQuery || p.Kind == ProcessRecurse
}

// TraceNode is one vertex of the data-flow graph: the UniqueSets it
// reads, and the Process that computes it.
type TraceNode struct {
	Inputs  map[UniqueSet]struct{}
	Process Process
}

// InputSlice returns Inputs as a sorted slice, for deterministic
// diagnostics and tests.
func (n TraceNode) InputSlice() []UniqueSet {
	s := maps.Keys(n.Inputs)
	slices.Sort(s)
	return s
}

// Trace is the full data-flow graph: every UniqueSet appears as a key
// exactly once; every UniqueSet referenced as an input has a key in
// the map; the graph is acyclic (spec.md §3 Invariants).
type Trace map[UniqueSet]TraceNode

// Outputs returns the UniqueSets of every Output-kind node, in
// ascending id order (source order, since ids are assigned in source
// order).
func (t Trace) Outputs() []UniqueSet {
	var out []UniqueSet
	for id, n := range t {
		if n.Process.Kind == ProcessOutput {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// tracer holds the mutable state threaded through Build: the current
// SetName->UniqueSet bindings and the accumulated graph. Grounded on
// original_source/src/trace.rs's Tracer (named_sets map,
// UniqueSetGenerator, nodes map), translated to explicit error
// returns instead of panics.
type tracer struct {
	named map[ast.SetName]UniqueSet
	next  UniqueSet
	nodes Trace
}

// Build traces a parsed script's statements in source order and
// returns the resulting data-flow graph. A reference to an unbound
// SetName is a fatal *ResolveError (spec.md §4.3).
func Build(statements []ast.StatementSpec) (Trace, error) {
	tr := &tracer{
		named: make(map[ast.SetName]UniqueSet),
		nodes: make(Trace),
	}
	for _, spec := range statements {
		if _, err := tr.traceSpec(spec); err != nil {
			return nil, err
		}
	}
	return tr.nodes, nil
}

func (tr *tracer) resolve(name ast.SetName) (UniqueSet, error) {
	id, ok := tr.named[name]
	if !ok {
		return 0, &ResolveError{Name: string(name)}
	}
	return id, nil
}

func (tr *tracer) addNode(inputs map[UniqueSet]struct{}, process Process, output ast.SetName) UniqueSet {
	tr.next++
	id := tr.next
	tr.named[output] = id
	tr.nodes[id] = TraceNode{Inputs: inputs, Process: process}
	return id
}

// traceSpec traces one StatementSpec and returns the UniqueSet it
// produces (or, for an Item statement, the UniqueSet it aliases).
func (tr *tracer) traceSpec(spec ast.StatementSpec) (UniqueSet, error) {
	switch spec.Statement.Kind {
	case ast.StmtUnion:
		inputs := make(map[UniqueSet]struct{}, len(spec.Statement.Members))
		for _, member := range spec.Statement.Members {
			id, err := tr.traceSpec(member)
			if err != nil {
				return 0, err
			}
			inputs[id] = struct{}{}
		}
		return tr.addNode(inputs, Process{Kind: ProcessUnion}, spec.Output), nil

	case ast.StmtDifference:
		sourceID, err := tr.traceSpec(*spec.Statement.Source)
		if err != nil {
			return 0, err
		}
		removeID, err := tr.traceSpec(*spec.Statement.Remove)
		if err != nil {
			return 0, err
		}
		inputs := map[UniqueSet]struct{}{sourceID: {}, removeID: {}}
		proc := Process{Kind: ProcessDifference, Source: sourceID, Remove: removeID}
		return tr.addNode(inputs, proc, spec.Output), nil

	case ast.StmtQuery:
		inputs, filters, intersections, err := tr.resolveIntersections(spec.Statement.Filters)
		if err != nil {
			return 0, err
		}
		proc := Process{Kind: ProcessQuery, Filters: filters, Intersections: intersections}
		return tr.addNode(inputs, proc, spec.Output), nil

	case ast.StmtRecurse:
		inputs := make(map[UniqueSet]struct{}, len(spec.Inputs))
		for _, name := range spec.Inputs {
			id, err := tr.resolve(name)
			if err != nil {
				return 0, err
			}
			inputs[id] = struct{}{}
		}
		proc := Process{Kind: ProcessRecurse, Recurse: spec.Statement.Recurse}
		return tr.addNode(inputs, proc, spec.Output), nil

	case ast.StmtItem:
		if len(spec.Inputs) != 1 {
			return 0, &ResolveError{Name: "", Msg: "item statement requires exactly one input set"}
		}
		id, err := tr.resolve(spec.Inputs[0])
		if err != nil {
			return 0, err
		}
		// No node representation: a pure aliasing edge (spec.md §4.3).
		tr.named[spec.Output] = id
		return id, nil

	case ast.StmtOutput:
		inputs := make(map[UniqueSet]struct{}, len(spec.Inputs))
		for _, name := range spec.Inputs {
			id, err := tr.resolve(name)
			if err != nil {
				return 0, err
			}
			inputs[id] = struct{}{}
		}
		return tr.addNode(inputs, Process{Kind: ProcessOutput}, spec.Output), nil

	default:
		return 0, &ResolveError{Msg: "unhandled statement kind"}
	}
}

// resolveIntersections resolves every Filter.Intersection SetName
// reference within a Query's filter list to a UniqueSet and folds it
// into the node's input_sets. See SPEC_FULL.md §1: this is the
// deliberate deviation from the literal "Query nodes have no inputs"
// reading of spec.md §4.3, required for the planner to enforce
// spec.md §4.5's "referenced UniqueSet must be scheduled in an
// earlier pass" rule.
func (tr *tracer) resolveIntersections(filters []ast.Filter) (map[UniqueSet]struct{}, []ast.Filter, map[int]UniqueSet, error) {
	inputs := make(map[UniqueSet]struct{})
	var intersections map[int]UniqueSet
	for i, f := range filters {
		if f.Kind == ast.FilterIntersection {
			id, err := tr.resolve(f.Intersection)
			if err != nil {
				return nil, nil, nil, err
			}
			inputs[id] = struct{}{}
			if intersections == nil {
				intersections = make(map[int]UniqueSet)
			}
			intersections[i] = id
		}
	}
	return inputs, filters, intersections, nil
}
