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

// Package engine drives a planner.Plan to completion: one linear scan
// of the primitive source per planner.Pass, fanned out across a fixed
// worker pool, followed by the pass's pure in-memory (map-family)
// nodes.
package engine

import (
	"fmt"
	"os"

	"github.com/overpassql/overpassql/osm"
	"github.com/overpassql/overpassql/planner"
	"github.com/overpassql/overpassql/source"
	"github.com/overpassql/overpassql/trace"
)

// task is what the coordinator feeds a worker: either one blob to
// decode and scan, or the Finish token telling the worker its input
// is exhausted and it should report its accumulated per-scan-node
// sets back.
type task struct {
	blob   source.Blob
	finish bool
}

// workerResult is what a worker reports back after draining Finish:
// its local partial Set for every scan UniqueSet in this pass, or the
// first error it hit (decode or filter evaluation). A UniqueSet whose
// local Set grew past Config.SpillThreshold is spilled to a scratch
// file instead (SPEC_FULL.md §3) — its entry in sets is omitted and
// its scratch path recorded in spilled.
type workerResult struct {
	sets    map[trace.UniqueSet]*osm.Set
	spilled map[trace.UniqueSet]string
	err     error
}

// worker is the per-goroutine scan loop. Grounded on
// original_source/src/process.rs's Runner.run inner closure
// (task_rx.recv() loop over Task::Blob/Task::Finish, processor per
// worker, digest on Finish) translated to Go channels, cross-checked
// against plan/exec.go's pool-of-goroutines-reading-a-channel-until-
// closed idiom for the surrounding dispatch shape.
type worker struct {
	id      int
	tasks   chan task
	results chan workerResult
	decoder osm.Decoder
	nodes   map[trace.UniqueSet]trace.TraceNode
	sets    map[trace.UniqueSet]*osm.Set // already-materialized, read-only during this pass

	spillThreshold int
	spillDir       string
}

func (w *worker) run(scan []trace.UniqueSet) {
	local := make(map[trace.UniqueSet]*osm.Set, len(scan))
	for _, id := range scan {
		local[id] = osm.NewSet()
	}

	for t := range w.tasks {
		if t.finish {
			sets, spilled, err := w.digest(local)
			if err != nil {
				w.results <- workerResult{err: err}
				return
			}
			w.results <- workerResult{sets: sets, spilled: spilled}
			return
		}
		items, err := w.decoder.Decode(t.blob.Data)
		if err != nil {
			w.drain()
			w.results <- workerResult{err: &source.DecodeError{Path: t.blob.Path, Offset: t.blob.Offset, Cause: err}}
			return
		}
		for _, item := range items {
			if err := w.processItem(item, scan, local); err != nil {
				w.drain()
				w.results <- workerResult{err: err}
				return
			}
		}
	}
}

// digest finalizes this worker's local sets for the pass: a local Set
// whose membership crosses spillThreshold is written out to a zstd
// scratch file (osm.CreateSpill) and dropped from the in-memory
// result, so the coordinator's merge step never needs to hold two
// copies of an oversized worker partial at once (SPEC_FULL.md §3).
func (w *worker) digest(local map[trace.UniqueSet]*osm.Set) (map[trace.UniqueSet]*osm.Set, map[trace.UniqueSet]string, error) {
	if w.spillThreshold <= 0 {
		return local, nil, nil
	}
	sets := make(map[trace.UniqueSet]*osm.Set, len(local))
	var spilled map[trace.UniqueSet]string
	for id, set := range local {
		if set.Len() <= w.spillThreshold {
			sets[id] = set
			continue
		}
		path, err := w.spillSet(id, set)
		if err != nil {
			return nil, nil, err
		}
		if spilled == nil {
			spilled = make(map[trace.UniqueSet]string)
		}
		spilled[id] = path
	}
	return sets, spilled, nil
}

func (w *worker) spillSet(id trace.UniqueSet, set *osm.Set) (string, error) {
	dir := w.spillDir
	if dir == "" {
		dir = os.TempDir()
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("engine: spill dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, fmt.Sprintf("overpassql-spill-w%d-s%d-*.zst", w.id, id))
	if err != nil {
		return "", fmt.Errorf("engine: create spill scratch file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()

	sw, err := osm.CreateSpill(path)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if err := sw.WriteSet(set); err != nil {
		sw.Close()
		os.Remove(path)
		return "", fmt.Errorf("engine: write spill scratch file %s: %w", path, err)
	}
	if err := sw.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// drain consumes remaining tasks after an error so the coordinator's
// blocking send on a capacity-1 channel never wedges.
func (w *worker) drain() {
	for t := range w.tasks {
		if t.finish {
			return
		}
	}
}

func (w *worker) processItem(item osm.Item, scan []trace.UniqueSet, local map[trace.UniqueSet]*osm.Set) error {
	for _, id := range scan {
		n := w.nodes[id]
		switch n.Process.Kind {
		case trace.ProcessQuery:
			ok, err := osm.Eval(n.Process, item, w.sets)
			if err != nil {
				return fmt.Errorf("engine: evaluating set %d: %w", id, err)
			}
			if ok {
				local[id].Insert(item.Identity())
			}
		case trace.ProcessRecurse:
			in := firstInput(n)
			inSet := w.sets[in]
			if inSet == nil {
				return fmt.Errorf("engine: recurse node %d missing input set %d", id, in)
			}
			osm.Recurse(n.Process.Recurse, item, inSet, local[id])
		default:
			return fmt.Errorf("engine: node %d is not a scan-family process (%v)", id, n.Process.Kind)
		}
	}
	return nil
}

func firstInput(n trace.TraceNode) trace.UniqueSet {
	for id := range n.Inputs {
		return id
	}
	return 0
}

// runPass executes one planner.Pass: fans pass.Scan's blobs out to
// cfg.Workers workers round-robin, merges their partial sets into
// sets (mutated in place) — streaming any spilled worker partial back
// in with osm.LoadSpill — then runs pass.Map's pure set-algebra nodes
// serially.
func runPass(pass planner.Pass, tr trace.Trace, src source.BlobSource, decoder osm.Decoder, sets map[trace.UniqueSet]*osm.Set, cfg Config) error {
	if len(pass.Scan) == 0 {
		return runMapNodes(pass, tr, sets)
	}
	workerCount := cfg.Workers
	if workerCount < 1 {
		workerCount = 1
	}
	for _, id := range pass.Scan {
		sets[id] = osm.NewSet()
	}

	workers := make([]*worker, workerCount)
	for i := range workers {
		workers[i] = &worker{
			id:             i,
			tasks:          make(chan task, 1),
			results:        make(chan workerResult, 1),
			decoder:        decoder,
			nodes:          tr,
			sets:           sets,
			spillThreshold: cfg.SpillThreshold,
			spillDir:       cfg.SpillDir,
		}
		go workers[i].run(pass.Scan)
	}

	dispatchErr := make(chan error, 1)
	go func() {
		i := 0
		err := src.Each(func(b source.Blob) error {
			workers[i].tasks <- task{blob: b}
			i = (i + 1) % workerCount
			return nil
		})
		for _, w := range workers {
			w.tasks <- task{finish: true}
			close(w.tasks)
		}
		dispatchErr <- err
	}()

	var firstErr error
	for _, w := range workers {
		res := <-w.results
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
		if res.err == nil {
			for _, id := range pass.Scan {
				if path, ok := res.spilled[id]; ok {
					if err := osm.LoadSpill(path, sets[id]); err != nil && firstErr == nil {
						firstErr = fmt.Errorf("engine: loading spilled partial %s: %w", path, err)
					}
					os.Remove(path)
					continue
				}
				sets[id].Merge(res.sets[id])
			}
		}
	}
	if err := <-dispatchErr; err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return firstErr
	}

	return runMapNodes(pass, tr, sets)
}

func runMapNodes(pass planner.Pass, tr trace.Trace, sets map[trace.UniqueSet]*osm.Set) error {
	for _, id := range pass.Map {
		n := tr[id]
		switch n.Process.Kind {
		case trace.ProcessUnion:
			out := osm.NewSet()
			for in := range n.Inputs {
				out.Merge(sets[in])
			}
			sets[id] = out
		case trace.ProcessDifference:
			sets[id] = osm.Difference(sets[n.Process.Source], sets[n.Process.Remove])
		case trace.ProcessOutput:
			out := osm.NewSet()
			for in := range n.Inputs {
				out.Merge(sets[in])
			}
			sets[id] = out
		default:
			return fmt.Errorf("engine: node %d is not a map-family process (%v)", id, n.Process.Kind)
		}
	}
	return nil
}
