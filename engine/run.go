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

package engine

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/overpassql/overpassql/osm"
	"github.com/overpassql/overpassql/planner"
	"github.com/overpassql/overpassql/source"
	"github.com/overpassql/overpassql/trace"
)

// Config holds the knobs Run needs that don't belong to the plan
// itself.
type Config struct {
	Workers int
	Verbose bool

	// SpillThreshold, if positive, is the member count above which a
	// worker's per-pass local Set is spilled to a zstd-compressed
	// scratch file (osm.SpillWriter) instead of being merged directly
	// in memory; the coordinator streams it back in with
	// osm.LoadSpill at merge time (SPEC_FULL.md §3's "spill-to-disk
	// sets"). Zero disables spilling.
	SpillThreshold int
	// SpillDir names the directory scratch files are created in. Empty
	// uses os.TempDir().
	SpillDir string
}

// Run drives plan's passes strictly serially — a later pass may
// depend on an earlier one's result, so passes never overlap — and
// returns the materialized Set for every UniqueSet the plan schedules
// (spec.md §4.5); a node the planner pruned as unreachable from any
// Output has no entry. Each call is stamped with its own correlation id for log
// lines, mirroring the request-id convention common across the
// teacher's server-side logging.
func Run(ctx context.Context, plan planner.Plan, tr trace.Trace, src source.BlobSource, decoder osm.Decoder, cfg Config) (map[trace.UniqueSet]*osm.Set, error) {
	runID := uuid.New()
	sets := make(map[trace.UniqueSet]*osm.Set, len(tr))

	for i, pass := range plan.Passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cfg.Verbose {
			log.Printf("run=%s pass=%d/%d scan=%d map=%d", runID, i+1, len(plan.Passes), len(pass.Scan), len(pass.Map))
		}
		if err := runPass(pass, tr, src, decoder, sets, cfg); err != nil {
			return nil, &RunError{RunID: runID, Pass: i, Cause: err}
		}
	}
	return sets, nil
}
