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
	"fmt"

	"github.com/google/uuid"
)

// RunError wraps the first fatal error a pass produced, tagged with
// the run's correlation id and the pass index, so a log line and a
// returned error always agree on which run/pass failed. Grounded on
// plan/exec.go's appenderr/appenderrs aggregation convention, adapted
// to wrap a single first error rather than flatten a slice, since
// engine's coordinator already keeps only the first worker error.
type RunError struct {
	RunID uuid.UUID
	Pass  int
	Cause error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("engine: run %s: pass %d: %s", e.RunID, e.Pass, e.Cause)
}

func (e *RunError) Unwrap() error { return e.Cause }
