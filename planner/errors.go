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

package planner

import (
	"fmt"

	"github.com/overpassql/overpassql/trace"
)

// PlanError is a fatal scheduling failure: a round of Build scheduled
// nothing, meaning the remaining nodes either form a cycle or
// reference a UniqueSet absent from the trace entirely (spec.md
// §4.4/§7).
type PlanError struct {
	Msg       string
	Remaining []trace.UniqueSet
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan error: %s (remaining=%v)", e.Msg, e.Remaining)
}
