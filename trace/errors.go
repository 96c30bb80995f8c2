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

package trace

import "fmt"

// ResolveError is a fatal trace-time failure: a statement referenced
// a SetName that no earlier statement bound (spec.md §4.3/§7).
type ResolveError struct {
	Name string
	Msg  string
}

func (e *ResolveError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("trace error: %s", e.Msg)
	}
	if e.Msg != "" {
		return fmt.Sprintf("trace error: %s: %q", e.Msg, e.Name)
	}
	return fmt.Sprintf("trace error: undefined set %q", e.Name)
}
