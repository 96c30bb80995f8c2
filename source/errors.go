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

package source

import "fmt"

// IOError wraps a filesystem failure encountered while walking a
// BlobSource (spec.md §7): the path couldn't be opened, or a read
// failed partway through a file.
type IOError struct {
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("source: %s: %s", e.Path, e.Cause)
}

func (e *IOError) Unwrap() error { return e.Cause }

// DecodeError wraps a failure decoding a Blob's contents into
// primitives, surfaced by an osm.Decoder implementation.
type DecodeError struct {
	Path   string
	Offset int64
	Cause  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("source: decode %s @%d: %s", e.Path, e.Offset, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }
