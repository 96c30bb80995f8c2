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

// Decoder turns one raw source.Blob's payload into the primitives it
// contains. The real PBF/protobuf/zlib codec is out of scope (spec.md
// §1/§6 treats it as an opaque assumed-to-exist library) — Decoder is
// the seam a real implementation would be plugged in behind; tests
// and the reference CLI instead use an in-memory decoder
// (source.TestDecoder) over a simple newline-delimited encoding.
type Decoder interface {
	Decode(blobData []byte) ([]Item, error)
}
