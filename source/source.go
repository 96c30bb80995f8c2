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

// Package source reads the sequence of length-delimited blobs out of
// one or more PBF dump files (spec.md §1/§6). The blob codec itself —
// protobuf framing, zlib inflation, the primitive block layout — is
// out of scope (spec.md explicitly treats the PBF decoder as an
// opaque, assumed-to-exist library) and lives behind the Decoder
// interface in package osm; this package only knows how to walk
// files and hand back opaque byte ranges.
package source

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Blob is one length-delimited chunk read from a PBF file, still
// undecoded.
type Blob struct {
	Path   string
	Offset int64
	Data   []byte
}

// BlobSource yields every Blob across one or more files, in some
// stable but otherwise unspecified order — the engine's pass
// scheduling and Set.Merge never depend on blob order (spec.md §4.4).
type BlobSource interface {
	// Each calls fn once per Blob. It returns the first non-nil error
	// fn returns, or an *IOError from reading the underlying files.
	Each(fn func(Blob) error) error
}

// FileSource is the default BlobSource: a fixed list of PBF dump file
// paths, each framed as a stream of 4-byte little-endian length
// prefixes followed by that many bytes of blob payload. Grounded on
// original_source/src/pbf_source.rs's PbfSource/All iterator (lazy
// per-path os.File open, one read loop per file, released at EOF).
type FileSource struct {
	Paths []string
}

// Each implements BlobSource by streaming every path in order,
// opening (and closing) one file at a time.
func (s FileSource) Each(fn func(Blob) error) error {
	for _, path := range s.Paths {
		if err := eachInFile(path, fn); err != nil {
			return err
		}
	}
	return nil
}

func eachInFile(path string, fn func(Blob) error) error {
	f, err := os.Open(path)
	if err != nil {
		return &IOError{Path: path, Cause: err}
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var offset int64
	var lenBuf [4]byte
	for {
		pos := offset
		_, err := io.ReadFull(r, lenBuf[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &IOError{Path: path, Cause: fmt.Errorf("read blob length: %w", err)}
		}
		offset += 4
		n := binary.LittleEndian.Uint32(lenBuf[:])
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return &IOError{Path: path, Cause: fmt.Errorf("read blob payload (%d bytes): %w", n, err)}
		}
		offset += int64(n)
		if err := fn(Blob{Path: path, Offset: pos, Data: data}); err != nil {
			return err
		}
	}
}
