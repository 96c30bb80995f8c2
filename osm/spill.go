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

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/overpassql/overpassql/ast"
)

func kindFromByte(b byte) ast.Kind { return ast.Kind(b) }

// SpillWriter streams a Set's members out to a zstd-compressed file
// once an in-memory Set crosses a configured size threshold (spec.md
// §4.4's spill-to-disk Non-goal exception: the engine may buffer
// intermediate sets on disk, it just never spills the primitive
// stream itself). Grounded on ion/blockfmt/convert.go's
// zstd.NewReader/NewWriter usage over a plain io.Reader/Writer.
type SpillWriter struct {
	f   *os.File
	zw  *zstd.Encoder
	buf *bufio.Writer
}

// CreateSpill opens a fresh spill file at path and wraps it in a zstd
// encoder.
func CreateSpill(path string) (*SpillWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("osm: create spill file: %w", err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("osm: create zstd encoder: %w", err)
	}
	return &SpillWriter{f: f, zw: zw, buf: bufio.NewWriter(zw)}, nil
}

// WriteSet appends every member of s, 9 bytes each (Kind byte + LE
// uint64 ID).
func (w *SpillWriter) WriteSet(s *Set) error {
	var rec [9]byte
	var writeErr error
	s.Each(func(id Identity) {
		if writeErr != nil {
			return
		}
		rec[0] = byte(id.Kind)
		binary.LittleEndian.PutUint64(rec[1:], id.ID)
		if _, err := w.buf.Write(rec[:]); err != nil {
			writeErr = err
		}
	})
	return writeErr
}

// Close flushes and closes the spill file.
func (w *SpillWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.zw.Close()
		w.f.Close()
		return fmt.Errorf("osm: flush spill file: %w", err)
	}
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("osm: close zstd encoder: %w", err)
	}
	return w.f.Close()
}

// LoadSpill reads back every Identity written by a SpillWriter at path
// and merges them into the destination Set.
func LoadSpill(path string, dst *Set) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("osm: open spill file: %w", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("osm: open zstd decoder: %w", err)
	}
	defer zr.Close()

	var rec [9]byte
	for {
		_, err := io.ReadFull(zr, rec[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("osm: read spill record: %w", err)
		}
		dst.Insert(Identity{
			Kind: kindFromByte(rec[0]),
			ID:   binary.LittleEndian.Uint64(rec[1:]),
		})
	}
}
