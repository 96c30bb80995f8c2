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

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/overpassql/overpassql/ast"
	"github.com/overpassql/overpassql/osm"
)

// TestDecoder is an in-memory reference osm.Decoder over a trivial
// pipe-delimited text encoding — one line per primitive — used by
// tests (with fixtures built by EncodeTestBlob below) and by the
// cmd/overpassql front-end, standing in for the real
// protobuf/zlib PBF codec that spec.md §1/§6 scopes out entirely.
type TestDecoder struct{}

// Decode implements osm.Decoder.
func (TestDecoder) Decode(data []byte) ([]osm.Item, error) {
	var items []osm.Item
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		item, err := decodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("source: testdecoder: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// EncodeTestBlob renders items back into TestDecoder's wire format,
// for constructing test fixtures.
func EncodeTestBlob(items []osm.Item) []byte {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(encodeLine(it))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Line format: "<kind>|<id>|<lat>|<lon>|<noderef,noderef,...>|<k=v,k=v,...>|<memberKind:memberID:role;...>"
func encodeLine(it osm.Item) string {
	refs := make([]string, len(it.NodeRefs))
	for i, r := range it.NodeRefs {
		refs[i] = strconv.FormatUint(r, 10)
	}
	var tags []string
	for k, v := range it.Tags {
		tags = append(tags, k+"="+v)
	}
	var members []string
	for _, m := range it.Members {
		members = append(members, fmt.Sprintf("%d:%d:%s", m.Kind, m.ID, m.Role))
	}
	return strings.Join([]string{
		strconv.Itoa(int(it.Kind)),
		strconv.FormatUint(it.ID, 10),
		strconv.FormatFloat(it.Lat, 'g', -1, 64),
		strconv.FormatFloat(it.Lon, 'g', -1, 64),
		strings.Join(refs, ","),
		strings.Join(tags, ","),
		strings.Join(members, ";"),
	}, "|")
}

func decodeLine(line string) (osm.Item, error) {
	fields := strings.Split(line, "|")
	if len(fields) != 7 {
		return osm.Item{}, fmt.Errorf("malformed line %q", line)
	}
	kindN, err := strconv.Atoi(fields[0])
	if err != nil {
		return osm.Item{}, fmt.Errorf("bad kind: %w", err)
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return osm.Item{}, fmt.Errorf("bad id: %w", err)
	}
	lat, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return osm.Item{}, fmt.Errorf("bad lat: %w", err)
	}
	lon, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return osm.Item{}, fmt.Errorf("bad lon: %w", err)
	}
	var refs []uint64
	if fields[4] != "" {
		for _, s := range strings.Split(fields[4], ",") {
			r, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return osm.Item{}, fmt.Errorf("bad node ref: %w", err)
			}
			refs = append(refs, r)
		}
	}
	tags := map[string]string{}
	if fields[5] != "" {
		for _, kv := range strings.Split(fields[5], ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				return osm.Item{}, fmt.Errorf("bad tag %q", kv)
			}
			tags[parts[0]] = parts[1]
		}
	}
	var members []osm.Member
	if fields[6] != "" {
		for _, m := range strings.Split(fields[6], ";") {
			parts := strings.SplitN(m, ":", 3)
			if len(parts) != 3 {
				return osm.Item{}, fmt.Errorf("bad member %q", m)
			}
			mKind, err := strconv.Atoi(parts[0])
			if err != nil {
				return osm.Item{}, fmt.Errorf("bad member kind: %w", err)
			}
			mID, err := strconv.ParseUint(parts[1], 10, 64)
			if err != nil {
				return osm.Item{}, fmt.Errorf("bad member id: %w", err)
			}
			members = append(members, osm.Member{Kind: ast.Kind(mKind), ID: mID, Role: parts[2]})
		}
	}
	return osm.Item{
		Kind:     ast.Kind(kindN),
		ID:       id,
		Lat:      lat,
		Lon:      lon,
		NodeRefs: refs,
		Tags:     tags,
		Members:  members,
	}, nil
}
