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
	"encoding/binary"
	"sync"

	"github.com/dchest/siphash"
)

// shardCount bounds per-shard lock contention when many worker
// goroutines Merge into one coordinator-side Set concurrently
// (spec.md §4.4's fan-in after a pass's parallel scan).
const shardCount = 16

// setKey0, setKey1 are the fixed siphash keys used to bucket an
// Identity into a shard. They need not be secret — Set only needs a
// stable, well-distributed hash, not collision resistance against an
// adversary — so unlike splitter.go's per-tenant keys, these are
// baked in rather than derived per run.
const setKey0, setKey1 = 0x6f76657270617373, 0x716c656e67696e65

// Set is an idempotent, concurrency-safe collection of primitive
// Identities, sharded by siphash to bound contention during a
// parallel merge. Grounded on original_source/src/set.rs's HashSet-
// backed merge/insert, restructured around the teacher's siphash-
// bucketing precedent in splitter.go/tenant.go.
type Set struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.Mutex
	members map[Identity]struct{}
}

// NewSet returns an empty Set ready for concurrent Insert/Merge.
func NewSet() *Set {
	s := &Set{}
	for i := range s.shards {
		s.shards[i].members = make(map[Identity]struct{})
	}
	return s
}

func shardFor(id Identity) int {
	var buf [9]byte
	buf[0] = byte(id.Kind)
	binary.LittleEndian.PutUint64(buf[1:], id.ID)
	h := siphash.Hash(setKey0, setKey1, buf[:])
	return int(h % shardCount)
}

// Insert adds id to the set. Repeated inserts of the same Identity are
// no-ops (spec.md §3's idempotence invariant).
func (s *Set) Insert(id Identity) {
	sh := &s.shards[shardFor(id)]
	sh.mu.Lock()
	sh.members[id] = struct{}{}
	sh.mu.Unlock()
}

// Has reports whether id is a member.
func (s *Set) Has(id Identity) bool {
	sh := &s.shards[shardFor(id)]
	sh.mu.Lock()
	_, ok := sh.members[id]
	sh.mu.Unlock()
	return ok
}

// Len returns the number of distinct members.
func (s *Set) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.members)
		sh.mu.Unlock()
	}
	return n
}

// Each calls fn once per member, in no particular order. fn must not
// call back into s.
func (s *Set) Each(fn func(Identity)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id := range sh.members {
			fn(id)
		}
		sh.mu.Unlock()
	}
}

// Merge inserts every member of other into s. Merge is the
// associative, commutative operation the executor uses to fold one
// worker's partial result into the coordinator's accumulated set, so
// the final Set never depends on worker scheduling order (spec.md
// §4.4's "result independent of worker count/ordering" invariant).
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	other.Each(s.Insert)
}

// Union returns a new Set containing every member of a and b.
func Union(a, b *Set) *Set {
	out := NewSet()
	out.Merge(a)
	out.Merge(b)
	return out
}

// Difference returns a new Set containing every member of a that is
// not also a member of b.
func Difference(a, b *Set) *Set {
	out := NewSet()
	a.Each(func(id Identity) {
		if !b.Has(id) {
			out.Insert(id)
		}
	})
	return out
}
