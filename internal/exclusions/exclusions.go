// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package exclusions holds the key and key-value suppression sets
// that KV statistics and KoMa clustering consult when ranking
// candidates: callers build up exclusions by adding single keys,
// ranges, or pairs, then query contains at O(log n) / O(1).
package exclusions

import "sort"

// keyRange is a half-open key-id range [Begin, End).
type keyRange struct {
	Begin, End uint32
}

// Keys is a set of key-id ranges. Zero value is an empty set. Add
// single keys or ranges freely; call Preprocess once before the first
// Contains query merges overlapping/adjacent ranges and sorts them for
// binary search.
type Keys struct {
	ranges   []keyRange
	prepared bool
}

// Add admits a single key id.
func (k *Keys) Add(keyID uint32) {
	k.AddRange(keyID, keyID+1)
}

// AddRange admits every key id in [begin, end).
func (k *Keys) AddRange(begin, end uint32) {
	if end <= begin {
		return
	}
	k.ranges = append(k.ranges, keyRange{Begin: begin, End: end})
	k.prepared = false
}

// Union merges other's ranges into k.
func (k *Keys) Union(other *Keys) {
	if other == nil {
		return
	}
	k.ranges = append(k.ranges, other.ranges...)
	k.prepared = false
}

// Preprocess sorts ranges by Begin and merges overlapping or adjacent
// ones, so Contains can binary-search. Must be called after the last
// Add/AddRange/Union and before any Contains.
func (k *Keys) Preprocess() {
	if len(k.ranges) == 0 {
		k.prepared = true
		return
	}
	sort.Slice(k.ranges, func(i, j int) bool { return k.ranges[i].Begin < k.ranges[j].Begin })
	merged := k.ranges[:1]
	for _, r := range k.ranges[1:] {
		last := &merged[len(merged)-1]
		if r.Begin <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	k.ranges = merged
	k.prepared = true
}

// Contains reports whether keyID falls in any admitted range. Panics
// with a clear message rather than silently returning false if
// Preprocess was never called after the last mutation, since a stale
// unsorted slice would make the binary search wrong, not just slow.
func (k *Keys) Contains(keyID uint32) bool {
	if !k.prepared {
		panic("exclusions: Keys.Contains called before Preprocess")
	}
	i := sort.Search(len(k.ranges), func(i int) bool { return k.ranges[i].End > keyID })
	return i < len(k.ranges) && k.ranges[i].Begin <= keyID
}

// Empty reports whether no keys are excluded.
func (k *Keys) Empty() bool { return len(k.ranges) == 0 }

// KeyValue is a set of excluded (key-id, value-id) pairs with O(1)
// membership.
type KeyValue struct {
	pairs map[[2]uint32]struct{}
}

// Add admits a single (keyID, valueID) pair.
func (kv *KeyValue) Add(keyID, valueID uint32) {
	if kv.pairs == nil {
		kv.pairs = map[[2]uint32]struct{}{}
	}
	kv.pairs[[2]uint32{keyID, valueID}] = struct{}{}
}

// Union merges other's pairs into kv.
func (kv *KeyValue) Union(other *KeyValue) {
	if other == nil {
		return
	}
	for p := range other.pairs {
		if kv.pairs == nil {
			kv.pairs = map[[2]uint32]struct{}{}
		}
		kv.pairs[p] = struct{}{}
	}
}

// Contains reports whether (keyID, valueID) is excluded.
func (kv *KeyValue) Contains(keyID, valueID uint32) bool {
	if kv.pairs == nil {
		return false
	}
	_, ok := kv.pairs[[2]uint32{keyID, valueID}]
	return ok
}

// Empty reports whether no key-value pairs are excluded.
func (kv *KeyValue) Empty() bool { return len(kv.pairs) == 0 }
