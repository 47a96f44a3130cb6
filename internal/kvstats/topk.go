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

package kvstats

import "container/heap"

// KeyCompare reports whether a outranks b; ties may be broken
// arbitrarily, matching the weak-order comparator KVStats.h expects.
type KeyCompare func(a, b KeyInfo) bool

// ValueCompare is KeyCompare's ValueInfo analogue.
type ValueCompare func(a, b ValueInfo) bool

// KeyValueInfo names a single (key,value) pair alongside both their
// aggregate counts, the flattened unit topk-over-key-value queries
// rank and return.
type KeyValueInfo struct {
	KeyID      uint32
	ValueID    uint32
	KeyCount   uint32
	ValueCount uint32
}

// IsKeyOnly reports whether this entry names a bare key (no value
// component), mirroring KeyValueInfo::isKeyOnly.
func (kvi KeyValueInfo) IsKeyOnly() bool { return kvi.ValueID == NullID }

// boundedHeap keeps the k best-ranked items seen so far: its root is
// always the worst of the retained set, so a push-then-pop evicts it
// in favour of anything better, the same technique
// liboscar::detail::KVStats::KeyInfo::topk uses with a max-heap over
// an inverted comparator.
type boundedHeap[T any] struct {
	items  []T
	better func(a, b T) bool
}

func (h *boundedHeap[T]) Len() int { return len(h.items) }
func (h *boundedHeap[T]) Less(i, j int) bool {
	// items[i] sorts first (is popped first) when it is the worse of
	// the two, i.e. when items[j] outranks items[i].
	return h.better(h.items[j], h.items[i])
}
func (h *boundedHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *boundedHeap[T]) Push(x any)    { h.items = append(h.items, x.(T)) }
func (h *boundedHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}

// selectTopK streams candidates through a size-k bounded heap and
// returns the k best, sorted best-first.
func selectTopK[T any](k int, candidates []T, better func(a, b T) bool) []T {
	if k <= 0 {
		return nil
	}
	h := &boundedHeap[T]{better: better}
	for _, c := range candidates {
		if h.Len() < k {
			heap.Push(h, c)
			continue
		}
		heap.Push(h, c)
		heap.Pop(h)
	}
	out := make([]T, len(h.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(T)
	}
	return out
}

// TopKeys returns the k best key-ids per cmp, skipping excluded keys,
// sorted best-first.
func (s *Stats) TopKeys(k int, cmp KeyCompare, exclude func(KeyInfo) bool) []KeyInfo {
	var candidates []KeyInfo
	for _, ki := range s.keys {
		if exclude != nil && exclude(ki) {
			continue
		}
		candidates = append(candidates, ki)
	}
	return selectTopK(k, candidates, func(a, b KeyInfo) bool { return cmp(a, b) })
}

// TopValuesOfKey returns keyID's k best values per cmp, skipping
// excluded values, sorted best-first.
func (s *Stats) TopValuesOfKey(keyID uint32, k int, cmp ValueCompare, exclude func(ValueInfo) bool) []ValueInfo {
	ki, ok := s.Key(keyID)
	if !ok {
		return nil
	}
	var candidates []ValueInfo
	for _, vi := range ki.Values {
		if exclude != nil && exclude(vi) {
			continue
		}
		candidates = append(candidates, vi)
	}
	return selectTopK(k, candidates, func(a, b ValueInfo) bool { return cmp(a, b) })
}

// TopKeyValues returns the k best (key,value) pairs across every
// non-excluded key, streamed key-then-value, sorted best-first.
func (s *Stats) TopKeyValues(
	k int,
	cmp func(a, b KeyValueInfo) bool,
	excludeKey func(KeyInfo) bool,
	excludeKeyValue func(KeyInfo, ValueInfo) bool,
) []KeyValueInfo {
	var candidates []KeyValueInfo
	for _, ki := range s.keys {
		if excludeKey != nil && excludeKey(ki) {
			continue
		}
		for _, vi := range ki.Values {
			if excludeKeyValue != nil && excludeKeyValue(ki, vi) {
				continue
			}
			candidates = append(candidates, KeyValueInfo{
				KeyID:      ki.KeyID,
				ValueID:    vi.ValueID,
				KeyCount:   ki.Count,
				ValueCount: vi.Count,
			})
		}
	}
	return selectTopK(k, candidates, cmp)
}
