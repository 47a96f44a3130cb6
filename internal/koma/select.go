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

package koma

import "sort"

// TopKeyValues scans countVec (sorted by decreasing popularity) for
// the first near-disjoint seed pair, then extends the result with
// further candidates that stay near-disjoint from every parent found
// so far, stopping once k are admitted or candidates run out.
//
// Note the seed-finding phase always contributes exactly two entries
// once a near-disjoint pair is found, even when k is 1: Facets relies
// on this, calling TopKeyValues(1) and using only its first element.
func (c *Clustering) TopKeyValues(k int) []KeyValueInfo {
	var result []pairCount
	seedIndex := -1

	for i := 0; i < len(c.countVec); i++ {
		if c.excluded(c.countVec[i]) {
			continue
		}
		for j := 0; j < i; j++ {
			if c.excluded(c.countVec[j]) {
				continue
			}
			if c.nearDisjoint(c.countVec[i], c.countVec[j]) {
				result = append(result, c.countVec[j], c.countVec[i])
				seedIndex = i
				break
			}
		}
		if seedIndex >= 0 {
			break
		}
	}

	if seedIndex >= 0 {
		for idx := seedIndex + 1; idx < len(c.countVec) && len(result) < k; idx++ {
			cand := c.countVec[idx]
			if c.excluded(cand) {
				continue
			}
			discard := false
			for _, parent := range result {
				if !c.nearDisjoint(cand, parent) {
					discard = true
					break
				}
			}
			if !discard {
				result = append(result, cand)
			}
		}
	}

	out := make([]KeyValueInfo, len(result))
	for i, pc := range result {
		out[i] = KeyValueInfo{KeyID: pc.kv.KeyID, ValueID: pc.kv.ValueID, Count: pc.count}
	}
	return out
}

// FindValuesToKey returns up to facetSize values under keyID, in
// descending count order, via a binary search into sortedByID's
// contiguous per-key run.
func (c *Clustering) FindValuesToKey(keyID uint32, facetSize int) []ValueCount {
	n := len(c.sortedByID)
	lo := sort.Search(n, func(i int) bool { return c.sortedByID[i].kv.KeyID >= keyID })
	if lo >= n || c.sortedByID[lo].kv.KeyID != keyID {
		return nil
	}
	hi := lo
	for hi < n && c.sortedByID[hi].kv.KeyID == keyID {
		hi++
	}
	end := lo + facetSize
	if end > hi {
		end = hi
	}
	out := make([]ValueCount, 0, end-lo)
	for i := lo; i < end; i++ {
		out = append(out, ValueCount{ValueID: c.sortedByID[i].kv.ValueID, Count: c.sortedByID[i].count})
	}
	return out
}

// Facets repeatedly selects the single best remaining facet parent key
// (TopKeyValues(1)'s first entry), excludes it, and repeats until k
// keys are chosen or no further near-disjoint candidate exists. Each
// key's values are capped by dynFacetSize's per-key override, falling
// back to defaultFacetSize.
func (c *Clustering) Facets(k int, dynFacetSize map[uint32]int, defaultFacetSize int) []Facet {
	var result []Facet
	seen := map[uint32]bool{}

	for i := 0; i < k; i++ {
		top := c.TopKeyValues(1)
		if len(top) == 0 {
			break
		}
		keyID := top[0].KeyID
		if seen[keyID] {
			break
		}
		seen[keyID] = true

		facetSize := defaultFacetSize
		if v, ok := dynFacetSize[keyID]; ok {
			facetSize = v
		}
		result = append(result, Facet{KeyID: keyID, Values: c.FindValuesToKey(keyID, facetSize)})

		c.keyExclusions.Add(keyID)
		c.keyExclusions.Preprocess()
	}
	return result
}
