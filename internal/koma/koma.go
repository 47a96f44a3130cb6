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

// Package koma clusters an item set's key/value attributes into a
// small set of near-disjoint facet parents: a worker pool accumulates,
// per (key,value) pair, the set of items carrying it, then a
// near-disjointness scan over those sets (by decreasing popularity)
// picks parents that do not overlap each other beyond a fixed ratio,
// the same two-phase design as KV statistics' worker pool feeding a
// ranking pass.
package koma

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/exclusions"
	"github.com/oscarquery/cellquery/internal/kvstats"
)

// KeyValue names a single (key-id, value-id) attribute pair.
type KeyValue = kvstats.KeyValue

// Source resolves an item's attribute pairs; the same collaborator
// kvstats.Compute consumes.
type Source = kvstats.Source

// Options bounds the preprocessing worker pool and the
// near-disjointness ratio the selection scan applies.
type Options struct {
	Workers   int
	BlockSize int
	FlushSize int

	// Ratio is the near-disjointness bound: two (key,value) item sets
	// are near-disjoint when their intersection size is at most Ratio
	// times their combined size. Zero means defaultRatio (1/200),
	// matching config.Thresholds.KoMaNearDisjointRatio's default.
	Ratio float64
}

const (
	defaultBlockSize = 1000
	defaultFlushSize = defaultBlockSize * 1000
	defaultRatio     = 1.0 / 200.0
)

func (o Options) normalize() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.BlockSize <= 0 {
		o.BlockSize = defaultBlockSize
	}
	if o.FlushSize <= 0 {
		o.FlushSize = defaultFlushSize
	}
	if o.Ratio <= 0 {
		o.Ratio = defaultRatio
	}
	return o
}

// ValueCount names one value's occurrence count within its key's
// facet.
type ValueCount struct {
	ValueID uint32
	Count   uint32
}

// Facet is a chosen parent key plus up to facetSize of its most
// frequent values.
type Facet struct {
	KeyID  uint32
	Values []ValueCount
}

// KeyValueInfo is one selected facet-parent candidate.
type KeyValueInfo struct {
	KeyID   uint32
	ValueID uint32
	Count   uint32
}

type pairCount struct {
	kv    KeyValue
	count uint32
}

// Clustering holds the preprocessed per-(key,value) item sets and the
// two sorted views the selection algorithms scan, plus the exclusion
// sets future selections honour.
type Clustering struct {
	itemSets   map[KeyValue]*cqr.ItemSet
	countVec   []pairCount // sorted: count desc, tie (keyId,valueId) asc
	sortedByID []pairCount // sorted: keyId asc, tie count desc

	keyExclusions      *exclusions.Keys
	keyValueExclusions *exclusions.KeyValue

	ratio float64
}

// cursor hands out item ids in blockSize batches from a shared atomic
// position, mirroring kvstats' worker block draw.
type cursor struct {
	items     []uint32
	blockSize int
	pos       atomic.Uint64
}

func (c *cursor) next() []uint32 {
	start := c.pos.Add(uint64(c.blockSize)) - uint64(c.blockSize)
	if int(start) >= len(c.items) {
		return nil
	}
	end := int(start) + c.blockSize
	if end > len(c.items) {
		end = len(c.items)
	}
	return c.items[start:end]
}

// itemReducer is the mutex-guarded merge target every worker flushes
// its local (key,value) -> item-ids table into.
type itemReducer struct {
	mu     sync.Mutex
	merged map[KeyValue][]uint32
}

func (r *itemReducer) push(local map[KeyValue][]uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.merged == nil {
		r.merged = map[KeyValue][]uint32{}
	}
	for kv, ids := range local {
		r.merged[kv] = append(r.merged[kv], ids...)
	}
}

func (r *itemReducer) finalize() map[KeyValue]*cqr.ItemSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[KeyValue]*cqr.ItemSet, len(r.merged))
	for kv, ids := range r.merged {
		out[kv] = cqr.NewItemSet(ids...)
	}
	return out
}

func buildItemSets(ctx context.Context, src Source, items []uint32, opts Options) (map[KeyValue]*cqr.ItemSet, error) {
	if len(items) == 0 {
		return map[KeyValue]*cqr.ItemSet{}, nil
	}
	cur := &cursor{items: items, blockSize: opts.BlockSize}
	red := &itemReducer{}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			local := map[KeyValue][]uint32{}
			flush := func() {
				if len(local) == 0 {
					return
				}
				red.push(local)
				local = map[KeyValue][]uint32{}
			}
			for {
				block := cur.next()
				if block == nil {
					break
				}
				for _, itemID := range block {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
					pairs, err := src.ItemKV(ctx, itemID)
					if err != nil {
						return err
					}
					for _, kv := range pairs {
						local[kv] = append(local[kv], itemID)
					}
					if len(local) >= opts.FlushSize {
						flush()
					}
				}
			}
			flush()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return red.finalize(), nil
}

// Select runs the parallel preprocessing pass over items, building the
// per-(key,value) item sets and the two ranking views that TopKeyValues
// and Facets scan. keyExclusions/keyValueExclusions may be nil, meaning
// nothing is excluded up front; pass Clustering.Exclude*/ to add more
// after the fact.
func Select(ctx context.Context, src Source, items []uint32, keyExclusions *exclusions.Keys, keyValueExclusions *exclusions.KeyValue, opts Options) (*Clustering, error) {
	opts = opts.normalize()
	sets, err := buildItemSets(ctx, src, items, opts)
	if err != nil {
		return nil, err
	}

	c := &Clustering{
		itemSets:           sets,
		keyExclusions:      keyExclusions,
		keyValueExclusions: keyValueExclusions,
		ratio:              opts.Ratio,
	}
	if c.keyExclusions == nil {
		c.keyExclusions = &exclusions.Keys{}
	}
	if c.keyValueExclusions == nil {
		c.keyValueExclusions = &exclusions.KeyValue{}
	}
	c.keyExclusions.Preprocess()

	c.countVec = make([]pairCount, 0, len(sets))
	for kv, set := range sets {
		c.countVec = append(c.countVec, pairCount{kv: kv, count: uint32(set.Len())})
	}
	c.sortedByID = append([]pairCount(nil), c.countVec...)

	sort.Slice(c.countVec, func(i, j int) bool {
		a, b := c.countVec[i], c.countVec[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.kv.KeyID != b.kv.KeyID {
			return a.kv.KeyID < b.kv.KeyID
		}
		return a.kv.ValueID < b.kv.ValueID
	})
	sort.Slice(c.sortedByID, func(i, j int) bool {
		a, b := c.sortedByID[i], c.sortedByID[j]
		if a.kv.KeyID != b.kv.KeyID {
			return a.kv.KeyID < b.kv.KeyID
		}
		return a.count > b.count
	})

	return c, nil
}

// Exclude adds more excluded keys, re-sorting the exclusion set.
func (c *Clustering) Exclude(keys *exclusions.Keys) {
	c.keyExclusions.Union(keys)
	c.keyExclusions.Preprocess()
}

// ExcludeKeyValues adds more excluded (key,value) pairs.
func (c *Clustering) ExcludeKeyValues(kv *exclusions.KeyValue) {
	c.keyValueExclusions.Union(kv)
}

func (c *Clustering) excluded(pc pairCount) bool {
	return c.keyExclusions.Contains(pc.kv.KeyID) || c.keyValueExclusions.Contains(pc.kv.KeyID, pc.kv.ValueID)
}

// nearDisjoint reports whether a and b's item sets overlap by no more
// than (|a|+|b|) times the clustering's ratio (1/200 by default), the
// bound the KoMa parent-selection scan treats as "this pair does not
// describe the same items twice".
func (c *Clustering) nearDisjoint(a, b pairCount) bool {
	setA, setB := c.itemSets[a.kv], c.itemSets[b.kv]
	threshold := float64(setA.Len()+setB.Len()) * c.ratio
	return float64(setA.IntersectionCount(setB)) <= threshold
}
