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

// Package kvstats aggregates item key/value attribute frequencies
// over an item set: a worker pool drains items from a shared atomic
// cursor, each worker accumulates counts in a thread-local table and
// periodically flushes a sorted snapshot into a mutex-guarded reducer
// stack, and the final sorted (key,value)->count vector is grouped
// into per-key statistics for top-k querying.
package kvstats

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// NullID marks an absent key/value id, mirroring geoindex.NullCellID.
const NullID = ^uint32(0)

// KeyValue is an item's single (key-id, value-id) attribute pair, the
// interned integer encoding a persisted store assigns its string
// key/value names.
type KeyValue struct {
	KeyID   uint32
	ValueID uint32
}

// Source resolves an item's attribute pairs. Implementations are
// read-only and safe for concurrent use by every worker goroutine.
type Source interface {
	ItemKV(ctx context.Context, itemID uint32) ([]KeyValue, error)
}

// Options bounds Compute's worker pool and flush behaviour; zero
// values fall back to the package defaults.
type Options struct {
	Workers   int
	BlockSize int
	FlushSize int
}

const (
	defaultBlockSize = 1000
	defaultFlushSize = defaultBlockSize * 1000
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
	return o
}

// kvCount is one (key,value)->count entry, the comparable unit a
// worker's local table accumulates and the reducer stack merges.
type kvCount struct {
	kv    KeyValue
	count uint32
}

func less(a, b KeyValue) bool {
	if a.KeyID != b.KeyID {
		return a.KeyID < b.KeyID
	}
	return a.ValueID < b.ValueID
}

// sortedData is a kvCount vector sorted by (keyId,valueId), the unit
// both a flushed worker table and the reducer stack hold.
type sortedData []kvCount

func newSortedData(table map[KeyValue]uint32) sortedData {
	out := make(sortedData, 0, len(table))
	for kv, n := range table {
		out = append(out, kvCount{kv: kv, count: n})
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].kv, out[j].kv) })
	return out
}

// merge pairwise-merges two sorted vectors, summing counts for a
// shared key, the same reduction KVStats.h's SortedData::merge does.
func merge(a, b sortedData) sortedData {
	out := make(sortedData, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].kv == b[j].kv:
			out = append(out, kvCount{kv: a[i].kv, count: a[i].count + b[j].count})
			i++
			j++
		case less(a[i].kv, b[j].kv):
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// cursor hands out item ids in BlockSize-sized batches from a shared
// atomic position, the same block-draw design as liboscar's
// State::pos / Worker::BlockSize.
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

// reducer is the mutex-guarded merge stack every worker flushes into.
type reducer struct {
	mu    sync.Mutex
	stack []sortedData
}

func (r *reducer) push(d sortedData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		r.stack = append(r.stack, d)
		return
	}
	top := r.stack[len(r.stack)-1]
	r.stack[len(r.stack)-1] = merge(top, d)
}

func (r *reducer) finalize() sortedData {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return nil
	}
	out := r.stack[0]
	for _, d := range r.stack[1:] {
		out = merge(out, d)
	}
	return out
}

// ValueInfo is a single value's occurrence count under its key.
type ValueInfo struct {
	ValueID uint32
	Count   uint32
}

// KeyInfo is one key's aggregate occurrence count plus its values,
// sorted by ValueID.
type KeyInfo struct {
	KeyID  uint32
	Count  uint32
	Values []ValueInfo
}

// Stats is the final, queryable aggregate: keys sorted by KeyID, each
// carrying its sorted value breakdown.
type Stats struct {
	keys    []KeyInfo
	byKeyID map[uint32]int
}

// Keys returns every key's info, sorted by KeyID.
func (s *Stats) Keys() []KeyInfo { return s.keys }

// Key looks up a single key's info.
func (s *Stats) Key(keyID uint32) (KeyInfo, bool) {
	i, ok := s.byKeyID[keyID]
	if !ok {
		return KeyInfo{}, false
	}
	return s.keys[i], true
}

func buildStats(d sortedData) *Stats {
	s := &Stats{byKeyID: map[uint32]int{}}
	i := 0
	for i < len(d) {
		keyID := d[i].kv.KeyID
		var values []ValueInfo
		var total uint32
		for i < len(d) && d[i].kv.KeyID == keyID {
			values = append(values, ValueInfo{ValueID: d[i].kv.ValueID, Count: d[i].count})
			total += d[i].count
			i++
		}
		s.byKeyID[keyID] = len(s.keys)
		s.keys = append(s.keys, KeyInfo{KeyID: keyID, Count: total, Values: values})
	}
	return s
}

// Compute aggregates every item's key/value attribute pairs into
// Stats, fanning workers out over items via errgroup and merging their
// flushed tables through a mutex-guarded reducer stack.
func Compute(ctx context.Context, src Source, items []uint32, opts Options) (*Stats, error) {
	opts = opts.normalize()
	if len(items) == 0 {
		return buildStats(nil), nil
	}

	cur := &cursor{items: items, blockSize: opts.BlockSize}
	red := &reducer{}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			local := make(map[KeyValue]uint32)
			flush := func() {
				if len(local) == 0 {
					return
				}
				red.push(newSortedData(local))
				local = make(map[KeyValue]uint32)
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
						local[kv]++
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

	return buildStats(red.finalize()), nil
}
