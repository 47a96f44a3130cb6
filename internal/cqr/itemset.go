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

// Package cqr implements the Cell Query Result algebra and its lazy TreedCQR variant.
package cqr

import (
	"github.com/pilosa/pilosa/roaring"
)

// ItemSet is the concrete representation of an item index: an
// immutable-by-convention, roaring-bitmap-backed sorted set of item
// ids. Backing a cell-local or global item index with a
// compressed bitmap rather than a plain slice keeps union/intersect/
// difference close to O(1) amortized for the container sizes actually
// seen (a handful to a few thousand items per cell), which matters
// since every binary CQR operator does one of these per overlapping
// partial cell.
type ItemSet struct {
	bm *roaring.Bitmap
}

// NewItemSet builds an ItemSet from the given ids, in any order, with
// duplicates collapsed.
func NewItemSet(ids ...uint32) *ItemSet {
	bm := roaring.NewBitmap()
	for _, id := range ids {
		bm.Add(uint64(id))
	}
	return &ItemSet{bm: bm}
}

func fromBitmap(bm *roaring.Bitmap) *ItemSet {
	if bm == nil {
		bm = roaring.NewBitmap()
	}
	return &ItemSet{bm: bm}
}

// Len returns the number of items in the set.
func (s *ItemSet) Len() int {
	if s == nil || s.bm == nil {
		return 0
	}
	return int(s.bm.Count())
}

// Empty reports whether the set has no items.
func (s *ItemSet) Empty() bool {
	return s.Len() == 0
}

// Contains reports whether id is a member of the set.
func (s *ItemSet) Contains(id uint32) bool {
	if s == nil || s.bm == nil {
		return false
	}
	return s.bm.Contains(uint64(id))
}

// Slice returns the set's members in ascending order. Callers must
// not mutate the result.
func (s *ItemSet) Slice() []uint32 {
	if s == nil || s.bm == nil {
		return nil
	}
	raw := s.bm.Slice()
	out := make([]uint32, len(raw))
	for i, v := range raw {
		out[i] = uint32(v)
	}
	return out
}

// Union returns a new set containing every item in s or other.
func (s *ItemSet) Union(other *ItemSet) *ItemSet {
	a, b := s.bitmap(), other.bitmap()
	return fromBitmap(a.Union(b))
}

// Intersect returns a new set containing every item in both s and other.
func (s *ItemSet) Intersect(other *ItemSet) *ItemSet {
	a, b := s.bitmap(), other.bitmap()
	return fromBitmap(a.Intersect(b))
}

// Difference returns a new set containing every item in s not in other.
func (s *ItemSet) Difference(other *ItemSet) *ItemSet {
	a, b := s.bitmap(), other.bitmap()
	return fromBitmap(a.Difference(b))
}

// SymmetricDifference returns a new set containing items in exactly
// one of s, other.
func (s *ItemSet) SymmetricDifference(other *ItemSet) *ItemSet {
	a, b := s.bitmap(), other.bitmap()
	return fromBitmap(a.Xor(b))
}

// IntersectionCount returns |s ∩ other| without materializing the
// intersection, used by KoMa's near-disjointness test which
// only needs the count and wants to bail out once a bound is exceeded.
func (s *ItemSet) IntersectionCount(other *ItemSet) uint64 {
	a, b := s.bitmap(), other.bitmap()
	return a.IntersectionCount(b)
}

// Clone returns an independent copy of the set.
func (s *ItemSet) Clone() *ItemSet {
	if s == nil || s.bm == nil {
		return NewItemSet()
	}
	return fromBitmap(s.bm.Clone())
}

func (s *ItemSet) bitmap() *roaring.Bitmap {
	if s == nil || s.bm == nil {
		return roaring.NewBitmap()
	}
	return s.bm
}

// Equal reports whether s and other contain the same items.
func (s *ItemSet) Equal(other *ItemSet) bool {
	as, bs := s.Slice(), other.Slice()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
