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

package cqr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSameItems(t *testing.T, want []uint32, got *ItemSet) {
	t.Helper()
	assert.ElementsMatch(t, want, got.Slice())
}

type fakeResolver map[uint32][]uint32

func (f fakeResolver) ItemsAt(cellID uint32) (*ItemSet, error) {
	return NewItemSet(f[cellID]...), nil
}

func TestWellFormedness(t *testing.T) {
	c := NewPartialMatch(5, NewItemSet(1, 2, 3), GlobalItemIDs)
	require.NoError(t, c.Validate())
	assert.True(t, c.IsPM(5))
	assert.False(t, c.IsFM(5))
}

func TestUnionIdentityAndIdempotence(t *testing.T) {
	alg := Algebra{}
	a := NewFullMatch([]uint32{1, 2}, GlobalItemIDs)
	empty := Empty(GlobalItemIDs)

	assert.Equal(t, a.FM(), alg.Union(a, empty).FM())
	assert.Equal(t, a.FM(), alg.Union(a, a).FM())
}

func TestIntersectEmptyIsEmpty(t *testing.T) {
	alg := Algebra{}
	a := NewFullMatch([]uint32{1, 2}, GlobalItemIDs)
	empty := Empty(GlobalItemIDs)
	assert.True(t, alg.Intersect(a, empty).IsEmpty())
	assert.Equal(t, a.FM(), alg.Intersect(a, a).FM())
}

func TestDifferenceSelfIsEmpty(t *testing.T) {
	alg := Algebra{}
	a := NewFullMatch([]uint32{1, 2}, GlobalItemIDs)
	assert.True(t, alg.Difference(a, a).IsEmpty())

	empty := Empty(GlobalItemIDs)
	assert.Equal(t, a.FM(), alg.Difference(a, empty).FM())
}

func TestSymmetricDifferenceSelfIsEmpty(t *testing.T) {
	alg := Algebra{}
	a := NewFullMatch([]uint32{1, 2, 3}, GlobalItemIDs)
	assert.True(t, alg.SymmetricDifference(a, a).IsEmpty())
}

func TestUnionCommutativity(t *testing.T) {
	alg := Algebra{}
	a := NewFullMatch([]uint32{1, 2}, GlobalItemIDs)
	b := CQR{fm: NewItemSet(3), pmCells: NewItemSet(), pm: map[uint32]*ItemSet{}, flags: GlobalItemIDs}
	b = Algebra{}.Union(b, NewPartialMatch(4, NewItemSet(9), GlobalItemIDs))

	ab := alg.Union(a, b)
	ba := alg.Union(b, a)
	assert.ElementsMatch(t, ab.FM(), ba.FM())
	assert.ElementsMatch(t, ab.PM(), ba.PM())
}

func TestUnionPromotesPartialToFullWhenOtherSideIsFull(t *testing.T) {
	alg := Algebra{}
	a := NewPartialMatch(1, NewItemSet(1, 2), GlobalItemIDs)
	b := NewFullMatch([]uint32{1}, GlobalItemIDs)

	u := alg.Union(a, b)
	assert.True(t, u.IsFM(1))
	assert.False(t, u.IsPM(1))
}

func TestIntersectFullWithPartialTakesPartialItems(t *testing.T) {
	alg := Algebra{}
	a := NewFullMatch([]uint32{1}, GlobalItemIDs)
	b := NewPartialMatch(1, NewItemSet(3, 4), GlobalItemIDs)

	i := alg.Intersect(a, b)
	require.True(t, i.IsPM(1))
	assertSameItems(t, []uint32{3, 4}, i.PMItems(1))
}

func TestIntersectDoublePartialIntersectsItems(t *testing.T) {
	alg := Algebra{}
	a := NewPartialMatch(1, NewItemSet(1, 2, 3), GlobalItemIDs)
	b := NewPartialMatch(1, NewItemSet(2, 3, 4), GlobalItemIDs)

	i := alg.Intersect(a, b)
	require.True(t, i.IsPM(1))
	assertSameItems(t, []uint32{2, 3}, i.PMItems(1))
}

func TestDifferenceFullMinusPartialNeedsResolver(t *testing.T) {
	alg := Algebra{Resolver: fakeResolver{1: {1, 2, 3, 4}}}
	a := NewFullMatch([]uint32{1}, GlobalItemIDs)
	b := NewPartialMatch(1, NewItemSet(2, 3), GlobalItemIDs)

	d := alg.Difference(a, b)
	require.True(t, d.IsPM(1))
	assertSameItems(t, []uint32{1, 4}, d.PMItems(1))
}

func TestDifferencePartialMinusFullDrops(t *testing.T) {
	alg := Algebra{}
	a := NewPartialMatch(1, NewItemSet(1, 2), GlobalItemIDs)
	b := NewFullMatch([]uint32{1}, GlobalItemIDs)

	d := alg.Difference(a, b)
	assert.True(t, d.IsEmpty())
}

func TestAllToFullDiscardsItemsAndKeepsFM(t *testing.T) {
	c := NewFullMatch([]uint32{1}, GlobalItemIDs)
	c = Algebra{}.Union(c, NewPartialMatch(2, NewItemSet(9), GlobalItemIDs))

	full := c.AllToFull()
	assert.Empty(t, full.PM())
	assert.ElementsMatch(t, []uint32{1, 2}, full.FM())
}

type negateConverter struct{}

func (negateConverter) Convert(cellID uint32, items *ItemSet, from, to Flags) *ItemSet {
	// A converter doesn't need to be realistic here; just observable.
	return items.Clone()
}

func TestAlignConvertsRightOperandFlags(t *testing.T) {
	alg := Algebra{Converter: negateConverter{}}
	a := NewPartialMatch(1, NewItemSet(1), GlobalItemIDs)
	b := NewPartialMatch(1, NewItemSet(1), CellLocal)

	u := alg.Union(a, b)
	assert.Equal(t, GlobalItemIDs, u.Flags())
}

func TestTreedCQRMatchesEagerEvaluation(t *testing.T) {
	alg := Algebra{}
	a := Leaf(NewFullMatch([]uint32{1, 2}, GlobalItemIDs))
	b := Leaf(NewPartialMatch(3, NewItemSet(9), GlobalItemIDs))
	c := Leaf(NewFullMatch([]uint32{2}, GlobalItemIDs))

	tree := Difference(Union(a, b), c)
	got, err := tree.ToCQR(context.Background(), alg, 4)
	require.NoError(t, err)

	eager := alg.Difference(alg.Union(a.leaf, b.leaf), c.leaf)
	assert.ElementsMatch(t, eager.FM(), got.FM())
	assert.ElementsMatch(t, eager.PM(), got.PM())
}
