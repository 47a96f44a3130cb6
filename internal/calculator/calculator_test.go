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

package calculator

import (
	"context"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarquery/cellquery/internal/config"
	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/fixtures"
	"github.com/oscarquery/cellquery/internal/geoindex"
	"github.com/oscarquery/cellquery/internal/lang"
	"github.com/oscarquery/cellquery/internal/resolver"
	"github.com/oscarquery/cellquery/internal/spatial"
)

// munichStore mirrors the fixture shared by internal/resolver and
// internal/spatial's tests: one cell over a bbox around Munich, one
// enclosing region, two items inside the cell.
func munichStore(t *testing.T) *fixtures.MemoryStore {
	t.Helper()
	m := fixtures.NewMemoryStore(cqr.GlobalItemIDs)

	cellBoundary := s2.RectFromDegrees(48.0, 11.0, 48.5, 11.5)
	m.AddCell(&fixtures.Cell{ID: 1, Boundary: cellBoundary, Items: []uint32{100, 101}, Parents: []uint32{10}})

	m.AddItem(&fixtures.Item{ID: 100, Name: "hotel bavaria", Point: s2.LatLngFromDegrees(48.1, 11.1), Cells: []uint32{1}})
	m.AddItem(&fixtures.Item{ID: 101, Name: "restaurant alpha", Point: s2.LatLngFromDegrees(48.2, 11.2), Cells: []uint32{1}})

	loop := s2.LoopFromPoints([]s2.Point{
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.0, 11.0)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.5, 11.0)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.5, 11.5)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.0, 11.5)),
	})
	m.AddRegion(&fixtures.Region{
		ID:             10,
		Boundary:       loop,
		BBox:           cellBoundary,
		Cells:          []uint32{1},
		ExclusiveCells: []uint32{1},
	}, "bavaria", true)

	return m
}

func newCalculator(t *testing.T, m *fixtures.MemoryStore) *Calculator {
	t.Helper()
	th := config.Default()
	res := resolver.Resolver{
		Hierarchy:     m,
		IndexStore:    m,
		Triangulation: m,
		Flags:         cqr.GlobalItemIDs,
		Thresholds: resolver.Thresholds{
			ItemMeters:            th.AutoAccuracyItemMeters,
			ItemBBoxMeters:        th.AutoAccuracyItemBBoxMeters,
			CellBBoxMeters:        th.AutoAccuracyCellBBoxMeters,
			LengthToDiagonalRatio: th.AutoAccuracyLengthToDiagonalRatio,
		},
	}
	return &Calculator{
		Completer:     m,
		Hierarchy:     m,
		IndexStore:    m,
		Triangulation: m,
		Resolver:      res,
		Spatial: spatial.Builder{
			Hierarchy:  m,
			IndexStore: m,
			Thresholds: th,
		},
		Thresholds: th,
	}
}

func leaf(sub lang.OpKind, value string) *lang.Node {
	return &lang.Node{Base: lang.Leaf, Sub: sub, Value: value}
}

func unary(sub lang.OpKind, value string, child *lang.Node) *lang.Node {
	return &lang.Node{Base: lang.Unary, Sub: sub, Value: value, Children: []*lang.Node{child}}
}

func binary(sub lang.OpKind, value string, left, right *lang.Node) *lang.Node {
	return &lang.Node{Base: lang.Binary, Sub: sub, Value: value, Children: []*lang.Node{left, right}}
}

func TestEvaluateStringLeafFindsItemByName(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpString, "hotel bavaria"))
	require.NoError(t, err)
	assert.True(t, out.IsPM(1))
	assert.ElementsMatch(t, []uint32{100}, out.PMItems(1).Slice())
}

func TestEvaluateRegionLeafIsFullMatch(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpRegion, "10"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, out.FM())
}

func TestEvaluateCellLeafByID(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpCell, "1"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, out.FM())
}

func TestEvaluateCellLeafByPoint(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpCell, "48.2,11.2"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, out.FM())
}

func TestEvaluateCellsLeafUnionsIDs(t *testing.T) {
	m := munichStore(t)
	m.AddCell(&fixtures.Cell{ID: 2, Boundary: s2.RectFromDegrees(49.0, 11.0, 49.5, 11.5)})
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpCells, "1,2"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1, 2}, out.FM())
}

func TestEvaluateItemLeafBuildsSingleItemCQR(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpItem, "100"))
	require.NoError(t, err)
	assert.True(t, out.IsPM(1))
	assert.Equal(t, []uint32{100}, out.PMItems(1).Slice())
}

func TestEvaluateRegionExclusiveCellsLeaf(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpRegionExclusiveCells, "10"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, out.FM())
}

func TestEvaluatePolygonLeafResolvesOverlappingCell(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpPolygon, "48.0,11.0,48.5,11.0,48.5,11.5,48.0,11.5"))
	require.NoError(t, err)
	assert.Contains(t, out.FM(), uint32(1))
}

func TestEvaluatePointLeafResolvesCell(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpPoint, "0,48.1,11.1"))
	require.NoError(t, err)
	assert.Contains(t, out.FM(), uint32(1))
}

func TestEvaluatePointLeafMissingRadiusIsEmpty(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpPoint, "48.1,11.1"))
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
}

func TestEvaluatePathSinglePointIsDisc(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpPath, "0,48.1,11.1"))
	require.NoError(t, err)
	assert.Contains(t, out.FM(), uint32(1))
}

func TestEvaluatePathMultiplePointsUsesAlongPath(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	out, err := c.Evaluate(context.Background(), leaf(lang.OpPath, "1000,48.1,11.1,48.2,11.2"))
	require.NoError(t, err)
	assert.Contains(t, out.FM(), uint32(1))
}

func TestEvaluateSetOpUnion(t *testing.T) {
	m := munichStore(t)
	m.AddCell(&fixtures.Cell{ID: 2, Boundary: s2.RectFromDegrees(49.0, 11.0, 49.5, 11.5)})
	c := newCalculator(t, m)

	tree := binary(lang.OpSetOp, "+", leaf(lang.OpCell, "1"), leaf(lang.OpCell, "2"))
	out, err := c.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1, 2}, out.FM())
}

func TestEvaluateSetOpDifference(t *testing.T) {
	m := munichStore(t)
	m.AddCell(&fixtures.Cell{ID: 2, Boundary: s2.RectFromDegrees(49.0, 11.0, 49.5, 11.5)})
	c := newCalculator(t, m)

	union := binary(lang.OpSetOp, "+", leaf(lang.OpCell, "1"), leaf(lang.OpCell, "2"))
	tree := binary(lang.OpSetOp, "-", union, leaf(lang.OpCell, "2"))
	out, err := c.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, out.FM())
}

func TestEvaluateFMConversionPromotesPartialMatch(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	tree := unary(lang.OpFMConversion, "%", leaf(lang.OpString, "hotel bavaria"))
	out, err := c.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.True(t, out.IsFM(1))
	assert.Equal(t, []uint32{1}, out.FM())
}

func TestEvaluateInDilatesByItemCoverage(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	tree := unary(lang.OpIn, "", leaf(lang.OpString, "hotel bavaria"))
	out, err := c.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Contains(t, out.FM(), uint32(1))
}

func TestEvaluateNearPromotesToFull(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	tree := unary(lang.OpNear, "", leaf(lang.OpString, "hotel bavaria"))
	out, err := c.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.True(t, out.IsFM(1))
}

func TestEvaluateQueryExclusiveCellsFiltersByParentCount(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	tree := unary(lang.OpQueryExclusiveCells, "1:1", leaf(lang.OpCell, "1"))
	out, err := c.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, out.FM())

	tree2 := unary(lang.OpQueryExclusiveCells, "2:5", leaf(lang.OpCell, "1"))
	out2, err := c.Evaluate(context.Background(), tree2)
	require.NoError(t, err)
	assert.True(t, out2.IsEmpty())
}

func TestEvaluateBetweenOpItemItem(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	tree := binary(lang.OpBetweenOp, "", leaf(lang.OpItem, "100"), leaf(lang.OpItem, "101"))
	out, err := c.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Contains(t, out.FM(), uint32(1))
}

func TestEvaluateBetweenOpRegionRegionRemovesSourceCells(t *testing.T) {
	m := munichStore(t)

	farBoundary := s2.RectFromDegrees(10.0, 80.0, 10.5, 80.5)
	m.AddCell(&fixtures.Cell{ID: 2, Boundary: farBoundary, Parents: []uint32{20}})
	farLoop := s2.LoopFromPoints([]s2.Point{
		s2.PointFromLatLng(s2.LatLngFromDegrees(10.0, 80.0)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(10.5, 80.0)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(10.5, 80.5)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(10.0, 80.5)),
	})
	m.AddRegion(&fixtures.Region{
		ID:             20,
		Boundary:       farLoop,
		BBox:           farBoundary,
		Cells:          []uint32{2},
		ExclusiveCells: []uint32{2},
	}, "faraway", true)

	c := newCalculator(t, m)

	tree := binary(lang.OpBetweenOp, "", leaf(lang.OpRegion, "10"), leaf(lang.OpRegion, "20"))
	out, err := c.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.NotContains(t, out.FM(), uint32(1), "source region 10's own cell must be subtracted out")
	assert.NotContains(t, out.FM(), uint32(2), "source region 20's own cell must be subtracted out")
}

func TestEvaluateRelevantElementReducesRegionOperandUnchanged(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	tree := unary(lang.OpRelevantElement, "*", leaf(lang.OpRegion, "10"))
	out, err := c.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, out.FM())
}

func TestEvaluateNilNodeIsEmpty(t *testing.T) {
	c := newCalculator(t, munichStore(t))
	out, err := c.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
}

func TestEvaluateTreedKeepsSetOpChainLazy(t *testing.T) {
	m := munichStore(t)
	m.AddCell(&fixtures.Cell{ID: 2, Boundary: s2.RectFromDegrees(49.0, 11.0, 49.5, 11.5)})
	c := newCalculator(t, m)

	tree := binary(lang.OpSetOp, "+", leaf(lang.OpCell, "1"), leaf(lang.OpCell, "2"))
	treed, err := c.EvaluateTreed(context.Background(), tree)
	require.NoError(t, err)

	out, err := treed.ToCQR(context.Background(), c.algebra(), 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1, 2}, out.FM())
}

// countingCompleter wraps a geoindex.CellTextCompleter and counts
// CQRFromCellID calls, so TestEvaluateTreedMemoizesRepeatedLeaf can
// observe whether EvaluateTreed's fingerprint memoization actually
// skipped re-evaluating a repeated leaf.
type countingCompleter struct {
	geoindex.CellTextCompleter
	calls int
}

func (c *countingCompleter) CQRFromCellID(ctx context.Context, cellID uint32) (cqr.CQR, error) {
	c.calls++
	return c.CellTextCompleter.CQRFromCellID(ctx, cellID)
}

func TestEvaluateTreedMemoizesRepeatedLeaf(t *testing.T) {
	m := munichStore(t)
	counting := &countingCompleter{CellTextCompleter: m}
	c := newCalculator(t, m)
	c.Completer = counting

	tree := binary(lang.OpSetOp, "+", leaf(lang.OpCell, "1"), leaf(lang.OpCell, "1"))
	treed, err := c.EvaluateTreed(context.Background(), tree)
	require.NoError(t, err)

	out, err := treed.ToCQR(context.Background(), c.algebra(), 0)
	require.NoError(t, err)
	assert.Contains(t, out.FM(), uint32(1))
	assert.Equal(t, 1, counting.calls, "repeated identical leaf should evaluate against the collaborator only once")
}

func TestEvaluateTreedMaterialisesCompassBeforeSetOp(t *testing.T) {
	m := munichStore(t)
	c := newCalculator(t, m)

	compass := unary(lang.OpCompass, "^", leaf(lang.OpString, "hotel bavaria"))
	tree := binary(lang.OpSetOp, "+", compass, leaf(lang.OpCell, "1"))
	treed, err := c.EvaluateTreed(context.Background(), tree)
	require.NoError(t, err)

	out, err := treed.ToCQR(context.Background(), c.algebra(), 0)
	require.NoError(t, err)
	assert.Contains(t, out.FM(), uint32(1))
}
