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

package resolver

import (
	"context"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/fixtures"
)

func munichResolver(t *testing.T) (Resolver, *fixtures.MemoryStore) {
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

	r := Resolver{
		Hierarchy:     m,
		IndexStore:    m,
		Triangulation: m,
		Flags:         cqr.GlobalItemIDs,
		Thresholds: Thresholds{
			ItemMeters:            1000,
			ItemBBoxMeters:        2000,
			CellBBoxMeters:        250000,
			LengthToDiagonalRatio: 20,
		},
	}
	return r, m
}

func enclosingPoly() *s2.Loop {
	return s2.LoopFromPoints([]s2.Point{
		s2.PointFromLatLng(s2.LatLngFromDegrees(47.9, 10.9)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.6, 10.9)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.6, 11.6)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(47.9, 11.6)),
	})
}

func TestResolveCellBBoxPromotesWholeCell(t *testing.T) {
	r, _ := munichResolver(t)
	res, err := r.Resolve(context.Background(), enclosingPoly(), ACPolygonCellBBox)
	require.NoError(t, err)
	assert.True(t, res.IsFM(1))
}

func TestResolveItemLevelSplitsPartialCell(t *testing.T) {
	smallPoly := s2.LoopFromPoints([]s2.Point{
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.05, 11.05)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.15, 11.05)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.15, 11.15)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.05, 11.15)),
	})
	r, _ := munichResolver(t)
	res, err := r.Resolve(context.Background(), smallPoly, ACPolygonItem)
	require.NoError(t, err)
	assert.False(t, res.IsFM(1))
	require.True(t, res.IsPM(1))
	assert.Contains(t, res.PMItems(1).Slice(), uint32(100))
	assert.NotContains(t, res.PMItems(1).Slice(), uint32(101))
}

func TestResolveDisjointPolygonYieldsEmpty(t *testing.T) {
	farPoly := s2.LoopFromPoints([]s2.Point{
		s2.PointFromLatLng(s2.LatLngFromDegrees(10, 10)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(10.1, 10)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(10.1, 10.1)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(10, 10.1)),
	})
	r, _ := munichResolver(t)
	res, err := r.Resolve(context.Background(), farPoly, ACPolygonCellBBox)
	require.NoError(t, err)
	assert.True(t, res.IsEmpty())
}

func TestResolvePointZeroRadiusUsesTriangulation(t *testing.T) {
	r, _ := munichResolver(t)
	res, err := r.ResolvePoint(context.Background(), s2.LatLngFromDegrees(48.1, 11.1), 0)
	require.NoError(t, err)
	assert.True(t, res.IsFM(1))
}

func TestResolvePointOutsideAnyCellIsEmpty(t *testing.T) {
	r, _ := munichResolver(t)
	res, err := r.ResolvePoint(context.Background(), s2.LatLngFromDegrees(10, 10), 0)
	require.NoError(t, err)
	assert.True(t, res.IsEmpty())
}

func TestChooseAutoAccuracyPicksItemLevelForTinyPolygon(t *testing.T) {
	r, _ := munichResolver(t)
	tiny := s2.LoopFromPoints([]s2.Point{
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.100, 11.100)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.1001, 11.100)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.1001, 11.1001)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.100, 11.1001)),
	})
	assert.Equal(t, ACPolygonItem, r.chooseAutoAccuracy(tiny))
}

func TestChooseAutoAccuracyPicksCoarseLevelForContinentalPolygon(t *testing.T) {
	r, _ := munichResolver(t)
	assert.Equal(t, ACPolygonBBoxCellBBox, r.chooseAutoAccuracy(enclosingPoly2()))
}

func enclosingPoly2() *s2.Loop {
	return s2.LoopFromPoints([]s2.Point{
		s2.PointFromLatLng(s2.LatLngFromDegrees(0, 0)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(40, 0)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(40, 40)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(0, 40)),
	})
}
