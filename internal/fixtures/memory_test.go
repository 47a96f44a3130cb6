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

package fixtures

import (
	"context"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarquery/cellquery/internal/cqr"
)

func munichStore(t *testing.T) *MemoryStore {
	t.Helper()
	m := NewMemoryStore(cqr.GlobalItemIDs)

	cellBoundary := s2.RectFromDegrees(48.0, 11.0, 48.5, 11.5)
	m.AddCell(&Cell{ID: 1, Boundary: cellBoundary, Items: []uint32{100, 101}, Parents: []uint32{10}})

	m.AddItem(&Item{ID: 100, Name: "hotel bavaria", Point: s2.LatLngFromDegrees(48.1, 11.1), Cells: []uint32{1}})
	m.AddItem(&Item{ID: 101, Name: "restaurant alpha", Point: s2.LatLngFromDegrees(48.2, 11.2), Cells: []uint32{1}})

	loop := s2.LoopFromPoints([]s2.Point{
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.0, 11.0)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.5, 11.0)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.5, 11.5)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(48.0, 11.5)),
	})
	m.AddRegion(&Region{
		ID:             10,
		Boundary:       loop,
		BBox:           cellBoundary,
		Cells:          []uint32{1},
		ExclusiveCells: []uint32{1},
	}, "bavaria", true)

	return m
}

func TestMemoryStoreCellLookupByPoint(t *testing.T) {
	m := munichStore(t)
	id, err := m.CellID(context.Background(), s2.LatLngFromDegrees(48.1, 11.1))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)
}

func TestMemoryStoreItemsTextSearch(t *testing.T) {
	m := munichStore(t)
	res, err := m.Items(context.Background(), "hotel*", 0)
	require.NoError(t, err)
	require.True(t, res.IsPM(1))
	assert.Contains(t, res.PMItems(1).Slice(), uint32(100))
	assert.NotContains(t, res.PMItems(1).Slice(), uint32(101))
}

func TestMemoryStoreRegionExclusiveCells(t *testing.T) {
	m := munichStore(t)
	ptr, err := m.ExclusiveCellIndexPtr(context.Background(), 10)
	require.NoError(t, err)
	items, err := m.At(context.Background(), ptr)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1}, items.Slice())
}

func TestMemoryStoreCellItemsResolver(t *testing.T) {
	m := munichStore(t)
	items, err := m.ItemsAt(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{100, 101}, items.Slice())
}

func TestMemoryStoreUnknownCellIsNullCellID(t *testing.T) {
	m := munichStore(t)
	id, err := m.CellID(context.Background(), s2.LatLngFromDegrees(10, 10))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), id)
}
