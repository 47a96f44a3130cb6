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

package spatial

import (
	"context"

	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/geoindex"
)

// CoverageKind selects which of the two region-dilation weightings
// RegionDilate applies.
type CoverageKind int

const (
	// ByCellCoverage counts matched cells against a region's total
	// cell count.
	ByCellCoverage CoverageKind = iota
	// ByItemCoverage weights each cell's contribution by its item
	// count and compares against the region's total item count; it
	// may over-count cells shared between regions, which is accepted.
	ByItemCoverage
)

// RegionDilate implements both region-dilation operators: walk every
// ancestor region of every matched cell, keep regions whose matched
// fraction exceeds ratio, and return the union of those regions' full
// cell sets as a fm-only CQR.
func RegionDilate(ctx context.Context, h geoindex.GeoHierarchy, store geoindex.IndexStore, c cqr.CQR, kind CoverageKind, ratio float64, flags cqr.Flags) (cqr.CQR, error) {
	matched := map[uint32]float64{}

	contribute := func(cellID uint32) error {
		parents, err := h.CellParents(ctx, cellID)
		if err != nil {
			return err
		}
		weight := 1.0
		if kind == ByItemCoverage {
			items, err := h.CellItems(ctx, cellID)
			if err != nil {
				return err
			}
			weight = float64(items.Len())
		}
		for _, rid := range parents {
			matched[rid] += weight
		}
		return nil
	}

	for _, cellID := range c.FM() {
		if err := contribute(cellID); err != nil {
			return cqr.Empty(flags), err
		}
	}
	for _, cellID := range c.PM() {
		if err := contribute(cellID); err != nil {
			return cqr.Empty(flags), err
		}
	}

	var fm []uint32
	for rid, amount := range matched {
		var total float64
		if kind == ByItemCoverage {
			n, err := h.RegionItemCount(ctx, rid)
			if err != nil {
				continue
			}
			total = float64(n)
		} else {
			n, err := h.RegionCellCount(ctx, rid)
			if err != nil {
				continue
			}
			total = float64(n)
		}
		if total == 0 {
			continue
		}
		if amount/total > ratio {
			cells, err := regionCells(ctx, h, store, rid)
			if err != nil {
				continue
			}
			fm = append(fm, cells...)
		}
	}
	return cqr.NewFullMatch(fm, flags), nil
}

// regionCells resolves a region's full cell set through its
// RegionCellIdxPtr against store, the same indirection
// internal/resolver uses for region-enclosed cell sets.
func regionCells(ctx context.Context, h geoindex.GeoHierarchy, store geoindex.IndexStore, regionID uint32) ([]uint32, error) {
	ptr, err := h.RegionCellIdxPtr(ctx, regionID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, nil
	}
	items, err := store.At(ctx, ptr)
	if err != nil {
		return nil, err
	}
	return items.Slice(), nil
}
