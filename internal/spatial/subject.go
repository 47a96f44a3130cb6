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

// Package spatial builds polygons for the complex spatial query
// operators (between, compass, in, near) and implements the
// region-dilation and cell-dilation modifiers, all on top of the
// plain geometry internal/resolver already knows how to turn back
// into a CQR.
package spatial

import (
	"context"
	"sort"

	"github.com/golang/geo/s2"

	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/geoindex"
)

// SubjectKind says whether a classified subject should be treated as
// a named area or as a single feature.
type SubjectKind int

const (
	SubjectRegion SubjectKind = iota
	SubjectItem
)

// Subject is the outcome of classifying a CQR for the purposes of
// polygon synthesis: a representative point/bbox plus which of the
// source region/item it was derived from.
type Subject struct {
	Kind     SubjectKind
	RegionID uint32
	ItemID   uint32
	Centroid s2.LatLng
	BBox     s2.Rect
}

// ClassificationThresholds bounds how readily a CQR degrades from a
// region classification to an item one.
type ClassificationThresholds struct {
	CellCountThreshold int
	ItemCountThreshold int
}

type regionTally struct {
	fm, pm int
}

// Classify decides whether c is best read as one ancestor region or
// as a single item: it maximises fm/region_cell_count over every
// ancestor region touched by c's cells, then falls through to an item
// classification when the winning region is thin and c flattens to
// few enough items.
func Classify(ctx context.Context, h geoindex.GeoHierarchy, c cqr.CQR, th ClassificationThresholds) (Subject, error) {
	tallies := map[uint32]*regionTally{}

	accumulate := func(cellID uint32, fm bool) error {
		parents, err := h.CellParents(ctx, cellID)
		if err != nil {
			return err
		}
		for _, rid := range parents {
			t, ok := tallies[rid]
			if !ok {
				t = &regionTally{}
				tallies[rid] = t
			}
			if fm {
				t.fm++
			} else {
				t.pm++
			}
		}
		return nil
	}

	for _, cellID := range c.FM() {
		if err := accumulate(cellID, true); err != nil {
			return Subject{}, err
		}
	}
	for _, cellID := range c.PM() {
		if err := accumulate(cellID, false); err != nil {
			return Subject{}, err
		}
	}

	var bestID uint32
	var bestCount uint32
	var bestTally regionTally
	var bestFMRatio, bestPMRatio float64
	found := false

	regionIDs := make([]uint32, 0, len(tallies))
	for rid := range tallies {
		regionIDs = append(regionIDs, rid)
	}
	sort.Slice(regionIDs, func(i, j int) bool { return regionIDs[i] < regionIDs[j] })

	for _, rid := range regionIDs {
		t := tallies[rid]
		count, err := h.RegionCellCount(ctx, rid)
		if err != nil || count == 0 {
			continue
		}
		fmRatio := float64(t.fm) / float64(count)
		pmRatio := float64(t.pm) / float64(count)
		better := !found ||
			fmRatio > bestFMRatio ||
			(fmRatio == bestFMRatio && pmRatio > bestPMRatio) ||
			(fmRatio == bestFMRatio && pmRatio == bestPMRatio && t.fm+t.pm > bestTally.fm+bestTally.pm)
		if better {
			found = true
			bestID = rid
			bestCount = count
			bestTally = *t
			bestFMRatio = fmRatio
			bestPMRatio = pmRatio
		}
	}

	if !found {
		return itemSubject(ctx, h, c)
	}

	thin := uint32(bestTally.fm) < bestCount
	fewCells := bestTally.fm+bestTally.pm < th.CellCountThreshold
	if thin && fewCells {
		itemCount, err := countItems(ctx, h, c)
		if err != nil {
			return Subject{}, err
		}
		if itemCount < th.ItemCountThreshold {
			return itemSubject(ctx, h, c)
		}
	}

	bbox, err := h.RegionBBox(ctx, bestID)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Kind: SubjectRegion, RegionID: bestID, Centroid: bbox.Center(), BBox: bbox}, nil
}

// countItems flattens c to its member item ids (fm cells contribute
// their whole inventory, pm cells their named subset) and returns the
// count, without materialising the set twice.
func countItems(ctx context.Context, h geoindex.GeoHierarchy, c cqr.CQR) (int, error) {
	seen := cqr.NewItemSet()
	for _, cellID := range c.FM() {
		items, err := h.CellItems(ctx, cellID)
		if err != nil {
			return 0, err
		}
		seen = seen.Union(items)
	}
	for _, cellID := range c.PM() {
		seen = seen.Union(c.PMItems(cellID))
	}
	return seen.Len(), nil
}

// itemSubject picks the flattened item with the largest boundary
// diagonal (an area feature "wins" over a bare point); ties, and the
// all-points case, resolve to whichever item is enumerated first.
func itemSubject(ctx context.Context, h geoindex.GeoHierarchy, c cqr.CQR) (Subject, error) {
	items := cqr.NewItemSet()
	for _, cellID := range c.FM() {
		cellItems, err := h.CellItems(ctx, cellID)
		if err != nil {
			return Subject{}, err
		}
		items = items.Union(cellItems)
	}
	for _, cellID := range c.PM() {
		items = items.Union(c.PMItems(cellID))
	}

	var bestID uint32
	var bestDiag float64
	var bestBBox s2.Rect
	var bestPoint s2.LatLng
	any := false

	for _, id := range items.Slice() {
		bbox, err := h.ItemBBox(ctx, id)
		if err != nil {
			continue
		}
		diag := rectDiagonal(bbox)
		if !any || diag > bestDiag {
			any = true
			bestID = id
			bestDiag = diag
			bestBBox = bbox
			if pt, err := h.ItemPoint(ctx, id); err == nil {
				bestPoint = pt
			}
		}
	}
	if !any {
		return Subject{}, nil
	}
	return Subject{Kind: SubjectItem, ItemID: bestID, Centroid: bestPoint, BBox: bestBBox}, nil
}

func rectDiagonal(r s2.Rect) float64 {
	lo := s2.PointFromLatLng(s2.LatLng{Lat: r.Lat.Lo, Lng: r.Lng.Lo})
	hi := s2.PointFromLatLng(s2.LatLng{Lat: r.Lat.Hi, Lng: r.Lng.Hi})
	return float64(lo.Distance(hi))
}
