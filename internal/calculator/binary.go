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

type setOp int

const (
	setOpIntersect setOp = iota
	setOpUnion
	setOpDifference
	setOpSymmetricDifference
)

// setOpGlyph maps a SET_OP node's literal glyph to the algebra
// operation it selects: '+' union, '-' difference, '^' symmetric
// difference, and '/' / ',' / '.' / the implicit ' ' all intersect.
func setOpGlyph(v string) setOp {
	switch v {
	case "+":
		return setOpUnion
	case "-":
		return setOpDifference
	case "^":
		return setOpSymmetricDifference
	default:
		return setOpIntersect
	}
}

func (c *Calculator) evalSetOp(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	left, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	right, err := c.evalChild(ctx, n, 1)
	if err != nil {
		return cqr.CQR{}, err
	}

	alg := c.algebra()
	switch setOpGlyph(n.Value) {
	case setOpUnion:
		return alg.Union(left, right), nil
	case setOpDifference:
		return alg.Difference(left, right), nil
	case setOpSymmetricDifference:
		return alg.SymmetricDifference(left, right), nil
	default:
		return alg.Intersect(left, right), nil
	}
}

// evalBetweenOp classifies both operands as subjects, synthesises the
// connecting polygon, and resolves it back through C3 at ACAuto. When
// both subjects are regions, the two regions' own cells are removed
// from the result so the connector names only what lies between them.
func (c *Calculator) evalBetweenOp(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	h, err := c.requireHierarchy()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}

	left, err := c.evalChild(ctx, n, 0)
	if err != nil {
		return cqr.CQR{}, err
	}
	right, err := c.evalChild(ctx, n, 1)
	if err != nil {
		return cqr.CQR{}, err
	}
	if left.IsEmpty() || right.IsEmpty() {
		return cqr.Empty(c.flags()), nil
	}

	th := spatial.ClassificationThresholds{
		CellCountThreshold: c.Thresholds.SubjectCellCountThreshold,
		ItemCountThreshold: c.Thresholds.SubjectItemCountThreshold,
	}
	subjA, err := spatial.Classify(ctx, h, left, th)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	subjB, err := spatial.Classify(ctx, h, right, th)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}

	loop := spatial.BetweenPolygon(subjA, subjB)
	if loop == nil {
		return cqr.Empty(c.flags()), nil
	}
	out, err := c.Resolver.Resolve(ctx, loop, resolver.ACAuto)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}

	if subjA.Kind == spatial.SubjectRegion && subjB.Kind == spatial.SubjectRegion {
		ctc, err := c.requireCompleter()
		if err != nil {
			return out, nil
		}
		alg := c.algebra()
		regionA, err := ctc.CQRFromRegionStoreID(ctx, subjA.RegionID)
		if err == nil {
			out = alg.Difference(out, regionA)
		}
		regionB, err := ctc.CQRFromRegionStoreID(ctx, subjB.RegionID)
		if err == nil {
			out = alg.Difference(out, regionB)
		}
	}
	return out, nil
}
