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

// Package calculator walks a parsed query's operator tree and
// evaluates it into a CQR, dispatching on node.Sub to one
// leaf/unary/binary evaluator per operator kind, the way the teacher
// dispatches sql.Expression/sql.Node evaluation per node kind rather
// than through one large switch.
package calculator

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/oscarquery/cellquery/internal/config"
	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/geoindex"
	"github.com/oscarquery/cellquery/internal/lang"
	"github.com/oscarquery/cellquery/internal/qerrors"
	"github.com/oscarquery/cellquery/internal/resolver"
	"github.com/oscarquery/cellquery/internal/spatial"
)

// Calculator evaluates a lang.Node tree against a fixed set of
// collaborators. It holds no per-query state, so a single Calculator
// can be shared across concurrent Evaluate calls.
type Calculator struct {
	Completer     geoindex.CellTextCompleter
	Hierarchy     geoindex.GeoHierarchy
	IndexStore    geoindex.IndexStore
	Triangulation geoindex.TriangulationArrangement
	Dilator       geoindex.CQRDilator

	Resolver   resolver.Resolver
	Spatial    spatial.Builder
	Algebra    cqr.Algebra
	Thresholds config.Thresholds

	// Workers is the thread count the %N% cell-dilation operator passes
	// to the CQRDilator; 0 means 1.
	Workers int

	Log *logrus.Logger
}

func (c *Calculator) flags() cqr.Flags {
	if c.Completer != nil {
		return c.Completer.Flags()
	}
	return cqr.GlobalItemIDs
}

func (c *Calculator) logger() *logrus.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

type evalFunc func(c *Calculator, ctx context.Context, n *lang.Node) (cqr.CQR, error)

var evalTable = map[lang.OpKind]evalFunc{
	lang.OpString:       (*Calculator).evalString,
	lang.OpStringItem:   (*Calculator).evalStringItem,
	lang.OpStringRegion: (*Calculator).evalStringRegion,

	lang.OpRegion:               (*Calculator).evalRegion,
	lang.OpRegionExclusiveCells: (*Calculator).evalRegionExclusiveCells,
	lang.OpCell:                 (*Calculator).evalCell,
	lang.OpCells:                (*Calculator).evalCells,
	lang.OpTriangle:             (*Calculator).evalTriangle,
	lang.OpTriangles:            (*Calculator).evalTriangles,
	lang.OpRect:                 (*Calculator).evalRect,
	lang.OpPolygon:              (*Calculator).evalPolygon,
	lang.OpPath:                 (*Calculator).evalPath,
	lang.OpPoint:                (*Calculator).evalPoint,
	lang.OpItem:                 (*Calculator).evalItem,

	lang.OpFMConversion:                 (*Calculator).evalFMConversion,
	lang.OpCellDilation:                 (*Calculator).evalCellDilation,
	lang.OpRegionDilationByCellCoverage: (*Calculator).evalRegionDilationByCellCoverage,
	lang.OpRegionDilationByItemCoverage: (*Calculator).evalRegionDilationByItemCoverage,
	lang.OpCompass:                      (*Calculator).evalCompass,
	lang.OpIn:                           (*Calculator).evalIn,
	lang.OpNear:                         (*Calculator).evalNear,
	lang.OpRelevantElement:              (*Calculator).evalRelevantElement,
	lang.OpQueryExclusiveCells:          (*Calculator).evalQueryExclusiveCells,

	lang.OpSetOp:     (*Calculator).evalSetOp,
	lang.OpBetweenOp: (*Calculator).evalBetweenOp,
}

// Evaluate recursively evaluates n to an eager CQR. A nil node (an
// empty or fully-unparseable query) evaluates to Empty.
func (c *Calculator) Evaluate(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	if n == nil {
		return cqr.Empty(c.flags()), nil
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "calculator.Evaluate")
	defer span.Finish()

	fn, ok := evalTable[n.Sub]
	if !ok {
		c.logger().WithField("sub", n.Sub).Warn("calculator: no evaluator registered for operator kind")
		return cqr.Empty(c.flags()), nil
	}
	return fn(c, ctx, n)
}

// EvaluateTreed evaluates n into a lazy cqr.TreedCQR: SET_OP chains
// stay unmaterialised so the caller can batch their final ToCQR; every
// other operator kind (spatial synthesis, dilation, string/geo leaves)
// requires a concrete CQR to work from, so it is evaluated eagerly via
// Evaluate and wrapped as a leaf, mirroring the teacher's CQR-vs-
// TreedCQR template specialisation that materialises before any
// geometry-dependent calc* call. Eager leaves are memoized by
// lang.Node.Fingerprint within this call, so a SET_OP chain that
// repeats the same sub-expression (e.g. "hotel + hotel - restaurant")
// evaluates it against the collaborators only once.
func (c *Calculator) EvaluateTreed(ctx context.Context, n *lang.Node) (cqr.TreedCQR, error) {
	return c.evaluateTreed(ctx, n, map[uint64]cqr.CQR{})
}

func (c *Calculator) evaluateTreed(ctx context.Context, n *lang.Node, memo map[uint64]cqr.CQR) (cqr.TreedCQR, error) {
	if n == nil {
		return cqr.Leaf(cqr.Empty(c.flags())), nil
	}
	if n.Base == lang.Binary && n.Sub == lang.OpSetOp {
		left, err := c.evaluateTreed(ctx, n.Children[0], memo)
		if err != nil {
			return cqr.TreedCQR{}, err
		}
		right, err := c.evaluateTreed(ctx, n.Children[1], memo)
		if err != nil {
			return cqr.TreedCQR{}, err
		}
		switch setOpGlyph(n.Value) {
		case setOpUnion:
			return cqr.Union(left, right), nil
		case setOpDifference:
			return cqr.Difference(left, right), nil
		case setOpSymmetricDifference:
			return cqr.SymmetricDifference(left, right), nil
		default:
			return cqr.Intersect(left, right), nil
		}
	}

	fp := n.Fingerprint()
	if cached, ok := memo[fp]; ok {
		return cqr.Leaf(cached), nil
	}

	result, err := c.Evaluate(ctx, n)
	if err != nil {
		return cqr.TreedCQR{}, err
	}
	memo[fp] = result
	return cqr.Leaf(result), nil
}

// evalChild evaluates n's i-th child, returning Empty if n doesn't
// have one (a malformed unary/binary node after parser recovery).
func (c *Calculator) evalChild(ctx context.Context, n *lang.Node, i int) (cqr.CQR, error) {
	if i >= len(n.Children) {
		return cqr.Empty(c.flags()), nil
	}
	return c.Evaluate(ctx, n.Children[i])
}

func (c *Calculator) requireCompleter() (geoindex.CellTextCompleter, error) {
	if c.Completer == nil {
		return nil, qerrors.MissingCollaborator("CellTextCompleter")
	}
	return c.Completer, nil
}

func (c *Calculator) requireHierarchy() (geoindex.GeoHierarchy, error) {
	if c.Hierarchy == nil {
		return nil, qerrors.MissingCollaborator("GeoHierarchy")
	}
	return c.Hierarchy, nil
}

func (c *Calculator) requireIndexStore() (geoindex.IndexStore, error) {
	if c.IndexStore == nil {
		return nil, qerrors.MissingCollaborator("IndexStore")
	}
	return c.IndexStore, nil
}

func (c *Calculator) requireTriangulation() (geoindex.TriangulationArrangement, error) {
	if c.Triangulation == nil {
		return nil, qerrors.MissingCollaborator("TriangulationArrangement")
	}
	return c.Triangulation, nil
}

// algebra returns c.Algebra with its Resolver filled in from Hierarchy
// when the caller left it unset, so set-operator evaluation can always
// resolve a fully-matched cell's inventory (needed by Difference/
// SymmetricDifference when one side names specific items).
func (c *Calculator) algebra() cqr.Algebra {
	alg := c.Algebra
	if alg.Resolver == nil && c.Hierarchy != nil {
		alg.Resolver = hierarchyItemsResolver{c.Hierarchy}
	}
	return alg
}

// hierarchyItemsResolver adapts geoindex.GeoHierarchy.CellItems (which
// takes a context) to cqr.CellItemsResolver's context-free shape; the
// background context is fine here since this only ever backs an
// in-memory/embedded store lookup, never a network call.
type hierarchyItemsResolver struct {
	h geoindex.GeoHierarchy
}

func (a hierarchyItemsResolver) ItemsAt(cellID uint32) (*cqr.ItemSet, error) {
	return a.h.CellItems(context.Background(), cellID)
}
