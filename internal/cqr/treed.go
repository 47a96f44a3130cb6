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

	"golang.org/x/sync/errgroup"
)

// treedOp identifies the set operation at a TreedCQR interior node.
type treedOp int

const (
	treedLeaf treedOp = iota
	treedUnion
	treedIntersect
	treedDifference
	treedSymmetricDifference
)

// TreedCQR is the lazy variant of CQR: an unexpanded
// tree of set operations over base CQRs, evaluated on demand by
// ToCQR. It exists so a consumer combining many base CQRs (e.g. the
// calculator folding a wide SET_OP chain) can defer materializing
// intermediate results.
type TreedCQR struct {
	op       treedOp
	leaf     CQR
	children []TreedCQR
}

// Leaf wraps a base CQR as a TreedCQR leaf.
func Leaf(c CQR) TreedCQR { return TreedCQR{op: treedLeaf, leaf: c} }

// Union, Intersect, Difference and SymmetricDifference build interior
// TreedCQR nodes, deferring evaluation until ToCQR.
func Union(a, b TreedCQR) TreedCQR { return TreedCQR{op: treedUnion, children: []TreedCQR{a, b}} }
func Intersect(a, b TreedCQR) TreedCQR {
	return TreedCQR{op: treedIntersect, children: []TreedCQR{a, b}}
}
func Difference(a, b TreedCQR) TreedCQR {
	return TreedCQR{op: treedDifference, children: []TreedCQR{a, b}}
}
func SymmetricDifference(a, b TreedCQR) TreedCQR {
	return TreedCQR{op: treedSymmetricDifference, children: []TreedCQR{a, b}}
}

// ToCQR evaluates the tree to a concrete CQR using alg for the actual
// set operations. When workers > 1, independent subtrees are folded
// concurrently via errgroup; the fold itself (combining two already-
// evaluated children) is always sequential since CQR's own operators
// are not separately parallelized.
func (t TreedCQR) ToCQR(ctx context.Context, alg Algebra, workers int) (CQR, error) {
	if t.op == treedLeaf {
		return t.leaf, nil
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]CQR, len(t.children))
	if workers == 1 || len(t.children) < 2 {
		for i, child := range t.children {
			c, err := child.ToCQR(ctx, alg, workers)
			if err != nil {
				return CQR{}, err
			}
			results[i] = c
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, child := range t.children {
			i, child := i, child
			g.Go(func() error {
				c, err := child.ToCQR(gctx, alg, 1)
				if err != nil {
					return err
				}
				results[i] = c
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return CQR{}, err
		}
	}

	switch t.op {
	case treedUnion:
		return alg.Union(results[0], results[1]), nil
	case treedIntersect:
		return alg.Intersect(results[0], results[1]), nil
	case treedDifference:
		return alg.Difference(results[0], results[1]), nil
	case treedSymmetricDifference:
		return alg.SymmetricDifference(results[0], results[1]), nil
	default:
		return Empty(results[0].flags), nil
	}
}
