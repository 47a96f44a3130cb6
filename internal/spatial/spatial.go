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

	"github.com/oscarquery/cellquery/internal/config"
	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/geoindex"
)

// Builder bundles the collaborators the spatial operators need so
// callers (the calculator) don't have to thread them through each
// function individually.
type Builder struct {
	Hierarchy  geoindex.GeoHierarchy
	IndexStore geoindex.IndexStore
	Dilator    geoindex.CQRDilator
	Thresholds config.Thresholds
}

// In implements "in(subject)" as an alias of region-dilation by item
// coverage at the configured ratio.
func (b Builder) In(ctx context.Context, c cqr.CQR) (cqr.CQR, error) {
	return RegionDilate(ctx, b.Hierarchy, b.IndexStore, c, ByItemCoverage, b.Thresholds.InCoverageRatio, c.Flags())
}

// Near degenerates to promoting every partial cell to a full match.
func (b Builder) Near(c cqr.CQR) cqr.CQR {
	return c.AllToFull()
}

// DilateCells implements the %N% cell-dilation operator: call the
// external cqr-dilator with distanceMeters and merge the returned
// extra cell index back into c as fm cells.
func (b Builder) DilateCells(ctx context.Context, c cqr.CQR, distanceMeters float64, threads int) (cqr.CQR, error) {
	if b.Dilator == nil {
		return c, nil
	}
	extra, err := b.Dilator.Dilate(ctx, c, distanceMeters, threads)
	if err != nil {
		return c, err
	}
	alg := cqr.Algebra{}
	return alg.Union(c, cqr.NewFullMatch(extra.Slice(), c.Flags())), nil
}
