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

// Package config holds every tunable threshold left to the caller:
// query-subject classification thresholds, compass angle and point
// radius, KV stats block/flush sizes, KoMa's near-disjointness ratio,
// and so on. Thresholds are loaded from YAML, the teacher's own
// direct dependency for exactly this kind of static configuration.
package config

import (
	"io"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Thresholds collects every caller-tunable constant of the query
// engine's subsystems.
type Thresholds struct {
	// SubjectCellCountThreshold (default 10): above this, a CQR is
	// classified as a region even if not fully matched.
	SubjectCellCountThreshold int `yaml:"subject_cell_count_threshold"`
	// SubjectItemCountThreshold (default 20): a CQR only classifies as
	// an item if flattening it yields fewer items than this.
	SubjectItemCountThreshold int `yaml:"subject_item_count_threshold"`

	// RegionDilationDefaultRatio is used when a dilation operator
	// carries no explicit percentage value.
	RegionDilationDefaultRatio float64 `yaml:"region_dilation_default_ratio"`

	// CompassOpeningAngleDegrees is the 45 degree cone half-angle for
	// point-subject compass queries.
	CompassOpeningAngleDegrees float64 `yaml:"compass_opening_angle_degrees"`
	// CompassPointRadiusMeters is the 200m default triangle length
	// for point-subject compass queries.
	CompassPointRadiusMeters float64 `yaml:"compass_point_radius_meters"`
	// CompassInDirectionScaleMaxDiagonalMeters / Min define the decay
	// of in_direction_scale from 10 (diagonals < 100m) to 2 (diagonals
	// > 1km).
	CompassInDirectionScaleMinDiagonalMeters float64 `yaml:"compass_scale_min_diagonal_meters"`
	CompassInDirectionScaleMaxDiagonalMeters float64 `yaml:"compass_scale_max_diagonal_meters"`
	CompassInDirectionScaleAtMin             float64 `yaml:"compass_scale_at_min"`
	CompassInDirectionScaleAtMax             float64 `yaml:"compass_scale_at_max"`
	CompassOrthoScale                        float64 `yaml:"compass_ortho_scale"`

	// InCoverageRatio is the 90% threshold the `:in` operator applies
	// via region-dilation-by-item-coverage.
	InCoverageRatio float64 `yaml:"in_coverage_ratio"`

	// AutoAccuracyItemMeters/ItemBBoxMeters/CellBBoxMeters are the
	// AC_AUTO length thresholds (1km / 2km / 250km), and
	// AutoAccuracyLengthToDiagonalRatio is the "length > 20 x
	// diagonal" override ratio.
	AutoAccuracyItemMeters            float64 `yaml:"auto_accuracy_item_meters"`
	AutoAccuracyItemBBoxMeters        float64 `yaml:"auto_accuracy_item_bbox_meters"`
	AutoAccuracyCellBBoxMeters        float64 `yaml:"auto_accuracy_cell_bbox_meters"`
	AutoAccuracyLengthToDiagonalRatio float64 `yaml:"auto_accuracy_length_to_diagonal_ratio"`

	// KVStatsBlockSize / KVStatsFlushSize are the worker fetch block
	// size and thread-local-table flush threshold, matching liboscar's
	// KVStats.h (BlockSize=1000, FlushSize=BlockSize*1000).
	KVStatsBlockSize int `yaml:"kv_stats_block_size"`
	KVStatsFlushSize int `yaml:"kv_stats_flush_size"`

	// KoMaNearDisjointRatio is the near-disjointness bound: two
	// key-value item sets are near-disjoint when their intersection
	// size is at most this fraction of their combined size.
	KoMaNearDisjointRatio float64 `yaml:"koma_near_disjoint_ratio"`
	// KoMaDefaultFacetSize is the default per-key facet size
	// used when a caller does not override it per-key.
	KoMaDefaultFacetSize int `yaml:"koma_default_facet_size"`

	// CellsSeparator is the list separator for the CELLS leaf payload.
	CellsSeparator string `yaml:"cells_separator"`
}

// Default returns the zero-config starting point for every threshold.
func Default() Thresholds {
	return Thresholds{
		SubjectCellCountThreshold: 10,
		SubjectItemCountThreshold: 20,

		RegionDilationDefaultRatio: 0.5,

		CompassOpeningAngleDegrees:               45,
		CompassPointRadiusMeters:                 200,
		CompassInDirectionScaleMinDiagonalMeters: 100,
		CompassInDirectionScaleMaxDiagonalMeters: 1000,
		CompassInDirectionScaleAtMin:             10,
		CompassInDirectionScaleAtMax:             2,
		CompassOrthoScale:                        0.5,

		InCoverageRatio: 0.9,

		AutoAccuracyItemMeters:            1000,
		AutoAccuracyItemBBoxMeters:        2000,
		AutoAccuracyCellBBoxMeters:        250000,
		AutoAccuracyLengthToDiagonalRatio: 20,

		KVStatsBlockSize: 1000,
		KVStatsFlushSize: 1000 * 1000,

		KoMaNearDisjointRatio: 1.0 / 200.0,
		KoMaDefaultFacetSize:  5,

		CellsSeparator: ",",
	}
}

// Load reads thresholds from YAML, starting from Default() so a
// partial document only overrides what it names.
func Load(r io.Reader) (Thresholds, error) {
	t := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return t, errors.Wrap(err, "reading threshold config")
	}
	if len(data) == 0 {
		return t, nil
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, errors.Wrap(err, "parsing threshold config")
	}
	return t, nil
}
