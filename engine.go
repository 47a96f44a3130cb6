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

// Package cellquery is the public entry point: Engine wraps the DSL
// parser, the CQR calculator, KV statistics, and KoMa clustering
// behind a handful of top-level methods built once from an injected
// set of read-only collaborators.
package cellquery

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/oscarquery/cellquery/internal/calculator"
	"github.com/oscarquery/cellquery/internal/config"
	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/exclusions"
	"github.com/oscarquery/cellquery/internal/geoindex"
	"github.com/oscarquery/cellquery/internal/koma"
	"github.com/oscarquery/cellquery/internal/kvstats"
	"github.com/oscarquery/cellquery/internal/lang"
	"github.com/oscarquery/cellquery/internal/resolver"
	"github.com/oscarquery/cellquery/internal/spatial"
)

// Collaborators bundles every read-only backend the engine consults.
// Completer/Hierarchy/IndexStore/Triangulation are required; Dilator
// and KVSource are optional (a nil Dilator disables the dilation
// operators, a nil KVSource disables Stats/Facets).
type Collaborators struct {
	Completer     geoindex.CellTextCompleter
	Hierarchy     geoindex.GeoHierarchy
	IndexStore    geoindex.IndexStore
	Triangulation geoindex.TriangulationArrangement
	Dilator       geoindex.CQRDilator
	KVSource      kvstats.Source
}

// Config holds the per-Engine tunables: threshold constants, the
// thread count the %N% cell-dilation operator passes to the CQR
// dilator, and the logger every query's lifecycle is traced against.
type Config struct {
	Thresholds config.Thresholds
	Workers    int
	Log        *logrus.Logger
}

// Engine is the query engine: parse, evaluate, aggregate, cluster.
// Stateless beyond its collaborators and config, so a single Engine
// can serve concurrent Query/Stats/Facets calls.
type Engine struct {
	collab Collaborators
	cfg    Config
	calc   *calculator.Calculator
}

// New builds an Engine from its collaborators and config. Hierarchy,
// IndexStore, Completer and Triangulation must be non-nil.
func New(collab Collaborators, cfg Config) *Engine {
	th := cfg.Thresholds
	if th == (config.Thresholds{}) {
		th = config.Default()
	}
	cfg.Thresholds = th

	res := resolver.Resolver{
		Hierarchy:     collab.Hierarchy,
		IndexStore:    collab.IndexStore,
		Triangulation: collab.Triangulation,
		Flags:         collab.Completer.Flags(),
		Thresholds: resolver.Thresholds{
			ItemMeters:            th.AutoAccuracyItemMeters,
			ItemBBoxMeters:        th.AutoAccuracyItemBBoxMeters,
			CellBBoxMeters:        th.AutoAccuracyCellBBoxMeters,
			LengthToDiagonalRatio: th.AutoAccuracyLengthToDiagonalRatio,
		},
	}

	return &Engine{
		collab: collab,
		cfg:    cfg,
		calc: &calculator.Calculator{
			Completer:     collab.Completer,
			Hierarchy:     collab.Hierarchy,
			IndexStore:    collab.IndexStore,
			Triangulation: collab.Triangulation,
			Dilator:       collab.Dilator,
			Resolver:      res,
			Spatial: spatial.Builder{
				Hierarchy:  collab.Hierarchy,
				IndexStore: collab.IndexStore,
				Dilator:    collab.Dilator,
				Thresholds: th,
			},
			Thresholds: th,
			Workers:    cfg.Workers,
			Log:        cfg.logger(),
		},
	}
}

func (cfg Config) logger() *logrus.Logger {
	if cfg.Log != nil {
		return cfg.Log
	}
	return logrus.StandardLogger()
}

// newCorrelationID returns a fresh per-query id for log correlation.
func newCorrelationID() string {
	return uuid.Must(uuid.NewV4()).String()
}

// Query parses and evaluates query, returning its CQR.
func (e *Engine) Query(ctx context.Context, query string) (cqr.CQR, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "cellquery.Query")
	defer span.Finish()

	qid := newCorrelationID()
	node := lang.Parse(query)
	log := e.cfg.logger().WithField("query_id", qid).WithField("fingerprint", node.Fingerprint())
	log.WithField("query", query).Debug("evaluating query")

	out, err := e.calc.Evaluate(ctx, node)
	if err != nil {
		log.WithError(err).Warn("query evaluation failed")
		return cqr.CQR{}, errors.Wrap(err, "evaluating query")
	}

	log.WithField("cell_count", out.CellCount()).Debug("query evaluated")
	return out, nil
}

// QueryTreed parses and evaluates query, keeping SET_OP chains lazy
// where EvaluateTreed's materialisation rules allow.
func (e *Engine) QueryTreed(ctx context.Context, query string) (cqr.TreedCQR, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "cellquery.QueryTreed")
	defer span.Finish()

	node := lang.Parse(query)
	out, err := e.calc.EvaluateTreed(ctx, node)
	if err != nil {
		return cqr.TreedCQR{}, errors.Wrap(err, "evaluating query (treed)")
	}
	return out, nil
}

// flattenItems expands a CQR into the full set of matching item ids:
// every fully matched cell's complete inventory, plus every partially
// matched cell's restricted item set.
func flattenItems(ctx context.Context, h geoindex.GeoHierarchy, c cqr.CQR) ([]uint32, error) {
	out := cqr.NewItemSet()
	for _, cellID := range c.FM() {
		items, err := h.CellItems(ctx, cellID)
		if err != nil {
			return nil, errors.Wrapf(err, "cell items for fully matched cell %d", cellID)
		}
		out = out.Union(items)
	}
	for _, cellID := range c.PM() {
		out = out.Union(c.PMItems(cellID))
	}
	return out.Slice(), nil
}

// Stats evaluates query and aggregates key/value attribute frequencies
// over its matching items. Requires Collaborators.KVSource.
func (e *Engine) Stats(ctx context.Context, query string, opts kvstats.Options) (*kvstats.Stats, error) {
	if e.collab.KVSource == nil {
		return nil, errors.New("cellquery: Stats requires a KVSource collaborator")
	}
	result, err := e.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	items, err := flattenItems(ctx, e.collab.Hierarchy, result)
	if err != nil {
		return nil, errors.Wrap(err, "flattening query result")
	}
	return kvstats.Compute(ctx, e.collab.KVSource, items, opts)
}

// FacetOptions bounds a Facets call: how many facet keys to surface,
// how many values per key (with optional per-key overrides), which
// keys/key-value pairs to never surface, and the KoMa worker pool.
type FacetOptions struct {
	Keys               int
	DefaultFacetSize   int
	FacetSizeByKey     map[uint32]int
	KeyExclusions      *exclusions.Keys
	KeyValueExclusions *exclusions.KeyValue
	Worker             koma.Options
}

// Facets evaluates query and returns up to opts.Keys near-disjoint
// facet parents with their top values, the KoMa clustering view of the
// matching item set. Requires Collaborators.KVSource.
func (e *Engine) Facets(ctx context.Context, query string, opts FacetOptions) ([]koma.Facet, error) {
	if e.collab.KVSource == nil {
		return nil, errors.New("cellquery: Facets requires a KVSource collaborator")
	}

	result, err := e.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	items, err := flattenItems(ctx, e.collab.Hierarchy, result)
	if err != nil {
		return nil, errors.Wrap(err, "flattening query result")
	}

	clustering, err := koma.Select(ctx, e.collab.KVSource, items, opts.KeyExclusions, opts.KeyValueExclusions, opts.Worker)
	if err != nil {
		return nil, errors.Wrap(err, "koma preprocess")
	}

	defaultFacetSize := opts.DefaultFacetSize
	if defaultFacetSize <= 0 {
		defaultFacetSize = e.cfg.Thresholds.KoMaDefaultFacetSize
	}
	return clustering.Facets(opts.Keys, opts.FacetSizeByKey, defaultFacetSize), nil
}
