// Package pipeline runs fetch, cache, analysis and report preparation for one
// date.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/analysis"
	"marketpulse/internal/config"
	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
	"marketpulse/internal/provider"
	"marketpulse/internal/report"
	"marketpulse/internal/store"
)

// Snapshotter produces the raw snapshot for a date.
type Snapshotter interface {
	Fetch(ctx context.Context, date string) (*model.MarketSnapshot, error)
}

type Pipeline struct {
	fetch     Snapshotter
	snapshots *store.SnapshotCache
	analyses  *store.File
	analyzer  *analysis.Analyzer
	preparer  *report.Preparer
	log       *zap.Logger
}

// Result is everything one run produced.
type Result struct {
	Snapshot *model.MarketSnapshot    `json:"snapshot"`
	Analysis *analysis.MarketAnalysis `json:"analysis"`
	Report   *report.PreparedReport   `json:"report"`
	// Cached is set when the snapshot came from the cache.
	Cached bool `json:"cached"`
}

func New(f Snapshotter, snapshots *store.SnapshotCache, analyses *store.File, a *analysis.Analyzer, p *report.Preparer, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{fetch: f, snapshots: snapshots, analyses: analyses, analyzer: a, preparer: p, log: log}
}

// Build wires a pipeline from configuration against the live upstreams.
func Build(cfg config.Config, now provider.Clock, log *zap.Logger) (*Pipeline, error) {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	fc, err := NewSources(NewGetter(cfg.HTTP), now).FetcherConfig(cfg)
	if err != nil {
		return nil, err
	}
	rc := report.Config{
		FundChannel:     cfg.Analysis.FundChannel,
		StrongChangePct: cfg.Analysis.StrongChangePct,
		HeavyVolume:     cfg.Analysis.HeavyVolume,
		LightVolume:     cfg.Analysis.LightVolume,
		TopSectors:      cfg.Analysis.TopSectors,
	}
	return New(
		fetcher.New(fc, now, log.Named("fetcher")),
		store.NewSnapshotCache(cfg.Store.SnapshotPath),
		store.NewFile(cfg.Store.AnalysisPath),
		analysis.New(cfg.AnalyzerConfig()),
		report.New(rc),
		log,
	), nil
}

// Snapshot returns the cached snapshot for date, or fetches and caches one.
// refresh skips the cache read. Snapshots carrying a fetch error are neither
// served from nor written to the cache.
func (p *Pipeline) Snapshot(ctx context.Context, date string, refresh bool) (*model.MarketSnapshot, bool, error) {
	log := p.log.With(zap.String("date", date))
	if !refresh {
		snap, ok, err := p.snapshots.Load(date)
		if err != nil {
			return nil, false, err
		}
		if ok && snap.FetchError() == "" {
			log.Debug("snapshot cache hit")
			return snap, true, nil
		}
	}

	snap, err := p.fetch.Fetch(ctx, date)
	if err != nil {
		return nil, false, err
	}
	if snap.FetchError() != "" {
		return snap, false, nil
	}
	if err := p.snapshots.Save(snap); err != nil {
		return nil, false, fmt.Errorf("caching snapshot: %w", err)
	}
	return snap, false, nil
}

// Run fetches (or loads) the snapshot, analyzes it and prepares the report.
// A snapshot without index data stops the run with ErrMissingCoreData; the
// partial result still carries the snapshot.
func (p *Pipeline) Run(ctx context.Context, date string, refresh bool) (*Result, error) {
	snap, cached, err := p.Snapshot(ctx, date, refresh)
	if err != nil {
		return nil, err
	}
	res := &Result{Snapshot: snap, Cached: cached}

	a, err := p.analyzer.Analyze(snap)
	if err != nil {
		return res, err
	}
	res.Analysis = a
	if err := p.analyses.Put(date, a); err != nil {
		p.log.Warn("caching analysis failed", zap.String("date", date), zap.Error(err))
	}

	rep, err := p.preparer.Prepare(snap, a)
	if err != nil {
		return res, err
	}
	res.Report = rep
	return res, nil
}

// CachedAnalysis returns the analysis last stored for date.
func (p *Pipeline) CachedAnalysis(date string) (*analysis.MarketAnalysis, bool, error) {
	if _, err := model.ParseDate(date); err != nil {
		return nil, false, err
	}
	var a analysis.MarketAnalysis
	ok, err := p.analyses.Get(date, &a)
	if err != nil || !ok {
		return nil, false, err
	}
	return &a, true, nil
}

// Dates lists cached snapshot dates in ascending order.
func (p *Pipeline) Dates() ([]string, error) { return p.snapshots.Dates() }
