// Package fetcher assembles a MarketSnapshot for one date by running every
// configured instrument, fund channel, breadth and sector chain.
package fetcher

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/chain"
	"marketpulse/internal/model"
	"marketpulse/internal/provider"
)

// DefaultEpsilon is the |net inflow| below which a historical fund-flow figure
// is taken to mean "no data" rather than a genuinely flat session.
const DefaultEpsilon = 0.01

// Instrument is one tracked index and its ordered sources.
type Instrument struct {
	ID      string
	Name    string
	Code    string
	Sources []provider.Source[model.Quote]
}

// FundChannel is one capital channel and its ordered sources.
type FundChannel struct {
	ID      string
	Name    string
	Sources []provider.Source[model.FundFlow]
}

type Config struct {
	Instruments []Instrument
	Funds       []FundChannel
	Breadth     []provider.Source[model.Breadth]
	Sectors     []provider.Source[model.SectorBoard]
	// Epsilon defaults to DefaultEpsilon when zero.
	Epsilon float64
}

type Fetcher struct {
	cfg Config
	now provider.Clock
	log *zap.Logger
}

func New(cfg Config, now provider.Clock, log *zap.Logger) *Fetcher {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, now: now, log: log}
}

// Instruments returns the configured instrument ids in order.
func (f *Fetcher) Instruments() []string {
	ids := make([]string, len(f.cfg.Instruments))
	for i, in := range f.cfg.Instruments {
		ids[i] = in.ID
	}
	return ids
}

// Fetch builds the snapshot for date. The only error is a malformed date:
// missing data is reported inside the snapshot. Instruments whose chains are
// exhausted are absent from Indices and listed in Missing; when none answers
// Error is set.
func (f *Fetcher) Fetch(ctx context.Context, date string) (*model.MarketSnapshot, error) {
	day, err := model.ParseDate(date)
	if err != nil {
		return nil, err
	}
	log := f.log.With(zap.String("date", date))
	snap := &model.MarketSnapshot{
		Date:    date,
		Indices: model.IndexSet{},
		Funds:   model.FundSet{},
	}

	var (
		failures []string
		sources  []string
		seen     = map[string]bool{}
	)
	for _, in := range f.cfg.Instruments {
		out, _ := chain.Resolve(ctx, in.ID, day, in.Sources, log)
		if !out.OK() {
			snap.Missing = append(snap.Missing, in.ID)
			failures = append(failures, fmt.Sprintf("%s (%s)", in.ID, out.Reason))
			continue
		}
		snap.Indices = append(snap.Indices, model.IndexQuote{ID: in.ID, Name: in.Name, Code: in.Code, Quote: *out.Value})
		if !seen[out.Value.Source] {
			seen[out.Value.Source] = true
			sources = append(sources, out.Value.Source)
		}
	}
	snap.Source = strings.Join(sources, ",")

	switch {
	case len(snap.Indices) == 0:
		msg := "all index sources failed: " + strings.Join(failures, "; ")
		if len(failures) == 0 {
			msg = "all index sources failed: no instruments configured"
		}
		snap.Error = &msg
		log.Error("no index data", zap.String("error", msg))
	case len(snap.Missing) > 0:
		log.Warn("partial snapshot", zap.Error(snap.Partial()), zap.Strings("failures", failures))
	}

	live := model.SameDay(f.now(), day)
	for _, ch := range f.cfg.Funds {
		snap.Funds = append(snap.Funds, f.fundFlow(ctx, ch, day, live, log))
	}

	if len(f.cfg.Breadth) > 0 {
		if out, _ := chain.Resolve(ctx, "breadth", day, f.cfg.Breadth, log); out.OK() {
			snap.Breadth = out.Value
		}
	}
	if len(f.cfg.Sectors) > 0 {
		if out, _ := chain.Resolve(ctx, "sectors", day, f.cfg.Sectors, log); out.OK() {
			snap.Sectors = out.Value
		}
	}

	log.Info("snapshot fetched",
		zap.Int("indices", len(snap.Indices)),
		zap.Strings("missing", snap.Missing),
		zap.Bool("breadth", snap.HasBreadth()),
		zap.Bool("sectors", snap.HasSectors()),
	)
	return snap, nil
}

// fundFlow resolves one channel. Fund flows are best-effort: an unavailable
// channel is recorded with a nil NetInflow and a note, never as an error.
func (f *Fetcher) fundFlow(ctx context.Context, ch FundChannel, day time.Time, live bool, log *zap.Logger) model.FundFlow {
	out, _ := chain.Resolve(ctx, ch.ID, day, ch.Sources, log)
	if !out.OK() {
		return model.FundFlow{ID: ch.ID, Name: ch.Name, Note: "数据获取失败: " + out.Reason}
	}
	flow := *out.Value
	flow.ID, flow.Name = ch.ID, ch.Name
	if flow.Source == "" {
		flow.Source = out.Source
	}
	// The upstream answers with today's figures, or zeros, whatever date is
	// asked for. A near-zero figure for a past day is no data.
	if !live && flow.NetInflow != nil && math.Abs(*flow.NetInflow) < f.cfg.Epsilon {
		flow.MarkHistoricalUnavailable(model.FormatDate(day))
		log.Info("historical fund flow unavailable", zap.String("channel", ch.ID))
	}
	return flow
}
