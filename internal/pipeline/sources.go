package pipeline

import (
	"fmt"
	"time"

	"marketpulse/internal/config"
	"marketpulse/internal/fetcher"
	"marketpulse/internal/httpx"
	"marketpulse/internal/model"
	"marketpulse/internal/provider"
	"marketpulse/internal/provider/cache"
	"marketpulse/internal/provider/csindex"
	"marketpulse/internal/provider/eastmoney"
	"marketpulse/internal/provider/ratelimit"
	"marketpulse/internal/provider/sina"
	"marketpulse/internal/provider/tencent"
)

// NewGetter stacks the upstream transport: a body cache in front of a rate
// limiter in front of the HTTP client, so cache hits are never paced.
func NewGetter(cfg config.HTTP) httpx.Getter {
	var g httpx.Getter = httpx.New(time.Duration(cfg.TimeoutSec) * time.Second)
	if cfg.MaxRequestsPerMinute > 0 {
		g = ratelimit.PerMinute(g, cfg.MaxRequestsPerMinute, cfg.Burst)
	} else {
		g = ratelimit.MinInterval(g, time.Duration(cfg.MinIntervalMS)*time.Millisecond)
	}
	if cfg.CacheTTLSec > 0 {
		g = &cache.Getter{G: g, TTL: time.Duration(cfg.CacheTTLSec) * time.Second, MaxItems: cfg.CacheMaxItems}
	}
	return g
}

// Sources turns the declarative instrument, fund, breadth and sector tables
// into fetcher configuration.
type Sources struct {
	g   httpx.Getter
	now provider.Clock
	em  *eastmoney.Client
}

func NewSources(g httpx.Getter, now provider.Clock) *Sources {
	return &Sources{g: g, now: now, em: eastmoney.NewClient(g, now)}
}

func (s *Sources) Quote(ref config.SourceRef) (provider.Source[model.Quote], error) {
	switch ref.Kind {
	case csindex.Kind:
		return csindex.New(ref.Symbol, s.g), nil
	case tencent.Kind:
		return tencent.New(ref.Symbol, s.g), nil
	case sina.Kind:
		return sina.New(ref.Symbol, s.g, s.now), nil
	case eastmoney.KindKline:
		return s.em.Kline(ref.Symbol), nil
	case eastmoney.KindLive:
		return s.em.Live(ref.Symbol), nil
	}
	return nil, fmt.Errorf("unknown quote source kind %q", ref.Kind)
}

func (s *Sources) FundFlow(ref config.SourceRef) (provider.Source[model.FundFlow], error) {
	if ref.Kind == eastmoney.KindNorthbound {
		return s.em.Northbound(), nil
	}
	return nil, fmt.Errorf("unknown fund source kind %q", ref.Kind)
}

func (s *Sources) Breadth(ref config.SourceRef) (provider.Source[model.Breadth], error) {
	if ref.Kind == eastmoney.KindBreadth {
		return s.em.Breadth(), nil
	}
	return nil, fmt.Errorf("unknown breadth source kind %q", ref.Kind)
}

func (s *Sources) Sectors(ref config.SourceRef, filter string, limit int) (provider.Source[model.SectorBoard], error) {
	if ref.Kind == eastmoney.KindSectors {
		return s.em.Sectors(filter, limit), nil
	}
	return nil, fmt.Errorf("unknown sector source kind %q", ref.Kind)
}

// FetcherConfig resolves every source reference in cfg.
func (s *Sources) FetcherConfig(cfg config.Config) (fetcher.Config, error) {
	out := fetcher.Config{Epsilon: cfg.Analysis.FundEpsilon}
	for _, in := range cfg.Instruments {
		inst := fetcher.Instrument{ID: in.ID, Name: in.Name, Code: in.Code}
		for _, ref := range in.Sources {
			src, err := s.Quote(ref)
			if err != nil {
				return fetcher.Config{}, fmt.Errorf("instrument %s: %w", in.ID, err)
			}
			inst.Sources = append(inst.Sources, src)
		}
		out.Instruments = append(out.Instruments, inst)
	}
	for _, f := range cfg.Funds {
		ch := fetcher.FundChannel{ID: f.ID, Name: f.Name}
		for _, ref := range f.Sources {
			src, err := s.FundFlow(ref)
			if err != nil {
				return fetcher.Config{}, fmt.Errorf("fund %s: %w", f.ID, err)
			}
			ch.Sources = append(ch.Sources, src)
		}
		out.Funds = append(out.Funds, ch)
	}
	for _, ref := range cfg.Breadth.Sources {
		src, err := s.Breadth(ref)
		if err != nil {
			return fetcher.Config{}, err
		}
		out.Breadth = append(out.Breadth, src)
	}
	for _, ref := range cfg.Sectors.Sources {
		src, err := s.Sectors(ref, cfg.Sectors.Filter, cfg.Sectors.Limit)
		if err != nil {
			return fetcher.Config{}, err
		}
		out.Sectors = append(out.Sectors, src)
	}
	return out, nil
}
