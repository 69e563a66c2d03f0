// Package analysis derives a market-sentiment reading from a snapshot. The
// analyzer is pure: the same snapshot always gives the same analysis.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"marketpulse/internal/model"
)

// strongFlow separates strong from mild fund flows, in 亿元.
const strongFlow = 50.0

// Breadth bands on rising_pct.
var breadthBands = []struct {
	above float64
	level Sentiment
}{
	{75, Strong},
	{66, BullishLeaning},
	{50, Neutral},
	{33, BearishLeaning},
}

// Style is one entry of the sector-style taxonomy. A sector name matches when
// it contains any keyword.
type Style struct {
	ID       string   `json:"id" mapstructure:"id"`
	Label    string   `json:"label" mapstructure:"label"`
	Keywords []string `json:"keywords" mapstructure:"keywords"`
}

func (s Style) matches(name string) bool {
	for _, kw := range s.Keywords {
		if kw != "" && strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// Taxonomy classifies the leading sectors. Styles are tried in order; the
// first with at least MinMatches of the TopN risers wins, else Fallback.
type Taxonomy struct {
	Styles     []Style
	MinMatches int
	TopN       int
	Fallback   Style
}

type Config struct {
	// Tracked is the number of configured instruments, the N in "more than
	// half of N". Zero means the number of indices present.
	Tracked int
	// FundChannel is the fund channel that drives fund sentiment.
	FundChannel string
	Styles      Taxonomy
}

type Analyzer struct {
	cfg Config
}

func New(cfg Config) *Analyzer {
	if cfg.FundChannel == "" {
		cfg.FundChannel = "north"
	}
	if cfg.Styles.MinMatches <= 0 {
		cfg.Styles.MinMatches = 2
	}
	if cfg.Styles.TopN <= 0 {
		cfg.Styles.TopN = 3
	}
	if cfg.Styles.Fallback.ID == "" {
		cfg.Styles.Fallback = Style{ID: "balanced", Label: "均衡"}
	}
	return &Analyzer{cfg: cfg}
}

type MarketAnalysis struct {
	Date    string           `json:"date"`
	Summary string           `json:"summary"`
	Indices IndexAnalysis    `json:"indices_analysis"`
	Funds   *FundAnalysis    `json:"funds_analysis,omitempty"`
	Breadth *BreadthAnalysis `json:"statistics_analysis,omitempty"`
	Sectors *SectorAnalysis  `json:"sectors_analysis,omitempty"`
	// Overall is empty when neither fund nor breadth data is present.
	Overall Sentiment `json:"overall_sentiment,omitempty"`
}

type IndexAnalysis struct {
	BestIndex      string    `json:"best_index"`
	BestChangePct  float64   `json:"best_change_pct"`
	WorstIndex     string    `json:"worst_index"`
	WorstChangePct float64   `json:"worst_change_pct"`
	RisingCount    int       `json:"rising_count"`
	FallingCount   int       `json:"falling_count"`
	Tracked        int       `json:"tracked"`
	Direction      Direction `json:"market_direction"`
}

type FundAnalysis struct {
	Channel   string        `json:"channel"`
	NetInflow float64       `json:"net_inflow"`
	Direction FundDirection `json:"funds_direction"`
	Sentiment Sentiment     `json:"sentiment"`
}

type BreadthAnalysis struct {
	LimitUp       int           `json:"limit_up"`
	LimitDown     int           `json:"limit_down"`
	Rising        int           `json:"rising"`
	Falling       int           `json:"falling"`
	Total         int           `json:"total"`
	RisingPct     float64       `json:"rising_pct"`
	Sentiment     Sentiment     `json:"market_sentiment"`
	EarningEffect EarningEffect `json:"earning_effect"`
}

type SectorAnalysis struct {
	TopRisersCount  int      `json:"top_risers_count"`
	TopFallersCount int      `json:"top_fallers_count"`
	Style           string   `json:"market_style"`
	StyleLabel      string   `json:"market_style_label"`
	TopSectors      []string `json:"top_sectors"`
}

// Analyze derives the analysis of snap. It refuses snapshots without index
// data or with an aggregate fetch error.
func (a *Analyzer) Analyze(snap *model.MarketSnapshot) (*MarketAnalysis, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot", model.ErrMissingCoreData)
	}
	if msg := snap.FetchError(); msg != "" {
		return nil, fmt.Errorf("%w: %s", model.ErrMissingCoreData, msg)
	}
	if len(snap.Indices) == 0 {
		return nil, fmt.Errorf("%w: no index data for %s", model.ErrMissingCoreData, snap.Date)
	}

	out := &MarketAnalysis{Date: snap.Date}
	out.Indices = a.indices(snap.Indices)

	if f, ok := snap.Funds.Get(a.cfg.FundChannel); ok && f.Available() {
		dir, s := FundSentiment(*f.NetInflow)
		out.Funds = &FundAnalysis{Channel: a.cfg.FundChannel, NetInflow: *f.NetInflow, Direction: dir, Sentiment: s}
		out.Overall = s
	}
	if snap.HasBreadth() {
		out.Breadth = breadth(*snap.Breadth)
		if out.Breadth != nil && out.Overall == "" {
			out.Overall = out.Breadth.Sentiment
		}
	}
	if snap.HasSectors() && len(snap.Sectors.TopRisers) > 0 {
		out.Sectors = a.sectors(*snap.Sectors)
	}
	out.Summary = summary(snap, out)
	return out, nil
}

func (a *Analyzer) indices(set model.IndexSet) IndexAnalysis {
	sorted := append(model.IndexSet(nil), set...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ChangePct > sorted[j].ChangePct })
	best, worst := sorted[0], sorted[len(sorted)-1]

	ia := IndexAnalysis{
		BestIndex:      best.ID,
		BestChangePct:  best.ChangePct,
		WorstIndex:     worst.ID,
		WorstChangePct: worst.ChangePct,
		Tracked:        a.cfg.Tracked,
	}
	if ia.Tracked <= 0 {
		ia.Tracked = len(set)
	}
	for _, q := range set {
		switch {
		case q.ChangePct > 0:
			ia.RisingCount++
		case q.ChangePct < 0:
			ia.FallingCount++
		}
	}
	switch {
	case 2*ia.RisingCount > ia.Tracked:
		ia.Direction = DirectionUp
	case 2*ia.FallingCount > ia.Tracked:
		ia.Direction = DirectionDown
	default:
		ia.Direction = DirectionChoppy
	}
	return ia
}

// FundSentiment bands a net inflow in 亿元. Bands are evaluated top-down.
func FundSentiment(net float64) (FundDirection, Sentiment) {
	switch {
	case net > strongFlow:
		return StrongInflow, Bullish
	case net > 0:
		return MildInflow, CautiouslyBullish
	case net > -strongFlow:
		return MildOutflow, Bearish
	default:
		return StrongOutflow, Pessimistic
	}
}

// RisingPct is rising/(rising+falling) in percent, over total when no name
// moved. It reports false when there is nothing to divide by.
func RisingPct(b model.Breadth) (float64, bool) {
	den := b.Rising + b.Falling
	if den == 0 {
		den = b.Total
	}
	if den <= 0 {
		return 0, false
	}
	return float64(b.Rising) / float64(den) * 100, true
}

// BreadthSentiment bands rising_pct into one of BreadthLevels.
func BreadthSentiment(pct float64) Sentiment {
	for _, band := range breadthBands {
		if pct > band.above {
			return band.level
		}
	}
	return Weak
}

// Earning grades limit-up against limit-down counts. With no limit-down names
// any limit-up name is pronounced.
func Earning(limitUp, limitDown int) EarningEffect {
	if limitDown == 0 {
		if limitUp > 0 {
			return EarningPronounced
		}
		return EarningPoor
	}
	switch {
	case limitUp > 5*limitDown:
		return EarningPronounced
	case limitUp > 2*limitDown:
		return EarningModerate
	default:
		return EarningPoor
	}
}

func breadth(b model.Breadth) *BreadthAnalysis {
	pct, ok := RisingPct(b)
	if !ok {
		return nil
	}
	return &BreadthAnalysis{
		LimitUp:       b.LimitUp,
		LimitDown:     b.LimitDown,
		Rising:        b.Rising,
		Falling:       b.Falling,
		Total:         b.Total,
		RisingPct:     pct,
		Sentiment:     BreadthSentiment(pct),
		EarningEffect: Earning(b.LimitUp, b.LimitDown),
	}
}

func (a *Analyzer) sectors(board model.SectorBoard) *SectorAnalysis {
	tax := a.cfg.Styles
	n := min(tax.TopN, len(board.TopRisers))
	names := make([]string, n)
	for i := range names {
		names[i] = board.TopRisers[i].Name
	}

	style := tax.Fallback
	for _, s := range tax.Styles {
		hits := 0
		for _, name := range names {
			if s.matches(name) {
				hits++
			}
		}
		if hits >= tax.MinMatches {
			style = s
			break
		}
	}
	return &SectorAnalysis{
		TopRisersCount:  len(board.TopRisers),
		TopFallersCount: len(board.TopFallers),
		Style:           style.ID,
		StyleLabel:      style.Label,
		TopSectors:      names,
	}
}

func summary(snap *model.MarketSnapshot, a *MarketAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s，A股市场呈现%s态势。", a.Date, a.Indices.Direction.Text())
	if best, ok := snap.Indices.Get(a.Indices.BestIndex); ok {
		fmt.Fprintf(&b, "%s表现最强势，%s%.2f%%。", best.Name, moveWord(best.ChangePct), math.Abs(best.ChangePct))
	}
	if a.Funds != nil {
		name := a.Funds.Channel
		if f, ok := snap.Funds.Get(a.Funds.Channel); ok && f.Name != "" {
			name = f.Name
		}
		fmt.Fprintf(&b, "%s%s%.2f亿元，市场情绪%s。", name, a.Funds.Direction.Text(), math.Abs(a.Funds.NetInflow), a.Funds.Sentiment.Text())
	}
	return b.String()
}

func moveWord(pct float64) string {
	switch {
	case pct > 0:
		return "上涨"
	case pct < 0:
		return "下跌"
	default:
		return "持平"
	}
}
