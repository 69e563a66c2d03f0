// Package report prepares a snapshot and its analysis for the downstream text
// generator: technical levels, trend labels, turnover and breadth blocks.
package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"marketpulse/internal/analysis"
	"marketpulse/internal/model"
)

// Level multipliers. These are fixed percentage bands around the close, a
// heuristic rather than a technical-analysis model.
var (
	support1  = decimal.RequireFromString("0.98")
	support2  = decimal.RequireFromString("0.95")
	pressure1 = decimal.RequireFromString("1.02")
	pressure2 = decimal.RequireFromString("1.05")
)

const (
	breadthUnavailableNote = "涨跌停统计接口暂时不可用"
	sectorsUnavailableNote = "板块数据接口暂时不可用"
)

type Config struct {
	// FundChannel supplies the inflow of the combined sentiment.
	FundChannel string
	// StrongChangePct is the average change above which (or below whose
	// negative) a session counts as bullish or bearish outright.
	StrongChangePct float64
	// HeavyVolume and LightVolume bound total turnover, in 亿元.
	HeavyVolume float64
	LightVolume float64
	// TopSectors caps the sector lists.
	TopSectors int
}

func DefaultConfig() Config {
	return Config{
		FundChannel:     "north",
		StrongChangePct: 0.5,
		HeavyVolume:     10000,
		LightVolume:     5000,
		TopSectors:      5,
	}
}

type Preparer struct {
	cfg Config
}

func New(cfg Config) *Preparer {
	def := DefaultConfig()
	if cfg.FundChannel == "" {
		cfg.FundChannel = def.FundChannel
	}
	if cfg.StrongChangePct <= 0 {
		cfg.StrongChangePct = def.StrongChangePct
	}
	if cfg.HeavyVolume <= 0 {
		cfg.HeavyVolume = def.HeavyVolume
	}
	if cfg.LightVolume <= 0 {
		cfg.LightVolume = def.LightVolume
	}
	if cfg.TopSectors <= 0 {
		cfg.TopSectors = def.TopSectors
	}
	return &Preparer{cfg: cfg}
}

type PreparedReport struct {
	Date            string             `json:"date"`
	Indices         []Index            `json:"indices"`
	AvgChangePct    float64            `json:"avg_change_pct"`
	Turnover        Turnover           `json:"turnover"`
	Funds           Funds              `json:"funds"`
	Statistics      Statistics         `json:"statistics"`
	Sectors         Sectors            `json:"sectors"`
	MarketDirection analysis.Direction `json:"market_direction"`
	BestIndex       string             `json:"best_index"`
	WorstIndex      string             `json:"worst_index"`
	// Sentiment is unset when the fund inflow is unavailable.
	Sentiment   analysis.Sentiment `json:"overall_sentiment,omitempty"`
	CoreOpinion string             `json:"core_opinion"`
	DataSource  string             `json:"data_source"`
	// Missing lists tracked instruments no source answered for.
	Missing []string `json:"missing,omitempty"`
}

type Index struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
	model.Quote
	Trend          Trend              `json:"trend"`
	TrendText      string             `json:"trend_text"`
	Pattern        string             `json:"pattern"`
	ShortTermTrend analysis.Direction `json:"short_term_trend"`
	Support1       float64            `json:"support1"`
	Support2       float64            `json:"support2"`
	Pressure1      float64            `json:"pressure1"`
	Pressure2      float64            `json:"pressure2"`
}

type Turnover struct {
	TotalAmount float64 `json:"total_amount"`
	Volume      Volume  `json:"volume"`
	VolumeText  string  `json:"volume_text"`
}

type Funds struct {
	Channel string `json:"channel"`
	// NetInflow is nil when the channel had no usable figure.
	NetInflow *float64           `json:"net_inflow"`
	Desc      string             `json:"desc,omitempty"`
	SubFlows  map[string]float64 `json:"sub_flows,omitempty"`
	Note      string             `json:"note,omitempty"`
}

type Statistics struct {
	DataAvailable bool                   `json:"data_available"`
	LimitUp       int                    `json:"limit_up"`
	LimitDown     int                    `json:"limit_down"`
	UpCount       int                    `json:"up_count"`
	DownCount     int                    `json:"down_count"`
	UpRatio       float64                `json:"up_ratio"`
	Feature       analysis.EarningEffect `json:"market_feature,omitempty"`
	Note          string                 `json:"note,omitempty"`
}

type Sectors struct {
	DataAvailable bool               `json:"data_available"`
	TopRisers     []model.SectorMove `json:"top_risers"`
	TopFallers    []model.SectorMove `json:"top_fallers"`
	Note          string             `json:"note,omitempty"`
}

// Prepare combines snap and its analysis. Both must describe the same date and
// snap must carry index data.
func (p *Preparer) Prepare(snap *model.MarketSnapshot, a *analysis.MarketAnalysis) (*PreparedReport, error) {
	if snap == nil || a == nil {
		return nil, fmt.Errorf("%w: snapshot and analysis are required", model.ErrMissingCoreData)
	}
	if msg := snap.FetchError(); msg != "" {
		return nil, fmt.Errorf("%w: %s", model.ErrMissingCoreData, msg)
	}
	if len(snap.Indices) == 0 {
		return nil, fmt.Errorf("%w: no index data for %s", model.ErrMissingCoreData, snap.Date)
	}
	if snap.Date != a.Date {
		return nil, fmt.Errorf("%w: snapshot for %s, analysis for %s", model.ErrMalformedInput, snap.Date, a.Date)
	}

	out := &PreparedReport{
		Date:            snap.Date,
		Indices:         make([]Index, 0, len(snap.Indices)),
		MarketDirection: a.Indices.Direction,
		BestIndex:       a.Indices.BestIndex,
		WorstIndex:      a.Indices.WorstIndex,
		CoreOpinion:     a.Summary,
		DataSource:      snap.Source,
		Missing:         snap.Missing,
	}

	var pcts []float64
	total := decimal.Zero
	for _, q := range snap.Indices {
		out.Indices = append(out.Indices, prepareIndex(q))
		pcts = append(pcts, q.ChangePct)
		total = total.Add(decimal.NewFromFloat(q.Amount))
	}
	out.AvgChangePct = average(pcts)
	out.Turnover = p.turnover(total.InexactFloat64())
	out.Funds = p.funds(snap)
	if out.Funds.NetInflow != nil {
		out.Sentiment = CombinedSentiment(out.AvgChangePct, *out.Funds.NetInflow, p.cfg.StrongChangePct)
	}
	out.Statistics = statistics(snap.Breadth)
	out.Sectors = p.sectors(snap.Sectors)
	return out, nil
}

// Levels returns support2 < support1 < close < pressure1 < pressure2 for any
// positive close.
func Levels(closePx float64) (s1, s2, p1, p2 float64) {
	c := decimal.NewFromFloat(closePx)
	return c.Mul(support1).InexactFloat64(),
		c.Mul(support2).InexactFloat64(),
		c.Mul(pressure1).InexactFloat64(),
		c.Mul(pressure2).InexactFloat64()
}

func prepareIndex(q model.IndexQuote) Index {
	t := TrendOf(q.ChangePct)
	s1, s2, p1, p2 := Levels(q.Close)
	short := analysis.DirectionChoppy
	switch {
	case q.ChangePct > 0:
		short = analysis.DirectionUp
	case q.ChangePct < 0:
		short = analysis.DirectionDown
	}
	return Index{
		ID:             q.ID,
		Name:           q.Name,
		Code:           q.Code,
		Quote:          q.Quote,
		Trend:          t,
		TrendText:      t.Text(),
		Pattern:        t.Pattern(),
		ShortTermTrend: short,
		Support1:       s1,
		Support2:       s2,
		Pressure1:      p1,
		Pressure2:      p2,
	}
}

// average is the mean of pcts, 0 for none.
func average(pcts []float64) float64 {
	if len(pcts) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range pcts {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Div(decimal.NewFromInt(int64(len(pcts)))).InexactFloat64()
}

func (p *Preparer) turnover(total float64) Turnover {
	v := VolumeModerate
	switch {
	case total > p.cfg.HeavyVolume:
		v = VolumeHeavy
	case total < p.cfg.LightVolume:
		v = VolumeLight
	}
	return Turnover{TotalAmount: total, Volume: v, VolumeText: v.Text()}
}

func (p *Preparer) funds(snap *model.MarketSnapshot) Funds {
	out := Funds{Channel: p.cfg.FundChannel}
	f, ok := snap.Funds.Get(p.cfg.FundChannel)
	if !ok {
		return out
	}
	out.Note = f.Note
	if !f.Available() {
		return out
	}
	v := *f.NetInflow
	out.NetInflow = &v
	out.SubFlows = f.SubFlows
	out.Desc = "净流入"
	if v < 0 {
		out.Desc = "净流出"
	}
	return out
}

// CombinedSentiment maps the average index change and the fund inflow by sign.
// strong is the average change beyond which a same-signed inflow makes the
// session bullish or bearish rather than neutral-leaning.
func CombinedSentiment(avg, inflow, strong float64) analysis.Sentiment {
	switch {
	case avg > strong && inflow > 0:
		return analysis.Bullish
	case avg > 0 && inflow >= 0:
		return analysis.NeutralBullish
	case avg < -strong && inflow < 0:
		return analysis.Bearish
	case avg < 0 && inflow <= 0:
		return analysis.NeutralBearish
	default:
		return analysis.Neutral
	}
}

// statistics builds the breadth block. With neither limit-up nor limit-down
// names the pools are taken as unavailable rather than a zero session.
func statistics(b *model.Breadth) Statistics {
	if b == nil || (b.LimitUp == 0 && b.LimitDown == 0) {
		return Statistics{Note: breadthUnavailableNote}
	}
	ratio := 50.0
	if b.Rising+b.Falling > 0 {
		ratio = decimal.NewFromInt(int64(b.Rising)).
			Div(decimal.NewFromInt(int64(b.Rising + b.Falling))).
			Mul(decimal.NewFromInt(100)).
			Round(1).
			InexactFloat64()
	}
	feature := analysis.EarningModerate
	switch {
	case ratio > 60:
		feature = analysis.EarningPronounced
	case ratio < 40:
		feature = analysis.EarningPoor
	}
	return Statistics{
		DataAvailable: true,
		LimitUp:       b.LimitUp,
		LimitDown:     b.LimitDown,
		UpCount:       b.Rising,
		DownCount:     b.Falling,
		UpRatio:       ratio,
		Feature:       feature,
	}
}

func (p *Preparer) sectors(board *model.SectorBoard) Sectors {
	if board == nil || len(board.TopRisers) == 0 {
		return Sectors{TopRisers: []model.SectorMove{}, TopFallers: []model.SectorMove{}, Note: sectorsUnavailableNote}
	}
	n := p.cfg.TopSectors
	return Sectors{
		DataAvailable: true,
		TopRisers:     append([]model.SectorMove{}, board.TopRisers[:min(n, len(board.TopRisers))]...),
		TopFallers:    append([]model.SectorMove{}, board.TopFallers[:min(n, len(board.TopFallers))]...),
	}
}
