package analysis_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"marketpulse/internal/analysis"
	"marketpulse/internal/model"
)

var taxonomy = analysis.Taxonomy{
	Styles: []analysis.Style{
		{ID: "tech-growth", Label: "科技成长", Keywords: []string{"人工智能", "半导体", "云计算", "大数据", "5G", "芯片"}},
		{ID: "value-defensive", Label: "价值稳健", Keywords: []string{"白酒", "医药", "家电", "食品", "零售"}},
		{ID: "cyclical-rotation", Label: "周期轮动", Keywords: []string{"钢铁", "煤炭", "有色", "化工", "建材"}},
	},
	MinMatches: 2,
	TopN:       3,
	Fallback:   analysis.Style{ID: "balanced", Label: "均衡"},
}

func newAnalyzer() *analysis.Analyzer {
	return analysis.New(analysis.Config{Tracked: 3, FundChannel: "north", Styles: taxonomy})
}

func idx(id, name string, pct float64) model.IndexQuote {
	return model.IndexQuote{ID: id, Name: name, Quote: model.Quote{Close: 1000, ChangePct: pct}}
}

func inflow(v float64) model.FundSet {
	return model.FundSet{{ID: "north", Name: "北向资金", NetInflow: &v}}
}

func TestAnalyze_MissingCoreData(t *testing.T) {
	t.Parallel()

	a := newAnalyzer()
	msg := "all index sources failed: sh (csindex: no row)"

	for name, snap := range map[string]*model.MarketSnapshot{
		"nil":         nil,
		"no indices":  {Date: "2026-02-10", Indices: model.IndexSet{}, Funds: inflow(35.62)},
		"fetch error": {Date: "2026-02-10", Indices: model.IndexSet{idx("sh", "上证指数", 0.39)}, Error: &msg},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := a.Analyze(snap)
			require.ErrorIs(t, err, model.ErrMissingCoreData)
			require.Nil(t, got)
		})
	}
}

func TestAnalyze_ScenarioUpWithMildInflow(t *testing.T) {
	t.Parallel()

	// Arrange
	snap := &model.MarketSnapshot{
		Date: "2026-02-10",
		Indices: model.IndexSet{
			idx("sh", "上证指数", 0.39),
			idx("sz", "深证成指", 0.70),
			idx("cyb", "创业板指", 0.87),
		},
		Funds: inflow(35.62),
	}

	// Act
	got, err := newAnalyzer().Analyze(snap)

	// Assert
	require.NoError(t, err)
	require.Equal(t, 3, got.Indices.RisingCount)
	require.Equal(t, 0, got.Indices.FallingCount)
	require.Equal(t, analysis.DirectionUp, got.Indices.Direction)
	require.Equal(t, "cyb", got.Indices.BestIndex)
	require.Equal(t, "sh", got.Indices.WorstIndex)

	require.NotNil(t, got.Funds)
	require.Equal(t, analysis.MildInflow, got.Funds.Direction)
	require.Equal(t, analysis.CautiouslyBullish, got.Funds.Sentiment)
	require.Equal(t, analysis.CautiouslyBullish, got.Overall)
	require.Equal(t, "2026-02-10，A股市场呈现上涨态势。创业板指表现最强势，上涨0.87%。北向资金小幅流入35.62亿元，市场情绪谨慎偏多。", got.Summary)
}

func TestAnalyze_BreadthScenario(t *testing.T) {
	t.Parallel()

	snap := &model.MarketSnapshot{
		Date:    "2026-02-10",
		Indices: model.IndexSet{idx("sh", "上证指数", 0.39)},
		Breadth: &model.Breadth{LimitUp: 95, LimitDown: 5, Rising: 3125, Falling: 1820, Total: 5045},
	}

	got, err := newAnalyzer().Analyze(snap)
	require.NoError(t, err)
	require.NotNil(t, got.Breadth)
	require.InDelta(t, 63.2, got.Breadth.RisingPct, 0.05)
	// 63.2 sits in the (50, 66] band.
	require.Equal(t, analysis.Neutral, got.Breadth.Sentiment)
	require.Equal(t, analysis.EarningPronounced, got.Breadth.EarningEffect)
	// No fund data: overall falls back to breadth.
	require.Nil(t, got.Funds)
	require.Equal(t, analysis.Neutral, got.Overall)
}

func TestAnalyze_OverallUnsetWithoutFundsOrBreadth(t *testing.T) {
	t.Parallel()

	snap := &model.MarketSnapshot{
		Date:    "2026-02-03",
		Indices: model.IndexSet{idx("sh", "上证指数", -0.2)},
		Funds:   model.FundSet{{ID: "north", Name: "北向资金", Note: "API仅支持获取当日数据，2026-02-03的历史数据不可用"}},
		Breadth: &model.Breadth{},
	}

	got, err := newAnalyzer().Analyze(snap)
	require.NoError(t, err)
	require.Nil(t, got.Funds, "a null inflow must not produce a fund sentiment")
	require.Nil(t, got.Breadth)
	require.Empty(t, got.Overall)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	require.NotContains(t, string(b), "overall_sentiment")
	require.NotContains(t, string(b), "funds_analysis")
}

func TestAnalyze_LeadershipIsGenuineMaxMin(t *testing.T) {
	t.Parallel()

	sets := [][]float64{
		{0.39, 0.70, 0.87},
		{-1.2, 3.4, 0, -0.01, 2.2},
		{5},
		{-0.5, -0.5, -0.7},
		{0.1, -3, 0.1, 7, -3},
	}
	for _, pcts := range sets {
		var indices model.IndexSet
		for i, p := range pcts {
			indices = append(indices, idx(string(rune('a'+i)), "", p))
		}
		got, err := analysis.New(analysis.Config{}).Analyze(&model.MarketSnapshot{Date: "2026-02-10", Indices: indices})
		require.NoError(t, err)
		for _, q := range indices {
			require.GreaterOrEqual(t, got.Indices.BestChangePct, q.ChangePct)
			require.LessOrEqual(t, got.Indices.WorstChangePct, q.ChangePct)
		}
	}
}

func TestAnalyze_TiesKeepInputOrder(t *testing.T) {
	t.Parallel()

	snap := &model.MarketSnapshot{Date: "2026-02-10", Indices: model.IndexSet{
		idx("sz", "深证成指", 0.5), idx("sh", "上证指数", 0.5), idx("cyb", "创业板指", -0.5), idx("kc", "科创50", -0.5),
	}}
	got, err := analysis.New(analysis.Config{}).Analyze(snap)
	require.NoError(t, err)
	require.Equal(t, "sz", got.Indices.BestIndex)
	require.Equal(t, "kc", got.Indices.WorstIndex)
	// 2 of 4 is not a majority either way.
	require.Equal(t, analysis.DirectionChoppy, got.Indices.Direction)
}

func TestAnalyze_DirectionUsesTrackedCount(t *testing.T) {
	t.Parallel()

	// Two of five tracked instruments answered, both up: not a majority.
	snap := &model.MarketSnapshot{Date: "2026-02-10", Indices: model.IndexSet{idx("sh", "", 1), idx("sz", "", 1)}}
	got, err := analysis.New(analysis.Config{Tracked: 5}).Analyze(snap)
	require.NoError(t, err)
	require.Equal(t, analysis.DirectionChoppy, got.Indices.Direction)

	got, err = analysis.New(analysis.Config{Tracked: 3}).Analyze(snap)
	require.NoError(t, err)
	require.Equal(t, analysis.DirectionUp, got.Indices.Direction)

	snap.Indices = model.IndexSet{idx("sh", "", -1), idx("sz", "", -0.2), idx("cyb", "", 0.3)}
	got, err = analysis.New(analysis.Config{Tracked: 3}).Analyze(snap)
	require.NoError(t, err)
	require.Equal(t, analysis.DirectionDown, got.Indices.Direction)
}

func TestFundSentiment_Bands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		net  float64
		dir  analysis.FundDirection
		sent analysis.Sentiment
	}{
		{120, analysis.StrongInflow, analysis.Bullish},
		{50.01, analysis.StrongInflow, analysis.Bullish},
		{50, analysis.MildInflow, analysis.CautiouslyBullish},
		{35.62, analysis.MildInflow, analysis.CautiouslyBullish},
		{0, analysis.MildOutflow, analysis.Bearish},
		{-49.9, analysis.MildOutflow, analysis.Bearish},
		{-50, analysis.StrongOutflow, analysis.Pessimistic},
	}
	for _, tc := range cases {
		dir, sent := analysis.FundSentiment(tc.net)
		require.Equalf(t, tc.dir, dir, "net %v", tc.net)
		require.Equalf(t, tc.sent, sent, "net %v", tc.net)
	}
}

func TestBreadthSentiment_Monotonic(t *testing.T) {
	t.Parallel()

	rank := map[analysis.Sentiment]int{}
	for i, s := range analysis.BreadthLevels {
		rank[s] = i
	}
	prev := -1
	for pct := 0.0; pct <= 100; pct += 0.25 {
		r, ok := rank[analysis.BreadthSentiment(pct)]
		require.True(t, ok)
		require.GreaterOrEqualf(t, r, prev, "rank dropped at %.2f%%", pct)
		prev = r
	}
	require.Equal(t, analysis.Strong, analysis.BreadthSentiment(75.01))
	require.Equal(t, analysis.BullishLeaning, analysis.BreadthSentiment(75))
	require.Equal(t, analysis.Weak, analysis.BreadthSentiment(33))
}

func TestRisingPct(t *testing.T) {
	t.Parallel()

	pct, ok := analysis.RisingPct(model.Breadth{Rising: 3125, Falling: 1820, Total: 5045})
	require.True(t, ok)
	require.InDelta(t, 63.195, pct, 0.001)

	// Nobody moved: fall back to total.
	pct, ok = analysis.RisingPct(model.Breadth{Total: 4000})
	require.True(t, ok)
	require.Zero(t, pct)

	_, ok = analysis.RisingPct(model.Breadth{})
	require.False(t, ok)
}

func TestEarning(t *testing.T) {
	t.Parallel()

	require.Equal(t, analysis.EarningPronounced, analysis.Earning(95, 5))
	require.Equal(t, analysis.EarningModerate, analysis.Earning(25, 5))
	require.Equal(t, analysis.EarningPoor, analysis.Earning(10, 5))
	require.Equal(t, analysis.EarningPronounced, analysis.Earning(3, 0))
	require.Equal(t, analysis.EarningPoor, analysis.Earning(0, 0))
}

func TestAnalyze_SectorStyle(t *testing.T) {
	t.Parallel()

	board := func(names ...string) *model.SectorBoard {
		b := &model.SectorBoard{}
		for i, n := range names {
			b.TopRisers = append(b.TopRisers, model.SectorMove{Name: n, ChangePct: float64(10 - i)})
		}
		b.TopFallers = []model.SectorMove{{Name: "银行", ChangePct: -1}}
		return b
	}
	cases := map[string]struct {
		sectors *model.SectorBoard
		want    string
	}{
		"tech":           {board("人工智能", "半导体", "白酒"), "tech-growth"},
		"value":          {board("白酒", "医药商业", "钢铁"), "value-defensive"},
		"cyclical":       {board("煤炭开采", "有色金属", "化工原料"), "cyclical-rotation"},
		"one of each":    {board("芯片", "白酒", "钢铁"), "balanced"},
		"only top three": {board("银行", "保险", "证券", "人工智能", "半导体"), "balanced"},
		"short board":    {board("半导体"), "balanced"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			snap := &model.MarketSnapshot{Date: "2026-02-10", Indices: model.IndexSet{idx("sh", "", 0.1)}, Sectors: tc.sectors}
			got, err := newAnalyzer().Analyze(snap)
			require.NoError(t, err)
			require.NotNil(t, got.Sectors)
			require.Equal(t, tc.want, got.Sectors.Style)
			require.LessOrEqual(t, len(got.Sectors.TopSectors), 3)
			require.Equal(t, 1, got.Sectors.TopFallersCount)
		})
	}
}

func TestAnalyze_StyleThresholdIsConfigurable(t *testing.T) {
	t.Parallel()

	tax := taxonomy
	tax.MinMatches = 1
	a := analysis.New(analysis.Config{Styles: tax})
	snap := &model.MarketSnapshot{
		Date:    "2026-02-10",
		Indices: model.IndexSet{idx("sh", "", 0.1)},
		Sectors: &model.SectorBoard{TopRisers: []model.SectorMove{{Name: "银行"}, {Name: "钢铁"}}},
	}
	got, err := a.Analyze(snap)
	require.NoError(t, err)
	require.Equal(t, "cyclical-rotation", got.Sectors.Style)
	require.Equal(t, "周期轮动", got.Sectors.StyleLabel)
}

func TestLabelsText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "上涨", analysis.DirectionUp.Text())
	require.Equal(t, "震荡", analysis.DirectionChoppy.Text())
	require.Equal(t, "大幅流出", analysis.StrongOutflow.Text())
	require.Equal(t, "谨慎偏多", analysis.CautiouslyBullish.Text())
	require.Equal(t, "中性偏空", analysis.NeutralBearish.Text())
	require.Equal(t, "明显", analysis.EarningPronounced.Text())
}
