// Package tencent reads daily index bars from the Tencent (gtimg) kline API.
package tencent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/httpx"
	"marketpulse/internal/model"
	"marketpulse/internal/provider"
)

// Kind is the source kind used in configuration.
const Kind = "tencent"

const defaultBaseURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"

// lookback is how far before day the series starts, so the previous bar is
// available to derive change.
const lookback = 20 * 24 * time.Hour

type Source struct {
	// Symbol is the exchange-prefixed code, e.g. "sh000001".
	Symbol  string
	BaseURL string
	g       httpx.Getter
}

func New(symbol string, g httpx.Getter) *Source {
	return &Source{Symbol: symbol, BaseURL: defaultBaseURL, g: g}
}

func (s *Source) Name() string { return Kind }

// Fetch reads the bar for day. Rows are [date, open, close, high, low, amount];
// change is computed against the previous row, or the open when day is the
// first row of the series.
func (s *Source) Fetch(ctx context.Context, day time.Time) provider.Outcome[model.Quote] {
	day = day.In(model.Market)
	from := day.Add(-lookback).Format(model.DateLayout)
	to := day.Format(model.DateLayout)
	rawURL := fmt.Sprintf("%s?param=%s,day,%s,%s,640,", s.BaseURL, s.Symbol, from, to)
	h := http.Header{}
	h.Set("Referer", "https://gu.qq.com/")

	body, err := s.g.Get(ctx, rawURL, h)
	if err != nil {
		return provider.Unavailable[model.Quote](Kind, "request: %v", err)
	}
	body = provider.StripJSONP(body)
	if !gjson.ValidBytes(body) {
		return provider.Unavailable[model.Quote](Kind, "response is not JSON")
	}
	series := gjson.GetBytes(body, "data."+s.Symbol)
	rows := series.Get("day")
	if !rows.IsArray() {
		rows = series.Get("qfqday")
	}
	if !rows.IsArray() {
		return provider.Unavailable[model.Quote](Kind, "no daily series for %s", s.Symbol)
	}

	list := rows.Array()
	idx := -1
	for i, r := range list {
		if r.Get("0").String() == to {
			idx = i
			break
		}
	}
	if idx < 0 {
		return provider.Unavailable[model.Quote](Kind, "no row for %s", to)
	}

	v, bad := provider.Numbers(list[idx], "1", "2", "3", "4", "5")
	if bad != "" {
		return provider.Unavailable[model.Quote](Kind, "column %s missing or not numeric", bad)
	}
	open, closePx, high, low, amount := v[0], v[1], v[2], v[3], v[4]

	prev := open
	if idx > 0 {
		p, ok := provider.Number(list[idx-1].Get("2"))
		if !ok {
			return provider.Unavailable[model.Quote](Kind, "previous close not numeric")
		}
		prev = p
	}
	if prev <= 0 {
		return provider.Unavailable[model.Quote](Kind, "previous close %.4f is not positive", prev)
	}
	change := closePx - prev

	return provider.CheckedQuote(Kind, model.Quote{
		Close:     closePx,
		Open:      open,
		High:      high,
		Low:       low,
		Change:    change,
		ChangePct: change / prev * 100,
		Amount:    provider.ToYi(amount, provider.YuanPerYi),
	})
}
