// Package csindex reads daily index performance from China Securities Index.
// It only covers indices CSI publishes, which includes the SSE Composite.
package csindex

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/httpx"
	"marketpulse/internal/model"
	"marketpulse/internal/provider"
)

// Kind is the source kind used in configuration.
const Kind = "csindex"

const defaultBaseURL = "https://www.csindex.com.cn/csindex-home/perf/index-perf"

type Source struct {
	Symbol  string
	BaseURL string
	g       httpx.Getter
}

// New returns a source for the CSI index code symbol, e.g. "000001".
func New(symbol string, g httpx.Getter) *Source {
	return &Source{Symbol: symbol, BaseURL: defaultBaseURL, g: g}
}

func (s *Source) Name() string { return Kind }

func (s *Source) Fetch(ctx context.Context, day time.Time) provider.Outcome[model.Quote] {
	d := day.In(model.Market).Format("20060102")
	q := url.Values{}
	q.Set("indexCode", s.Symbol)
	q.Set("startDate", d)
	q.Set("endDate", d)
	h := http.Header{}
	h.Set("Referer", "https://www.csindex.com.cn/")

	body, err := s.g.Get(ctx, s.BaseURL+"?"+q.Encode(), h)
	if err != nil {
		return provider.Unavailable[model.Quote](Kind, "request: %v", err)
	}
	if !gjson.ValidBytes(body) {
		return provider.Unavailable[model.Quote](Kind, "response is not JSON")
	}
	rows := gjson.GetBytes(body, "data")
	if !rows.IsArray() {
		return provider.Unavailable[model.Quote](Kind, "response has no data array")
	}

	var row gjson.Result
	rows.ForEach(func(_, r gjson.Result) bool {
		if r.Get("tradeDate").String() == d {
			row = r
			return false
		}
		return true
	})
	if !row.Exists() {
		return provider.Unavailable[model.Quote](Kind, "no row for %s", model.FormatDate(day))
	}

	v, bad := provider.Numbers(row, "close", "open", "high", "low", "change", "changePct", "tradingValue")
	if bad != "" {
		return provider.Unavailable[model.Quote](Kind, "field %s missing or not numeric", bad)
	}
	return provider.CheckedQuote(Kind, model.Quote{
		Close:     v[0],
		Open:      v[1],
		High:      v[2],
		Low:       v[3],
		Change:    v[4],
		ChangePct: v[5],
		// already in 亿元
		Amount: v[6],
	})
}
