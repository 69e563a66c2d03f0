// Package sina reads the live index list from Sina Finance. The endpoint only
// publishes current-session data.
package sina

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
const Kind = "sina"

const defaultBaseURL = "https://vip.stock.finance.sina.com.cn/quotes_service/api/json_v2.php/Market_Center.getHQNodeDataSimple"

type Source struct {
	// Symbol is the Sina code, e.g. "sh000001".
	Symbol  string
	BaseURL string
	Now     provider.Clock
	g       httpx.Getter
}

func New(symbol string, g httpx.Getter, now provider.Clock) *Source {
	if now == nil {
		now = time.Now
	}
	return &Source{Symbol: symbol, BaseURL: defaultBaseURL, Now: now, g: g}
}

func (s *Source) Name() string { return Kind }

// Fetch requests the whole hs_s node list and picks Symbol out of it. The URL
// is the same for every instrument so a caching getter serves it once.
func (s *Source) Fetch(ctx context.Context, day time.Time) provider.Outcome[model.Quote] {
	if reason := provider.LiveOnly(s.Now, day); reason != "" {
		return provider.Unavailable[model.Quote](Kind, "%s", reason)
	}
	q := url.Values{}
	q.Set("page", "1")
	q.Set("num", "80")
	q.Set("sort", "symbol")
	q.Set("asc", "1")
	q.Set("node", "hs_s")
	h := http.Header{}
	h.Set("Referer", "https://finance.sina.com.cn/")

	body, err := s.g.Get(ctx, s.BaseURL+"?"+q.Encode(), h)
	if err != nil {
		return provider.Unavailable[model.Quote](Kind, "request: %v", err)
	}
	if !gjson.ValidBytes(body) {
		return provider.Unavailable[model.Quote](Kind, "response is not JSON")
	}
	list := gjson.ParseBytes(body)
	if !list.IsArray() {
		return provider.Unavailable[model.Quote](Kind, "response is not a list")
	}
	var row gjson.Result
	list.ForEach(func(_, r gjson.Result) bool {
		if r.Get("symbol").String() == s.Symbol {
			row = r
			return false
		}
		return true
	})
	if !row.Exists() {
		return provider.Unavailable[model.Quote](Kind, "symbol %s not listed", s.Symbol)
	}

	v, bad := provider.Numbers(row, "trade", "open", "high", "low", "pricechange", "changepercent", "amount")
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
		Amount:    provider.ToYi(v[6], provider.YuanPerYi),
	})
}
