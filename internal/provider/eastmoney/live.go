package eastmoney

import (
	"context"
	"net/url"
	"time"

	"marketpulse/internal/model"
	"marketpulse/internal/provider"
)

// Live reads the current quote of one index from push2 ulist.
type Live struct {
	SecID string
	c     *Client
}

func (c *Client) Live(secID string) *Live { return &Live{SecID: secID, c: c} }

func (l *Live) Name() string { return KindLive }

func (l *Live) Fetch(ctx context.Context, day time.Time) provider.Outcome[model.Quote] {
	if reason := provider.LiveOnly(l.c.Now, day); reason != "" {
		return provider.Unavailable[model.Quote](KindLive, "%s", reason)
	}
	q := url.Values{}
	q.Set("fltt", "2")
	q.Set("invt", "2")
	q.Set("secids", l.SecID)
	q.Set("fields", "f2,f3,f4,f6,f12,f14,f15,f16,f17,f18")

	doc, err := l.c.getJSON(ctx, l.c.QuoteHost, "/api/qt/ulist.np/get", q)
	if err != nil {
		return provider.Unavailable[model.Quote](KindLive, "%v", err)
	}
	row := doc.Get("data.diff.0")
	if !row.Exists() {
		return provider.Unavailable[model.Quote](KindLive, "no quote for %s", l.SecID)
	}
	// f2 price, f17 open, f15 high, f16 low, f4 change, f3 pct, f6 amount (yuan)
	v, bad := provider.Numbers(row, "f2", "f17", "f15", "f16", "f4", "f3", "f6")
	if bad != "" {
		return provider.Unavailable[model.Quote](KindLive, "field %s missing or not numeric", bad)
	}
	return provider.CheckedQuote(KindLive, model.Quote{
		Close:     v[0],
		Open:      v[1],
		High:      v[2],
		Low:       v[3],
		Change:    v[4],
		ChangePct: v[5],
		Amount:    provider.ToYi(v[6], provider.YuanPerYi),
	})
}
