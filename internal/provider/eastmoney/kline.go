package eastmoney

import (
	"context"
	"net/url"
	"strings"
	"time"

	"marketpulse/internal/model"
	"marketpulse/internal/provider"
)

// Kline reads one daily bar from push2his.
type Kline struct {
	// SecID is "<market>.<code>", e.g. "1.000001" or "0.399001".
	SecID string
	c     *Client
}

func (c *Client) Kline(secID string) *Kline { return &Kline{SecID: secID, c: c} }

func (k *Kline) Name() string { return KindKline }

// Fetch parses rows of "date,open,close,high,low,volume,amount,amplitude,pct,change,turnover".
func (k *Kline) Fetch(ctx context.Context, day time.Time) provider.Outcome[model.Quote] {
	d := day.In(model.Market)
	q := url.Values{}
	q.Set("secid", k.SecID)
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")
	q.Set("klt", "101")
	q.Set("fqt", "0")
	q.Set("beg", d.Format("20060102"))
	q.Set("end", d.Format("20060102"))

	doc, err := k.c.getJSON(ctx, k.c.HistoryHost, "/api/qt/stock/kline/get", q)
	if err != nil {
		return provider.Unavailable[model.Quote](KindKline, "%v", err)
	}
	rows := doc.Get("data.klines")
	if !rows.IsArray() {
		return provider.Unavailable[model.Quote](KindKline, "no klines for %s", k.SecID)
	}
	prefix := d.Format(model.DateLayout) + ","
	var cols []string
	for _, r := range rows.Array() {
		if strings.HasPrefix(r.String(), prefix) {
			cols = strings.Split(r.String(), ",")
			break
		}
	}
	if cols == nil {
		return provider.Unavailable[model.Quote](KindKline, "no row for %s", model.FormatDate(day))
	}
	if len(cols) < 10 {
		return provider.Unavailable[model.Quote](KindKline, "row has %d columns", len(cols))
	}

	// open, close, high, low, amount, pct, change
	idx := []int{1, 2, 3, 4, 6, 8, 9}
	v := make([]float64, len(idx))
	for i, c := range idx {
		n, ok := provider.ParseNumber(cols[c])
		if !ok {
			return provider.Unavailable[model.Quote](KindKline, "column %d not numeric: %q", c, cols[c])
		}
		v[i] = n
	}
	return provider.CheckedQuote(KindKline, model.Quote{
		Open:      v[0],
		Close:     v[1],
		High:      v[2],
		Low:       v[3],
		Amount:    provider.ToYi(v[4], provider.YuanPerYi),
		ChangePct: v[5],
		Change:    v[6],
	})
}
