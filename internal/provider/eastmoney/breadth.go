package eastmoney

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/model"
	"marketpulse/internal/provider"
)

// poolUT is the public token the limit-pool pages send.
const poolUT = "7eea3edcaed734bea9cbfc24409ed989"

// compositeSecIDs are the exchange composites whose f104/f105/f106 together
// count every listed A share.
const compositeSecIDs = "1.000001,0.399001"

// Breadth reads market-wide advance/decline counts and the limit-up and
// limit-down pool sizes. Any leg failing makes the whole result unavailable.
type Breadth struct{ c *Client }

func (c *Client) Breadth() *Breadth { return &Breadth{c: c} }

func (b *Breadth) Name() string { return KindBreadth }

func (b *Breadth) Fetch(ctx context.Context, day time.Time) provider.Outcome[model.Breadth] {
	if reason := provider.LiveOnly(b.c.Now, day); reason != "" {
		return provider.Unavailable[model.Breadth](KindBreadth, "%s", reason)
	}

	rising, falling, flat, err := b.advanceDecline(ctx)
	if err != nil {
		return provider.Unavailable[model.Breadth](KindBreadth, "advance/decline: %v", err)
	}
	up, err := b.poolSize(ctx, "/getTopicZTPool", "wz.ztzt", "fbt:asc", day)
	if err != nil {
		return provider.Unavailable[model.Breadth](KindBreadth, "limit-up pool: %v", err)
	}
	down, err := b.poolSize(ctx, "/getTopicDTPool", "wz.ztzt", "fund:asc", day)
	if err != nil {
		return provider.Unavailable[model.Breadth](KindBreadth, "limit-down pool: %v", err)
	}

	out := model.Breadth{
		LimitUp:   up,
		LimitDown: down,
		Rising:    rising,
		Falling:   falling,
		Total:     rising + falling + flat,
	}
	if err := out.Validate(); err != nil {
		return provider.Unavailable[model.Breadth](KindBreadth, "invalid counts: %v", err)
	}
	return provider.Found(KindBreadth, out)
}

func (b *Breadth) advanceDecline(ctx context.Context) (rising, falling, flat int, err error) {
	q := url.Values{}
	q.Set("fltt", "2")
	q.Set("secids", compositeSecIDs)
	q.Set("fields", "f12,f104,f105,f106")
	doc, err := b.c.getJSON(ctx, b.c.QuoteHost, "/api/qt/ulist.np/get", q)
	if err != nil {
		return 0, 0, 0, err
	}
	rows := doc.Get("data.diff")
	if !rows.IsArray() || len(rows.Array()) == 0 {
		return 0, 0, 0, fmt.Errorf("no composite rows")
	}
	for _, r := range rows.Array() {
		v, bad := provider.Numbers(r, "f104", "f105", "f106")
		if bad != "" {
			return 0, 0, 0, fmt.Errorf("%s: field %s missing", r.Get("f12").String(), bad)
		}
		rising += int(v[0])
		falling += int(v[1])
		flat += int(v[2])
	}
	return rising, falling, flat, nil
}

// poolSize returns data.tc of a pool page. An empty pool comes back with
// data null, which counts as zero.
func (b *Breadth) poolSize(ctx context.Context, path, dpt, sort string, day time.Time) (int, error) {
	q := url.Values{}
	q.Set("ut", poolUT)
	q.Set("dpt", dpt)
	q.Set("Pageindex", "0")
	q.Set("pagesize", "1")
	q.Set("sort", sort)
	q.Set("date", day.In(model.Market).Format("20060102"))
	doc, err := b.c.getJSON(ctx, b.c.PoolHost, path, q)
	if err != nil {
		return 0, err
	}
	data := doc.Get("data")
	if !data.Exists() {
		return 0, fmt.Errorf("no data field")
	}
	if data.Type == gjson.Null {
		return 0, nil
	}
	tc, ok := provider.Number(data.Get("tc"))
	if !ok || tc < 0 {
		return 0, fmt.Errorf("tc missing")
	}
	return int(tc), nil
}
