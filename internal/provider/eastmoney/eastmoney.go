// Package eastmoney adapts the East Money quote, kline and data-center APIs.
// Kline bars serve historical dates; everything else is live-only.
package eastmoney

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/httpx"
	"marketpulse/internal/provider"
)

// Source kinds used in configuration.
const (
	KindKline      = "eastmoney-kline"
	KindLive       = "eastmoney-live"
	KindNorthbound = "eastmoney-northbound"
	KindBreadth    = "eastmoney-breadth"
	KindSectors    = "eastmoney-sectors"
)

// Hosts. Tests and proxies may override them on Client.
const (
	DefaultQuoteHost   = "https://push2.eastmoney.com"
	DefaultHistoryHost = "https://push2his.eastmoney.com"
	DefaultPoolHost    = "https://push2ex.eastmoney.com"
	DefaultDataHost    = "https://datacenter-web.eastmoney.com"
)

// Client carries what every East Money source shares: the getter, hosts and
// the clock used for live-only checks.
type Client struct {
	QuoteHost   string
	HistoryHost string
	PoolHost    string
	DataHost    string
	Now         provider.Clock
	g           httpx.Getter
}

func NewClient(g httpx.Getter, now provider.Clock) *Client {
	if now == nil {
		now = time.Now
	}
	return &Client{
		QuoteHost:   DefaultQuoteHost,
		HistoryHost: DefaultHistoryHost,
		PoolHost:    DefaultPoolHost,
		DataHost:    DefaultDataHost,
		Now:         now,
		g:           g,
	}
}

func header() http.Header {
	h := http.Header{}
	h.Set("Referer", "https://quote.eastmoney.com/")
	return h
}

// getJSON fetches host+path?q and checks the envelope. push2 style responses
// carry rc, data-center responses carry success; either may be absent.
func (c *Client) getJSON(ctx context.Context, host, path string, q url.Values) (gjson.Result, error) {
	body, err := c.g.Get(ctx, host+path+"?"+q.Encode(), header())
	if err != nil {
		return gjson.Result{}, fmt.Errorf("request: %w", err)
	}
	body = provider.StripJSONP(body)
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("response is not JSON")
	}
	doc := gjson.ParseBytes(body)
	if rc := doc.Get("rc"); rc.Exists() && rc.Int() != 0 {
		return gjson.Result{}, fmt.Errorf("rc=%d", rc.Int())
	}
	if ok := doc.Get("success"); ok.Exists() && !ok.Bool() {
		return gjson.Result{}, fmt.Errorf("upstream error: %s", doc.Get("message").String())
	}
	return doc, nil
}
