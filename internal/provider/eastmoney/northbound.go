package eastmoney

import (
	"context"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/model"
	"marketpulse/internal/provider"
)

// NorthboundNote is attached to every northbound figure: the data center only
// publishes the current session, whatever date is asked for.
const NorthboundNote = "该API仅支持获取当日数据"

// Sub-flow keys of the northbound channel.
const (
	SubFlowShanghai = "sh"
	SubFlowShenzhen = "sz"
)

var northboundLegs = []struct{ name, key string }{
	{"沪股通", SubFlowShanghai},
	{"深股通", SubFlowShenzhen},
}

// Northbound reads the Stock Connect northbound net buy from RPT_MUTUAL_QUOTA.
type Northbound struct{ c *Client }

func (c *Client) Northbound() *Northbound { return &Northbound{c: c} }

func (n *Northbound) Name() string { return KindNorthbound }

// Fetch sums the Shanghai and Shenzhen connect legs, converted from 万元 to
// 亿元. A missing leg contributes nothing; no usable leg is unavailable.
func (n *Northbound) Fetch(ctx context.Context, _ time.Time) provider.Outcome[model.FundFlow] {
	q := url.Values{}
	q.Set("reportName", "RPT_MUTUAL_QUOTA")
	q.Set("columns", "TRADE_DATE,MUTUAL_TYPE,BOARD_TYPE,MUTUAL_TYPE_NAME,FUNDS_DIRECTION,INDEX_CODE,INDEX_NAME,BOARD_CODE")
	q.Set("quoteColumns", "status~07~BOARD_CODE,dayNetAmtIn~07~BOARD_CODE,dayAmtRemain~07~BOARD_CODE,"+
		"dayAmtThreshold~07~BOARD_CODE,f104~07~BOARD_CODE,f105~07~BOARD_CODE,"+
		"f106~07~BOARD_CODE,f3~03~INDEX_CODE~INDEX_f3,netBuyAmt~07~BOARD_CODE")
	q.Set("quoteType", "0")
	q.Set("pageNumber", "1")
	q.Set("pageSize", "5000")
	q.Set("sortTypes", "-1")
	q.Set("sortColumns", "TRADE_DATE")
	q.Set("source", "WEB")
	q.Set("client", "WEB")
	q.Set("filter", `(FUNDS_DIRECTION="北向")`)

	doc, err := n.c.getJSON(ctx, n.c.DataHost, "/api/data/v1/get", q)
	if err != nil {
		return provider.Unavailable[model.FundFlow](KindNorthbound, "%v", err)
	}
	rows := doc.Get("result.data")
	if !rows.IsArray() {
		return provider.Unavailable[model.FundFlow](KindNorthbound, "no result rows")
	}

	subs := make(map[string]float64, len(northboundLegs))
	for _, leg := range northboundLegs {
		var row gjson.Result
		rows.ForEach(func(_, r gjson.Result) bool {
			if r.Get("MUTUAL_TYPE_NAME").String() == leg.name {
				row = r
				return false
			}
			return true
		})
		if !row.Exists() {
			continue
		}
		if v, ok := provider.Number(row.Get("netBuyAmt")); ok {
			subs[leg.key] = provider.ToYi(v, provider.WanPerYi)
		}
	}
	if len(subs) == 0 {
		return provider.Unavailable[model.FundFlow](KindNorthbound, "no connect leg carries netBuyAmt")
	}

	var total float64
	for _, leg := range northboundLegs {
		total += subs[leg.key]
	}
	return provider.Found(KindNorthbound, model.FundFlow{
		NetInflow: &total,
		SubFlows:  subs,
		Note:      NorthboundNote,
		Source:    KindNorthbound,
	})
}
