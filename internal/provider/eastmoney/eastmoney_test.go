package eastmoney_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketpulse/internal/httpx/httpxmock"
	"marketpulse/internal/model"
	"marketpulse/internal/provider/eastmoney"
)

// 14:00 CST on 2026-02-10.
var now = func() time.Time { return time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC) }

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

// routes answers each request with the body of the first route whose key is
// a substring of the URL. Unknown URLs fail the request.
func routes(t *testing.T, bodies map[string]string) *eastmoney.Client {
	t.Helper()

	ctrl := gomock.NewController(t)
	g := httpxmock.NewMockGetter(ctrl)
	g.EXPECT().
		Get(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rawURL string, h http.Header) ([]byte, error) {
			require.Equal(t, "https://quote.eastmoney.com/", h.Get("Referer"))
			for k, body := range bodies {
				if strings.Contains(rawURL, k) {
					return []byte(body), nil
				}
			}
			return nil, errors.New("unexpected url " + rawURL)
		}).
		AnyTimes()
	return eastmoney.NewClient(g, now)
}

const klineBody = `{"rc":0,"rt":17,"data":{"code":"000001","market":1,"name":"上证指数","klines":[
 "2026-02-10,3228.50,3240.15,3245.80,3220.10,412345678,425682000000.00,0.79,0.39,12.68,0.95"
]}}`

func TestKline_Fetch(t *testing.T) {
	t.Parallel()

	c := routes(t, map[string]string{"secid=1.000001": klineBody})

	out := c.Kline("1.000001").Fetch(t.Context(), mustDay(t, "2026-02-10"))
	require.True(t, out.OK(), out.Reason)
	require.Equal(t, model.Quote{
		Close: 3240.15, Open: 3228.50, High: 3245.80, Low: 3220.10,
		Change: 12.68, ChangePct: 0.39, Amount: 4256.82, Source: eastmoney.KindKline,
	}, *out.Value)
}

func TestKline_Unavailable(t *testing.T) {
	t.Parallel()

	cases := map[string]struct{ body, reason string }{
		"rc error":    {`{"rc":102,"data":null}`, "rc=102"},
		"no klines":   {`{"rc":0,"data":null}`, "no klines"},
		"no row":      {strings.Replace(klineBody, "2026-02-10", "2026-02-09", 1), "no row for 2026-02-10"},
		"short row":   {`{"rc":0,"data":{"klines":["2026-02-10,1,2,3"]}}`, "4 columns"},
		"placeholder": {`{"rc":0,"data":{"klines":["2026-02-10,-,2,3,4,5,6,7,8,9,10"]}}`, "column 1"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := routes(t, map[string]string{"kline": tc.body})
			out := c.Kline("1.000001").Fetch(t.Context(), mustDay(t, "2026-02-10"))
			require.False(t, out.OK())
			require.Contains(t, out.Reason, tc.reason)
		})
	}
}

func TestLive_Fetch(t *testing.T) {
	t.Parallel()

	c := routes(t, map[string]string{"ulist.np": `{"rc":0,"data":{"total":1,"diff":[
	  {"f2":11020.5,"f3":0.7,"f4":76.61,"f6":562300000000,"f12":"399001","f14":"深证成指","f15":11050.0,"f16":10960.2,"f17":10970.0,"f18":10943.89}
	]}}`})

	out := c.Live("0.399001").Fetch(t.Context(), mustDay(t, "2026-02-10"))
	require.True(t, out.OK(), out.Reason)
	require.Equal(t, 11020.5, out.Value.Close)
	require.Equal(t, 0.7, out.Value.ChangePct)
	require.InDelta(t, 5623.0, out.Value.Amount, 1e-9)

	past := c.Live("0.399001").Fetch(t.Context(), mustDay(t, "2026-02-09"))
	require.False(t, past.OK())
	require.Contains(t, past.Reason, "historical date")
}

func TestLive_HaltedFieldsAreUnavailable(t *testing.T) {
	t.Parallel()

	c := routes(t, map[string]string{"ulist.np": `{"rc":0,"data":{"diff":[{"f2":"-","f3":"-","f4":"-","f6":"-","f15":"-","f16":"-","f17":"-"}]}}`})
	out := c.Live("0.399006").Fetch(t.Context(), mustDay(t, "2026-02-10"))
	require.False(t, out.OK())
	require.Contains(t, out.Reason, "field f2")
}

func TestNorthbound_SumsConnectLegs(t *testing.T) {
	t.Parallel()

	c := routes(t, map[string]string{"RPT_MUTUAL_QUOTA": `{"success":true,"result":{"data":[
	  {"TRADE_DATE":"2026-02-10 00:00:00","MUTUAL_TYPE_NAME":"沪股通","FUNDS_DIRECTION":"北向","netBuyAmt":215300.0},
	  {"TRADE_DATE":"2026-02-10 00:00:00","MUTUAL_TYPE_NAME":"深股通","FUNDS_DIRECTION":"北向","netBuyAmt":140900.0}
	]}}`})

	out := c.Northbound().Fetch(t.Context(), mustDay(t, "2026-02-10"))
	require.True(t, out.OK(), out.Reason)
	require.InDelta(t, 35.62, *out.Value.NetInflow, 1e-9)
	require.InDelta(t, 21.53, out.Value.SubFlows[eastmoney.SubFlowShanghai], 1e-9)
	require.InDelta(t, 14.09, out.Value.SubFlows[eastmoney.SubFlowShenzhen], 1e-9)
	require.Equal(t, eastmoney.NorthboundNote, out.Value.Note)
}

func TestNorthbound_Unavailable(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"failure":    `{"success":false,"message":"返回数据为空","result":null}`,
		"null legs":  `{"success":true,"result":{"data":[{"MUTUAL_TYPE_NAME":"沪股通","netBuyAmt":null}]}}`,
		"no results": `{"success":true,"result":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := routes(t, map[string]string{"RPT_MUTUAL_QUOTA": body})
			out := c.Northbound().Fetch(t.Context(), mustDay(t, "2026-02-10"))
			require.False(t, out.OK())
			require.Nil(t, out.Value)
		})
	}
}

const compositeBody = `{"rc":0,"data":{"diff":[
 {"f12":"000001","f104":1300,"f105":900,"f106":120},
 {"f12":"399001","f104":1825,"f105":920,"f106":180}
]}}`

func TestBreadth_Fetch(t *testing.T) {
	t.Parallel()

	c := routes(t, map[string]string{
		"ulist.np":       compositeBody,
		"getTopicZTPool": `{"rc":0,"data":{"tc":95,"pool":[]}}`,
		"getTopicDTPool": `{"rc":0,"data":{"tc":5,"pool":[]}}`,
	})

	out := c.Breadth().Fetch(t.Context(), mustDay(t, "2026-02-10"))
	require.True(t, out.OK(), out.Reason)
	require.Equal(t, model.Breadth{LimitUp: 95, LimitDown: 5, Rising: 3125, Falling: 1820, Total: 5245}, *out.Value)
}

func TestBreadth_EmptyPoolCountsAsZero(t *testing.T) {
	t.Parallel()

	c := routes(t, map[string]string{
		"ulist.np":       compositeBody,
		"getTopicZTPool": `{"rc":0,"data":{"tc":41}}`,
		"getTopicDTPool": `{"rc":0,"data":null}`,
	})

	out := c.Breadth().Fetch(t.Context(), mustDay(t, "2026-02-10"))
	require.True(t, out.OK(), out.Reason)
	require.Equal(t, 0, out.Value.LimitDown)
}

func TestBreadth_AnyLegFailingIsUnavailable(t *testing.T) {
	t.Parallel()

	c := routes(t, map[string]string{
		"ulist.np":       compositeBody,
		"getTopicZTPool": `{"rc":0,"data":{"tc":41}}`,
	})

	out := c.Breadth().Fetch(t.Context(), mustDay(t, "2026-02-10"))
	require.False(t, out.OK())
	require.Contains(t, out.Reason, "limit-down pool")
}

func TestSectors_Fetch(t *testing.T) {
	t.Parallel()

	c := routes(t, map[string]string{
		"po=1": `{"rc":0,"data":{"total":86,"diff":[
		  {"f2":1520.3,"f3":4.21,"f6":32100000000,"f12":"BK1","f14":"半导体"},
		  {"f2":"-","f3":"-","f6":"-","f12":"BK9","f14":"停牌板块"},
		  {"f2":980.1,"f3":5.02,"f6":18800000000,"f12":"BK2","f14":"人工智能"}
		]}}`,
		"po=0": `{"rc":0,"data":{"diff":[
		  {"f2":820.0,"f3":-1.1,"f6":5000000000,"f12":"BK3","f14":"煤炭"},
		  {"f2":640.0,"f3":-2.3,"f6":4200000000,"f12":"BK4","f14":"钢铁"}
		]}}`,
	})

	out := c.Sectors("", 5).Fetch(t.Context(), mustDay(t, "2026-02-10"))
	require.True(t, out.OK(), out.Reason)
	require.Len(t, out.Value.TopRisers, 2)
	require.Equal(t, "人工智能", out.Value.TopRisers[0].Name)
	require.Equal(t, "半导体", out.Value.TopRisers[1].Name)
	require.InDelta(t, 321.0, out.Value.TopRisers[1].Turnover, 1e-9)
	require.Equal(t, "钢铁", out.Value.TopFallers[0].Name)
}

func TestSectors_HistoricalDay(t *testing.T) {
	t.Parallel()

	c := routes(t, nil)
	out := c.Sectors(eastmoney.IndustryBoards, 5).Fetch(t.Context(), mustDay(t, "2026-01-05"))
	require.False(t, out.OK())
	require.Contains(t, out.Reason, "historical date 2026-01-05")
}
