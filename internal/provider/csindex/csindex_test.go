package csindex_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketpulse/internal/httpx/httpxmock"
	"marketpulse/internal/model"
	"marketpulse/internal/provider/csindex"
)

const perfBody = `{"code":"200","msg":"success","data":[
 {"tradeDate":"20260209","indexCode":"000001","open":3215.0,"high":3230.1,"low":3201.2,"close":3227.47,"change":5.2,"changePct":0.16,"tradingValue":3980.11},
 {"tradeDate":"20260210","indexCode":"000001","open":3228.5,"high":3245.8,"low":3220.1,"close":3240.15,"change":12.68,"changePct":0.39,"tradingValue":4256.82}
]}`

func TestFetch_PicksRowForDay(t *testing.T) {
	t.Parallel()

	// Arrange: a getter that checks the query and returns two rows.
	ctrl := gomock.NewController(t)
	g := httpxmock.NewMockGetter(ctrl)
	g.EXPECT().
		Get(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rawURL string, h http.Header) ([]byte, error) {
			require.Contains(t, rawURL, "indexCode=000001")
			require.Contains(t, rawURL, "startDate=20260210")
			require.Contains(t, rawURL, "endDate=20260210")
			require.NotEmpty(t, h.Get("Referer"))
			return []byte(perfBody), nil
		}).
		Times(1)

	day, err := model.ParseDate("2026-02-10")
	require.NoError(t, err)

	// Act
	out := csindex.New("000001", g).Fetch(t.Context(), day)

	// Assert
	require.True(t, out.OK(), out.Reason)
	require.Equal(t, "csindex", out.Source)
	require.Equal(t, 3240.15, out.Value.Close)
	require.Equal(t, 0.39, out.Value.ChangePct)
	require.Equal(t, 4256.82, out.Value.Amount)
	require.Equal(t, "csindex", out.Value.Source)
}

func TestFetch_Unavailable(t *testing.T) {
	t.Parallel()

	day, err := model.ParseDate("2026-02-11")
	require.NoError(t, err)

	cases := map[string]struct {
		body   string
		err    error
		reason string
	}{
		"transport":  {err: errors.New("dial tcp: timeout"), reason: "request"},
		"not json":   {body: "<html>busy</html>", reason: "not JSON"},
		"no data":    {body: `{"code":"200","data":null}`, reason: "no data array"},
		"no row":     {body: perfBody, reason: "no row for 2026-02-11"},
		"bad number": {body: `{"data":[{"tradeDate":"20260211","close":"-","open":1,"high":1,"low":1,"change":0,"changePct":0,"tradingValue":1}]}`, reason: "field close"},
		"inconsistent": {
			body:   `{"data":[{"tradeDate":"20260211","close":3240.15,"open":1,"high":1,"low":1,"change":12.68,"changePct":9.9,"tradingValue":1}]}`,
			reason: "invalid quote",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			g := httpxmock.NewMockGetter(ctrl)
			g.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte(tc.body), tc.err)

			out := csindex.New("000001", g).Fetch(t.Context(), day)
			require.False(t, out.OK())
			require.Contains(t, out.Reason, tc.reason)
			require.ErrorIs(t, out.Err(), model.ErrUnavailable)
		})
	}
}
