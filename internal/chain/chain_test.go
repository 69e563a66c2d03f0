package chain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"marketpulse/internal/chain"
	"marketpulse/internal/model"
	"marketpulse/internal/provider"
	"marketpulse/internal/provider/providermock"
)

var day = time.Date(2026, 2, 10, 0, 0, 0, 0, model.Market)

func source(ctrl *gomock.Controller, name string, out provider.Outcome[model.Quote], times int) *providermock.MockQuoteSource {
	m := providermock.NewMockQuoteSource(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	m.EXPECT().Fetch(gomock.Any(), day).Return(out).Times(times)
	return m
}

func TestResolve_StopsAtFirstFound(t *testing.T) {
	t.Parallel()

	// Arrange: the second source answers, the third must never be called.
	ctrl := gomock.NewController(t)
	found := provider.Found("tencent", model.Quote{Close: 3240.15, Source: "tencent"})
	sources := []provider.Source[model.Quote]{
		source(ctrl, "csindex", provider.Unavailable[model.Quote]("csindex", "no row"), 1),
		source(ctrl, "tencent", found, 1),
		source(ctrl, "sina", provider.Found("sina", model.Quote{Close: 1}), 0),
	}

	// Act
	out, idx := chain.Resolve(t.Context(), "sh", day, sources, zap.NewNop())

	// Assert
	require.Equal(t, 1, idx)
	require.True(t, out.OK())
	require.Equal(t, "tencent", out.Value.Source)
	require.Equal(t, 3240.15, out.Value.Close)
}

func TestResolve_FirstSourceWinsWithoutMerging(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sources := []provider.Source[model.Quote]{
		source(ctrl, "a", provider.Found("a", model.Quote{Close: 10, Amount: 0, Source: "a"}), 1),
		source(ctrl, "b", provider.Found("b", model.Quote{Close: 11, Amount: 99, Source: "b"}), 0),
	}

	out, idx := chain.Resolve(t.Context(), "sh", day, sources, nil)
	require.Equal(t, 0, idx)
	require.Equal(t, model.Quote{Close: 10, Source: "a"}, *out.Value)
}

func TestResolve_Exhausted(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sources := []provider.Source[model.Quote]{
		source(ctrl, "csindex", provider.Unavailable[model.Quote]("csindex", "no row for 2026-02-10"), 1),
		source(ctrl, "sina", provider.Unavailable[model.Quote]("sina", "live-only"), 1),
	}

	out, idx := chain.Resolve(t.Context(), "sh", day, sources, zap.NewNop())
	require.Equal(t, -1, idx)
	require.False(t, out.OK())
	require.Equal(t, "csindex: no row for 2026-02-10; sina: live-only", out.Reason)
	require.ErrorIs(t, out.Err(), model.ErrUnavailable)
}

func TestResolve_NoSources(t *testing.T) {
	t.Parallel()

	out, idx := chain.Resolve[model.Quote](t.Context(), "sh", day, nil, nil)
	require.Equal(t, -1, idx)
	require.Equal(t, "no sources configured", out.Reason)
}

func TestResolve_CanceledContextSkipsRemainingSources(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	ctx, cancel := context.WithCancel(t.Context())
	first := providermock.NewMockQuoteSource(ctrl)
	first.EXPECT().Name().Return("csindex").AnyTimes()
	first.EXPECT().Fetch(gomock.Any(), day).DoAndReturn(func(context.Context, time.Time) provider.Outcome[model.Quote] {
		cancel()
		return provider.Unavailable[model.Quote]("csindex", "timeout")
	})
	sources := []provider.Source[model.Quote]{
		first,
		source(ctrl, "tencent", provider.Found("tencent", model.Quote{Close: 1}), 0),
	}

	out, idx := chain.Resolve(ctx, "sh", day, sources, nil)
	require.Equal(t, -1, idx)
	require.Contains(t, out.Reason, "tencent: context canceled")
}

// Resolve is generic: the same chain serves fund flows.
type flowSource struct {
	name string
	out  provider.Outcome[model.FundFlow]
}

func (f flowSource) Name() string { return f.name }
func (f flowSource) Fetch(context.Context, time.Time) provider.Outcome[model.FundFlow] {
	return f.out
}

func TestResolve_FundFlows(t *testing.T) {
	t.Parallel()

	v := 35.62
	sources := []provider.Source[model.FundFlow]{
		flowSource{"x", provider.Unavailable[model.FundFlow]("x", "down")},
		flowSource{"eastmoney-northbound", provider.Found("eastmoney-northbound", model.FundFlow{NetInflow: &v})},
	}
	out, idx := chain.Resolve(t.Context(), "north", day, sources, zap.NewNop())
	require.Equal(t, 1, idx)
	require.Equal(t, 35.62, *out.Value.NetInflow)
}
