// Package schedule refreshes the day's snapshot on a cron schedule so API
// reads after the close are served from the cache.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"marketpulse/internal/model"
	"marketpulse/internal/pipeline"
)

// Runner is the pipeline entry point the warmer drives.
type Runner interface {
	Run(ctx context.Context, date string, refresh bool) (*pipeline.Result, error)
}

type Warmer struct {
	cron    *cron.Cron
	run     Runner
	now     func() time.Time
	timeout time.Duration
	log     *zap.Logger
}

// New registers the warm-up on spec, a standard five-field cron expression
// evaluated in market time.
func New(spec string, r Runner, now func() time.Time, timeout time.Duration, log *zap.Logger) (*Warmer, error) {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Warmer{
		cron:    cron.New(cron.WithLocation(model.Market)),
		run:     r,
		now:     now,
		timeout: timeout,
		log:     log,
	}
	if _, err := w.cron.AddFunc(spec, func() { _ = w.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("warm schedule %q: %w", spec, err)
	}
	return w, nil
}

func (w *Warmer) Start() { w.cron.Start() }

// Stop halts the schedule; the returned context is done once a running
// warm-up has finished.
func (w *Warmer) Stop() context.Context { return w.cron.Stop() }

// Next is the next scheduled run.
func (w *Warmer) Next() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(w.now().In(model.Market))
}

// RunOnce refetches today's snapshot, bypassing the cache. A day without
// index data, such as a holiday, is logged and not treated as a failure.
func (w *Warmer) RunOnce(ctx context.Context) error {
	date := model.FormatDate(w.now())
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	log := w.log.With(zap.String("date", date))
	res, err := w.run.Run(ctx, date, true)
	switch {
	case errors.Is(err, model.ErrMissingCoreData):
		log.Warn("warm-up found no index data", zap.Error(err))
		return nil
	case err != nil:
		log.Error("warm-up failed", zap.Error(err))
		return err
	}
	log.Info("warm-up done", zap.Strings("missing", res.Snapshot.Missing))
	return nil
}
