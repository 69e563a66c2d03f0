// Package chain resolves one record from an ordered list of sources. The
// first source that finds a value wins; later sources are never called and
// values from different sources are never merged.
package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/model"
	"marketpulse/internal/provider"
)

// Resolve tries sources in order and returns the first found outcome with the
// index of the source that produced it. When every source is unavailable it
// returns an unavailable outcome whose reason joins each source's reason, and
// index -1.
func Resolve[T any](ctx context.Context, id string, day time.Time, sources []provider.Source[T], log *zap.Logger) (provider.Outcome[T], int) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("instrument", id), zap.String("date", model.FormatDate(day)))

	reasons := make([]string, 0, len(sources))
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", src.Name(), err))
			break
		}
		out := src.Fetch(ctx, day)
		if out.OK() {
			log.Debug("source answered", zap.String("source", src.Name()), zap.Int("attempt", i+1))
			return out, i
		}
		log.Debug("source unavailable", zap.String("source", src.Name()), zap.String("reason", out.Reason))
		reasons = append(reasons, fmt.Sprintf("%s: %s", src.Name(), out.Reason))
	}
	if len(sources) == 0 {
		reasons = append(reasons, "no sources configured")
	}

	reason := strings.Join(reasons, "; ")
	log.Warn("all sources unavailable", zap.String("reasons", reason))
	return provider.Outcome[T]{Reason: reason}, -1
}
