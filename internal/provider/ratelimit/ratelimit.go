package ratelimit

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"marketpulse/internal/httpx"
)

// Getter wraps a getter and spaces outbound requests. Upstreams are public
// quote endpoints that throttle bursts, so chained source attempts must not
// fire back to back.
type Getter struct {
	G       httpx.Getter
	Limiter *rate.Limiter
}

// MinInterval returns a Getter that allows one request per interval. A
// non-positive interval disables pacing.
func MinInterval(g httpx.Getter, interval time.Duration) *Getter {
	if interval <= 0 {
		return &Getter{G: g}
	}
	return &Getter{G: g, Limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// PerMinute returns a Getter allowing rpm requests per minute with the given burst.
func PerMinute(g httpx.Getter, rpm, burst int) *Getter {
	if rpm <= 0 {
		return &Getter{G: g}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Getter{G: g, Limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)}
}

// Get waits for the limiter, or returns early if the context is canceled.
func (l *Getter) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return l.G.Get(ctx, rawURL, header)
}
