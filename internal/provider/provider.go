// Package provider defines the upstream source contract. A source normalizes one
// upstream response for one instrument into a canonical record, or reports why
// it could not.
package provider

import (
	"context"
	"fmt"
	"time"

	"marketpulse/internal/model"
)

// Outcome is the tagged result of one source call: either Value is set, or
// Reason explains why the source was unavailable.
type Outcome[T any] struct {
	Value  *T
	Source string
	Reason string
}

// OK reports whether the outcome carries a value.
func (o Outcome[T]) OK() bool { return o.Value != nil }

// Err returns nil for a found outcome and an ErrUnavailable-wrapping error otherwise.
func (o Outcome[T]) Err() error {
	if o.OK() {
		return nil
	}
	return fmt.Errorf("%s: %w: %s", o.Source, model.ErrUnavailable, o.Reason)
}

// Found wraps v as a successful outcome of source.
func Found[T any](source string, v T) Outcome[T] {
	return Outcome[T]{Value: &v, Source: source}
}

// Unavailable builds an outcome that carries only a reason.
func Unavailable[T any](source, format string, args ...any) Outcome[T] {
	return Outcome[T]{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// Source fetches one kind of record for one instrument. Fetch never panics or
// returns an error: transport, status, parse and missing-row failures are all
// reported as Unavailable.
type Source[T any] interface {
	Name() string
	Fetch(ctx context.Context, day time.Time) Outcome[T]
}

// QuoteSource is a source of index quotes.
//
//go:generate mockgen -package=providermock -destination=providermock/quote_source.go -source=provider.go QuoteSource
type QuoteSource interface {
	Name() string
	Fetch(ctx context.Context, day time.Time) Outcome[model.Quote]
}

// Clock returns the current time. Sources take one so tests can pin "today".
type Clock func() time.Time

// LiveOnly returns a non-empty reason when day is not today in the market
// time zone. Sources that only publish current data must skip historical days.
func LiveOnly(now Clock, day time.Time) string {
	if now == nil {
		now = time.Now
	}
	if !model.SameDay(now(), day) {
		return fmt.Sprintf("live-only source cannot serve historical date %s", model.FormatDate(day))
	}
	return ""
}

// CheckedQuote validates q and returns it as found, or unavailable with the
// validation failure as reason.
func CheckedQuote(source string, q model.Quote) Outcome[model.Quote] {
	q.Source = source
	if err := q.Validate(); err != nil {
		return Unavailable[model.Quote](source, "invalid quote: %v", err)
	}
	return Found(source, q)
}
