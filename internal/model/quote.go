// Package model holds the market snapshot data contract shared by the fetcher,
// the snapshot cache, the analyzer and the report preparer.
package model

import (
	"fmt"
	"math"
	"time"
)

// PctTolerance is the allowed drift, in percentage points, between a quote's
// reported change_pct and the one implied by change and the previous close.
const PctTolerance = 0.02

// DateLayout is the ISO date used for snapshot keys and upstream queries.
const DateLayout = "2006-01-02"

// Market is China Standard Time. A fixed zone avoids a tzdata dependency.
var Market = time.FixedZone("CST", 8*60*60)

// Quote is one point-in-time price/volume record. Amount is in hundred-millions
// of CNY (亿元).
type Quote struct {
	Close     float64 `json:"close"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Amount    float64 `json:"amount"`
	Source    string  `json:"source"`
}

// PrevClose is the close implied by Close and Change.
func (q Quote) PrevClose() float64 { return q.Close - q.Change }

// Validate reports whether every numeric field is usable. A quote that fails
// validation must be treated as unavailable, never stored half-filled.
func (q Quote) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"close", q.Close}, {"open", q.Open}, {"high", q.High}, {"low", q.Low},
		{"change", q.Change}, {"change_pct", q.ChangePct}, {"amount", q.Amount},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not finite", f.name)
		}
	}
	if q.Close <= 0 {
		return fmt.Errorf("close %.4f is not positive", q.Close)
	}
	if q.Amount < 0 {
		return fmt.Errorf("amount %.4f is negative", q.Amount)
	}
	if prev := q.PrevClose(); prev > 0 {
		implied := q.Change / prev * 100
		if math.Abs(implied-q.ChangePct) > PctTolerance {
			return fmt.Errorf("change_pct %.4f disagrees with change/prev_close %.4f", q.ChangePct, implied)
		}
	}
	return nil
}

// IndexQuote is a Quote for a tracked index. ID is the snapshot key and is not
// serialized inside the quote body.
type IndexQuote struct {
	ID   string `json:"-"`
	Name string `json:"name"`
	Code string `json:"code"`
	Quote
}

// ParseDate parses an ISO date in the market time zone.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, Market)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrMalformedInput, s, err)
	}
	return d, nil
}

// FormatDate formats t as an ISO date in the market time zone.
func FormatDate(t time.Time) string { return t.In(Market).Format(DateLayout) }

// SameDay reports whether a and b fall on the same market calendar day.
func SameDay(a, b time.Time) bool { return FormatDate(a) == FormatDate(b) }
