package provider

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Upstream unit divisors for converting to 亿 (hundred-millions).
const (
	YuanPerYi = 100_000_000
	WanPerYi  = 10_000
)

// Number reads a numeric gjson value. Quote endpoints send numbers either as
// JSON numbers or as strings, and use "-" or "" for halted fields.
func Number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, !math.IsNaN(r.Num) && !math.IsInf(r.Num, 0)
	case gjson.String:
		return ParseNumber(r.Str)
	default:
		return 0, false
	}
}

// ParseNumber parses a decimal string, rejecting placeholders.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Numbers reads every path from r, failing if any one is missing or invalid.
// It returns the name of the first bad path.
func Numbers(r gjson.Result, paths ...string) ([]float64, string) {
	out := make([]float64, len(paths))
	for i, p := range paths {
		v, ok := Number(r.Get(p))
		if !ok {
			return nil, p
		}
		out[i] = v
	}
	return out, ""
}

// ToYi converts v expressed in units where divisor units make one 亿.
func ToYi(v float64, divisor int64) float64 {
	return decimal.NewFromFloat(v).Div(decimal.NewFromInt(divisor)).InexactFloat64()
}

// StripJSONP trims a `var x=` or `cb(` wrapper around a JSON document.
func StripJSONP(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] == '{' || body[0] == '[' {
		return body
	}
	start := bytes.IndexAny(body, "{[")
	if start < 0 {
		return body
	}
	end := bytes.LastIndexAny(body, "}]")
	if end < start {
		return body
	}
	return body[start : end+1]
}
