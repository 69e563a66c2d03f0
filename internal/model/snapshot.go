package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// FundFlow is the net flow of one capital channel, in 亿元. A nil NetInflow
// means the figure is unavailable, which is not the same as a flat zero.
type FundFlow struct {
	ID        string             `json:"-"`
	Name      string             `json:"name"`
	NetInflow *float64           `json:"net_inflow"`
	SubFlows  map[string]float64 `json:"-"`
	Note      string             `json:"note,omitempty"`
	Source    string             `json:"source,omitempty"`
}

// Available reports whether NetInflow carries a usable figure.
func (f FundFlow) Available() bool { return f.NetInflow != nil }

// historicalMarker appears in the note of a channel whose upstream only
// serves the current day.
const historicalMarker = "历史数据不可用"

// HistoricalUnavailableNote is the note recorded for a past date the channel
// cannot serve.
func HistoricalUnavailableNote(date string) string {
	return "API仅支持获取当日数据，" + date + "的" + historicalMarker
}

// MarkHistoricalUnavailable drops the figures of a past-date flow and records
// why.
func (f *FundFlow) MarkHistoricalUnavailable(date string) {
	f.NetInflow = nil
	f.SubFlows = nil
	f.Note = HistoricalUnavailableNote(date)
}

// HistoricalUnavailable reports whether the note marks the figures as not
// served for that date. Older cache files kept a 0.0 next to such a note.
func (f FundFlow) HistoricalUnavailable() bool {
	return strings.Contains(f.Note, historicalMarker)
}

// subFlowSuffix is how sub-flows are flattened on disk: sub flow "sh" is
// persisted as "sh_inflow".
const subFlowSuffix = "_inflow"

func (f FundFlow) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"name":       f.Name,
		"net_inflow": f.NetInflow,
	}
	if f.Note != "" {
		out["note"] = f.Note
	}
	if f.Source != "" {
		out["source"] = f.Source
	}
	for k, v := range f.SubFlows {
		out[k+subFlowSuffix] = v
	}
	return json.Marshal(out)
}

func (f *FundFlow) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return fmt.Errorf("%w: fund flow is not valid JSON", ErrMalformedInput)
	}
	r := gjson.ParseBytes(b)
	if !r.IsObject() {
		return fmt.Errorf("%w: fund flow is not an object", ErrMalformedInput)
	}
	*f = FundFlow{ID: f.ID}
	var bad error
	r.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		switch {
		case k == "name":
			f.Name = value.String()
		case k == "note":
			f.Note = value.String()
		case k == "error" && f.Note == "":
			f.Note = value.String()
		case k == "source":
			f.Source = value.String()
		case k == "net_inflow":
			if value.Type == gjson.Null {
				return true
			}
			if value.Type != gjson.Number {
				bad = fmt.Errorf("%w: net_inflow is %s", ErrMalformedInput, value.Type)
				return false
			}
			v := value.Float()
			f.NetInflow = &v
		case strings.HasSuffix(k, subFlowSuffix):
			if value.Type != gjson.Number {
				return true
			}
			if f.SubFlows == nil {
				f.SubFlows = make(map[string]float64)
			}
			f.SubFlows[strings.TrimSuffix(k, subFlowSuffix)] = value.Float()
		}
		return true
	})
	if bad != nil {
		return bad
	}
	if f.HistoricalUnavailable() {
		f.NetInflow = nil
		f.SubFlows = nil
	}
	return nil
}

// Breadth counts advancing, declining and limit-bound names market-wide.
type Breadth struct {
	LimitUp   int `json:"limit_up"`
	LimitDown int `json:"limit_down"`
	Total     int `json:"total"`
	Rising    int `json:"rising"`
	Falling   int `json:"falling"`
}

// Empty reports whether no count was populated, as with a bare "{}" block.
func (b Breadth) Empty() bool { return b == Breadth{} }

func (b Breadth) Validate() error {
	if b.LimitUp < 0 || b.LimitDown < 0 || b.Total < 0 || b.Rising < 0 || b.Falling < 0 {
		return errors.New("negative breadth count")
	}
	if b.Rising+b.Falling > b.Total {
		return fmt.Errorf("rising %d + falling %d exceeds total %d", b.Rising, b.Falling, b.Total)
	}
	return nil
}

// SectorMove is one sector board's move. Turnover is in 亿元.
type SectorMove struct {
	Name      string  `json:"name"`
	LastValue float64 `json:"last_value"`
	ChangePct float64 `json:"change_pct"`
	Turnover  float64 `json:"turnover"`
}

// UnmarshalJSON also accepts the legacy column names written by earlier tools.
// name and change_pct are required; every figure present must be numeric.
func (s *SectorMove) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return fmt.Errorf("%w: sector row is not valid JSON", ErrMalformedInput)
	}
	r := gjson.ParseBytes(b)
	if !r.IsObject() {
		return fmt.Errorf("%w: sector row is not an object", ErrMalformedInput)
	}
	pick := func(keys ...string) gjson.Result {
		for _, k := range keys {
			if v := r.Get(k); v.Exists() {
				return v
			}
		}
		return gjson.Result{}
	}
	name := pick("name", "板块名称")
	if name.Type != gjson.String || name.String() == "" {
		return fmt.Errorf("%w: sector row without name", ErrMalformedInput)
	}
	if !pick("change_pct", "涨跌幅").Exists() {
		return fmt.Errorf("%w: sector %s: change_pct is missing", ErrMalformedInput, name.String())
	}
	out := SectorMove{Name: name.String()}
	fields := []struct {
		name string
		v    gjson.Result
		dst  *float64
	}{
		{"last_value", pick("last_value", "最新价"), &out.LastValue},
		{"change_pct", pick("change_pct", "涨跌幅"), &out.ChangePct},
		{"turnover", pick("turnover", "成交额"), &out.Turnover},
	}
	for _, f := range fields {
		if !f.v.Exists() {
			continue
		}
		v, err := figure(f.v)
		if err != nil {
			return fmt.Errorf("%w: sector %s: %s %v", ErrMalformedInput, out.Name, f.name, err)
		}
		*f.dst = v
	}
	*s = out
	return nil
}

// figure reads a finite number, accepting numeric strings.
func figure(r gjson.Result) (float64, error) {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Float()
	case gjson.String:
		p, err := strconv.ParseFloat(strings.TrimSpace(r.String()), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", r.String())
		}
		v = p
	default:
		return 0, fmt.Errorf("is %s", r.Type)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("is not finite")
	}
	return v, nil
}

// SectorBoard holds TopRisers sorted by ChangePct descending and TopFallers
// sorted ascending.
type SectorBoard struct {
	TopRisers  []SectorMove `json:"top_risers"`
	TopFallers []SectorMove `json:"top_fallers"`
}

func (s SectorBoard) Empty() bool { return len(s.TopRisers) == 0 && len(s.TopFallers) == 0 }

// IndexSet is an insertion-ordered set of index quotes. It is persisted as a
// JSON object keyed by instrument id, in order.
type IndexSet []IndexQuote

func (s IndexSet) Get(id string) (IndexQuote, bool) {
	for _, q := range s {
		if q.ID == id {
			return q, true
		}
	}
	return IndexQuote{}, false
}

func (s IndexSet) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(s), func(i int) (string, any) { return s[i].ID, s[i] })
}

func (s *IndexSet) UnmarshalJSON(b []byte) error {
	*s = IndexSet{}
	return unmarshalOrdered(b, "indices", func(key string, raw []byte) error {
		if _, dup := s.Get(key); dup {
			return errors.New("duplicate id")
		}
		q := IndexQuote{ID: key}
		if err := json.Unmarshal(raw, &q); err != nil {
			return err
		}
		q.ID = key
		*s = append(*s, q)
		return nil
	})
}

// FundSet is an insertion-ordered set of fund channels keyed by channel id.
type FundSet []FundFlow

func (s FundSet) Get(id string) (FundFlow, bool) {
	for _, f := range s {
		if f.ID == id {
			return f, true
		}
	}
	return FundFlow{}, false
}

func (s FundSet) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(s), func(i int) (string, any) { return s[i].ID, s[i] })
}

func (s *FundSet) UnmarshalJSON(b []byte) error {
	*s = FundSet{}
	return unmarshalOrdered(b, "funds", func(key string, raw []byte) error {
		if _, dup := s.Get(key); dup {
			return errors.New("duplicate id")
		}
		f := FundFlow{ID: key}
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		f.ID = key
		*s = append(*s, f)
		return nil
	})
}

func marshalOrdered(n int, item func(i int) (string, any)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		key, v := item(i)
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// unmarshalOrdered walks a JSON object in document order. gjson keeps key
// order, which encoding/json maps do not.
func unmarshalOrdered(b []byte, what string, each func(key string, raw []byte) error) error {
	if !gjson.ValidBytes(b) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrMalformedInput, what)
	}
	r := gjson.ParseBytes(b)
	if r.Type == gjson.Null {
		return nil
	}
	if !r.IsObject() {
		return fmt.Errorf("%w: %s must be an object", ErrMalformedInput, what)
	}
	var err error
	r.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			err = fmt.Errorf("%w: %s.%s must be an object", ErrMalformedInput, what, key.String())
			return false
		}
		if e := each(key.String(), []byte(value.Raw)); e != nil {
			err = fmt.Errorf("%w: %s.%s: %v", ErrMalformedInput, what, key.String(), e)
			return false
		}
		return true
	})
	return err
}

// MarketSnapshot is the raw data pulled for one date. It is built once by the
// fetcher and treated as immutable afterwards.
type MarketSnapshot struct {
	Date    string       `json:"date"`
	Indices IndexSet     `json:"indices"`
	Funds   FundSet      `json:"funds"`
	Breadth *Breadth     `json:"statistics,omitempty"`
	Sectors *SectorBoard `json:"sectors,omitempty"`
	Error   *string      `json:"error"`
	Source  string       `json:"source,omitempty"`
	Missing []string     `json:"missing,omitempty"`
}

// FetchError returns the aggregate fetch error, or "".
func (s *MarketSnapshot) FetchError() string {
	if s == nil || s.Error == nil {
		return ""
	}
	return *s.Error
}

// Partial returns a *PartialDataError when some, but not all, instruments
// were missing.
func (s *MarketSnapshot) Partial() error {
	if s == nil || len(s.Missing) == 0 || len(s.Indices) == 0 {
		return nil
	}
	return &PartialDataError{Date: s.Date, Missing: append([]string(nil), s.Missing...)}
}

// HasBreadth reports whether the statistics block carries counts.
func (s *MarketSnapshot) HasBreadth() bool { return s.Breadth != nil && !s.Breadth.Empty() }

// HasSectors reports whether the sector board carries rows.
func (s *MarketSnapshot) HasSectors() bool { return s.Sectors != nil && !s.Sectors.Empty() }

// Validate checks a snapshot read back from storage.
func (s *MarketSnapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrMalformedInput)
	}
	if _, err := ParseDate(s.Date); err != nil {
		return err
	}
	for _, q := range s.Indices {
		if q.ID == "" {
			return fmt.Errorf("%w: index without id", ErrMalformedInput)
		}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("%w: index %s: %v", ErrMalformedInput, q.ID, err)
		}
	}
	if s.Breadth != nil {
		if err := s.Breadth.Validate(); err != nil {
			return fmt.Errorf("%w: statistics: %v", ErrMalformedInput, err)
		}
	}
	return nil
}
