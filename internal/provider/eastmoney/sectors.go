package eastmoney

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/model"
	"marketpulse/internal/provider"
)

// IndustryBoards is the clist filter for East Money industry boards.
const IndustryBoards = "m:90+t:2"

// Sectors reads the top risers and fallers among sector boards.
type Sectors struct {
	// Filter is the clist fs parameter, IndustryBoards by default.
	Filter string
	Limit  int
	c      *Client
}

func (c *Client) Sectors(filter string, limit int) *Sectors {
	if filter == "" {
		filter = IndustryBoards
	}
	if limit <= 0 {
		limit = 5
	}
	return &Sectors{Filter: filter, Limit: limit, c: c}
}

func (s *Sectors) Name() string { return KindSectors }

func (s *Sectors) Fetch(ctx context.Context, day time.Time) provider.Outcome[model.SectorBoard] {
	if reason := provider.LiveOnly(s.c.Now, day); reason != "" {
		return provider.Unavailable[model.SectorBoard](KindSectors, "%s", reason)
	}
	risers, err := s.page(ctx, true)
	if err != nil {
		return provider.Unavailable[model.SectorBoard](KindSectors, "risers: %v", err)
	}
	fallers, err := s.page(ctx, false)
	if err != nil {
		return provider.Unavailable[model.SectorBoard](KindSectors, "fallers: %v", err)
	}
	sort.SliceStable(risers, func(i, j int) bool { return risers[i].ChangePct > risers[j].ChangePct })
	sort.SliceStable(fallers, func(i, j int) bool { return fallers[i].ChangePct < fallers[j].ChangePct })
	return provider.Found(KindSectors, model.SectorBoard{TopRisers: risers, TopFallers: fallers})
}

// page requests one clist page sorted by f3, descending when desc is set.
// Rows with halted (non-numeric) fields are skipped.
func (s *Sectors) page(ctx context.Context, desc bool) ([]model.SectorMove, error) {
	q := url.Values{}
	q.Set("pn", "1")
	q.Set("pz", strconv.Itoa(s.Limit))
	q.Set("po", map[bool]string{true: "1", false: "0"}[desc])
	q.Set("np", "1")
	q.Set("fltt", "2")
	q.Set("invt", "2")
	q.Set("fid", "f3")
	q.Set("fs", s.Filter)
	q.Set("fields", "f2,f3,f6,f12,f14")

	doc, err := s.c.getJSON(ctx, s.c.QuoteHost, "/api/qt/clist/get", q)
	if err != nil {
		return nil, err
	}
	var out []model.SectorMove
	doc.Get("data.diff").ForEach(func(_, r gjson.Result) bool {
		name := r.Get("f14").String()
		v, bad := provider.Numbers(r, "f2", "f3", "f6")
		if name == "" || bad != "" {
			return true
		}
		out = append(out, model.SectorMove{
			Name:      name,
			LastValue: v[0],
			ChangePct: v[1],
			Turnover:  provider.ToYi(v[2], provider.YuanPerYi),
		})
		return len(out) < s.Limit
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable board rows")
	}
	return out, nil
}
