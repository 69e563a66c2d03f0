// Command probe calls every configured source of one instrument on its own,
// bypassing the fallback chain, and prints each outcome as a JSON line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"marketpulse/internal/config"
	"marketpulse/internal/model"
	"marketpulse/internal/pipeline"
	"marketpulse/internal/provider"
)

type line struct {
	Target    string  `json:"target"`
	Source    string  `json:"source"`
	OK        bool    `json:"ok"`
	Reason    string  `json:"reason,omitempty"`
	Value     any     `json:"value,omitempty"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

func main() {
	var (
		cfgPath    string
		date       string
		instrument string
		extras     bool
	)
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json or config.yaml (optional)")
	flag.StringVar(&date, "date", model.FormatDate(time.Now()), "trading date, YYYY-MM-DD")
	flag.StringVar(&instrument, "instrument", "sh", "instrument id to probe")
	flag.BoolVar(&extras, "extras", false, "also probe fund, breadth and sector sources")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	day, err := model.ParseDate(date)
	if err != nil {
		log.Fatal(err)
	}
	srcs := pipeline.NewSources(pipeline.NewGetter(cfg.HTTP), time.Now)
	fc, err := srcs.FetcherConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec)*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	found := false
	for _, in := range fc.Instruments {
		if in.ID != instrument {
			continue
		}
		found = true
		probe(ctx, enc, in.ID, day, in.Sources)
	}
	if !found {
		log.Fatalf("instrument %q is not configured", instrument)
	}
	if extras {
		for _, ch := range fc.Funds {
			probe(ctx, enc, ch.ID, day, ch.Sources)
		}
		probe(ctx, enc, "breadth", day, fc.Breadth)
		probe(ctx, enc, "sectors", day, fc.Sectors)
	}
}

// probe fetches from every source in order, including the ones a chain would
// never reach, and writes one line per source.
func probe[T any](ctx context.Context, enc *json.Encoder, target string, day time.Time, sources []provider.Source[T]) {
	for _, s := range sources {
		start := time.Now()
		out := s.Fetch(ctx, day)
		l := line{
			Target:    target,
			Source:    s.Name(),
			OK:        out.OK(),
			Reason:    out.Reason,
			ElapsedMS: float64(time.Since(start).Microseconds()) / 1000,
		}
		if out.OK() {
			l.Value = out.Value
		}
		if err := enc.Encode(l); err != nil {
			log.Printf("write: %v", err)
			return
		}
	}
}
