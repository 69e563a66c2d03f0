package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"marketpulse/internal/analysis"
	"marketpulse/internal/provider/csindex"
	"marketpulse/internal/provider/eastmoney"
	"marketpulse/internal/provider/sina"
	"marketpulse/internal/provider/tencent"
)

// EnvPrefix prefixes every environment override, e.g. MARKET_SERVER_PORT.
const EnvPrefix = "MARKET"

type HTTP struct {
	TimeoutSec           int `json:"timeout_sec" mapstructure:"timeout_sec" validate:"gte=0"`
	MinIntervalMS        int `json:"min_interval_ms" mapstructure:"min_interval_ms" validate:"gte=0"`
	MaxRequestsPerMinute int `json:"max_requests_per_minute" mapstructure:"max_requests_per_minute" validate:"gte=0"`
	Burst                int `json:"burst" mapstructure:"burst" validate:"gte=0"`
	CacheTTLSec          int `json:"cache_ttl_sec" mapstructure:"cache_ttl_sec" validate:"gte=0"`
	CacheMaxItems        int `json:"cache_max_items" mapstructure:"cache_max_items" validate:"gte=0"`
}

type Server struct {
	Port              string `json:"port" mapstructure:"port" validate:"required,numeric"`
	RequestTimeoutSec int    `json:"request_timeout_sec" mapstructure:"request_timeout_sec" validate:"gt=0"`
	// WarmSchedule is a five-field cron spec, in market time, on which the
	// server refetches the day's snapshot. Empty disables it.
	WarmSchedule string `json:"warm_schedule" mapstructure:"warm_schedule"`
}

type Store struct {
	SnapshotPath string `json:"snapshot_path" mapstructure:"snapshot_path" validate:"required"`
	AnalysisPath string `json:"analysis_path" mapstructure:"analysis_path" validate:"required"`
}

type Log struct {
	Level       string `json:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	Development bool   `json:"development" mapstructure:"development"`
}

// SourceRef names one upstream source. Symbol is in the upstream's own
// notation ("000001", "sh000001", "1.000001").
type SourceRef struct {
	Kind   string `json:"kind" mapstructure:"kind"`
	Symbol string `json:"symbol,omitempty" mapstructure:"symbol"`
}

type Instrument struct {
	ID      string      `json:"id" mapstructure:"id"`
	Name    string      `json:"name" mapstructure:"name"`
	Code    string      `json:"code" mapstructure:"code"`
	Sources []SourceRef `json:"sources" mapstructure:"sources"`
}

type FundChannel struct {
	ID      string      `json:"id" mapstructure:"id"`
	Name    string      `json:"name" mapstructure:"name"`
	Sources []SourceRef `json:"sources" mapstructure:"sources"`
}

type Breadth struct {
	Sources []SourceRef `json:"sources" mapstructure:"sources"`
}

type Sectors struct {
	Sources []SourceRef `json:"sources" mapstructure:"sources"`
	// Filter is the board filter passed to the sector source.
	Filter string `json:"filter" mapstructure:"filter"`
	Limit  int    `json:"limit" mapstructure:"limit" validate:"gte=0"`
}

type Analysis struct {
	FundChannel string `json:"fund_channel" mapstructure:"fund_channel"`
	// FundEpsilon is the |net inflow| under which a historical figure is
	// treated as no data.
	FundEpsilon     float64          `json:"fund_epsilon" mapstructure:"fund_epsilon" validate:"gte=0"`
	StrongChangePct float64          `json:"strong_change_pct" mapstructure:"strong_change_pct" validate:"gte=0"`
	HeavyVolume     float64          `json:"heavy_volume" mapstructure:"heavy_volume" validate:"gtefield=LightVolume"`
	LightVolume     float64          `json:"light_volume" mapstructure:"light_volume" validate:"gte=0"`
	TopSectors      int              `json:"top_sectors" mapstructure:"top_sectors" validate:"gte=0"`
	Styles          []analysis.Style `json:"styles" mapstructure:"styles"`
	StyleMinMatches int              `json:"style_min_matches" mapstructure:"style_min_matches"`
	StyleTopN       int              `json:"style_top_n" mapstructure:"style_top_n"`
	FallbackStyle   analysis.Style   `json:"fallback_style" mapstructure:"fallback_style"`
}

type Config struct {
	HTTP        HTTP          `json:"http" mapstructure:"http"`
	Server      Server        `json:"server" mapstructure:"server"`
	Store       Store         `json:"store" mapstructure:"store"`
	Log         Log           `json:"log" mapstructure:"log"`
	Instruments []Instrument  `json:"instruments" mapstructure:"instruments"`
	Funds       []FundChannel `json:"funds" mapstructure:"funds"`
	Breadth     Breadth       `json:"breadth" mapstructure:"breadth"`
	Sectors     Sectors       `json:"sectors" mapstructure:"sectors"`
	Analysis    Analysis      `json:"analysis" mapstructure:"analysis"`
}

func Default() Config {
	return Config{
		HTTP: HTTP{
			TimeoutSec:    10,
			MinIntervalMS: 300,
			Burst:         1,
			CacheTTLSec:   60,
			CacheMaxItems: 256,
		},
		Server: Server{Port: "8080", RequestTimeoutSec: 60, WarmSchedule: "35 15 * * 1-5"},
		Store: Store{
			SnapshotPath: "/tmp/market_data_cache.json",
			AnalysisPath: "/tmp/market_analysis_cache.json",
		},
		Log: Log{Level: "info"},
		Instruments: []Instrument{
			{ID: "sh", Name: "上证指数", Code: "000001.SH", Sources: []SourceRef{
				{Kind: csindex.Kind, Symbol: "000001"},
				{Kind: tencent.Kind, Symbol: "sh000001"},
				{Kind: eastmoney.KindKline, Symbol: "1.000001"},
				{Kind: sina.Kind, Symbol: "sh000001"},
				{Kind: eastmoney.KindLive, Symbol: "1.000001"},
			}},
			{ID: "sz", Name: "深证成指", Code: "399001.SZ", Sources: []SourceRef{
				{Kind: tencent.Kind, Symbol: "sz399001"},
				{Kind: eastmoney.KindKline, Symbol: "0.399001"},
				{Kind: eastmoney.KindLive, Symbol: "0.399001"},
			}},
			{ID: "cyb", Name: "创业板指", Code: "399006.SZ", Sources: []SourceRef{
				{Kind: tencent.Kind, Symbol: "sz399006"},
				{Kind: eastmoney.KindKline, Symbol: "0.399006"},
				{Kind: eastmoney.KindLive, Symbol: "0.399006"},
			}},
		},
		Funds: []FundChannel{
			{ID: "north", Name: "北向资金", Sources: []SourceRef{{Kind: eastmoney.KindNorthbound}}},
		},
		Breadth: Breadth{Sources: []SourceRef{{Kind: eastmoney.KindBreadth}}},
		Sectors: Sectors{
			Sources: []SourceRef{{Kind: eastmoney.KindSectors}},
			Filter:  eastmoney.IndustryBoards,
			Limit:   5,
		},
		Analysis: Analysis{
			FundChannel:     "north",
			FundEpsilon:     0.01,
			StrongChangePct: 0.5,
			HeavyVolume:     10000,
			LightVolume:     5000,
			TopSectors:      5,
			Styles: []analysis.Style{
				{ID: "tech-growth", Label: "科技成长", Keywords: []string{"人工智能", "半导体", "云计算", "大数据", "5G", "芯片"}},
				{ID: "value-defensive", Label: "价值稳健", Keywords: []string{"白酒", "医药", "家电", "食品", "零售"}},
				{ID: "cyclical-rotation", Label: "周期轮动", Keywords: []string{"钢铁", "煤炭", "有色", "化工", "建材"}},
			},
			StyleMinMatches: 2,
			StyleTopN:       3,
			FallbackStyle:   analysis.Style{ID: "balanced", Label: "均衡"},
		},
	}
}

// Load reads configuration from path, JSON or YAML by extension. If path is
// empty, ./config.json is used when present. A missing file leaves defaults.
// MARKET_* environment variables override any key, e.g.
// MARKET_STORE_SNAPSHOT_PATH; PORT is honored for the server port.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	def, err := json.Marshal(Default())
	if err != nil {
		return Config{}, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(def)); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		} else if err == nil {
			v.SetConfigFile(path)
			v.SetConfigType(configType(path))
			if err := v.MergeInConfig(); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

var (
	quoteKinds = map[string]bool{
		csindex.Kind:        true,
		tencent.Kind:        true,
		sina.Kind:           true,
		eastmoney.KindKline: true,
		eastmoney.KindLive:  true,
	}
	fundKinds    = map[string]bool{eastmoney.KindNorthbound: true}
	breadthKinds = map[string]bool{eastmoney.KindBreadth: true}
	sectorKinds  = map[string]bool{eastmoney.KindSectors: true}
)

var validate = newValidator()

// newValidator reports fields by their config key rather than the Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate rejects configurations the pipeline cannot run.
func (c Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			return err
		}
		for _, fe := range fields {
			errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.ActualTag(), fe.Value()))
		}
	}
	if c.Server.WarmSchedule != "" {
		if _, err := cron.ParseStandard(c.Server.WarmSchedule); err != nil {
			errs = append(errs, fmt.Errorf("server.warm_schedule: %w", err))
		}
	}
	if len(c.Instruments) == 0 {
		errs = append(errs, errors.New("no instruments configured"))
	}
	seen := map[string]bool{}
	for i, in := range c.Instruments {
		if in.ID == "" {
			errs = append(errs, fmt.Errorf("instruments[%d]: empty id", i))
			continue
		}
		if seen[in.ID] {
			errs = append(errs, fmt.Errorf("instruments[%d]: duplicate id %q", i, in.ID))
		}
		seen[in.ID] = true
		errs = append(errs, checkSources("instrument "+in.ID, in.Sources, quoteKinds, true)...)
	}
	funds := map[string]bool{}
	for i, f := range c.Funds {
		if f.ID == "" || funds[f.ID] {
			errs = append(errs, fmt.Errorf("funds[%d]: empty or duplicate id %q", i, f.ID))
		}
		funds[f.ID] = true
		errs = append(errs, checkSources("fund "+f.ID, f.Sources, fundKinds, false)...)
	}
	errs = append(errs, checkSources("breadth", c.Breadth.Sources, breadthKinds, false)...)
	errs = append(errs, checkSources("sectors", c.Sectors.Sources, sectorKinds, false)...)
	if c.Analysis.FundChannel != "" && len(c.Funds) > 0 && !funds[c.Analysis.FundChannel] {
		errs = append(errs, fmt.Errorf("analysis.fund_channel %q is not a configured fund", c.Analysis.FundChannel))
	}
	for i, s := range c.Analysis.Styles {
		if s.ID == "" || len(s.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("analysis.styles[%d]: id and keywords are required", i))
		}
	}
	return errors.Join(errs...)
}

func checkSources(owner string, refs []SourceRef, kinds map[string]bool, needSymbol bool) []error {
	var errs []error
	for i, r := range refs {
		if !kinds[r.Kind] {
			errs = append(errs, fmt.Errorf("%s: sources[%d]: unknown kind %q", owner, i, r.Kind))
		}
		if needSymbol && r.Symbol == "" {
			errs = append(errs, fmt.Errorf("%s: sources[%d]: symbol is required", owner, i))
		}
	}
	return errs
}

// AnalyzerConfig converts the analysis section for analysis.New.
func (c Config) AnalyzerConfig() analysis.Config {
	return analysis.Config{
		Tracked:     len(c.Instruments),
		FundChannel: c.Analysis.FundChannel,
		Styles: analysis.Taxonomy{
			Styles:     c.Analysis.Styles,
			MinMatches: c.Analysis.StyleMinMatches,
			TopN:       c.Analysis.StyleTopN,
			Fallback:   c.Analysis.FallbackStyle,
		},
	}
}
