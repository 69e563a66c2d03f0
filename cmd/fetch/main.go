package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/config"
	"marketpulse/internal/logging"
	"marketpulse/internal/model"
	"marketpulse/internal/pipeline"
)

func main() { os.Exit(run()) }

func run() int {
	var (
		configPath string
		date       string
		refresh    bool
		stage      string
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json or config.yaml (optional)")
	flag.StringVar(&date, "date", model.FormatDate(time.Now()), "trading date, YYYY-MM-DD")
	flag.BoolVar(&refresh, "refresh", false, "ignore the snapshot cache and fetch again")
	flag.StringVar(&stage, "stage", "prepared", "output: snapshot, analysis or prepared")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Printf("logger: %v", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	p, err := pipeline.Build(cfg, time.Now, logger)
	if err != nil {
		logger.Error("build pipeline", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.RequestTimeoutSec)*time.Second)
	defer cancel()

	res, err := p.Run(ctx, date, refresh)
	return emit(os.Stdout, os.Stderr, stage, res, err)
}

// emit writes the requested stage of res to stdout and returns the exit
// code. A run without index data exits 1 with "no usable data".
func emit(stdout, stderr io.Writer, stage string, res *pipeline.Result, err error) int {
	switch {
	case errors.Is(err, model.ErrMissingCoreData):
		msg := "no usable data"
		if res != nil && res.Snapshot.FetchError() != "" {
			msg += ": " + res.Snapshot.FetchError()
		}
		fmt.Fprintln(stderr, msg)
		return 1
	case err != nil:
		fmt.Fprintln(stderr, err)
		return 1
	}

	if partial := res.Snapshot.Partial(); partial != nil {
		fmt.Fprintf(stderr, "caveat: no data for %s\n", strings.Join(res.Snapshot.Missing, ", "))
	}

	var out any
	switch stage {
	case "snapshot":
		out = res.Snapshot
	case "analysis":
		out = res.Analysis
	case "prepared", "":
		out = res.Report
	default:
		fmt.Fprintf(stderr, "unknown stage %q (want snapshot, analysis or prepared)\n", stage)
		return 2
	}
	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
