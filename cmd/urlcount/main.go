package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/dhartunian/urlcount/internal/config"
	"github.com/dhartunian/urlcount/internal/pipeline"
)

func main() {
	var (
		configPath    = flag.String("config", "", "JSON config file; flags override its values")
		workers       = flag.Int("workers", 0, "number of parallel workers (default 4)")
		chunk         = flag.Int("chunk", 0, "read chunk size in bytes (default 1MiB)")
		tmpDir        = flag.String("tmp", "", "directory for intermediate artifacts (default /dev/shm or the system temp dir)")
		schema        = flag.String("schema", "", "field offsets, e.g. url=19:-26,date=-25:-15")
		sortURLs      = flag.Bool("sort-urls", false, "order URLs by value instead of first appearance")
		keepArtifacts = flag.Bool("keep-artifacts", false, "keep intermediate files when a run fails")
		verbose       = flag.Bool("v", false, "log per-worker details")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input> <output>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Error("failed to load config", "path", *configPath, "err", err)
			os.Exit(1)
		}
	}

	switch flag.NArg() {
	case 2:
		cfg.Input, cfg.Output = flag.Arg(0), flag.Arg(1)
	case 0:
		// both paths from the config file
	default:
		flag.Usage()
		os.Exit(2)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workers
		case "chunk":
			cfg.ChunkSize = *chunk
		case "tmp":
			cfg.TempDir = *tmpDir
		case "schema":
			cfg.Schema = *schema
		case "sort-urls":
			cfg.SortURLs = *sortURLs
		case "keep-artifacts":
			cfg.KeepArtifacts = *keepArtifacts
		}
	})
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, err := pipeline.Run(ctx, cfg, logger)
	if err != nil {
		logger.Error("run failed", "err", err)
		stop()
		os.Exit(1)
	}

	logger.Info("complete",
		"output", cfg.Output,
		"bytes", sum.Bytes,
		"records", sum.Records,
		"urls", sum.URLs,
		"dates", sum.Dates,
		"elapsed", sum.Elapsed,
	)
}
