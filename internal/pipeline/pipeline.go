// Package pipeline runs a whole count: split the input, scan the ranges in
// parallel, merge the worker artifacts and write the JSON report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dhartunian/urlcount/internal/aggregate"
	"github.com/dhartunian/urlcount/internal/config"
	"github.com/dhartunian/urlcount/internal/merge"
	"github.com/dhartunian/urlcount/internal/segment"
)

// Summary describes a finished run.
type Summary struct {
	Bytes         int64
	Records       int64
	URLs          int
	Dates         int
	TrailingBytes int64
	Elapsed       time.Duration
	Workers       []aggregate.Stats
}

// Run counts cfg.Input into cfg.Output. The output file only appears once
// it is complete; on failure any previous file at that path is left alone.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	schema, err := cfg.ParsedSchema()
	if err != nil {
		return Summary{}, err
	}

	size, ranges, err := split(cfg.Input, cfg.Workers)
	if err != nil {
		return Summary{}, err
	}
	logger.Info("split input", "path", cfg.Input, "bytes", size, "workers", len(ranges))

	runDir := filepath.Join(cfg.TempDir, "urlcount-"+uuid.NewString())
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return Summary{}, fmt.Errorf("create run dir: %w", err)
	}
	ok := false
	defer func() {
		if ok || !cfg.KeepArtifacts {
			os.RemoveAll(runDir)
		} else {
			logger.Info("kept artifacts of failed run", "dir", runDir)
		}
	}()

	jobs := make([]aggregate.Job, len(ranges))
	for i, r := range ranges {
		jobs[i] = aggregate.Job{
			Index:     i,
			Input:     cfg.Input,
			Range:     r,
			Schema:    schema,
			ChunkSize: cfg.ChunkSize,
			TablePath: filepath.Join(runDir, fmt.Sprintf("d_%d.bin", i)),
			DictPath:  filepath.Join(runDir, fmt.Sprintf("m_%d.dict", i)),
		}
	}

	stats := make([]aggregate.Stats, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			st, err := aggregate.Run(gctx, job)
			if err != nil {
				return err
			}
			stats[i] = st
			logger.Debug("worker done", "worker", i, "range", st.Range.String(),
				"records", st.Records, "urls", st.URLs, "dates", st.Dates)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	sum := Summary{Bytes: size, Workers: stats}
	for _, st := range stats {
		sum.Records += st.Records
		sum.TrailingBytes += st.TrailingBytes
	}
	if sum.TrailingBytes > 0 {
		logger.Warn("ignored unterminated last line", "bytes", sum.TrailingBytes)
	}

	// Index order, not completion order, so URL order is reproducible.
	m := merge.New(logger)
	for _, job := range jobs {
		if err := m.Add(job.TablePath, job.DictPath); err != nil {
			return Summary{}, err
		}
	}
	if m.Total() != uint64(sum.Records) {
		return Summary{}, fmt.Errorf("merged %d records but workers counted %d", m.Total(), sum.Records)
	}
	sum.URLs = len(m.URLs())
	sum.Dates = len(m.Dates())

	if err := writeOutput(cfg.Output, m, merge.Options{SortURLs: cfg.SortURLs}); err != nil {
		return Summary{}, err
	}
	ok = true
	sum.Elapsed = time.Since(start)
	return sum, nil
}

func split(path string, n int) (int64, []segment.ByteRange, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, nil, fmt.Errorf("stat input: %w", err)
	}
	if fi.IsDir() {
		return 0, nil, fmt.Errorf("input %s is a directory", path)
	}
	ranges, err := segment.Split(f, fi.Size(), n)
	if err != nil {
		return 0, nil, err
	}
	return fi.Size(), ranges, nil
}

// writeOutput renders m into a temp file next to path and renames it into
// place once it is synced.
func writeOutput(path string, m *merge.Merger, opts merge.Options) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = m.WriteJSON(tmp, opts); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
