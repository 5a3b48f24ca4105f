/*
Generates a synthetic access log in the default urlcount layout, for
benchmarks and manual end-to-end checks.
*/

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"
)

const host = "https://stitcher.io"

func main() {
	var (
		out   = flag.String("o", "-", "output file, - for stdout")
		lines = flag.Int("lines", 1_000_000, "number of lines")
		paths = flag.Int("paths", 250, "number of distinct URL paths")
		days  = flag.Int("days", 365, "number of distinct days")
		seed  = flag.Int64("seed", 1, "random seed")
	)
	flag.Parse()

	if *paths < 1 || *days < 1 || *lines < 0 {
		fmt.Fprintln(os.Stderr, "paths and days must be positive, lines non-negative")
		os.Exit(2)
	}

	w := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			slog.Error("failed to create output", "path", *out, "err", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	start := time.Now()
	if err := generate(w, *lines, *paths, *days, *seed); err != nil {
		slog.Error("generate failed", "err", err)
		os.Exit(1)
	}
	slog.Info("generated", "lines", *lines, "elapsed", time.Since(start))
}

func generate(f *os.File, lines, paths, days int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	w := bufio.NewWriterSize(f, 1<<20)

	urls := make([]string, paths)
	for i := range urls {
		urls[i] = fmt.Sprintf("/blog/post-%d-%x", i, rng.Uint32())
	}
	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	buf := make([]byte, 0, 256)
	for range lines {
		ts := base.Add(time.Duration(rng.Intn(days*86400)) * time.Second)
		buf = append(buf[:0], host...)
		buf = append(buf, urls[rng.Intn(paths)]...)
		buf = append(buf, ',')
		buf = ts.AppendFormat(buf, "2006-01-02T15:04:05-07:00")
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}
