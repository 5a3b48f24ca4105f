// Package merge folds worker artifacts into one url -> date -> count table
// and renders it as JSON.
package merge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dhartunian/urlcount/internal/artifact"
)

// Merger accumulates the counts of every artifact added to it. URLs keep
// the order in which they were first seen.
type Merger struct {
	log *slog.Logger

	urls   []string
	counts map[string]map[string]uint64
	dates  map[string]struct{}

	artifacts int
	total     uint64
}

func New(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		log:    logger,
		counts: make(map[string]map[string]uint64),
		dates:  make(map[string]struct{}),
	}
}

// Add folds in the artifact pair of one worker and then deletes both files.
// A corrupt artifact fails the merge; a failed delete is only logged.
func (m *Merger) Add(tablePath, dictPath string) error {
	dicts, err := artifact.ReadDictionaries(dictPath)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	tr, err := artifact.OpenTable(tablePath)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	err = m.fold(tr, dicts)
	tr.Close()
	if err != nil {
		return fmt.Errorf("merge: %s: %w", tablePath, err)
	}
	m.artifacts++

	for _, p := range []string{tablePath, dictPath} {
		if err := os.Remove(p); err != nil {
			m.log.Warn("could not remove artifact", "path", p, "err", err)
		}
	}
	return nil
}

type recordReader interface {
	Next() (artifact.Key, uint32, error)
}

func (m *Merger) fold(r recordReader, dicts artifact.Dictionaries) error {
	for _, d := range dicts.Dates {
		m.dates[d] = struct{}{}
	}
	// Table records come in map order; registering the URLs up front keeps
	// first-seen order tied to the input rather than to hashing.
	for _, u := range dicts.URLs {
		m.row(u)
	}

	for {
		k, c, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if int64(k.URL()) >= int64(len(dicts.URLs)) || int64(k.Date()) >= int64(len(dicts.Dates)) {
			return fmt.Errorf("%w: key (%d, %d) outside dictionaries of %d urls and %d dates",
				artifact.ErrCorrupt, k.URL(), k.Date(), len(dicts.URLs), len(dicts.Dates))
		}
		m.addCount(dicts.URLs[k.URL()], dicts.Dates[k.Date()], uint64(c))
	}
}

func (m *Merger) row(url string) map[string]uint64 {
	byDate, ok := m.counts[url]
	if !ok {
		byDate = make(map[string]uint64)
		m.counts[url] = byDate
		m.urls = append(m.urls, url)
	}
	return byDate
}

func (m *Merger) addCount(url, date string, c uint64) {
	m.row(url)[date] += c
	m.dates[date] = struct{}{}
	m.total += c
}

// Aggregate returns the merged counts. The map is owned by the Merger.
func (m *Merger) Aggregate() map[string]map[string]uint64 { return m.counts }

// URLs returns the distinct URLs in first-seen order.
func (m *Merger) URLs() []string { return m.urls }

// Artifacts is the number of artifact pairs folded in so far.
func (m *Merger) Artifacts() int { return m.artifacts }

// Total is the sum of all counts.
func (m *Merger) Total() uint64 { return m.total }
