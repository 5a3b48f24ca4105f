// Package aggregate runs one worker: it counts the (url, date) pairs of a
// byte range and stores the counts as artifacts for the merge step.
package aggregate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dhartunian/urlcount/internal/artifact"
	"github.com/dhartunian/urlcount/internal/dict"
	"github.com/dhartunian/urlcount/internal/scan"
	"github.com/dhartunian/urlcount/internal/segment"
)

// DefaultChunkSize is how much of the range is read per call.
const DefaultChunkSize = 1 << 20

var errCountOverflow = errors.New("aggregate: count overflows 32 bits")

// Segment is the in-memory result of scanning one range.
type Segment struct {
	URLs  *dict.Dictionary
	Dates *dict.Dictionary
	Table map[artifact.Key]uint32

	Records int64
	Bytes   int64
	// TrailingBytes is the length of a final line with no newline. It is
	// not counted as a record.
	TrailingBytes int64
}

func newSegment() *Segment {
	return &Segment{
		URLs:  dict.New(),
		Dates: dict.New(),
		Table: make(map[artifact.Key]uint32),
	}
}

func (s *Segment) add(schema scan.Schema, line []byte) error {
	url, date := schema.Extract(line)
	k := artifact.MakeKey(s.URLs.Intern(url), s.Dates.Intern(date))
	c := s.Table[k]
	if c == math.MaxUint32 {
		return errCountOverflow
	}
	s.Table[k] = c + 1
	s.Records++
	return nil
}

// Scan counts every newline-terminated line read from r. Lines longer than
// chunkSize grow the carry-over buffer rather than failing.
func Scan(ctx context.Context, r io.Reader, schema scan.Schema, chunkSize int) (*Segment, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	seg := newSegment()
	buf := make([]byte, chunkSize)
	start := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if start == len(buf) {
			grown := make([]byte, 2*len(buf))
			copy(grown, buf)
			buf = grown
		}

		n, err := r.Read(buf[start:])
		seg.Bytes += int64(n)
		chunk := buf[:start+n]

		if last := bytes.LastIndexByte(chunk, '\n'); last >= 0 {
			lines := chunk[:last+1]
			for len(lines) > 0 {
				i := bytes.IndexByte(lines, '\n')
				if aerr := seg.add(schema, lines[:i]); aerr != nil {
					return nil, aerr
				}
				lines = lines[i+1:]
			}
			start = copy(buf, chunk[last+1:])
		} else {
			start = len(chunk)
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	seg.TrailingBytes = int64(start)
	return seg, nil
}

// Job is the work of one worker.
type Job struct {
	Index     int
	Input     string
	Range     segment.ByteRange
	Schema    scan.Schema
	ChunkSize int
	TablePath string
	DictPath  string
}

// Stats describes a finished job.
type Stats struct {
	Index         int
	Range         segment.ByteRange
	Records       int64
	URLs          int
	Dates         int
	Keys          int
	TrailingBytes int64
}

// Run scans the job's range of the input and writes its table and
// dictionary artifacts. Any error leaves the artifacts unusable and must
// fail the whole run.
func Run(ctx context.Context, job Job) (Stats, error) {
	seg, err := scanRange(ctx, job)
	if err != nil {
		return Stats{}, fmt.Errorf("worker %d %v: %w", job.Index, job.Range, err)
	}

	st := Stats{
		Index:         job.Index,
		Range:         job.Range,
		Records:       seg.Records,
		URLs:          seg.URLs.Len(),
		Dates:         seg.Dates.Len(),
		Keys:          len(seg.Table),
		TrailingBytes: seg.TrailingBytes,
	}
	if err := artifact.CheckCapacity(st.URLs, st.Dates); err != nil {
		return st, fmt.Errorf("worker %d %v: %w", job.Index, job.Range, err)
	}
	if err := artifact.WriteTable(job.TablePath, artifact.DateBits(st.Dates), seg.Table); err != nil {
		return st, fmt.Errorf("worker %d: write table: %w", job.Index, err)
	}
	dicts := artifact.Dictionaries{URLs: seg.URLs.Values(), Dates: seg.Dates.Values()}
	if err := artifact.WriteDictionaries(job.DictPath, dicts); err != nil {
		return st, fmt.Errorf("worker %d: write dictionaries: %w", job.Index, err)
	}
	return st, nil
}

func scanRange(ctx context.Context, job Job) (*Segment, error) {
	f, err := os.Open(job.Input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	adviseSequential(f, job.Range.Start, job.Range.Len())
	return Scan(ctx, io.NewSectionReader(f, job.Range.Start, job.Range.Len()), job.Schema, job.ChunkSize)
}
