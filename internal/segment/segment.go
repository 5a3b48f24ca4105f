// Package segment splits an input file into line-aligned byte ranges, one
// per worker.
package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// probeSize is how much is read at a time while looking for the newline
// that ends a boundary line.
const probeSize = 4096

// ByteRange is the half-open range [Start, End) of the input.
type ByteRange struct {
	Start, End int64
}

// Len returns the number of bytes in the range.
func (r ByteRange) Len() int64 { return r.End - r.Start }

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Split divides the first size bytes of r into n contiguous ranges. Every
// inner boundary sits right after a newline, so no line is shared by two
// ranges. When the file is short or has long lines some ranges come out
// empty; that is not an error.
func Split(r io.ReaderAt, size int64, n int) ([]ByteRange, error) {
	if n < 1 {
		return nil, fmt.Errorf("segment: need at least one range, got %d", n)
	}
	if size < 0 {
		return nil, fmt.Errorf("segment: negative size %d", size)
	}

	step := size / int64(n)
	bounds := make([]int64, n+1)
	bounds[n] = size

	buf := make([]byte, probeSize)
	for i := 1; i < n; i++ {
		b, err := nextLineStart(r, buf, int64(i)*step, size)
		if err != nil {
			return nil, err
		}
		bounds[i] = max(b, bounds[i-1])
	}

	ranges := make([]ByteRange, n)
	for i := range ranges {
		ranges[i] = ByteRange{Start: bounds[i], End: bounds[i+1]}
	}
	return ranges, nil
}

// nextLineStart returns the offset just past the first newline at or after
// off, or size when there is none.
func nextLineStart(r io.ReaderAt, buf []byte, off, size int64) (int64, error) {
	for off < size {
		chunk := buf[:min(int64(len(buf)), size-off)]
		n, err := r.ReadAt(chunk, off)
		if i := bytes.IndexByte(chunk[:n], '\n'); i >= 0 {
			return off + int64(i) + 1, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("segment: read at %d: %w", off, err)
		}
		if n == 0 {
			break
		}
		off += int64(n)
	}
	return size, nil
}
