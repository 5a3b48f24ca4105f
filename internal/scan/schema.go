// Package scan extracts the URL and date fields from one log line using a
// fixed positional layout.
package scan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Offset is a byte position within a line. Non-negative values count from
// the start of the line, negative values from its end (so -15 is
// len(line)-15). The line never includes its newline.
type Offset int

// EndOfLine is an Offset that resolves to len(line).
const EndOfLine Offset = 1<<31 - 1

func (o Offset) resolve(n int) int {
	switch {
	case o == EndOfLine:
		return n
	case o < 0:
		return max(n+int(o), 0)
	default:
		return min(int(o), n)
	}
}

func (o Offset) String() string {
	if o == EndOfLine {
		return ""
	}
	return strconv.Itoa(int(o))
}

// Field is the half-open range [Start, End) of one value within a line.
type Field struct {
	Start, End Offset
}

// Slice returns the field's bytes within line. Offsets falling outside the
// line are clamped, and a range that ends before it starts is empty.
func (f Field) Slice(line []byte) []byte {
	s, e := f.Start.resolve(len(line)), f.End.resolve(len(line))
	if s >= e {
		return line[s:s]
	}
	return line[s:e]
}

// minLen is the shortest line for which neither offset is clamped and the
// range is not inverted.
func (f Field) minLen() int {
	need := func(o Offset) int {
		switch {
		case o == EndOfLine:
			return 0
		case o < 0:
			return int(-o)
		default:
			return int(o)
		}
	}
	n := max(need(f.Start), need(f.End))
	// A start counted from the front and an end counted from the back only
	// stay ordered once the line is long enough to hold both.
	if f.Start >= 0 && f.End < 0 && f.End != EndOfLine {
		n = max(n, int(f.Start)-int(f.End))
	}
	return n
}

func (f Field) String() string {
	return f.Start.String() + ":" + f.End.String()
}

// Schema says where the URL and the date live in a line.
type Schema struct {
	URL  Field
	Date Field
}

// Default is the layout of lines such as
//
//	https://stitcher.io/blog/some-post,2024-01-24T01:16:58+00:00
//
// The 19 byte host prefix is dropped from the URL and the date is the first
// 10 bytes of the 25 byte timestamp.
var Default = Schema{
	URL:  Field{Start: 19, End: -26},
	Date: Field{Start: -25, End: -15},
}

// Extract returns the URL and date of line. The returned slices alias line.
func (s Schema) Extract(line []byte) (url, date []byte) {
	return s.URL.Slice(line), s.Date.Slice(line)
}

// MinLineLen is the shortest line both fields can be read from without
// clamping.
func (s Schema) MinLineLen() int {
	return max(s.URL.minLen(), s.Date.minLen())
}

func (s Schema) String() string {
	return "url=" + s.URL.String() + ",date=" + s.Date.String()
}

// ErrSchema is returned for a malformed schema description.
var ErrSchema = errors.New("invalid schema")

// ParseSchema parses the form produced by Schema.String, for example
// "url=19:-26,date=-25:-15". An empty bound means the start or the end of
// the line. Fields left out keep their Default value.
func ParseSchema(text string) (Schema, error) {
	s := Default
	if strings.TrimSpace(text) == "" {
		return s, nil
	}
	for _, part := range strings.Split(text, ",") {
		name, spec, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return Schema{}, fmt.Errorf("%w: %q is not name=start:end", ErrSchema, part)
		}
		f, err := parseField(spec)
		if err != nil {
			return Schema{}, fmt.Errorf("%w: field %s: %v", ErrSchema, name, err)
		}
		switch name {
		case "url":
			s.URL = f
		case "date":
			s.Date = f
		default:
			return Schema{}, fmt.Errorf("%w: unknown field %q", ErrSchema, name)
		}
	}
	return s, nil
}

func parseField(spec string) (Field, error) {
	lo, hi, ok := strings.Cut(spec, ":")
	if !ok {
		return Field{}, fmt.Errorf("missing ':' in %q", spec)
	}
	var f Field
	var err error
	if f.Start, err = parseOffset(lo, 0); err != nil {
		return Field{}, err
	}
	if f.End, err = parseOffset(hi, EndOfLine); err != nil {
		return Field{}, err
	}
	return f, nil
}

func parseOffset(s string, empty Offset) (Offset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return empty, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v >= int(EndOfLine) || v <= -int(EndOfLine) {
		return 0, fmt.Errorf("offset %d out of range", v)
	}
	return Offset(v), nil
}
