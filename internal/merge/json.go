package merge

import (
	"bufio"
	"io"
	"slices"
	"strconv"
	"unicode/utf8"

	"golang.org/x/exp/maps"
)

// Options controls rendering.
type Options struct {
	// SortURLs orders URLs by byte value instead of first appearance, which
	// makes the output independent of the order artifacts were added in.
	SortURLs bool
}

// Dates returns every date seen in any artifact, oldest first. Dates are
// YYYY-MM-DD so string order is calendar order.
func (m *Merger) Dates() []string {
	dates := maps.Keys(m.dates)
	slices.Sort(dates)
	return dates
}

// WriteJSON renders the merged counts:
//
//	{
//	    "\/a": {
//	        "2023-01-01": 2
//	    }
//	}
//
// Dates with no hits for a URL are left out.
func (m *Merger) WriteJSON(w io.Writer, opts Options) error {
	dates := m.Dates()
	urls := m.urls
	if opts.SortURLs {
		urls = slices.Clone(urls)
		slices.Sort(urls)
	}

	bw := bufio.NewWriterSize(w, 1<<20)
	buf := make([]byte, 0, 4096)

	bw.WriteByte('{')
	for i, url := range urls {
		buf = buf[:0]
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, "\n    "...)
		buf = appendString(buf, url)
		buf = append(buf, ": {"...)

		byDate := m.counts[url]
		first := true
		for _, d := range dates {
			c := byDate[d]
			if c == 0 {
				continue
			}
			if first {
				buf = append(buf, '\n')
				first = false
			} else {
				buf = append(buf, ",\n"...)
			}
			buf = append(buf, "        "...)
			buf = appendString(buf, d)
			buf = append(buf, ": "...)
			buf = strconv.AppendUint(buf, c, 10)
		}
		buf = append(buf, "\n    }"...)

		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	bw.WriteString("\n}")
	return bw.Flush()
}

const hex = "0123456789abcdef"

// appendString appends s as a quoted JSON string. Forward slashes are
// escaped as \/ and invalid UTF-8 becomes U+FFFD.
func appendString(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\' || c == '/':
				b = append(b, '\\', c)
			case c == '\n':
				b = append(b, '\\', 'n')
			case c == '\r':
				b = append(b, '\\', 'r')
			case c == '\t':
				b = append(b, '\\', 't')
			case c < 0x20:
				b = append(b, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xF])
			default:
				b = append(b, c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b = append(b, `�`...)
		} else {
			b = append(b, s[i:i+size]...)
		}
		i += size
	}
	return append(b, '"')
}
