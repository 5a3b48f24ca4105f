package scan

import (
	"errors"
	"testing"
)

func TestExtractDefault(t *testing.T) {
	tests := []struct {
		line string
		url  string
		date string
	}{
		{"https://stitcher.io/blog/some-post,2024-01-24T01:16:58+00:00", "/blog/some-post", "2024-01-24"},
		{"https://stitcher.io/a,2023-01-01T00:00:00+00:00", "/a", "2023-01-01"},
		{"https://stitcher.io/,2023-12-31T23:59:59+00:00", "/", "2023-12-31"},
	}
	for _, tt := range tests {
		url, date := Default.Extract([]byte(tt.line))
		if string(url) != tt.url {
			t.Errorf("%q: url = %q, want %q", tt.line, url, tt.url)
		}
		if string(date) != tt.date {
			t.Errorf("%q: date = %q, want %q", tt.line, date, tt.date)
		}
	}
}

func TestExtractShortLineDoesNotPanic(t *testing.T) {
	for _, line := range []string{"", "x", "https://stitcher.io", "2023-01-01T00:00:00+00:00", "0123456789012345678901234567890123456789"} {
		url, date := Default.Extract([]byte(line))
		if len(url) > len(line) || len(date) > len(line) {
			t.Errorf("%q: fields longer than line", line)
		}
	}
	url, _ := Default.Extract([]byte("short"))
	if len(url) != 0 {
		t.Errorf("url of short line = %q, want empty", url)
	}
}

func TestMinLineLen(t *testing.T) {
	if got := Default.MinLineLen(); got != 45 {
		t.Errorf("MinLineLen = %d, want 45", got)
	}
	s := Schema{URL: Field{0, EndOfLine}, Date: Field{0, 10}}
	if got := s.MinLineLen(); got != 10 {
		t.Errorf("MinLineLen = %d, want 10", got)
	}
}

func TestParseSchema(t *testing.T) {
	tests := []struct {
		in   string
		want Schema
	}{
		{"", Default},
		{Default.String(), Default},
		{"url=19:-26,date=-25:-15", Default},
		{"date=0:10", Schema{URL: Default.URL, Date: Field{0, 10}}},
		{"url=11:, date=0:10", Schema{URL: Field{11, EndOfLine}, Date: Field{0, 10}}},
	}
	for _, tt := range tests {
		got, err := ParseSchema(tt.in)
		if err != nil {
			t.Errorf("ParseSchema(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSchema(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSchemaErrors(t *testing.T) {
	for _, in := range []string{"url", "url=19", "host=0:5", "url=a:b", "date=0:99999999999"} {
		if _, err := ParseSchema(in); !errors.Is(err, ErrSchema) {
			t.Errorf("ParseSchema(%q) err = %v, want ErrSchema", in, err)
		}
	}
}

func TestCustomSchema(t *testing.T) {
	s, err := ParseSchema("date=0:10,url=11:")
	if err != nil {
		t.Fatal(err)
	}
	url, date := s.Extract([]byte("2023-05-06 /index.html"))
	if string(url) != "/index.html" || string(date) != "2023-05-06" {
		t.Errorf("got (%q, %q)", url, date)
	}
}
