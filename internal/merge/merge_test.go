package merge

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dhartunian/urlcount/internal/artifact"
)

type workerOutput struct {
	urls  []string
	dates []string
	table map[artifact.Key]uint32
}

// write stores w as an artifact pair under dir and returns the paths.
func (w workerOutput) write(t *testing.T, dir string, i int) (string, string) {
	t.Helper()
	tbl := filepath.Join(dir, fmt.Sprintf("w%d.bin", i))
	dic := filepath.Join(dir, fmt.Sprintf("w%d.dict", i))
	if err := artifact.WriteTable(tbl, artifact.DateBits(len(w.dates)), w.table); err != nil {
		t.Fatal(err)
	}
	if err := artifact.WriteDictionaries(dic, artifact.Dictionaries{URLs: w.urls, Dates: w.dates}); err != nil {
		t.Fatal(err)
	}
	return tbl, dic
}

var workers = []workerOutput{
	{
		urls:  []string{"/a", "/b"},
		dates: []string{"2023-01-01", "2023-01-02"},
		table: map[artifact.Key]uint32{
			artifact.MakeKey(0, 0): 2,
			artifact.MakeKey(1, 1): 1,
		},
	},
	{
		urls:  []string{"/c", "/a"},
		dates: []string{"2023-12-01", "2023-01-02"},
		table: map[artifact.Key]uint32{
			artifact.MakeKey(0, 0): 5,
			artifact.MakeKey(1, 1): 3,
			artifact.MakeKey(1, 0): 1,
		},
	},
	{
		urls:  []string{"/b"},
		dates: []string{"2022-06-30"},
		table: map[artifact.Key]uint32{
			artifact.MakeKey(0, 0): 7,
		},
	},
}

func mergeInOrder(t *testing.T, order []int, opts Options) (*Merger, string) {
	t.Helper()
	dir := t.TempDir()
	m := New(nil)
	for _, i := range order {
		tbl, dic := workers[i].write(t, dir, i)
		if err := m.Add(tbl, dic); err != nil {
			t.Fatal(err)
		}
	}
	var out bytes.Buffer
	if err := m.WriteJSON(&out, opts); err != nil {
		t.Fatal(err)
	}
	return m, out.String()
}

func TestMerge(t *testing.T) {
	m, out := mergeInOrder(t, []int{0, 1, 2}, Options{})

	want := map[string]map[string]uint64{
		"/a": {"2023-01-01": 2, "2023-01-02": 3, "2023-12-01": 1},
		"/b": {"2023-01-02": 1, "2022-06-30": 7},
		"/c": {"2023-12-01": 5},
	}
	if !reflect.DeepEqual(m.Aggregate(), want) {
		t.Errorf("aggregate = %v, want %v", m.Aggregate(), want)
	}
	if m.Total() != 19 {
		t.Errorf("Total = %d, want 19", m.Total())
	}
	if got, want := m.Dates(), []string{"2022-06-30", "2023-01-01", "2023-01-02", "2023-12-01"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Dates = %v, want %v", got, want)
	}

	wantJSON := `{
    "\/a": {
        "2023-01-01": 2,
        "2023-01-02": 3,
        "2023-12-01": 1
    },
    "\/b": {
        "2022-06-30": 7,
        "2023-01-02": 1
    },
    "\/c": {
        "2023-12-01": 5
    }
}`
	if out != wantJSON {
		t.Errorf("json:\n%s\nwant:\n%s", out, wantJSON)
	}
}

func TestMergeConsumesArtifacts(t *testing.T) {
	dir := t.TempDir()
	tbl, dic := workers[0].write(t, dir, 0)
	m := New(nil)
	if err := m.Add(tbl, dic); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{tbl, dic} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still exists: %v", p, err)
		}
	}
	if m.Artifacts() != 1 {
		t.Errorf("Artifacts = %d", m.Artifacts())
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {2, 0, 1}}
	base, baseJSON := mergeInOrder(t, orders[0], Options{SortURLs: true})
	for _, order := range orders[1:] {
		m, out := mergeInOrder(t, order, Options{SortURLs: true})
		if !reflect.DeepEqual(m.Aggregate(), base.Aggregate()) {
			t.Errorf("order %v: aggregate differs", order)
		}
		if out != baseJSON {
			t.Errorf("order %v: json differs:\n%s", order, out)
		}
	}
}

func TestMergeKeepsFirstSeenURLOrder(t *testing.T) {
	m, _ := mergeInOrder(t, []int{1, 0}, Options{})
	if got, want := m.URLs(), []string{"/c", "/a", "/b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("URLs = %v, want %v", got, want)
	}
}

func TestMergeRejectsOutOfRangeKey(t *testing.T) {
	dir := t.TempDir()
	bad := workerOutput{
		urls:  []string{"/a"},
		dates: []string{"2023-01-01", "2023-01-02"},
		table: map[artifact.Key]uint32{artifact.MakeKey(3, 0): 1},
	}
	tbl, dic := bad.write(t, dir, 0)
	if err := New(nil).Add(tbl, dic); !errors.Is(err, artifact.ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestMergeMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	_, dic := workers[0].write(t, dir, 0)
	if err := New(nil).Add(filepath.Join(dir, "nope.bin"), dic); err == nil {
		t.Error("Add succeeded without a table file")
	}
}

func TestWriteJSONOmitsZeroCounts(t *testing.T) {
	m := New(nil)
	m.addCount("/x", "2023-01-01", 3)
	m.counts["/x"]["2023-01-02"] = 0
	m.dates["2023-01-02"] = struct{}{}

	var out bytes.Buffer
	if err := m.WriteJSON(&out, Options{}); err != nil {
		t.Fatal(err)
	}
	want := "{\n    \"\\/x\": {\n        \"2023-01-01\": 3\n    }\n}"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := New(nil).WriteJSON(&out, Options{}); err != nil {
		t.Fatal(err)
	}
	if out.String() != "{\n}" {
		t.Errorf("got %q", out.String())
	}
}

func TestAppendString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/foo/bar", `"\/foo\/bar"`},
		{`say "hi"`, `"say \"hi\""`},
		{`back\slash`, `"back\\slash"`},
		{"tab\there", `"tab\there"`},
		{"\x01", `"\u0001"`},
		{"café", "\"café\""},
		{"bad\xffbyte", `"bad�byte"`},
	}
	for _, tt := range tests {
		if got := string(appendString(nil, tt.in)); got != tt.want {
			t.Errorf("appendString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
