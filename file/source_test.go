package file

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pilosa/dsk"
)

func mustFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	fname := filepath.Join(dir, name)
	err := os.WriteFile(fname, []byte(contents), 0644)
	if err != nil {
		t.Fatalf("writing %s: %v", fname, err)
	}
	return fname
}

func TestRawSource(t *testing.T) {
	d := t.TempDir()
	mustFile(t, d, "b.json", `hahahahahahahaha`)
	mustFile(t, d, "a.json", `blah blah blah`)
	if err := os.Mkdir(filepath.Join(d, "sub"), 0755); err != nil {
		t.Fatalf("making subdirectory: %v", err)
	}

	rs, err := NewRawSource(d)
	if err != nil {
		t.Fatalf("getting raw source: %v", err)
	}

	gotNames := make([]string, 0, 2)
	var reader dsk.NamedReadCloser
	for reader, err = rs.NextReader(); err == nil; reader, err = rs.NextReader() {
		gotNames = append(gotNames, reader.Name())
		if _, err := io.ReadAll(reader); err != nil {
			t.Fatalf("reading file: %v", err)
		}
		reader.Close()
	}
	if !reflect.DeepEqual(gotNames, []string{"a.json", "b.json"}) {
		t.Fatalf("different file names: %v", gotNames)
	}
	if err != io.EOF {
		t.Fatalf("unexpected NextReader error: %v", err)
	}

	if _, err := NewRawSource(filepath.Join(d, "missing")); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestSource(t *testing.T) {
	d := t.TempDir()
	mustFile(t, d, "1.json", `
{"output": "x", "features": [{"name": "a", "value": 44}]}
{"output": "y", "features": [{"name": "a", "value": 39}, {"name": "b", "value": 1}]}
`)
	mustFile(t, d, "2.json", `
{"output": "x", "weight": 2, "features": [{"name": "b", "value": 81}]}
`)

	s, err := NewSource(d)
	if err != nil {
		t.Fatalf("getting source: %v", err)
	}
	ds, err := dsk.Load(s, dsk.NewDataSourceProvenance("files", d))
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("wrong number of examples: %d", ds.Len())
	}
	if c := ds.FeatureMap().Get("a").Count(); c != 2 {
		t.Fatalf("wrong count for a: %d", c)
	}
	var weights []float64
	_ = ds.Each(func(ex *dsk.Example) error {
		weights = append(weights, ex.Weight())
		return nil
	})
	if !reflect.DeepEqual(weights, []float64{1, 1, 2}) {
		t.Fatalf("unexpected weights: %v", weights)
	}
}
