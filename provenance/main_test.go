package provenance_test

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pilosa/dsk"
	"github.com/pilosa/dsk/boltdb"
	"github.com/pilosa/dsk/provenance"
	"github.com/pilosa/dsk/test"
	"github.com/pkg/errors"
)

func setup(t *testing.T) (string, *dsk.MinimumCardinalityDataset) {
	t.Helper()
	d := dsk.NewMutableDataset(dsk.NewDataSourceProvenance("provenance test", "memory"))
	for _, names := range [][]string{{"a", "b"}, {"a"}} {
		features := make([]dsk.Feature, len(names))
		for i, name := range names {
			features[i] = dsk.Feature{Name: name, Value: 1}
		}
		ex, err := dsk.NewExample(dsk.Label("x"), 1, features...)
		test.ErrNil(t, err, "building example")
		test.ErrNil(t, d.Add(ex), "adding example")
	}
	filtered, err := dsk.NewMinimumCardinalityDataset(d, 2)
	test.ErrNil(t, err, "filtering")

	path := filepath.Join(t.TempDir(), "provenance.db")
	store, err := boltdb.Open(path)
	test.ErrNil(t, err, "opening store")
	test.ErrNil(t, store.Put("first", filtered.Provenance()), "putting first")
	test.ErrNil(t, store.Put("second", d.Provenance()), "putting second")
	test.ErrNil(t, store.Close(), "closing store")
	return path, filtered
}

func TestProvenanceMain(t *testing.T) {
	path, filtered := setup(t)

	t.Run("list", func(t *testing.T) {
		m := provenance.NewMain()
		m.ProvenanceDB = path
		out := &bytes.Buffer{}
		m.SetOutput(out)
		test.ErrNil(t, m.Run(), "listing")
		test.MustBe(t, out.String(), "first\nsecond\n")
	})

	t.Run("flat", func(t *testing.T) {
		m := provenance.NewMain()
		m.ProvenanceDB = path
		m.Name = "first"
		m.Flat = true
		out := &bytes.Buffer{}
		m.SetOutput(out)
		test.ErrNil(t, m.Run(), "showing")
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		exp := []string{
			"class-name\txsd:string\tMinimumCardinalityDatasetProvenance",
			"source.class-name\txsd:string\tDatasetProvenance",
		}
		if diff := cmp.Diff(exp, lines[:2]); diff != "" {
			t.Errorf("unexpected first lines (-want +got):\n%s", diff)
		}
		if lines[len(lines)-2] != "min-cardinality\txsd:int\t2" {
			t.Errorf("expected min-cardinality second to last, got %q", lines[len(lines)-2])
		}
		hash := filtered.CardinalityProvenance().Hash()
		test.MustBe(t, lines[len(lines)-1], fmt.Sprintf("hash\t%016x", hash))
	})

	t.Run("json", func(t *testing.T) {
		m := provenance.NewMain()
		m.ProvenanceDB = path
		m.Name = "first"
		out := &bytes.Buffer{}
		m.SetOutput(out)
		test.ErrNil(t, m.Run(), "showing")
		var rec dsk.Record
		test.ErrNil(t, rec.UnmarshalJSON(out.Bytes()), "decoding output")
		if !rec.Equal(filtered.Provenance().(*dsk.MinimumCardinalityProvenance).Record()) {
			t.Errorf("printed record differs from stored provenance: %s", out.String())
		}
	})

	t.Run("missing", func(t *testing.T) {
		m := provenance.NewMain()
		m.ProvenanceDB = path
		m.Name = "third"
		m.SetOutput(&bytes.Buffer{})
		err := m.Run()
		if errors.Cause(err) != boltdb.ErrNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}
