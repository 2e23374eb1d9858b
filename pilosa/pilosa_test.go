package pilosa

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pilosa/dsk"
	gopilosa "github.com/pilosa/go-pilosa"
)

func mustDataset(t *testing.T, examples [][]string) *dsk.MutableDataset {
	t.Helper()
	d := dsk.NewMutableDataset(dsk.NewDataSourceProvenance("pilosa test", "memory"))
	for i, names := range examples {
		features := make([]dsk.Feature, len(names))
		for j, name := range names {
			features[j] = dsk.Feature{Name: name, Value: 1}
		}
		output := "even"
		if i%2 == 1 {
			output = "odd"
		}
		ex, err := dsk.NewExample(dsk.Label(output), 1, features...)
		if err != nil {
			t.Fatalf("building example: %v", err)
		}
		if err := d.Add(ex); err != nil {
			t.Fatalf("adding example: %v", err)
		}
	}
	return d
}

func TestColumns(t *testing.T) {
	// a:3 b:2 c:1
	src := mustDataset(t, [][]string{{"a", "b"}, {"a", "c"}, {"a", "b"}})

	tests := []struct {
		name        string
		min         int
		expFeatures []gopilosa.Record
		expOutputs  []gopilosa.Record
		expSkipped  int
	}{
		{
			name: "min1",
			min:  1,
			// c is counted once, which is enough to stay in its example but
			// not enough for an id.
			expFeatures: []gopilosa.Record{
				gopilosa.Column{RowID: 0, ColumnID: 0},
				gopilosa.Column{RowID: 1, ColumnID: 0},
				gopilosa.Column{RowID: 0, ColumnID: 1},
				gopilosa.Column{RowID: 0, ColumnID: 2},
				gopilosa.Column{RowID: 1, ColumnID: 2},
			},
			expOutputs: []gopilosa.Record{
				gopilosa.Column{RowKey: "even", ColumnID: 0},
				gopilosa.Column{RowKey: "odd", ColumnID: 1},
				gopilosa.Column{RowKey: "even", ColumnID: 2},
			},
			expSkipped: 1,
		},
		{
			name: "boundary",
			min:  2,
			// b is counted exactly twice so it is kept in examples without
			// an id in the feature map.
			expFeatures: []gopilosa.Record{
				gopilosa.Column{RowID: 0, ColumnID: 0},
				gopilosa.Column{RowID: 0, ColumnID: 1},
				gopilosa.Column{RowID: 0, ColumnID: 2},
			},
			expOutputs: []gopilosa.Record{
				gopilosa.Column{RowKey: "even", ColumnID: 0},
				gopilosa.Column{RowKey: "odd", ColumnID: 1},
				gopilosa.Column{RowKey: "even", ColumnID: 2},
			},
			expSkipped: 2,
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			d, err := dsk.NewMinimumCardinalityDataset(src, tst.min)
			if err != nil {
				t.Fatalf("filtering: %v", err)
			}
			features, outputs, skipped, err := Columns(d)
			if err != nil {
				t.Fatalf("building columns: %v", err)
			}
			if diff := cmp.Diff(tst.expFeatures, features); diff != "" {
				t.Errorf("features mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tst.expOutputs, outputs); diff != "" {
				t.Errorf("outputs mismatch (-want +got):\n%s", diff)
			}
			if skipped != tst.expSkipped {
				t.Errorf("expected %d skipped, got %d", tst.expSkipped, skipped)
			}
		})
	}
}

func TestRecordIterator(t *testing.T) {
	it := newRecordIterator([]gopilosa.Record{gopilosa.Column{RowID: 1, ColumnID: 2}})
	rec, err := it.NextRecord()
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if rec != (gopilosa.Column{RowID: 1, ColumnID: 2}) {
		t.Errorf("unexpected record %#v", rec)
	}
	if _, err := it.NextRecord(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestSchema(t *testing.T) {
	schema, features, output := Schema("mincard", 10)
	if features.Name() != FeaturesField || output.Name() != OutputField {
		t.Fatalf("unexpected fields %s, %s", features.Name(), output.Name())
	}
	idx, ok := schema.Indexes()["mincard"]
	if !ok {
		t.Fatalf("index missing from schema")
	}
	if n := len(idx.Fields()); n != 2 {
		t.Errorf("expected 2 fields, got %d", n)
	}
}

func TestExport(t *testing.T) {
	hosts := os.Getenv("DSK_TEST_PILOSA_HOSTS")
	if hosts == "" {
		t.Skip("DSK_TEST_PILOSA_HOSTS not set")
	}
	src := mustDataset(t, [][]string{{"a", "b"}, {"a", "c"}, {"a", "b"}})
	d, err := dsk.NewMinimumCardinalityDataset(src, 1)
	if err != nil {
		t.Fatalf("filtering: %v", err)
	}
	e := NewExporter(strings.Split(hosts, ","), "dsktest")
	n, err := e.Export(d)
	if err != nil {
		t.Fatalf("exporting: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 columns, got %d", n)
	}
}
