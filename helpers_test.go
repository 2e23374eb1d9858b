package dsk_test

import (
	"io"
	"testing"

	"github.com/pilosa/dsk"
)

func f(name string, value float64) dsk.Feature {
	return dsk.Feature{Name: name, Value: value}
}

func mustExample(t *testing.T, output string, features ...dsk.Feature) *dsk.Example {
	t.Helper()
	ex, err := dsk.NewExample(dsk.Label(output), 1, features...)
	if err != nil {
		t.Fatalf("building example: %v", err)
	}
	return ex
}

func mustDataset(t *testing.T, examples ...*dsk.Example) *dsk.MutableDataset {
	t.Helper()
	d := dsk.NewMutableDataset(dsk.NewDataSourceProvenance("test examples", "memory"))
	for _, ex := range examples {
		if err := d.Add(ex); err != nil {
			t.Fatalf("adding example: %v", err)
		}
	}
	return d
}

// staticDataset is a Dataset whose feature statistics are set independently
// of its examples, like a dataset read with statistics from elsewhere.
type staticDataset struct {
	examples []*dsk.Example
	features *dsk.MutableFeatureMap
	outputs  *dsk.LabelIndex
}

func newStaticDataset(counts map[string]int, examples ...*dsk.Example) *staticDataset {
	d := &staticDataset{
		examples: examples,
		features: dsk.NewMutableFeatureMap(),
		outputs:  dsk.NewLabelIndex(),
	}
	for _, ex := range examples {
		d.outputs.Observe(ex.Output())
	}
	for name, count := range counts {
		info := dsk.NewRealInfo(name)
		for i := 0; i < count; i++ {
			info.Observe(1)
		}
		d.features.Put(info)
	}
	return d
}

func (d *staticDataset) Each(fn func(ex *dsk.Example) error) error {
	for _, ex := range d.examples {
		if err := fn(ex); err != nil {
			return err
		}
	}
	return nil
}

func (d *staticDataset) FeatureMap() dsk.FeatureMap   { return d.features }
func (d *staticDataset) OutputIndex() dsk.OutputIndex { return d.outputs }
func (d *staticDataset) Provenance() dsk.Provenance {
	return dsk.NewDataSourceProvenance("static", "memory")
}

// sliceSource is a dsk.Source over a fixed set of examples.
type sliceSource struct {
	examples []*dsk.Example
	errs     []error
	i        int
}

func (s *sliceSource) Record() (*dsk.Example, error) {
	if s.i >= len(s.examples) {
		return nil, io.EOF
	}
	s.i++
	if s.errs != nil && s.errs[s.i-1] != nil {
		return nil, s.errs[s.i-1]
	}
	return s.examples[s.i-1], nil
}
