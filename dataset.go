package dsk

import (
	"github.com/pkg/errors"
)

// Dataset is the read-only view of a collection of examples which
// transformations in this package consume. Implementations should be safe for
// concurrent reads if datasets are to be transformed concurrently (see Sweep).
type Dataset interface {
	// Each calls fn on every example in a stable order, stopping at (and
	// returning) the first error fn returns.
	Each(fn func(ex *Example) error) error

	// FeatureMap returns the statistics of the features in the dataset.
	FeatureMap() FeatureMap

	// OutputIndex returns the index of outputs observed by the dataset.
	OutputIndex() OutputIndex

	// Provenance describes how the dataset was produced.
	Provenance() Provenance
}

// MutableDataset is a Dataset which examples can be added to. Adding an
// example updates the dataset's feature statistics and output index. Adding is
// not threadsafe; reads are safe once adding has finished.
type MutableDataset struct {
	source   Provenance
	examples []*Example
	features *MutableFeatureMap
	outputs  *LabelIndex
}

// NewMutableDataset returns an empty dataset whose examples come from the
// described source.
func NewMutableDataset(source Provenance) *MutableDataset {
	return &MutableDataset{
		source:   source,
		examples: make([]*Example, 0),
		features: NewMutableFeatureMap(),
		outputs:  NewLabelIndex(),
	}
}

// Add appends ex to the dataset.
func (d *MutableDataset) Add(ex *Example) error {
	for _, f := range ex.features {
		if err := d.features.Observe(f); err != nil {
			return errors.Wrapf(err, "observing example %d", len(d.examples))
		}
	}
	d.outputs.Observe(ex.Output())
	d.examples = append(d.examples, ex)
	return nil
}

// Len returns the number of examples.
func (d *MutableDataset) Len() int { return len(d.examples) }

// Each implements Dataset.
func (d *MutableDataset) Each(fn func(ex *Example) error) error {
	return eachExample(d.examples, fn)
}

// FeatureMap implements Dataset.
func (d *MutableDataset) FeatureMap() FeatureMap { return d.features }

// OutputIndex implements Dataset.
func (d *MutableDataset) OutputIndex() OutputIndex { return d.outputs }

// Provenance implements Dataset. It reflects the examples added so far.
func (d *MutableDataset) Provenance() Provenance {
	return NewDatasetProvenance(d.source, len(d.examples), d.features.Size(), d.outputs.Size())
}

// ImmutableDataset is a Dataset which can't be changed after it is built. Its
// feature map assigns every feature a stable id.
type ImmutableDataset struct {
	examples   []*Example
	features   *ImmutableFeatureMap
	outputs    OutputIndex
	provenance Provenance
}

// NewImmutableDataset snapshots src. The examples are shared (examples are
// immutable), the feature statistics are copied and the output index is
// referenced.
func NewImmutableDataset(src Dataset) (*ImmutableDataset, error) {
	examples := make([]*Example, 0)
	err := src.Each(func(ex *Example) error {
		examples = append(examples, ex)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading source examples")
	}
	d := &ImmutableDataset{
		examples: examples,
		features: NewImmutableFeatureMap(src.FeatureMap()),
		outputs:  src.OutputIndex(),
	}
	d.provenance = NewDatasetProvenance(src.Provenance(), len(d.examples), d.features.Size(), d.outputs.Size())
	return d, nil
}

// Len returns the number of examples.
func (d *ImmutableDataset) Len() int { return len(d.examples) }

// Example returns the i'th example.
func (d *ImmutableDataset) Example(i int) *Example { return d.examples[i] }

// Examples returns the examples in order. The slice is a copy.
func (d *ImmutableDataset) Examples() []*Example {
	ret := make([]*Example, len(d.examples))
	copy(ret, d.examples)
	return ret
}

// Each implements Dataset.
func (d *ImmutableDataset) Each(fn func(ex *Example) error) error {
	return eachExample(d.examples, fn)
}

// FeatureMap implements Dataset.
func (d *ImmutableDataset) FeatureMap() FeatureMap { return d.features }

// FeatureIndex returns the feature map with its id lookups.
func (d *ImmutableDataset) FeatureIndex() *ImmutableFeatureMap { return d.features }

// OutputIndex implements Dataset.
func (d *ImmutableDataset) OutputIndex() OutputIndex { return d.outputs }

// Provenance implements Dataset.
func (d *ImmutableDataset) Provenance() Provenance { return d.provenance }

func eachExample(examples []*Example, fn func(ex *Example) error) error {
	for _, ex := range examples {
		if err := fn(ex); err != nil {
			return err
		}
	}
	return nil
}
