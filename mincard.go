package dsk

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// MinimumCardinalityDataset is an immutable view of another dataset which
// leaves out rare features. A feature is dropped from an example when the
// wrapped dataset's feature map doesn't know it, or counts it fewer than
// MinCardinality times. Examples which end up with no features are dropped.
//
// The feature map is rebuilt separately from the wrapped feature map, keeping
// only features counted more than MinCardinality times. A feature counted
// exactly MinCardinality times therefore stays in examples but is missing from
// FeatureMap.
type MinimumCardinalityDataset struct {
	*ImmutableDataset

	wrapped            Dataset
	minCardinality     int
	removed            map[string]struct{}
	numExamplesRemoved int
}

// MinCardOption configures the construction of a MinimumCardinalityDataset.
type MinCardOption func(*minCardConfig)

type minCardConfig struct {
	log   Logger
	stats Statter
}

// OptLogger sets the logger which reports what was removed.
func OptLogger(l Logger) MinCardOption {
	return func(c *minCardConfig) {
		c.log = l
	}
}

// OptStatter sets the Statter which receives removal counts and build timing.
func OptStatter(s Statter) MinCardOption {
	return func(c *minCardConfig) {
		c.stats = s
	}
}

// filterResult is what a single pass over the wrapped examples produces.
type filterResult struct {
	examples           []*Example
	removed            map[string]struct{}
	numExamplesRemoved int
}

// NewMinimumCardinalityDataset reads every example of wrapped once and builds
// the filtered dataset. Any minCardinality is accepted. If a rebuilt example
// can't be constructed the whole construction fails and no dataset is
// returned.
func NewMinimumCardinalityDataset(wrapped Dataset, minCardinality int, opts ...MinCardOption) (*MinimumCardinalityDataset, error) {
	conf := &minCardConfig{
		log:   NopLogger{},
		stats: NopStatter{},
	}
	for _, opt := range opts {
		opt(conf)
	}
	start := time.Now()

	fm := wrapped.FeatureMap()
	res, err := filterExamples(wrapped, fm, minCardinality)
	if err != nil {
		return nil, errors.Wrap(err, "filtering examples")
	}

	kept := NewMutableFeatureMap()
	for _, info := range fm.Infos() {
		if info.Count() > minCardinality {
			kept.Put(info.Copy())
		}
	}

	d := &MinimumCardinalityDataset{
		ImmutableDataset: &ImmutableDataset{
			examples: res.examples,
			features: NewImmutableFeatureMap(kept),
			outputs:  wrapped.OutputIndex(),
		},
		wrapped:            wrapped,
		minCardinality:     minCardinality,
		removed:            res.removed,
		numExamplesRemoved: res.numExamplesRemoved,
	}
	d.provenance = NewMinimumCardinalityProvenance(d)

	for _, name := range d.Removed() {
		conf.log.Debugf("removed feature '%s' (min cardinality %d)", name, minCardinality)
	}
	conf.log.Printf("min cardinality %d: kept %d examples and %d features, removed %d examples and %d features",
		minCardinality, len(d.examples), d.features.Size(), d.numExamplesRemoved, len(d.removed))
	conf.stats.Count("mincard.features_removed", int64(len(d.removed)), 1)
	conf.stats.Count("mincard.examples_removed", int64(d.numExamplesRemoved), 1)
	conf.stats.Count("mincard.examples_kept", int64(len(d.examples)), 1)
	conf.stats.Timing("mincard.build_time", time.Since(start), 1)
	return d, nil
}

func filterExamples(wrapped Dataset, fm FeatureMap, minCardinality int) (filterResult, error) {
	res := filterResult{
		examples: make([]*Example, 0),
		removed:  make(map[string]struct{}),
	}
	err := wrapped.Each(func(ex *Example) error {
		features := make([]Feature, 0, ex.Size())
		for i := 0; i < ex.Size(); i++ {
			f := ex.Feature(i)
			info := fm.Get(f.Name)
			if info == nil || info.Count() < minCardinality {
				res.removed[f.Name] = struct{}{}
				continue
			}
			features = append(features, f)
		}
		if len(features) == 0 {
			res.numExamplesRemoved++
			return nil
		}
		rebuilt, err := NewExample(ex.Output(), ex.Weight(), features...)
		if err != nil {
			return err
		}
		res.examples = append(res.examples, rebuilt)
		return nil
	})
	return res, err
}

// Wrapped returns the dataset which was filtered.
func (d *MinimumCardinalityDataset) Wrapped() Dataset { return d.wrapped }

// MinCardinality returns the threshold the dataset was built with.
func (d *MinimumCardinalityDataset) MinCardinality() int { return d.minCardinality }

// NumExamplesRemoved returns the number of examples which were dropped because
// none of their features survived.
func (d *MinimumCardinalityDataset) NumExamplesRemoved() int { return d.numExamplesRemoved }

// Removed returns the sorted names of every feature which was dropped from at
// least one example.
func (d *MinimumCardinalityDataset) Removed() []string {
	ret := make([]string, 0, len(d.removed))
	for name := range d.removed {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// IsRemoved reports whether the named feature was dropped from any example.
func (d *MinimumCardinalityDataset) IsRemoved(name string) bool {
	_, ok := d.removed[name]
	return ok
}

// CardinalityProvenance returns the provenance with its concrete type.
func (d *MinimumCardinalityDataset) CardinalityProvenance() *MinimumCardinalityProvenance {
	return d.provenance.(*MinimumCardinalityProvenance)
}

const (
	minCardinalityClassName = "MinimumCardinalityDatasetProvenance"
	minCardinalityKey       = "min-cardinality"
)

// MinimumCardinalityProvenance records a MinimumCardinalityDataset: the
// provenance of the wrapped dataset, the size of the result and the threshold.
type MinimumCardinalityProvenance struct {
	DatasetProvenance
	minCardinality I
}

// NewMinimumCardinalityProvenance describes d.
func NewMinimumCardinalityProvenance(d *MinimumCardinalityDataset) *MinimumCardinalityProvenance {
	return &MinimumCardinalityProvenance{
		DatasetProvenance: *NewDatasetProvenance(d.wrapped.Provenance(), len(d.examples), d.features.Size(), d.outputs.Size()),
		minCardinality:    I(d.minCardinality),
	}
}

// RehydrateMinimumCardinalityProvenance rebuilds a
// MinimumCardinalityProvenance from its Record. The threshold must be stored
// as an I under "min-cardinality".
func RehydrateMinimumCardinalityProvenance(rec Record) (*MinimumCardinalityProvenance, error) {
	err := checkClassName(rec, minCardinalityClassName)
	if err != nil {
		return nil, err
	}
	dp, err := rehydrateDatasetFields(rec, minCardinalityClassName)
	if err != nil {
		return nil, err
	}
	p := &MinimumCardinalityProvenance{DatasetProvenance: *dp}
	if p.minCardinality, err = extractInt(rec, minCardinalityKey, minCardinalityClassName); err != nil {
		return nil, err
	}
	return p, nil
}

// ClassName implements Provenance.
func (p *MinimumCardinalityProvenance) ClassName() string { return minCardinalityClassName }

// Fields implements Provenance.
func (p *MinimumCardinalityProvenance) Fields() []Field {
	return append(p.DatasetProvenance.Fields(), Field{Key: minCardinalityKey, Value: p.minCardinality})
}

// MinCardinality returns the recorded threshold.
func (p *MinimumCardinalityProvenance) MinCardinality() int { return int(p.minCardinality) }

// Record returns the flattened form of p.
func (p *MinimumCardinalityProvenance) Record() Record { return Flatten(p) }

// Equal reports whether p and other capture the same fields.
func (p *MinimumCardinalityProvenance) Equal(other Provenance) bool { return EqualProvenance(p, other) }

// Hash returns a hash of the captured fields.
func (p *MinimumCardinalityProvenance) Hash() uint64 { return HashProvenance(p) }
