package dsk

import (
	"io"

	"github.com/pkg/errors"
)

// Source is the interface for getting examples one at a time. Record returns
// io.EOF once the source is exhausted. Implementations of Source should be
// thread safe.
type Source interface {
	Record() (*Example, error)
}

// NamedReadCloser is an io.ReadCloser which knows the name of what it reads,
// such as a file path or an object key.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
}

// RawSource yields a stream of readers. NextReader returns io.EOF when there
// are no more.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}

// LoadOption configures Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	log         Logger
	stats       Statter
	maxExamples int
	skipBad     bool
}

// OptLoadLogger sets the logger used by Load.
func OptLoadLogger(l Logger) LoadOption {
	return func(c *loadConfig) {
		c.log = l
	}
}

// OptLoadStatter sets the Statter which counts loaded and skipped examples.
func OptLoadStatter(s Statter) LoadOption {
	return func(c *loadConfig) {
		c.stats = s
	}
}

// OptMaxExamples stops Load after n examples. Zero means no limit.
func OptMaxExamples(n int) LoadOption {
	return func(c *loadConfig) {
		c.maxExamples = n
	}
}

// OptSkipBad makes Load log and skip records the source fails to decode
// instead of returning the error. Errors whose cause is io.EOF always end the
// load.
func OptSkipBad(skip bool) LoadOption {
	return func(c *loadConfig) {
		c.skipBad = skip
	}
}

// Load reads src until it returns io.EOF and adds every example to a new
// MutableDataset described by prov.
func Load(src Source, prov *DataSourceProvenance, opts ...LoadOption) (*MutableDataset, error) {
	conf := &loadConfig{
		log:   NopLogger{},
		stats: NopStatter{},
	}
	for _, opt := range opts {
		opt(conf)
	}
	if prov == nil {
		return nil, errors.New("loading without a data source provenance")
	}
	d := NewMutableDataset(prov)
	for conf.maxExamples == 0 || d.Len() < conf.maxExamples {
		ex, err := src.Record()
		if errors.Cause(err) == io.EOF {
			break
		} else if err != nil {
			if !conf.skipBad {
				return nil, errors.Wrapf(err, "getting record %d", d.Len())
			}
			conf.log.Printf("couldn't get record after %d examples, err: %v", d.Len(), err)
			conf.stats.Count("load.skipped", 1, 1)
			continue
		}
		if err := d.Add(ex); err != nil {
			return nil, errors.Wrap(err, "adding example")
		}
		conf.stats.Count("load.examples", 1, 1)
	}
	conf.log.Printf("loaded %d examples with %d features from %s", d.Len(), d.features.Size(), prov.Location())
	return d, nil
}
