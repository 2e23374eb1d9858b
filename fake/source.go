// Package fake generates synthetic examples. Feature names and outputs are
// drawn from Zipf distributions so that a generated dataset has the long tail
// of rare features that minimum cardinality filtering is for.
package fake

import (
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pilosa/dsk"
	"github.com/pilosa/dsk/fake/gen"
	"github.com/pkg/errors"
)

// Source is a dsk.Source which generates random examples. It is safe for
// concurrent use.
type Source struct {
	max uint64
	n   *uint64

	mu          sync.Mutex
	g           *gen.Generator
	vocabulary  int
	maxFeatures int
	outputs     int
}

// SourceOption configures a Source.
type SourceOption func(s *Source)

// OptVocabulary sets the number of distinct feature names.
func OptVocabulary(n int) SourceOption {
	return func(s *Source) {
		s.vocabulary = n
	}
}

// OptMaxFeatures sets the most features an example can have.
func OptMaxFeatures(n int) SourceOption {
	return func(s *Source) {
		s.maxFeatures = n
	}
}

// OptOutputs sets the number of distinct outputs.
func OptOutputs(n int) SourceOption {
	return func(s *Source) {
		s.outputs = n
	}
}

// NewSource creates a new Source which generates max examples (0 means no
// limit) using the given random seed. Using the same seed should give the same
// series of examples on a given version of Go.
func NewSource(seed int64, max uint64, opts ...SourceOption) *Source {
	if max == 0 {
		max = math.MaxUint64
	}
	var n uint64
	s := &Source{
		max:         max,
		n:           &n,
		g:           gen.NewGenerator(seed),
		vocabulary:  1000,
		maxFeatures: 10,
		outputs:     4,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxFeatures > s.vocabulary {
		s.maxFeatures = s.vocabulary
	}
	return s
}

// Location describes the source for provenance.
func (s *Source) Location() string {
	return fmt.Sprintf("fake://?vocabulary=%d&max-features=%d&outputs=%d", s.vocabulary, s.maxFeatures, s.outputs)
}

// Record implements dsk.Source and returns a randomly generated example with
// between 1 and the maximum number of features, each with a value in [0, 1).
func (s *Source) Record() (*dsk.Example, error) {
	next := atomic.AddUint64(s.n, 1)
	if next > s.max {
		return nil, io.EOF
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 1 + s.g.Intn(s.maxFeatures)
	features := make([]dsk.Feature, 0, n)
	seen := make(map[string]struct{}, n)
	for len(features) < n {
		name := s.g.String(8, s.vocabulary)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		features = append(features, dsk.Feature{Name: name, Value: s.g.Float64()})
	}
	output := dsk.Label(fmt.Sprintf("class%d", s.g.Uint64(s.outputs)))
	ex, err := dsk.NewExample(output, 1, features...)
	return ex, errors.Wrapf(err, "generating example %d", next-1)
}
