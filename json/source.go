package json

import (
	"encoding/json"
	"io"

	"github.com/pilosa/dsk"
	"github.com/pkg/errors"
)

// ExampleJSON is the encoding of a single example. Weight defaults to 1 when
// it is left out.
type ExampleJSON struct {
	Output   string        `json:"output"`
	Weight   *float64      `json:"weight,omitempty"`
	Features []FeatureJSON `json:"features"`
}

// FeatureJSON is the encoding of a single feature.
type FeatureJSON struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Example converts e into a dsk.Example.
func (e ExampleJSON) Example() (*dsk.Example, error) {
	weight := 1.0
	if e.Weight != nil {
		weight = *e.Weight
	}
	features := make([]dsk.Feature, len(e.Features))
	for i, f := range e.Features {
		features[i] = dsk.Feature{Name: f.Name, Value: f.Value}
	}
	return dsk.NewExample(dsk.Label(e.Output), weight, features...)
}

// FromExample encodes ex.
func FromExample(ex *dsk.Example) ExampleJSON {
	weight := ex.Weight()
	ret := ExampleJSON{
		Output:   ex.Output().String(),
		Weight:   &weight,
		Features: make([]FeatureJSON, ex.Size()),
	}
	for i := 0; i < ex.Size(); i++ {
		f := ex.Feature(i)
		ret.Features[i] = FeatureJSON{Name: f.Name, Value: f.Value}
	}
	return ret
}

// DecodeExample decodes a single json encoded example.
func DecodeExample(data []byte) (*dsk.Example, error) {
	var ej ExampleJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return nil, errors.Wrap(err, "decoding example")
	}
	return ej.Example()
}

// Source is a dsk.Source for reading a stream of json encoded examples. A
// value of the wrong shape is reported and skipped, but malformed json ends
// the stream after the error is returned.
type Source struct {
	dec    *json.Decoder
	n      int
	broken bool
}

// NewSource gets a new json source which will decode from the given reader.
func NewSource(r io.Reader) *Source {
	return &Source{
		dec: json.NewDecoder(r),
	}
}

// Record implements dsk.Source. It returns the next example that can be decoded
// from the reader, and io.EOF at the end of the stream.
func (s *Source) Record() (*dsk.Example, error) {
	if s.broken {
		return nil, io.EOF
	}
	var ej ExampleJSON
	err := s.dec.Decode(&ej)
	if err == io.EOF {
		return nil, err
	} else if err != nil {
		s.n++
		if _, ok := err.(*json.UnmarshalTypeError); !ok {
			s.broken = true
		}
		return nil, errors.Wrapf(err, "decoding example %d", s.n-1)
	}
	s.n++
	ex, err := ej.Example()
	return ex, errors.Wrapf(err, "building example %d", s.n-1)
}

type rawSourceSource struct {
	rs dsk.RawSource

	s      *Source
	reader dsk.NamedReadCloser
}

// NewSourceFromRawSource gets a dsk.Source which decodes examples from each
// reader of rs in turn.
func NewSourceFromRawSource(rs dsk.RawSource) dsk.Source {
	return &rawSourceSource{rs: rs}
}

func (r *rawSourceSource) Record() (*dsk.Example, error) {
	for {
		if r.s == nil {
			reader, err := r.rs.NextReader()
			if err == io.EOF {
				return nil, err
			} else if err != nil {
				return nil, errors.Wrap(err, "getting next reader")
			}
			r.reader = reader
			r.s = NewSource(reader)
		}
		ex, err := r.s.Record()
		if err == io.EOF {
			r.reader.Close()
			r.s, r.reader = nil, nil
			continue
		}
		return ex, errors.Wrapf(err, "reading %s", r.reader.Name())
	}
}
