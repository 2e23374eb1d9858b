// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package csv

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pilosa/dsk"
	"github.com/pkg/errors"
)

// Source is a dsk.Source for CSV data. The first line of the CSV is a header.
// One column holds the output label and another, optionally, the weight. Every
// other column is a feature named by its header, and each cell is parsed as the
// feature's value. Empty cells are skipped, as are zeros unless WithKeepZeros
// is used. Source is safe for concurrent use.
type Source struct {
	outputColumn string
	weightColumn string
	keepZeros    bool

	mu     sync.Mutex
	rs     dsk.RawSource
	reader dsk.NamedReadCloser
	r      *csv.Reader
	header *header
}

// Option is a functional option to pass to NewSource.
type Option func(*Source)

// WithOutputColumn sets the name of the column holding the output label. The
// default is "output".
func WithOutputColumn(name string) Option {
	return func(s *Source) {
		s.outputColumn = name
	}
}

// WithWeightColumn sets the name of the column holding example weights. By
// default every example has a weight of 1.
func WithWeightColumn(name string) Option {
	return func(s *Source) {
		s.weightColumn = name
	}
}

// WithKeepZeros makes zero valued cells into features rather than skipping
// them.
func WithKeepZeros(keep bool) Option {
	return func(s *Source) {
		s.keepZeros = keep
	}
}

// NewSource creates a Source which reads CSV data from each reader of rs in
// turn. Each reader must begin with its own header.
func NewSource(rs dsk.RawSource, options ...Option) *Source {
	s := &Source{
		outputColumn: "output",
		rs:           rs,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// NewReaderSource creates a Source which reads CSV data from r.
func NewReaderSource(r io.Reader, options ...Option) *Source {
	return NewSource(&singleRawSource{r: r}, options...)
}

type header struct {
	names  []string
	output int
	weight int
}

// Record implements dsk.Source.
func (s *Source) Record() (*dsk.Example, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.r == nil {
			if err := s.nextReader(); err != nil {
				return nil, err
			}
		}
		row, err := s.r.Read()
		if err == io.EOF {
			s.reader.Close()
			s.r, s.reader = nil, nil
			continue
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading %s", s.reader.Name())
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		ex, err := s.parseRow(row)
		if err != nil {
			line, _ := s.r.FieldPos(0)
			return nil, errors.Wrapf(err, "%s: parsing line %d", s.reader.Name(), line)
		}
		return ex, nil
	}
}

func (s *Source) nextReader() error {
	reader, err := s.rs.NextReader()
	if err == io.EOF {
		return err
	} else if err != nil {
		return errors.Wrap(err, "getting next reader")
	}
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	names, err := r.Read()
	if err != nil {
		reader.Close()
		return errors.Wrapf(err, "reading header of %s", reader.Name())
	}
	h, err := s.parseHeader(names)
	if err != nil {
		reader.Close()
		return errors.Wrapf(err, "validating header of %s", reader.Name())
	}
	s.reader, s.r, s.header = reader, r, h
	return nil
}

func (s *Source) parseHeader(names []string) (*header, error) {
	h := &header{names: names, output: -1, weight: -1}
	seen := make(map[string]int, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		names[i] = name
		// unnamed columns, like a written row index, are skipped
		if name == "" {
			continue
		}
		if j, ok := seen[name]; ok {
			return nil, errors.Errorf("'%s' appears at both %d and %d", name, j, i)
		}
		seen[name] = i
		if name == s.outputColumn {
			h.output = i
		} else if s.weightColumn != "" && name == s.weightColumn {
			h.weight = i
		}
	}
	if h.output < 0 {
		return nil, errors.Errorf("no output column '%s' in %v", s.outputColumn, names)
	}
	if s.weightColumn != "" && h.weight < 0 {
		return nil, errors.Errorf("no weight column '%s' in %v", s.weightColumn, names)
	}
	return h, nil
}

func (s *Source) parseRow(row []string) (*dsk.Example, error) {
	h := s.header
	if len(row) != len(h.names) {
		return nil, errors.Errorf("header/row len mismatch: %d vs %d", len(h.names), len(row))
	}
	weight := 1.0
	if h.weight >= 0 {
		var err error
		weight, err = strconv.ParseFloat(strings.TrimSpace(row[h.weight]), 64)
		if err != nil {
			return nil, errors.Wrap(err, "parsing weight")
		}
	}
	features := make([]dsk.Feature, 0, len(row))
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if i == h.output || i == h.weight || cell == "" || h.names[i] == "" {
			continue
		}
		val, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing '%s'", h.names[i])
		}
		if val == 0 && !s.keepZeros {
			continue
		}
		features = append(features, dsk.Feature{Name: h.names[i], Value: val})
	}
	return dsk.NewExample(dsk.Label(strings.TrimSpace(row[h.output])), weight, features...)
}

type singleRawSource struct {
	r    io.Reader
	done bool
}

func (s *singleRawSource) NextReader() (dsk.NamedReadCloser, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return namedReader{Reader: s.r}, nil
}

type namedReader struct {
	io.Reader
}

func (namedReader) Name() string { return "reader" }
func (namedReader) Close() error { return nil }
