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

// Package pilosa exports datasets to a Pilosa index. Each example becomes a
// column; the "features" field sets the row of every feature id the example
// carries and the keyed "output" field sets the row of its output.
package pilosa

import (
	"io"
	"time"

	"github.com/pilosa/dsk"
	gopilosa "github.com/pilosa/go-pilosa"
	"github.com/pkg/errors"
)

const (
	// FeaturesField is the name of the field holding feature ids.
	FeaturesField = "features"
	// OutputField is the name of the keyed field holding outputs.
	OutputField = "output"
)

// Dataset is a dataset whose features have ids.
type Dataset interface {
	dsk.Dataset
	FeatureIndex() *dsk.ImmutableFeatureMap
}

// Exporter writes datasets into an index on a Pilosa cluster.
type Exporter struct {
	Hosts     []string
	Index     string
	BatchSize int
	CacheSize int
	Log       dsk.Logger
	Stats     dsk.Statter
}

// NewExporter returns an Exporter with defaults set.
func NewExporter(hosts []string, index string) *Exporter {
	return &Exporter{
		Hosts:     hosts,
		Index:     index,
		BatchSize: 100000,
		CacheSize: 100000,
		Log:       dsk.NopLogger{},
		Stats:     dsk.NopStatter{},
	}
}

// Schema returns the schema the exporter syncs, along with the features and
// output fields.
func Schema(indexName string, cacheSize int) (schema *gopilosa.Schema, features, output *gopilosa.Field) {
	schema = gopilosa.NewSchema()
	index := schema.Index(indexName)
	features = index.Field(FeaturesField, gopilosa.OptFieldTypeSet(gopilosa.CacheTypeRanked, cacheSize))
	output = index.Field(OutputField, gopilosa.OptFieldTypeSet(gopilosa.CacheTypeRanked, cacheSize), gopilosa.OptFieldKeys(true))
	return schema, features, output
}

// Columns returns the records to import for d. Column ids are example
// positions. A feature missing from d's feature index can't be given a row and
// is skipped; skipped counts how many times that happened.
func Columns(d Dataset) (features, outputs []gopilosa.Record, skipped int, err error) {
	fm := d.FeatureIndex()
	col := uint64(0)
	err = d.Each(func(ex *dsk.Example) error {
		for i := 0; i < ex.Size(); i++ {
			id, ok := fm.ID(ex.Feature(i).Name)
			if !ok {
				skipped++
				continue
			}
			features = append(features, gopilosa.Column{RowID: uint64(id), ColumnID: col})
		}
		outputs = append(outputs, gopilosa.Column{RowKey: ex.Output().String(), ColumnID: col})
		col++
		return nil
	})
	return features, outputs, skipped, err
}

// Export syncs the schema and imports d. It returns the number of columns
// written.
func (e *Exporter) Export(d Dataset) (int, error) {
	start := time.Now()
	client, err := gopilosa.NewClient(e.Hosts,
		gopilosa.OptClientSocketTimeout(time.Minute*60),
		gopilosa.OptClientConnectTimeout(time.Second*60))
	if err != nil {
		return 0, errors.Wrap(err, "creating pilosa cluster client")
	}
	schema, featureField, outputField := Schema(e.Index, e.CacheSize)
	err = client.SyncSchema(schema)
	if err != nil {
		return 0, errors.Wrap(err, "synchronizing schema")
	}

	features, outputs, skipped, err := Columns(d)
	if err != nil {
		return 0, errors.Wrap(err, "building columns")
	}
	if skipped > 0 {
		e.Log.Printf("%d features have no id in the feature index and were not exported", skipped)
	}

	err = client.ImportField(featureField, newRecordIterator(features), gopilosa.OptImportBatchSize(e.BatchSize))
	if err != nil {
		return 0, errors.Wrapf(err, "importing field '%s'", FeaturesField)
	}
	err = client.ImportField(outputField, newRecordIterator(outputs), gopilosa.OptImportBatchSize(e.BatchSize))
	if err != nil {
		return 0, errors.Wrapf(err, "importing field '%s'", OutputField)
	}

	e.Stats.Count("pilosa.columns", int64(len(outputs)), 1)
	e.Stats.Count("pilosa.skipped", int64(skipped), 1)
	e.Stats.Timing("pilosa.export_time", time.Since(start), 1)
	return len(outputs), nil
}

// recordIterator implements gopilosa.RecordIterator over a slice.
type recordIterator struct {
	records []gopilosa.Record
	i       int
}

func newRecordIterator(records []gopilosa.Record) *recordIterator {
	return &recordIterator{records: records}
}

func (r *recordIterator) NextRecord() (gopilosa.Record, error) {
	if r.i >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.i]
	r.i++
	return rec, nil
}
