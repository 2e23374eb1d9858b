package json

import (
	"encoding/json"
	"io"

	"github.com/pilosa/dsk"
	"github.com/pkg/errors"
)

// Writer writes examples as line delimited json, in the form Source reads.
type Writer struct {
	enc *json.Encoder
	n   int
}

// NewWriter gets a Writer which writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write encodes a single example.
func (w *Writer) Write(ex *dsk.Example) error {
	err := w.enc.Encode(FromExample(ex))
	if err != nil {
		return errors.Wrapf(err, "encoding example %d", w.n)
	}
	w.n++
	return nil
}

// Written returns the number of examples written so far.
func (w *Writer) Written() int { return w.n }

// WriteDataset writes every example of d to w.
func WriteDataset(w io.Writer, d dsk.Dataset) (int, error) {
	jw := NewWriter(w)
	err := d.Each(jw.Write)
	return jw.Written(), err
}
