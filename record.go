package dsk

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Entry is a single key and typed value in a Record.
type Entry struct {
	Key   string
	Value Primitive
}

// Record is the flat, ordered form of a Provenance. It is what gets persisted;
// Rehydrate turns it back into a Provenance.
type Record []Entry

// Get returns the value stored under key.
func (r Record) Get(key string) (Primitive, bool) {
	for _, e := range r {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Sub returns the entries nested under prefix, with the prefix and its
// separator removed from their keys.
func (r Record) Sub(prefix string) Record {
	prefix += "."
	var ret Record
	for _, e := range r {
		if strings.HasPrefix(e.Key, prefix) {
			ret = append(ret, Entry{Key: strings.TrimPrefix(e.Key, prefix), Value: e.Value})
		}
	}
	return ret
}

// Equal reports whether both records hold the same keys, in the same order,
// with values of the same type and value.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i].Key != other[i].Key || r[i].Value != other[i].Value {
			return false
		}
	}
	return true
}

type entryJSON struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the record as an array of key/value objects so that the
// order of entries is kept.
func (r Record) MarshalJSON() ([]byte, error) {
	ret := make([]entryJSON, len(r))
	for i, e := range r {
		if e.Value == nil {
			return nil, errors.Errorf("entry '%s' has no value", e.Key)
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "marshaling '%s'", e.Key)
		}
		ret[i] = entryJSON{Key: e.Key, Value: val}
	}
	return json.Marshal(ret)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var entries []entryJSON
	err := json.Unmarshal(data, &entries)
	if err != nil {
		return errors.Wrap(err, "decoding record entries")
	}
	rec := make(Record, len(entries))
	for i, e := range entries {
		rec[i].Key = e.Key
		rec[i].Value, err = UnmarshalPrimitive(e.Value)
		if err != nil {
			return errors.Wrapf(err, "entry '%s'", e.Key)
		}
	}
	*r = rec
	return nil
}
