package dsk

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// LibraryVersion is recorded in the provenance of every dataset built by this
// package.
const LibraryVersion = "0.3.0"

// Provenance describes how something was produced. A Provenance is made up
// entirely of its class name and its ordered fields: two provenances with
// equal class names and fields are equal no matter how they were built.
type Provenance interface {
	// ClassName identifies the kind of provenance. It is used to find the
	// function which rehydrates a Record.
	ClassName() string

	// Fields returns the captured fields in a fixed order.
	Fields() []Field
}

// Field is a named value captured by a Provenance. Value is either a Primitive
// or a nested Provenance.
type Field struct {
	Key   string
	Value interface{}
}

const classNameKey = "class-name"

// Flatten turns p into a Record. The class name comes first, then each field
// in order. The fields of a nested provenance are flattened under its key
// followed by a '.'. Fields with a nil value are left out.
func Flatten(p Provenance) Record {
	rec := make(Record, 0)
	flattenInto(&rec, "", p)
	return rec
}

func flattenInto(rec *Record, prefix string, p Provenance) {
	*rec = append(*rec, Entry{Key: prefix + classNameKey, Value: S(p.ClassName())})
	for _, f := range p.Fields() {
		switch v := f.Value.(type) {
		case Primitive:
			*rec = append(*rec, Entry{Key: prefix + f.Key, Value: v})
		case Provenance:
			flattenInto(rec, prefix+f.Key+".", v)
		case nil:
		default:
			panic(fmt.Sprintf("provenance %s has field '%s' of unsupported type %T", p.ClassName(), f.Key, f.Value))
		}
	}
}

// EqualProvenance reports whether a and b capture the same class and fields.
func EqualProvenance(a, b Provenance) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Flatten(a).Equal(Flatten(b))
}

// HashProvenance returns a hash of the captured class and fields of p. Equal
// provenances hash the same.
func HashProvenance(p Provenance) uint64 {
	h := xxhash.New()
	for _, e := range Flatten(p) {
		_, _ = h.WriteString(e.Key)
		_, _ = h.WriteString("\x00" + e.Value.XSDType() + "\x00")
		_, _ = h.Write(primitiveBytes(e.Value))
		_, _ = h.WriteString("\x01")
	}
	return h.Sum64()
}

// primitiveBytes returns the bytes hashed for val. Values which compare equal
// give the same bytes, so 0 and -0 hash alike.
func primitiveBytes(val Primitive) []byte {
	var buf [8]byte
	switch v := val.(type) {
	case F64:
		if v == 0 {
			v = 0
		}
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(float64(v)))
	case I:
		binary.BigEndian.PutUint64(buf[:], uint64(v))
	case I64:
		binary.BigEndian.PutUint64(buf[:], uint64(v))
	case B:
		if v {
			buf[0] = 1
		}
		return buf[:1]
	case S:
		return []byte(v)
	default:
		return []byte(fmt.Sprintf("%v", val))
	}
	return buf[:]
}

// RehydrateFunc builds a Provenance from its Record.
type RehydrateFunc func(rec Record) (Provenance, error)

var registry = struct {
	sync.RWMutex
	fns map[string]RehydrateFunc
}{fns: make(map[string]RehydrateFunc)}

// RegisterProvenance makes Rehydrate use fn for records with the given class
// name. Registering a class name twice replaces the earlier function.
func RegisterProvenance(className string, fn RehydrateFunc) {
	registry.Lock()
	defer registry.Unlock()
	registry.fns[className] = fn
}

// RegisteredProvenances returns the registered class names, sorted.
func RegisteredProvenances() []string {
	registry.RLock()
	defer registry.RUnlock()
	ret := make([]string, 0, len(registry.fns))
	for name := range registry.fns {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// Rehydrate rebuilds the Provenance which was flattened into rec.
func Rehydrate(rec Record) (Provenance, error) {
	className, err := extractString(rec, classNameKey, "Record")
	if err != nil {
		return nil, err
	}
	registry.RLock()
	fn, ok := registry.fns[string(className)]
	registry.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProvenance, "'%s'", className)
	}
	return fn(rec)
}

func init() {
	RegisterProvenance(dataSourceClassName, func(rec Record) (Provenance, error) {
		p, err := RehydrateDataSourceProvenance(rec)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	RegisterProvenance(datasetClassName, func(rec Record) (Provenance, error) {
		p, err := RehydrateDatasetProvenance(rec)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	RegisterProvenance(minCardinalityClassName, func(rec Record) (Provenance, error) {
		p, err := RehydrateMinimumCardinalityProvenance(rec)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

func extract(rec Record, key, className string) (Primitive, error) {
	val, ok := rec.Get(key)
	if !ok {
		return nil, errors.Wrapf(ErrProvenanceExtraction, "%s: missing '%s'", className, key)
	}
	return val, nil
}

func extractInt(rec Record, key, className string) (I, error) {
	val, err := extract(rec, key, className)
	if err != nil {
		return 0, err
	}
	i, ok := val.(I)
	if !ok {
		return 0, errors.Wrapf(ErrProvenanceExtraction, "%s: '%s' is %s, expected %s", className, key, val.XSDType(), I(0).XSDType())
	}
	return i, nil
}

func extractString(rec Record, key, className string) (S, error) {
	val, err := extract(rec, key, className)
	if err != nil {
		return "", err
	}
	s, ok := val.(S)
	if !ok {
		return "", errors.Wrapf(ErrProvenanceExtraction, "%s: '%s' is %s, expected %s", className, key, val.XSDType(), S("").XSDType())
	}
	return s, nil
}

func checkClassName(rec Record, className string) error {
	got, err := extractString(rec, classNameKey, className)
	if err != nil {
		return err
	}
	if string(got) != className {
		return errors.Wrapf(ErrProvenanceExtraction, "record is a %s, not a %s", got, className)
	}
	return nil
}

const dataSourceClassName = "DataSourceProvenance"

// DataSourceProvenance records where the examples of a dataset came from.
type DataSourceProvenance struct {
	description S
	location    S
}

// NewDataSourceProvenance describes a source of examples. Location is a path,
// URL or similar.
func NewDataSourceProvenance(description, location string) *DataSourceProvenance {
	return &DataSourceProvenance{
		description: S(description),
		location:    S(location),
	}
}

// RehydrateDataSourceProvenance rebuilds a DataSourceProvenance from its
// Record.
func RehydrateDataSourceProvenance(rec Record) (*DataSourceProvenance, error) {
	err := checkClassName(rec, dataSourceClassName)
	if err != nil {
		return nil, err
	}
	p := &DataSourceProvenance{}
	if p.description, err = extractString(rec, "description", dataSourceClassName); err != nil {
		return nil, err
	}
	if p.location, err = extractString(rec, "location", dataSourceClassName); err != nil {
		return nil, err
	}
	return p, nil
}

// ClassName implements Provenance.
func (p *DataSourceProvenance) ClassName() string { return dataSourceClassName }

// Fields implements Provenance.
func (p *DataSourceProvenance) Fields() []Field {
	return []Field{
		{Key: "description", Value: p.description},
		{Key: "location", Value: p.location},
	}
}

// Description returns the description of the source.
func (p *DataSourceProvenance) Description() string { return string(p.description) }

// Location returns the location of the source.
func (p *DataSourceProvenance) Location() string { return string(p.location) }

// Equal reports whether p and other capture the same fields.
func (p *DataSourceProvenance) Equal(other Provenance) bool { return EqualProvenance(p, other) }

// Hash returns a hash of the captured fields.
func (p *DataSourceProvenance) Hash() uint64 { return HashProvenance(p) }

const datasetClassName = "DatasetProvenance"

// DatasetProvenance records the source of a dataset along with its size.
type DatasetProvenance struct {
	source      Provenance
	numExamples I
	numFeatures I
	numOutputs  I
	version     S
}

// NewDatasetProvenance describes a dataset with the given counts, built from
// source. Source may be nil.
func NewDatasetProvenance(source Provenance, numExamples, numFeatures, numOutputs int) *DatasetProvenance {
	return &DatasetProvenance{
		source:      source,
		numExamples: I(numExamples),
		numFeatures: I(numFeatures),
		numOutputs:  I(numOutputs),
		version:     S(LibraryVersion),
	}
}

// RehydrateDatasetProvenance rebuilds a DatasetProvenance from its Record.
func RehydrateDatasetProvenance(rec Record) (*DatasetProvenance, error) {
	err := checkClassName(rec, datasetClassName)
	if err != nil {
		return nil, err
	}
	return rehydrateDatasetFields(rec, datasetClassName)
}

func rehydrateDatasetFields(rec Record, className string) (p *DatasetProvenance, err error) {
	p = &DatasetProvenance{}
	if src := rec.Sub("source"); len(src) > 0 {
		p.source, err = Rehydrate(src)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: rehydrating source", className)
		}
	}
	if p.numExamples, err = extractInt(rec, "num-examples", className); err != nil {
		return nil, err
	}
	if p.numFeatures, err = extractInt(rec, "num-features", className); err != nil {
		return nil, err
	}
	if p.numOutputs, err = extractInt(rec, "num-outputs", className); err != nil {
		return nil, err
	}
	if p.version, err = extractString(rec, "version", className); err != nil {
		return nil, err
	}
	return p, nil
}

// ClassName implements Provenance.
func (p *DatasetProvenance) ClassName() string { return datasetClassName }

// Fields implements Provenance.
func (p *DatasetProvenance) Fields() []Field {
	fields := make([]Field, 0, 5)
	if p.source != nil {
		fields = append(fields, Field{Key: "source", Value: p.source})
	}
	return append(fields,
		Field{Key: "num-examples", Value: p.numExamples},
		Field{Key: "num-features", Value: p.numFeatures},
		Field{Key: "num-outputs", Value: p.numOutputs},
		Field{Key: "version", Value: p.version},
	)
}

// Source returns the provenance of whatever the dataset was built from.
func (p *DatasetProvenance) Source() Provenance { return p.source }

// NumExamples returns the number of examples in the dataset.
func (p *DatasetProvenance) NumExamples() int { return int(p.numExamples) }

// NumFeatures returns the number of features in the dataset's feature map.
func (p *DatasetProvenance) NumFeatures() int { return int(p.numFeatures) }

// NumOutputs returns the number of distinct outputs of the dataset.
func (p *DatasetProvenance) NumOutputs() int { return int(p.numOutputs) }

// Version returns the version of this package which built the dataset.
func (p *DatasetProvenance) Version() string { return string(p.version) }

// Equal reports whether p and other capture the same fields.
func (p *DatasetProvenance) Equal(other Provenance) bool { return EqualProvenance(p, other) }

// Hash returns a hash of the captured fields.
func (p *DatasetProvenance) Hash() uint64 { return HashProvenance(p) }
