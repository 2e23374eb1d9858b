package dsk

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Feature is a named numeric attribute of an Example.
type Feature struct {
	Name  string
	Value float64
}

func (f Feature) String() string {
	return fmt.Sprintf("(%s, %v)", f.Name, f.Value)
}

// Example is a labeled observation: an ordered set of uniquely named features,
// an output and a weight. Examples can't be modified once they are built, so
// they may be shared freely between datasets.
type Example struct {
	output   Output
	weight   float64
	features []Feature
}

// NewExample builds an Example from the given output, weight and features.
// The output and weight are kept exactly as passed. It returns an error whose
// cause is ErrDuplicateFeature if any feature name appears more than once.
func NewExample(output Output, weight float64, features ...Feature) (*Example, error) {
	ex := &Example{
		output:   output,
		weight:   weight,
		features: make([]Feature, len(features)),
	}
	copy(ex.features, features)
	seen := make(map[string]struct{}, len(ex.features))
	for _, f := range ex.features {
		if _, ok := seen[f.Name]; ok {
			return nil, errors.Wrapf(ErrDuplicateFeature, "'%s' found twice in %v", f.Name, ex)
		}
		seen[f.Name] = struct{}{}
	}
	return ex, nil
}

// Output returns the output label of the example.
func (e *Example) Output() Output { return e.output }

// Weight returns the weight of the example.
func (e *Example) Weight() float64 { return e.weight }

// Size returns the number of features in the example.
func (e *Example) Size() int { return len(e.features) }

// Feature returns the i'th feature of the example.
func (e *Example) Feature(i int) Feature { return e.features[i] }

// Features returns a copy of the example's features in order.
func (e *Example) Features() []Feature {
	ret := make([]Feature, len(e.features))
	copy(ret, e.features)
	return ret
}

// Lookup returns the value of the named feature, and false if the example
// doesn't have it.
func (e *Example) Lookup(name string) (float64, bool) {
	for _, f := range e.features {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

func (e *Example) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "Example(output=%v,weight=%v,features=[", e.output, e.weight)
	for i, f := range e.features {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.String())
	}
	sb.WriteString("])")
	return sb.String()
}
