package dsk

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Primitive is a typed value which can appear in a provenance Record. Each
// Primitive marshals to a JSON-LD value object
// (https://json-ld.org/spec/latest/json-ld/#typed-values) so that its type
// survives a round trip.
type Primitive interface {
	// XSDType returns the XML schema type used for the value.
	XSDType() string
	isPrim()
}

type B bool

func (B B) MarshalJSON() ([]byte, error) { return marshalTyped(B.XSDType(), bool(B)) }
func (B) XSDType() string               { return "xsd:boolean" }

type S string

func (S S) MarshalJSON() ([]byte, error) { return marshalTyped(S.XSDType(), string(S)) }
func (S) XSDType() string               { return "xsd:string" }

type I int

func (I I) MarshalJSON() ([]byte, error) { return marshalTyped(I.XSDType(), int(I)) }
func (I) XSDType() string               { return "xsd:int" }

type I64 int64

func (I I64) MarshalJSON() ([]byte, error) { return marshalTyped(I.XSDType(), int64(I)) }
func (I64) XSDType() string               { return "xsd:long" }

type F64 float64

func (F F64) MarshalJSON() ([]byte, error) { return marshalTyped(F.XSDType(), float64(F)) }
func (F64) XSDType() string               { return "xsd:double" }

func (B) isPrim()   {}
func (S) isPrim()   {}
func (I) isPrim()   {}
func (I64) isPrim() {}
func (F64) isPrim() {}

func marshalTyped(typ string, val interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"@type":  typ,
		"@value": val,
	})
}

type typedValue struct {
	Type  string          `json:"@type"`
	Value json.RawMessage `json:"@value"`
}

// UnmarshalPrimitive decodes a JSON-LD value object produced by marshaling a
// Primitive back into a Primitive of the same type.
func UnmarshalPrimitive(data []byte) (Primitive, error) {
	tv := typedValue{}
	err := json.Unmarshal(data, &tv)
	if err != nil {
		return nil, errors.Wrap(err, "decoding typed value")
	}
	if len(tv.Value) == 0 {
		return nil, errors.Errorf("typed value of '%s' has no @value", tv.Type)
	}
	var p Primitive
	switch tv.Type {
	case "xsd:boolean":
		var v bool
		err = json.Unmarshal(tv.Value, &v)
		p = B(v)
	case "xsd:string":
		var v string
		err = json.Unmarshal(tv.Value, &v)
		p = S(v)
	case "xsd:int":
		var v int
		err = json.Unmarshal(tv.Value, &v)
		p = I(v)
	case "xsd:long":
		var v int64
		err = json.Unmarshal(tv.Value, &v)
		p = I64(v)
	case "xsd:double":
		var v float64
		err = json.Unmarshal(tv.Value, &v)
		p = F64(v)
	default:
		return nil, errors.Errorf("unknown primitive type '%s'", tv.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", tv.Type)
	}
	return p, nil
}
