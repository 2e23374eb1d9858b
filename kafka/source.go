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

package kafka

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"
	"github.com/elodina/go-avro"
	"github.com/pilosa/dsk"
	dskjson "github.com/pilosa/dsk/json"
	"github.com/pkg/errors"
)

// Source implements the dsk.Source interface using kafka as a data source.
// Message values are examples, either json encoded (Type "json") or avro
// encoded with a schema from the Confluent schema registry (Type "avro").
//
// An avro example is a record with a string "output", an optional double
// "weight" and "features", which is either an array of records with a string
// "name" and double "value", or a map of doubles.
type Source struct {
	Hosts       []string
	Topics      []string
	Group       string
	Type        string
	RegistryURL string
	MaxMsgs     int
	Log         dsk.Logger

	numMsgs int

	consumer offsetMarker
	closer   io.Closer
	messages <-chan *sarama.ConsumerMessage

	lock  sync.RWMutex
	cache map[int32]avro.Schema
}

type offsetMarker interface {
	MarkOffset(msg *sarama.ConsumerMessage, metadata string)
}

// NewSource gets a new Source
func NewSource() *Source {
	return &Source{
		Hosts:       []string{"localhost:9092"},
		Topics:      []string{"test"},
		Group:       "group0",
		Type:        "json",
		RegistryURL: "localhost:8081",
		Log:         dsk.NopLogger{},
		cache:       make(map[int32]avro.Schema),
	}
}

// Location describes where the source reads from, for provenance.
func (s *Source) Location() string {
	return fmt.Sprintf("kafka://%v/%v?group=%s", s.Hosts, s.Topics, s.Group)
}

// Record returns the example in the next kafka message. It returns io.EOF
// after MaxMsgs messages if MaxMsgs is positive.
func (s *Source) Record() (*dsk.Example, error) {
	if s.MaxMsgs > 0 {
		s.numMsgs++
		if s.numMsgs > s.MaxMsgs {
			return nil, io.EOF
		}
	}
	msg, ok := <-s.messages
	if !ok {
		return nil, errors.New("messages channel closed")
	}
	var ex *dsk.Example
	var err error
	switch s.Type {
	case "json":
		ex, err = dskjson.DecodeExample(msg.Value)
	case "avro":
		ex, err = s.decodeAvroValueWithSchemaRegistry(msg.Value)
	default:
		return nil, errors.Errorf("unsupported kafka message type: '%v'", s.Type)
	}
	s.consumer.MarkOffset(msg, "") // mark message as processed
	return ex, errors.Wrapf(err, "message at %s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}

// Open initializes the kafka source.
func (s *Source) Open() error {
	// init (custom) config, enable errors and notifications
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	config := cluster.NewConfig()
	config.Config.Version = sarama.V0_10_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Group.Return.Notifications = true

	consumer, err := cluster.NewConsumer(s.Hosts, s.Group, s.Topics, config)
	if err != nil {
		return errors.Wrap(err, "getting new consumer")
	}
	s.consumer, s.closer, s.messages = consumer, consumer, consumer.Messages()

	// consume errors
	go func() {
		for err := range consumer.Errors() {
			s.Log.Printf("kafka consumer error: %v", err)
		}
	}()

	// consume notifications
	go func() {
		for ntf := range consumer.Notifications() {
			s.Log.Debugf("rebalanced: %+v", ntf)
		}
	}()
	return nil
}

// Close closes the underlying kafka consumer.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	return errors.Wrap(err, "closing kafka consumer")
}

func (s *Source) decodeAvroValueWithSchemaRegistry(val []byte) (*dsk.Example, error) {
	if len(val) <= 6 || val[0] != 0 {
		return nil, errors.Errorf("unexpected magic byte or length in avro kafka value, should be 0x00, but got 0x%.8s", val)
	}
	id := int32(binary.BigEndian.Uint32(val[1:]))
	codec, err := s.getCodec(id)
	if err != nil {
		return nil, errors.Wrap(err, "getting avro codec")
	}
	rec, err := avroDecode(codec, val[5:])
	if err != nil {
		return nil, errors.Wrap(err, "decoding avro record")
	}
	return avroExample(rec)
}

// The Schema type is an object produced by the schema registry.
type Schema struct {
	Schema  string `json:"schema"`  // The actual AVRO schema
	Subject string `json:"subject"` // Subject where the schema is registered for
	Version int    `json:"version"` // Version within this subject
	ID      int    `json:"id"`      // Registry's unique id
}

func (s *Source) getCodec(id int32) (rschema avro.Schema, rerr error) {
	s.lock.RLock()
	if codec, ok := s.cache[id]; ok {
		s.lock.RUnlock()
		return codec, nil
	}
	s.lock.RUnlock()
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cache == nil {
		s.cache = make(map[int32]avro.Schema)
	}
	r, err := http.Get(fmt.Sprintf("http://%s/schemas/ids/%d", s.RegistryURL, id))
	if err != nil {
		return nil, errors.Wrap(err, "getting schema from registry")
	}
	defer func() {
		if err := r.Body.Close(); err != nil && rerr == nil {
			rerr = errors.Wrap(err, "closing registry response")
		}
	}()
	if r.StatusCode >= 300 {
		bod, err := ioutil.ReadAll(r.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get schema, code: %d, no body", r.StatusCode)
		}
		return nil, errors.Errorf("failed to get schema, code: %d, resp: %s", r.StatusCode, bod)
	}
	dec := json.NewDecoder(r.Body)
	schema := &Schema{}
	err = dec.Decode(schema)
	if err != nil {
		return nil, errors.Wrap(err, "decoding schema from registry")
	}
	codec, err := avro.ParseSchema(schema.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "parsing schema")
	}
	s.cache[id] = codec
	return codec, nil
}

func avroDecode(codec avro.Schema, data []byte) (*avro.GenericRecord, error) {
	reader := avro.NewGenericDatumReader()
	// SetSchema must be called before calling Read
	reader.SetSchema(codec)

	decoder := avro.NewBinaryDecoder(data)
	decodedRecord := avro.NewGenericRecord(codec)
	err := reader.Read(decodedRecord, decoder)
	if err != nil {
		return nil, errors.Wrap(err, "reading generic datum")
	}
	return decodedRecord, nil
}

// avroField gets a field from a decoded record, which may be a GenericRecord
// or, when nested, the map form of one.
func avroField(rec interface{}, name string) interface{} {
	switch r := rec.(type) {
	case *avro.GenericRecord:
		return r.Get(name)
	case map[string]interface{}:
		return r[name]
	}
	return nil
}

func avroNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, errors.Errorf("%v of type %T is not a number", v, v)
}

func avroExample(rec *avro.GenericRecord) (*dsk.Example, error) {
	output, ok := rec.Get("output").(string)
	if !ok {
		return nil, errors.Errorf("output %v is a %T, not a string", rec.Get("output"), rec.Get("output"))
	}
	weight := 1.0
	if w := rec.Get("weight"); w != nil {
		var err error
		if weight, err = avroNumber(w); err != nil {
			return nil, errors.Wrap(err, "weight")
		}
	}
	var features []dsk.Feature
	switch fs := rec.Get("features").(type) {
	case []interface{}:
		features = make([]dsk.Feature, 0, len(fs))
		for i, f := range fs {
			name, ok := avroField(f, "name").(string)
			if !ok {
				return nil, errors.Errorf("feature %d has no name", i)
			}
			val, err := avroNumber(avroField(f, "value"))
			if err != nil {
				return nil, errors.Wrapf(err, "feature '%s'", name)
			}
			features = append(features, dsk.Feature{Name: name, Value: val})
		}
	case map[string]interface{}:
		features = make([]dsk.Feature, 0, len(fs))
		for name, v := range fs {
			val, err := avroNumber(v)
			if err != nil {
				return nil, errors.Wrapf(err, "feature '%s'", name)
			}
			features = append(features, dsk.Feature{Name: name, Value: val})
		}
		sortFeatures(features)
	case nil:
	default:
		return nil, errors.Errorf("features of type %T", fs)
	}
	return dsk.NewExample(dsk.Label(output), weight, features...)
}

// sortFeatures puts features decoded from a map into name order.
func sortFeatures(fs []dsk.Feature) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].Name < fs[j].Name })
}
