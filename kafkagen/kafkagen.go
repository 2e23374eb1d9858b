// Package kafkagen publishes synthetic examples to a Kafka topic as json, in
// the form the kafka source reads.
package kafkagen

import (
	"encoding/json"
	"io"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pilosa/dsk"
	"github.com/pilosa/dsk/fake"
	dskjson "github.com/pilosa/dsk/json"
	"github.com/pkg/errors"
)

// Main contains the configuration for the kafkagen command.
type Main struct {
	Hosts       []string      `help:"Kafka cluster."`
	Topic       string        `help:"Topic to publish examples to."`
	Count       int           `help:"Number of examples to publish."`
	Seed        int64         `help:"Random seed for the examples."`
	Vocabulary  int           `help:"Number of distinct feature names."`
	MaxFeatures int           `help:"Most features in an example."`
	Rate        time.Duration `help:"Wait this long between messages."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Hosts:       []string{"localhost:9092"},
		Topic:       "test",
		Count:       1000,
		Vocabulary:  1000,
		MaxFeatures: 10,
	}
}

// exampleJSON implements sarama.Encoder.
type exampleJSON struct {
	data []byte
}

func newExampleJSON(ex *dsk.Example) (exampleJSON, error) {
	data, err := json.Marshal(dskjson.FromExample(ex))
	return exampleJSON{data: data}, err
}

func (e exampleJSON) Encode() ([]byte, error) { return e.data, nil }
func (e exampleJSON) Length() int             { return len(e.data) }

// Run publishes Count examples.
func (m *Main) Run() error {
	conf := sarama.NewConfig()
	conf.Version = sarama.V0_10_0_0
	conf.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(m.Hosts, conf)
	if err != nil {
		return errors.Wrap(err, "getting new producer")
	}
	defer producer.Close()
	_, err = m.Produce(producer)
	return err
}

// Produce publishes Count examples with producer, returning how many were
// sent.
func (m *Main) Produce(producer sarama.SyncProducer) (int, error) {
	src := fake.NewSource(m.Seed, uint64(m.Count),
		fake.OptVocabulary(m.Vocabulary),
		fake.OptMaxFeatures(m.MaxFeatures))
	var tick <-chan time.Time
	if m.Rate > 0 {
		ticker := time.NewTicker(m.Rate)
		defer ticker.Stop()
		tick = ticker.C
	}
	for n := 0; ; n++ {
		ex, err := src.Record()
		if err == io.EOF {
			return n, nil
		} else if err != nil {
			return n, errors.Wrap(err, "generating example")
		}
		val, err := newExampleJSON(ex)
		if err != nil {
			return n, errors.Wrap(err, "encoding example")
		}
		_, _, err = producer.SendMessage(&sarama.ProducerMessage{Topic: m.Topic, Value: val})
		if err != nil {
			return n, errors.Wrapf(err, "sending example %d", n)
		}
		if tick != nil {
			<-tick
		}
	}
}
