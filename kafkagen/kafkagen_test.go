package kafkagen

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/pilosa/dsk"
	dskjson "github.com/pilosa/dsk/json"
	"github.com/pkg/errors"
)

func TestProduce(t *testing.T) {
	m := NewMain()
	m.Count = 5
	m.Seed = 2

	producer := mocks.NewSyncProducer(t, nil)
	for i := 0; i < m.Count; i++ {
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			_, err := dskjson.DecodeExample(val)
			return err
		})
	}
	n, err := m.Produce(producer)
	if err != nil {
		t.Fatalf("producing: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 messages, got %d", n)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("closing producer: %v", err)
	}
}

func TestProduceError(t *testing.T) {
	m := NewMain()
	m.Count = 3

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	n, err := m.Produce(producer)
	if errors.Cause(err) != sarama.ErrOutOfBrokers {
		t.Fatalf("expected out of brokers, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 message sent, got %d", n)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("closing producer: %v", err)
	}
}

func TestExampleJSON(t *testing.T) {
	ex, err := dsk.NewExample(dsk.Label("x"), 0.5, dsk.Feature{Name: "a", Value: 2})
	if err != nil {
		t.Fatalf("building example: %v", err)
	}
	enc, err := newExampleJSON(ex)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	data, _ := enc.Encode()
	if enc.Length() != len(data) {
		t.Errorf("length %d doesn't match %d bytes", enc.Length(), len(data))
	}
	back, err := dskjson.DecodeExample(data)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if back.String() != ex.String() {
		t.Errorf("round trip gave %s, exp: %s", back, ex)
	}
}
