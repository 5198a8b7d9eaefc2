// Package kafka mirrors translated catalog entities onto a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"metasync/internal/catalog"
	"metasync/sink"

	"github.com/IBM/sarama"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// newProducer is replaced in tests.
var newProducer = func(brokers []string, sc *sarama.Config) (sarama.SyncProducer, error) {
	return sarama.NewSyncProducer(brokers, sc)
}

type driver struct {
	cfg Config
	p   sarama.SyncProducer
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: expected Config, got %T", c)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.cfg = cfg

	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true // required by SyncProducer
	var err error
	d.p, err = newProducer(cfg.Brokers, sc)
	return err
}

func (d *driver) Publish(ctx context.Context, e catalog.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := encode(e, d.cfg.Encoding)
	if err != nil {
		return &sink.WriteError{Sink: "kafka", EntityID: e.ExternalID, Err: err}
	}
	_, _, err = d.p.SendMessage(&sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Key:   sarama.StringEncoder(e.ExternalID),
		Value: sarama.ByteEncoder(val),
	})
	if err != nil {
		return &sink.WriteError{Sink: "kafka", EntityID: e.ExternalID, Err: err}
	}
	return nil
}

func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	p := d.p
	d.p = nil
	return p.Close()
}

// encode renders e as JSON or as a google.protobuf.Struct built from the
// same JSON shape.
func encode(e catalog.Entity, encoding string) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil || encoding == EncodingJSON {
		return b, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
