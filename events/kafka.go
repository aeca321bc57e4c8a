package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same order, same partition
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evs ...Event) error {
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		msg, err := toMessage(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.w.WriteMessages(ctx, msgs...)
}

// toMessage keys by order so one order's events stay in sequence on a partition
func toMessage(ev Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(fmt.Sprintf("order-%d", ev.OrderID)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}, nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
