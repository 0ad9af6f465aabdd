package analytics

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// KafkaShipper ships events as JSON-encoded Kafka records, keyed by
// distinct ID so a downstream consumer can partition per user, grounded
// on the writer pattern used to publish domain events elsewhere in this
// module.
type KafkaShipper struct {
	writer *kafka.Writer
}

// NewKafkaShipper wraps an already-configured writer. The caller owns
// the writer's lifecycle (topic, balancer, batching) and must Close it.
func NewKafkaShipper(w *kafka.Writer) *KafkaShipper {
	return &KafkaShipper{writer: w}
}

func (s *KafkaShipper) Ship(ctx context.Context, events []Event) error {
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		msgs[i] = kafka.Message{
			Key:   []byte(ev.DistinctID),
			Value: value,
		}
	}
	return s.writer.WriteMessages(ctx, msgs...)
}
