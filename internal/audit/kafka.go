package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"eduledger/internal/platform/kafka/producer"
)

// KafkaSink publishes audit events to a Kafka topic. Events are keyed by
// actor DID so per-actor ordering is preserved within a partition.
type KafkaSink struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaSink(p *producer.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.ActorDID),
		Value: value,
		Headers: map[string]string{
			"action": string(event.Action),
		},
	})
}
