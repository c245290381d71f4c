// Package kafka mirrors domain events onto a Kafka topic so external
// consumers (reporting, reconciliation) can tail the trail without reading
// the core's store. The store publisher remains the sink of record; this
// mirror is best-effort per-call but synchronous so delivery errors surface
// to the operator.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"tessera/pkg/platform/events"
)

type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects a Kafka producer for the given brokers and topic.
func New(brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Emit publishes one event record keyed by asset id (or principal for
// commitment events) so per-entity ordering is preserved within a partition.
func (p *Publisher) Emit(ctx context.Context, event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(recordKey(event)),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}

func recordKey(event events.Event) string {
	if !event.AssetID.IsNil() {
		return strconv.FormatUint(uint64(event.AssetID), 10)
	}
	if !event.Principal.IsNil() {
		return event.Principal.String()
	}
	return event.FeedID.String()
}
