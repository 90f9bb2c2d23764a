// Package kafka broadcasts audit events to a Kafka topic.
//
// Kafka delivery is best-effort from the core's perspective: the local store
// is the durable trail, the topic feeds downstream consumers (compliance,
// SIEM). A broker outage therefore never blocks a personnel mutation.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "hive/pkg/platform/audit"
)

// DefaultTopic is the audit event topic.
const DefaultTopic = "hive.audit.events"

// Publisher produces audit events to Kafka.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(p *Publisher) { p.topic = topic }
}

// New connects to the given brokers. Call Close when done.
func New(brokers []string, opts ...Option) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := &Publisher{client: client, topic: DefaultTopic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	_, err := adm.CreateTopic(ctx, 1, 1, nil, p.topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	return nil
}

// Publish produces one event, keyed by entity ID so per-entity ordering is
// preserved across partitions.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.EntityType + ":" + event.EntityID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes and releases the Kafka client.
func (p *Publisher) Close() {
	p.client.Close()
}
