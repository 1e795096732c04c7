// Package kafka publishes completed lookups as JSON events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
)

// DefaultTopic receives lookup events when no topic is configured
const DefaultTopic = "weather_lookups"

// Publisher implements domain.LookupRecorder on top of a sync producer
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewPublisher connects to brokers and waits for all in-sync replicas on every send.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create producer: %w", err)
	}
	return NewPublisherFromProducer(producer, topic), nil
}

// NewPublisherFromProducer wraps an existing producer
func NewPublisherFromProducer(producer sarama.SyncProducer, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{producer: producer, topic: topic}
}

// SaveLookup sends the record keyed by city so one city stays on one partition.
func (p *Publisher) SaveLookup(ctx context.Context, rec domain.LookupRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kafka: failed to publish lookup: %w", err)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal lookup: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(rec.City),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka: failed to publish lookup: %w", err)
	}
	return nil
}

// Close flushes and closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
