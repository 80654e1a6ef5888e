// Package events publishes prediction assessments to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"churnpredict/retention"
)

// DefaultTopic receives assessments when no topic is configured.
const DefaultTopic = "churn-predictions"

// Config configures the Kafka writer.
type Config struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends one JSON message per assessment, keyed by assessment ID.
type Publisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

// NewPublisher creates a publisher writing to cfg.Topic.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return newPublisher(writer, topic, cfg.WriteTimeout), nil
}

func newPublisher(w messageWriter, topic string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{writer: w, topic: topic, timeout: timeout}
}

func (p *Publisher) Topic() string {
	return p.topic
}

// Publish writes the assessments in one batch.
func (p *Publisher) Publish(ctx context.Context, assessments ...retention.Assessment) error {
	if len(assessments) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(assessments))
	for _, a := range assessments {
		value, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode assessment %s: %w", a.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(a.ID),
			Value: value,
			Time:  a.CreatedAt,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte("application/json")},
				{Key: "tier", Value: []byte(a.Tier)},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
