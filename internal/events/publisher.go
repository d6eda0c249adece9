package events

import (
	"context"

	"prodigy/internal/adapters/kafka"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
)

// Publisher receives pipeline events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishStage(ctx context.Context, event StageEvent) error
	PublishRun(ctx context.Context, event RunEvent) error
}

// Producer is the subset of kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

var _ Producer = (*kafka.Producer)(nil)

// Topics names the destination topics.
type Topics struct {
	Stages string
	Runs   string
}

// KafkaPublisher publishes events as JSON, keyed by run id.
type KafkaPublisher struct {
	producer Producer
	topics   Topics
	log      *logger.Logger
}

// NewKafkaPublisher creates a new event publisher
func NewKafkaPublisher(producer Producer, topics Topics) *KafkaPublisher {
	if topics.Stages == "" {
		topics.Stages = kafka.TopicCounselStages
	}
	if topics.Runs == "" {
		topics.Runs = kafka.TopicCounselRuns
	}
	return &KafkaPublisher{
		producer: producer,
		topics:   topics,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

// PublishStage publishes a stage completion event
func (p *KafkaPublisher) PublishStage(ctx context.Context, event StageEvent) error {
	return p.publish(ctx, p.topics.Stages, event.RunID, event)
}

// PublishRun publishes a run outcome event
func (p *KafkaPublisher) PublishRun(ctx context.Context, event RunEvent) error {
	return p.publish(ctx, p.topics.Runs, event.RunID, event)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Errorw("Failed to publish event", "topic", topic, "run_id", key, "error", err)
		return errors.Wrapf(err, "publish event to %s", topic)
	}
	return nil
}

// NopPublisher drops every event. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishStage(context.Context, StageEvent) error { return nil }
func (NopPublisher) PublishRun(context.Context, RunEvent) error     { return nil }
