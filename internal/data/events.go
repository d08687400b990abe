package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reviewsync/internal/biz"
	"reviewsync/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
	log    *log.Helper
}

type noopPublisher struct{}

func (noopPublisher) PublishReviewsIngested(context.Context, *biz.ReviewsIngested) error { return nil }

// NewEventPublisher creates a Kafka producer for ingestion events. Without
// brokers events are dropped.
func NewEventPublisher(c *conf.Kafka, logger log.Logger) (biz.EventPublisher, func(), error) {
	l := log.NewHelper(logger)
	if c == nil || len(c.Brokers) == 0 {
		l.Info("kafka not configured, ingestion events disabled")
		return noopPublisher{}, func() {}, nil
	}
	topic := c.Topic
	if topic == "" {
		topic = biz.ReviewsIngestedTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	p := &kafkaPublisher{writer: w, log: l}
	cleanup := func() {
		if err := w.Close(); err != nil {
			l.Errorf("failed to close kafka writer: %v", err)
		}
	}
	return p, cleanup, nil
}

// PublishReviewsIngested keys messages by place so events for one place stay
// ordered on a partition.
func (p *kafkaPublisher) PublishReviewsIngested(ctx context.Context, evt *biz.ReviewsIngested) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.PlaceID),
		Value: data,
		Time:  evt.At,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish reviews.ingested: %w", err)
	}
	p.log.Debugf("published %d %s reviews for %s", evt.Count, evt.Provider, evt.PlaceID)
	return nil
}
