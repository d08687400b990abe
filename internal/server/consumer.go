package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"reviewsync/internal/biz"
	"reviewsync/internal/conf"
	"reviewsync/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/segmentio/kafka-go"
)

// messageReader is the part of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// IngestedHandler reacts to one ReviewsIngested event.
type IngestedHandler interface {
	HandleReviewsIngested(ctx context.Context, evt *biz.ReviewsIngested) error
}

// ConsumerServer annotates freshly ingested reviews as ingestion events
// arrive. It is a kratos transport.Server so the app starts and stops it
// with the HTTP server.
type ConsumerServer struct {
	reader  messageReader
	handler IngestedHandler
	log     *log.Helper
	stopped chan struct{}
}

// NewConsumerServer builds the consumer. It stays idle unless brokers and a
// group id are configured.
func NewConsumerServer(c *conf.Kafka, svc *service.ReviewSyncService, logger log.Logger) *ConsumerServer {
	s := &ConsumerServer{
		handler: svc,
		log:     log.NewHelper(log.With(logger, "module", "server/consumer")),
		stopped: make(chan struct{}),
	}
	if c == nil || len(c.Brokers) == 0 || c.GroupId == "" {
		return s
	}
	topic := c.Topic
	if topic == "" {
		topic = biz.ReviewsIngestedTopic
	}
	s.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		Topic:          topic,
		GroupID:        c.GroupId,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: time.Second,
	})
	return s
}

// Start consumes until ctx is cancelled or Stop closes the reader.
func (s *ConsumerServer) Start(ctx context.Context) error {
	defer close(s.stopped)
	if s.reader == nil {
		s.log.Info("kafka consumer disabled")
		return nil
	}
	s.log.Info("consuming reviews.ingested events")
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		s.handle(ctx, msg)
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.log.Errorf("failed to commit offset %d: %v", msg.Offset, err)
		}
	}
}

// Stop closes the reader and waits for Start to return.
func (s *ConsumerServer) Stop(ctx context.Context) error {
	if s.reader == nil {
		return nil
	}
	if err := s.reader.Close(); err != nil {
		return err
	}
	select {
	case <-s.stopped:
	case <-ctx.Done():
	}
	return nil
}

// handle never fails the loop: a bad event is logged and committed, and the
// reviews can still be annotated through the API.
func (s *ConsumerServer) handle(ctx context.Context, msg kafka.Message) {
	var evt biz.ReviewsIngested
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		s.log.Warnf("dropping undecodable event at offset %d: %v", msg.Offset, err)
		return
	}
	if err := s.handler.HandleReviewsIngested(ctx, &evt); err != nil {
		s.log.Errorf("annotation for place %s failed: %v", evt.PlaceID, err)
	}
}
