// Package kafka publishes session view events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hydro-dashboard/internal/config"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
	"github.com/couchcryptid/hydro-dashboard/internal/session"
)

const (
	queueSize    = 1024
	maxBatchSize = 100
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher forwards session events to Kafka in the background. Listen never
// blocks the session that emitted the event; when the queue is full the
// event is dropped and counted.
type Publisher struct {
	writer  messageWriter
	queue   chan session.Event
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured event topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newPublisher(w, logger, metrics)
}

func newPublisher(w messageWriter, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		writer:  w,
		queue:   make(chan session.Event, queueSize),
		logger:  logger,
		metrics: metrics,
	}
}

// Listen is a session.Listener that queues e for publishing.
func (p *Publisher) Listen(e session.Event) {
	select {
	case p.queue <- e:
	default:
		p.metrics.EventsPublished.WithLabelValues("dropped").Inc()
		p.logger.Warn("event queue full, dropping event", "session_id", e.SessionID, "type", string(e.Type))
	}
}

// Run publishes queued events until ctx is cancelled, then flushes whatever
// is still queued using a short grace period.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("event publisher started")
	for {
		select {
		case <-ctx.Done():
			p.flush()
			p.logger.Info("event publisher stopping", "reason", ctx.Err())
			return nil
		case e := <-p.queue:
			p.publish(ctx, p.collect(e))
		}
	}
}

// collect takes first plus whatever else is queued, up to maxBatchSize.
func (p *Publisher) collect(first session.Event) []session.Event {
	batch := []session.Event{first}
	for len(batch) < maxBatchSize {
		select {
		case e := <-p.queue:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-p.queue:
			p.publish(ctx, p.collect(e))
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, events []session.Event) {
	msgs := make([]kafkago.Message, 0, len(events))
	for _, e := range events {
		msg, err := serializeToMessage(e)
		if err != nil {
			p.metrics.EventsPublished.WithLabelValues("error").Inc()
			p.logger.Error("serialize event", "error", err, "session_id", e.SessionID)
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.EventsPublished.WithLabelValues("error").Add(float64(len(msgs)))
		p.logger.Error("publish events failed", "error", err, "batch_size", len(msgs))
		return
	}
	p.metrics.EventsPublished.WithLabelValues("success").Add(float64(len(msgs)))
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Event into a Kafka message keyed by session
// so one session's events stay ordered within a partition.
func serializeToMessage(e session.Event) (kafkago.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize view event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(e.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "emitted_at", Value: []byte(e.At.Format(time.RFC3339))},
		},
	}, nil
}
