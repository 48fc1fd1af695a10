// Package events publishes crawl lifecycle events to Kafka so downstream
// consumers can follow ingestion progress without polling the store.
// Publishing is best effort: failures are logged and counted, never
// propagated, and every write is bounded by a timeout so a slow broker
// cannot stall the crawl loop.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/observability"
)

const defaultWriteTimeout = 5 * time.Second

// Config holds configuration for the event publisher.
type Config struct {
	// Enabled controls whether events are published at all.
	Enabled bool
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic crawl events are published to.
	Topic string
	// BatchTimeout is the maximum time to wait for a batch to fill.
	BatchTimeout time.Duration
	// WriteTimeout bounds a single publish call.
	WriteTimeout time.Duration
}

// messageWriter is the subset of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits CrawlEvent JSON messages keyed by run ID. A publisher
// built from a disabled config is a no-op and safe to call everywhere.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewPublisher creates a Kafka-backed publisher, or a no-op publisher when
// the config is disabled or incomplete. Metrics may be nil.
func NewPublisher(cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Publisher {
	p := &Publisher{
		timeout: cfg.WriteTimeout,
		metrics: metrics,
		logger:  logger.With().Str("component", "events").Logger(),
	}
	if p.timeout <= 0 {
		p.timeout = defaultWriteTimeout
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 || cfg.Topic == "" {
		p.logger.Debug().Msg("event publishing disabled")
		return p
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: p.timeout,
		RequiredAcks: kafka.RequireOne,
	}
	p.logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("event publishing enabled")
	return p
}

// newWithWriter builds a publisher over an injected writer, for tests.
func newWithWriter(w messageWriter, metrics *observability.Metrics, logger zerolog.Logger) *Publisher {
	return &Publisher{
		writer:  w,
		timeout: defaultWriteTimeout,
		metrics: metrics,
		logger:  logger.With().Str("component", "events").Logger(),
	}
}

// Enabled reports whether events actually go anywhere.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// Publish sends one event. Failures are logged and counted, never returned.
func (p *Publisher) Publish(ctx context.Context, event domain.CrawlEvent) {
	if p.writer == nil {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("type", event.Type).Msg("failed to encode event")
		p.recordFailure()
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish event")
		p.recordFailure()
		return
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished(event.Type)
	}
}

// RunStarted announces a new ingestion run.
func (p *Publisher) RunStarted(ctx context.Context, runID string) {
	p.Publish(ctx, domain.CrawlEvent{
		Type:  domain.EventTypeRunStarted,
		RunID: runID,
	})
}

// BatchCommitted reports one committed page for a task.
func (p *Publisher) BatchCommitted(ctx context.Context, runID string, task domain.CrawlTask, records, totalRecords int64) {
	years := task.Years
	p.Publish(ctx, domain.CrawlEvent{
		Type:         domain.EventTypeBatchCommitted,
		RunID:        runID,
		Domain:       task.Domain,
		Keyword:      task.Keyword,
		Years:        &years,
		Records:      records,
		TotalRecords: totalRecords,
	})
}

// TaskCompleted reports a task that exhausted its result sequence or cap.
func (p *Publisher) TaskCompleted(ctx context.Context, runID string, task domain.CrawlTask, totalRecords int64) {
	years := task.Years
	p.Publish(ctx, domain.CrawlEvent{
		Type:         domain.EventTypeTaskCompleted,
		RunID:        runID,
		Domain:       task.Domain,
		Keyword:      task.Keyword,
		Years:        &years,
		Records:      task.RecordsFetched,
		TotalRecords: totalRecords,
	})
}

// RunStopped reports the end of a run with its stop reason and totals.
func (p *Publisher) RunStopped(ctx context.Context, runID string, reason domain.StopReason, stats domain.RunStats) {
	p.Publish(ctx, domain.CrawlEvent{
		Type:         domain.EventTypeRunStopped,
		RunID:        runID,
		StopReason:   reason,
		TotalRecords: stats.TotalRecords,
		SizeMB:       stats.TotalSizeMB,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	p.logger.Debug().Msg("closing event publisher")
	return p.writer.Close()
}

func (p *Publisher) recordFailure() {
	if p.metrics != nil {
		p.metrics.RecordEventPublishFailed()
	}
}
