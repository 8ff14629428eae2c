package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
	"github.com/jwalitptl/hire-api/pkg/logger"
	"github.com/jwalitptl/hire-api/pkg/messaging"
	"github.com/jwalitptl/hire-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Lease is how long a claimed event stays invisible to other workers.
	Lease time.Duration
}

// Handler delivers one outbox event.
type Handler func(ctx context.Context, event *model.OutboxEvent) error

type OutboxProcessor struct {
	repo     repository.OutboxRepository
	handlers map[string]Handler
	fallback Handler
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("retry attempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("retry delay must be greater than 0")
	}
	if config.Lease <= 0 {
		config.Lease = time.Minute
	}

	return &OutboxProcessor{
		repo:     repo,
		handlers: map[string]Handler{},
		config:   config,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// Handle routes events of eventType to h.
func (p *OutboxProcessor) Handle(eventType string, h Handler) {
	p.handlers[eventType] = h
}

// HandleUnrouted sets the handler for events without a dedicated one.
func (p *OutboxProcessor) HandleUnrouted(h Handler) {
	p.fallback = h
}

// PublishTo returns a handler publishing the event on broker.
func PublishTo(broker messaging.Broker) Handler {
	return func(ctx context.Context, event *model.OutboxEvent) error {
		return broker.Publish(ctx, messaging.Channel(event.EventType), messaging.Message{
			ID:          event.ID.String(),
			Type:        event.EventType,
			Payload:     event.Payload,
			PublishedAt: time.Now(),
		})
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch claims and delivers one batch, returning how many events were claimed.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.Lease)
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}
	return len(events), nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	handler, ok := p.handlers[event.EventType]
	if !ok {
		handler = p.fallback
	}
	if handler == nil {
		return p.fail(ctx, event.ID, event.EventType, fmt.Errorf("no handler for event type %q", event.EventType))
	}

	if err := handler(ctx, event); err != nil {
		if event.RetryCount+1 >= p.config.RetryAttempts {
			return p.fail(ctx, event.ID, event.EventType, err)
		}
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		retryAt := p.now().Add(p.backoff(event.RetryCount))
		if updateErr := p.repo.MarkRetry(ctx, event.ID, err.Error(), retryAt); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.WithLabelValues(event.EventType).Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (p *OutboxProcessor) fail(ctx context.Context, id uuid.UUID, eventType string, cause error) error {
	p.metrics.OutboxEventsFailed.WithLabelValues(eventType).Inc()
	if err := p.repo.MarkFailed(ctx, id, cause.Error()); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", id.String())
	}
	return cause
}

// backoff doubles the retry delay per attempt.
func (p *OutboxProcessor) backoff(attempt int) time.Duration {
	if attempt > 10 {
		attempt = 10
	}
	return p.config.RetryDelay * time.Duration(1<<attempt)
}
