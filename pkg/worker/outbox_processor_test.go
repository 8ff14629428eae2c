package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
	"github.com/jwalitptl/hire-api/internal/repository/memory"
	"github.com/jwalitptl/hire-api/pkg/logger"
	"github.com/jwalitptl/hire-api/pkg/metrics"
)

func newTestProcessor(t *testing.T, attempts int) (*OutboxProcessor, repository.OutboxRepository, *metrics.Metrics) {
	repo := memory.NewOutboxRepository(memory.NewStore())
	m := metrics.NewNop()
	p, err := NewOutboxProcessor(repo, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: attempts,
		RetryDelay:    time.Millisecond,
	}, logger.NewLogger(&logger.Config{Output: io.Discard}), m)
	require.NoError(t, err)
	return p, repo, m
}

func enqueue(t *testing.T, repo repository.OutboxRepository, eventType string) *model.OutboxEvent {
	event := &model.OutboxEvent{EventType: eventType, Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Create(context.Background(), event))
	return event
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	_, err := NewOutboxProcessor(nil, OutboxProcessorConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestProcessBatchDeliversAndMarksProcessed(t *testing.T) {
	p, repo, m := newTestProcessor(t, 3)
	ctx := context.Background()
	enqueue(t, repo, model.EventMailInvitation)

	var delivered []string
	p.Handle(model.EventMailInvitation, func(_ context.Context, e *model.OutboxEvent) error {
		delivered = append(delivered, e.EventType)
		return nil
	})

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{model.EventMailInvitation}, delivered)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsProcessed.WithLabelValues(model.EventMailInvitation)))

	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchRetriesThenFails(t *testing.T) {
	p, repo, m := newTestProcessor(t, 2)
	ctx := context.Background()
	enqueue(t, repo, model.EventSubscriptionActivated)

	calls := 0
	p.HandleUnrouted(func(context.Context, *model.OutboxEvent) error {
		calls++
		return errors.New("broker down")
	})

	_, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventSubscriptionActivated)))

	time.Sleep(5 * time.Millisecond)
	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed.WithLabelValues(model.EventSubscriptionActivated)))

	time.Sleep(5 * time.Millisecond)
	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchWithoutHandlerFails(t *testing.T) {
	p, repo, m := newTestProcessor(t, 3)
	enqueue(t, repo, "unknown.event")

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed.WithLabelValues("unknown.event")))
}
