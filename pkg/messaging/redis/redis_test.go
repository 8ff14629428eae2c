package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hire-api/pkg/messaging"
)

func newTestBroker(t *testing.T) (*RedisBroker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBrokerWithClient(client, zerolog.Nop())
	t.Cleanup(func() { b.Close() })
	return b, mr
}

func TestPublishSubscribe(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := messaging.Channel("subscription.activated")
	msgs, err := b.Subscribe(ctx, channel)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, channel, messaging.Message{
		ID:      "evt-1",
		Type:    "subscription.activated",
		Payload: json.RawMessage(`{"tenant_id":"t-1"}`),
	}))

	select {
	case raw := <-msgs:
		var got messaging.Message
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "evt-1", got.ID)
		assert.JSONEq(t, `{"tenant_id":"t-1"}`, string(got.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestNewRedisBrokerPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	b, err := NewRedisBroker(context.Background(), Config{URL: "redis://" + mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()
	assert.NoError(t, b.PingContext(context.Background()))

	mr.Close()
	assert.Error(t, b.PingContext(context.Background()))
	_, err = NewRedisBroker(context.Background(), Config{URL: "redis://" + mr.Addr()}, zerolog.Nop())
	assert.Error(t, err)
}
