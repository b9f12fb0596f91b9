package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/rental-billing/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStream(t *testing.T, cfg StreamConfig) (*miniredis.Miniredis, *Stream) {
	t.Helper()
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	s := NewStream(adapter, cfg)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return mr, s
}

func TestStream_Publish(t *testing.T) {
	_, s := setupStream(t, StreamConfig{Name: "ledger"})
	ctx := context.Background()

	s.Publish(ctx, "charge.generated", map[string]any{"id": 1, "competence": "2025-01"})
	s.Publish(ctx, "transaction.overdue", map[string]any{"id": 2})

	msgs, err := s.adapter.Client().XRange(ctx, "ledger", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	first := msgs[0].Values
	assert.Equal(t, "charge.generated", first["type"])
	assert.JSONEq(t, `{"id":1,"competence":"2025-01"}`, first["payload"].(string))
	assert.NotEmpty(t, first["id"])
	assert.Equal(t, "2025-03-10T12:00:00Z", first["occurred_at"])
	assert.Equal(t, "transaction.overdue", msgs[1].Values["type"])
	assert.NotEqual(t, first["id"], msgs[1].Values["id"])
}

func TestStream_TrimsToMaxLen(t *testing.T) {
	_, s := setupStream(t, StreamConfig{Name: "ledger", MaxLen: 1000})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.Publish(ctx, "fee.derived", map[string]any{"id": i})
	}

	n, err := s.adapter.Client().XLen(ctx, "ledger").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStream_DefaultName(t *testing.T) {
	mr, s := setupStream(t, StreamConfig{})
	s.Publish(context.Background(), "fee.derived", map[string]any{"id": 3})

	assert.True(t, mr.Exists("billing:events"))
}

func TestStream_PublishFailureIsSwallowed(t *testing.T) {
	mr, s := setupStream(t, StreamConfig{Name: "ledger"})
	mr.Close()

	assert.NotPanics(t, func() {
		s.Publish(context.Background(), "fee.derived", map[string]any{"id": 3})
	})
}

func TestStream_UnmarshalablePayload(t *testing.T) {
	_, s := setupStream(t, StreamConfig{Name: "ledger"})
	_, err := s.publish(context.Background(), "bad", make(chan int))
	assert.Error(t, err)
}
