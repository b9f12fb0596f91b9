package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/redis"
)

type StreamConfig struct {
	Name   string
	MaxLen int64
}

// Stream appends ledger events to a Redis stream. The database stays the
// source of truth: a failed publish is logged and dropped.
type Stream struct {
	adapter redis.RedisAdapter
	config  StreamConfig
	now     func() time.Time
}

func NewStream(adapter redis.RedisAdapter, config StreamConfig) *Stream {
	if config.Name == "" {
		config.Name = "billing:events"
	}
	return &Stream{
		adapter: adapter,
		config:  config,
		now:     time.Now,
	}
}

func (s *Stream) Publish(ctx context.Context, eventType string, payload any) {
	if _, err := s.publish(ctx, eventType, payload); err != nil {
		logger.Warn("ledger event dropped", "type", eventType, "stream", s.config.Name, "error", err)
	}
}

func (s *Stream) publish(ctx context.Context, eventType string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	values := map[string]interface{}{
		"id":          uuid.NewString(),
		"type":        eventType,
		"occurred_at": s.now().UTC().Format(time.RFC3339Nano),
		"payload":     string(data),
	}

	id, err := s.adapter.XAdd(ctx, s.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	if s.config.MaxLen > 0 {
		if err := s.adapter.XTrimApprox(ctx, s.config.Name, s.config.MaxLen); err != nil {
			logger.Debug("ledger stream trim failed", "stream", s.config.Name, "error", err)
		}
	}
	return id, nil
}
