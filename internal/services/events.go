package services

import (
	"context"
)

const (
	EventChargeGenerated    = "charge.generated"
	EventFeeDerived         = "fee.derived"
	EventTransactionOverdue = "transaction.overdue"
	EventStatusChanged      = "transaction.status_changed"
	EventTransactionCreated = "transaction.created"
)

// EventPublisher receives ledger change notifications. Publishing is best
// effort; implementations must not block the caller on failures.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
