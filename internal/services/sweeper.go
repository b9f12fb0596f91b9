package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/prom"
)

type OverdueStore interface {
	MarkOverdue(ctx context.Context, module model.Module, today time.Time) ([]int64, error)
}

// Sweeper flags pending receivables whose due date has passed.
type Sweeper struct {
	store  OverdueStore
	today  Today
	events EventPublisher
}

func NewSweeper(store OverdueStore, today Today, events EventPublisher) *Sweeper {
	return &Sweeper{
		store:  store,
		today:  today,
		events: publisherOrNoop(events),
	}
}

// Sweep moves pending inflow entries of module due strictly before today to
// overdue. Entries due today stay pending.
func (s *Sweeper) Sweep(ctx context.Context, module model.Module) ([]int64, error) {
	ids, err := s.store.MarkOverdue(ctx, module, s.today())
	if err != nil {
		return nil, fmt.Errorf("mark overdue: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	logger.Info("transactions marked overdue", "module", module, "count", len(ids))
	prom.AddOverdueSwept(len(ids), string(module))
	for _, id := range ids {
		s.events.Publish(ctx, EventTransactionOverdue, map[string]any{"id": id, "module": module})
	}
	return ids, nil
}
