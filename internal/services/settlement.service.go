package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/internal/repository"
	"github.com/nimasrn/rental-billing/pkg/logger"
)

type SettlementStore interface {
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	TransitionStatus(ctx context.Context, id int64, from, to model.TransactionStatus, paymentDate *time.Time) error
	OpenChildIDs(ctx context.Context, parentID int64) ([]int64, error)
	SettleChildren(ctx context.Context, parentID int64, ids []int64, paymentDate time.Time) (int64, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SettlementService is the only way a transaction changes status after it
// has been created, the overdue sweep aside.
type SettlementService struct {
	store  SettlementStore
	today  Today
	events EventPublisher
}

func NewSettlementService(store SettlementStore, today Today, events EventPublisher) *SettlementService {
	return &SettlementService{
		store:  store,
		today:  today,
		events: publisherOrNoop(events),
	}
}

type StatusChange struct {
	ID          int64                   `json:"id"`
	From        model.TransactionStatus `json:"from"`
	To          model.TransactionStatus `json:"to"`
	PaymentDate *time.Time              `json:"payment_date,omitempty"`
	Settled     int64                   `json:"children_settled"`
}

// UpdateStatus applies one transition.
//
// Paid entries are immutable. Re-paying a rent charge root is accepted as a
// retry: the row is left as is and its riders are settled again with the
// stored payment date, which repairs a cascade that failed halfway.
func (s *SettlementService) UpdateStatus(ctx context.Context, req model.StatusUpdateRequest) (*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	txn, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if txn.Status == model.StatusPaid {
		if req.Status == model.StatusPaid && txn.IsRentChargeRoot() {
			return s.replayCascade(ctx, txn)
		}
		return nil, ErrPaidImmutable
	}
	if req.Status == model.StatusCancelled && txn.IsAutomatic() {
		return nil, ErrAutomaticNotCancellable
	}
	if !txn.Status.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, txn.Status, req.Status)
	}

	var paymentDate *time.Time
	if req.Status == model.StatusPaid {
		pd := s.today()
		if req.PaymentDate != nil {
			pd = model.DateOf(*req.PaymentDate)
		}
		paymentDate = &pd
	}

	err = s.store.TransitionStatus(ctx, txn.ID, txn.Status, req.Status, paymentDate)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	change := StatusChange{ID: txn.ID, From: txn.Status, To: req.Status, PaymentDate: paymentDate}
	logger.Info("transaction status changed", "id", txn.ID, "from", txn.Status, "to", req.Status)

	if req.Status == model.StatusPaid && txn.IsRentChargeRoot() {
		settled, err := s.cascade(ctx, txn.ID, *paymentDate)
		if err != nil {
			// parent stays paid; re-issuing the paid transition finishes the job
			logger.Error("cascade to riders failed", "id", txn.ID, "error", err)
			return nil, fmt.Errorf("settle riders of %d: %w", txn.ID, err)
		}
		change.Settled = settled
	}

	s.events.Publish(ctx, EventStatusChanged, change)
	return s.load(ctx, txn.ID)
}

func (s *SettlementService) replayCascade(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	pd := s.today()
	if txn.PaymentDate != nil {
		pd = model.DateOf(*txn.PaymentDate)
	}
	settled, err := s.cascade(ctx, txn.ID, pd)
	if err != nil {
		return nil, fmt.Errorf("settle riders of %d: %w", txn.ID, err)
	}
	if settled > 0 {
		logger.Info("riders settled on paid replay", "id", txn.ID, "count", settled)
		s.events.Publish(ctx, EventStatusChanged, StatusChange{
			ID: txn.ID, From: model.StatusPaid, To: model.StatusPaid, PaymentDate: &pd, Settled: settled,
		})
	}
	return txn, nil
}

// cascade settles every still-open rider of parentID. Riders already paid or
// cancelled are left alone. Resolving and settling share one transaction.
func (s *SettlementService) cascade(ctx context.Context, parentID int64, paymentDate time.Time) (int64, error) {
	var settled int64
	err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		ids, err := s.store.OpenChildIDs(ctx, parentID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		settled, err = s.store.SettleChildren(ctx, parentID, ids, paymentDate)
		return err
	})
	if err != nil {
		return 0, err
	}
	return settled, nil
}

func (s *SettlementService) load(ctx context.Context, id int64) (*model.Transaction, error) {
	txn, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return txn, nil
}
