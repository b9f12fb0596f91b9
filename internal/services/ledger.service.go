package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/internal/repository"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/prom"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

type ContractRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Contract, error)
	LatestCurrentForProperty(ctx context.Context, propertyID int64) (*model.Contract, error)
}

// LedgerService serves the per-module ledger and manual entries. Reading the
// rental ledger brings it up to date first.
type LedgerService struct {
	transactions TransactionRepository
	contracts    ContractRepository
	sweeper      *Sweeper
	generator    *ChargeGenerator
	deriver      *FeeDeriver
	events       EventPublisher
}

func NewLedgerService(
	transactions TransactionRepository,
	contracts ContractRepository,
	sweeper *Sweeper,
	generator *ChargeGenerator,
	deriver *FeeDeriver,
	events EventPublisher,
) *LedgerService {
	return &LedgerService{
		transactions: transactions,
		contracts:    contracts,
		sweeper:      sweeper,
		generator:    generator,
		deriver:      deriver,
		events:       publisherOrNoop(events),
	}
}

type PassResult struct {
	Overdue   []int64              `json:"overdue"`
	Generated []*model.Transaction `json:"generated"`
	Fees      []*model.Transaction `json:"fees"`
}

// RunBillingPass sweeps module and, for rental, generates missing charges
// and derives fees, in that order. Work committed by an earlier phase stays
// committed when a later one fails.
func (s *LedgerService) RunBillingPass(ctx context.Context, module model.Module) (*PassResult, error) {
	if !module.IsValid() {
		return nil, model.NewValidationError("module", "must be one of general, rental")
	}
	start := time.Now()
	defer func() {
		prom.AddPassDuration(time.Since(start).Seconds(), string(module))
	}()

	res := &PassResult{}
	var err error

	res.Overdue, err = s.sweeper.Sweep(ctx, module)
	if err != nil {
		return res, err
	}
	if module != model.ModuleRental {
		return res, nil
	}

	res.Generated, err = s.generator.Generate(ctx)
	if err != nil {
		return res, err
	}
	res.Fees, err = s.deriver.Derive(ctx)
	if err != nil {
		return res, err
	}
	return res, nil
}

// Ledger runs the billing pass for module and returns its receivables, fees
// excluded, latest due date first.
func (s *LedgerService) Ledger(ctx context.Context, module model.Module, limit, offset int) ([]*model.Transaction, int64, error) {
	if _, err := s.RunBillingPass(ctx, module); err != nil {
		return nil, 0, err
	}

	inflow := model.DirectionInflow
	return s.transactions.List(ctx, model.TransactionFilter{
		Module:       module,
		Direction:    &inflow,
		ExcludeKinds: []model.TransactionKind{model.KindAdministrationFee},
		Limit:        limit,
		Offset:       offset,
		Primary:      true, // the pass above wrote to the primary
	})
}

func (s *LedgerService) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	txn, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return txn, nil
}

// Delete never removes anything; cancelling is the only way to void an entry.
func (s *LedgerService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrDeletionNotAllowed
}

// CreateManual records a human-entered transaction. It always starts pending
// with manual provenance, whatever the caller sent.
func (s *LedgerService) CreateManual(ctx context.Context, req model.TransactionCreateRequest) (*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Kind.AutomaticOnly() {
		return nil, ErrAutomaticOnlyKind
	}

	txn := &model.Transaction{
		Kind:        req.Kind,
		Direction:   req.Direction,
		Module:      req.Module,
		Status:      model.StatusPending,
		Amount:      req.Amount,
		DueDate:     model.DateOf(req.DueDate),
		Description: req.Description,
		ContractID:  req.ContractID,
		PropertyID:  req.PropertyID,
		Metadata:    req.Metadata,
	}
	txn.Metadata.Provenance = model.ProvenanceManual
	if err := txn.Metadata.ValidateFor(txn.Kind); err != nil {
		return nil, err
	}

	if err := s.resolveContract(ctx, txn); err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		if err := s.attachToParent(ctx, txn, *req.ParentID); err != nil {
			return nil, err
		}
	}

	if txn.Direction == "" {
		txn.Direction = model.DirectionInflow
	}
	if txn.Module == "" {
		txn.Module = model.ModuleGeneral
		if txn.ContractID != nil {
			txn.Module = model.ModuleRental
		}
	}

	created, err := s.transactions.Create(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	logger.Info("manual transaction created", "id", created.ID, "kind", created.Kind, "module", created.Module)
	s.events.Publish(ctx, EventTransactionCreated, created)
	return created, nil
}

// resolveContract binds txn to a contract. A property resolves to its latest
// current contract; a bare contract id must exist and fills in the property.
func (s *LedgerService) resolveContract(ctx context.Context, txn *model.Transaction) error {
	switch {
	case txn.PropertyID != nil:
		c, err := s.contracts.LatestCurrentForProperty(ctx, *txn.PropertyID)
		if err != nil {
			if errors.Is(err, repository.ErrContractNotFound) {
				return ErrContractNotResolved
			}
			return fmt.Errorf("resolve contract: %w", err)
		}
		if txn.ContractID != nil && *txn.ContractID != c.ID {
			return model.NewValidationError("contract_id", "does not match the current contract of the property")
		}
		id := c.ID
		txn.ContractID = &id
	case txn.ContractID != nil:
		c, err := s.contracts.GetByID(ctx, *txn.ContractID)
		if err != nil {
			if errors.Is(err, repository.ErrContractNotFound) {
				return ErrContractNotResolved
			}
			return fmt.Errorf("load contract: %w", err)
		}
		pid := c.PropertyID
		txn.PropertyID = &pid
	}
	return nil
}

// attachToParent makes txn a rider of an open rent charge. Missing references
// are inherited from the parent.
func (s *LedgerService) attachToParent(ctx context.Context, txn *model.Transaction, parentID int64) error {
	parent, err := s.transactions.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return ErrInvalidParent
		}
		return fmt.Errorf("load parent: %w", err)
	}
	if !parent.IsRentChargeRoot() || !parent.Status.Open() {
		return ErrInvalidParent
	}
	if txn.ContractID != nil && parent.ContractID != nil && *txn.ContractID != *parent.ContractID {
		return ErrInvalidParent
	}
	if txn.Module != "" && txn.Module != parent.Module {
		return ErrInvalidParent
	}

	txn.ParentID = &parent.ID
	txn.Module = parent.Module
	if txn.ContractID == nil {
		txn.ContractID = parent.ContractID
	}
	if txn.PropertyID == nil {
		txn.PropertyID = parent.PropertyID
	}
	return nil
}
