package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrStaleStatus is returned when a guarded status update matched no row
	// because another writer changed the status first.
	ErrStaleStatus = errors.New("transaction status changed concurrently")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// InsertIgnoringConflict is the idempotent writer: the entries are inserted
// all-or-nothing and a unique constraint violation counts as success with
// nothing written. Any other error is returned as is.
//
// The insert runs in its own (nested) transaction so a conflict never
// poisons a surrounding one.
func (r *TransactionRepository) InsertIgnoringConflict(ctx context.Context, txns ...*model.Transaction) ([]*model.Transaction, error) {
	if len(txns) == 0 {
		return nil, nil
	}
	entities := toTransactionEntities(txns)

	err := r.Write(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entities).Error
	})
	if err != nil {
		if pg.IsUniqueViolation(err) {
			logger.Debug("insert absorbed by unique constraint", "rows", len(entities), "kind", entities[0].Kind)
			return nil, nil
		}
		return nil, err
	}

	return toTransactionModels(entities), nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// ExistingCompetences returns, per contract, the competences that already
// have a live (non-cancelled) rent charge.
func (r *TransactionRepository) ExistingCompetences(ctx context.Context, contractIDs []int64) (map[int64]map[string]struct{}, error) {
	out := make(map[int64]map[string]struct{}, len(contractIDs))
	if len(contractIDs) == 0 {
		return out, nil
	}

	// reads feeding a write go to the primary
	var entities []*TransactionEntity
	err := r.Write(ctx).
		Select("id", "contract_id", "competence", "metadata").
		Where("kind = ?", model.KindRentCharge).
		Where("status <> ?", model.StatusCancelled).
		Where("contract_id IN ?", contractIDs).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	for _, e := range entities {
		if e.ContractID == nil {
			continue
		}
		competence := e.Metadata.Competence
		if competence == "" && e.Competence != nil {
			competence = *e.Competence
		}
		if competence == "" {
			continue
		}
		set, ok := out[*e.ContractID]
		if !ok {
			set = make(map[string]struct{})
			out[*e.ContractID] = set
		}
		set[competence] = struct{}{}
	}
	return out, nil
}

// ListPaidRentChargesWithoutFee returns paid rental rent charges that no
// administration fee references yet.
func (r *TransactionRepository) ListPaidRentChargesWithoutFee(ctx context.Context) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Write(ctx).
		Where("transactions.kind = ?", model.KindRentCharge).
		Where("transactions.status = ?", model.StatusPaid).
		Where("transactions.direction = ?", model.DirectionInflow).
		Where("transactions.module = ?", model.ModuleRental).
		Where("transactions.contract_id IS NOT NULL").
		Where(`NOT EXISTS (
			SELECT 1 FROM transactions AS fee
			WHERE fee.kind = ? AND fee.module = ? AND fee.source_transaction_id = transactions.id
		)`, model.KindAdministrationFee, model.ModuleRental).
		Order("transactions.id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// MarkOverdue moves pending inflow entries of module due before today to
// overdue and returns the ids it moved. It is a single UPDATE ... RETURNING,
// so overlapping sweeps each report only the rows they changed.
func (r *TransactionRepository) MarkOverdue(ctx context.Context, module model.Module, today time.Time) ([]int64, error) {
	today = model.DateOf(today)

	var moved []TransactionEntity
	err := r.Write(ctx).
		Model(&moved).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("module = ?", module).
		Where("direction = ?", model.DirectionInflow).
		Where("status = ?", model.StatusPending).
		Where("due_date < ?", today).
		Update("status", model.StatusOverdue).
		Error
	if err != nil {
		return nil, err
	}
	if len(moved) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(moved))
	for i, e := range moved {
		ids[i] = e.ID
	}
	slices.Sort(ids)
	return ids, nil
}

// TransitionStatus moves one entry from -> to. The update is guarded on the
// current status; ErrStaleStatus means someone else moved it first.
func (r *TransactionRepository) TransitionStatus(ctx context.Context, id int64, from, to model.TransactionStatus, paymentDate *time.Time) error {
	updates := map[string]interface{}{
		"status": to,
	}
	if to == model.StatusPaid {
		updates["payment_date"] = datePtr(paymentDate)
	}

	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Where("status = ?", from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// OpenChildIDs lists riders of parentID still waiting for settlement.
func (r *TransactionRepository) OpenChildIDs(ctx context.Context, parentID int64) ([]int64, error) {
	var ids []int64
	err := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("parent_id = ?", parentID).
		Where("status IN ?", model.OpenStatuses).
		Order("id ASC").
		Pluck("id", &ids).
		Error
	return ids, err
}

// SettleChildren marks the given riders paid. Rows already settled or
// cancelled in the meantime are skipped by the status filter.
func (r *TransactionRepository) SettleChildren(ctx context.Context, parentID int64, ids []int64, paymentDate time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id IN ?", ids).
		Where("parent_id = ?", parentID).
		Where("status IN ?", model.OpenStatuses).
		Updates(map[string]interface{}{
			"status":       model.StatusPaid,
			"payment_date": model.DateOf(paymentDate),
		})
	return result.RowsAffected, result.Error
}

// List returns ledger entries ordered by due date, newest first.
func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx)
	if f.Primary {
		q = r.Write(ctx)
	}
	q = q.Model(&TransactionEntity{})

	if f.Module != "" {
		q = q.Where("module = ?", f.Module)
	}
	if f.Direction != nil {
		q = q.Where("direction = ?", *f.Direction)
	}
	if len(f.ExcludeKinds) > 0 {
		q = q.Where("kind NOT IN ?", f.ExcludeKinds)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.ContractID != nil {
		q = q.Where("contract_id = ?", *f.ContractID)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Order("due_date DESC").Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(min(f.Limit, model.MaxListLimit))
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var entities []*TransactionEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}
