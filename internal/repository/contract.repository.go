package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/pkg/pg"
	"gorm.io/gorm"
)

var ErrContractNotFound = errors.New("contract not found")

// ContractRepository is the read-only contract feed.
type ContractRepository struct {
	*pg.DB
}

func NewContractRepository(db *pg.DB) *ContractRepository {
	return &ContractRepository{
		db,
	}
}

// ListBillable returns rental contracts in force on today with a due day and
// a closed period. Open-ended contracts are left out on purpose.
func (r *ContractRepository) ListBillable(ctx context.Context, today time.Time) ([]*model.Contract, error) {
	today = model.DateOf(today)

	var entities []*ContractEntity
	err := r.Read(ctx).
		Where("kind = ?", model.ContractKindRental).
		Where("status = ?", model.ContractStatusCurrent).
		Where("due_day IS NOT NULL").
		Where("start_date IS NOT NULL AND start_date <= ?", today).
		Where("end_date IS NOT NULL AND end_date >= ?", today).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	return toContractModels(entities), nil
}

func (r *ContractRepository) GetByID(ctx context.Context, id int64) (*model.Contract, error) {
	var entity ContractEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}
	return toContractModel(&entity), nil
}

func (r *ContractRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.Contract, error) {
	out := make(map[int64]*model.Contract, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var entities []*ContractEntity
	if err := r.Read(ctx).Where("id IN ?", ids).Find(&entities).Error; err != nil {
		return nil, err
	}
	for _, e := range entities {
		out[e.ID] = toContractModel(e)
	}
	return out, nil
}

// LatestCurrentForProperty resolves the contract a property-scoped entry
// belongs to: the most recently started current contract.
func (r *ContractRepository) LatestCurrentForProperty(ctx context.Context, propertyID int64) (*model.Contract, error) {
	var entity ContractEntity
	err := r.Read(ctx).
		Where("property_id = ?", propertyID).
		Where("status = ?", model.ContractStatusCurrent).
		Order("start_date DESC NULLS LAST").
		Order("id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}
	return toContractModel(&entity), nil
}
