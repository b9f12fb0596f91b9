package repository

import (
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/shopspring/decimal"
)

// ContractEntity maps the contracts table owned by the contracts module.
// Billing only reads it; tests and local seeds write it directly.
type ContractEntity struct {
	ID           int64               `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	PropertyID   int64               `db:"property_id"   gorm:"column:property_id;not null;index"`
	Kind         string              `db:"kind"          gorm:"column:kind;type:varchar(20);not null"`
	Status       string              `db:"status"        gorm:"column:status;type:varchar(20);not null;index"`
	AgreedAmount decimal.Decimal     `db:"agreed_amount" gorm:"column:agreed_amount;type:decimal(14,2);not null"`
	FeePercent   decimal.NullDecimal `db:"fee_percent"   gorm:"column:fee_percent;type:decimal(5,2)"`
	DueDay       *int                `db:"due_day"       gorm:"column:due_day"`
	StartDate    *time.Time          `db:"start_date"    gorm:"column:start_date;type:date"`
	EndDate      *time.Time          `db:"end_date"      gorm:"column:end_date;type:date"`
	CreatedAt    time.Time           `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (ContractEntity) TableName() string {
	return "contracts"
}

func toContractEntity(m *model.Contract) *ContractEntity {
	if m == nil {
		return nil
	}
	e := &ContractEntity{
		ID:           m.ID,
		PropertyID:   m.PropertyID,
		Kind:         string(m.Kind),
		Status:       string(m.Status),
		AgreedAmount: m.AgreedAmount,
		DueDay:       m.DueDay,
		StartDate:    datePtr(m.StartDate),
		EndDate:      datePtr(m.EndDate),
		CreatedAt:    m.CreatedAt,
	}
	if m.FeePercent != nil {
		e.FeePercent = decimal.NewNullDecimal(*m.FeePercent)
	}
	return e
}

func toContractModel(e *ContractEntity) *model.Contract {
	if e == nil {
		return nil
	}
	m := &model.Contract{
		ID:           e.ID,
		PropertyID:   e.PropertyID,
		Kind:         model.ContractKind(e.Kind),
		Status:       model.ContractStatus(e.Status),
		AgreedAmount: e.AgreedAmount,
		DueDay:       e.DueDay,
		StartDate:    datePtr(e.StartDate),
		EndDate:      datePtr(e.EndDate),
		CreatedAt:    e.CreatedAt,
	}
	if e.FeePercent.Valid {
		fp := e.FeePercent.Decimal
		m.FeePercent = &fp
	}
	return m
}

func toContractModels(entities []*ContractEntity) []*model.Contract {
	if entities == nil {
		return nil
	}
	models := make([]*model.Contract, len(entities))
	for i, e := range entities {
		models[i] = toContractModel(e)
	}
	return models
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := model.DateOf(*t)
	return &d
}
