package repository

import (
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/shopspring/decimal"
)

// TransactionEntity is the single wide ledger table.
//
// Competence and SourceTransactionID duplicate metadata keys so the store can
// enforce one live rent charge per (contract, competence) and one fee per
// source charge.
type TransactionEntity struct {
	ID                  int64           `db:"id"                    gorm:"primaryKey;autoIncrement;column:id"`
	Kind                string          `db:"kind"                  gorm:"column:kind;type:varchar(30);not null;index;uniqueIndex:idx_transactions_fee_source,priority:1"`
	Direction           string          `db:"direction"             gorm:"column:direction;type:varchar(10);not null"`
	Module              string          `db:"module"                gorm:"column:module;type:varchar(20);not null;index;uniqueIndex:idx_transactions_fee_source,priority:2"`
	Status              string          `db:"status"                gorm:"column:status;type:varchar(20);not null;index"`
	Amount              decimal.Decimal `db:"amount"                gorm:"column:amount;type:decimal(14,2);not null"`
	DueDate             time.Time       `db:"due_date"              gorm:"column:due_date;type:date;not null;index"`
	PaymentDate         *time.Time      `db:"payment_date"          gorm:"column:payment_date;type:date"`
	Description         string          `db:"description"           gorm:"column:description;type:varchar(500)"`
	ContractID          *int64          `db:"contract_id"           gorm:"column:contract_id;index;uniqueIndex:idx_transactions_rent_competence,priority:1,where:kind = 'rent_charge' AND status <> 'cancelled'"`
	PropertyID          *int64          `db:"property_id"           gorm:"column:property_id;index"`
	ParentID            *int64          `db:"parent_id"             gorm:"column:parent_id;index"`
	Competence          *string         `db:"competence"            gorm:"column:competence;type:varchar(7);uniqueIndex:idx_transactions_rent_competence,priority:2"`
	SourceTransactionID *int64          `db:"source_transaction_id" gorm:"column:source_transaction_id;uniqueIndex:idx_transactions_fee_source,priority:3"`
	Metadata            model.Metadata  `db:"metadata"              gorm:"column:metadata;type:jsonb;not null"`
	CreatedAt           time.Time       `db:"created_at"            gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `db:"updated_at"            gorm:"column:updated_at;autoUpdateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	e := &TransactionEntity{
		ID:                  m.ID,
		Kind:                string(m.Kind),
		Direction:           string(m.Direction),
		Module:              string(m.Module),
		Status:              string(m.Status),
		Amount:              m.Amount,
		DueDate:             model.DateOf(m.DueDate),
		PaymentDate:         datePtr(m.PaymentDate),
		Description:         m.Description,
		ContractID:          m.ContractID,
		PropertyID:          m.PropertyID,
		ParentID:            m.ParentID,
		Metadata:            m.Metadata,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	if m.Kind == model.KindRentCharge && m.Metadata.Competence != "" {
		c := m.Metadata.Competence
		e.Competence = &c
	}
	// other kinds may carry the key as free metadata; only fees are unique on it
	if m.Kind == model.KindAdministrationFee {
		e.SourceTransactionID = m.Metadata.SourceTransactionID
	}
	return e
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	m := &model.Transaction{
		ID:          e.ID,
		Kind:        model.TransactionKind(e.Kind),
		Direction:   model.Direction(e.Direction),
		Module:      model.Module(e.Module),
		Status:      model.TransactionStatus(e.Status),
		Amount:      e.Amount,
		DueDate:     model.DateOf(e.DueDate),
		PaymentDate: datePtr(e.PaymentDate),
		Description: e.Description,
		ContractID:  e.ContractID,
		PropertyID:  e.PropertyID,
		ParentID:    e.ParentID,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if m.Metadata.Competence == "" && e.Competence != nil {
		m.Metadata.Competence = *e.Competence
	}
	return m
}

func toTransactionEntities(models []*model.Transaction) []*TransactionEntity {
	entities := make([]*TransactionEntity, len(models))
	for i, m := range models {
		entities[i] = toTransactionEntity(m)
	}
	return entities
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
