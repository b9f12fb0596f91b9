package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ContractKind string

const (
	ContractKindRental ContractKind = "rental"
	ContractKindSale   ContractKind = "sale"
)

type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "draft"
	ContractStatusCurrent    ContractStatus = "current"
	ContractStatusTerminated ContractStatus = "terminated"
	ContractStatusExpired    ContractStatus = "expired"
)

// Contract is the read-only view of a rental agreement owned by the contracts
// module. Only the fields billing needs are mapped.
type Contract struct {
	ID           int64            `json:"id"`
	PropertyID   int64            `json:"property_id"`
	Kind         ContractKind     `json:"kind"`
	Status       ContractStatus   `json:"status"`
	AgreedAmount decimal.Decimal  `json:"agreed_amount"`
	FeePercent   *decimal.Decimal `json:"fee_percent,omitempty"`
	DueDay       *int             `json:"due_day,omitempty"`
	StartDate    *time.Time       `json:"start_date,omitempty"`
	EndDate      *time.Time       `json:"end_date,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Terms snapshots the commercial terms a charge was generated from.
func (c *Contract) Terms() *ContractTerms {
	t := &ContractTerms{
		AgreedAmount: c.AgreedAmount,
		FeePercent:   c.FeePercent,
	}
	if c.StartDate != nil {
		t.StartDate = c.StartDate.Format(DateLayout)
	}
	if c.EndDate != nil {
		t.EndDate = c.EndDate.Format(DateLayout)
	}
	return t
}

// BillableOn reports whether the contract is eligible for charge generation
// on the given day. Open-ended contracts never are.
func (c *Contract) BillableOn(today time.Time) bool {
	if c.Kind != ContractKindRental || c.Status != ContractStatusCurrent {
		return false
	}
	if c.DueDay == nil || c.StartDate == nil || c.EndDate == nil {
		return false
	}
	today = DateOf(today)
	return !DateOf(*c.StartDate).After(today) && !DateOf(*c.EndDate).Before(today)
}
