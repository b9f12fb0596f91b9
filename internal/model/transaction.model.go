package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindRentCharge        TransactionKind = "rent_charge"
	KindAdministrationFee TransactionKind = "administration_fee"
	KindLateFee           TransactionKind = "late_fee"
	KindAdjustment        TransactionKind = "adjustment"
	KindRepair            TransactionKind = "repair"
	KindDeposit           TransactionKind = "deposit"
	KindInstallment       TransactionKind = "installment"
	KindOther             TransactionKind = "other"
)

func (k TransactionKind) IsValid() bool {
	switch k {
	case KindRentCharge, KindAdministrationFee, KindLateFee, KindAdjustment,
		KindRepair, KindDeposit, KindInstallment, KindOther:
		return true
	}
	return false
}

// AutomaticOnly reports kinds that only the billing engine may create.
func (k TransactionKind) AutomaticOnly() bool {
	return k == KindRentCharge || k == KindAdministrationFee
}

func (k TransactionKind) Label() string {
	switch k {
	case KindRentCharge:
		return "Rent"
	case KindAdministrationFee:
		return "Administration fee"
	case KindLateFee:
		return "Late fee"
	case KindAdjustment:
		return "Adjustment"
	case KindRepair:
		return "Repair"
	case KindDeposit:
		return "Deposit"
	case KindInstallment:
		return "Installment"
	}
	return "Other"
}

type Direction string

const (
	DirectionInflow  Direction = "inflow"
	DirectionOutflow Direction = "outflow"
)

func (d Direction) IsValid() bool {
	return d == DirectionInflow || d == DirectionOutflow
}

type Module string

const (
	ModuleGeneral Module = "general"
	ModuleRental  Module = "rental"
)

func (m Module) IsValid() bool {
	return m == ModuleGeneral || m == ModuleRental
}

func ParseModule(s string) (Module, error) {
	m := Module(s)
	if !m.IsValid() {
		return "", NewValidationError("module", "must be one of general, rental")
	}
	return m, nil
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusPaid      TransactionStatus = "paid"
	StatusOverdue   TransactionStatus = "overdue"
	StatusCancelled TransactionStatus = "cancelled"
)

var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending: {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Open reports statuses that still expect a settlement.
func (s TransactionStatus) Open() bool {
	return s == StatusPending || s == StatusOverdue
}

func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// OpenStatuses are the statuses a paid cascade or the sweeper may touch.
var OpenStatuses = []TransactionStatus{StatusPending, StatusOverdue}

type Transaction struct {
	ID          int64             `json:"id"`
	Kind        TransactionKind   `json:"kind"`
	Direction   Direction         `json:"direction"`
	Module      Module            `json:"module"`
	Status      TransactionStatus `json:"status"`
	Amount      decimal.Decimal   `json:"amount"`
	DueDate     time.Time         `json:"due_date"`
	PaymentDate *time.Time        `json:"payment_date"`
	Description string            `json:"description"`
	ContractID  *int64            `json:"contract_id"`
	PropertyID  *int64            `json:"property_id"`
	ParentID    *int64            `json:"parent_id"`
	Metadata    Metadata          `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (t *Transaction) IsAutomatic() bool {
	return t.Metadata.Provenance == ProvenanceAutomatic
}

// IsRentChargeRoot reports whether paying t settles its riders.
func (t *Transaction) IsRentChargeRoot() bool {
	return t.ParentID == nil && t.Kind == KindRentCharge && t.Module == ModuleRental
}

// TransactionCreateRequest is the input for a manually entered transaction.
type TransactionCreateRequest struct {
	Kind        TransactionKind `validate:"required"`
	Direction   Direction
	Module      Module
	Amount      decimal.Decimal
	DueDate     time.Time `validate:"required"`
	ContractID  *int64    `validate:"omitempty,gt=0"`
	PropertyID  *int64    `validate:"omitempty,gt=0"`
	ParentID    *int64    `validate:"omitempty,gt=0"`
	Description string    `validate:"max=500"`
	Metadata    Metadata
}

func (p TransactionCreateRequest) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fromValidator(err)
	}
	if !p.Kind.IsValid() {
		return NewValidationError("kind", "unknown transaction kind")
	}
	if p.Direction != "" && !p.Direction.IsValid() {
		return NewValidationError("direction", "must be inflow or outflow")
	}
	if p.Module != "" && !p.Module.IsValid() {
		return NewValidationError("module", "must be one of general, rental")
	}
	if !p.Amount.IsPositive() {
		return NewValidationError("amount", "must be greater than zero")
	}
	if !p.Amount.Equal(p.Amount.Truncate(AmountScale)) {
		return NewValidationError("amount", "must have at most 2 decimal places")
	}
	if p.Amount.GreaterThanOrEqual(maxAmount) {
		return NewValidationError("amount", "must be less than 1000000000000")
	}
	return nil
}

// Amounts are stored as DECIMAL(14,2).
const AmountScale = 2

var maxAmount = decimal.New(1, 14-AmountScale)

type StatusUpdateRequest struct {
	ID          int64             `validate:"required,gt=0"`
	Status      TransactionStatus `validate:"required"`
	PaymentDate *time.Time
}

func (p StatusUpdateRequest) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fromValidator(err)
	}
	if !p.Status.IsValid() {
		return NewValidationError("status", "must be one of pending, paid, overdue, cancelled")
	}
	return nil
}

// TransactionFilter controls ledger List queries.
type TransactionFilter struct {
	Module       Module
	Direction    *Direction
	ExcludeKinds []TransactionKind
	Statuses     []TransactionStatus
	ContractID   *int64
	Limit        int // <= 0 lists everything, capped at MaxListLimit otherwise
	Offset       int
	// Primary reads from the write handle, for listings that must see what
	// the same request just committed.
	Primary bool
}

const MaxListLimit = 1000
