package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/prom"
	"github.com/shopspring/decimal"
)

type FeeStore interface {
	ListPaidRentChargesWithoutFee(ctx context.Context) ([]*model.Transaction, error)
	InsertIgnoringConflict(ctx context.Context, txns ...*model.Transaction) ([]*model.Transaction, error)
}

type ContractLookup interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.Contract, error)
}

var hundred = decimal.NewFromInt(100)

// FeeDeriver books the administration fee earned on every paid rent charge.
type FeeDeriver struct {
	store     FeeStore
	contracts ContractLookup
	today     Today
	events    EventPublisher
}

func NewFeeDeriver(store FeeStore, contracts ContractLookup, today Today, events EventPublisher) *FeeDeriver {
	return &FeeDeriver{
		store:     store,
		contracts: contracts,
		today:     today,
		events:    publisherOrNoop(events),
	}
}

// Derive writes at most one fee per paid rent charge. Charges whose contract
// has no usable fee percentage or base amount are skipped. A fee written
// concurrently by another pass is absorbed silently.
func (d *FeeDeriver) Derive(ctx context.Context) ([]*model.Transaction, error) {
	charges, err := d.store.ListPaidRentChargesWithoutFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("list paid rent charges: %w", err)
	}
	if len(charges) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(charges))
	for _, c := range charges {
		ids = append(ids, *c.ContractID)
	}
	contracts, err := d.contracts.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}

	today := d.today()
	var derived []*model.Transaction
	for _, charge := range charges {
		contract, ok := contracts[*charge.ContractID]
		if !ok {
			logger.Warn("paid rent charge without contract", "transaction_id", charge.ID, "contract_id", *charge.ContractID)
			continue
		}
		fee := BuildFee(charge, contract, today)
		if fee == nil {
			continue
		}

		created, err := d.store.InsertIgnoringConflict(ctx, fee)
		if err != nil {
			return derived, fmt.Errorf("insert fee for transaction %d: %w", charge.ID, err)
		}
		if len(created) == 0 {
			continue
		}
		derived = append(derived, created[0])
		d.events.Publish(ctx, EventFeeDerived, created[0])
	}

	if len(derived) > 0 {
		logger.Info("administration fees derived", "count", len(derived))
		prom.AddFeesDerived(len(derived))
	}
	return derived, nil
}

// ComputeFee returns base * percent / 100 rounded half-up to cents. ok is
// false when either input is missing or not positive, or the fee rounds to 0.
func ComputeFee(base decimal.Decimal, percent *decimal.Decimal) (decimal.Decimal, bool) {
	if percent == nil || !percent.IsPositive() || !base.IsPositive() {
		return decimal.Zero, false
	}
	fee := base.Mul(*percent).Div(hundred).Round(2)
	if !fee.IsPositive() {
		return decimal.Zero, false
	}
	return fee, true
}

// BuildFee assembles the paid fee for charge. The base is the contract's
// agreed amount, not what was actually paid. Returns nil when no fee is due.
func BuildFee(charge *model.Transaction, contract *model.Contract, today time.Time) *model.Transaction {
	base := contract.AgreedAmount
	amount, ok := ComputeFee(base, contract.FeePercent)
	if !ok {
		return nil
	}

	paidOn := model.DateOf(today)
	if charge.PaymentDate != nil {
		paidOn = model.DateOf(*charge.PaymentDate)
	}
	sourceID := charge.ID
	percent := *contract.FeePercent

	competence := charge.Metadata.Competence
	description := model.KindAdministrationFee.Label()
	if competence != "" {
		description = fmt.Sprintf("%s %s", description, competence)
	}

	return &model.Transaction{
		Kind:        model.KindAdministrationFee,
		Direction:   model.DirectionInflow,
		Module:      model.ModuleRental,
		Status:      model.StatusPaid,
		Amount:      amount,
		DueDate:     paidOn,
		PaymentDate: &paidOn,
		Description: description,
		ContractID:  charge.ContractID,
		PropertyID:  charge.PropertyID,
		Metadata: model.Metadata{
			Provenance:          model.ProvenanceAutomatic,
			SourceTransactionID: &sourceID,
			Competence:          competence,
			FeePercent:          &percent,
			BaseAmount:          &base,
		},
	}
}
