package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/prom"
)

type ContractFeed interface {
	ListBillable(ctx context.Context, today time.Time) ([]*model.Contract, error)
}

type ChargeStore interface {
	ExistingCompetences(ctx context.Context, contractIDs []int64) (map[int64]map[string]struct{}, error)
	InsertIgnoringConflict(ctx context.Context, txns ...*model.Transaction) ([]*model.Transaction, error)
}

// ChargeGenerator fills in the missing monthly rent charges of every billable
// rental contract.
type ChargeGenerator struct {
	contracts ContractFeed
	store     ChargeStore
	today     Today
	events    EventPublisher
}

func NewChargeGenerator(contracts ContractFeed, store ChargeStore, today Today, events EventPublisher) *ChargeGenerator {
	return &ChargeGenerator{
		contracts: contracts,
		store:     store,
		today:     today,
		events:    publisherOrNoop(events),
	}
}

// Generate writes one pending rent charge per (contract, competence) that has
// none yet, covering the whole contract period. All missing charges go out
// in one all-or-nothing batch; a concurrent pass that got there first makes
// this one a no-op. Returns the charges actually written.
func (g *ChargeGenerator) Generate(ctx context.Context) ([]*model.Transaction, error) {
	today := g.today()

	contracts, err := g.contracts.ListBillable(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list billable contracts: %w", err)
	}
	if len(contracts) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(contracts))
	for _, c := range contracts {
		ids = append(ids, c.ID)
	}
	existing, err := g.store.ExistingCompetences(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load existing competences: %w", err)
	}

	var batch []*model.Transaction
	for _, c := range contracts {
		if !c.BillableOn(today) {
			continue
		}
		have := existing[c.ID]
		for _, comp := range Competences(c.StartDate, c.EndDate) {
			if _, ok := have[comp.String()]; ok {
				continue
			}
			batch = append(batch, BuildRentCharge(c, comp))
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}

	created, err := g.store.InsertIgnoringConflict(ctx, batch...)
	if err != nil {
		return nil, fmt.Errorf("insert rent charges: %w", err)
	}
	if len(created) == 0 {
		logger.Info("rent charge batch already written by a concurrent pass", "size", len(batch))
		return nil, nil
	}

	logger.Info("rent charges generated", "count", len(created), "contracts", len(contracts))
	prom.AddChargesGenerated(len(created))
	for _, txn := range created {
		g.events.Publish(ctx, EventChargeGenerated, txn)
	}
	return created, nil
}

// BuildRentCharge assembles the pending rent charge of contract c for comp.
// c must have a due day.
func BuildRentCharge(c *model.Contract, comp model.Competence) *model.Transaction {
	contractID := c.ID
	propertyID := c.PropertyID
	dueDay := *c.DueDay

	return &model.Transaction{
		Kind:        model.KindRentCharge,
		Direction:   model.DirectionInflow,
		Module:      model.ModuleRental,
		Status:      model.StatusPending,
		Amount:      c.AgreedAmount,
		DueDate:     comp.DueDate(dueDay),
		Description: fmt.Sprintf("%s %s", model.KindRentCharge.Label(), comp),
		ContractID:  &contractID,
		PropertyID:  &propertyID,
		Metadata: model.Metadata{
			Provenance: model.ProvenanceAutomatic,
			Competence: comp.String(),
			DueDay:     &dueDay,
			Contract:   c.Terms(),
		},
	}
}
