package services

import (
	"context"
	"sync"
	"testing"

	"github.com/nimasrn/rental-billing/internal/repository"
	"github.com/nimasrn/rental-billing/pkg/pg"
	"github.com/nimasrn/rental-billing/test/helpers"
)

type recordedEvent struct {
	Type    string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Payload: payload})
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	db           *pg.DB
	contracts    *repository.ContractRepository
	transactions *repository.TransactionRepository
	events       *recordingPublisher
	generator    *ChargeGenerator
	deriver      *FeeDeriver
	sweeper      *Sweeper
	settlement   *SettlementService
	ledger       *LedgerService
}

func newTestEnv(t *testing.T, today string) *testEnv {
	db := helpers.SetupTestDB(t)
	clock := FixedToday(helpers.Date(today))

	env := &testEnv{
		db:           db,
		contracts:    repository.NewContractRepository(db),
		transactions: repository.NewTransactionRepository(db),
		events:       &recordingPublisher{},
	}
	env.generator = NewChargeGenerator(env.contracts, env.transactions, clock, env.events)
	env.deriver = NewFeeDeriver(env.transactions, env.contracts, clock, env.events)
	env.sweeper = NewSweeper(env.transactions, clock, env.events)
	env.settlement = NewSettlementService(env.transactions, clock, env.events)
	env.ledger = NewLedgerService(env.transactions, env.contracts, env.sweeper, env.generator, env.deriver, env.events)
	return env
}
