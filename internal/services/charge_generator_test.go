package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/test/fixtures"
	"github.com/nimasrn/rental-billing/test/helpers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestChargeGenerator_Coverage(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()
	contract := helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(7, 5))

	created, err := env.generator.Generate(ctx)
	require.NoError(t, err)
	require.Len(t, created, 3)

	wantDue := []string{"2025-01-05", "2025-02-05", "2025-03-05"}
	for i, comp := range []string{"2025-01", "2025-02", "2025-03"} {
		c := created[i]
		assert.Equal(t, comp, c.Metadata.Competence)
		assert.Equal(t, wantDue[i], c.DueDate.Format(model.DateLayout))
		assert.Equal(t, model.KindRentCharge, c.Kind)
		assert.Equal(t, model.StatusPending, c.Status)
		assert.Equal(t, model.DirectionInflow, c.Direction)
		assert.Equal(t, model.ModuleRental, c.Module)
		assert.Equal(t, model.ProvenanceAutomatic, c.Metadata.Provenance)
		assert.True(t, decimal.RequireFromString("1000").Equal(c.Amount))
		assert.Equal(t, contract.ID, *c.ContractID)
		assert.Equal(t, int64(7), *c.PropertyID)
		assert.Nil(t, c.ParentID)
		assert.Equal(t, "Rent "+comp, c.Description)
		assert.Equal(t, 5, *c.Metadata.DueDay)
		require.NotNil(t, c.Metadata.Contract)
		assert.Equal(t, "2025-03-31", c.Metadata.Contract.EndDate)
	}
	assert.Equal(t, 3, env.events.count(EventChargeGenerated))
}

func TestChargeGenerator_DueDayCapped(t *testing.T) {
	env := newTestEnv(t, "2025-01-10")
	helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(7, 31))

	created, err := env.generator.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 3)

	assert.Equal(t, "2025-01-28", created[0].DueDate.Format(model.DateLayout))
	assert.Equal(t, "2025-02-28", created[1].DueDate.Format(model.DateLayout))
	assert.Equal(t, "2025-03-28", created[2].DueDate.Format(model.DateLayout))
	assert.Equal(t, 31, *created[1].Metadata.DueDay)
}

func TestChargeGenerator_Idempotent(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()
	helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(7, 5))

	_, err := env.generator.Generate(ctx)
	require.NoError(t, err)

	again, err := env.generator.Generate(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, int64(3), helpers.CountTransactions(t, env.db, model.KindRentCharge))
}

func TestChargeGenerator_FillsGaps(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()
	contract := helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(7, 5))
	helpers.CreateTestTransaction(t, env.db,
		fixtures.NewRentCharge(contract.ID, 7, "2025-02", helpers.Date("2025-02-05"), model.StatusPaid))

	created, err := env.generator.Generate(ctx)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "2025-01", created[0].Metadata.Competence)
	assert.Equal(t, "2025-03", created[1].Metadata.Competence)
}

func TestChargeGenerator_CancelledChargeIsRegenerated(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	contract := helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(7, 5))
	helpers.CreateTestTransaction(t, env.db,
		fixtures.NewRentCharge(contract.ID, 7, "2025-01", helpers.Date("2025-01-05"), model.StatusCancelled))

	created, err := env.generator.Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 3)
}

func TestChargeGenerator_NoBackfillWithoutEndDate(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	helpers.CreateTestContract(t, env.db, fixtures.OpenEndedContract(7, 5))

	created, err := env.generator.Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Zero(t, helpers.CountTransactions(t, env.db, ""))
}

func TestChargeGenerator_ElapsedContractStops(t *testing.T) {
	env := newTestEnv(t, "2025-04-01")
	helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(7, 5))

	created, err := env.generator.Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestChargeGenerator_WholeWindowUpFront(t *testing.T) {
	env := newTestEnv(t, "2025-01-01")
	helpers.CreateTestContract(t, env.db, fixtures.YearContract(7, 2025, 10))

	created, err := env.generator.Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 12)
}

func TestChargeGenerator_IneligibleContracts(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")

	draft := fixtures.QuarterContract(1, 5)
	draft.Status = model.ContractStatusDraft
	helpers.CreateTestContract(t, env.db, draft)

	sale := fixtures.QuarterContract(2, 5)
	sale.Kind = model.ContractKindSale
	helpers.CreateTestContract(t, env.db, sale)

	noDueDay := fixtures.QuarterContract(3, 5)
	noDueDay.DueDay = nil
	helpers.CreateTestContract(t, env.db, noDueDay)

	created, err := env.generator.Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, created)
}

type MockContractFeed struct {
	mock.Mock
}

func (m *MockContractFeed) ListBillable(ctx context.Context, today time.Time) ([]*model.Contract, error) {
	args := m.Called(ctx, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Contract), args.Error(1)
}

type MockChargeStore struct {
	mock.Mock
}

func (m *MockChargeStore) ExistingCompetences(ctx context.Context, ids []int64) (map[int64]map[string]struct{}, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]map[string]struct{}), args.Error(1)
}

func (m *MockChargeStore) InsertIgnoringConflict(ctx context.Context, txns ...*model.Transaction) ([]*model.Transaction, error) {
	args := m.Called(ctx, txns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func TestChargeGenerator_FeedFailureWritesNothing(t *testing.T) {
	feed := new(MockContractFeed)
	store := new(MockChargeStore)
	ctx := context.Background()
	today := helpers.Date("2025-02-15")

	feed.On("ListBillable", ctx, today).Return(nil, errors.New("connection reset"))

	g := NewChargeGenerator(feed, store, FixedToday(today), nil)
	created, err := g.Generate(ctx)
	assert.Error(t, err)
	assert.Nil(t, created)

	store.AssertNotCalled(t, "InsertIgnoringConflict", mock.Anything, mock.Anything)
	feed.AssertExpectations(t)
}

func TestChargeGenerator_ExistingLoadFailureWritesNothing(t *testing.T) {
	feed := new(MockContractFeed)
	store := new(MockChargeStore)
	ctx := context.Background()
	today := helpers.Date("2025-02-15")

	contract := fixtures.QuarterContract(7, 5)
	contract.ID = 1
	feed.On("ListBillable", ctx, today).Return([]*model.Contract{contract}, nil)
	store.On("ExistingCompetences", ctx, []int64{1}).Return(nil, errors.New("timeout"))

	g := NewChargeGenerator(feed, store, FixedToday(today), nil)
	_, err := g.Generate(ctx)
	assert.Error(t, err)
	store.AssertNotCalled(t, "InsertIgnoringConflict", mock.Anything, mock.Anything)
}

func TestChargeGenerator_ConcurrentPassAbsorbed(t *testing.T) {
	feed := new(MockContractFeed)
	store := new(MockChargeStore)
	ctx := context.Background()
	today := helpers.Date("2025-02-15")

	contract := fixtures.QuarterContract(7, 5)
	contract.ID = 1
	feed.On("ListBillable", ctx, today).Return([]*model.Contract{contract}, nil)
	store.On("ExistingCompetences", ctx, []int64{1}).Return(map[int64]map[string]struct{}{}, nil)
	store.On("InsertIgnoringConflict", ctx, mock.MatchedBy(func(txns []*model.Transaction) bool {
		return len(txns) == 3
	})).Return(nil, nil)

	events := &recordingPublisher{}
	g := NewChargeGenerator(feed, store, FixedToday(today), events)
	created, err := g.Generate(ctx)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Zero(t, events.count(EventChargeGenerated))
	store.AssertExpectations(t)
}
