package services

import (
	"context"
	"testing"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/internal/repository"
	"github.com/nimasrn/rental-billing/pkg/pg"
	"github.com/nimasrn/rental-billing/test/fixtures"
	"github.com/nimasrn/rental-billing/test/helpers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_RentalLedger(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()
	contract := helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(7, 5))

	items, total, err := env.ledger.Ledger(ctx, model.ModuleRental, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 3)
	assert.Equal(t, "2025-03", items[0].Metadata.Competence)
	assert.Equal(t, "2025-01", items[2].Metadata.Competence)
	// generated after the sweep of this pass
	for _, item := range items {
		assert.Equal(t, model.StatusPending, item.Status)
	}

	_, err = env.settlement.UpdateStatus(ctx, model.StatusUpdateRequest{ID: items[1].ID, Status: model.StatusPaid})
	require.NoError(t, err)

	items, total, err = env.ledger.Ledger(ctx, model.ModuleRental, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total, "fees stay out of the listing")
	byCompetence := map[string]*model.Transaction{}
	for _, item := range items {
		byCompetence[item.Metadata.Competence] = item
	}
	assert.Equal(t, model.StatusOverdue, byCompetence["2025-01"].Status)
	assert.Equal(t, model.StatusPaid, byCompetence["2025-02"].Status)
	assert.Equal(t, model.StatusPending, byCompetence["2025-03"].Status)

	assert.Equal(t, int64(1), helpers.CountTransactions(t, env.db, model.KindAdministrationFee))
	assert.Equal(t, int64(3), helpers.CountTransactions(t, env.db, model.KindRentCharge))

	fees, _, err := env.transactions.List(ctx, model.TransactionFilter{ContractID: &contract.ID, Statuses: []model.TransactionStatus{model.StatusPaid}})
	require.NoError(t, err)
	assert.Len(t, fees, 2)
}

func TestLedgerService_GeneralModuleSkipsGeneration(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()
	helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(7, 5))
	outflow := manualEntry(model.StatusPending)
	outflow.DueDate = helpers.Date("2025-01-01")
	outflow = helpers.CreateTestTransaction(t, env.db, outflow)
	income := manualEntry(model.StatusPending)
	income.Direction = model.DirectionInflow
	income.DueDate = helpers.Date("2025-02-01")
	income = helpers.CreateTestTransaction(t, env.db, income)

	items, total, err := env.ledger.Ledger(ctx, model.ModuleGeneral, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "outflows are not listed")
	require.Len(t, items, 1)
	assert.Equal(t, income.ID, items[0].ID)
	assert.Equal(t, model.StatusOverdue, items[0].Status)

	// outflows are never swept
	assert.Equal(t, model.StatusPending, helpers.GetTransaction(t, env.db, outflow.ID).Status)
	assert.Zero(t, helpers.CountTransactions(t, env.db, model.KindRentCharge))
}

func TestLedgerService_InvalidModule(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")

	_, _, err := env.ledger.Ledger(context.Background(), model.Module("sales"), 0, 0)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLedgerService_CreateManual(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()

	req := fixtures.NewManualRequest(model.KindRepair, "75.50", "2025-03-01")
	req.Metadata = model.Metadata{Provenance: model.ProvenanceAutomatic}

	created, err := env.ledger.CreateManual(ctx, req)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, model.ProvenanceManual, created.Metadata.Provenance)
	assert.Equal(t, model.DirectionInflow, created.Direction)
	assert.Equal(t, model.ModuleGeneral, created.Module)
	assert.True(t, decimal.RequireFromString("75.50").Equal(created.Amount))
	assert.Nil(t, created.ContractID)
	assert.Equal(t, 1, env.events.count(EventTransactionCreated))
}

func TestLedgerService_CreateManual_Rejections(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()

	for _, kind := range []model.TransactionKind{model.KindRentCharge, model.KindAdministrationFee} {
		_, err := env.ledger.CreateManual(ctx, fixtures.NewManualRequest(kind, "10", "2025-03-01"))
		assert.ErrorIs(t, err, ErrAutomaticOnlyKind)
	}

	_, err := env.ledger.CreateManual(ctx, fixtures.NewManualRequest("bonus", "10", "2025-03-01"))
	assert.ErrorIs(t, err, model.ErrValidation)

	for _, amount := range []string{"0", "10.005", "1000000000000", "-5"} {
		_, err = env.ledger.CreateManual(ctx, fixtures.NewManualRequest(model.KindRepair, amount, "2025-03-01"))
		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr, amount)
		assert.Equal(t, "amount", verr.Field, amount)
	}

	// trailing zeros and the largest storable value are fine
	for _, amount := range []string{"10.500", "999999999999.99"} {
		assert.NoError(t, fixtures.NewManualRequest(model.KindRepair, amount, "2025-03-01").Validate(), amount)
	}

	noContract := fixtures.NewManualRequest(model.KindRepair, "10", "2025-03-01")
	noContract.PropertyID = helpers.Ptr(int64(404))
	_, err = env.ledger.CreateManual(ctx, noContract)
	assert.ErrorIs(t, err, ErrContractNotResolved)

	unknownContract := fixtures.NewManualRequest(model.KindRepair, "10", "2025-03-01")
	unknownContract.ContractID = helpers.Ptr(int64(404))
	_, err = env.ledger.CreateManual(ctx, unknownContract)
	assert.ErrorIs(t, err, ErrContractNotResolved)

	assert.Zero(t, helpers.CountTransactions(t, env.db, ""))
}

func TestLedgerService_CreateManual_ResolvesContract(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()

	helpers.CreateTestContract(t, env.db, fixtures.YearContract(7, 2024, 5))
	current := helpers.CreateTestContract(t, env.db, fixtures.YearContract(7, 2025, 5))

	req := fixtures.NewManualRequest(model.KindRepair, "200", "2025-03-01")
	req.PropertyID = helpers.Ptr(int64(7))
	req.Direction = model.DirectionOutflow

	created, err := env.ledger.CreateManual(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, created.ContractID)
	assert.Equal(t, current.ID, *created.ContractID)
	assert.Equal(t, model.ModuleRental, created.Module)
	assert.Equal(t, model.DirectionOutflow, created.Direction)

	mismatch := fixtures.NewManualRequest(model.KindRepair, "200", "2025-03-01")
	mismatch.PropertyID = helpers.Ptr(int64(7))
	mismatch.ContractID = helpers.Ptr(current.ID + 100)
	_, err = env.ledger.CreateManual(ctx, mismatch)
	assert.ErrorIs(t, err, model.ErrValidation)

	byContract := fixtures.NewManualRequest(model.KindDeposit, "3000", "2025-03-01")
	byContract.ContractID = helpers.Ptr(current.ID)
	created, err = env.ledger.CreateManual(ctx, byContract)
	require.NoError(t, err)
	assert.Equal(t, int64(7), *created.PropertyID)
}

func TestLedgerService_CreateManual_Rider(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()

	contract := helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(7, 5))
	root := helpers.CreateTestTransaction(t, env.db,
		fixtures.NewRentCharge(contract.ID, 7, "2025-01", helpers.Date("2025-01-05"), model.StatusOverdue))

	req := fixtures.NewManualRequest(model.KindLateFee, "25", "2025-02-20")
	req.ParentID = &root.ID

	rider, err := env.ledger.CreateManual(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, root.ID, *rider.ParentID)
	assert.Equal(t, contract.ID, *rider.ContractID)
	assert.Equal(t, int64(7), *rider.PropertyID)
	assert.Equal(t, model.ModuleRental, rider.Module)

	_, err = env.settlement.UpdateStatus(ctx, model.StatusUpdateRequest{ID: root.ID, Status: model.StatusPaid})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, helpers.GetTransaction(t, env.db, rider.ID).Status)

	// a paid root no longer takes riders
	_, err = env.ledger.CreateManual(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidParent)

	// riders only hang off roots
	req.ParentID = &rider.ID
	_, err = env.ledger.CreateManual(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidParent)

	req.ParentID = helpers.Ptr(int64(999))
	_, err = env.ledger.CreateManual(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidParent)
}

func TestLedgerService_GetAndDelete(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()
	entry := helpers.CreateTestTransaction(t, env.db, manualEntry(model.StatusPending))

	got, err := env.ledger.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)

	_, err = env.ledger.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	err = env.ledger.Delete(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrDeletionNotAllowed)
	assert.True(t, IsRuleError(err))
	assert.Equal(t, int64(1), helpers.CountTransactions(t, env.db, ""))

	assert.ErrorIs(t, env.ledger.Delete(ctx, 999), ErrNotFound)
}

func TestLedgerService_RunBillingPass(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()
	helpers.CreateTestContract(t, env.db, fixtures.QuarterContract(8, 10))

	first, err := env.ledger.RunBillingPass(ctx, model.ModuleRental)
	require.NoError(t, err)
	assert.Empty(t, first.Overdue)
	assert.Len(t, first.Generated, 3)
	assert.Empty(t, first.Fees)

	second, err := env.ledger.RunBillingPass(ctx, model.ModuleRental)
	require.NoError(t, err)
	assert.Len(t, second.Overdue, 2, "January and February fell due on the 10th")
	assert.Empty(t, second.Generated)
	assert.Equal(t, 3, env.events.count(EventChargeGenerated))
	assert.Equal(t, 2, env.events.count(EventTransactionOverdue))

	_, err = env.ledger.RunBillingPass(ctx, model.Module("sales"))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLedgerService_CreateManual_SourceKeyInMetadata(t *testing.T) {
	env := newTestEnv(t, "2025-02-15")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		req := fixtures.NewManualRequest(model.KindAdjustment, "30", "2025-03-01")
		req.Metadata = model.Metadata{SourceTransactionID: helpers.Ptr(int64(42))}

		created, err := env.ledger.CreateManual(ctx, req)
		require.NoError(t, err, "entry %d", i)
		assert.Equal(t, int64(42), *created.Metadata.SourceTransactionID)
	}
	assert.Equal(t, int64(2), helpers.CountTransactions(t, env.db, model.KindAdjustment))
}

func TestLedgerService_LedgerReadsWhatThePassWrote(t *testing.T) {
	ctx := context.Background()
	primary := helpers.SetupTestDB(t)
	// a replica that has the contracts but has not caught up with the ledger
	replica := helpers.SetupTestDB(t)
	helpers.CreateTestContract(t, primary, fixtures.QuarterContract(7, 5))
	helpers.CreateTestContract(t, replica, fixtures.QuarterContract(7, 5))

	db := pg.New(replica.Read(ctx), primary.Write(ctx))
	clock := FixedToday(helpers.Date("2025-02-15"))
	contracts := repository.NewContractRepository(db)
	transactions := repository.NewTransactionRepository(db)
	ledger := NewLedgerService(transactions, contracts,
		NewSweeper(transactions, clock, nil),
		NewChargeGenerator(contracts, transactions, clock, nil),
		NewFeeDeriver(transactions, contracts, clock, nil),
		nil,
	)

	items, total, err := ledger.Ledger(ctx, model.ModuleRental, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 3)
	assert.Zero(t, helpers.CountTransactions(t, replica, model.KindRentCharge))
}
