package repository

import (
	"testing"
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// every pooled connection would get its own empty :memory: database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(&ContractEntity{}, &TransactionEntity{})
	require.NoError(t, err)

	return &testDB{
		DB:    pg.New(db, db),
		rawDB: db,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedContract(t *testing.T, db *testDB, c *model.Contract) *model.Contract {
	e := toContractEntity(c)
	require.NoError(t, db.rawDB.Create(e).Error)
	return toContractModel(e)
}

func rentalContract(propertyID int64, start, end string, dueDay int) *model.Contract {
	c := &model.Contract{
		PropertyID:   propertyID,
		Kind:         model.ContractKindRental,
		Status:       model.ContractStatusCurrent,
		AgreedAmount: decimal.RequireFromString("1000.00"),
		FeePercent:   ptr(decimal.NewFromInt(10)),
		DueDay:       ptr(dueDay),
	}
	if start != "" {
		c.StartDate = ptr(day(start))
	}
	if end != "" {
		c.EndDate = ptr(day(end))
	}
	return c
}

func rentCharge(contractID int64, competence string, due string, status model.TransactionStatus) *model.Transaction {
	return &model.Transaction{
		Kind:       model.KindRentCharge,
		Direction:  model.DirectionInflow,
		Module:     model.ModuleRental,
		Status:     status,
		Amount:     decimal.RequireFromString("1000.00"),
		DueDate:    day(due),
		ContractID: ptr(contractID),
		PropertyID: ptr(int64(7)),
		Metadata: model.Metadata{
			Provenance: model.ProvenanceAutomatic,
			Competence: competence,
		},
	}
}
