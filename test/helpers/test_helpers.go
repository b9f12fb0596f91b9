package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/internal/repository"
	"github.com/nimasrn/rental-billing/pkg/pg"
	"github.com/nimasrn/rental-billing/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory sqlite database with the billing
// schema. Read and write share one handle.
func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&repository.ContractEntity{},
		&repository.TransactionEntity{},
	)
	require.NoError(t, err)

	return pg.New(db, db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	adapter, err := redis.NewRedisAdapter(t.Name(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

// CreateTestContract inserts a contract row the way the contracts module
// would. Empty dates are stored as NULL.
func CreateTestContract(t *testing.T, db *pg.DB, c *model.Contract) *model.Contract {
	ctx := context.Background()
	e := &repository.ContractEntity{
		PropertyID:   c.PropertyID,
		Kind:         string(c.Kind),
		Status:       string(c.Status),
		AgreedAmount: c.AgreedAmount,
		DueDay:       c.DueDay,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
	}
	if c.FeePercent != nil {
		e.FeePercent = decimal.NewNullDecimal(*c.FeePercent)
	}
	require.NoError(t, db.Write(ctx).Create(e).Error)

	out := *c
	out.ID = e.ID
	return &out
}

// CreateTestTransaction writes txn as is, bypassing every business rule.
func CreateTestTransaction(t *testing.T, db *pg.DB, txn *model.Transaction) *model.Transaction {
	created, err := repository.NewTransactionRepository(db).Create(context.Background(), txn)
	require.NoError(t, err)
	return created
}

func GetTransaction(t *testing.T, db *pg.DB, id int64) *model.Transaction {
	txn, err := repository.NewTransactionRepository(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	return txn
}

// CountTransactions counts rows of kind; an empty kind counts everything.
func CountTransactions(t *testing.T, db *pg.DB, kind model.TransactionKind) int64 {
	q := db.Read(context.Background()).Model(&repository.TransactionEntity{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Date(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func Ptr[T any](v T) *T {
	return &v
}
