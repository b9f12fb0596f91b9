package handlers

import (
	"context"

	"github.com/nimasrn/rental-billing/internal/model"
	xhttp "github.com/nimasrn/rental-billing/pkg/http"
	"github.com/stretchr/testify/mock"
	"github.com/valyala/fasthttp"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Ledger(ctx context.Context, module model.Module, limit, offset int) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, module, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) CreateManual(ctx context.Context, req model.TransactionCreateRequest) (*model.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) UpdateStatus(ctx context.Context, req model.StatusUpdateRequest) (*model.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func setupTestContext(method, path string, body []byte, params map[string]string) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	for k, v := range params {
		ctx.SetUserValue(k, v)
	}
	return ctx
}
