package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/rental-billing/internal/idempotency"
	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/internal/services"
	xhttp "github.com/nimasrn/rental-billing/pkg/http"
	"github.com/nimasrn/rental-billing/pkg/logger"
)

const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotencyReplayed = "Idempotency-Replayed"
)

type TransactionService interface {
	CreateManual(ctx context.Context, req model.TransactionCreateRequest) (*model.Transaction, error)
	Get(ctx context.Context, id int64) (*model.Transaction, error)
	Delete(ctx context.Context, id int64) error
}

type StatusService interface {
	UpdateStatus(ctx context.Context, req model.StatusUpdateRequest) (*model.Transaction, error)
}

type TransactionHandler struct {
	svc        TransactionService
	settlement StatusService
	// nil disables Idempotency-Key handling
	guard *idempotency.Guard
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.POST("/transactions", h.CreateTransaction)
	e.GET("/transactions/{id}", h.GetTransaction)
	e.PUT("/transactions/{id}/status", h.UpdateStatus)
	e.DELETE("/transactions/{id}", h.DeleteTransaction)
}

func NewTransactionHandler(svc TransactionService, settlement StatusService, guard *idempotency.Guard) *TransactionHandler {
	return &TransactionHandler{
		svc:        svc,
		settlement: settlement,
		guard:      guard,
	}
}

func (h *TransactionHandler) CreateTransaction(ctx *xhttp.RequestCtx) {
	var body createTransactionRequest
	if err := readJSON(ctx, &body); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "VALIDATION_FAILED"})
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	c, cancel := xhttp.Context(ctx)
	defer cancel()

	var claim *idempotency.Claim
	if key := string(ctx.Request.Header.Peek(HeaderIdempotencyKey)); key != "" && h.guard != nil {
		var id int64
		id, claim, err = h.guard.Begin(c, key)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		if claim == nil {
			h.replay(c, ctx, id)
			return
		}
		defer claim.Release(c)
	}

	txn, err := h.svc.CreateManual(c, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if err = claim.Complete(c, txn.ID); err != nil {
		logger.Warn("transaction created but idempotency result not stored", "id", txn.ID, "error", err)
	}
	writeJSON(ctx, xhttp.StatusCreated, toTransactionResponse(txn))
}

// replay answers a repeated Idempotency-Key with the transaction the first
// request created.
func (h *TransactionHandler) replay(c context.Context, ctx *xhttp.RequestCtx, id int64) {
	txn, err := h.svc.Get(c, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.Header.Set(HeaderIdempotencyReplayed, "true")
	writeJSON(ctx, xhttp.StatusCreated, toTransactionResponse(txn))
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	c, cancel := xhttp.Context(ctx)
	defer cancel()

	txn, err := h.svc.Get(c, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, toTransactionResponse(txn))
}

func (h *TransactionHandler) UpdateStatus(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	var body statusUpdateRequest
	if err = readJSON(ctx, &body); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "VALIDATION_FAILED"})
		return
	}
	req, err := body.toModel(id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	c, cancel := xhttp.Context(ctx)
	defer cancel()

	txn, err := h.settlement.UpdateStatus(c, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, toTransactionResponse(txn))
}

// DeleteTransaction always refuses; entries are voided by cancelling them.
func (h *TransactionHandler) DeleteTransaction(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	c, cancel := xhttp.Context(ctx)
	defer cancel()

	err = h.svc.Delete(c, id)
	if err == nil {
		err = services.ErrDeletionNotAllowed
	}
	writeServiceError(ctx, err)
}
