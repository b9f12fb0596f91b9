package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/rental-billing/internal/model"
	xhttp "github.com/nimasrn/rental-billing/pkg/http"
)

type LedgerService interface {
	Ledger(ctx context.Context, module model.Module, limit, offset int) ([]*model.Transaction, int64, error)
}

type LedgerHandler struct {
	svc LedgerService
}

func RegisterLedgerRoutes(e *router.Group, h *LedgerHandler) {
	e.GET("/ledger/{module}", h.GetLedger)
}

func NewLedgerHandler(svc LedgerService) *LedgerHandler {
	return &LedgerHandler{
		svc: svc,
	}
}

// GetLedger brings the module up to date and lists its receivables.
func (h *LedgerHandler) GetLedger(ctx *xhttp.RequestCtx) {
	module, err := model.ParseModule(pathParam(ctx, "module"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	offset, err := queryInt(ctx, "offset")
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	c, cancel := xhttp.Context(ctx)
	defer cancel()

	items, total, err := h.svc.Ledger(c, module, limit, offset)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse{Items: toTransactionResponses(items), Total: total})
}
