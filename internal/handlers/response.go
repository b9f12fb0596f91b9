package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/nimasrn/rental-billing/internal/idempotency"
	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/internal/services"
	xhttp "github.com/nimasrn/rental-billing/pkg/http"
	"github.com/nimasrn/rental-billing/pkg/logger"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", "error", err, "request_id", xhttp.RequestID(ctx))
		ctx.Error(xhttp.StatusText(xhttp.StatusInternalServerError), xhttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, resp errorResponse) {
	writeJSON(ctx, status, resp)
}

// writeServiceError maps a service error onto the response. Anything it does
// not recognise is a store failure: logged in full, reported generically.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var (
		verr *model.ValidationError
		rerr *services.RuleError
	)
	switch {
	case errors.As(err, &verr):
		writeError(ctx, xhttp.StatusBadRequest, errorResponse{Error: verr.Error(), Code: "VALIDATION_FAILED", Field: verr.Field})
	case errors.Is(err, services.ErrNotFound):
		writeError(ctx, xhttp.StatusNotFound, errorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, idempotency.ErrInvalidKey):
		writeError(ctx, xhttp.StatusBadRequest, errorResponse{Error: err.Error(), Code: "INVALID_IDEMPOTENCY_KEY"})
	case errors.Is(err, idempotency.ErrInFlight):
		writeError(ctx, xhttp.StatusConflict, errorResponse{Error: err.Error(), Code: "IDEMPOTENCY_IN_FLIGHT"})
	case errors.As(err, &rerr):
		writeError(ctx, ruleStatus(rerr), errorResponse{Error: err.Error(), Code: rerr.Code})
	default:
		logger.Error("request failed", "error", err, "path", string(ctx.Path()), "request_id", xhttp.RequestID(ctx))
		writeError(ctx, xhttp.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func ruleStatus(err *services.RuleError) int {
	switch err {
	case services.ErrStatusConflict:
		return xhttp.StatusConflict
	case services.ErrDeletionNotAllowed:
		return xhttp.StatusMethodNotAllowed
	}
	return xhttp.StatusUnprocessable
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) (int, error) {
	v := query(ctx, key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, model.NewValidationError(key, "must be a non-negative integer")
	}
	return n, nil
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

func pathID(ctx *xhttp.RequestCtx) (int64, error) {
	id, err := strconv.ParseInt(pathParam(ctx, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}
