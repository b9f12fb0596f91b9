package handlers

import (
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/shopspring/decimal"
)

// transactionResponse is the wire form of a ledger entry: calendar dates as
// YYYY-MM-DD and amounts as decimal strings.
type transactionResponse struct {
	ID          int64                   `json:"id"`
	Kind        model.TransactionKind   `json:"kind"`
	Direction   model.Direction         `json:"direction"`
	Module      model.Module            `json:"module"`
	Status      model.TransactionStatus `json:"status"`
	Amount      string                  `json:"amount"`
	DueDate     string                  `json:"due_date"`
	PaymentDate *string                 `json:"payment_date"`
	Description string                  `json:"description"`
	ContractID  *int64                  `json:"contract_id"`
	PropertyID  *int64                  `json:"property_id"`
	ParentID    *int64                  `json:"parent_id"`
	Metadata    model.Metadata          `json:"metadata"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

func toTransactionResponse(t *model.Transaction) transactionResponse {
	r := transactionResponse{
		ID:          t.ID,
		Kind:        t.Kind,
		Direction:   t.Direction,
		Module:      t.Module,
		Status:      t.Status,
		Amount:      t.Amount.StringFixed(2),
		DueDate:     t.DueDate.Format(model.DateLayout),
		Description: t.Description,
		ContractID:  t.ContractID,
		PropertyID:  t.PropertyID,
		ParentID:    t.ParentID,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.PaymentDate != nil {
		d := t.PaymentDate.Format(model.DateLayout)
		r.PaymentDate = &d
	}
	return r
}

func toTransactionResponses(items []*model.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, toTransactionResponse(t))
	}
	return out
}

type listResponse struct {
	Items []transactionResponse `json:"items"`
	Total int64                 `json:"total"`
}

type createTransactionRequest struct {
	Kind        string          `json:"kind"`
	Direction   string          `json:"direction"`
	Module      string          `json:"module"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	ContractID  *int64          `json:"contract_id"`
	PropertyID  *int64          `json:"property_id"`
	ParentID    *int64          `json:"parent_id"`
	Description string          `json:"description"`
	Metadata    model.Metadata  `json:"metadata"`
}

func (r createTransactionRequest) toModel() (model.TransactionCreateRequest, error) {
	out := model.TransactionCreateRequest{
		Kind:        model.TransactionKind(r.Kind),
		Direction:   model.Direction(r.Direction),
		Module:      model.Module(r.Module),
		Amount:      r.Amount,
		ContractID:  r.ContractID,
		PropertyID:  r.PropertyID,
		ParentID:    r.ParentID,
		Description: r.Description,
		Metadata:    r.Metadata,
	}
	if r.DueDate == "" {
		return out, model.NewValidationError("due_date", "is required")
	}
	due, err := model.ParseDate(r.DueDate)
	if err != nil {
		return out, model.NewValidationError("due_date", err.Error())
	}
	out.DueDate = due
	return out, nil
}

type statusUpdateRequest struct {
	Status      string  `json:"status"`
	PaymentDate *string `json:"payment_date"`
}

func (r statusUpdateRequest) toModel(id int64) (model.StatusUpdateRequest, error) {
	out := model.StatusUpdateRequest{
		ID:     id,
		Status: model.TransactionStatus(r.Status),
	}
	if r.PaymentDate != nil && *r.PaymentDate != "" {
		d, err := model.ParseDate(*r.PaymentDate)
		if err != nil {
			return out, model.NewValidationError("payment_date", err.Error())
		}
		out.PaymentDate = &d
	}
	return out, nil
}
