package fixtures

import (
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/shopspring/decimal"
)

func date(s string) *time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func intPtr(v int) *int {
	return &v
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// QuarterContract runs 2025-01-01..2025-03-31 at 1000.00 with a 10% fee.
func QuarterContract(propertyID int64, dueDay int) *model.Contract {
	return &model.Contract{
		PropertyID:   propertyID,
		Kind:         model.ContractKindRental,
		Status:       model.ContractStatusCurrent,
		AgreedAmount: decimal.RequireFromString("1000.00"),
		FeePercent:   decimalPtr("10"),
		DueDay:       intPtr(dueDay),
		StartDate:    date("2025-01-01"),
		EndDate:      date("2025-03-31"),
	}
}

// OpenEndedContract is QuarterContract without an end date.
func OpenEndedContract(propertyID int64, dueDay int) *model.Contract {
	c := QuarterContract(propertyID, dueDay)
	c.EndDate = nil
	return c
}

func YearContract(propertyID int64, year int, dueDay int) *model.Contract {
	c := QuarterContract(propertyID, dueDay)
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	c.StartDate = &start
	c.EndDate = &end
	return c
}

func NewRentCharge(contractID, propertyID int64, competence string, dueDate time.Time, status model.TransactionStatus) *model.Transaction {
	return &model.Transaction{
		Kind:        model.KindRentCharge,
		Direction:   model.DirectionInflow,
		Module:      model.ModuleRental,
		Status:      status,
		Amount:      decimal.RequireFromString("1000.00"),
		DueDate:     dueDate,
		Description: "Rent " + competence,
		ContractID:  &contractID,
		PropertyID:  &propertyID,
		Metadata: model.Metadata{
			Provenance: model.ProvenanceAutomatic,
			Competence: competence,
		},
	}
}

// NewRider is a manual late fee hanging off parentID.
func NewRider(parentID, contractID int64, status model.TransactionStatus) *model.Transaction {
	return &model.Transaction{
		Kind:       model.KindLateFee,
		Direction:  model.DirectionInflow,
		Module:     model.ModuleRental,
		Status:     status,
		Amount:     decimal.RequireFromString("25.00"),
		DueDate:    *date("2025-01-10"),
		ContractID: &contractID,
		ParentID:   &parentID,
		Metadata:   model.Metadata{Provenance: model.ProvenanceManual},
	}
}

func NewManualRequest(kind model.TransactionKind, amount string, due string) model.TransactionCreateRequest {
	return model.TransactionCreateRequest{
		Kind:        kind,
		Amount:      decimal.RequireFromString(amount),
		DueDate:     *date(due),
		Description: "manual entry",
	}
}
