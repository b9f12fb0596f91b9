package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

type Provenance string

const (
	ProvenanceManual    Provenance = "manual"
	ProvenanceAutomatic Provenance = "automatic"
)

func (p Provenance) IsValid() bool {
	return p == ProvenanceManual || p == ProvenanceAutomatic
}

// ContractTerms is the contract snapshot stored on a generated rent charge.
type ContractTerms struct {
	AgreedAmount decimal.Decimal  `json:"agreed_amount"`
	FeePercent   *decimal.Decimal `json:"fee_percent,omitempty"`
	StartDate    string           `json:"start_date,omitempty"`
	EndDate      string           `json:"end_date,omitempty"`
}

// Metadata is the schema-less bag stored with every transaction.
//
// Known keys per kind:
//
//	all kinds:           provenance
//	rent_charge:         competence, due_day, contract
//	administration_fee:  source_transaction_id, competence, fee_percent, base_amount
//
// Keys written by other modules are kept in Extra and written back untouched.
type Metadata struct {
	Provenance Provenance `json:"provenance"`

	Competence string         `json:"competence,omitempty"`
	DueDay     *int           `json:"due_day,omitempty"`
	Contract   *ContractTerms `json:"contract,omitempty"`

	SourceTransactionID *int64           `json:"source_transaction_id,omitempty"`
	FeePercent          *decimal.Decimal `json:"fee_percent,omitempty"`
	BaseAmount          *decimal.Decimal `json:"base_amount,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type metadataFields Metadata

var knownMetadataKeys = []string{
	"provenance", "competence", "due_day", "contract",
	"source_transaction_id", "fee_percent", "base_amount",
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(metadataFields(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}
	out := make(map[string]json.RawMessage, len(m.Extra)+len(knownMetadataKeys))
	for k, v := range m.Extra {
		out[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var fields metadataFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownMetadataKeys {
		delete(all, k)
	}
	if len(all) > 0 {
		fields.Extra = all
	} else {
		fields.Extra = nil
	}
	*m = Metadata(fields)
	return nil
}

// Value implements driver.Valuer so gorm stores Metadata as a JSON column.
func (m Metadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Metadata: unsupported type")
	}

	if len(bytes) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// ValidateFor checks the keys a kind relies on are present and well formed.
func (m Metadata) ValidateFor(kind TransactionKind) error {
	if !m.Provenance.IsValid() {
		return NewValidationError("metadata.provenance", "must be manual or automatic")
	}
	switch kind {
	case KindRentCharge:
		if _, err := ParseCompetence(m.Competence); err != nil {
			return NewValidationError("metadata.competence", err.Error())
		}
	case KindAdministrationFee:
		if m.SourceTransactionID == nil {
			return NewValidationError("metadata.source_transaction_id", "is required")
		}
	}
	return nil
}
