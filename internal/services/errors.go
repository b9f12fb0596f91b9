package services

import (
	"errors"
)

// RuleError is a business rule violation. It is reported to the caller with
// its code and leaves the ledger untouched.
type RuleError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RuleError) Error() string {
	return e.Message
}

func newRuleError(code, message string) *RuleError {
	return &RuleError{Code: code, Message: message}
}

var (
	ErrPaidImmutable           = newRuleError("PAID_IMMUTABLE", "paid transactions cannot be changed")
	ErrAutomaticNotCancellable = newRuleError("AUTOMATIC_NOT_CANCELLABLE", "automatically generated transactions cannot be cancelled")
	ErrInvalidTransition       = newRuleError("INVALID_TRANSITION", "status transition is not allowed")
	ErrContractNotResolved     = newRuleError("CONTRACT_NOT_RESOLVED", "no current contract found for the given property or contract")
	ErrAutomaticOnlyKind       = newRuleError("AUTOMATIC_ONLY_KIND", "this kind of transaction is generated automatically and cannot be created manually")
	ErrInvalidParent           = newRuleError("INVALID_PARENT", "parent must be an open rent charge")
	ErrDeletionNotAllowed      = newRuleError("DELETION_NOT_ALLOWED", "transactions cannot be deleted, cancel them instead")
	ErrStatusConflict          = newRuleError("STATUS_CONFLICT", "transaction status was changed by another request, reload and retry")
)

// ErrNotFound is returned when the addressed transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// IsRuleError reports whether err is a business rule violation.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}
