package models

import (
	"errors"
	"fmt"
)

// ErrorKind groups domain failures by how callers should react to them.
type ErrorKind string

const (
	KindInputValidation        ErrorKind = "InputValidation"
	KindInventoryConflict      ErrorKind = "InventoryConflict"
	KindPricingUnavailable     ErrorKind = "PricingUnavailable"
	KindVoucherRejected        ErrorKind = "VoucherRejected"
	KindPersistenceFailure     ErrorKind = "PersistenceFailure"
	KindSignatureInvalid       ErrorKind = "SignatureInvalid"
	KindReconciliationConflict ErrorKind = "ReconciliationConflict"
	KindNotFound               ErrorKind = "NotFound"
)

// DomainError is a business-rule failure with a stable code.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any DomainError with the same code, so wrapped copies carrying a
// different message still compare equal to the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newDomainError(kind ErrorKind, code, msg string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: msg}
}

var (
	ErrDateNotAvailable      = newDomainError(KindInventoryConflict, "DateNotAvailable", "no active availability for this date")
	ErrInsufficientInventory = newDomainError(KindInventoryConflict, "InsufficientInventory", "not enough slots left")

	ErrNoPriceAvailable = newDomainError(KindPricingUnavailable, "NoPriceAvailable", "no price configured for this date")

	ErrInvalidCode          = newDomainError(KindVoucherRejected, "InvalidCode", "voucher code does not exist")
	ErrVoucherExpired       = newDomainError(KindVoucherRejected, "Expired", "voucher is outside its validity window")
	ErrVoucherNotApplicable = newDomainError(KindVoucherRejected, "NotApplicable", "voucher does not apply to this product")
	ErrUsageLimitReached    = newDomainError(KindVoucherRejected, "UsageLimitReached", "voucher usage limit reached")

	ErrSignatureInvalid = newDomainError(KindSignatureInvalid, "InvalidSignature", "callback signature mismatch")

	ErrBookingNotFound     = newDomainError(KindReconciliationConflict, "BookingNotFound", "no payment matches the callback reference")
	ErrAlreadyReconciled   = newDomainError(KindReconciliationConflict, "AlreadyReconciled", "payment already settled")
	ErrAmountMismatch      = newDomainError(KindReconciliationConflict, "AmountMismatch", "callback amount differs from payment amount")
	ErrNotCancellable      = newDomainError(KindReconciliationConflict, "NotCancellable", "only pending bookings can be cancelled")
	ErrPaymentWindowClosed = newDomainError(KindReconciliationConflict, "PaymentWindowClosed", "payment window has closed")
	ErrNotFound            = newDomainError(KindNotFound, "NotFound", "resource not found")
	ErrUnsupportedGateway  = newDomainError(KindInputValidation, "UnsupportedGateway", "payment method has no gateway configured")
)

// ValidationError reports a malformed request. It is returned before any
// transaction starts.
func ValidationError(msg string) error {
	return newDomainError(KindInputValidation, "InvalidRequest", msg)
}

// PersistenceError wraps a storage failure so callers can tell it apart from
// business-rule rejections.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// KindOf classifies err. Errors that are not domain errors count as persistence
// failures.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindPersistenceFailure
}

// CodeOf returns the domain error code or "PersistenceFailure".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return string(KindPersistenceFailure)
}
