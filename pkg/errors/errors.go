package errors

import (
	"fmt"
	"strings"
)

// ErrNotFound is returned when a resource does not exist
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when credentials are missing or invalid
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	return e.Message
}

// ErrInvalidStateTransition is returned when an order cannot move to the requested status
type ErrInvalidStateTransition struct {
	From interface{}
	To   interface{}
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid status transition from %v to %v", e.From, e.To)
}

// ErrValidation is returned for malformed or incomplete requests.
// Fields maps the offending field to a message.
type ErrValidation struct {
	Fields map[string]string
}

// NewValidation builds a validation error for a single field
func NewValidation(field, message string) *ErrValidation {
	return &ErrValidation{Fields: map[string]string{field: message}}
}

// Add records a field failure
func (e *ErrValidation) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// HasErrors reports whether any field failed
func (e *ErrValidation) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ErrValidation) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ErrInsufficientStock is returned when a stock adjustment would go below zero
type ErrInsufficientStock struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (%s): current %d, requested %d",
		e.ProductID, e.ProductName, e.Available, e.Requested)
}

// ErrCouponInvalid is returned when a coupon fails one of its eligibility checks
type ErrCouponInvalid struct {
	Code   string
	Reason string
}

func (e *ErrCouponInvalid) Error() string {
	return fmt.Sprintf("coupon %s is not valid: %s", e.Code, e.Reason)
}

// ErrSecurityMismatch is returned when the computed total disagrees with the
// amount confirmed by the payment gateway. Both values are in minor units.
// The message is for logs only and must not reach clients.
type ErrSecurityMismatch struct {
	CalculatedMinor int64
	ConfirmedMinor  int64
}

func (e *ErrSecurityMismatch) Error() string {
	return fmt.Sprintf("payment amount mismatch: calculated %d, confirmed %d", e.CalculatedMinor, e.ConfirmedMinor)
}

// ErrStorage wraps an unexpected failure of the transactional store
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *ErrStorage) Unwrap() error {
	return e.Err
}

// ErrPaymentNotConfirmed is returned when the gateway has not confirmed the payment
type ErrPaymentNotConfirmed struct {
	Reference string
	Status    string
}

func (e *ErrPaymentNotConfirmed) Error() string {
	return fmt.Sprintf("payment %s is not confirmed (status %s)", e.Reference, e.Status)
}

// ErrGateway wraps a failure talking to the payment gateway
type ErrGateway struct {
	Err error
}

func (e *ErrGateway) Error() string {
	return fmt.Sprintf("payment gateway error: %v", e.Err)
}

func (e *ErrGateway) Unwrap() error {
	return e.Err
}

// ErrPaymentReferenceInUse is returned when a checkout presents a payment
// reference that already backs another order
type ErrPaymentReferenceInUse struct {
	Reference string
}

func (e *ErrPaymentReferenceInUse) Error() string {
	return fmt.Sprintf("payment reference %s is already attached to an order", e.Reference)
}
