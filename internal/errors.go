package internal

import (
	"errors"
	"fmt"
)

// ErrUnknownReference marks a callback referencing an order the store cannot
// resolve. Such callbacks are rejected, never silently accepted.
var ErrUnknownReference = errors.New("unknown payment reference")

// ErrCreditNotSupported marks refund attempts; the PayGate API offers no
// refund operation to merchants.
var ErrCreditNotSupported = errors.New("paygate cannot issue credits or refunds")

// GatewayError is an infrastructure failure while talking to PayGate:
// network error, timeout, non-2xx status or an undecodable body. It is
// distinct from a declined payment and must never finalize an order.
type GatewayError struct {
	Message string
	Status  int
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gateway: %s: %v", e.Message, e.Cause)
	}
	if e.Status != 0 {
		return fmt.Sprintf("gateway: %s: status %d", e.Message, e.Status)
	}
	return fmt.Sprintf("gateway: %s", e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// DeclinedError is a user-visible payment failure: PayGate answered but did
// not confirm the payment.
type DeclinedError struct {
	PaymentRef string
	Code       string
	Message    string
}

func (e *DeclinedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment declined for %s: code %s; %s", e.PaymentRef, e.Code, e.Message)
	}
	return fmt.Sprintf("payment declined for %s: %s", e.PaymentRef, e.Message)
}

// ValidationError marks a malformed or unauthenticated callback payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
