/**
 * @description
 * Shared error values for the application layer. Handlers and the consumer
 * translate these into HTTP statuses / ack decisions with errors.Is, keeping
 * the business logic free of transport concerns.
 *
 * @dependencies
 * - errors: Standard Go library.
 */

package app

import "errors"

var (
	// ErrInvalidInput marks malformed or out-of-range request input. It is
	// always wrapped with detail the caller can act on.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStateConflict marks a transition attempted from an ineligible
	// current state, usually a duplicate or out-of-order event.
	ErrStateConflict = errors.New("state conflict")

	// ErrPaymentStateMismatch means the processor intent does not reference
	// this booking or is not in the expected processor-side state.
	ErrPaymentStateMismatch = errors.New("payment intent state mismatch")

	// ErrPaymentProcessor wraps processor rejections and timeouts. The
	// booking stays in its prior state; the caller may retry.
	ErrPaymentProcessor = errors.New("payment processor error")

	// ErrScheduleUnavailable means the professional cannot take the
	// requested slot.
	ErrScheduleUnavailable = errors.New("professional is not available for the requested slot")

	// ErrForbidden marks an authenticated caller acting on a resource they
	// do not own.
	ErrForbidden = errors.New("caller is not permitted to act on this resource")
)
