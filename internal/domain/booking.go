/**
 * @description
 * Core booking domain model and the DTOs used by the booking API. A booking is
 * owned exclusively by the booking state machine; customer and professional
 * ids are foreign references into the identity collaborator, not owned rows.
 *
 * @notes
 * - Status moves pending → pending_payment → authorized → confirmed →
 *   in_progress → completed, with cancelled/declined absorbing before
 *   in_progress.
 * - Pricing terms are snapshotted onto the row at creation time so rule edits
 *   never retroactively reprice a booking.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Booking status values.
const (
	BookingStatusPending        = "pending"
	BookingStatusPendingPayment = "pending_payment"
	BookingStatusAuthorized     = "authorized"
	BookingStatusConfirmed      = "confirmed"
	BookingStatusInProgress     = "in_progress"
	BookingStatusCompleted      = "completed"
	BookingStatusCancelled      = "cancelled"
	BookingStatusDeclined       = "declined"
)

// Booking maps to the `bookings` table.
type Booking struct {
	ID              uuid.UUID  `json:"id"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	ProfessionalID  uuid.UUID  `json:"professional_id"`
	PlanID          *uuid.UUID `json:"plan_id,omitempty"`
	ServiceCategory string     `json:"service_category"`
	ServiceName     string     `json:"service_name"`
	DurationHours   float64    `json:"duration_hours"`
	ScheduledStart  time.Time  `json:"scheduled_start"`
	ScheduledEnd    time.Time  `json:"scheduled_end"`
	Status          string     `json:"status"`

	// Pricing snapshot taken at creation time.
	PricingRuleID           *uuid.UUID `json:"pricing_rule_id,omitempty"`
	BaseAmount              int64      `json:"base_amount"`
	CommissionAmount        int64      `json:"commission_amount"`
	DepositAmount           int64      `json:"deposit_amount"`
	LateCancelHours         int        `json:"late_cancel_hours"`
	LateCancelFeePercentage float64    `json:"late_cancel_fee_percentage"`

	AmountEstimated  int64  `json:"amount_estimated"`
	AmountAuthorized int64  `json:"amount_authorized"`
	AmountCaptured   int64  `json:"amount_captured"`
	AmountFinal      int64  `json:"amount_final"`
	LateCancelFee    int64  `json:"late_cancel_fee"`
	CreditApplied    int64  `json:"credit_applied"`
	Currency         string `json:"currency"`

	PaymentIntentID *string `json:"payment_intent_id,omitempty"`
	CancelReason    *string `json:"cancel_reason,omitempty"`
	CancelledBy     *string `json:"cancelled_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminalBookingStatus reports whether a status admits no further transitions.
func IsTerminalBookingStatus(status string) bool {
	switch status {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusDeclined:
		return true
	}
	return false
}

// CreateBookingRequest is the API DTO for creating a one-off booking.
type CreateBookingRequest struct {
	ProfessionalID  uuid.UUID `json:"professional_id"`
	ServiceCategory string    `json:"service_category"`
	ServiceName     string    `json:"service_name"`
	City            string    `json:"city"`
	Country         string    `json:"country"`
	HourlyRate      int64     `json:"hourly_rate"` // in minor units
	DurationHours   float64   `json:"duration_hours"`
	ScheduledStart  time.Time `json:"scheduled_start"`
	ApplyCredit     bool      `json:"apply_credit"`
}

// CancelBookingRequest is the API DTO for cancelling a booking.
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// CaptureBookingRequest is the API DTO for capturing a booking's payment.
// Amount is optional; nil captures the fully authorized amount.
type CaptureBookingRequest struct {
	Amount *int64 `json:"amount,omitempty"`
}

// AuthorizeBookingRequest carries the processor intent reference reported by
// the payment webhook or the client after card confirmation.
type AuthorizeBookingRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}
