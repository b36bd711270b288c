/**
 * @description
 * Event payloads published to the message broker after state transitions, and
 * the payment processor webhook event consumed from the broker. Notification
 * and analytics collaborators subscribe to the published events; publish
 * failures never roll back a state transition.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for published lifecycle events.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCompleted = "booking.completed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingDeclined  = "booking.declined"
	EventPlanAdvanced     = "plan.advanced"
	EventPlanPaused       = "plan.paused"
	EventPlanResumed      = "plan.resumed"
	EventPlanCancelled    = "plan.cancelled"
	EventCreditEarned     = "credit.earned"
	EventCreditConsumed   = "credit.consumed"
)

// BookingEventPayload is published on booking lifecycle transitions.
type BookingEventPayload struct {
	BookingID      uuid.UUID  `json:"booking_id"`
	CustomerID     uuid.UUID  `json:"customer_id"`
	ProfessionalID uuid.UUID  `json:"professional_id"`
	PlanID         *uuid.UUID `json:"plan_id,omitempty"`
	Status         string     `json:"status"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	Reason         *string    `json:"reason,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// PlanEventPayload is published on plan lifecycle transitions.
type PlanEventPayload struct {
	PlanID          uuid.UUID `json:"plan_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	ProfessionalID  uuid.UUID `json:"professional_id"`
	Status          string    `json:"status"`
	NextBookingDate time.Time `json:"next_booking_date"`
	Timestamp       time.Time `json:"timestamp"`
}

// CreditEventPayload is published when trial credit is earned or consumed.
type CreditEventPayload struct {
	CustomerID      uuid.UUID `json:"customer_id"`
	ProfessionalID  uuid.UUID `json:"professional_id"`
	Amount          int64     `json:"amount"`
	CreditAvailable int64     `json:"credit_available"`
	Timestamp       time.Time `json:"timestamp"`
}

// PaymentIntentEvent is the processor webhook payload relayed over the broker.
// Deliveries may repeat, so the transitions they drive must be idempotent.
type PaymentIntentEvent struct {
	IntentID  string `json:"intent_id"`
	BookingID string `json:"booking_id"`
	Status    string `json:"status"` // e.g. 'requires_capture', 'succeeded', 'failed'
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason,omitempty"`
}
