/**
 * @description
 * Recurring plan domain model. A plan is a standing arrangement between a
 * customer and a professional that spawns bookings on a fixed cadence until
 * paused or cancelled. The service template carried on the plan is an explicit
 * schema type validated at the API boundary, not an opaque JSON blob.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Plan status values. active ↔ paused is reversible; cancelled is terminal.
const (
	PlanStatusActive    = "active"
	PlanStatusPaused    = "paused"
	PlanStatusCancelled = "cancelled"
)

// Plan cadence values.
const (
	PlanFrequencyWeekly   = "weekly"
	PlanFrequencyBiweekly = "biweekly"
	PlanFrequencyMonthly  = "monthly"
)

// ValidPlanFrequency reports whether f is a supported cadence.
func ValidPlanFrequency(f string) bool {
	switch f {
	case PlanFrequencyWeekly, PlanFrequencyBiweekly, PlanFrequencyMonthly:
		return true
	}
	return false
}

// PlanServiceTemplate is the service definition each firing materializes into
// a booking.
type PlanServiceTemplate struct {
	ServiceCategory string  `json:"service_category"`
	ServiceName     string  `json:"service_name"`
	City            string  `json:"city"`
	Country         string  `json:"country"`
	Address         string  `json:"address"`
	HourlyRate      int64   `json:"hourly_rate"` // in minor units
	DurationHours   float64 `json:"duration_hours"`
}

// RecurringPlan maps to the `recurring_plans` table. Pause dates are non-null
// iff status is paused.
type RecurringPlan struct {
	ID                     uuid.UUID           `json:"id"`
	CustomerID             uuid.UUID           `json:"customer_id"`
	ProfessionalID         uuid.UUID           `json:"professional_id"`
	Template               PlanServiceTemplate `json:"template"`
	Frequency              string              `json:"frequency"`
	AnchorWeekday          time.Weekday        `json:"anchor_weekday"`
	AnchorHour             int                 `json:"anchor_hour"`
	Status                 string              `json:"status"`
	PauseStartDate         *time.Time          `json:"pause_start_date,omitempty"`
	PauseEndDate           *time.Time          `json:"pause_end_date,omitempty"`
	NextBookingDate        time.Time           `json:"next_booking_date"`
	DiscountPercentage     float64             `json:"discount_percentage"` // [0, 1]
	TotalBookingsCompleted int                 `json:"total_bookings_completed"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// CreatePlanRequest is the API DTO for creating a recurring plan.
type CreatePlanRequest struct {
	ProfessionalID     uuid.UUID           `json:"professional_id"`
	Template           PlanServiceTemplate `json:"template"`
	Frequency          string              `json:"frequency"`
	AnchorWeekday      int                 `json:"anchor_weekday"`
	AnchorHour         int                 `json:"anchor_hour"`
	FirstBookingDate   time.Time           `json:"first_booking_date"`
	DiscountPercentage float64             `json:"discount_percentage"`
}

// PausePlanRequest is the API DTO for pausing a plan over a date window.
type PausePlanRequest struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}
