/**
 * @description
 * Pricing rule models for the booking engine. A PricingRule scopes commission,
 * fees, deposit, and late-cancellation terms to a (service category, city,
 * country) tuple with an effective date window. ResolvedTerms is the immutable
 * snapshot handed to booking creation; later rule edits never change a booking
 * that was already priced.
 *
 * @notes
 * - All monetary values are int64 minor currency units (centavos) to avoid
 *   floating-point drift, matching the rest of the platform.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PricingRule maps to the `pricing_rules` table. Rules are never physically
// deleted, only deactivated, so historical bookings stay auditable against
// the rule in force when they were priced.
type PricingRule struct {
	ID                      uuid.UUID  `json:"id"`
	ServiceCategory         *string    `json:"service_category,omitempty"`
	City                    *string    `json:"city,omitempty"`
	Country                 string     `json:"country"`
	CommissionRate          float64    `json:"commission_rate"` // [0.10, 0.30]
	BackgroundCheckFee      int64      `json:"background_check_fee"`
	MinPrice                *int64     `json:"min_price,omitempty"`
	MaxPrice                *int64     `json:"max_price,omitempty"`
	DepositPercentage       *float64   `json:"deposit_percentage,omitempty"` // [0, 1]
	LateCancelHours         int        `json:"late_cancel_hours"`
	LateCancelFeePercentage float64    `json:"late_cancel_fee_percentage"` // [0, 1]
	EffectiveFrom           time.Time  `json:"effective_from"`
	EffectiveUntil          *time.Time `json:"effective_until,omitempty"`
	IsActive                bool       `json:"is_active"`
	CreatedAt               time.Time  `json:"created_at"`
}

// ResolvedTerms is the snapshot of pricing terms applicable to one booking.
// RuleID is nil when the platform-wide default was used.
type ResolvedTerms struct {
	RuleID                  *uuid.UUID `json:"rule_id,omitempty"`
	CommissionRate          float64    `json:"commission_rate"`
	BackgroundCheckFee      int64      `json:"background_check_fee"`
	MinPrice                *int64     `json:"min_price,omitempty"`
	MaxPrice                *int64     `json:"max_price,omitempty"`
	DepositPercentage       *float64   `json:"deposit_percentage,omitempty"`
	LateCancelHours         int        `json:"late_cancel_hours"`
	LateCancelFeePercentage float64    `json:"late_cancel_fee_percentage"`
	ResolvedAt              time.Time  `json:"resolved_at"`
}

// BookingQuote carries the amounts derived from ResolvedTerms for a booking.
type BookingQuote struct {
	BaseAmount      int64 `json:"base_amount"`
	Commission      int64 `json:"commission"`
	AddonFees       int64 `json:"addon_fees"`
	DepositAmount   int64 `json:"deposit_amount"`
	AmountEstimated int64 `json:"amount_estimated"`
}

// CreatePricingRulePayload is the operator DTO for creating a new rule.
type CreatePricingRulePayload struct {
	ServiceCategory         *string    `json:"service_category,omitempty"`
	City                    *string    `json:"city,omitempty"`
	Country                 string     `json:"country"`
	CommissionRate          float64    `json:"commission_rate"`
	BackgroundCheckFee      int64      `json:"background_check_fee"`
	MinPrice                *int64     `json:"min_price,omitempty"`
	MaxPrice                *int64     `json:"max_price,omitempty"`
	DepositPercentage       *float64   `json:"deposit_percentage,omitempty"`
	LateCancelHours         int        `json:"late_cancel_hours"`
	LateCancelFeePercentage float64    `json:"late_cancel_fee_percentage"`
	EffectiveFrom           time.Time  `json:"effective_from"`
	EffectiveUntil          *time.Time `json:"effective_until,omitempty"`
}
