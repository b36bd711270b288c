/**
 * @description
 * Trial credit domain model. Credit is accrued per (customer, professional)
 * pair from completed bookings and can subsidize a direct-hire conversion with
 * that same professional. Credit earned with professional A is never usable
 * against professional B.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrialCreditAccount maps to the `trial_credit_accounts` table. The row is
// created lazily on the first completed booking between the pair and is never
// deleted.
type TrialCreditAccount struct {
	CustomerID             uuid.UUID `json:"customer_id"`
	ProfessionalID         uuid.UUID `json:"professional_id"`
	CreditEarnedTotal      int64     `json:"credit_earned_total"`
	CreditConsumedTotal    int64     `json:"credit_consumed_total"`
	BookingsCompletedCount int       `json:"bookings_completed_count"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Available returns the redeemable balance under the given cap. Never
// negative.
func (a *TrialCreditAccount) Available(cap int64) int64 {
	available := a.CreditEarnedTotal - a.CreditConsumedTotal
	if available > cap {
		available = cap
	}
	if available < 0 {
		available = 0
	}
	return available
}

// TrialCreditStatus is the read model returned to the presentation layer.
// DisplayProgress caps at 3 for the "x/3" widget; the underlying count keeps
// incrementing past 3.
type TrialCreditStatus struct {
	CustomerID             uuid.UUID `json:"customer_id"`
	ProfessionalID         uuid.UUID `json:"professional_id"`
	CreditAvailable        int64     `json:"credit_available"`
	CreditEarnedTotal      int64     `json:"credit_earned_total"`
	CreditConsumedTotal    int64     `json:"credit_consumed_total"`
	BookingsCompletedCount int       `json:"bookings_completed_count"`
	DisplayProgress        int       `json:"display_progress"`
	Cap                    int64     `json:"cap"`
}
