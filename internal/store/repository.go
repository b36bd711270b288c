/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the booking engine needs. Keeping an interface between the business
 * logic and PostgreSQL keeps the state machine, ledger, and scheduler testable
 * with in-memory stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For identity handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
//
// Transition methods return (false, nil) when the row was not in an eligible
// prior state: the conditional UPDATE is what serializes concurrent
// transitions per booking/plan row, so callers translate a false into a state
// conflict after re-reading.
type Repository interface {
	// Pricing rule methods
	CreatePricingRule(ctx context.Context, rule *domain.PricingRule) error
	ListActivePricingRulesByCountry(ctx context.Context, country string) ([]domain.PricingRule, error)
	ListPricingRules(ctx context.Context) ([]domain.PricingRule, error)
	DeactivatePricingRule(ctx context.Context, ruleID uuid.UUID) error

	// Booking methods
	CreateBooking(ctx context.Context, booking *domain.Booking) error
	FindBookingByID(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	FindBookingByPaymentIntentID(ctx context.Context, intentID string) (*domain.Booking, error)
	SetBookingPaymentIntent(ctx context.Context, bookingID uuid.UUID, intentID string) (bool, error)
	RecordBookingAuthorization(ctx context.Context, bookingID uuid.UUID, intentID string, amount int64) (bool, error)
	UpdateBookingStatusFrom(ctx context.Context, bookingID uuid.UUID, from []string, to string) (bool, error)
	ClaimBookingCompletion(ctx context.Context, bookingID uuid.UUID, capturedAmount int64, completedAt time.Time) (bool, error)
	MarkBookingCancelled(ctx context.Context, bookingID uuid.UUID, from []string, lateCancelFee int64, actor, reason string) (bool, error)
	MarkBookingDeclined(ctx context.Context, bookingID uuid.UUID) (bool, error)
	ListBookingsByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Booking, error)
	ListStaleAuthorizedBookings(ctx context.Context, endedBefore time.Time, limit int) ([]domain.Booking, error)

	// Trial credit methods. All mutations are single atomic statements so
	// concurrent completions for the same pair never lose an increment.
	ApplyCreditEarn(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) (*domain.TrialCreditAccount, error)
	ApplyCreditConsume(ctx context.Context, customerID, professionalID uuid.UUID, requested, cap int64, requireExact bool) (int64, error)
	ApplyCreditRefund(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) error
	FindCreditAccount(ctx context.Context, customerID, professionalID uuid.UUID) (*domain.TrialCreditAccount, error)

	// Recurring plan methods
	CreatePlan(ctx context.Context, plan *domain.RecurringPlan) error
	FindPlanByID(ctx context.Context, planID uuid.UUID) (*domain.RecurringPlan, error)
	ListPlansByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.RecurringPlan, error)
	PausePlan(ctx context.Context, planID uuid.UUID, startDate, endDate time.Time) (bool, error)
	ResumePlan(ctx context.Context, planID uuid.UUID, nextBookingDate time.Time) (bool, error)
	CancelPlan(ctx context.Context, planID uuid.UUID) (bool, error)
	AdvancePlanCycle(ctx context.Context, planID uuid.UUID, nextBookingDate time.Time) (bool, error)
	IncrementPlanBookingsCompleted(ctx context.Context, planID uuid.UUID) (bool, error)
	ListDuePlans(ctx context.Context, asOf time.Time) ([]domain.RecurringPlan, error)
}
