/**
 * @description
 * PostgreSQL implementation of the `Repository` interface. All state
 * transitions are single conditional statements (UPDATE ... WHERE status in an
 * eligible set, atomic-increment upserts) so that concurrent webhook
 * deliveries and scheduler passes are serialized by the database row rather
 * than by in-process locking.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rossostudios/maidconnect-booking/internal/domain"
)

var (
	ErrBookingNotFound       = errors.New("booking not found")
	ErrPlanNotFound          = errors.New("plan not found")
	ErrPricingRuleNotFound   = errors.New("pricing rule not found")
	ErrCreditAccountNotFound = errors.New("trial credit account not found")
	ErrInsufficientCredit    = errors.New("insufficient trial credit")
)

// PostgresRepository is the concrete Repository implementation for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// --- Pricing rules ---

// CreatePricingRule inserts a new rule. Rules are append-only; edits happen by
// deactivating the old rule and creating a replacement.
func (r *PostgresRepository) CreatePricingRule(ctx context.Context, rule *domain.PricingRule) error {
	query := `
		INSERT INTO pricing_rules (
			id, service_category, city, country, commission_rate, background_check_fee,
			min_price, max_price, deposit_percentage, late_cancel_hours,
			late_cancel_fee_percentage, effective_from, effective_until, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		rule.ID, rule.ServiceCategory, rule.City, rule.Country, rule.CommissionRate,
		rule.BackgroundCheckFee, rule.MinPrice, rule.MaxPrice, rule.DepositPercentage,
		rule.LateCancelHours, rule.LateCancelFeePercentage, rule.EffectiveFrom,
		rule.EffectiveUntil, rule.IsActive,
	).Scan(&rule.CreatedAt)
}

const pricingRuleColumns = `
	id, service_category, city, country, commission_rate, background_check_fee,
	min_price, max_price, deposit_percentage, late_cancel_hours,
	late_cancel_fee_percentage, effective_from, effective_until, is_active, created_at
`

func scanPricingRule(row pgx.Row) (*domain.PricingRule, error) {
	var rule domain.PricingRule
	err := row.Scan(
		&rule.ID, &rule.ServiceCategory, &rule.City, &rule.Country, &rule.CommissionRate,
		&rule.BackgroundCheckFee, &rule.MinPrice, &rule.MaxPrice, &rule.DepositPercentage,
		&rule.LateCancelHours, &rule.LateCancelFeePercentage, &rule.EffectiveFrom,
		&rule.EffectiveUntil, &rule.IsActive, &rule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListActivePricingRulesByCountry returns the active rules for one country.
// The resolver does the date-window filtering and specificity ranking in
// memory so the result can be cached with bounded staleness.
func (r *PostgresRepository) ListActivePricingRulesByCountry(ctx context.Context, country string) ([]domain.PricingRule, error) {
	query := `SELECT ` + pricingRuleColumns + ` FROM pricing_rules WHERE country = $1 AND is_active = true ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, country)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.PricingRule
	for rows.Next() {
		rule, err := scanPricingRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// ListPricingRules returns every rule, active or not, for the operator surface.
func (r *PostgresRepository) ListPricingRules(ctx context.Context) ([]domain.PricingRule, error) {
	query := `SELECT ` + pricingRuleColumns + ` FROM pricing_rules ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.PricingRule
	for rows.Next() {
		rule, err := scanPricingRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// DeactivatePricingRule flips is_active off. Rules are never deleted so
// historical bookings stay auditable.
func (r *PostgresRepository) DeactivatePricingRule(ctx context.Context, ruleID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE pricing_rules SET is_active = false WHERE id = $1`, ruleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPricingRuleNotFound
	}
	return nil
}

// --- Bookings ---

const bookingColumns = `
	id, customer_id, professional_id, plan_id, service_category, service_name,
	duration_hours, scheduled_start, scheduled_end, status, pricing_rule_id,
	base_amount, commission_amount, deposit_amount, late_cancel_hours,
	late_cancel_fee_percentage, amount_estimated, amount_authorized,
	amount_captured, amount_final, late_cancel_fee, credit_applied, currency,
	payment_intent_id, cancel_reason, cancelled_by, created_at, updated_at, completed_at
`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.ProfessionalID, &b.PlanID, &b.ServiceCategory, &b.ServiceName,
		&b.DurationHours, &b.ScheduledStart, &b.ScheduledEnd, &b.Status, &b.PricingRuleID,
		&b.BaseAmount, &b.CommissionAmount, &b.DepositAmount, &b.LateCancelHours,
		&b.LateCancelFeePercentage, &b.AmountEstimated, &b.AmountAuthorized,
		&b.AmountCaptured, &b.AmountFinal, &b.LateCancelFee, &b.CreditApplied, &b.Currency,
		&b.PaymentIntentID, &b.CancelReason, &b.CancelledBy, &b.CreatedAt, &b.UpdatedAt, &b.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking persists a freshly priced booking in its initial status.
func (r *PostgresRepository) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (
			id, customer_id, professional_id, plan_id, service_category, service_name,
			duration_hours, scheduled_start, scheduled_end, status, pricing_rule_id,
			base_amount, commission_amount, deposit_amount, late_cancel_hours,
			late_cancel_fee_percentage, amount_estimated, credit_applied, currency
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		booking.ID, booking.CustomerID, booking.ProfessionalID, booking.PlanID,
		booking.ServiceCategory, booking.ServiceName, booking.DurationHours,
		booking.ScheduledStart, booking.ScheduledEnd, booking.Status, booking.PricingRuleID,
		booking.BaseAmount, booking.CommissionAmount, booking.DepositAmount,
		booking.LateCancelHours, booking.LateCancelFeePercentage,
		booking.AmountEstimated, booking.CreditApplied, booking.Currency,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

// FindBookingByID retrieves a booking by its ID.
func (r *PostgresRepository) FindBookingByID(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	booking, err := scanBooking(r.db.QueryRow(ctx, query, bookingID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

// FindBookingByPaymentIntentID resolves the booking a processor intent refers to.
func (r *PostgresRepository) FindBookingByPaymentIntentID(ctx context.Context, intentID string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_intent_id = $1`
	booking, err := scanBooking(r.db.QueryRow(ctx, query, intentID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

// SetBookingPaymentIntent attaches the processor intent reference and moves a
// pending booking to pending_payment.
func (r *PostgresRepository) SetBookingPaymentIntent(ctx context.Context, bookingID uuid.UUID, intentID string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $3, payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, bookingID, intentID, domain.BookingStatusPendingPayment, domain.BookingStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecordBookingAuthorization moves a pending/pending_payment booking to
// authorized and records the authorized amount.
func (r *PostgresRepository) RecordBookingAuthorization(ctx context.Context, bookingID uuid.UUID, intentID string, amount int64) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $4, payment_intent_id = $2, amount_authorized = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($5)
	`
	from := []string{domain.BookingStatusPending, domain.BookingStatusPendingPayment}
	tag, err := r.db.Exec(ctx, query, bookingID, intentID, amount, domain.BookingStatusAuthorized, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateBookingStatusFrom performs a guarded status transition.
func (r *PostgresRepository) UpdateBookingStatusFrom(ctx context.Context, bookingID uuid.UUID, from []string, to string) (bool, error) {
	query := `UPDATE bookings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = ANY($2)`
	tag, err := r.db.Exec(ctx, query, bookingID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimBookingCompletion transitions an authorized/confirmed/in_progress
// booking to completed, recording the captured amount. Exactly one of any
// number of concurrent callers gets true; the rest see false and re-read.
// Authorized is eligible here because the webhook consumer and the
// reconciliation job finalize processor-side captures for bookings that never
// reached confirmed; the user-facing capture path rejects those states before
// it claims.
func (r *PostgresRepository) ClaimBookingCompletion(ctx context.Context, bookingID uuid.UUID, capturedAmount int64, completedAt time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $4, amount_captured = $2, amount_final = $2, completed_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($5)
	`
	from := []string{domain.BookingStatusAuthorized, domain.BookingStatusConfirmed, domain.BookingStatusInProgress}
	tag, err := r.db.Exec(ctx, query, bookingID, capturedAmount, completedAt, domain.BookingStatusCompleted, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkBookingCancelled transitions a booking to cancelled and records the
// late-cancellation fee (zero when outside the late window), the actor, and
// the reason.
func (r *PostgresRepository) MarkBookingCancelled(ctx context.Context, bookingID uuid.UUID, from []string, lateCancelFee int64, actor, reason string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $5, late_cancel_fee = $2, cancelled_by = $3, cancel_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = ANY($6)
	`
	tag, err := r.db.Exec(ctx, query, bookingID, lateCancelFee, actor, reason, domain.BookingStatusCancelled, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkBookingDeclined transitions a pending/pending_payment booking to declined.
func (r *PostgresRepository) MarkBookingDeclined(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	from := []string{domain.BookingStatusPending, domain.BookingStatusPendingPayment}
	return r.UpdateBookingStatusFrom(ctx, bookingID, from, domain.BookingStatusDeclined)
}

// ListBookingsByCustomer returns a page of the customer's bookings, newest first.
func (r *PostgresRepository) ListBookingsByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ListStaleAuthorizedBookings returns bookings still sitting in
// authorized/confirmed/in_progress past their scheduled end, for the
// reconciliation job to re-query against the processor.
func (r *PostgresRepository) ListStaleAuthorizedBookings(ctx context.Context, endedBefore time.Time, limit int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = ANY($1) AND scheduled_end < $2 AND payment_intent_id IS NOT NULL
		ORDER BY scheduled_end ASC
		LIMIT $3
	`
	statuses := []string{domain.BookingStatusAuthorized, domain.BookingStatusConfirmed, domain.BookingStatusInProgress}
	rows, err := r.db.Query(ctx, query, statuses, endedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// --- Trial credit ---

// ApplyCreditEarn increments the pair's earned total and completed-booking
// count in one upsert, creating the account lazily on first completion.
func (r *PostgresRepository) ApplyCreditEarn(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) (*domain.TrialCreditAccount, error) {
	var account domain.TrialCreditAccount
	query := `
		INSERT INTO trial_credit_accounts (
			customer_id, professional_id, credit_earned_total, credit_consumed_total, bookings_completed_count
		)
		VALUES ($1, $2, $3, 0, 1)
		ON CONFLICT (customer_id, professional_id) DO UPDATE SET
			credit_earned_total = trial_credit_accounts.credit_earned_total + EXCLUDED.credit_earned_total,
			bookings_completed_count = trial_credit_accounts.bookings_completed_count + 1,
			updated_at = NOW()
		RETURNING customer_id, professional_id, credit_earned_total, credit_consumed_total,
			bookings_completed_count, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, customerID, professionalID, amount).Scan(
		&account.CustomerID, &account.ProfessionalID, &account.CreditEarnedTotal,
		&account.CreditConsumedTotal, &account.BookingsCompletedCount,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ApplyCreditConsume applies min(requested, available-under-cap) against the
// pair's balance and returns the applied amount. The row lock inside the CTE
// serializes concurrent redemptions. With requireExact the statement matches
// nothing unless the full requested amount is available.
func (r *PostgresRepository) ApplyCreditConsume(ctx context.Context, customerID, professionalID uuid.UUID, requested, cap int64, requireExact bool) (int64, error) {
	if requested <= 0 {
		return 0, nil
	}
	query := `
		WITH target AS (
			SELECT customer_id, professional_id,
				LEAST($3::bigint, GREATEST(LEAST(credit_earned_total - credit_consumed_total, $4::bigint), 0)) AS applied
			FROM trial_credit_accounts
			WHERE customer_id = $1 AND professional_id = $2
				AND ($5::boolean = false OR LEAST(credit_earned_total - credit_consumed_total, $4::bigint) >= $3::bigint)
			FOR UPDATE
		)
		UPDATE trial_credit_accounts a
		SET credit_consumed_total = a.credit_consumed_total + t.applied, updated_at = NOW()
		FROM target t
		WHERE a.customer_id = t.customer_id AND a.professional_id = t.professional_id
		RETURNING t.applied
	`
	var applied int64
	err := r.db.QueryRow(ctx, query, customerID, professionalID, requested, cap, requireExact).Scan(&applied)
	if err != nil {
		if err == pgx.ErrNoRows {
			if requireExact {
				return 0, ErrInsufficientCredit
			}
			// No account yet means zero credit; partial redemption of zero is fine.
			return 0, nil
		}
		return 0, err
	}
	return applied, nil
}

// ApplyCreditRefund reverses a prior redemption by shrinking the pair's
// consumed total. Used as compensation when a booking that redeemed credit
// never gets persisted.
func (r *PostgresRepository) ApplyCreditRefund(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	query := `
		UPDATE trial_credit_accounts
		SET credit_consumed_total = GREATEST(credit_consumed_total - $3, 0), updated_at = NOW()
		WHERE customer_id = $1 AND professional_id = $2
	`
	tag, err := r.db.Exec(ctx, query, customerID, professionalID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCreditAccountNotFound
	}
	return nil
}

// FindCreditAccount retrieves the pair's account.
func (r *PostgresRepository) FindCreditAccount(ctx context.Context, customerID, professionalID uuid.UUID) (*domain.TrialCreditAccount, error) {
	var account domain.TrialCreditAccount
	query := `
		SELECT customer_id, professional_id, credit_earned_total, credit_consumed_total,
			bookings_completed_count, created_at, updated_at
		FROM trial_credit_accounts
		WHERE customer_id = $1 AND professional_id = $2
	`
	err := r.db.QueryRow(ctx, query, customerID, professionalID).Scan(
		&account.CustomerID, &account.ProfessionalID, &account.CreditEarnedTotal,
		&account.CreditConsumedTotal, &account.BookingsCompletedCount,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCreditAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// --- Recurring plans ---

const planColumns = `
	id, customer_id, professional_id, service_category, service_name, city, country,
	address, hourly_rate, duration_hours, frequency, anchor_weekday, anchor_hour,
	status, pause_start_date, pause_end_date, next_booking_date,
	discount_percentage, total_bookings_completed, created_at, updated_at
`

func scanPlan(row pgx.Row) (*domain.RecurringPlan, error) {
	var p domain.RecurringPlan
	var anchorWeekday int
	err := row.Scan(
		&p.ID, &p.CustomerID, &p.ProfessionalID, &p.Template.ServiceCategory,
		&p.Template.ServiceName, &p.Template.City, &p.Template.Country,
		&p.Template.Address, &p.Template.HourlyRate, &p.Template.DurationHours,
		&p.Frequency, &anchorWeekday, &p.AnchorHour, &p.Status,
		&p.PauseStartDate, &p.PauseEndDate, &p.NextBookingDate,
		&p.DiscountPercentage, &p.TotalBookingsCompleted, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.AnchorWeekday = time.Weekday(anchorWeekday)
	return &p, nil
}

// CreatePlan persists a new recurring plan.
func (r *PostgresRepository) CreatePlan(ctx context.Context, plan *domain.RecurringPlan) error {
	query := `
		INSERT INTO recurring_plans (
			id, customer_id, professional_id, service_category, service_name, city,
			country, address, hourly_rate, duration_hours, frequency, anchor_weekday,
			anchor_hour, status, next_booking_date, discount_percentage
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		plan.ID, plan.CustomerID, plan.ProfessionalID, plan.Template.ServiceCategory,
		plan.Template.ServiceName, plan.Template.City, plan.Template.Country,
		plan.Template.Address, plan.Template.HourlyRate, plan.Template.DurationHours,
		plan.Frequency, int(plan.AnchorWeekday), plan.AnchorHour, plan.Status,
		plan.NextBookingDate, plan.DiscountPercentage,
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)
}

// FindPlanByID retrieves a plan by its ID.
func (r *PostgresRepository) FindPlanByID(ctx context.Context, planID uuid.UUID) (*domain.RecurringPlan, error) {
	query := `SELECT ` + planColumns + ` FROM recurring_plans WHERE id = $1`
	plan, err := scanPlan(r.db.QueryRow(ctx, query, planID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// ListPlansByCustomer returns all plans owned by a customer.
func (r *PostgresRepository) ListPlansByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.RecurringPlan, error) {
	query := `SELECT ` + planColumns + ` FROM recurring_plans WHERE customer_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.RecurringPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

// PausePlan moves an active plan to paused with the pause window recorded.
func (r *PostgresRepository) PausePlan(ctx context.Context, planID uuid.UUID, startDate, endDate time.Time) (bool, error) {
	query := `
		UPDATE recurring_plans
		SET status = $4, pause_start_date = $2, pause_end_date = $3, updated_at = NOW()
		WHERE id = $1 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, planID, startDate, endDate, domain.PlanStatusPaused, domain.PlanStatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ResumePlan moves a paused plan back to active, clears the pause window, and
// sets the recomputed next booking date.
func (r *PostgresRepository) ResumePlan(ctx context.Context, planID uuid.UUID, nextBookingDate time.Time) (bool, error) {
	query := `
		UPDATE recurring_plans
		SET status = $3, pause_start_date = NULL, pause_end_date = NULL,
			next_booking_date = $2, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, planID, nextBookingDate, domain.PlanStatusActive, domain.PlanStatusPaused)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CancelPlan moves an active or paused plan to the terminal cancelled status
// and clears any pause window.
func (r *PostgresRepository) CancelPlan(ctx context.Context, planID uuid.UUID) (bool, error) {
	query := `
		UPDATE recurring_plans
		SET status = $2, pause_start_date = NULL, pause_end_date = NULL, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`
	from := []string{domain.PlanStatusActive, domain.PlanStatusPaused}
	tag, err := r.db.Exec(ctx, query, planID, domain.PlanStatusCancelled, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AdvancePlanCycle moves the plan's next booking date forward one cadence.
// Only active plans advance; paused and cancelled plans are skipped by the
// guard.
func (r *PostgresRepository) AdvancePlanCycle(ctx context.Context, planID uuid.UUID, nextBookingDate time.Time) (bool, error) {
	query := `
		UPDATE recurring_plans
		SET next_booking_date = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	tag, err := r.db.Exec(ctx, query, planID, nextBookingDate, domain.PlanStatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementPlanBookingsCompleted bumps the completed-booking counter when a
// spawned booking completes. Cancelled plans keep their final count.
func (r *PostgresRepository) IncrementPlanBookingsCompleted(ctx context.Context, planID uuid.UUID) (bool, error) {
	query := `
		UPDATE recurring_plans
		SET total_bookings_completed = total_bookings_completed + 1, updated_at = NOW()
		WHERE id = $1 AND status <> $2
	`
	tag, err := r.db.Exec(ctx, query, planID, domain.PlanStatusCancelled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListDuePlans returns active plans whose next booking date has arrived.
func (r *PostgresRepository) ListDuePlans(ctx context.Context, asOf time.Time) ([]domain.RecurringPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM recurring_plans
		WHERE status = $1 AND next_booking_date <= $2
		ORDER BY next_booking_date ASC
	`
	rows, err := r.db.Query(ctx, query, domain.PlanStatusActive, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.RecurringPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}
