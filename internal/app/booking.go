/**
 * @description
 * This file contains the core business logic for the booking lifecycle. The
 * `BookingService` struct drives each booking through its
 * authorization/capture/completion state machine, coordinating between the
 * database repository, the payment processor client, the availability client,
 * the trial credit ledger, and the message broker.
 *
 * Key features:
 * - Creates bookings priced by the resolver, with optional credit redemption.
 * - Drives the manual-capture payment flow: intent creation, authorization,
 *   capture on completion.
 * - Serializes concurrent transitions per booking through conditional updates
 *   in the repository; a lost race re-reads and no-ops when the outcome
 *   already matches.
 * - Publishes lifecycle events to RabbitMQ; publish failures never roll back
 *   a transition.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/paymentclient, pkg/availabilityclient, pkg/rabbitmq: For external
 *   service communication.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/domain"
	"github.com/rossostudios/maidconnect-booking/internal/store"
	"github.com/rossostudios/maidconnect-booking/pkg/availabilityclient"
	"github.com/rossostudios/maidconnect-booking/pkg/paymentclient"
	"github.com/rossostudios/maidconnect-booking/pkg/rabbitmq"
)

// EarnRate is the share of each captured amount credited to the customer's
// trial balance with the booking's professional.
const EarnRate = 0.5

// PaymentProcessor is the slice of the payment client the booking service
// needs. Manual-capture semantics: authorize now, capture later.
type PaymentProcessor interface {
	CreateIntent(ctx context.Context, amount int64, currency, customerRef string, metadata map[string]string) (*paymentclient.Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*paymentclient.Intent, error)
	CaptureIntent(ctx context.Context, intentID string, amount *int64) (*paymentclient.Intent, error)
}

// AvailabilityChecker answers whether a professional can take a slot.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, professionalID string, start, end time.Time) (*availabilityclient.CheckAvailabilityResponse, error)
}

// PlanNotifier is told when a plan-spawned booking completes so the plan can
// advance to its next cycle. Set after construction to break the
// plan-service/booking-service cycle.
type PlanNotifier interface {
	AdvanceCycle(ctx context.Context, planID uuid.UUID) error
}

// BookingService provides the booking state machine operations.
type BookingService struct {
	repo          store.Repository
	payments      PaymentProcessor
	availability  AvailabilityChecker
	credits       *CreditService
	resolver      *PricingResolver
	eventProducer rabbitmq.Publisher
	currency      string
	planNotifier  PlanNotifier

	now func() time.Time
}

// NewBookingService creates a new booking service instance.
func NewBookingService(repo store.Repository, payments PaymentProcessor, availability AvailabilityChecker, credits *CreditService, resolver *PricingResolver, producer rabbitmq.Publisher, currency string) *BookingService {
	return &BookingService{
		repo:          repo,
		payments:      payments,
		availability:  availability,
		credits:       credits,
		resolver:      resolver,
		eventProducer: producer,
		currency:      currency,
		now:           time.Now,
	}
}

// SetPlanNotifier wires the plan scheduler in after both services exist.
func (s *BookingService) SetPlanNotifier(n PlanNotifier) {
	s.planNotifier = n
}

func (s *BookingService) publishBookingEvent(ctx context.Context, routingKey string, b *domain.Booking, amount int64, reason *string) {
	err := s.eventProducer.Publish(ctx, rabbitmq.BookingEventsExchange, routingKey, domain.BookingEventPayload{
		BookingID:      b.ID,
		CustomerID:     b.CustomerID,
		ProfessionalID: b.ProfessionalID,
		PlanID:         b.PlanID,
		Status:         b.Status,
		Amount:         amount,
		Currency:       b.Currency,
		Reason:         reason,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		log.Printf("level=warn component=booking msg=\"failed to publish event\" routing_key=%s booking_id=%s err=%v", routingKey, b.ID, err)
	}
}

func validateCreateBookingRequest(req domain.CreateBookingRequest, now time.Time) error {
	if req.ProfessionalID == uuid.Nil {
		return fmt.Errorf("%w: professional_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.ServiceCategory) == "" {
		return fmt.Errorf("%w: service_category is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Country) == "" {
		return fmt.Errorf("%w: country is required", ErrInvalidInput)
	}
	if req.HourlyRate <= 0 {
		return fmt.Errorf("%w: hourly_rate must be positive", ErrInvalidInput)
	}
	if req.DurationHours <= 0 || req.DurationHours > 24 {
		return fmt.Errorf("%w: duration_hours must be between 0 and 24", ErrInvalidInput)
	}
	if !req.ScheduledStart.After(now) {
		return fmt.Errorf("%w: scheduled_start must be in the future", ErrInvalidInput)
	}
	return nil
}

// Create prices and persists a one-off booking in status pending. When the
// customer opts in, available trial credit with this professional is redeemed
// against the estimated amount (partial redemption, never a failure).
func (s *BookingService) Create(ctx context.Context, customerID uuid.UUID, req domain.CreateBookingRequest) (*domain.Booking, error) {
	now := s.now()
	if err := validateCreateBookingRequest(req, now); err != nil {
		return nil, err
	}

	scheduledEnd := req.ScheduledStart.Add(time.Duration(req.DurationHours * float64(time.Hour)))
	avail, err := s.availability.CheckAvailability(ctx, req.ProfessionalID.String(), req.ScheduledStart, scheduledEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !avail.Available {
		return nil, fmt.Errorf("%w: %s", ErrScheduleUnavailable, avail.Reason)
	}

	terms, err := s.resolver.Resolve(ctx, req.ServiceCategory, req.City, req.Country, now)
	if err != nil {
		return nil, err
	}
	quote := BuildQuote(terms, req.HourlyRate, req.DurationHours, 0)

	var creditApplied int64
	if req.ApplyCredit {
		creditApplied, err = s.credits.Consume(ctx, customerID, req.ProfessionalID, quote.AmountEstimated, false)
		if err != nil {
			return nil, fmt.Errorf("failed to redeem trial credit: %w", err)
		}
	}

	booking := &domain.Booking{
		ID:                      uuid.New(),
		CustomerID:              customerID,
		ProfessionalID:          req.ProfessionalID,
		ServiceCategory:         req.ServiceCategory,
		ServiceName:             req.ServiceName,
		DurationHours:           req.DurationHours,
		ScheduledStart:          req.ScheduledStart,
		ScheduledEnd:            scheduledEnd,
		Status:                  domain.BookingStatusPending,
		PricingRuleID:           terms.RuleID,
		BaseAmount:              quote.BaseAmount,
		CommissionAmount:        quote.Commission,
		DepositAmount:           quote.DepositAmount,
		LateCancelHours:         terms.LateCancelHours,
		LateCancelFeePercentage: terms.LateCancelFeePercentage,
		AmountEstimated:         quote.AmountEstimated,
		CreditApplied:           creditApplied,
		Currency:                s.currency,
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		if creditApplied > 0 {
			// The redemption already hit the ledger; give it back rather
			// than strand the customer's credit on a booking that never
			// existed.
			if refundErr := s.credits.Refund(ctx, customerID, req.ProfessionalID, creditApplied); refundErr != nil {
				log.Printf("level=error component=booking msg=\"credit refund failed after insert failure\" customer_id=%s professional_id=%s amount=%d err=%v", customerID, req.ProfessionalID, creditApplied, refundErr)
			}
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.publishBookingEvent(ctx, domain.EventBookingCreated, booking, booking.AmountEstimated, nil)
	return booking, nil
}

// CreateFromPlan materializes one plan firing into a booking. The plan's
// discount applies to the base amount before the commission is computed; plan
// bookings never redeem trial credit on top of the discount.
func (s *BookingService) CreateFromPlan(ctx context.Context, plan *domain.RecurringPlan, scheduledStart time.Time) (*domain.Booking, error) {
	scheduledEnd := scheduledStart.Add(time.Duration(plan.Template.DurationHours * float64(time.Hour)))
	avail, err := s.availability.CheckAvailability(ctx, plan.ProfessionalID.String(), scheduledStart, scheduledEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !avail.Available {
		return nil, fmt.Errorf("%w: %s", ErrScheduleUnavailable, avail.Reason)
	}

	terms, err := s.resolver.Resolve(ctx, plan.Template.ServiceCategory, plan.Template.City, plan.Template.Country, s.now())
	if err != nil {
		return nil, err
	}
	quote := BuildQuote(terms, plan.Template.HourlyRate, plan.Template.DurationHours, plan.DiscountPercentage)

	planID := plan.ID
	booking := &domain.Booking{
		ID:                      uuid.New(),
		CustomerID:              plan.CustomerID,
		ProfessionalID:          plan.ProfessionalID,
		PlanID:                  &planID,
		ServiceCategory:         plan.Template.ServiceCategory,
		ServiceName:             plan.Template.ServiceName,
		DurationHours:           plan.Template.DurationHours,
		ScheduledStart:          scheduledStart,
		ScheduledEnd:            scheduledEnd,
		Status:                  domain.BookingStatusPending,
		PricingRuleID:           terms.RuleID,
		BaseAmount:              quote.BaseAmount,
		CommissionAmount:        quote.Commission,
		DepositAmount:           quote.DepositAmount,
		LateCancelHours:         terms.LateCancelHours,
		LateCancelFeePercentage: terms.LateCancelFeePercentage,
		AmountEstimated:         quote.AmountEstimated,
		Currency:                s.currency,
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create plan booking: %w", err)
	}

	s.publishBookingEvent(ctx, domain.EventBookingCreated, booking, booking.AmountEstimated, nil)
	return booking, nil
}

// CreatePaymentIntent creates a manual-capture processor intent for the
// booking's amount due and moves it to pending_payment. Calling again for a
// booking that already holds an intent returns the existing reference.
func (s *BookingService) CreatePaymentIntent(ctx context.Context, customerID, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != customerID {
		return nil, ErrForbidden
	}
	if booking.PaymentIntentID != nil {
		return booking, nil
	}
	if booking.Status != domain.BookingStatusPending {
		return nil, fmt.Errorf("%w: cannot create intent from status %s", ErrStateConflict, booking.Status)
	}

	amountDue := booking.AmountEstimated - booking.CreditApplied
	if amountDue < 0 {
		amountDue = 0
	}
	intent, err := s.payments.CreateIntent(ctx, amountDue, booking.Currency, booking.CustomerID.String(), map[string]string{
		"booking_id": booking.ID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProcessor, err)
	}

	updated, err := s.repo.SetBookingPaymentIntent(ctx, booking.ID, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to attach payment intent: %w", err)
	}
	if !updated {
		// Lost a race with a concurrent intent creation; surface whatever won.
		return s.repo.FindBookingByID(ctx, bookingID)
	}
	booking.Status = domain.BookingStatusPendingPayment
	intentID := intent.ID
	booking.PaymentIntentID = &intentID
	return booking, nil
}

// Authorize records a processor authorization against the booking. Valid only
// from pending/pending_payment; the intent must reference this booking and be
// in the requires_capture state. Idempotent under webhook redelivery.
func (s *BookingService) Authorize(ctx context.Context, bookingID uuid.UUID, intentID string) (*domain.Booking, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, fmt.Errorf("%w: payment_intent_id is required", ErrInvalidInput)
	}
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentIntentID != nil && *booking.PaymentIntentID != intentID {
		log.Printf("level=warn component=booking msg=\"authorize intent mismatch\" booking_id=%s expected=%s got=%s", booking.ID, *booking.PaymentIntentID, intentID)
		return nil, ErrPaymentStateMismatch
	}

	// Redelivered webhook for an already-recorded authorization: no-op success.
	if booking.Status == domain.BookingStatusAuthorized && booking.PaymentIntentID != nil && *booking.PaymentIntentID == intentID {
		return booking, nil
	}

	intent, err := s.payments.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProcessor, err)
	}
	if intent.Status != paymentclient.IntentStatusRequiresCapture {
		log.Printf("level=warn component=booking msg=\"authorize refused by intent state\" booking_id=%s intent_id=%s intent_status=%s", booking.ID, intentID, intent.Status)
		return nil, ErrPaymentStateMismatch
	}

	updated, err := s.repo.RecordBookingAuthorization(ctx, booking.ID, intentID, intent.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to record authorization: %w", err)
	}
	if !updated {
		current, err := s.repo.FindBookingByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.BookingStatusAuthorized && current.PaymentIntentID != nil && *current.PaymentIntentID == intentID {
			return current, nil
		}
		log.Printf("level=warn component=booking msg=\"authorize from ineligible state\" booking_id=%s status=%s", current.ID, current.Status)
		return nil, fmt.Errorf("%w: cannot authorize from status %s", ErrStateConflict, current.Status)
	}
	return s.repo.FindBookingByID(ctx, bookingID)
}

// Confirm records the professional's acceptance. Valid only from authorized.
func (s *BookingService) Confirm(ctx context.Context, professionalID, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProfessionalID != professionalID {
		return nil, ErrForbidden
	}
	updated, err := s.repo.UpdateBookingStatusFrom(ctx, bookingID, []string{domain.BookingStatusAuthorized}, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: cannot confirm from status %s", ErrStateConflict, booking.Status)
	}
	booking.Status = domain.BookingStatusConfirmed
	s.publishBookingEvent(ctx, domain.EventBookingConfirmed, booking, booking.AmountAuthorized, nil)
	return booking, nil
}

// Start marks service delivery as begun. Valid only from confirmed.
func (s *BookingService) Start(ctx context.Context, professionalID, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProfessionalID != professionalID {
		return nil, ErrForbidden
	}
	updated, err := s.repo.UpdateBookingStatusFrom(ctx, bookingID, []string{domain.BookingStatusConfirmed}, domain.BookingStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to start booking: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: cannot start from status %s", ErrStateConflict, booking.Status)
	}
	booking.Status = domain.BookingStatusInProgress
	return booking, nil
}

// Capture captures the authorized payment and completes the booking. Valid
// from in_progress, or from confirmed once scheduled_end has passed. A nil
// amount captures the full authorized amount. Idempotent: repeating a capture
// that already completed with the same amount is a no-op success, and only
// one of any number of concurrent captures wins the completion claim.
func (s *BookingService) Capture(ctx context.Context, bookingID uuid.UUID, amount *int64) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	requested := booking.AmountAuthorized
	if amount != nil {
		requested = *amount
	}

	if booking.Status == domain.BookingStatusCompleted {
		if booking.AmountCaptured == requested {
			return booking, nil
		}
		return nil, fmt.Errorf("%w: booking already completed with a different captured amount", ErrStateConflict)
	}
	switch booking.Status {
	case domain.BookingStatusInProgress:
	case domain.BookingStatusConfirmed:
		if s.now().Before(booking.ScheduledEnd) {
			return nil, fmt.Errorf("%w: cannot capture a confirmed booking before scheduled_end", ErrStateConflict)
		}
	default:
		log.Printf("level=warn component=booking msg=\"capture from ineligible state\" booking_id=%s status=%s", booking.ID, booking.Status)
		return nil, fmt.Errorf("%w: cannot capture from status %s", ErrStateConflict, booking.Status)
	}

	if requested <= 0 || requested > booking.AmountAuthorized {
		return nil, fmt.Errorf("%w: capture amount must be positive and at most the authorized amount", ErrInvalidInput)
	}
	if booking.PaymentIntentID == nil {
		return nil, ErrPaymentStateMismatch
	}

	intent, err := s.payments.CaptureIntent(ctx, *booking.PaymentIntentID, amount)
	if err != nil {
		// The booking stays in its prior state; a timeout is an unknown
		// outcome resolved by retry or the reconciliation job.
		log.Printf("level=warn component=booking msg=\"capture failed at processor\" booking_id=%s intent_id=%s err=%v", booking.ID, *booking.PaymentIntentID, err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentProcessor, err)
	}

	captured := intent.AmountReceived
	if captured == 0 {
		captured = requested
	}
	return s.finalizeCompletion(ctx, booking, captured)
}

// finalizeCompletion claims the completed transition and applies its side
// effects exactly once. A lost claim re-reads and treats a matching completed
// row as success.
func (s *BookingService) finalizeCompletion(ctx context.Context, booking *domain.Booking, captured int64) (*domain.Booking, error) {
	completedAt := s.now()
	claimed, err := s.repo.ClaimBookingCompletion(ctx, booking.ID, captured, completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}
	if !claimed {
		current, err := s.repo.FindBookingByID(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.BookingStatusCompleted && current.AmountCaptured == captured {
			return current, nil
		}
		return nil, fmt.Errorf("%w: cannot complete from status %s", ErrStateConflict, current.Status)
	}

	earned := int64(float64(captured) * EarnRate)
	if _, err := s.credits.Earn(ctx, booking.CustomerID, booking.ProfessionalID, earned); err != nil {
		// The completion is already durable; a lost earn is reconciled by the
		// operator from this log line, never by rolling the booking back.
		log.Printf("level=error component=booking msg=\"credit earn failed after completion\" booking_id=%s customer_id=%s professional_id=%s amount=%d err=%v", booking.ID, booking.CustomerID, booking.ProfessionalID, earned, err)
	}

	if booking.PlanID != nil && s.planNotifier != nil {
		if err := s.planNotifier.AdvanceCycle(ctx, *booking.PlanID); err != nil {
			log.Printf("level=warn component=booking msg=\"plan advance failed; scheduler will retry\" booking_id=%s plan_id=%s err=%v", booking.ID, *booking.PlanID, err)
		}
	}

	booking.Status = domain.BookingStatusCompleted
	booking.AmountCaptured = captured
	booking.AmountFinal = captured
	booking.CompletedAt = &completedAt
	s.publishBookingEvent(ctx, domain.EventBookingCompleted, booking, captured, nil)
	return booking, nil
}

// Cancel cancels a booking. Valid from any state before in_progress; from
// in_progress only an admin may force it. Cancelling within the late window
// records the late-cancellation fee from the booking's pricing snapshot.
func (s *BookingService) Cancel(ctx context.Context, bookingID uuid.UUID, actor, reason string, isAdmin bool) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminalBookingStatus(booking.Status) {
		return nil, fmt.Errorf("%w: cannot cancel from status %s", ErrStateConflict, booking.Status)
	}
	from := []string{
		domain.BookingStatusPending,
		domain.BookingStatusPendingPayment,
		domain.BookingStatusAuthorized,
		domain.BookingStatusConfirmed,
	}
	if booking.Status == domain.BookingStatusInProgress {
		if !isAdmin {
			return nil, fmt.Errorf("%w: an in-progress booking can only be cancelled by an operator", ErrStateConflict)
		}
		from = append(from, domain.BookingStatusInProgress)
	}

	fee := LateCancelFee(booking.BaseAmount, booking.LateCancelHours, booking.LateCancelFeePercentage, booking.ScheduledStart, s.now())
	updated, err := s.repo.MarkBookingCancelled(ctx, bookingID, from, fee, actor, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !updated {
		current, err := s.repo.FindBookingByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		log.Printf("level=warn component=booking msg=\"cancel from ineligible state\" booking_id=%s status=%s", current.ID, current.Status)
		return nil, fmt.Errorf("%w: cannot cancel from status %s", ErrStateConflict, current.Status)
	}

	booking.Status = domain.BookingStatusCancelled
	booking.LateCancelFee = fee
	booking.CancelledBy = &actor
	booking.CancelReason = &reason
	reasonCopy := reason
	s.publishBookingEvent(ctx, domain.EventBookingCancelled, booking, fee, &reasonCopy)
	return booking, nil
}

// Decline records the professional turning a request down. Valid only from
// pending/pending_payment; no charge is ever captured.
func (s *BookingService) Decline(ctx context.Context, professionalID, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProfessionalID != professionalID {
		return nil, ErrForbidden
	}
	updated, err := s.repo.MarkBookingDeclined(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to decline booking: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: cannot decline from status %s", ErrStateConflict, booking.Status)
	}
	booking.Status = domain.BookingStatusDeclined
	s.publishBookingEvent(ctx, domain.EventBookingDeclined, booking, 0, nil)
	return booking, nil
}

// GetBooking returns the booking if the caller is a party to it.
func (s *BookingService) GetBooking(ctx context.Context, callerID, bookingID uuid.UUID, isAdmin bool) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && booking.CustomerID != callerID && booking.ProfessionalID != callerID {
		return nil, ErrForbidden
	}
	return booking, nil
}

// ListBookings returns a page of the customer's bookings.
func (s *BookingService) ListBookings(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Booking, error) {
	return s.repo.ListBookingsByCustomer(ctx, customerID, limit, offset)
}

// ReconcileStaleAuthorizations re-queries the processor for bookings stuck in
// an authorized-side state past their scheduled end. A processor-side
// succeeded intent finalizes the booking; anything else is left for operator
// review rather than auto-cancelled.
func (s *BookingService) ReconcileStaleAuthorizations(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.repo.ListStaleAuthorizedBookings(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale bookings: %w", err)
	}

	finalized := 0
	for i := range stale {
		booking := stale[i]
		if booking.PaymentIntentID == nil {
			continue
		}
		intent, err := s.payments.RetrieveIntent(ctx, *booking.PaymentIntentID)
		if err != nil {
			log.Printf("level=warn component=booking msg=\"reconcile retrieve failed\" booking_id=%s intent_id=%s err=%v", booking.ID, *booking.PaymentIntentID, err)
			continue
		}
		switch intent.Status {
		case paymentclient.IntentStatusSucceeded:
			captured := intent.AmountReceived
			if captured == 0 {
				captured = intent.Amount
			}
			if _, err := s.finalizeCompletion(ctx, &booking, captured); err != nil {
				log.Printf("level=warn component=booking msg=\"reconcile finalize failed\" booking_id=%s err=%v", booking.ID, err)
				continue
			}
			finalized++
		default:
			log.Printf("level=warn component=booking msg=\"stale authorization needs operator review\" booking_id=%s intent_id=%s intent_status=%s", booking.ID, *booking.PaymentIntentID, intent.Status)
		}
	}
	return finalized, nil
}
