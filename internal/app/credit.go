/**
 * @description
 * The trial credit ledger. Credit accrues per (customer, professional) pair
 * from completed bookings and is redeemable against future bookings with the
 * same professional, up to a monetary cap of half the direct-hire fee. Both
 * mutations run as single atomic SQL statements in the repository so
 * concurrent completions never lose an increment.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Event publication.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/domain"
	"github.com/rossostudios/maidconnect-booking/internal/store"
	"github.com/rossostudios/maidconnect-booking/pkg/rabbitmq"
)

// CompletedBookingsDisplayCap bounds the "x/3" progress widget. Earning
// continues past it; only the display clamps.
const CompletedBookingsDisplayCap = 3

// CreditService provides the trial credit ledger operations.
type CreditService struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	directHireFee int64
}

// NewCreditService creates a new credit ledger instance. directHireFee is the
// platform-wide direct-hire conversion fee in minor currency units.
func NewCreditService(repo store.Repository, producer rabbitmq.Publisher, directHireFee int64) *CreditService {
	return &CreditService{
		repo:          repo,
		eventProducer: producer,
		directHireFee: directHireFee,
	}
}

// Cap returns the redeemable-credit ceiling: half the direct-hire fee.
func (s *CreditService) Cap() int64 {
	return s.directHireFee / 2
}

// Earn credits the pair's balance after a completed booking and bumps the
// completed-booking counter. Never decreases anything.
func (s *CreditService) Earn(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) (*domain.TrialCreditAccount, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: earn amount must be non-negative", ErrInvalidInput)
	}
	account, err := s.repo.ApplyCreditEarn(ctx, customerID, professionalID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to apply credit earn: %w", err)
	}

	if err := s.eventProducer.Publish(ctx, rabbitmq.BookingEventsExchange, domain.EventCreditEarned, domain.CreditEventPayload{
		CustomerID:      customerID,
		ProfessionalID:  professionalID,
		Amount:          amount,
		CreditAvailable: account.Available(s.Cap()),
		Timestamp:       time.Now().UTC(),
	}); err != nil {
		log.Printf("level=warn component=credit msg=\"failed to publish credit.earned\" customer_id=%s professional_id=%s err=%v", customerID, professionalID, err)
	}
	return account, nil
}

// Consume redeems up to the requested amount against the pair's available
// balance and returns the applied amount. Partial redemption is the default;
// with requireExact the call fails with store.ErrInsufficientCredit unless
// the full amount is available.
func (s *CreditService) Consume(ctx context.Context, customerID, professionalID uuid.UUID, requested int64, requireExact bool) (int64, error) {
	if requested < 0 {
		return 0, fmt.Errorf("%w: redemption amount must be non-negative", ErrInvalidInput)
	}
	if requested == 0 {
		return 0, nil
	}
	applied, err := s.repo.ApplyCreditConsume(ctx, customerID, professionalID, requested, s.Cap(), requireExact)
	if err != nil {
		return 0, err
	}
	if applied > 0 {
		account, accErr := s.repo.FindCreditAccount(ctx, customerID, professionalID)
		available := int64(0)
		if accErr == nil {
			available = account.Available(s.Cap())
		}
		if err := s.eventProducer.Publish(ctx, rabbitmq.BookingEventsExchange, domain.EventCreditConsumed, domain.CreditEventPayload{
			CustomerID:      customerID,
			ProfessionalID:  professionalID,
			Amount:          applied,
			CreditAvailable: available,
			Timestamp:       time.Now().UTC(),
		}); err != nil {
			log.Printf("level=warn component=credit msg=\"failed to publish credit.consumed\" customer_id=%s professional_id=%s err=%v", customerID, professionalID, err)
		}
	}
	return applied, nil
}

// Refund reverses a redemption that never resulted in a persisted booking,
// restoring the applied amount to the pair's balance. It does not touch the
// completed-booking counter and publishes no event; nothing was earned.
func (s *CreditService) Refund(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if err := s.repo.ApplyCreditRefund(ctx, customerID, professionalID, amount); err != nil {
		return fmt.Errorf("failed to apply credit refund: %w", err)
	}
	return nil
}

// Status returns the pair's read model. A pair with no account yet reads as
// all zeros rather than a not-found error.
func (s *CreditService) Status(ctx context.Context, customerID, professionalID uuid.UUID) (*domain.TrialCreditStatus, error) {
	status := &domain.TrialCreditStatus{
		CustomerID:     customerID,
		ProfessionalID: professionalID,
		Cap:            s.Cap(),
	}
	account, err := s.repo.FindCreditAccount(ctx, customerID, professionalID)
	if err != nil {
		if err == store.ErrCreditAccountNotFound {
			return status, nil
		}
		return nil, err
	}
	status.CreditAvailable = account.Available(s.Cap())
	status.CreditEarnedTotal = account.CreditEarnedTotal
	status.CreditConsumedTotal = account.CreditConsumedTotal
	status.BookingsCompletedCount = account.BookingsCompletedCount
	status.DisplayProgress = account.BookingsCompletedCount
	if status.DisplayProgress > CompletedBookingsDisplayCap {
		status.DisplayProgress = CompletedBookingsDisplayCap
	}
	return status, nil
}
