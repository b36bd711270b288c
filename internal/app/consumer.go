package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/domain"
	"github.com/rossostudios/maidconnect-booking/internal/store"
	"github.com/rossostudios/maidconnect-booking/pkg/paymentclient"
)

// PaymentEventConsumer applies processor webhook events relayed over the
// broker to the booking state machine. Deliveries may repeat or arrive out of
// order, so every transition it drives is idempotent.
type PaymentEventConsumer struct {
	repo     store.Repository
	bookings *BookingService
}

func NewPaymentEventConsumer(repo store.Repository, bookings *BookingService) *PaymentEventConsumer {
	return &PaymentEventConsumer{repo: repo, bookings: bookings}
}

// HandleMessage processes one delivery. Returning false re-queues it.
func (c *PaymentEventConsumer) HandleMessage(body []byte) bool {
	var event domain.PaymentIntentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("payment-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	if event.IntentID == "" {
		log.Printf("payment-consumer: missing intent id in event %+v", event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.processEvent(ctx, event); err != nil {
		log.Printf("payment-consumer: processing error for intent %s: %v", event.IntentID, err)
		return false
	}

	return true
}

func (c *PaymentEventConsumer) resolveBooking(ctx context.Context, event domain.PaymentIntentEvent) (*domain.Booking, error) {
	if event.BookingID != "" {
		if bookingID, err := uuid.Parse(event.BookingID); err == nil {
			return c.repo.FindBookingByID(ctx, bookingID)
		}
		log.Printf("payment-consumer: unparsable booking id %q; falling back to intent lookup", event.BookingID)
	}
	return c.repo.FindBookingByPaymentIntentID(ctx, event.IntentID)
}

func (c *PaymentEventConsumer) processEvent(ctx context.Context, event domain.PaymentIntentEvent) error {
	booking, err := c.resolveBooking(ctx, event)
	if err != nil {
		if errors.Is(err, store.ErrBookingNotFound) {
			log.Printf("payment-consumer: no booking found for intent %s; acknowledging", event.IntentID)
			return nil
		}
		return fmt.Errorf("lookup booking: %w", err)
	}

	switch event.Status {
	case paymentclient.IntentStatusRequiresCapture:
		return c.handleAuthorized(ctx, booking, event)
	case paymentclient.IntentStatusSucceeded:
		return c.handleCaptured(ctx, booking, event)
	case paymentclient.IntentStatusFailed, paymentclient.IntentStatusCancelled:
		return c.handleFailed(ctx, booking, event)
	default:
		log.Printf("payment-consumer: ignoring intent %s in status %s", event.IntentID, event.Status)
		return nil
	}
}

func (c *PaymentEventConsumer) handleAuthorized(ctx context.Context, booking *domain.Booking, event domain.PaymentIntentEvent) error {
	_, err := c.bookings.Authorize(ctx, booking.ID, event.IntentID)
	if err == nil {
		return nil
	}
	// A duplicate or out-of-order delivery is logged and dropped; only
	// transient failures are worth a redelivery.
	if errors.Is(err, ErrStateConflict) || errors.Is(err, ErrPaymentStateMismatch) {
		log.Printf("payment-consumer: dropping authorize for booking %s: %v", booking.ID, err)
		return nil
	}
	return err
}

func (c *PaymentEventConsumer) handleCaptured(ctx context.Context, booking *domain.Booking, event domain.PaymentIntentEvent) error {
	if booking.Status == domain.BookingStatusCompleted {
		if event.Amount != 0 && booking.AmountCaptured != event.Amount {
			log.Printf("payment-consumer: completed booking %s disagrees with intent amount (%d vs %d); needs operator review", booking.ID, booking.AmountCaptured, event.Amount)
		}
		return nil
	}

	captured := event.Amount
	if captured == 0 {
		captured = booking.AmountAuthorized
	}
	_, err := c.bookings.finalizeCompletion(ctx, booking, captured)
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			log.Printf("payment-consumer: dropping capture for booking %s: %v", booking.ID, err)
			return nil
		}
		return err
	}
	return nil
}

func (c *PaymentEventConsumer) handleFailed(ctx context.Context, booking *domain.Booking, event domain.PaymentIntentEvent) error {
	if domain.IsTerminalBookingStatus(booking.Status) {
		return nil
	}
	// A failed authorization sends the booking back to pending so the
	// customer can retry with another payment method. Later states are left
	// for operator review since funds may already be held.
	reverted, err := c.repo.UpdateBookingStatusFrom(ctx, booking.ID, []string{domain.BookingStatusPendingPayment}, domain.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("revert booking: %w", err)
	}
	if reverted {
		log.Printf("payment-consumer: intent %s failed (%s); booking %s reverted to pending", event.IntentID, event.Reason, booking.ID)
	} else {
		log.Printf("payment-consumer: intent %s failed (%s) with booking %s in status %s; needs operator review", event.IntentID, event.Reason, booking.ID, booking.Status)
	}
	return nil
}
