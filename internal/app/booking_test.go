package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/domain"
	"github.com/rossostudios/maidconnect-booking/internal/store"
	"github.com/rossostudios/maidconnect-booking/pkg/availabilityclient"
	"github.com/rossostudios/maidconnect-booking/pkg/paymentclient"
)

type bookingRepoStub struct {
	store.Repository

	booking *domain.Booking
	rules   []domain.PricingRule

	createdBooking *domain.Booking
	createErr      error

	intentSetResult    bool
	intentSetCalled    bool
	authResult         bool
	authCalled         bool
	updateStatusResult bool
	updateStatusFrom   []string
	updateStatusTo     string

	claimResults []bool
	claimCalls   int

	cancelResult    bool
	cancelCalled    bool
	cancelledFee    int64
	cancelledFrom   []string
	declineResult   bool
	declineCalled   bool
	staleBookings   []domain.Booking
	earnCalls       int
	earnedAmount    int64
	consumeApplied  int64
	consumeRequest  int64
	consumeCap      int64
	consumeCalled   bool
	refundedAmount  int64
	refundCalled    bool
	planIncremented bool
}

func (s *bookingRepoStub) ListActivePricingRulesByCountry(ctx context.Context, country string) ([]domain.PricingRule, error) {
	return s.rules, nil
}

func (s *bookingRepoStub) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdBooking = booking
	return nil
}

func (s *bookingRepoStub) FindBookingByID(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	if s.booking == nil {
		return nil, store.ErrBookingNotFound
	}
	copy := *s.booking
	return &copy, nil
}

func (s *bookingRepoStub) FindBookingByPaymentIntentID(ctx context.Context, intentID string) (*domain.Booking, error) {
	if s.booking == nil || s.booking.PaymentIntentID == nil || *s.booking.PaymentIntentID != intentID {
		return nil, store.ErrBookingNotFound
	}
	copy := *s.booking
	return &copy, nil
}

func (s *bookingRepoStub) SetBookingPaymentIntent(ctx context.Context, bookingID uuid.UUID, intentID string) (bool, error) {
	s.intentSetCalled = true
	return s.intentSetResult, nil
}

func (s *bookingRepoStub) RecordBookingAuthorization(ctx context.Context, bookingID uuid.UUID, intentID string, amount int64) (bool, error) {
	s.authCalled = true
	if s.authResult {
		s.booking.Status = domain.BookingStatusAuthorized
		s.booking.PaymentIntentID = &intentID
		s.booking.AmountAuthorized = amount
	}
	return s.authResult, nil
}

func (s *bookingRepoStub) UpdateBookingStatusFrom(ctx context.Context, bookingID uuid.UUID, from []string, to string) (bool, error) {
	s.updateStatusFrom = from
	s.updateStatusTo = to
	if s.updateStatusResult {
		s.booking.Status = to
	}
	return s.updateStatusResult, nil
}

func (s *bookingRepoStub) ClaimBookingCompletion(ctx context.Context, bookingID uuid.UUID, capturedAmount int64, completedAt time.Time) (bool, error) {
	claimed := true
	if s.claimCalls < len(s.claimResults) {
		claimed = s.claimResults[s.claimCalls]
	}
	s.claimCalls++
	switch s.booking.Status {
	case domain.BookingStatusAuthorized, domain.BookingStatusConfirmed, domain.BookingStatusInProgress:
	default:
		claimed = false
	}
	if claimed {
		s.booking.Status = domain.BookingStatusCompleted
		s.booking.AmountCaptured = capturedAmount
		s.booking.AmountFinal = capturedAmount
		s.booking.CompletedAt = &completedAt
	}
	return claimed, nil
}

func (s *bookingRepoStub) MarkBookingCancelled(ctx context.Context, bookingID uuid.UUID, from []string, lateCancelFee int64, actor, reason string) (bool, error) {
	s.cancelCalled = true
	s.cancelledFee = lateCancelFee
	s.cancelledFrom = from
	if s.cancelResult {
		s.booking.Status = domain.BookingStatusCancelled
	}
	return s.cancelResult, nil
}

func (s *bookingRepoStub) MarkBookingDeclined(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	s.declineCalled = true
	if s.declineResult {
		s.booking.Status = domain.BookingStatusDeclined
	}
	return s.declineResult, nil
}

func (s *bookingRepoStub) ListStaleAuthorizedBookings(ctx context.Context, endedBefore time.Time, limit int) ([]domain.Booking, error) {
	return s.staleBookings, nil
}

func (s *bookingRepoStub) ApplyCreditEarn(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) (*domain.TrialCreditAccount, error) {
	s.earnCalls++
	s.earnedAmount = amount
	return &domain.TrialCreditAccount{
		CustomerID:             customerID,
		ProfessionalID:         professionalID,
		CreditEarnedTotal:      amount,
		BookingsCompletedCount: 1,
	}, nil
}

func (s *bookingRepoStub) ApplyCreditConsume(ctx context.Context, customerID, professionalID uuid.UUID, requested, cap int64, requireExact bool) (int64, error) {
	s.consumeCalled = true
	s.consumeRequest = requested
	s.consumeCap = cap
	return s.consumeApplied, nil
}

func (s *bookingRepoStub) ApplyCreditRefund(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) error {
	s.refundCalled = true
	s.refundedAmount = amount
	return nil
}

func (s *bookingRepoStub) FindCreditAccount(ctx context.Context, customerID, professionalID uuid.UUID) (*domain.TrialCreditAccount, error) {
	return &domain.TrialCreditAccount{CustomerID: customerID, ProfessionalID: professionalID}, nil
}

func (s *bookingRepoStub) IncrementPlanBookingsCompleted(ctx context.Context, planID uuid.UUID) (bool, error) {
	s.planIncremented = true
	return true, nil
}

type paymentsStub struct {
	intent      *paymentclient.Intent
	createErr   error
	retrieveErr error
	captureErr  error

	createCalls   int
	retrieveCalls int
	captureCalls  int
}

func (p *paymentsStub) CreateIntent(ctx context.Context, amount int64, currency, customerRef string, metadata map[string]string) (*paymentclient.Intent, error) {
	p.createCalls++
	if p.createErr != nil {
		return nil, p.createErr
	}
	return p.intent, nil
}

func (p *paymentsStub) RetrieveIntent(ctx context.Context, intentID string) (*paymentclient.Intent, error) {
	p.retrieveCalls++
	if p.retrieveErr != nil {
		return nil, p.retrieveErr
	}
	return p.intent, nil
}

func (p *paymentsStub) CaptureIntent(ctx context.Context, intentID string, amount *int64) (*paymentclient.Intent, error) {
	p.captureCalls++
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	return p.intent, nil
}

type availabilityStub struct {
	available bool
	reason    string
}

func (a *availabilityStub) CheckAvailability(ctx context.Context, professionalID string, start, end time.Time) (*availabilityclient.CheckAvailabilityResponse, error) {
	return &availabilityclient.CheckAvailabilityResponse{Available: a.available, Reason: a.reason}, nil
}

type publisherStub struct {
	routingKeys []string
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *publisherStub) Close() {}

type planNotifierStub struct {
	advancedPlanID uuid.UUID
	calls          int
}

func (n *planNotifierStub) AdvanceCycle(ctx context.Context, planID uuid.UUID) error {
	n.calls++
	n.advancedPlanID = planID
	return nil
}

func newBookingServiceForTest(repo *bookingRepoStub, payments *paymentsStub, available bool) (*BookingService, *publisherStub) {
	producer := &publisherStub{}
	credits := NewCreditService(repo, producer, 40000000)
	resolver := NewPricingResolver(repo, time.Minute)
	svc := NewBookingService(repo, payments, &availabilityStub{available: available, reason: "slot taken"}, credits, resolver, producer, "COP")
	return svc, producer
}

func TestCreateBooking_RedeemsAvailableCreditPartially(t *testing.T) {
	repo := &bookingRepoStub{consumeApplied: 50000}
	svc, producer := newBookingServiceForTest(repo, &paymentsStub{}, true)
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	customerID := uuid.New()
	booking, err := svc.Create(context.Background(), customerID, domain.CreateBookingRequest{
		ProfessionalID:  uuid.New(),
		ServiceCategory: "cleaning",
		Country:         "CO",
		HourlyRate:      25000,
		DurationHours:   4,
		ScheduledStart:  now.Add(48 * time.Hour),
		ApplyCredit:     true,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !repo.consumeCalled {
		t.Fatal("expected credit redemption to be attempted")
	}
	if repo.consumeRequest != booking.AmountEstimated {
		t.Fatalf("expected redemption requested for the full estimate %d, got %d", booking.AmountEstimated, repo.consumeRequest)
	}
	if booking.CreditApplied != 50000 {
		t.Fatalf("expected the available 50000 applied, got %d", booking.CreditApplied)
	}
	if booking.Status != domain.BookingStatusPending {
		t.Fatalf("expected status pending, got %s", booking.Status)
	}
	if booking.AmountEstimated != 118000 {
		t.Fatalf("expected estimate 118000 under default terms, got %d", booking.AmountEstimated)
	}
	if len(producer.routingKeys) != 2 || producer.routingKeys[0] != domain.EventCreditConsumed || producer.routingKeys[1] != domain.EventBookingCreated {
		t.Fatalf("expected credit.consumed then booking.created, got %v", producer.routingKeys)
	}
}

func TestCreateBooking_SkipsCreditWhenNotRequested(t *testing.T) {
	repo := &bookingRepoStub{consumeApplied: 50000}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	booking, err := svc.Create(context.Background(), uuid.New(), domain.CreateBookingRequest{
		ProfessionalID:  uuid.New(),
		ServiceCategory: "cleaning",
		Country:         "CO",
		HourlyRate:      25000,
		DurationHours:   4,
		ScheduledStart:  now.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.consumeCalled {
		t.Fatal("expected no redemption without apply_credit")
	}
	if booking.CreditApplied != 0 {
		t.Fatalf("expected zero credit applied, got %d", booking.CreditApplied)
	}
}

func TestCreateBooking_InsertFailureRefundsRedeemedCredit(t *testing.T) {
	repo := &bookingRepoStub{consumeApplied: 50000, createErr: errors.New("insert failed")}
	svc, producer := newBookingServiceForTest(repo, &paymentsStub{}, true)
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Create(context.Background(), uuid.New(), domain.CreateBookingRequest{
		ProfessionalID:  uuid.New(),
		ServiceCategory: "cleaning",
		Country:         "CO",
		HourlyRate:      25000,
		DurationHours:   4,
		ScheduledStart:  now.Add(48 * time.Hour),
		ApplyCredit:     true,
	})
	if err == nil {
		t.Fatal("expected the insert failure to surface")
	}
	if !repo.refundCalled || repo.refundedAmount != 50000 {
		t.Fatalf("expected the applied 50000 refunded, got called=%v amount=%d", repo.refundCalled, repo.refundedAmount)
	}
	for _, key := range producer.routingKeys {
		if key == domain.EventBookingCreated {
			t.Fatal("expected no booking.created event for a failed create")
		}
	}
}

func TestCreateBooking_RejectsUnavailableSlot(t *testing.T) {
	repo := &bookingRepoStub{}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, false)
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Create(context.Background(), uuid.New(), domain.CreateBookingRequest{
		ProfessionalID:  uuid.New(),
		ServiceCategory: "cleaning",
		Country:         "CO",
		HourlyRate:      25000,
		DurationHours:   4,
		ScheduledStart:  now.Add(48 * time.Hour),
	})
	if !errors.Is(err, ErrScheduleUnavailable) {
		t.Fatalf("expected ErrScheduleUnavailable, got %v", err)
	}
	if repo.createdBooking != nil {
		t.Fatal("expected no booking persisted for an unavailable slot")
	}
}

func TestCreateBooking_RejectsPastStart(t *testing.T) {
	svc, _ := newBookingServiceForTest(&bookingRepoStub{}, &paymentsStub{}, true)
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Create(context.Background(), uuid.New(), domain.CreateBookingRequest{
		ProfessionalID:  uuid.New(),
		ServiceCategory: "cleaning",
		Country:         "CO",
		HourlyRate:      25000,
		DurationHours:   4,
		ScheduledStart:  now.Add(-time.Hour),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a past start, got %v", err)
	}
}

func pendingBooking(customerID, professionalID uuid.UUID) *domain.Booking {
	return &domain.Booking{
		ID:                      uuid.New(),
		CustomerID:              customerID,
		ProfessionalID:          professionalID,
		Status:                  domain.BookingStatusPending,
		BaseAmount:              100000,
		CommissionAmount:        18000,
		AmountEstimated:         118000,
		LateCancelHours:         24,
		LateCancelFeePercentage: 0.5,
		ScheduledStart:          time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC),
		ScheduledEnd:            time.Date(2025, 5, 10, 13, 0, 0, 0, time.UTC),
		Currency:                "COP",
	}
}

func TestCreatePaymentIntent_ReturnsExistingIntentWithoutProcessorCall(t *testing.T) {
	customerID := uuid.New()
	booking := pendingBooking(customerID, uuid.New())
	existing := "pi_existing"
	booking.PaymentIntentID = &existing
	booking.Status = domain.BookingStatusPendingPayment

	repo := &bookingRepoStub{booking: booking}
	payments := &paymentsStub{}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	got, err := svc.CreatePaymentIntent(context.Background(), customerID, booking.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.PaymentIntentID == nil || *got.PaymentIntentID != existing {
		t.Fatal("expected the existing intent returned")
	}
	if payments.createCalls != 0 {
		t.Fatal("expected no processor call for an already-intented booking")
	}
}

func TestCreatePaymentIntent_ChargesEstimateMinusCredit(t *testing.T) {
	customerID := uuid.New()
	booking := pendingBooking(customerID, uuid.New())
	booking.CreditApplied = 50000

	repo := &bookingRepoStub{booking: booking, intentSetResult: true}
	payments := &paymentsStub{intent: &paymentclient.Intent{ID: "pi_new", Status: paymentclient.IntentStatusRequiresCapture}}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	got, err := svc.CreatePaymentIntent(context.Background(), customerID, booking.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.Status != domain.BookingStatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", got.Status)
	}
	if !repo.intentSetCalled {
		t.Fatal("expected the intent reference persisted")
	}
}

func TestCreatePaymentIntent_OnlyOwnerMayRequest(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	repo := &bookingRepoStub{booking: booking}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

	_, err := svc.CreatePaymentIntent(context.Background(), uuid.New(), booking.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAuthorize_RejectsIntentMismatch(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	attached := "pi_attached"
	booking.PaymentIntentID = &attached
	booking.Status = domain.BookingStatusPendingPayment

	repo := &bookingRepoStub{booking: booking}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

	_, err := svc.Authorize(context.Background(), booking.ID, "pi_other")
	if !errors.Is(err, ErrPaymentStateMismatch) {
		t.Fatalf("expected ErrPaymentStateMismatch, got %v", err)
	}
	if repo.authCalled {
		t.Fatal("expected no authorization recorded for a mismatched intent")
	}
}

func TestAuthorize_RedeliveredWebhookIsNoOp(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_1"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusAuthorized
	booking.AmountAuthorized = 118000

	repo := &bookingRepoStub{booking: booking}
	payments := &paymentsStub{}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	got, err := svc.Authorize(context.Background(), booking.ID, intentID)
	if err != nil {
		t.Fatalf("expected nil error on redelivery, got %v", err)
	}
	if got.Status != domain.BookingStatusAuthorized {
		t.Fatalf("expected authorized, got %s", got.Status)
	}
	if payments.retrieveCalls != 0 || repo.authCalled {
		t.Fatal("expected redelivery to touch neither the processor nor the row")
	}
}

func TestAuthorize_RefusesIntentNotRequiringCapture(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_1"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusPendingPayment

	repo := &bookingRepoStub{booking: booking}
	payments := &paymentsStub{intent: &paymentclient.Intent{ID: intentID, Status: paymentclient.IntentStatusCancelled}}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	_, err := svc.Authorize(context.Background(), booking.ID, intentID)
	if !errors.Is(err, ErrPaymentStateMismatch) {
		t.Fatalf("expected ErrPaymentStateMismatch, got %v", err)
	}
	if repo.authCalled {
		t.Fatal("expected no authorization recorded")
	}
}

func TestCapture_RepeatWithSameAmountIsNoOp(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_1"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusCompleted
	booking.AmountAuthorized = 118000
	booking.AmountCaptured = 118000

	repo := &bookingRepoStub{booking: booking}
	payments := &paymentsStub{}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	got, err := svc.Capture(context.Background(), booking.ID, nil)
	if err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
	if got.Status != domain.BookingStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if payments.captureCalls != 0 || repo.claimCalls != 0 {
		t.Fatal("expected no processor or claim activity on a repeat capture")
	}
}

func TestCapture_RepeatWithDifferentAmountConflicts(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	booking.Status = domain.BookingStatusCompleted
	booking.AmountAuthorized = 118000
	booking.AmountCaptured = 118000

	repo := &bookingRepoStub{booking: booking}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

	other := int64(50000)
	_, err := svc.Capture(context.Background(), booking.ID, &other)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
}

func TestCapture_ConfirmedBeforeScheduledEndConflicts(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_1"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusConfirmed
	booking.AmountAuthorized = 118000

	repo := &bookingRepoStub{booking: booking}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)
	svc.now = func() time.Time { return booking.ScheduledEnd.Add(-time.Hour) }

	_, err := svc.Capture(context.Background(), booking.ID, nil)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict before scheduled_end, got %v", err)
	}
}

func TestCapture_RejectsAmountAboveAuthorized(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_1"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusInProgress
	booking.AmountAuthorized = 118000

	repo := &bookingRepoStub{booking: booking}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

	over := int64(120000)
	_, err := svc.Capture(context.Background(), booking.ID, &over)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for over-capture, got %v", err)
	}
}

func TestCapture_ProcessorFailureLeavesState(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_1"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusInProgress
	booking.AmountAuthorized = 118000

	repo := &bookingRepoStub{booking: booking}
	payments := &paymentsStub{captureErr: errors.New("gateway timeout")}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	_, err := svc.Capture(context.Background(), booking.ID, nil)
	if !errors.Is(err, ErrPaymentProcessor) {
		t.Fatalf("expected ErrPaymentProcessor, got %v", err)
	}
	if repo.claimCalls != 0 {
		t.Fatal("expected no completion claim after a processor failure")
	}
	if repo.booking.Status != domain.BookingStatusInProgress {
		t.Fatalf("expected booking left in_progress, got %s", repo.booking.Status)
	}
}

func TestCapture_ConcurrentCompletionsCreditOnce(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_1"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusInProgress
	booking.AmountAuthorized = 118000

	repo := &bookingRepoStub{booking: booking, claimResults: []bool{true, false}}
	payments := &paymentsStub{intent: &paymentclient.Intent{ID: intentID, Status: paymentclient.IntentStatusSucceeded, AmountReceived: 118000}}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	first, err := svc.Capture(context.Background(), booking.ID, nil)
	if err != nil {
		t.Fatalf("expected winner to succeed, got %v", err)
	}
	if first.Status != domain.BookingStatusCompleted || first.AmountCaptured != 118000 {
		t.Fatalf("unexpected winner result: status=%s captured=%d", first.Status, first.AmountCaptured)
	}

	// A repeat capture reads the completed row and short-circuits.
	second, err := svc.Capture(context.Background(), booking.ID, nil)
	if err != nil {
		t.Fatalf("expected loser to observe the completed row, got %v", err)
	}
	if second.Status != domain.BookingStatusCompleted {
		t.Fatalf("expected completed, got %s", second.Status)
	}
	if repo.earnCalls != 1 {
		t.Fatalf("expected exactly one credit earn, got %d", repo.earnCalls)
	}
	if repo.earnedAmount != 59000 {
		t.Fatalf("expected earn of half the captured amount, got %d", repo.earnedAmount)
	}
}

func TestFinalizeCompletion_LostClaimAcceptsMatchingRow(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	booking.Status = domain.BookingStatusCompleted
	booking.AmountCaptured = 118000
	booking.AmountFinal = 118000

	// The caller holds a stale in_progress read; the conditional update loses
	// and the re-read shows another worker already completed with the same
	// amount.
	stale := *booking
	stale.Status = domain.BookingStatusInProgress

	repo := &bookingRepoStub{booking: booking, claimResults: []bool{false}}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

	got, err := svc.finalizeCompletion(context.Background(), &stale, 118000)
	if err != nil {
		t.Fatalf("expected the lost claim to resolve as success, got %v", err)
	}
	if got.Status != domain.BookingStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if repo.earnCalls != 0 {
		t.Fatalf("expected the loser to earn nothing, got %d earns", repo.earnCalls)
	}
}

func TestFinalizeCompletion_LostClaimWithDifferentAmountConflicts(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	booking.Status = domain.BookingStatusCompleted
	booking.AmountCaptured = 100000

	stale := *booking
	stale.Status = domain.BookingStatusInProgress

	repo := &bookingRepoStub{booking: booking, claimResults: []bool{false}}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

	_, err := svc.finalizeCompletion(context.Background(), &stale, 118000)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
}

func TestCapture_CompletionAdvancesPlanCycle(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_1"
	planID := uuid.New()
	booking.PaymentIntentID = &intentID
	booking.PlanID = &planID
	booking.Status = domain.BookingStatusInProgress
	booking.AmountAuthorized = 118000

	repo := &bookingRepoStub{booking: booking}
	payments := &paymentsStub{intent: &paymentclient.Intent{ID: intentID, Status: paymentclient.IntentStatusSucceeded, AmountReceived: 118000}}
	svc, _ := newBookingServiceForTest(repo, payments, true)
	notifier := &planNotifierStub{}
	svc.SetPlanNotifier(notifier)

	if _, err := svc.Capture(context.Background(), booking.ID, nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if notifier.calls != 1 || notifier.advancedPlanID != planID {
		t.Fatalf("expected the plan notified once, got calls=%d plan=%s", notifier.calls, notifier.advancedPlanID)
	}
}

func TestCancel_InsideLateWindowRecordsFee(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	booking.Status = domain.BookingStatusConfirmed

	repo := &bookingRepoStub{booking: booking, cancelResult: true}
	svc, producer := newBookingServiceForTest(repo, &paymentsStub{}, true)
	svc.now = func() time.Time { return booking.ScheduledStart.Add(-10 * time.Hour) }

	got, err := svc.Cancel(context.Background(), booking.ID, "customer:abc", "sick", false)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.LateCancelFee != 50000 {
		t.Fatalf("expected late fee 50000, got %d", got.LateCancelFee)
	}
	if repo.cancelledFee != 50000 {
		t.Fatalf("expected the fee persisted, got %d", repo.cancelledFee)
	}
	if len(producer.routingKeys) != 1 || producer.routingKeys[0] != domain.EventBookingCancelled {
		t.Fatalf("expected a single booking.cancelled event, got %v", producer.routingKeys)
	}
}

func TestCancel_OutsideLateWindowIsFree(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	booking.Status = domain.BookingStatusAuthorized

	repo := &bookingRepoStub{booking: booking, cancelResult: true}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)
	svc.now = func() time.Time { return booking.ScheduledStart.Add(-72 * time.Hour) }

	got, err := svc.Cancel(context.Background(), booking.ID, "customer:abc", "changed plans", false)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.LateCancelFee != 0 {
		t.Fatalf("expected no fee outside the window, got %d", got.LateCancelFee)
	}
}

func TestCancel_InProgressRequiresAdmin(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	booking.Status = domain.BookingStatusInProgress

	repo := &bookingRepoStub{booking: booking, cancelResult: true}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

	_, err := svc.Cancel(context.Background(), booking.ID, "customer:abc", "no show", false)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict for a non-admin, got %v", err)
	}
	if repo.cancelCalled {
		t.Fatal("expected no cancellation attempted")
	}

	if _, err := svc.Cancel(context.Background(), booking.ID, "admin:ops", "dispute", true); err != nil {
		t.Fatalf("expected the admin cancel to succeed, got %v", err)
	}
}

func TestCancel_TerminalStatesConflict(t *testing.T) {
	for _, status := range []string{domain.BookingStatusCompleted, domain.BookingStatusCancelled, domain.BookingStatusDeclined} {
		booking := pendingBooking(uuid.New(), uuid.New())
		booking.Status = status
		repo := &bookingRepoStub{booking: booking}
		svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

		_, err := svc.Cancel(context.Background(), booking.ID, "customer:abc", "late", false)
		if !errors.Is(err, ErrStateConflict) {
			t.Fatalf("expected ErrStateConflict from %s, got %v", status, err)
		}
	}
}

func TestDecline_OnlyOwningProfessional(t *testing.T) {
	professionalID := uuid.New()
	booking := pendingBooking(uuid.New(), professionalID)
	repo := &bookingRepoStub{booking: booking, declineResult: true}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

	_, err := svc.Decline(context.Background(), uuid.New(), booking.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a stranger, got %v", err)
	}
	if repo.declineCalled {
		t.Fatal("expected no decline attempted")
	}

	got, err := svc.Decline(context.Background(), professionalID, booking.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.Status != domain.BookingStatusDeclined {
		t.Fatalf("expected declined, got %s", got.Status)
	}
}

func TestGetBooking_RestrictedToParties(t *testing.T) {
	customerID := uuid.New()
	professionalID := uuid.New()
	booking := pendingBooking(customerID, professionalID)
	repo := &bookingRepoStub{booking: booking}
	svc, _ := newBookingServiceForTest(repo, &paymentsStub{}, true)

	if _, err := svc.GetBooking(context.Background(), customerID, booking.ID, false); err != nil {
		t.Fatalf("expected the customer to read their booking, got %v", err)
	}
	if _, err := svc.GetBooking(context.Background(), professionalID, booking.ID, false); err != nil {
		t.Fatalf("expected the professional to read their booking, got %v", err)
	}
	if _, err := svc.GetBooking(context.Background(), uuid.New(), booking.ID, false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a stranger, got %v", err)
	}
	if _, err := svc.GetBooking(context.Background(), uuid.New(), booking.ID, true); err != nil {
		t.Fatalf("expected an admin to read any booking, got %v", err)
	}
}

func TestReconcileStaleAuthorizations_FinalizesSucceededIntents(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_stale"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusConfirmed
	booking.AmountAuthorized = 118000

	repo := &bookingRepoStub{booking: booking, staleBookings: []domain.Booking{*booking}}
	payments := &paymentsStub{intent: &paymentclient.Intent{ID: intentID, Status: paymentclient.IntentStatusSucceeded, AmountReceived: 118000}}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	finalized, err := svc.ReconcileStaleAuthorizations(context.Background(), 6*time.Hour, 100)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if finalized != 1 {
		t.Fatalf("expected one finalized booking, got %d", finalized)
	}
	if repo.earnCalls != 1 {
		t.Fatalf("expected credit earned on the reconciled completion, got %d earns", repo.earnCalls)
	}
}

func TestReconcileStaleAuthorizations_FinalizesFromAuthorized(t *testing.T) {
	// A booking that never progressed past authorized but whose intent was
	// captured processor-side must still reach completed, not spin on a
	// state conflict every reconcile pass.
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_stale"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusAuthorized
	booking.AmountAuthorized = 118000

	repo := &bookingRepoStub{booking: booking, staleBookings: []domain.Booking{*booking}}
	payments := &paymentsStub{intent: &paymentclient.Intent{ID: intentID, Status: paymentclient.IntentStatusSucceeded, AmountReceived: 118000}}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	finalized, err := svc.ReconcileStaleAuthorizations(context.Background(), 6*time.Hour, 100)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if finalized != 1 {
		t.Fatalf("expected the authorized booking finalized, got %d", finalized)
	}
	if repo.booking.Status != domain.BookingStatusCompleted {
		t.Fatalf("expected completed, got %s", repo.booking.Status)
	}
	if repo.earnCalls != 1 {
		t.Fatalf("expected one credit earn, got %d", repo.earnCalls)
	}
}

func TestReconcileStaleAuthorizations_LeavesNonSucceededForReview(t *testing.T) {
	booking := pendingBooking(uuid.New(), uuid.New())
	intentID := "pi_stale"
	booking.PaymentIntentID = &intentID
	booking.Status = domain.BookingStatusAuthorized

	repo := &bookingRepoStub{booking: booking, staleBookings: []domain.Booking{*booking}}
	payments := &paymentsStub{intent: &paymentclient.Intent{ID: intentID, Status: paymentclient.IntentStatusRequiresCapture}}
	svc, _ := newBookingServiceForTest(repo, payments, true)

	finalized, err := svc.ReconcileStaleAuthorizations(context.Background(), 6*time.Hour, 100)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if finalized != 0 {
		t.Fatalf("expected nothing finalized, got %d", finalized)
	}
	if repo.claimCalls != 0 {
		t.Fatal("expected no completion claim for a still-authorized intent")
	}
}
