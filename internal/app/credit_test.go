package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/domain"
	"github.com/rossostudios/maidconnect-booking/internal/store"
)

type creditRepoStub struct {
	store.Repository

	account *domain.TrialCreditAccount

	consumeApplied   int64
	consumeErr       error
	consumeRequested int64
	consumeCap       int64
	consumeExact     bool
	consumeCalled    bool
	earnCalled       bool
	refundedAmount   int64
	refundCalled     bool
}

func (s *creditRepoStub) ApplyCreditEarn(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) (*domain.TrialCreditAccount, error) {
	s.earnCalled = true
	return &domain.TrialCreditAccount{
		CustomerID:             customerID,
		ProfessionalID:         professionalID,
		CreditEarnedTotal:      amount,
		BookingsCompletedCount: 1,
	}, nil
}

func (s *creditRepoStub) ApplyCreditConsume(ctx context.Context, customerID, professionalID uuid.UUID, requested, cap int64, requireExact bool) (int64, error) {
	s.consumeCalled = true
	s.consumeRequested = requested
	s.consumeCap = cap
	s.consumeExact = requireExact
	if s.consumeErr != nil {
		return 0, s.consumeErr
	}
	return s.consumeApplied, nil
}

func (s *creditRepoStub) ApplyCreditRefund(ctx context.Context, customerID, professionalID uuid.UUID, amount int64) error {
	s.refundCalled = true
	s.refundedAmount = amount
	return nil
}

func (s *creditRepoStub) FindCreditAccount(ctx context.Context, customerID, professionalID uuid.UUID) (*domain.TrialCreditAccount, error) {
	if s.account == nil {
		return nil, store.ErrCreditAccountNotFound
	}
	return s.account, nil
}

func TestCreditCap_IsHalfTheDirectHireFee(t *testing.T) {
	svc := NewCreditService(&creditRepoStub{}, &publisherStub{}, 40000000)
	if svc.Cap() != 20000000 {
		t.Fatalf("expected cap 20000000, got %d", svc.Cap())
	}
}

func TestEarn_RejectsNegativeAmount(t *testing.T) {
	repo := &creditRepoStub{}
	svc := NewCreditService(repo, &publisherStub{}, 40000000)

	_, err := svc.Earn(context.Background(), uuid.New(), uuid.New(), -1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if repo.earnCalled {
		t.Fatal("expected no ledger write for a negative earn")
	}
}

func TestEarn_PublishesCreditEarned(t *testing.T) {
	repo := &creditRepoStub{}
	producer := &publisherStub{}
	svc := NewCreditService(repo, producer, 40000000)

	account, err := svc.Earn(context.Background(), uuid.New(), uuid.New(), 59000)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if account.CreditEarnedTotal != 59000 {
		t.Fatalf("expected earned total 59000, got %d", account.CreditEarnedTotal)
	}
	if len(producer.routingKeys) != 1 || producer.routingKeys[0] != domain.EventCreditEarned {
		t.Fatalf("expected a single credit.earned event, got %v", producer.routingKeys)
	}
}

func TestConsume_ZeroRequestSkipsTheLedger(t *testing.T) {
	repo := &creditRepoStub{}
	svc := NewCreditService(repo, &publisherStub{}, 40000000)

	applied, err := svc.Consume(context.Background(), uuid.New(), uuid.New(), 0, false)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if applied != 0 || repo.consumeCalled {
		t.Fatal("expected a zero request to skip the ledger")
	}
}

func TestConsume_PassesCapAndExactnessThrough(t *testing.T) {
	repo := &creditRepoStub{consumeApplied: 50000}
	svc := NewCreditService(repo, &publisherStub{}, 40000000)

	applied, err := svc.Consume(context.Background(), uuid.New(), uuid.New(), 80000, true)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if applied != 50000 {
		t.Fatalf("expected applied 50000, got %d", applied)
	}
	if repo.consumeRequested != 80000 {
		t.Fatalf("expected requested 80000, got %d", repo.consumeRequested)
	}
	if repo.consumeCap != 20000000 {
		t.Fatalf("expected the cap forwarded, got %d", repo.consumeCap)
	}
	if !repo.consumeExact {
		t.Fatal("expected requireExact forwarded")
	}
}

func TestConsume_InsufficientCreditPassesThrough(t *testing.T) {
	repo := &creditRepoStub{consumeErr: store.ErrInsufficientCredit}
	svc := NewCreditService(repo, &publisherStub{}, 40000000)

	_, err := svc.Consume(context.Background(), uuid.New(), uuid.New(), 80000, true)
	if !errors.Is(err, store.ErrInsufficientCredit) {
		t.Fatalf("expected store.ErrInsufficientCredit, got %v", err)
	}
}

func TestRefund_RestoresAppliedAmountWithoutEvents(t *testing.T) {
	repo := &creditRepoStub{}
	producer := &publisherStub{}
	svc := NewCreditService(repo, producer, 40000000)

	if err := svc.Refund(context.Background(), uuid.New(), uuid.New(), 50000); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !repo.refundCalled || repo.refundedAmount != 50000 {
		t.Fatalf("expected a refund of 50000, got called=%v amount=%d", repo.refundCalled, repo.refundedAmount)
	}
	if len(producer.routingKeys) != 0 {
		t.Fatalf("expected no events for a refund, got %v", producer.routingKeys)
	}
}

func TestRefund_SkipsNonPositiveAmounts(t *testing.T) {
	repo := &creditRepoStub{}
	svc := NewCreditService(repo, &publisherStub{}, 40000000)

	if err := svc.Refund(context.Background(), uuid.New(), uuid.New(), 0); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.refundCalled {
		t.Fatal("expected no ledger write for a zero refund")
	}
}

func TestStatus_MissingAccountReadsAsZeros(t *testing.T) {
	svc := NewCreditService(&creditRepoStub{}, &publisherStub{}, 40000000)

	status, err := svc.Status(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error for a missing account, got %v", err)
	}
	if status.CreditAvailable != 0 || status.BookingsCompletedCount != 0 || status.DisplayProgress != 0 {
		t.Fatalf("expected a zeroed status, got %+v", status)
	}
	if status.Cap != 20000000 {
		t.Fatalf("expected the cap present, got %d", status.Cap)
	}
}

func TestStatus_ClampsDisplayProgress(t *testing.T) {
	repo := &creditRepoStub{account: &domain.TrialCreditAccount{
		CreditEarnedTotal:      300000,
		CreditConsumedTotal:    100000,
		BookingsCompletedCount: 7,
	}}
	svc := NewCreditService(repo, &publisherStub{}, 40000000)

	status, err := svc.Status(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if status.BookingsCompletedCount != 7 {
		t.Fatalf("expected the raw count preserved, got %d", status.BookingsCompletedCount)
	}
	if status.DisplayProgress != CompletedBookingsDisplayCap {
		t.Fatalf("expected display progress clamped to %d, got %d", CompletedBookingsDisplayCap, status.DisplayProgress)
	}
	if status.CreditAvailable != 200000 {
		t.Fatalf("expected available 200000, got %d", status.CreditAvailable)
	}
}

func TestStatus_AvailableIsCappedForLargeBalances(t *testing.T) {
	repo := &creditRepoStub{account: &domain.TrialCreditAccount{
		CreditEarnedTotal:      30000000,
		BookingsCompletedCount: 3,
	}}
	svc := NewCreditService(repo, &publisherStub{}, 40000000)

	status, err := svc.Status(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if status.CreditAvailable != 20000000 {
		t.Fatalf("expected available capped at 20000000, got %d", status.CreditAvailable)
	}
}
