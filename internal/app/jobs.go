/**
 * @description
 * Scheduled job implementations for the booking engine: firing due recurring
 * plans and reconciling bookings whose payment outcome is still unknown.
 */
package app

import (
	"context"
	"log/slog"
	"time"
)

// PlanFirer fires due recurring plans.
type PlanFirer interface {
	FireDuePlans(ctx context.Context) (int, error)
}

// AuthorizationReconciler re-queries the processor for stale bookings.
type AuthorizationReconciler interface {
	ReconcileStaleAuthorizations(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	plans           PlanFirer
	reconciler      AuthorizationReconciler
	logger          *slog.Logger
	staleAfter      time.Duration
	reconcileBudget int
}

// NewJobs creates a new Jobs runner.
func NewJobs(plans PlanFirer, reconciler AuthorizationReconciler, logger *slog.Logger, staleAfter time.Duration, reconcileBudget int) *Jobs {
	if reconcileBudget <= 0 {
		reconcileBudget = 100
	}
	return &Jobs{
		plans:           plans,
		reconciler:      reconciler,
		logger:          logger,
		staleAfter:      staleAfter,
		reconcileBudget: reconcileBudget,
	}
}

// FireDuePlans creates bookings for every plan whose next booking date has
// arrived.
func (j *Jobs) FireDuePlans() {
	j.logger.Info("starting plan firing job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fired, err := j.plans.FireDuePlans(ctx)
	if err != nil {
		j.logger.Error("plan firing job failed", "error", err)
		return
	}

	j.logger.Info("plan firing job finished", "plans_fired", fired)
}

// ReconcileStaleAuthorizations resolves bookings stuck in an authorized-side
// state past their scheduled end.
func (j *Jobs) ReconcileStaleAuthorizations() {
	j.logger.Info("starting stale authorization reconcile job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	finalized, err := j.reconciler.ReconcileStaleAuthorizations(ctx, j.staleAfter, j.reconcileBudget)
	if err != nil {
		j.logger.Error("stale authorization reconcile job failed", "error", err)
		return
	}

	j.logger.Info("stale authorization reconcile job finished", "bookings_finalized", finalized)
}
