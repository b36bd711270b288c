/**
 * @description
 * The recurring plan scheduler logic. A plan spawns one booking per cadence
 * cycle; the scheduler pass fires plans whose next booking date has arrived,
 * advancing the date only after the booking was actually created so a failed
 * firing is retried on the next pass instead of silently skipping a cycle.
 * Completion of a spawned booking feeds back through AdvanceCycle to bump the
 * plan's completed-booking counter.
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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/domain"
	"github.com/rossostudios/maidconnect-booking/internal/store"
	"github.com/rossostudios/maidconnect-booking/pkg/rabbitmq"
)

// BookingCreator is the slice of the booking service the scheduler needs.
type BookingCreator interface {
	CreateFromPlan(ctx context.Context, plan *domain.RecurringPlan, scheduledStart time.Time) (*domain.Booking, error)
}

// PlanService provides the recurring plan operations.
type PlanService struct {
	repo             store.Repository
	bookings         BookingCreator
	eventProducer    rabbitmq.Publisher
	location         *time.Location
	resumeCutoffHour int

	now func() time.Time
}

// NewPlanService creates a new plan service instance. location is the
// platform's operating timezone; resumeCutoffHour decides whether a resumed
// plan restarts today or tomorrow.
func NewPlanService(repo store.Repository, bookings BookingCreator, producer rabbitmq.Publisher, location *time.Location, resumeCutoffHour int) *PlanService {
	if location == nil {
		location = time.UTC
	}
	return &PlanService{
		repo:             repo,
		bookings:         bookings,
		eventProducer:    producer,
		location:         location,
		resumeCutoffHour: resumeCutoffHour,
		now:              time.Now,
	}
}

func (s *PlanService) publishPlanEvent(ctx context.Context, routingKey string, plan *domain.RecurringPlan) {
	err := s.eventProducer.Publish(ctx, rabbitmq.BookingEventsExchange, routingKey, domain.PlanEventPayload{
		PlanID:          plan.ID,
		CustomerID:      plan.CustomerID,
		ProfessionalID:  plan.ProfessionalID,
		Status:          plan.Status,
		NextBookingDate: plan.NextBookingDate,
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		log.Printf("level=warn component=plans msg=\"failed to publish event\" routing_key=%s plan_id=%s err=%v", routingKey, plan.ID, err)
	}
}

func validateCreatePlanRequest(req domain.CreatePlanRequest, now time.Time) error {
	if req.ProfessionalID == uuid.Nil {
		return fmt.Errorf("%w: professional_id is required", ErrInvalidInput)
	}
	if !domain.ValidPlanFrequency(req.Frequency) {
		return fmt.Errorf("%w: frequency must be weekly, biweekly, or monthly", ErrInvalidInput)
	}
	if req.AnchorWeekday < 0 || req.AnchorWeekday > 6 {
		return fmt.Errorf("%w: anchor_weekday must be between 0 and 6", ErrInvalidInput)
	}
	if req.AnchorHour < 0 || req.AnchorHour > 23 {
		return fmt.Errorf("%w: anchor_hour must be between 0 and 23", ErrInvalidInput)
	}
	if req.DiscountPercentage < 0 || req.DiscountPercentage >= 1 {
		return fmt.Errorf("%w: discount_percentage must be in [0, 1)", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Template.ServiceCategory) == "" {
		return fmt.Errorf("%w: template.service_category is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Template.Country) == "" {
		return fmt.Errorf("%w: template.country is required", ErrInvalidInput)
	}
	if req.Template.HourlyRate <= 0 {
		return fmt.Errorf("%w: template.hourly_rate must be positive", ErrInvalidInput)
	}
	if req.Template.DurationHours <= 0 || req.Template.DurationHours > 24 {
		return fmt.Errorf("%w: template.duration_hours must be between 0 and 24", ErrInvalidInput)
	}
	if !req.FirstBookingDate.After(now) {
		return fmt.Errorf("%w: first_booking_date must be in the future", ErrInvalidInput)
	}
	return nil
}

// Create persists a new active plan anchored on its first booking date.
func (s *PlanService) Create(ctx context.Context, customerID uuid.UUID, req domain.CreatePlanRequest) (*domain.RecurringPlan, error) {
	if err := validateCreatePlanRequest(req, s.now()); err != nil {
		return nil, err
	}
	plan := &domain.RecurringPlan{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		ProfessionalID:     req.ProfessionalID,
		Template:           req.Template,
		Frequency:          req.Frequency,
		AnchorWeekday:      time.Weekday(req.AnchorWeekday),
		AnchorHour:         req.AnchorHour,
		Status:             domain.PlanStatusActive,
		NextBookingDate:    req.FirstBookingDate,
		DiscountPercentage: req.DiscountPercentage,
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	return plan, nil
}

func (s *PlanService) ownedPlan(ctx context.Context, customerID, planID uuid.UUID) (*domain.RecurringPlan, error) {
	plan, err := s.repo.FindPlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.CustomerID != customerID {
		return nil, ErrForbidden
	}
	return plan, nil
}

// Pause suspends an active plan over a date window. Bookings already created
// for the current cycle are left alone.
func (s *PlanService) Pause(ctx context.Context, customerID, planID uuid.UUID, req domain.PausePlanRequest) (*domain.RecurringPlan, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("%w: end_date must be after start_date", ErrInvalidInput)
	}
	plan, err := s.ownedPlan(ctx, customerID, planID)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.PausePlan(ctx, planID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to pause plan: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: cannot pause a plan in status %s", ErrStateConflict, plan.Status)
	}
	plan.Status = domain.PlanStatusPaused
	startCopy, endCopy := req.StartDate, req.EndDate
	plan.PauseStartDate = &startCopy
	plan.PauseEndDate = &endCopy
	s.publishPlanEvent(ctx, domain.EventPlanPaused, plan)
	return plan, nil
}

// Resume reactivates a paused plan. The next booking date restarts today when
// the local time is before the cutoff hour, otherwise tomorrow.
func (s *PlanService) Resume(ctx context.Context, customerID, planID uuid.UUID) (*domain.RecurringPlan, error) {
	plan, err := s.ownedPlan(ctx, customerID, planID)
	if err != nil {
		return nil, err
	}
	next := s.resumeDate()
	updated, err := s.repo.ResumePlan(ctx, planID, next)
	if err != nil {
		return nil, fmt.Errorf("failed to resume plan: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: cannot resume a plan in status %s", ErrStateConflict, plan.Status)
	}
	plan.Status = domain.PlanStatusActive
	plan.PauseStartDate = nil
	plan.PauseEndDate = nil
	plan.NextBookingDate = next
	s.publishPlanEvent(ctx, domain.EventPlanResumed, plan)
	return plan, nil
}

func (s *PlanService) resumeDate() time.Time {
	local := s.now().In(s.location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	if local.Hour() >= s.resumeCutoffHour {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// Cancel terminates a plan. Bookings already created are not retroactively
// cancelled.
func (s *PlanService) Cancel(ctx context.Context, customerID, planID uuid.UUID) (*domain.RecurringPlan, error) {
	plan, err := s.ownedPlan(ctx, customerID, planID)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.CancelPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel plan: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: cannot cancel a plan in status %s", ErrStateConflict, plan.Status)
	}
	plan.Status = domain.PlanStatusCancelled
	plan.PauseStartDate = nil
	plan.PauseEndDate = nil
	s.publishPlanEvent(ctx, domain.EventPlanCancelled, plan)
	return plan, nil
}

// Get returns the plan if the caller owns it.
func (s *PlanService) Get(ctx context.Context, customerID, planID uuid.UUID) (*domain.RecurringPlan, error) {
	return s.ownedPlan(ctx, customerID, planID)
}

// List returns all of the customer's plans.
func (s *PlanService) List(ctx context.Context, customerID uuid.UUID) ([]domain.RecurringPlan, error) {
	return s.repo.ListPlansByCustomer(ctx, customerID)
}

// AdvanceCycle is invoked when a plan-spawned booking completes. Paused and
// cancelled plans are skipped entirely.
func (s *PlanService) AdvanceCycle(ctx context.Context, planID uuid.UUID) error {
	plan, err := s.repo.FindPlanByID(ctx, planID)
	if err != nil {
		return err
	}
	if plan.Status == domain.PlanStatusCancelled {
		log.Printf("level=info component=plans msg=\"skipping cycle advance for cancelled plan\" plan_id=%s", planID)
		return nil
	}
	updated, err := s.repo.IncrementPlanBookingsCompleted(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to advance plan cycle: %w", err)
	}
	if updated {
		plan.TotalBookingsCompleted++
		s.publishPlanEvent(ctx, domain.EventPlanAdvanced, plan)
	}
	return nil
}

// NextCadenceDate adds one cadence unit to the prior date: 7 or 14 days for
// weekly/biweekly, a calendar-month add for monthly.
func NextCadenceDate(frequency string, prior time.Time) time.Time {
	switch frequency {
	case domain.PlanFrequencyWeekly:
		return prior.AddDate(0, 0, 7)
	case domain.PlanFrequencyBiweekly:
		return prior.AddDate(0, 0, 14)
	case domain.PlanFrequencyMonthly:
		return prior.AddDate(0, 1, 0)
	}
	return prior.AddDate(0, 0, 7)
}

// FireDuePlans creates a booking for every active plan whose next booking
// date has arrived, then advances the date one cadence. A failed firing
// leaves the date unchanged so the next scheduler pass retries it instead of
// silently advancing past a missed cycle. Returns the number of plans fired.
func (s *PlanService) FireDuePlans(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.ListDuePlans(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due plans: %w", err)
	}

	fired := 0
	for i := range due {
		plan := due[i]
		scheduledStart := s.firingStart(&plan, now)

		if _, err := s.bookings.CreateFromPlan(ctx, &plan, scheduledStart); err != nil {
			log.Printf("level=warn component=plans msg=\"plan firing failed; will retry next pass\" plan_id=%s next_booking_date=%s err=%v", plan.ID, plan.NextBookingDate.Format(time.RFC3339), err)
			continue
		}

		next := NextCadenceDate(plan.Frequency, plan.NextBookingDate)
		advanced, err := s.repo.AdvancePlanCycle(ctx, plan.ID, next)
		if err != nil {
			log.Printf("level=error component=plans msg=\"failed to advance next_booking_date after firing\" plan_id=%s err=%v", plan.ID, err)
			continue
		}
		if !advanced {
			// Plan was paused or cancelled between listing and firing.
			log.Printf("level=warn component=plans msg=\"plan state changed mid-firing\" plan_id=%s", plan.ID)
			continue
		}
		fired++
	}
	return fired, nil
}

// firingStart places the spawned booking at the plan's anchor hour on its
// next booking date, pushed forward day by day if that instant already
// passed.
func (s *PlanService) firingStart(plan *domain.RecurringPlan, now time.Time) time.Time {
	d := plan.NextBookingDate.In(s.location)
	start := time.Date(d.Year(), d.Month(), d.Day(), plan.AnchorHour, 0, 0, 0, s.location)
	for !start.After(now) {
		start = start.AddDate(0, 0, 1)
	}
	return start
}
