/**
 * @description
 * HTTP handlers for the recurring plan endpoints.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic and models.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/app"
	"github.com/rossostudios/maidconnect-booking/internal/domain"
)

// PlanHandlers holds the plan service that handlers will use.
type PlanHandlers struct {
	plans *app.PlanService
}

// NewPlanHandlers creates the handler set for recurring plan routes.
func NewPlanHandlers(plans *app.PlanService) *PlanHandlers {
	return &PlanHandlers{plans: plans}
}

func planIDOr400(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid plan id"})
		return uuid.Nil, false
	}
	return id, true
}

// CreatePlanHandler creates a recurring plan for the caller.
func (h *PlanHandlers) CreatePlanHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	var req domain.CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	plan, err := h.plans.Create(r.Context(), principal.ID, req)
	if err != nil {
		respondWithServiceError(w, "create_plan", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, plan)
}

// GetPlanHandler returns one of the caller's plans.
func (h *PlanHandlers) GetPlanHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	planID, ok := planIDOr400(w, r)
	if !ok {
		return
	}

	plan, err := h.plans.Get(r.Context(), principal.ID, planID)
	if err != nil {
		respondWithServiceError(w, "get_plan", err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

// ListPlansHandler returns all of the caller's plans.
func (h *PlanHandlers) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	plans, err := h.plans.List(r.Context(), principal.ID)
	if err != nil {
		respondWithServiceError(w, "list_plans", err)
		return
	}
	if plans == nil {
		plans = []domain.RecurringPlan{}
	}
	respondWithJSON(w, http.StatusOK, plans)
}

// PausePlanHandler suspends an active plan over a date window.
func (h *PlanHandlers) PausePlanHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	planID, ok := planIDOr400(w, r)
	if !ok {
		return
	}

	var req domain.PausePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	plan, err := h.plans.Pause(r.Context(), principal.ID, planID, req)
	if err != nil {
		respondWithServiceError(w, "pause_plan", err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

// ResumePlanHandler reactivates a paused plan.
func (h *PlanHandlers) ResumePlanHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	planID, ok := planIDOr400(w, r)
	if !ok {
		return
	}

	plan, err := h.plans.Resume(r.Context(), principal.ID, planID)
	if err != nil {
		respondWithServiceError(w, "resume_plan", err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

// CancelPlanHandler terminates a plan.
func (h *PlanHandlers) CancelPlanHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	planID, ok := planIDOr400(w, r)
	if !ok {
		return
	}

	plan, err := h.plans.Cancel(r.Context(), principal.ID, planID)
	if err != nil {
		respondWithServiceError(w, "cancel_plan", err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}
