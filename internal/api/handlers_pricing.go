/**
 * @description
 * HTTP handlers for the operator pricing-rule surface. These routes sit
 * behind the internal API key, not end-user authentication: rules are mutated
 * by the admin surface only, while the booking engine reads them.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic and models.
 */

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/app"
	"github.com/rossostudios/maidconnect-booking/internal/domain"
)

// PricingHandlers holds the pricing resolver that handlers will use.
type PricingHandlers struct {
	pricing *app.PricingResolver
}

// NewPricingHandlers creates the handler set for the pricing rule routes.
func NewPricingHandlers(pricing *app.PricingResolver) *PricingHandlers {
	return &PricingHandlers{pricing: pricing}
}

// CreatePricingRuleHandler creates a new rule.
func (h *PricingHandlers) CreatePricingRuleHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.CreatePricingRulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	rule, err := h.pricing.CreatePricingRule(r.Context(), payload)
	if err != nil {
		respondWithServiceError(w, "create_pricing_rule", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rule)
}

// ListPricingRulesHandler returns every rule, active or not.
func (h *PricingHandlers) ListPricingRulesHandler(w http.ResponseWriter, r *http.Request) {
	rules, err := h.pricing.ListPricingRules(r.Context())
	if err != nil {
		respondWithServiceError(w, "list_pricing_rules", err)
		return
	}
	if rules == nil {
		rules = []domain.PricingRule{}
	}
	respondWithJSON(w, http.StatusOK, rules)
}

// DeactivatePricingRuleHandler retires a rule without deleting it.
func (h *PricingHandlers) DeactivatePricingRuleHandler(w http.ResponseWriter, r *http.Request) {
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid rule id"})
		return
	}

	if err := h.pricing.DeactivatePricingRule(r.Context(), ruleID); err != nil {
		respondWithServiceError(w, "deactivate_pricing_rule", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// ResolvePricingHandler previews the terms the resolver would apply to a
// booking query right now. Used by the admin surface to sanity-check rules.
func (h *PricingHandlers) ResolvePricingHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	terms, err := h.pricing.Resolve(r.Context(), q.Get("category"), q.Get("city"), q.Get("country"), time.Now())
	if err != nil {
		respondWithServiceError(w, "resolve_pricing", err)
		return
	}
	respondWithJSON(w, http.StatusOK, terms)
}
