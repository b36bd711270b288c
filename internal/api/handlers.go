/**
 * @description
 * This file contains the HTTP handlers for the booking lifecycle and trial
 * credit endpoints. Handlers are responsible for parsing incoming requests,
 * calling the appropriate methods on the application services, and writing the
 * HTTP response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/app"
	"github.com/rossostudios/maidconnect-booking/internal/domain"
	"github.com/rossostudios/maidconnect-booking/internal/store"
)

// BookingHandlers holds the application services that handlers will use.
type BookingHandlers struct {
	bookings    *app.BookingService
	credits     *app.CreditService
	rateLimiter *app.RedisBookingRateLimiter
	createLimit int
}

// NewBookingHandlers creates the handler set for booking and credit routes.
func NewBookingHandlers(bookings *app.BookingService, credits *app.CreditService, limiter *app.RedisBookingRateLimiter, createLimit int) *BookingHandlers {
	return &BookingHandlers{
		bookings:    bookings,
		credits:     credits,
		rateLimiter: limiter,
		createLimit: createLimit,
	}
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondWithServiceError maps application errors onto HTTP statuses. Payment
// and state-conflict detail stays in the logs; the caller gets a generic
// signal.
func respondWithServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrBookingNotFound),
		errors.Is(err, store.ErrPlanNotFound),
		errors.Is(err, store.ErrPricingRuleNotFound):
		respondWithJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, app.ErrForbidden):
		respondWithJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, store.ErrInsufficientCredit):
		respondWithJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "insufficient trial credit"})
	case errors.Is(err, app.ErrScheduleUnavailable):
		respondWithJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, app.ErrStateConflict), errors.Is(err, app.ErrPaymentStateMismatch):
		log.Printf("level=warn component=api op=%s msg=\"state conflict\" err=%v", op, err)
		respondWithJSON(w, http.StatusConflict, errorResponse{Error: "operation not allowed in the current state"})
	case errors.Is(err, app.ErrPaymentProcessor):
		log.Printf("level=warn component=api op=%s msg=\"payment processor failure\" err=%v", op, err)
		respondWithJSON(w, http.StatusBadGateway, errorResponse{Error: "payment processing is temporarily unavailable, try again"})
	default:
		log.Printf("level=error component=api op=%s msg=\"unhandled error\" err=%v", op, err)
		respondWithJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func principalOr401(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return Principal{}, false
	}
	return p, true
}

func bookingIDOr400(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return uuid.Nil, false
	}
	return id, true
}

// CreateBookingHandler prices and creates a one-off booking for the caller.
func (h *BookingHandlers) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	if h.rateLimiter != nil && h.createLimit > 0 {
		count, retryAfter, err := h.rateLimiter.ConsumeBookingCreate(r.Context(), principal.ID.String(), h.createLimit)
		if err != nil {
			log.Printf("level=warn component=api op=create_booking msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if count > h.createLimit {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			respondWithJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many booking requests, slow down"})
			return
		}
	}

	var req domain.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.bookings.Create(r.Context(), principal.ID, req)
	if err != nil {
		respondWithServiceError(w, "create_booking", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, booking)
}

// GetBookingHandler returns one booking the caller is party to.
func (h *BookingHandlers) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDOr400(w, r)
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(r.Context(), principal.ID, bookingID, principal.Role == RoleAdmin)
	if err != nil {
		respondWithServiceError(w, "get_booking", err)
		return
	}
	respondWithJSON(w, http.StatusOK, booking)
}

// ListBookingsHandler returns a page of the caller's bookings.
func (h *BookingHandlers) ListBookingsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	bookings, err := h.bookings.ListBookings(r.Context(), principal.ID, limit, offset)
	if err != nil {
		respondWithServiceError(w, "list_bookings", err)
		return
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	respondWithJSON(w, http.StatusOK, bookings)
}

// CreatePaymentIntentHandler creates the manual-capture processor intent for a
// pending booking and moves it to pending_payment.
func (h *BookingHandlers) CreatePaymentIntentHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDOr400(w, r)
	if !ok {
		return
	}

	booking, err := h.bookings.CreatePaymentIntent(r.Context(), principal.ID, bookingID)
	if err != nil {
		respondWithServiceError(w, "create_payment_intent", err)
		return
	}
	respondWithJSON(w, http.StatusOK, booking)
}

// AuthorizeBookingHandler records a processor authorization reported by the
// client after card confirmation. The webhook consumer drives the same
// transition asynchronously, so this is idempotent.
func (h *BookingHandlers) AuthorizeBookingHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := principalOr401(w, r); !ok {
		return
	}
	bookingID, ok := bookingIDOr400(w, r)
	if !ok {
		return
	}

	var req domain.AuthorizeBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.bookings.Authorize(r.Context(), bookingID, req.PaymentIntentID)
	if err != nil {
		respondWithServiceError(w, "authorize_booking", err)
		return
	}
	respondWithJSON(w, http.StatusOK, booking)
}

// ConfirmBookingHandler records the professional's acceptance.
func (h *BookingHandlers) ConfirmBookingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDOr400(w, r)
	if !ok {
		return
	}

	booking, err := h.bookings.Confirm(r.Context(), principal.ID, bookingID)
	if err != nil {
		respondWithServiceError(w, "confirm_booking", err)
		return
	}
	respondWithJSON(w, http.StatusOK, booking)
}

// StartBookingHandler marks service delivery as begun.
func (h *BookingHandlers) StartBookingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDOr400(w, r)
	if !ok {
		return
	}

	booking, err := h.bookings.Start(r.Context(), principal.ID, bookingID)
	if err != nil {
		respondWithServiceError(w, "start_booking", err)
		return
	}
	respondWithJSON(w, http.StatusOK, booking)
}

// CaptureBookingHandler captures the authorized payment and completes the
// booking. Only the booking's professional or an admin may trigger it.
func (h *BookingHandlers) CaptureBookingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDOr400(w, r)
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(r.Context(), principal.ID, bookingID, principal.Role == RoleAdmin)
	if err != nil {
		respondWithServiceError(w, "capture_booking", err)
		return
	}
	if principal.Role != RoleAdmin && booking.ProfessionalID != principal.ID {
		respondWithJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	var req domain.CaptureBookingRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	captured, err := h.bookings.Capture(r.Context(), bookingID, req.Amount)
	if err != nil {
		respondWithServiceError(w, "capture_booking", err)
		return
	}
	respondWithJSON(w, http.StatusOK, captured)
}

// CancelBookingHandler cancels a booking, recording the late-cancellation fee
// when inside the late window.
func (h *BookingHandlers) CancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDOr400(w, r)
	if !ok {
		return
	}

	// Ownership check; admins may cancel any booking.
	if _, err := h.bookings.GetBooking(r.Context(), principal.ID, bookingID, principal.Role == RoleAdmin); err != nil {
		respondWithServiceError(w, "cancel_booking", err)
		return
	}

	var req domain.CancelBookingRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	actor := fmt.Sprintf("%s:%s", principal.Role, principal.ID)
	cancelled, err := h.bookings.Cancel(r.Context(), bookingID, actor, req.Reason, principal.Role == RoleAdmin)
	if err != nil {
		respondWithServiceError(w, "cancel_booking", err)
		return
	}
	respondWithJSON(w, http.StatusOK, cancelled)
}

// DeclineBookingHandler records the professional turning a request down.
func (h *BookingHandlers) DeclineBookingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDOr400(w, r)
	if !ok {
		return
	}

	booking, err := h.bookings.Decline(r.Context(), principal.ID, bookingID)
	if err != nil {
		respondWithServiceError(w, "decline_booking", err)
		return
	}
	respondWithJSON(w, http.StatusOK, booking)
}

// CreditStatusHandler returns the caller's trial credit position with one
// professional.
func (h *BookingHandlers) CreditStatusHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	professionalID, err := uuid.Parse(chi.URLParam(r, "professionalID"))
	if err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid professional id"})
		return
	}

	status, err := h.credits.Status(r.Context(), principal.ID, professionalID)
	if err != nil {
		respondWithServiceError(w, "credit_status", err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}
