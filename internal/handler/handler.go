// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/slot-booking/internal/booking"
	"github.com/Shivanand-hulikatti/slot-booking/internal/cache"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/service"
)

// BookingHandler holds all HTTP handlers for the slot booking API.
type BookingHandler struct {
	svc          *service.BookingService
	availability *cache.Projections[model.Availability]
	eligibility  *cache.Projections[model.EligibilityResult]
}

// NewBookingHandler constructs a BookingHandler. The caches hold computed
// views and are invalidated by the entity refs that writes report.
func NewBookingHandler(
	svc *service.BookingService,
	availability *cache.Projections[model.Availability],
	eligibility *cache.Projections[model.EligibilityResult],
) *BookingHandler {
	return &BookingHandler{svc: svc, availability: availability, eligibility: eligibility}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, reason string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Reason: reason})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch booking.ReasonOf(err) {
	case booking.ReasonNotFound:
		return http.StatusNotFound
	case booking.ReasonUnauthenticated:
		return http.StatusUnauthorized
	case booking.ReasonRegionMismatch:
		return http.StatusForbidden
	case booking.ReasonAlreadyRegistered,
		booking.ReasonCenterFull,
		booking.ReasonConcurrentConflict,
		booking.ReasonCapacityImmutable:
		return http.StatusConflict
	case booking.ReasonDuplicateEntry,
		booking.ReasonOverCapacity,
		booking.ReasonRegistrantRemoved:
		return http.StatusUnprocessableEntity
	case booking.ReasonInvalidInput:
		return http.StatusBadRequest
	case booking.ReasonRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Unexpected errors are logged and hidden
// behind a generic message.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %s failed: %v", r.Method, r.URL.Path, op, err)
		writeError(w, status, "failed to "+op, "")
		return
	}
	writeError(w, status, err.Error(), string(booking.ReasonOf(err)))
}

func (h *BookingHandler) invalidate(refs []model.EntityRef) {
	if len(refs) == 0 {
		return
	}
	h.availability.Invalidate(refs...)
	h.eligibility.Invalidate(refs...)
}

// ─── Centers ──────────────────────────────────────────────────────────────────

// CreateCenter handles POST /centers
func (h *BookingHandler) CreateCenter(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCenterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), string(booking.ReasonInvalidInput))
		return
	}

	center, err := h.svc.CreateCenter(r.Context(), req)
	if err != nil {
		fail(w, r, "create center", err)
		return
	}

	writeJSON(w, http.StatusCreated, center)
}

// ListCenters handles GET /centers
// Returns every center with its remaining slots, newest first.
func (h *BookingHandler) ListCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.svc.ListCenters(r.Context())
	if err != nil {
		fail(w, r, "list centers", err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	views := make([]model.CenterView, 0, len(centers))
	for _, c := range centers {
		views = append(views, model.CenterView{Center: c, Remaining: booking.RemainingSlots(&c)})
	}

	writeJSON(w, http.StatusOK, views)
}

// GetCenter handles GET /centers/{id}
func (h *BookingHandler) GetCenter(w http.ResponseWriter, r *http.Request) {
	center, err := h.svc.GetCenter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, "get center", err)
		return
	}

	writeJSON(w, http.StatusOK, model.CenterView{Center: *center, Remaining: booking.RemainingSlots(center)})
}

// UpdateCenter handles PATCH /centers/{id}
// Edits title or region and may append registrants. Capacity is immutable.
func (h *BookingHandler) UpdateCenter(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCenterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), string(booking.ReasonInvalidInput))
		return
	}

	update, err := h.svc.UpdateCenter(r.Context(), chi.URLParam(r, "id"), req)
	if update != nil {
		// Also on error: part of the edit may already be committed.
		h.invalidate(update.Invalidate)
	}
	if err != nil {
		fail(w, r, "update center", err)
		return
	}
	if update.Invalidate == nil {
		update.Invalidate = []model.EntityRef{}
	}

	writeJSON(w, http.StatusOK, update)
}

// Availability handles GET /centers/{id}/availability
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if a, ok := h.availability.Get(id); ok {
		writeJSON(w, http.StatusOK, a)
		return
	}

	tok := h.availability.Begin()
	a, err := h.svc.Availability(r.Context(), id)
	if err != nil {
		fail(w, r, "get availability", err)
		return
	}
	h.availability.Set(tok, id, *a, model.CenterRef(id))

	writeJSON(w, http.StatusOK, a)
}

// Eligibility handles GET /centers/{id}/eligibility
// Ineligibility is reported in the body with status 200.
func (h *BookingHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	centerID := chi.URLParam(r, "id")
	userID := UserID(r.Context())
	key := cache.Key(userID, centerID)
	if res, ok := h.eligibility.Get(key); ok {
		writeJSON(w, http.StatusOK, res)
		return
	}

	tok := h.eligibility.Begin()
	res, err := h.svc.Eligibility(r.Context(), userID, centerID)
	if err != nil {
		fail(w, r, "check eligibility", err)
		return
	}
	if userID != "" && res.Reason != string(booking.ReasonNotFound) {
		refs := []model.EntityRef{model.UserRef(userID), model.CenterRef(centerID)}
		if res.RegisteredCenterID != "" && res.RegisteredCenterID != centerID {
			refs = append(refs, model.CenterRef(res.RegisteredCenterID))
		}
		h.eligibility.Set(tok, key, *res, refs...)
	}

	writeJSON(w, http.StatusOK, res)
}

// Register handles POST /centers/{id}/register
// Books a slot for the calling user. The store re-checks eligibility on
// locked state, so concurrent callers can never overbook the center.
func (h *BookingHandler) Register(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.Register(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		status := statusFor(err)
		resp := model.RegisterResponse{Error: string(booking.ReasonOf(err)), Message: err.Error()}
		if status == http.StatusInternalServerError {
			log.Printf("%s %s: register failed: %v", r.Method, r.URL.Path, err)
			resp = model.RegisterResponse{Error: "internal", Message: "failed to register"}
		}
		writeJSON(w, status, resp)
		return
	}
	h.invalidate(reg.Invalidate)

	writeJSON(w, http.StatusCreated, model.RegisterResponse{
		OK:          true,
		Position:    reg.Position,
		Invalidated: reg.Invalidate,
	})
}

// ListRegistrations handles GET /centers/{id}/registrations
// Returns the registrant user ids in booking order.
func (h *BookingHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListRegistrants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, "list registrations", err)
		return
	}

	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, ids)
}

// ─── Users ────────────────────────────────────────────────────────────────────

// CreateUser handles POST /users
func (h *BookingHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), string(booking.ReasonInvalidInput))
		return
	}

	user, err := h.svc.CreateUser(r.Context(), req)
	if err != nil {
		fail(w, r, "create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /users/{id}
func (h *BookingHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, "get user", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ─── References ───────────────────────────────────────────────────────────────

// ValidateReferences handles POST /references/validate
// Reports the first repeated id in a reference list.
func (h *BookingHandler) ValidateReferences(w http.ResponseWriter, r *http.Request) {
	var req model.ValidateListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", string(booking.ReasonInvalidInput))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), string(booking.ReasonInvalidInput))
		return
	}

	writeJSON(w, http.StatusOK, h.svc.ValidateList(req.IDs))
}

// ─── Routing ──────────────────────────────────────────────────────────────────

// Routes mounts the API on r. registerLimit guards the register endpoint.
func (h *BookingHandler) Routes(r chi.Router, registerLimit func(http.Handler) http.Handler) {
	r.Get("/health", HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(Identify)
		h.api(r, registerLimit)
	})
}

func (h *BookingHandler) api(r chi.Router, registerLimit func(http.Handler) http.Handler) {
	r.Route("/centers", func(r chi.Router) {
		r.Post("/", h.CreateCenter)
		r.Get("/", h.ListCenters)
		r.Get("/{id}", h.GetCenter)
		r.Patch("/{id}", h.UpdateCenter)
		r.Get("/{id}/availability", h.Availability)
		r.Get("/{id}/eligibility", h.Eligibility)
		r.Get("/{id}/registrations", h.ListRegistrations)
		r.With(RequireUser, registerLimit).Post("/{id}/register", h.Register)
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/{id}", h.GetUser)
	})

	r.Post("/references/validate", h.ValidateReferences)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
