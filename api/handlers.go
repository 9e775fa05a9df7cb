/*
handlers.go - HTTP API handlers for the ward booking system

PURPOSE:
  Exposes the booking engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Bookings:
    GET    /api/bookings                      List bookings (optional range)
    POST   /api/bookings                      Create booking
    GET    /api/bookings/{id}                 Get booking
    PUT    /api/bookings/{id}                 Update booking
    DELETE /api/bookings/{id}                 Delete booking
    POST   /api/bookings/{id}/relocate        Move to a new slot
    POST   /api/bookings/{id}/medication      Toggle medication order

  Calendar:
    GET    /api/calendar/{year}/{month}       Month grid
    GET    /api/slots/next                    Next bookable slots
    POST   /api/overrides                     Force open/close beds

  Configuration:
    GET    /api/config/lock-days              Current lock windows
    PUT    /api/config/lock-days              Set lock windows
    GET    /api/holidays                      List holidays
    POST   /api/holidays                      Add holiday
    DELETE /api/holidays/{date}               Remove holiday

  Audit and reporting:
    GET    /api/audit                         Recent audit entries
    GET    /api/reports/monthly               CSV export
    GET    /api/stats                         Dashboard counters

  Users (administrator-only):
    GET    /api/users
    POST   /api/users
    PUT    /api/users/{username}
    POST   /api/users/{username}/activate
    POST   /api/users/{username}/deactivate

ACTOR RESOLUTION:
  Every request names its actor in the X-Actor header; the handler
  resolves it against the user directory. Unknown or missing actors get
  401. The engine independently rejects inactive actors — the header is
  identification, not authentication.

ERROR HANDLING:
  Domain errors map to HTTP status by taxonomy:
  - 400: Invalid input, dose ceiling
  - 403: Forbidden, lock window
  - 404: Not found
  - 409: Slot taken, slot closed, duplicate username
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ward/engine.go: The domain logic behind every endpoint
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/ward-engine/identity"
	"github.com/warp/ward-engine/report"
	"github.com/warp/ward-engine/ward"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *ward.Engine
	Index  ward.ScheduleIndex
	Audit  ward.AuditLog
	Users  identity.Directory
	Log    zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(engine *ward.Engine, index ward.ScheduleIndex, audit ward.AuditLog, users identity.Directory, log zerolog.Logger) *Handler {
	return &Handler{Engine: engine, Index: index, Audit: audit, Users: users, Log: log}
}

// actor resolves the requesting account from the X-Actor header. A nil
// return means the response has already been written.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) *ward.Actor {
	username := r.Header.Get("X-Actor")
	if username == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-Actor header", nil)
		return nil
	}
	a, err := h.Users.Get(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve actor", err)
		return nil
	}
	if a == nil {
		writeError(w, http.StatusUnauthorized, "Unknown actor", nil)
		return nil
	}
	return a
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// ListBookings returns bookings, optionally limited to a date range and
// category via ?from=&to=&category= query parameters.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fromStr, toStr := r.URL.Query().Get("from"), r.URL.Query().Get("to")

	if fromStr == "" && toStr == "" {
		bookings, err := h.Index.List(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list bookings", err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingDTOs(bookings))
		return
	}

	from, err := ward.ParseDate(fromStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := ward.ParseDate(toStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}
	bookings, err := h.Index.ListRange(ctx, from, to, ward.Category(r.URL.Query().Get("category")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTOs(bookings))
}

// GetBooking returns a single booking.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	b, err := h.Index.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get booking", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// CreateBooking creates a new booking.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	b, err := h.Engine.Create(r.Context(), in, *actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(*b))
}

// UpdateBooking applies a partial update.
func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var req UpdateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	b, err := h.Engine.Update(r.Context(), id, in, *actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// DeleteBooking removes a booking.
func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	if err := h.Engine.Delete(r.Context(), id, *actor); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RelocateBooking moves a booking to a new slot.
func (h *Handler) RelocateBooking(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var req RelocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	date, err := ward.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	b, err := h.Engine.Relocate(r.Context(), id, date, ward.Bed(req.Bed), *actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// ToggleMedication flips the medication-ordered flag.
func (h *Handler) ToggleMedication(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	b, err := h.Engine.ToggleMedicationOrder(r.Context(), id, *actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// GetMonthView returns the month grid.
func (h *Handler) GetMonthView(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	days, err := h.Engine.MonthView(r.Context(), year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]DayViewDTO, len(days))
	for i, d := range days {
		dtos[i] = toDayViewDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// NextSlots returns the next bookable inpatient slots.
func (h *Handler) NextSlots(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	slots, err := h.Engine.NextAvailableSlots(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to find slots", err)
		return
	}
	dtos := make([]SlotDTO, len(slots))
	for i, s := range slots {
		dtos[i] = SlotDTO{Date: s.Date.String(), Bed: string(s.Bed)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ToggleOverride force-opens or force-closes beds on a date.
func (h *Handler) ToggleOverride(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	date, err := ward.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Engine.ToggleDayOverride(r.Context(), date, req.Scope, req.Open, *actor); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CONFIGURATION HANDLERS
// =============================================================================

// GetLockDays returns the current lock configuration.
func (h *Handler) GetLockDays(w http.ResponseWriter, r *http.Request) {
	cfg := h.Engine.LockConfig()
	writeJSON(w, http.StatusOK, LockDaysDTO{
		InpatientDays:  cfg.InpatientDays,
		OutpatientDays: cfg.OutpatientDays,
	})
}

// SetLockDays replaces the lock configuration.
func (h *Handler) SetLockDays(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	var req LockDaysDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	cfg := ward.LockConfig{InpatientDays: req.InpatientDays, OutpatientDays: req.OutpatientDays}
	if err := h.Engine.SetLockDays(r.Context(), cfg, *actor); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListHolidays returns the designated holidays in calendar order.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Calendar().Holidays.Sorted())
}

// AddHoliday designates a holiday.
func (h *Handler) AddHoliday(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	var req HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	date, err := ward.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Engine.AddHoliday(r.Context(), date, *actor); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveHoliday removes a holiday designation.
func (h *Handler) RemoveHoliday(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}
	date, err := ward.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Engine.RemoveHoliday(r.Context(), date, *actor); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// AUDIT AND REPORTING
// =============================================================================

// GetAudit returns recent audit entries, newest first. With ?start=&end=
// (RFC 3339) it filters by timestamp instead.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startStr, endStr := r.URL.Query().Get("start"), r.URL.Query().Get("end")

	if startStr != "" || endStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start timestamp (use RFC 3339)", err)
			return
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end timestamp (use RFC 3339)", err)
			return
		}
		entries, err := h.Audit.FilterByRange(ctx, start, end)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
			return
		}
		writeJSON(w, http.StatusOK, toAuditDTOs(entries))
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	entries, err := h.Audit.Recent(ctx, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(entries))
}

// MonthlyReport streams the monthly schedule as CSV.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(w, r)
	if actor == nil {
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	from, to, err := report.MonthRange(year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	category := ward.CategoryInpatient
	if s := r.URL.Query().Get("category"); s != "" {
		category = ward.Category(s)
	}

	// Render fully before committing headers so an error mid-export
	// cannot produce a truncated 200 response.
	var buf bytes.Buffer
	if err := report.WriteCSV(r.Context(), &buf, h.Index, from, to, category); err != nil {
		writeDomainError(w, err)
		return
	}
	target := fmt.Sprintf("%04d-%02d", year, month)
	if err := h.Engine.RecordExport(r.Context(), target,
		fmt.Sprintf("exported monthly %s report %s", category, target), *actor); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", report.Filename(year, month, category)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetStats returns the dashboard counters.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, StatsDTO{
		TodayInpatients:  stats.TodayInpatients,
		TodayOutpatients: stats.TodayOutpatients,
		MonthInpatients:  stats.MonthInpatients,
		MonthOutpatients: stats.MonthOutpatients,
		MedPending:       stats.MedPending,
	})
}

// =============================================================================
// USER MANAGEMENT
// =============================================================================

// requireAdmin resolves the actor and rejects non-administrators. A nil
// return means the response has already been written.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) *ward.Actor {
	actor := h.actor(w, r)
	if actor == nil {
		return nil
	}
	if !actor.IsActive || !actor.IsAdmin() {
		writeError(w, http.StatusForbidden, "Administrator access required", nil)
		return nil
	}
	return actor
}

// ListUsers returns all accounts.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	users, err := h.Users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser adds an account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	account := ward.Actor{
		Username: req.Username,
		Name:     req.Name,
		Role:     ward.Role(req.Role),
		IsActive: true,
	}
	if err := h.Users.Create(r.Context(), account); err != nil {
		if errors.Is(err, identity.ErrDuplicateUsername) {
			writeError(w, http.StatusConflict, "Username already exists", nil)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(account))
}

// UpdateUser changes an account's display name and role.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	username := chi.URLParam(r, "username")

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	existing, err := h.Users.Get(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	existing.Name = req.Name
	existing.Role = ward.Role(req.Role)
	if err := h.Users.Update(r.Context(), *existing); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*existing))
}

// ActivateUser re-enables an account.
func (h *Handler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	if err := h.Users.SetActive(r.Context(), chi.URLParam(r, "username"), true); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeactivateUser disables an account. Administrators cannot deactivate
// themselves, so the system always keeps a working administrator.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	actor := h.requireAdmin(w, r)
	if actor == nil {
		return
	}
	username := chi.URLParam(r, "username")
	if username == actor.Username {
		writeError(w, http.StatusBadRequest, "Cannot deactivate your own account", nil)
		return
	}
	if err := h.Users.SetActive(r.Context(), username, false); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func bookingID(w http.ResponseWriter, r *http.Request) (ward.BookingID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking id", err)
		return 0, false
	}
	return ward.BookingID(id), true
}

// writeDomainError maps the domain error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ward.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, ward.ErrSlotTaken):
		writeError(w, http.StatusConflict, "Slot already booked", err)
	case errors.Is(err, ward.ErrSlotClosed):
		writeError(w, http.StatusConflict, "Slot closed", err)
	case errors.Is(err, ward.ErrDoseExceedsLimit):
		writeError(w, http.StatusBadRequest, "Dose exceeds outpatient limit", err)
	case errors.Is(err, ward.ErrLockedWindow):
		writeError(w, http.StatusForbidden, "Date is inside the lock window", err)
	case errors.Is(err, ward.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, ward.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
