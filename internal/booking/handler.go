package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/medislot/internal/triage"
	"github.com/wolfman30/medislot/pkg/logging"
)

// Handler exposes booking and appointment routes.
type Handler struct {
	transactor *Transactor
	reader     Reader
	limiter    *AttemptLimiter
	logger     *logging.Logger
}

// NewHandler wires the HTTP surface. reader may be nil when the appointment
// read views are not served; limiter may be nil to disable attempt limiting.
func NewHandler(transactor *Transactor, reader Reader, limiter *AttemptLimiter, logger *logging.Logger) *Handler {
	if transactor == nil {
		panic("booking: transactor required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{transactor: transactor, reader: reader, limiter: limiter, logger: logger}
}

// BookRequest is the body of POST /appointments.
type BookRequest struct {
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
	PatientPhone string `json:"patient_phone"`
	DoctorID     string `json:"doctor_id"`
	SlotID       string `json:"slot_id"`
	Symptoms     string `json:"symptoms"`
	TriageLevel  string `json:"triage_level"`
}

// Validate checks presence of every field but phone and converts the body
// into a Request.
func (b BookRequest) Validate() (Request, error) {
	for _, v := range []string{b.PatientName, b.PatientEmail, b.DoctorID, b.SlotID, b.Symptoms, b.TriageLevel} {
		if strings.TrimSpace(v) == "" {
			return Request{}, ErrMissingField
		}
	}
	doctorID, err := uuid.Parse(strings.TrimSpace(b.DoctorID))
	if err != nil {
		return Request{}, errors.New("invalid doctor_id")
	}
	slotID, err := uuid.Parse(strings.TrimSpace(b.SlotID))
	if err != nil {
		return Request{}, errors.New("invalid slot_id")
	}
	level, ok := triage.ParseLevel(b.TriageLevel)
	if !ok {
		return Request{}, ErrInvalidTriageLevel
	}
	return Request{
		PatientName:  strings.TrimSpace(b.PatientName),
		PatientEmail: NormalizeEmail(b.PatientEmail),
		PatientPhone: strings.TrimSpace(b.PatientPhone),
		DoctorID:     doctorID,
		SlotID:       slotID,
		Symptoms:     b.Symptoms,
		TriageLevel:  level,
	}, nil
}

// Book handles POST /appointments
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var body BookRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req, err := body.Validate()
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingField):
			writeError(w, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, ErrInvalidTriageLevel):
			writeError(w, http.StatusBadRequest, "triage_level must be one of CRITICAL, HIGH, NORMAL")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	if !h.limiter.Allow(r.Context(), req.PatientEmail) {
		writeError(w, http.StatusTooManyRequests, "Too many booking attempts, please try again later")
		return
	}

	result, err := h.transactor.BookAppointment(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Booking failed")
		return
	}

	status := http.StatusCreated
	if result.Status != StatusConfirmed {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

// GetAppointment handles GET /appointments/{id}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusNotImplemented, "appointment reads unavailable")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	view, err := h.reader.GetAppointment(r.Context(), id)
	if errors.Is(err, ErrAppointmentNotFound) {
		writeError(w, http.StatusNotFound, "Appointment not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch appointment", "error", err, "appointment_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to fetch appointment")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListByEmail handles GET /appointments?email=
func (h *Handler) ListByEmail(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusNotImplemented, "appointment reads unavailable")
		return
	}
	email := NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email required")
		return
	}
	views, err := h.reader.ListAppointmentsByEmail(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch appointments")
		return
	}
	if views == nil {
		views = []AppointmentView{}
	}
	writeJSON(w, http.StatusOK, views)
}

type cancelResponse struct {
	Message     string       `json:"message"`
	Appointment *Appointment `json:"appointment"`
}

// Cancel handles PATCH /appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	appt, err := h.transactor.CancelAppointment(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, cancelResponse{Message: "Appointment cancelled successfully", Appointment: appt})
	case errors.Is(err, ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "Appointment not found")
	case errors.Is(err, ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "Appointment already cancelled")
	case errors.Is(err, ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "Appointment is busy, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to cancel appointment")
	}
}

// SuggestedSlots handles GET /doctors/{id}/suggested-slots?limit=
func (h *Handler) SuggestedSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}
	limit := DefaultSuggestionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	slots, err := h.transactor.GetSuggestedSlots(r.Context(), doctorID, limit)
	if err != nil {
		h.logger.Error("failed to load suggested slots", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "Failed to fetch suggested slots")
		return
	}
	if slots == nil {
		slots = []Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
