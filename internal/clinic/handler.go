package clinic

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/medislot/pkg/logging"
)

// Handler serves the clinic directory routes.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("clinic: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// ClinicRoutes mounts under /clinics.
func (h *Handler) ClinicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListClinics)
	r.Post("/", h.CreateClinic)
	r.Get("/{id}", h.GetClinic)
	r.Put("/{id}", h.UpdateClinic)
	r.Delete("/{id}", h.DeleteClinic)
	return r
}

// DoctorRoutes mounts under /doctors.
func (h *Handler) DoctorRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListDoctors)
	r.Post("/", h.CreateDoctor)
	r.Get("/{id}", h.GetDoctor)
	r.Put("/{id}", h.UpdateDoctor)
	r.Delete("/{id}", h.DeleteDoctor)
	r.Get("/{id}/slots", h.DoctorSlots)
	return r
}

// SlotRoutes mounts under /slots.
func (h *Handler) SlotRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListSlots)
	r.Post("/", h.CreateSlot)
	r.Put("/{id}", h.UpdateSlot)
	r.Delete("/{id}", h.DeleteSlot)
	return r
}

func (h *Handler) ListClinics(w http.ResponseWriter, r *http.Request) {
	clinics, err := h.repo.ListClinics(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to fetch clinics")
		return
	}
	writeJSON(w, http.StatusOK, clinics)
}

func (h *Handler) GetClinic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.repo.GetClinic(r.Context(), id)
	if err != nil {
		h.fail(w, err, "Failed to fetch clinic")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateClinic(w http.ResponseWriter, r *http.Request) {
	var in ClinicInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	c, err := h.repo.CreateClinic(r.Context(), in)
	if err != nil {
		h.fail(w, err, "Failed to create clinic")
		return
	}
	h.logger.Info("clinic created", "clinic_id", c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateClinic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in ClinicInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	c, err := h.repo.UpdateClinic(r.Context(), id, in)
	if err != nil {
		h.fail(w, err, "Failed to update clinic")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteClinic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.repo.DeleteClinic(r.Context(), id); err != nil {
		h.fail(w, err, "Failed to delete clinic")
		return
	}
	h.logger.Info("clinic deleted", "clinic_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Clinic deleted"})
}

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.repo.ListDoctors(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to fetch doctors")
		return
	}
	writeJSON(w, http.StatusOK, doctors)
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.repo.GetDoctor(r.Context(), id)
	if err != nil {
		h.fail(w, err, "Failed to fetch doctor")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var in DoctorInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	d, err := h.repo.CreateDoctor(r.Context(), in)
	if err != nil {
		h.fail(w, err, "Failed to create doctor")
		return
	}
	h.logger.Info("doctor created", "doctor_id", d.ID, "clinic_id", d.ClinicID)
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in DoctorInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	d, err := h.repo.UpdateDoctor(r.Context(), id, in)
	if err != nil {
		h.fail(w, err, "Failed to update doctor")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.repo.DeleteDoctor(r.Context(), id); err != nil {
		h.fail(w, err, "Failed to delete doctor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Doctor deleted"})
}

// DoctorSlots handles GET /doctors/{id}/slots
func (h *Handler) DoctorSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	slots, err := h.repo.ListAvailableSlots(r.Context(), id)
	if err != nil {
		h.fail(w, err, "Failed to fetch slots")
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// ListSlots handles GET /slots?doctor_id=
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "doctor_id is required")
		return
	}
	doctorID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor_id")
		return
	}
	slots, err := h.repo.ListSlots(r.Context(), doctorID)
	if err != nil {
		h.fail(w, err, "Failed to fetch slots")
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var in SlotInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		h.fail(w, err, "Failed to create slot")
		return
	}
	s, err := h.repo.CreateSlot(r.Context(), in)
	if err != nil {
		h.fail(w, err, "Failed to create slot")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in SlotInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.ValidateWindow(); err != nil {
		h.fail(w, err, "Failed to update slot")
		return
	}
	s, err := h.repo.UpdateSlot(r.Context(), id, in)
	if err != nil {
		h.fail(w, err, "Failed to update slot")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.repo.DeleteSlot(r.Context(), id); err != nil {
		h.fail(w, err, "Failed to delete slot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Slot deleted"})
}

// fail maps repository errors to HTTP responses.
func (h *Handler) fail(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrClinicNotFound):
		writeError(w, http.StatusNotFound, "Clinic not found")
	case errors.Is(err, ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "Doctor not found")
	case errors.Is(err, ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "Slot not found")
	case errors.Is(err, ErrInvalidSlotWindow):
		writeError(w, http.StatusBadRequest, "start_time must be before end_time")
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Missing required fields")
	default:
		h.logger.Error(strings.ToLower(fallback), "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
