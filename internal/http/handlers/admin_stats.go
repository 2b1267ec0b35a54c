package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wolfman30/medislot/pkg/logging"
)

// AdminStatsHandler serves the admin overview counters.
type AdminStatsHandler struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewAdminStatsHandler creates a new admin stats handler.
func NewAdminStatsHandler(db *sql.DB, logger *logging.Logger) *AdminStatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminStatsHandler{
		db:     db,
		logger: logger,
	}
}

// AdminStatsResponse contains the directory-wide counters shown on the admin dashboard.
type AdminStatsResponse struct {
	Clinics        int `json:"clinics"`
	Doctors        int `json:"doctors"`
	Appointments   int `json:"appointments"`
	AvailableSlots int `json:"availableSlots"`
}

// GetStats returns counts of clinics, doctors, appointments and open slots.
// GET /admin/stats
func (h *AdminStatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.collect(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch admin stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminStatsHandler) collect(ctx context.Context) (AdminStatsResponse, error) {
	var stats AdminStatsResponse
	counters := []struct {
		name  string
		query string
		args  []any
		dest  *int
	}{
		{"clinics", `SELECT COUNT(*) FROM clinics`, nil, &stats.Clinics},
		{"doctors", `SELECT COUNT(*) FROM doctors`, nil, &stats.Doctors},
		{"appointments", `SELECT COUNT(*) FROM appointments`, nil, &stats.Appointments},
		{"available slots", `SELECT COUNT(*) FROM slots WHERE status = $1`, []any{"AVAILABLE"}, &stats.AvailableSlots},
	}
	for _, c := range counters {
		if err := h.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return AdminStatsResponse{}, fmt.Errorf("count %s: %w", c.name, err)
		}
	}
	return stats, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
