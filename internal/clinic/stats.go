package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/medislot/pkg/logging"
)

// Stats summarizes booking activity for one clinic.
type Stats struct {
	ClinicID              string `json:"clinic_id"`
	Doctors               int64  `json:"doctors"`
	AvailableSlots        int64  `json:"available_slots"`
	BookedSlots           int64  `json:"booked_slots"`
	ConfirmedAppointments int64  `json:"confirmed_appointments"`
	CancelledAppointments int64  `json:"cancelled_appointments"`
	CriticalAppointments  int64  `json:"critical_appointments"`
	PeriodStart           string `json:"period_start"`
	PeriodEnd             string `json:"period_end"`
}

// statsDB defines the database interface needed by StatsRepository
type statsDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository queries clinic metrics from the database.
type StatsRepository struct {
	db statsDB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	if pool == nil {
		panic("clinic: pgx pool required for stats")
	}
	return &StatsRepository{db: pool}
}

// NewStatsRepositoryWithDB allows injecting a mock database for testing.
func NewStatsRepositoryWithDB(db statsDB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats retrieves aggregated metrics for a clinic. Appointment counts are
// limited to [start, end) when both are set; slot and doctor counts are current.
func (r *StatsRepository) GetStats(ctx context.Context, clinicID string, start, end *time.Time) (*Stats, error) {
	stats := &Stats{ClinicID: clinicID}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clinics WHERE id = $1)`, clinicID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("clinic stats: lookup clinic: %w", err)
	}
	if !exists {
		return nil, ErrClinicNotFound
	}

	var timeFilter string
	args := []any{clinicID}
	if start != nil && end != nil {
		timeFilter = ` AND a.created_at >= $2 AND a.created_at < $3`
		args = append(args, *start, *end)
		stats.PeriodStart = start.Format(time.RFC3339)
		stats.PeriodEnd = end.Format(time.RFC3339)
	} else {
		stats.PeriodStart = "all-time"
		stats.PeriodEnd = "now"
	}

	doctorsQuery := `SELECT COUNT(*) FROM doctors WHERE clinic_id = $1`
	if err := r.db.QueryRow(ctx, doctorsQuery, clinicID).Scan(&stats.Doctors); err != nil {
		return nil, fmt.Errorf("clinic stats: count doctors: %w", err)
	}

	slotsQuery := `
		SELECT
			COUNT(*) FILTER (WHERE s.status = 'AVAILABLE'),
			COUNT(*) FILTER (WHERE s.status = 'BOOKED')
		FROM slots s
		JOIN doctors d ON s.doctor_id = d.id
		WHERE d.clinic_id = $1`
	if err := r.db.QueryRow(ctx, slotsQuery, clinicID).Scan(&stats.AvailableSlots, &stats.BookedSlots); err != nil {
		return nil, fmt.Errorf("clinic stats: count slots: %w", err)
	}

	apptQuery := `
		SELECT
			COUNT(*) FILTER (WHERE a.status = 'CONFIRMED'),
			COUNT(*) FILTER (WHERE a.status = 'CANCELLED'),
			COUNT(*) FILTER (WHERE a.triage_level = 'CRITICAL')
		FROM appointments a
		JOIN doctors d ON a.doctor_id = d.id
		WHERE d.clinic_id = $1` + timeFilter
	if err := r.db.QueryRow(ctx, apptQuery, args...).Scan(
		&stats.ConfirmedAppointments, &stats.CancelledAppointments, &stats.CriticalAppointments,
	); err != nil {
		return nil, fmt.Errorf("clinic stats: count appointments: %w", err)
	}

	return stats, nil
}

// StatsHandler provides HTTP endpoints for clinic statistics.
type StatsHandler struct {
	repo   *StatsRepository
	logger *logging.Logger
}

// NewStatsHandler creates a new stats HTTP handler.
func NewStatsHandler(repo *StatsRepository, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{
		repo:   repo,
		logger: logger,
	}
}

// GetStats returns aggregated metrics for a clinic.
// GET /admin/clinics/{id}/stats
// Query params:
//   - start: RFC3339 timestamp for period start (optional)
//   - end: RFC3339 timestamp for period end (optional)
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start time, use RFC3339 format")
			return
		}
		start = &t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end time, use RFC3339 format")
			return
		}
		end = &t
	}

	// If only one is provided, require both
	if (start == nil) != (end == nil) {
		writeError(w, http.StatusBadRequest, "both start and end must be provided, or neither")
		return
	}

	stats, err := h.repo.GetStats(r.Context(), id.String(), start, end)
	if errors.Is(err, ErrClinicNotFound) {
		writeError(w, http.StatusNotFound, "Clinic not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get clinic stats", "clinic_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode clinic stats", "clinic_id", id, "error", err)
	}
}
