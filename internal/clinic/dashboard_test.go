package clinic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/wolfman30/medislot/pkg/logging"
)

type stubDashboardRepo struct {
	days []BookingDay
	err  error

	gotClinic string
	gotStart  time.Time
	gotEnd    time.Time
}

func (s *stubDashboardRepo) BookingsByDay(_ context.Context, clinicID string, start, end time.Time) ([]BookingDay, error) {
	s.gotClinic = clinicID
	s.gotStart = start
	s.gotEnd = end
	return s.days, s.err
}

type stubGatherer struct {
	families []*dto.MetricFamily
	err      error
}

func (s stubGatherer) Gather() ([]*dto.MetricFamily, error) {
	return s.families, s.err
}

func latencyFamily(outcome string) *dto.MetricFamily {
	familyName := bookingLatencyMetric
	metricType := dto.MetricType_HISTOGRAM
	outcomeLabel := "outcome"
	return &dto.MetricFamily{
		Name: &familyName,
		Type: &metricType,
		Metric: []*dto.Metric{
			{
				Label: []*dto.LabelPair{{Name: &outcomeLabel, Value: ptrString(outcome)}},
				Histogram: &dto.Histogram{
					SampleCount: ptrUint64(10),
					Bucket: []*dto.Bucket{
						{UpperBound: ptrFloat64(1.0), CumulativeCount: ptrUint64(5)},
						{UpperBound: ptrFloat64(2.0), CumulativeCount: ptrUint64(9)},
						{UpperBound: ptrFloat64(3.0), CumulativeCount: ptrUint64(10)},
					},
				},
			},
		},
	}
}

func TestDashboardHandler_FillsMissingDaysAndTotals(t *testing.T) {
	clinicID := uuid.New()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)

	repo := &stubDashboardRepo{
		days: []BookingDay{
			{Day: start, DayLabel: "2025-01-01", Confirmed: 3, Cancelled: 1, Critical: 1},
			{Day: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), DayLabel: "2025-01-03", Confirmed: 0, Cancelled: 0, Critical: 0},
		},
	}
	gatherer := stubGatherer{families: []*dto.MetricFamily{latencyFamily("confirmed")}}

	handler := NewDashboardHandler(repo, gatherer, logging.Default())
	r := chi.NewRouter()
	r.Get("/admin/clinics/{id}/dashboard", handler.GetDashboard)

	req := httptest.NewRequest(http.MethodGet, "/admin/clinics/"+clinicID.String()+"/dashboard?start=2025-01-01T00:00:00Z&end=2025-01-04T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ClinicID != clinicID.String() {
		t.Fatalf("clinic_id = %q, want %q", resp.ClinicID, clinicID)
	}
	if resp.Confirmed != 3 || resp.Cancelled != 1 || resp.Critical != 1 {
		t.Fatalf("totals = %d/%d/%d, want 3/1/1", resp.Confirmed, resp.Cancelled, resp.Critical)
	}
	if resp.CancellationRatePct != 25 {
		t.Fatalf("cancellation_rate_pct = %f, want 25", resp.CancellationRatePct)
	}
	if len(resp.Daily) != 3 {
		t.Fatalf("daily length = %d, want 3", len(resp.Daily))
	}
	if resp.Daily[1].DayLabel != "2025-01-02" || resp.Daily[1].Confirmed != 0 {
		t.Fatalf("expected missing day 2025-01-02 to be filled with zeros, got %#v", resp.Daily[1])
	}

	if resp.BookingLatency.Total != 10 {
		t.Fatalf("booking_latency.total = %d, want 10", resp.BookingLatency.Total)
	}
	if resp.BookingLatency.P90Ms < 1999 || resp.BookingLatency.P90Ms > 2001 {
		t.Fatalf("booking_latency.p90_ms = %f, want ~2000", resp.BookingLatency.P90Ms)
	}
	if resp.BookingLatency.P95Ms < 2499 || resp.BookingLatency.P95Ms > 2501 {
		t.Fatalf("booking_latency.p95_ms = %f, want ~2500", resp.BookingLatency.P95Ms)
	}

	if repo.gotClinic != clinicID.String() || !repo.gotStart.Equal(start) || !repo.gotEnd.Equal(end) {
		t.Fatalf("repo called with (%q, %s, %s); want (%q, %s, %s)", repo.gotClinic, repo.gotStart, repo.gotEnd, clinicID, start, end)
	}
}

func TestDashboardHandler_BadWindow(t *testing.T) {
	handler := NewDashboardHandler(&stubDashboardRepo{}, stubGatherer{}, nil)
	r := chi.NewRouter()
	r.Get("/admin/clinics/{id}/dashboard", handler.GetDashboard)

	for _, q := range []string{"?start=2025-01-01T00:00:00Z", "?days=0", "?start=2025-01-02T00:00:00Z&end=2025-01-01T00:00:00Z"} {
		req := httptest.NewRequest(http.MethodGet, "/admin/clinics/"+uuid.NewString()+"/dashboard"+q, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestSnapshotBookingLatency_IgnoresOtherOutcomes(t *testing.T) {
	lat := snapshotBookingLatency(stubGatherer{families: []*dto.MetricFamily{latencyFamily("conflict")}})
	if lat.Total != 0 {
		t.Fatalf("expected total=0, got %d", lat.Total)
	}
	lat = snapshotBookingLatency(stubGatherer{families: nil})
	if lat.Total != 0 {
		t.Fatalf("expected total=0, got %d", lat.Total)
	}
}

func TestDashboardRepository_BookingsByDay(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	clinicID := uuid.NewString()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)
	mock.ExpectQuery(`FROM appointments a\s+JOIN doctors d`).
		WithArgs(clinicID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"day", "confirmed", "cancelled", "critical"}).
			AddRow(start, int64(2), int64(1), int64(1)))

	days, err := NewDashboardRepositoryWithDB(mock).BookingsByDay(context.Background(), clinicID, start, end)
	if err != nil {
		t.Fatalf("BookingsByDay failed: %v", err)
	}
	if len(days) != 1 || days[0].DayLabel != "2025-01-01" || days[0].Confirmed != 2 {
		t.Fatalf("unexpected days: %#v", days)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var _ prometheus.Gatherer = stubGatherer{}

func ptrString(v string) *string { return &v }

func ptrUint64(v uint64) *uint64 { return &v }

func ptrFloat64(v float64) *float64 { return &v }
