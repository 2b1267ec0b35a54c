package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	outcomes      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	suggestions   prometheus.Histogram
	cancellations *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medislot",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome and triage level",
		}, []string{"outcome", "triage_level"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medislot",
			Subsystem: "booking",
			Name:      "duration_seconds",
			Help:      "Latency of booking transactions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		suggestions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medislot",
			Subsystem: "booking",
			Name:      "suggested_slots",
			Help:      "Number of alternative slots offered on CRITICAL conflicts",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medislot",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Appointment cancellations by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outcomes, m.duration, m.suggestions, m.cancellations)
	return m
}

// ObserveBooking records a finished booking attempt. outcome is "confirmed" or
// a failure label such as "conflict", "not_found", "timeout" or "error".
func (m *BookingMetrics) ObserveBooking(outcome, triageLevel string, seconds float64) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome, triageLevel).Inc()
	m.duration.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveSuggestions(count int) {
	if m == nil {
		return
	}
	m.suggestions.Observe(float64(count))
}

func (m *BookingMetrics) ObserveCancellation(result string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(result).Inc()
}
