package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/medislot/internal/events"
	"github.com/wolfman30/medislot/internal/observability/metrics"
	"github.com/wolfman30/medislot/internal/triage"
	"github.com/wolfman30/medislot/pkg/logging"
)

var bookingTracer = otel.Tracer("medislot.internal.booking")

const (
	DefaultSuggestionLimit = 3
	MaxSuggestionLimit     = 20
)

// Transactor runs the slot claim and cancellation protocols against a Store.
type Transactor struct {
	store           Store
	logger          *logging.Logger
	metrics         *metrics.BookingMetrics
	suggestionLimit int
	now             func() time.Time
}

type Option func(*Transactor)

// WithSuggestionLimit sets how many alternatives a CRITICAL conflict receives.
func WithSuggestionLimit(n int) Option {
	return func(t *Transactor) {
		if n > 0 {
			t.suggestionLimit = clampLimit(n)
		}
	}
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(t *Transactor) { t.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(t *Transactor) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTransactor(store Store, logger *logging.Logger, opts ...Option) *Transactor {
	if store == nil {
		panic("booking: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	t := &Transactor{
		store:           store,
		logger:          logger,
		suggestionLimit: DefaultSuggestionLimit,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BookAppointment claims req.SlotID for the patient. Not-found, conflict and
// lock timeouts are reported as FAILED results; the returned error is set only
// for infrastructure failures, after the unit of work has been rolled back.
func (t *Transactor) BookAppointment(ctx context.Context, req Request) (*Result, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("medislot.slot_id", req.SlotID.String()),
		attribute.String("medislot.doctor_id", req.DoctorID.String()),
		attribute.String("medislot.triage_level", req.TriageLevel.String()),
	)

	start := time.Now()
	result, outcome, err := t.book(ctx, req)
	t.metrics.ObserveBooking(outcome, req.TriageLevel.String(), time.Since(start).Seconds())
	span.SetAttributes(attribute.String("medislot.booking_outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking failed")
		t.logger.Error("booking failed", "error", err, "slot_id", req.SlotID, "doctor_id", req.DoctorID)
		return nil, err
	}
	if result.Status == StatusConfirmed {
		t.logger.Info("appointment confirmed",
			"appointment_id", result.AppointmentID,
			"slot_id", req.SlotID,
			"triage_level", req.TriageLevel,
		)
	} else {
		t.logger.Warn("booking rejected",
			"slot_id", req.SlotID,
			"reason", result.Reason,
			"suggestions", len(result.SuggestedSlots),
		)
	}
	return result, nil
}

func (t *Transactor) book(ctx context.Context, req Request) (*Result, string, error) {
	uow, err := t.store.Begin(ctx)
	if err != nil {
		return nil, "error", fmt.Errorf("booking: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	slot, err := uow.LockSlot(ctx, req.SlotID)
	switch {
	case errors.Is(err, ErrSlotNotFound):
		return failed(ReasonSlotNotFound), "not_found", nil
	case errors.Is(err, ErrLockTimeout):
		return failed(ReasonLockTimeout), "timeout", nil
	case err != nil:
		return nil, "error", fmt.Errorf("booking: lock slot: %w", err)
	}

	if slot.DoctorID != req.DoctorID {
		return failed(ReasonDoctorMismatch), "mismatch", nil
	}

	if slot.Status != SlotAvailable {
		// Release the row before the suggestion read so waiters are not held up.
		if err := uow.Rollback(ctx); err != nil {
			t.logger.Warn("rollback after conflict failed", "error", err, "slot_id", req.SlotID)
		}
		result := failed(ReasonSlotTaken)
		if req.TriageLevel == triage.LevelCritical {
			result.SuggestedSlots = t.suggest(ctx, req.DoctorID)
		}
		return result, "conflict", nil
	}

	patient, err := uow.UpsertPatient(ctx, PatientInput{
		Name:  req.PatientName,
		Email: req.PatientEmail,
		Phone: req.PatientPhone,
	})
	if err != nil {
		return nil, "error", fmt.Errorf("booking: upsert patient: %w", err)
	}

	appt, err := uow.InsertAppointment(ctx, Appointment{
		PatientID:   patient.ID,
		DoctorID:    req.DoctorID,
		SlotID:      slot.ID,
		Symptoms:    req.Symptoms,
		TriageLevel: req.TriageLevel,
		Status:      AppointmentConfirmed,
	})
	if err != nil {
		return nil, "error", fmt.Errorf("booking: insert appointment: %w", err)
	}

	if err := uow.SetSlotStatus(ctx, slot.ID, SlotBooked); err != nil {
		return nil, "error", fmt.Errorf("booking: mark slot booked: %w", err)
	}

	evt := events.AppointmentConfirmedV1{
		AppointmentID: appt.ID.String(),
		PatientID:     patient.ID.String(),
		DoctorID:      req.DoctorID.String(),
		SlotID:        slot.ID.String(),
		TriageLevel:   req.TriageLevel.String(),
		SlotStart:     slot.StartTime,
		ConfirmedAt:   t.now().UTC(),
	}
	if err := uow.AppendEvent(ctx, appointmentAggregate(appt.ID), evt); err != nil {
		return nil, "error", fmt.Errorf("booking: append event: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, "error", fmt.Errorf("booking: commit: %w", err)
	}

	slotTime := slot.StartTime
	return &Result{
		Status:        StatusConfirmed,
		AppointmentID: appt.ID.String(),
		SlotTime:      &slotTime,
		TriageLevel:   req.TriageLevel,
	}, "confirmed", nil
}

// suggest is best effort: a failed read yields no suggestions rather than an error.
func (t *Transactor) suggest(ctx context.Context, doctorID uuid.UUID) []Slot {
	slots, err := t.GetSuggestedSlots(ctx, doctorID, t.suggestionLimit)
	if err != nil {
		t.logger.Warn("suggestion lookup failed", "error", err, "doctor_id", doctorID)
		return nil
	}
	t.metrics.ObserveSuggestions(len(slots))
	return slots
}

// GetSuggestedSlots returns up to limit AVAILABLE future slots for the doctor,
// earliest first. limit <= 0 uses DefaultSuggestionLimit.
func (t *Transactor) GetSuggestedSlots(ctx context.Context, doctorID uuid.UUID, limit int) ([]Slot, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	slots, err := t.store.ListAvailableSlots(ctx, doctorID, t.now(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("booking: suggested slots: %w", err)
	}
	return slots, nil
}

// CancelAppointment marks the appointment CANCELLED and frees its slot in one
// unit of work. It returns ErrAppointmentNotFound, ErrAlreadyCancelled or
// ErrLockTimeout for the expected failure cases.
func (t *Transactor) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("medislot.appointment_id", id.String()))

	appt, err := t.cancel(ctx, id)
	switch {
	case err == nil:
		t.metrics.ObserveCancellation("cancelled")
		t.logger.Info("appointment cancelled", "appointment_id", id, "slot_id", appt.SlotID)
	case errors.Is(err, ErrAppointmentNotFound):
		t.metrics.ObserveCancellation("not_found")
	case errors.Is(err, ErrAlreadyCancelled):
		t.metrics.ObserveCancellation("already_cancelled")
	case errors.Is(err, ErrLockTimeout):
		t.metrics.ObserveCancellation("timeout")
	default:
		t.metrics.ObserveCancellation("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		t.logger.Error("cancel failed", "error", err, "appointment_id", id)
	}
	return appt, err
}

func (t *Transactor) cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	uow, err := t.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	appt, err := uow.LockAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == AppointmentCancelled {
		return nil, ErrAlreadyCancelled
	}

	if _, err := uow.LockSlot(ctx, appt.SlotID); err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return nil, err
		}
		return nil, fmt.Errorf("booking: lock slot: %w", err)
	}
	if err := uow.SetAppointmentStatus(ctx, id, AppointmentCancelled); err != nil {
		return nil, fmt.Errorf("booking: cancel appointment: %w", err)
	}
	if err := uow.SetSlotStatus(ctx, appt.SlotID, SlotAvailable); err != nil {
		return nil, fmt.Errorf("booking: release slot: %w", err)
	}

	evt := events.AppointmentCancelledV1{
		AppointmentID: id.String(),
		SlotID:        appt.SlotID.String(),
		CancelledAt:   t.now().UTC(),
	}
	if err := uow.AppendEvent(ctx, appointmentAggregate(id), evt); err != nil {
		return nil, fmt.Errorf("booking: append event: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("booking: commit: %w", err)
	}

	appt.Status = AppointmentCancelled
	return appt, nil
}

func appointmentAggregate(id uuid.UUID) string {
	return "appointment:" + id.String()
}

func clampLimit(n int) int {
	if n > MaxSuggestionLimit {
		return MaxSuggestionLimit
	}
	return n
}
