package events

import "time"

// Event is a versioned domain event stored in the outbox.
type Event interface {
	EventType() string
}

const (
	TypeAppointmentConfirmed = "appointment.confirmed.v1"
	TypeAppointmentCancelled = "appointment.cancelled.v1"
)

type AppointmentConfirmedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	SlotID        string    `json:"slot_id"`
	TriageLevel   string    `json:"triage_level"`
	SlotStart     time.Time `json:"slot_start"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

func (AppointmentConfirmedV1) EventType() string { return TypeAppointmentConfirmed }

type AppointmentCancelledV1 struct {
	AppointmentID string    `json:"appointment_id"`
	SlotID        string    `json:"slot_id"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

func (AppointmentCancelledV1) EventType() string { return TypeAppointmentCancelled }
