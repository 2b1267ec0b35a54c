// Package booking claims appointment slots under an exclusive row lock, offers
// alternatives to CRITICAL patients who lose a race, and cancels appointments.
package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medislot/internal/triage"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotBooked    SlotStatus = "BOOKED"
)

type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

// ResultStatus is the outcome reported to the caller of BookAppointment.
type ResultStatus string

const (
	StatusConfirmed ResultStatus = "CONFIRMED"
	StatusFailed    ResultStatus = "FAILED"
)

// Failure reasons returned to patients.
const (
	ReasonSlotNotFound   = "Slot not found"
	ReasonSlotTaken      = "Slot already booked by someone else"
	ReasonLockTimeout    = "Timed out waiting for the slot, please retry"
	ReasonDoctorMismatch = "Slot does not belong to this doctor"
)

// Slot is a bookable interval owned by a doctor.
type Slot struct {
	ID        uuid.UUID  `json:"id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Status    SlotStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

type Patient struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Appointment struct {
	ID          uuid.UUID         `json:"id"`
	PatientID   uuid.UUID         `json:"patient_id"`
	DoctorID    uuid.UUID         `json:"doctor_id"`
	SlotID      uuid.UUID         `json:"slot_id"`
	Symptoms    string            `json:"symptoms"`
	TriageLevel triage.Level      `json:"triage_level"`
	Status      AppointmentStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// AppointmentView is an appointment joined with the names a patient needs to see.
type AppointmentView struct {
	Appointment
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	ClinicName  string    `json:"clinic_name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// PatientInput carries the identity fields used for the upsert by email.
type PatientInput struct {
	Name  string
	Email string
	Phone string
}

// NormalizeEmail trims and lowercases an address so it can serve as the patient key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Request is a booking attempt for one slot.
type Request struct {
	PatientName  string
	PatientEmail string
	PatientPhone string
	DoctorID     uuid.UUID
	SlotID       uuid.UUID
	Symptoms     string
	TriageLevel  triage.Level
}

// Result is the structured outcome of BookAppointment.
type Result struct {
	Status         ResultStatus `json:"status"`
	AppointmentID  string       `json:"appointmentId,omitempty"`
	SlotTime       *time.Time   `json:"slotTime,omitempty"`
	TriageLevel    triage.Level `json:"triageLevel,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	SuggestedSlots []Slot       `json:"suggestedSlots,omitempty"`
}

func failed(reason string) *Result {
	return &Result{Status: StatusFailed, Reason: reason}
}
