package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medislot/internal/events"
)

// Store opens units of work and serves reads that need no lock.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, after time.Time, limit int) ([]Slot, error)
}

// UnitOfWork is one transaction. Locks taken through it are held until
// Commit or Rollback. Rollback after Commit is a no-op.
type UnitOfWork interface {
	// LockSlot takes the exclusive lock on a slot row and returns it.
	// It returns ErrSlotNotFound or ErrLockTimeout.
	LockSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error)
	// UpsertPatient creates the patient for an unseen email or overwrites
	// the name of the existing one.
	UpsertPatient(ctx context.Context, in PatientInput) (*Patient, error)
	InsertAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	SetSlotStatus(ctx context.Context, slotID uuid.UUID, status SlotStatus) error
	// LockAppointment returns ErrAppointmentNotFound or ErrLockTimeout.
	LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	SetAppointmentStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error
	AppendEvent(ctx context.Context, aggregate string, evt events.Event) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Reader serves the appointment read views.
type Reader interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentView, error)
	ListAppointmentsByEmail(ctx context.Context, email string) ([]AppointmentView, error)
}
