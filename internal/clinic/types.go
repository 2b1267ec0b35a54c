package clinic

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Clinic struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Doctor carries the clinic columns joined by the list and detail reads.
type Doctor struct {
	ID             uuid.UUID `json:"id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ClinicName     string    `json:"clinic_name,omitempty"`
	ClinicAddress  string    `json:"address,omitempty"`
	ClinicPhone    string    `json:"clinic_phone,omitempty"`
}

type ClinicInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

func (in *ClinicInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" || in.Address == "" || in.Phone == "" {
		return fmt.Errorf("%w: name, address and phone are required", ErrInvalidInput)
	}
	return nil
}

type DoctorInput struct {
	ClinicID       uuid.UUID `json:"clinic_id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
}

func (in *DoctorInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Specialization = strings.TrimSpace(in.Specialization)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if in.ClinicID == uuid.Nil || in.Name == "" || in.Specialization == "" || in.Email == "" {
		return fmt.Errorf("%w: clinic_id, name, specialization and email are required", ErrInvalidInput)
	}
	return nil
}

type SlotInput struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// ValidateWindow checks the interval only; creation also needs a doctor.
func (in SlotInput) ValidateWindow() error {
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return fmt.Errorf("%w: start_time and end_time are required", ErrInvalidInput)
	}
	if !in.StartTime.Before(in.EndTime) {
		return ErrInvalidSlotWindow
	}
	return nil
}

func (in SlotInput) Validate() error {
	if in.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrInvalidInput)
	}
	return in.ValidateWindow()
}
