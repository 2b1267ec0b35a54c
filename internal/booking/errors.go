package booking

import "errors"

var (
	ErrSlotNotFound        = errors.New("booking: slot not found")
	ErrAppointmentNotFound = errors.New("booking: appointment not found")
	ErrAlreadyCancelled    = errors.New("booking: appointment already cancelled")
	ErrLockTimeout         = errors.New("booking: timed out waiting for row lock")
	ErrInvalidTriageLevel  = errors.New("booking: invalid triage level")
	ErrMissingField        = errors.New("booking: missing required fields")
)
