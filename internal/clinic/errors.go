package clinic

import "errors"

var (
	ErrClinicNotFound    = errors.New("clinic: clinic not found")
	ErrDoctorNotFound    = errors.New("clinic: doctor not found")
	ErrSlotNotFound      = errors.New("clinic: slot not found")
	ErrInvalidSlotWindow = errors.New("clinic: start_time must be before end_time")
	ErrInvalidInput      = errors.New("clinic: invalid input")
)
