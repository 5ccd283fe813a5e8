package appointments

import "errors"

var (
	// ErrConflict is returned when the client already holds the slot.
	ErrConflict = errors.New("appointments: slot already booked")

	// ErrNotFound is returned when an appointment id is unknown.
	ErrNotFound = errors.New("appointments: not found")

	// ErrMissingClientID is returned when a client id is blank.
	ErrMissingClientID = errors.New("clientId is required")

	// ErrMissingDateTime is returned when the slot time is zero.
	ErrMissingDateTime = errors.New("dateTime is required")

	// ErrInvalidStatus is returned for statuses outside the known set.
	ErrInvalidStatus = errors.New("invalid status")
)
