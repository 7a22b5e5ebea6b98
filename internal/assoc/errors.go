package assoc

import "errors"

var (
	// ErrMissingColumn is returned when a buffer lacks a column the engine requires
	ErrMissingColumn = errors.New("missing required column")

	// ErrTimeBackwards is returned when reports of one track go back in time
	ErrTimeBackwards = errors.New("timestamp went backwards")

	// ErrUnknownUTN is returned when a UTN is referenced but not present
	ErrUnknownUTN = errors.New("unknown utn")

	// ErrAddressConflict is returned when targets violate address exclusivity
	ErrAddressConflict = errors.New("aircraft address conflict")
)
