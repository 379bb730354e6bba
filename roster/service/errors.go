// roster/service/errors.go
package service

import (
	"errors"
	"fmt"
)

// Outcomes of roster operations. SlotTaken and ContactMismatch are expected under normal use;
// anything not listed here is an internal failure.
var (
	ErrValidation      = errors.New("validation error")
	ErrMatchNotFound   = errors.New("match not found")
	ErrMatchClosed     = errors.New("match is closed")
	ErrTeamNotFound    = errors.New("team not found")
	ErrTeamMismatch    = errors.New("team does not belong to this match")
	ErrInvalidSlot     = errors.New("slot number is invalid for this team size")
	ErrSlotTaken       = errors.New("slot already taken")
	ErrPlayerNotFound  = errors.New("no player in this slot")
	ErrContactMismatch = errors.New("contact does not match the registered player")
	ErrForbidden       = errors.New("not allowed to manage this match")
)

// ValidationError describes malformed input. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsExpected reports whether err is a domain outcome rather than an internal failure.
func IsExpected(err error) bool {
	for _, known := range []error{
		ErrValidation, ErrMatchNotFound, ErrMatchClosed, ErrTeamNotFound, ErrTeamMismatch,
		ErrInvalidSlot, ErrSlotTaken, ErrPlayerNotFound, ErrContactMismatch, ErrForbidden,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
