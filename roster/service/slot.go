// roster/service/slot.go
package service

// ValidateSlot checks slotNumber lies in [1, teamSize].
func ValidateSlot(slotNumber, teamSize int) error {
	if slotNumber < 1 || slotNumber > teamSize {
		return ErrInvalidSlot
	}
	return nil
}
