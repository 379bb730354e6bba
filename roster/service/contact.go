// roster/service/contact.go
package service

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	phoneNoise   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// Contact holds at most one of Email or Phone.
type Contact struct {
	Email string
	Phone string
}

// NormalizeContact classifies raw as an email when it has an email shape and as a phone number
// otherwise. The value is kept as typed apart from surrounding whitespace.
func NormalizeContact(raw string) Contact {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Contact{}
	}
	if emailPattern.MatchString(value) {
		return Contact{Email: value}
	}
	return Contact{Phone: value}
}

// IsEmail reports whether raw has an email shape.
func IsEmail(raw string) bool {
	return emailPattern.MatchString(strings.TrimSpace(raw))
}

// IsValidContact accepts an email, or a phone number of up to 16 digits once spaces, dashes and
// parentheses are removed.
func IsValidContact(raw string) bool {
	value := strings.TrimSpace(raw)
	return emailPattern.MatchString(value) || phonePattern.MatchString(phoneNoise.Replace(value))
}

// Matches reports whether supplied equals the stored email or the stored phone.
func (c Contact) Matches(supplied string) bool {
	value := strings.TrimSpace(supplied)
	if value == "" {
		return false
	}
	return (c.Email != "" && c.Email == value) || (c.Phone != "" && c.Phone == value)
}
