package booking

import (
	"regexp"
	"strings"

	"massagebook/internal/apperr"
)

// Field names used in validation errors.
const (
	FieldService       = "service"
	FieldDate          = "date"
	FieldTime          = "time"
	FieldName          = "name"
	FieldEmail         = "email"
	FieldPhone         = "phone"
	FieldPaymentMethod = "payment_method"
	FieldCard          = "card"
	FieldStep          = "step"
)

var fieldOrder = []string{
	FieldStep, FieldService, FieldDate, FieldTime, FieldName, FieldEmail, FieldPhone, FieldPaymentMethod, FieldCard,
}

var (
	emailRegex     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameTokenRegex = regexp.MustCompile(`^[\p{L}'.\-]*\p{L}[\p{L}'.\-]*$`)
)

// FieldErrors maps a field to its message.
type FieldErrors map[string]string

// Err returns the first error in display order as a validation error, or nil.
func (fe FieldErrors) Err() error {
	for _, f := range fieldOrder {
		if msg, ok := fe[f]; ok {
			return apperr.Validation(f, msg)
		}
	}
	return nil
}

func (fe FieldErrors) add(err error) {
	if e, ok := apperr.As(err); ok && e.Kind == apperr.KindValidation {
		fe[e.Field] = e.Message
	}
}

// ValidateName requires at least two tokens made of letters, hyphens, apostrophes or periods.
func ValidateName(name string) error {
	tokens := strings.Fields(name)
	if len(tokens) == 0 {
		return apperr.Validation(FieldName, "Please enter your full name.")
	}
	for _, t := range tokens {
		if !nameTokenRegex.MatchString(t) {
			return apperr.Validation(FieldName, "Name may only contain letters, hyphens, apostrophes and periods.")
		}
	}
	if len(tokens) < 2 {
		return apperr.Validation(FieldName, "Please enter your first and last name.")
	}
	return nil
}

// ValidateEmail requires local@domain.tld.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return apperr.Validation(FieldEmail, "Please enter a valid email address.")
	}
	return nil
}

// NormalizePhone returns the 10 digits of a US number. Spaces, dashes,
// dots, parentheses and a leading +1 or 1 are accepted.
func NormalizePhone(phone string) (string, error) {
	digits := make([]byte, 0, 11)
	for _, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, byte(r))
		case strings.ContainsRune(" -.()+", r):
		default:
			return "", apperr.Validation(FieldPhone, "Phone number may only contain digits.")
		}
	}

	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", apperr.Validation(FieldPhone, "Please enter a 10-digit phone number.")
	}

	area := digits[:3]
	if area[0] < '2' {
		return "", apperr.Validation(FieldPhone, "Please enter a valid area code.")
	}
	if area[0] == area[1] && area[1] == area[2] {
		return "", apperr.Validation(FieldPhone, "Please enter a valid area code.")
	}
	if allSame(digits) {
		return "", apperr.Validation(FieldPhone, "Please enter a valid phone number.")
	}
	return string(digits), nil
}

// ValidatePhone is NormalizePhone without the result.
func ValidatePhone(phone string) error {
	_, err := NormalizePhone(phone)
	return err
}

func allSame(b []byte) bool {
	for _, c := range b[1:] {
		if c != b[0] {
			return false
		}
	}
	return true
}

// ValidateContact checks every contact field.
func ValidateContact(c Contact) FieldErrors {
	fe := FieldErrors{}
	fe.add(ValidateName(c.Name))
	fe.add(ValidateEmail(c.Email))
	fe.add(ValidatePhone(c.Phone))
	return fe
}
