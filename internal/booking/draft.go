package booking

import (
	"fmt"
	"strings"

	"massagebook/internal/apperr"
	"massagebook/internal/bookingapi"
	"massagebook/internal/calendar"
)

// PaymentMethod is how the client settles the booking.
type PaymentMethod string

const (
	PaymentCard          PaymentMethod = "card"
	PaymentCash          PaymentMethod = "cash"
	PaymentOther         PaymentMethod = "other"
	PaymentComplimentary PaymentMethod = "complimentary"
)

// PaymentMethods in display order.
var PaymentMethods = []PaymentMethod{PaymentCard, PaymentCash, PaymentOther, PaymentComplimentary}

// ParsePaymentMethod accepts any case.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range PaymentMethods {
		if m == known {
			return m, nil
		}
	}
	return "", apperr.Validation(FieldPaymentMethod, fmt.Sprintf("Unknown payment method %q.", s))
}

// RequiresCard reports whether the card widget is involved.
func (m PaymentMethod) RequiresCard() bool { return m == PaymentCard }

// Contact is free text until the contact step is validated.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CardStatus is what the card widget last reported.
type CardStatus struct {
	Complete        bool   `json:"complete"`
	Error           string `json:"error,omitempty"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
}

// Ready means the widget holds a complete, error-free, tokenized card.
func (c CardStatus) Ready() bool {
	return c.Complete && c.Error == "" && c.PaymentMethodID != ""
}

// Draft is everything collected for one booking attempt.
type Draft struct {
	ServiceID       string
	Date            calendar.Date
	Slot            bookingapi.Slot
	Contact         Contact
	PaymentMethod   PaymentMethod
	Card            CardStatus
	SpecialRequests string
	// PaymentIntentID is set once the card has been charged, so a resubmit
	// books against the same payment.
	PaymentIntentID string
}

// HasDate reports whether a date is selected.
func (d Draft) HasDate() bool { return !d.Date.IsZero() }

// Charged reports whether the card was charged for this draft.
func (d Draft) Charged() bool { return d.PaymentIntentID != "" }

// HasTime reports whether a time is selected.
func (d Draft) HasTime() bool { return d.Slot.Time != "" }

func (d *Draft) clearDateTime() {
	d.Date = calendar.Date{}
	d.clearTime()
}

func (d *Draft) clearTime() {
	d.Slot = bookingapi.Slot{}
}
