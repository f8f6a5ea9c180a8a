package bookingapi

import "encoding/json"

// envelope is the common {success, data} wrapper used by the web-booking API.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (e envelope) reason() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Message != "":
		return e.Message
	default:
		return "success=false"
	}
}

// Slot is one bookable start time for a date.
type Slot struct {
	Time        string `json:"time"`
	DisplayTime string `json:"display_time,omitempty"`
}

type closedDatesData struct {
	ClosedDates []string `json:"closed_dates"`
}

type availabilityData struct {
	AvailableSlots []Slot `json:"available_slots"`
}

// PaymentIntentRequest asks the backend to open a Stripe PaymentIntent.
type PaymentIntentRequest struct {
	AmountCents  int64  `json:"amount"`
	Currency     string `json:"currency"`
	ServiceType  string `json:"service_type"`
	ClientName   string `json:"client_name,omitempty"`
	ClientEmail  string `json:"client_email,omitempty"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
}

// PaymentIntent is the backend's reply; it is not wrapped in an envelope.
type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Error           string `json:"error,omitempty"`
}

// Customer holds the contact fields sent with a booking.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// BookingRequest is the body of POST /api/web-booking/book.
type BookingRequest struct {
	PractitionerID  string   `json:"practitioner_id"`
	ServiceType     string   `json:"service_type"`
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	Client          Customer `json:"client"`
	PaymentMethod   string   `json:"payment_method"`
	PaymentIntentID string   `json:"payment_intent_id,omitempty"`
	AmountCents     int64    `json:"amount"`
	SpecialRequests string   `json:"special_requests,omitempty"`
}

// BookingResult is the data returned by a successful booking.
type BookingResult struct {
	Session struct {
		ID            string `json:"id"`
		ScheduledDate string `json:"scheduled_date"`
	} `json:"session"`
	Payment struct {
		ReceiptNumber string `json:"receipt_number"`
	} `json:"payment"`
}

// ConfirmationCode is the receipt number, falling back to the session id.
func (r BookingResult) ConfirmationCode() string {
	if r.Payment.ReceiptNumber != "" {
		return r.Payment.ReceiptNumber
	}
	return r.Session.ID
}

// ClientErrorReport is forwarded to the backend's client-error endpoint.
type ClientErrorReport struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	Level     string            `json:"level"`
	Category  string            `json:"category"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Source    string            `json:"source"`
}
