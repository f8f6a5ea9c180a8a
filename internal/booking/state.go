package booking

import (
	"fmt"
	"strings"

	"massagebook/internal/apperr"
	"massagebook/internal/bookingapi"
	"massagebook/internal/calendar"
	"massagebook/internal/pricing"
)

// State is the wizard's step and draft. Every transition returns a new
// State and leaves the receiver untouched; a rejected transition returns
// the receiver unchanged together with a validation error.
type State struct {
	Step         Step
	Draft        Draft
	Confirmation string
}

// NewState returns a state on the first step with an empty draft.
func NewState() State {
	return State{Step: StepServiceSelection}
}

func (s State) requireStep(action string, allowed ...Step) error {
	for _, st := range allowed {
		if s.Step == st {
			return nil
		}
	}
	return apperr.Validation(FieldStep, fmt.Sprintf("Cannot %s on the %s step.", action, s.Step))
}

// SelectService resolves id to its canonical service. Choosing a different
// service clears the date and time.
func (s State) SelectService(catalog *pricing.Catalog, id string) (State, error) {
	if err := s.requireStep("choose a service", StepServiceSelection); err != nil {
		return s, err
	}
	if strings.TrimSpace(id) == "" {
		return s, apperr.Validation(FieldService, "Please select a service.")
	}
	svc, err := catalog.Resolve(id)
	if err != nil {
		return s, apperr.Validation(FieldService, "Please select a valid service.")
	}

	if svc.ID != s.Draft.ServiceID {
		s.Draft.clearDateTime()
		s.Draft.PaymentIntentID = ""
	}
	s.Draft.ServiceID = svc.ID
	return s, nil
}

// SelectDate sets the date. A different date clears the time.
// Calendar rules are checked by the caller.
func (s State) SelectDate(d calendar.Date) (State, error) {
	if err := s.requireStep("choose a date", StepDateTimeSelection); err != nil {
		return s, err
	}
	if d.IsZero() {
		return s, apperr.Validation(FieldDate, "Please select a date.")
	}
	if d != s.Draft.Date {
		s.Draft.clearTime()
	}
	s.Draft.Date = d
	return s, nil
}

// SelectTime sets the slot; a date must already be chosen.
func (s State) SelectTime(slot bookingapi.Slot) (State, error) {
	if err := s.requireStep("choose a time", StepDateTimeSelection); err != nil {
		return s, err
	}
	if !s.Draft.HasDate() {
		return s, apperr.Validation(FieldDate, "Please select a date first.")
	}
	if slot.Time == "" {
		return s, apperr.Validation(FieldTime, "Please select a time.")
	}
	s.Draft.Slot = slot
	return s, nil
}

// SetContact stores contact details as entered. They are validated by Next.
func (s State) SetContact(c Contact) (State, error) {
	if err := s.requireStep("edit contact details", StepContactInfo); err != nil {
		return s, err
	}
	s.Draft.Contact = c
	return s, nil
}

func (s State) SetSpecialRequests(text string) (State, error) {
	if err := s.requireStep("edit special requests", StepContactInfo, StepPaymentInfo, StepSummary); err != nil {
		return s, err
	}
	s.Draft.SpecialRequests = strings.TrimSpace(text)
	return s, nil
}

// SelectPaymentMethod switches the method. Leaving card discards the card status.
func (s State) SelectPaymentMethod(m PaymentMethod) (State, error) {
	if err := s.requireStep("choose a payment method", StepPaymentInfo); err != nil {
		return s, err
	}
	m, err := ParsePaymentMethod(string(m))
	if err != nil {
		return s, err
	}
	if !m.RequiresCard() {
		s.Draft.Card = CardStatus{}
	}
	if m != s.Draft.PaymentMethod {
		s.Draft.PaymentIntentID = ""
	}
	s.Draft.PaymentMethod = m
	return s, nil
}

// SetCardStatus records the card widget's latest report. A different card
// drops any earlier charge reference.
func (s State) SetCardStatus(cs CardStatus) (State, error) {
	if err := s.requireStep("update card details", StepPaymentInfo); err != nil {
		return s, err
	}
	if !s.Draft.PaymentMethod.RequiresCard() {
		return s, apperr.Validation(FieldCard, "Card details only apply to card payments.")
	}
	if cs.PaymentMethodID != s.Draft.Card.PaymentMethodID {
		s.Draft.PaymentIntentID = ""
	}
	s.Draft.Card = cs
	return s, nil
}

// Validate returns the field errors of the active step.
func (s State) Validate() FieldErrors {
	return validateStep(s.Step, s.Draft)
}

func validateStep(step Step, d Draft) FieldErrors {
	fe := FieldErrors{}
	switch step {
	case StepServiceSelection:
		if d.ServiceID == "" {
			fe[FieldService] = "Please select a service."
		}
	case StepDateTimeSelection:
		if !d.HasDate() {
			fe[FieldDate] = "Please select a date."
		}
		if !d.HasTime() {
			fe[FieldTime] = "Please select a time."
		}
	case StepContactInfo:
		for f, msg := range ValidateContact(d.Contact) {
			fe[f] = msg
		}
	case StepPaymentInfo:
		switch {
		case d.PaymentMethod == "":
			fe[FieldPaymentMethod] = "Please select a payment method."
		case d.PaymentMethod.RequiresCard() && d.Card.Error != "":
			fe[FieldCard] = d.Card.Error
		case d.PaymentMethod.RequiresCard() && !d.Card.Ready():
			fe[FieldCard] = "Please complete your card details."
		}
	}
	return fe
}

// ValidateAll checks every step up to the summary.
func (s State) ValidateAll() error {
	for _, st := range Steps[:StepSummary.Index()-1] {
		if err := validateStep(st, s.Draft).Err(); err != nil {
			return err
		}
	}
	return nil
}

// CanAdvance is a dry run of Next.
func (s State) CanAdvance() bool {
	_, err := s.Next()
	return err == nil
}

// Next advances one step if the active step is valid. The summary only
// advances through submission.
func (s State) Next() (State, error) {
	switch s.Step {
	case StepSummary:
		return s, apperr.Validation(FieldStep, "Please confirm the booking to continue.")
	case StepConfirmation:
		return s, apperr.Validation(FieldStep, "This booking is already confirmed.")
	}
	if err := s.Validate().Err(); err != nil {
		return s, err
	}
	s.Step = s.Step.next()
	return s, nil
}

// Previous moves back one step keeping all entered data. It does nothing on
// the first step and on the confirmation.
func (s State) Previous() State {
	if s.Step == StepConfirmation {
		return s
	}
	s.Step = s.Step.prev()
	return s
}

// Confirm records a successful submission.
func (s State) Confirm(code string) (State, error) {
	if err := s.requireStep("confirm the booking", StepSummary); err != nil {
		return s, err
	}
	s.Step = StepConfirmation
	s.Confirmation = code
	return s, nil
}

// Reset discards the draft and returns to the first step.
func (s State) Reset() State {
	return NewState()
}
