package booking

import (
	"fmt"

	"massagebook/internal/apperr"
	"massagebook/internal/payment"
	"massagebook/internal/pricing"
	"massagebook/internal/timeslots"
)

// View is the presentation projection of a wizard. Every surface renders
// from it and nothing else.
type View struct {
	SessionID string `json:"session_id"`
	Step      Step   `json:"step"`
	StepIndex int    `json:"step_index"`
	StepCount int    `json:"step_count"`

	Service   *ServiceView `json:"service,omitempty"`
	Date      string       `json:"date,omitempty"`
	Time      string       `json:"time,omitempty"`
	TimeLabel string       `json:"time_label,omitempty"`
	Slots     SlotsView    `json:"slots"`

	Contact         Contact `json:"contact"`
	SpecialRequests string  `json:"special_requests,omitempty"`

	PaymentMethod           PaymentMethod           `json:"payment_method,omitempty"`
	PaymentMethods          []PaymentMethod         `json:"payment_methods"`
	ShowCardWidget          bool                    `json:"show_card_widget"`
	CardReady               bool                    `json:"card_ready"`
	CardCharged             bool                    `json:"card_charged,omitempty"`
	Stripe                  *payment.ElementsConfig `json:"stripe,omitempty"`
	AlternativeInstructions string                  `json:"alternative_instructions,omitempty"`

	CanAdvance  bool        `json:"can_advance"`
	CanGoBack   bool        `json:"can_go_back"`
	CanSubmit   bool        `json:"can_submit"`
	Submitting  bool        `json:"submitting"`
	FieldErrors FieldErrors `json:"field_errors,omitempty"`

	Confirmation *ConfirmationView `json:"confirmation,omitempty"`
	LastError    *ErrorView        `json:"last_error,omitempty"`
}

// ServiceView describes the selected service.
type ServiceView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
	PriceCents      int64  `json:"price_cents"`
	BasePrice       string `json:"base_price"`
	OnPromo         bool   `json:"on_promo,omitempty"`
	PromoLabel      string `json:"promo_label,omitempty"`
}

// NewServiceView formats s for display.
func NewServiceView(s pricing.Service) ServiceView {
	return ServiceView{
		ID:              s.ID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price().String(),
		PriceCents:      s.Price().Cents(),
		BasePrice:       s.BasePrice.String(),
		OnPromo:         s.OnPromo(),
		PromoLabel:      s.PromoLabel,
	}
}

// SlotsView is the time picker for the selected date.
type SlotsView struct {
	Status  timeslots.Status   `json:"status"`
	Buttons []timeslots.Button `json:"buttons,omitempty"`
	Message string             `json:"message,omitempty"`
}

// ConfirmationView is shown after a successful booking.
type ConfirmationView struct {
	Code          string `json:"code"`
	SessionID     string `json:"session_id,omitempty"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
}

// ErrorView is the client-safe form of an error.
type ErrorView struct {
	Kind    apperr.Kind `json:"kind"`
	Field   string      `json:"field,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
}

// NewErrorView hides the wrapped cause of err.
func NewErrorView(err error) *ErrorView {
	if err == nil {
		return nil
	}
	e, ok := apperr.As(err)
	if !ok {
		return &ErrorView{Kind: apperr.KindUnexpected, Message: "Something went wrong."}
	}
	msg := e.Message
	switch e.Kind {
	case apperr.KindNetwork:
		msg = "We could not reach the booking service."
	case apperr.KindUnexpected:
		msg = "Something went wrong."
	}
	return &ErrorView{Kind: e.Kind, Field: e.Field, Code: e.Code, Message: msg}
}

func (w *Wizard) viewLocked() View {
	s := w.state
	d := s.Draft

	v := View{
		SessionID:       w.id,
		Step:            s.Step,
		StepIndex:       s.Step.Index(),
		StepCount:       len(Steps),
		Contact:         d.Contact,
		SpecialRequests: d.SpecialRequests,
		PaymentMethod:   d.PaymentMethod,
		PaymentMethods:  w.availableMethods(),
		CanAdvance:      s.CanAdvance(),
		CanGoBack:       s.Step != StepServiceSelection && s.Step != StepConfirmation && !w.submitting,
		CanSubmit:       s.Step == StepSummary && !w.submitting && s.ValidateAll() == nil,
		Submitting:      w.submitting,
		LastError:       NewErrorView(w.lastErr),
		Slots:           SlotsView{Status: timeslots.StatusIdle},
	}

	if svc, ok := w.deps.Catalog.Lookup(d.ServiceID); ok {
		sv := NewServiceView(svc)
		v.Service = &sv
	}

	if d.HasDate() {
		v.Date = d.Date.String()
		if snap := w.slots.Snapshot(); snap.For(d.Date, d.ServiceID) {
			v.Slots = SlotsView{Status: snap.Status, Buttons: snap.Buttons, Message: snap.Message}
		}
	}
	if d.HasTime() {
		v.Time = d.Slot.Time
		v.TimeLabel = timeslots.Label(d.Slot)
	}

	switch {
	case d.PaymentMethod.RequiresCard():
		v.ShowCardWidget = true
		v.CardReady = d.Card.Ready()
		v.CardCharged = d.Charged()
		if w.cardEnabled() {
			cfg := w.deps.Payments.ElementsConfig()
			v.Stripe = &cfg
		}
	case d.PaymentMethod != "":
		v.AlternativeInstructions = w.instructions(d.PaymentMethod)
	}

	if fe := s.Validate(); len(fe) > 0 {
		v.FieldErrors = fe
	}

	if s.Step == StepConfirmation {
		v.Confirmation = &ConfirmationView{Code: s.Confirmation}
		if w.result != nil {
			v.Confirmation.SessionID = w.result.Session.ID
			v.Confirmation.ScheduledDate = w.result.Session.ScheduledDate
		}
	}
	return v
}

func (w *Wizard) availableMethods() []PaymentMethod {
	out := make([]PaymentMethod, 0, len(PaymentMethods))
	for _, m := range PaymentMethods {
		if m.RequiresCard() && !w.cardEnabled() {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (w *Wizard) instructions(m PaymentMethod) string {
	switch m {
	case PaymentCash:
		return "Please bring cash to your appointment. Payment is due at the time of service."
	case PaymentComplimentary:
		return "This session is complimentary. No payment is required."
	default:
		if w.cfg.OfficePhone != "" {
			return fmt.Sprintf("Please call the office at %s to arrange payment before your appointment.", w.cfg.OfficePhone)
		}
		return "Please contact the office to arrange payment before your appointment."
	}
}
