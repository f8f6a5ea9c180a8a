// Package booking implements the booking wizard: pure step transitions on
// State, the stateful Wizard that adds availability and payment I/O, and the
// session store that keeps one wizard per client.
package booking

// Step is one page of the wizard.
type Step string

const (
	StepServiceSelection  Step = "service-selection"
	StepDateTimeSelection Step = "datetime-selection"
	StepContactInfo       Step = "contact-info"
	StepPaymentInfo       Step = "payment-info"
	StepSummary           Step = "booking-summary"
	StepConfirmation      Step = "confirmation"
)

// Steps in wizard order.
var Steps = []Step{
	StepServiceSelection,
	StepDateTimeSelection,
	StepContactInfo,
	StepPaymentInfo,
	StepSummary,
	StepConfirmation,
}

// Index is the 1-based position of s, or 0 for an unknown step.
func (s Step) Index() int {
	for i, st := range Steps {
		if st == s {
			return i + 1
		}
	}
	return 0
}

func (s Step) next() Step {
	if i := s.Index(); i > 0 && i < len(Steps) {
		return Steps[i]
	}
	return s
}

func (s Step) prev() Step {
	if i := s.Index(); i > 1 {
		return Steps[i-2]
	}
	return s
}

func (s Step) String() string { return string(s) }
