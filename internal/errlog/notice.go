package errlog

import (
	"fmt"

	"massagebook/internal/apperr"
	"massagebook/internal/payment"
)

// Notice is what a client is shown after a failure.
type Notice struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

// NoticeFor maps err to a notice. The cause is never exposed.
func (h *Handler) NoticeFor(err error) Notice {
	return NoticeFor(err, h.opts.OfficePhone)
}

// NoticeFor maps err to a notice, pointing at officePhone when set.
func NoticeFor(err error, officePhone string) Notice {
	call := "Please try again in a few minutes."
	if officePhone != "" {
		call = fmt.Sprintf("Please try again, or call us at %s to book.", officePhone)
	}

	e, ok := apperr.As(err)
	if !ok {
		return Notice{
			Title:       "Something went wrong",
			Message:     "An unexpected error interrupted your booking.",
			Remediation: call,
		}
	}

	switch e.Kind {
	case apperr.KindValidation:
		return Notice{
			Title:       "Please check your details",
			Message:     e.Message,
			Remediation: "Correct the highlighted field and continue.",
		}
	case apperr.KindNetwork:
		return Notice{
			Title:       "Connection problem",
			Message:     "We could not reach the booking service.",
			Remediation: call,
		}
	case apperr.KindPayment:
		return paymentNotice(e, call)
	default:
		return Notice{
			Title:       "Something went wrong",
			Message:     "An unexpected error interrupted your booking.",
			Remediation: call,
		}
	}
}

func paymentNotice(e *apperr.Error, call string) Notice {
	n := Notice{Title: "Payment failed", Message: e.Message}
	switch e.Code {
	case payment.CodeCardDeclined, payment.CodeInsufficientFunds:
		n.Remediation = "Try a different card, or choose to pay at your appointment."
	case payment.CodeExpiredCard, payment.CodeIncorrectCVC:
		n.Remediation = "Check your card details and try again."
	case payment.CodeUnavailable:
		n.Title = "Card payments unavailable"
		n.Remediation = "Choose to pay at your appointment."
	default:
		n.Remediation = call
	}
	if n.Message == "" {
		n.Message = "Your payment could not be processed."
	}
	return n
}
