package payment

import (
	"errors"

	"github.com/stripe/stripe-go/v76"

	"massagebook/internal/apperr"
)

// Payment error codes surfaced to clients.
const (
	CodeCardDeclined      = "card_declined"
	CodeInsufficientFunds = "insufficient_funds"
	CodeExpiredCard       = "expired_card"
	CodeIncorrectCVC      = "incorrect_cvc"
	CodeProcessingError   = "processing_error"
	CodeNetworkError      = "network_error"
	CodeIncomplete        = "payment_incomplete"
	CodeUnavailable       = "payment_unavailable"
	CodeUnknown           = "payment_failed"
)

const (
	unavailableMessage = "Card payments are not available right now. Please choose another payment method."
	incompleteMessage  = "Your payment could not be completed. Please try another card."
	genericMessage     = "Your payment could not be processed. Please try again or choose another payment method."
)

var messages = map[string]string{
	CodeCardDeclined:      "Your card was declined. Please use a different card.",
	CodeInsufficientFunds: "Your card has insufficient funds. Please use a different card.",
	CodeExpiredCard:       "Your card has expired. Please use a different card.",
	CodeIncorrectCVC:      "Your card's security code is incorrect.",
	CodeProcessingError:   "An error occurred while processing your card. Please try again.",
	CodeNetworkError:      "We could not reach the payment processor. Please check your connection and try again.",
}

// MapStripeError converts a Stripe failure into a payment error with user-facing copy.
// The decline code wins over the error code when both are present.
func MapStripeError(err error) error {
	if err == nil {
		return nil
	}

	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return apperr.Payment(CodeNetworkError, messages[CodeNetworkError], err)
	}

	for _, code := range []string{string(serr.DeclineCode), string(serr.Code)} {
		if msg, ok := messages[code]; ok {
			return apperr.Payment(code, msg, err)
		}
	}

	switch {
	case string(serr.Type) == "card_error":
		return apperr.Payment(CodeCardDeclined, messages[CodeCardDeclined], err)
	case serr.HTTPStatusCode >= 500 || string(serr.Type) == "api_error":
		return apperr.Payment(CodeProcessingError, messages[CodeProcessingError], err)
	default:
		return apperr.Payment(CodeUnknown, genericMessage, err)
	}
}
