package payment

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeConfirmer confirms PaymentIntents through the Stripe API.
type StripeConfirmer struct {
	api *client.API
}

// NewStripeConfirmer uses the default Stripe endpoints.
func NewStripeConfirmer(secretKey string) *StripeConfirmer {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeConfirmer{api: api}
}

// NewStripeConfirmerWithURL points the client at another API base URL, such as a local mock.
func NewStripeConfirmerWithURL(secretKey, baseURL string) *StripeConfirmer {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeConfirmer{api: api}
}

// Confirm attaches paymentMethodID to the intent and confirms it, returning the intent status.
func (s *StripeConfirmer) Confirm(ctx context.Context, intentID, paymentMethodID string) (string, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return "", err
	}
	return string(pi.Status), nil
}
