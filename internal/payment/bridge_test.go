package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"massagebook/internal/apperr"
	"massagebook/internal/bookingapi"
)

type fakeIntents struct {
	got bookingapi.PaymentIntentRequest
	err error
}

func (f *fakeIntents) CreatePaymentIntent(_ context.Context, req bookingapi.PaymentIntentRequest) (*bookingapi.PaymentIntent, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &bookingapi.PaymentIntent{ClientSecret: "pi_1_secret", PaymentIntentID: "pi_1"}, nil
}

type fakeConfirmer struct {
	status string
	err    error
	calls  int
}

func (f *fakeConfirmer) Confirm(_ context.Context, intentID, pm string) (string, error) {
	f.calls++
	return f.status, f.err
}

var cfg = Config{PublishableKey: "pk_test_1", SecretKey: "sk_test_1"}

func payReq() PayRequest {
	return PayRequest{AmountCents: 18000, ServiceType: "90min_massage", PaymentMethodID: "pm_card_visa"}
}

func TestPaySucceeded(t *testing.T) {
	for _, status := range []string{"succeeded", "processing", "requires_capture"} {
		t.Run(status, func(t *testing.T) {
			intents := &fakeIntents{}
			b := NewBridge(cfg, intents, &fakeConfirmer{status: status})

			r, err := b.Pay(context.Background(), payReq())
			require.NoError(t, err)
			assert.Equal(t, "pi_1", r.PaymentIntentID)
			assert.Equal(t, "usd", intents.got.Currency)
			assert.Equal(t, int64(18000), intents.got.AmountCents)
		})
	}
}

func TestPayIncomplete(t *testing.T) {
	b := NewBridge(cfg, &fakeIntents{}, &fakeConfirmer{status: "requires_action"})
	_, err := b.Pay(context.Background(), payReq())
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindPayment, e.Kind)
	assert.Equal(t, CodeIncomplete, e.Code)
}

func TestPayBackendFailureIsNetworkError(t *testing.T) {
	conf := &fakeConfirmer{status: "succeeded"}
	b := NewBridge(cfg, &fakeIntents{err: errors.New("connection refused")}, conf)

	_, err := b.Pay(context.Background(), payReq())
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Zero(t, conf.calls)
}

func TestPayWithoutPaymentMethod(t *testing.T) {
	b := NewBridge(cfg, &fakeIntents{}, &fakeConfirmer{status: "succeeded"})
	req := payReq()
	req.PaymentMethodID = ""
	_, err := b.Pay(context.Background(), req)
	assert.True(t, apperr.IsValidation(err))
}

func TestPayDisabled(t *testing.T) {
	b := NewBridge(Config{}, &fakeIntents{}, &fakeConfirmer{})
	assert.False(t, b.Enabled())

	_, err := b.Pay(context.Background(), payReq())
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnavailable, e.Code)
}

func TestMapStripeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"insufficient funds decline", &stripe.Error{Type: "card_error", Code: "card_declined", DeclineCode: "insufficient_funds"}, CodeInsufficientFunds},
		{"generic decline", &stripe.Error{Type: "card_error", Code: "card_declined", DeclineCode: "generic_decline"}, CodeCardDeclined},
		{"expired", &stripe.Error{Type: "card_error", Code: "expired_card"}, CodeExpiredCard},
		{"cvc", &stripe.Error{Type: "card_error", Code: "incorrect_cvc"}, CodeIncorrectCVC},
		{"processing", &stripe.Error{Type: "card_error", Code: "processing_error"}, CodeProcessingError},
		{"api 500", &stripe.Error{Type: "api_error", HTTPStatusCode: 500}, CodeProcessingError},
		{"invalid request", &stripe.Error{Type: "invalid_request_error", Code: "resource_missing"}, CodeUnknown},
		{"transport", errors.New("dial tcp: i/o timeout"), CodeNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := apperr.As(MapStripeError(tt.err))
			require.True(t, ok)
			assert.Equal(t, apperr.KindPayment, e.Kind)
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Message)
		})
	}

	assert.NoError(t, MapStripeError(nil))
}

func TestStripeConfirmer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/payment_intents/pi_ok/confirm":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "pm_card_visa", r.PostForm.Get("payment_method"))
			_, _ = w.Write([]byte(`{"id":"pi_ok","object":"payment_intent","status":"succeeded"}`))
		default:
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`))
		}
	}))
	defer srv.Close()

	c := NewStripeConfirmerWithURL("sk_test_1", srv.URL)

	status, err := c.Confirm(context.Background(), "pi_ok", "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", status)

	_, err = c.Confirm(context.Background(), "pi_declined", "pm_card_visa")
	require.Error(t, err)
	e, ok := apperr.As(MapStripeError(err))
	require.True(t, ok)
	assert.Equal(t, CodeInsufficientFunds, e.Code)
}
