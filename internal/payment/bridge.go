// Package payment creates and confirms card payments: the backend opens a
// PaymentIntent and Stripe confirms it with the card the client tokenized.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"

	"massagebook/internal/apperr"
	"massagebook/internal/bookingapi"
)

const defaultCurrency = "usd"

// Config holds the Stripe keys.
type Config struct {
	PublishableKey string
	SecretKey      string
	Currency       string
}

// ElementsConfig is what a client needs to mount the card widget.
type ElementsConfig struct {
	PublishableKey string `json:"publishable_key"`
	Currency       string `json:"currency"`
}

// IntentCreator opens PaymentIntents on the backend.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req bookingapi.PaymentIntentRequest) (*bookingapi.PaymentIntent, error)
}

// IntentConfirmer confirms a PaymentIntent and reports its status.
type IntentConfirmer interface {
	Confirm(ctx context.Context, intentID, paymentMethodID string) (string, error)
}

// PayRequest describes one card charge.
type PayRequest struct {
	AmountCents     int64
	ServiceType     string
	ClientName      string
	ClientEmail     string
	ScheduledFor    string
	PaymentMethodID string
}

// Receipt identifies a confirmed payment.
type Receipt struct {
	PaymentIntentID string
	Status          string
}

// Bridge runs the two-call card payment.
type Bridge struct {
	cfg       Config
	intents   IntentCreator
	confirmer IntentConfirmer
}

// NewBridge wires the backend intent creator and the Stripe confirmer.
func NewBridge(cfg Config, intents IntentCreator, confirmer IntentConfirmer) *Bridge {
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	return &Bridge{cfg: cfg, intents: intents, confirmer: confirmer}
}

// Enabled reports whether card payments can be taken.
func (b *Bridge) Enabled() bool {
	return b != nil && b.cfg.PublishableKey != "" && b.intents != nil && b.confirmer != nil
}

func (b *Bridge) ElementsConfig() ElementsConfig {
	return ElementsConfig{PublishableKey: b.cfg.PublishableKey, Currency: b.cfg.Currency}
}

// Pay creates an intent on the backend, then confirms it with Stripe.
// A backend failure is a network error; anything Stripe rejects is a payment error.
func (b *Bridge) Pay(ctx context.Context, req PayRequest) (*Receipt, error) {
	if !b.Enabled() {
		return nil, apperr.Payment(CodeUnavailable, unavailableMessage, nil)
	}
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		return nil, apperr.Validation("card", "Card details are incomplete.")
	}
	if req.AmountCents <= 0 {
		return nil, apperr.Unexpected(errors.New("payment amount must be positive"))
	}

	logger := zerolog.Ctx(ctx)

	intent, err := b.intents.CreatePaymentIntent(ctx, bookingapi.PaymentIntentRequest{
		AmountCents:  req.AmountCents,
		Currency:     b.cfg.Currency,
		ServiceType:  req.ServiceType,
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNetwork {
			err = apperr.Network("create payment intent", err)
		}
		return nil, err
	}

	status, err := b.confirmer.Confirm(ctx, intent.PaymentIntentID, req.PaymentMethodID)
	if err != nil {
		mapped := MapStripeError(err)
		logger.Warn().Err(err).Str("payment_intent", intent.PaymentIntentID).Msg("payment confirmation failed")
		return nil, mapped
	}

	if !isPaid(status) {
		logger.Warn().Str("payment_intent", intent.PaymentIntentID).Str("status", status).Msg("payment not completed")
		return nil, apperr.Payment(CodeIncomplete, incompleteMessage, errors.New("payment intent status "+status))
	}

	logger.Info().Str("payment_intent", intent.PaymentIntentID).Str("status", status).Msg("payment confirmed")
	return &Receipt{PaymentIntentID: intent.PaymentIntentID, Status: status}, nil
}

func isPaid(status string) bool {
	switch stripe.PaymentIntentStatus(status) {
	case stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
		return true
	default:
		return false
	}
}
