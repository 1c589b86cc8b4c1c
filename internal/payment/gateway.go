// Package payment adapts card processing behind a small gateway interface.
package payment

import (
	"context"
	"errors"
)

// Intent statuses the checkout cares about.
const (
	IntentSucceeded = "succeeded"
	IntentCanceled  = "canceled"
)

// Webhook event types handled by the storefront.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

var (
	// ErrNotConfigured is returned when card payments are disabled.
	ErrNotConfigured = errors.New("card payments are not configured")
	// ErrInvalidSignature is returned for webhook payloads that fail verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Intent is a provider-neutral view of a payment intent.
type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"clientSecret,omitempty"`
	Status       string            `json:"status"`
	AmountCents  int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Event is a verified webhook notification about an intent.
type Event struct {
	ID       string
	Type     string
	IntentID string
	Status   string
	Metadata map[string]string
}

// Gateway creates and inspects payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// Disabled is the gateway used when no card processor is configured.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, int64, map[string]string) (*Intent, error) {
	return nil, ErrNotConfigured
}

func (Disabled) GetIntent(context.Context, string) (*Intent, error) {
	return nil, ErrNotConfigured
}

func (Disabled) ParseWebhook([]byte, string) (*Event, error) {
	return nil, ErrNotConfigured
}
