package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/util"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/webhook"
	"go.uber.org/zap"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// StripeConfig holds the secrets used by StripeGateway.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Env           string
	Currency      string
}

// StripeGateway talks to Stripe.
type StripeGateway struct {
	currency      string
	signingSecret string
	environment   string
}

// NewStripeGateway validates the key against the environment and sets the
// process-wide Stripe key.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	env, err := normalizeEnv(cfg.Env)
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	util.GetLogger().Info("Stripe gateway initialized", zap.String("env", env))

	return &StripeGateway{
		currency:      currency,
		signingSecret: strings.TrimSpace(cfg.WebhookSecret),
		environment:   env,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (g *StripeGateway) Environment() string {
	return g.environment
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, metadata map[string]string) (*Intent, error) {
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		util.PaymentIntentsTotal.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	util.PaymentIntentsTotal.WithLabelValues("create", "success").Inc()
	return fromStripe(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(id, params)
	if err != nil {
		util.PaymentIntentsTotal.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("get payment intent %s: %w", id, err)
	}
	util.PaymentIntentsTotal.WithLabelValues("get", "success").Inc()
	return fromStripe(pi), nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if g.signingSecret == "" {
		return nil, ErrNotConfigured
	}
	if signature == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.signingSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return eventFromStripe(event)
}

func eventFromStripe(event stripe.Event) (*Event, error) {
	out := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent event: %w", err)
		}
		out.IntentID = pi.ID
		out.Status = string(pi.Status)
		out.Metadata = pi.Metadata
	}
	return out, nil
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
