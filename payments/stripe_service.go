package payments

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anjiri1684/referral_payments/services"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

const DefaultCurrency = "eur"

var ErrNotConfigured = &services.Error{
	Kind:    services.KindInternal,
	Code:    "stripe_not_configured",
	Message: "STRIPE_SECRET_KEY is not set",
}

type LineItem struct {
	Name        string          `json:"name" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Quantity    int64           `json:"quantity" validate:"required,gt=0"`
	Description string          `json:"description,omitempty"`
}

type CheckoutRequest struct {
	LineItems     []LineItem        `json:"lineItems" validate:"required,min=1,dive"`
	SuccessURL    string            `json:"successUrl" validate:"required,url"`
	CancelURL     string            `json:"cancelUrl" validate:"required,url"`
	CustomerEmail string            `json:"customerEmail,omitempty" validate:"omitempty,email"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	Status    string `json:"status"`
}

type SessionDetails struct {
	SessionID     string            `json:"sessionId"`
	Status        string            `json:"status"`
	CustomerEmail string            `json:"customerEmail"`
	AmountTotal   int64             `json:"amountTotal"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

type PaymentIntent struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Status          string `json:"status"`
}

type StripeConfig struct {
	SecretKey string
	// Backend overrides the API backend, mainly so tests can point the
	// client at a local server.
	Backend stripe.Backend
}

// StripeClient wraps the checkout session and payment intent APIs and
// verifies webhook signatures.
type StripeClient struct {
	key      string
	sessions session.Client
	intents  paymentintent.Client
}

func NewStripeClient(cfg StripeConfig) *StripeClient {
	backend := cfg.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeClient{
		key:      cfg.SecretKey,
		sessions: session.Client{B: backend, Key: cfg.SecretKey},
		intents:  paymentintent.Client{B: backend, Key: cfg.SecretKey},
	}
}

func (c *StripeClient) Configured() bool { return c.key != "" }

// KeyMode reports "test", "live" or "missing" based on the key prefix.
func (c *StripeClient) KeyMode() string {
	switch {
	case c.key == "":
		return "missing"
	case strings.HasPrefix(c.key, "sk_test_") || strings.HasPrefix(c.key, "rk_test_"):
		return "test"
	default:
		return "live"
	}
}

// ToMinorUnits converts a major-unit amount (12.34) to cents (1234).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	params.Context = ctx
	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(strings.ToLower(item.Currency)),
				ProductData: product,
				UnitAmount:  stripe.Int64(ToMinorUnits(item.Amount)),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, upstreamError(err)
	}
	return &CheckoutSession{SessionID: s.ID, URL: s.URL, Status: string(s.Status)}, nil
}

func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (*SessionDetails, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.sessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && (stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing) {
			return nil, services.Wrap(services.ErrSessionNotFound, err)
		}
		return nil, upstreamError(err)
	}

	return &SessionDetails{
		SessionID:     s.ID,
		Status:        string(s.PaymentStatus),
		CustomerEmail: s.CustomerEmail,
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}, nil
}

func (c *StripeClient) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*PaymentIntent, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ToMinorUnits(amount)),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.intents.New(params)
	if err != nil {
		return nil, upstreamError(err)
	}
	return &PaymentIntent{PaymentIntentID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the endpoint
// secret. The account's API version is not required to match the SDK's.
func (c *StripeClient) VerifyWebhook(payload []byte, signatureHeader, secret string) (*services.VerifiedEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	verified := &services.VerifiedEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil {
		verified.Object = event.Data.Raw
	}
	return verified, nil
}

func upstreamError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return services.Upstream("Stripe error: "+stripeErr.Msg, err)
	}
	return services.Upstream("Stripe error: "+err.Error(), err)
}

var _ services.EventVerifier = (*StripeClient)(nil)
