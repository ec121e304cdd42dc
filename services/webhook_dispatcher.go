package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anjiri1684/referral_payments/metrics"
	"github.com/anjiri1684/referral_payments/models"
	"github.com/rs/zerolog"
)

const (
	EventCheckoutSessionCompleted   = "checkout.session.completed"
	EventPaymentIntentSucceeded     = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
)

// DispatchStatus values. Duplicate means an earlier delivery of the same event
// already reached a final outcome and handlers were skipped.
const (
	StatusHandled   = models.WebhookStatusHandled
	StatusIgnored   = models.WebhookStatusIgnored
	StatusFailed    = models.WebhookStatusFailed
	StatusDuplicate = "duplicate"
)

// VerifiedEvent is a provider event whose signature has been checked.
type VerifiedEvent struct {
	ID     string
	Type   string
	Object json.RawMessage
}

type EventVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader, secret string) (*VerifiedEvent, error)
}

// HandlerOutcome carries the identifiers a handler pulled out of the event.
type HandlerOutcome struct {
	ObjectID string
	OrderID  string
}

type EventHandler func(ctx context.Context, event *VerifiedEvent) (HandlerOutcome, error)

type DispatchResult struct {
	EventID string `json:"eventId"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	OrderID string `json:"orderId,omitempty"`
}

type WebhookDispatcher struct {
	verifier EventVerifier
	events   WebhookEventStore
	logger   zerolog.Logger
	metrics  *metrics.WebhookMetrics
	secret   string
	now      Clock

	mu       sync.RWMutex
	handlers map[string]EventHandler
}

func NewWebhookDispatcher(verifier EventVerifier, events WebhookEventStore, logger zerolog.Logger, secret string) *WebhookDispatcher {
	d := &WebhookDispatcher{
		verifier: verifier,
		events:   events,
		logger:   logger.With().Str("component", "webhooks").Logger(),
		metrics:  metrics.Webhooks(),
		secret:   secret,
		now:      time.Now,
		handlers: make(map[string]EventHandler),
	}
	d.Handle(EventCheckoutSessionCompleted, d.handleCheckoutCompleted)
	d.Handle(EventPaymentIntentSucceeded, d.handlePaymentSucceeded)
	d.Handle(EventPaymentIntentPaymentFailed, d.handlePaymentFailed)
	return d
}

// Handle registers or replaces the handler for an event type. It is safe to
// call while deliveries are being dispatched.
func (d *WebhookDispatcher) Handle(eventType string, h EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

func (d *WebhookDispatcher) handlerFor(eventType string) (EventHandler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[eventType]
	return h, ok
}

// Dispatch verifies a raw delivery and routes it. A non-nil error means the
// delivery was rejected before any handler ran; handler failures are reported
// through DispatchResult.Status instead.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, payload []byte, signatureHeader string) (*DispatchResult, error) {
	start := d.now()

	if d.secret == "" {
		d.metrics.Observe("unverified", "rejected", time.Since(start))
		return nil, ErrSecretNotConfigured
	}
	event, err := d.verifier.VerifyWebhook(payload, signatureHeader, d.secret)
	if err != nil {
		d.metrics.Observe("unverified", "rejected", time.Since(start))
		d.logger.Warn().Err(err).Msg("webhook signature rejected")
		return nil, Wrap(ErrSignatureInvalid, err)
	}

	log := d.logger.With().Str("event_id", event.ID).Str("type", event.Type).Logger()
	result := &DispatchResult{EventID: event.ID, Type: event.Type}

	prior, err := d.events.Find(ctx, event.ID)
	switch {
	case err == nil && prior.Status != StatusFailed:
		log.Info().Str("prior_status", prior.Status).Msg("duplicate webhook delivery skipped")
		result.Status = StatusDuplicate
		result.OrderID = prior.OrderID
		d.metrics.Observe(d.metricType(event.Type), StatusDuplicate, time.Since(start))
		return result, nil
	case err != nil && !errors.Is(err, ErrRecordNotFound):
		log.Warn().Err(err).Msg("could not check webhook idempotency record")
	}

	record := &models.WebhookEvent{
		ID:         event.ID,
		Type:       event.Type,
		ReceivedAt: start.UTC(),
	}

	handler, ok := d.handlerFor(event.Type)
	if !ok {
		log.Info().Msg("unhandled webhook event type")
		record.Status = StatusIgnored
	} else {
		outcome, herr := d.run(ctx, handler, event)
		record.ObjectID, record.OrderID = outcome.ObjectID, outcome.OrderID
		if herr != nil {
			log.Error().Err(herr).Msg("webhook handler failed")
			record.Status = StatusFailed
			record.Error = herr.Error()
		} else {
			record.Status = StatusHandled
		}
	}
	record.ProcessedAt = d.now().UTC()

	if err := d.events.Record(ctx, record); err != nil {
		log.Error().Err(err).Msg("failed to record webhook outcome")
	}

	result.Status = record.Status
	result.OrderID = record.OrderID
	d.metrics.Observe(d.metricType(event.Type), record.Status, time.Since(start))
	return result, nil
}

// run isolates a handler so that a panic only fails this event.
func (d *WebhookDispatcher) run(ctx context.Context, h EventHandler, event *VerifiedEvent) (outcome HandlerOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, event)
}

func (d *WebhookDispatcher) metricType(eventType string) string {
	if _, ok := d.handlerFor(eventType); ok {
		return eventType
	}
	return "other"
}

type paymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type eventObject struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	AmountTotal      int64             `json:"amount_total"`
	Currency         string            `json:"currency"`
	CustomerEmail    string            `json:"customer_email"`
	PaymentStatus    string            `json:"payment_status"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *paymentError     `json:"last_payment_error"`
}

func decodeObject(event *VerifiedEvent) (*eventObject, error) {
	var obj eventObject
	if err := json.Unmarshal(event.Object, &obj); err != nil {
		return nil, fmt.Errorf("decode %s object: %w", event.Type, err)
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("%s object has no id", event.Type)
	}
	return &obj, nil
}

func (o *eventObject) orderID() string {
	if o.Metadata == nil {
		return ""
	}
	return o.Metadata["orderId"]
}

// Updating the order itself belongs to the order service; these handlers only
// extract identifiers and leave an audit trail.
func (d *WebhookDispatcher) handleCheckoutCompleted(ctx context.Context, event *VerifiedEvent) (HandlerOutcome, error) {
	session, err := decodeObject(event)
	if err != nil {
		return HandlerOutcome{}, err
	}
	out := HandlerOutcome{ObjectID: session.ID, OrderID: session.orderID()}

	d.logger.Info().
		Str("session_id", session.ID).
		Str("payment_status", session.PaymentStatus).
		Float64("amount", float64(session.AmountTotal)/100).
		Str("currency", session.Currency).
		Msg("checkout session completed")
	if out.OrderID != "" {
		d.logger.Info().Str("order_id", out.OrderID).Msg("order paid")
	}
	return out, nil
}

func (d *WebhookDispatcher) handlePaymentSucceeded(ctx context.Context, event *VerifiedEvent) (HandlerOutcome, error) {
	intent, err := decodeObject(event)
	if err != nil {
		return HandlerOutcome{}, err
	}
	out := HandlerOutcome{ObjectID: intent.ID, OrderID: intent.orderID()}

	d.logger.Info().
		Str("payment_intent_id", intent.ID).
		Float64("amount", float64(intent.Amount)/100).
		Str("currency", intent.Currency).
		Interface("metadata", intent.Metadata).
		Msg("payment succeeded")
	if out.OrderID != "" {
		d.logger.Info().Str("order_id", out.OrderID).Msg("payment confirmed for order")
	}
	return out, nil
}

func (d *WebhookDispatcher) handlePaymentFailed(ctx context.Context, event *VerifiedEvent) (HandlerOutcome, error) {
	intent, err := decodeObject(event)
	if err != nil {
		return HandlerOutcome{}, err
	}
	out := HandlerOutcome{ObjectID: intent.ID, OrderID: intent.orderID()}

	entry := d.logger.Error().
		Str("payment_intent_id", intent.ID).
		Float64("amount", float64(intent.Amount)/100).
		Str("currency", intent.Currency).
		Interface("metadata", intent.Metadata)
	if intent.LastPaymentError != nil {
		entry = entry.Str("failure_code", intent.LastPaymentError.Code).Str("failure_message", intent.LastPaymentError.Message)
	}
	if out.OrderID != "" {
		entry = entry.Str("order_id", out.OrderID)
	}
	entry.Msg("payment failed")
	return out, nil
}
