package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/anjiri1684/referral_payments/database"
	"github.com/anjiri1684/referral_payments/database/dbtest"
	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

// stubVerifier accepts the signature "good" and reads a minimal Stripe-shaped
// envelope from the payload.
type stubVerifier struct{}

func (stubVerifier) VerifyWebhook(payload []byte, header, secret string) (*services.VerifiedEvent, error) {
	if header != "good" || secret != testSecret {
		return nil, errors.New("no valid signature")
	}
	var env struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	return &services.VerifiedEvent{ID: env.ID, Type: env.Type, Object: env.Data.Object}, nil
}

func newDispatcher(t *testing.T, secret string) (*services.WebhookDispatcher, *database.WebhookEventStore) {
	t.Helper()
	events := database.NewWebhookEventStore(dbtest.Open(t))
	return services.NewWebhookDispatcher(stubVerifier{}, events, zerolog.Nop(), secret), events
}

func payload(t *testing.T, id, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"id":   id,
		"type": eventType,
		"data": map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return b
}

func TestDispatchRejectsWithoutSecret(t *testing.T) {
	d, events := newDispatcher(t, "")
	calls := 0
	d.Handle(services.EventPaymentIntentSucceeded, func(context.Context, *services.VerifiedEvent) (services.HandlerOutcome, error) {
		calls++
		return services.HandlerOutcome{}, nil
	})

	_, err := d.Dispatch(context.Background(), payload(t, "evt_1", services.EventPaymentIntentSucceeded, map[string]interface{}{"id": "pi_1"}), "good")
	require.ErrorIs(t, err, services.ErrSecretNotConfigured)
	require.Zero(t, calls)

	_, err = events.Find(context.Background(), "evt_1")
	require.ErrorIs(t, err, services.ErrRecordNotFound)
}

func TestDispatchRejectsBadSignature(t *testing.T) {
	d, events := newDispatcher(t, testSecret)
	calls := 0
	for _, typ := range []string{services.EventCheckoutSessionCompleted, services.EventPaymentIntentSucceeded, services.EventPaymentIntentPaymentFailed} {
		d.Handle(typ, func(context.Context, *services.VerifiedEvent) (services.HandlerOutcome, error) {
			calls++
			return services.HandlerOutcome{}, nil
		})
	}

	_, err := d.Dispatch(context.Background(), payload(t, "evt_1", services.EventPaymentIntentSucceeded, map[string]interface{}{"id": "pi_1"}), "forged")
	require.ErrorIs(t, err, services.ErrSignatureInvalid)
	require.Zero(t, calls)

	_, err = events.Find(context.Background(), "evt_1")
	require.ErrorIs(t, err, services.ErrRecordNotFound)
}

func TestDispatchIgnoresUnknownType(t *testing.T) {
	ctx := context.Background()
	d, events := newDispatcher(t, testSecret)

	res, err := d.Dispatch(ctx, payload(t, "evt_2", "customer.created", map[string]interface{}{"id": "cus_1"}), "good")
	require.NoError(t, err)
	require.Equal(t, services.StatusIgnored, res.Status)

	rec, err := events.Find(ctx, "evt_2")
	require.NoError(t, err)
	require.Equal(t, models.WebhookStatusIgnored, rec.Status)
}

func TestDispatchHandlesKnownTypes(t *testing.T) {
	ctx := context.Background()
	d, events := newDispatcher(t, testSecret)

	cases := []struct {
		id, typ string
		object  map[string]interface{}
		order   string
	}{
		{"evt_cs", services.EventCheckoutSessionCompleted, map[string]interface{}{
			"id": "cs_1", "amount_total": 2500, "currency": "eur", "payment_status": "paid",
			"metadata": map[string]string{"orderId": "order-1"},
		}, "order-1"},
		{"evt_ok", services.EventPaymentIntentSucceeded, map[string]interface{}{
			"id": "pi_1", "amount": 1000, "currency": "eur",
		}, ""},
		{"evt_fail", services.EventPaymentIntentPaymentFailed, map[string]interface{}{
			"id": "pi_2", "amount": 1000, "currency": "eur",
			"metadata":           map[string]string{"orderId": "order-2"},
			"last_payment_error": map[string]string{"code": "card_declined", "message": "declined"},
		}, "order-2"},
	}

	for _, tc := range cases {
		res, err := d.Dispatch(ctx, payload(t, tc.id, tc.typ, tc.object), "good")
		require.NoError(t, err, tc.typ)
		require.Equal(t, services.StatusHandled, res.Status, tc.typ)
		require.Equal(t, tc.order, res.OrderID, tc.typ)

		rec, err := events.Find(ctx, tc.id)
		require.NoError(t, err)
		require.Equal(t, models.WebhookStatusHandled, rec.Status)
		require.Equal(t, tc.object["id"], rec.ObjectID)
		require.Equal(t, tc.order, rec.OrderID)
	}
}

func TestDispatchIsolatesHandlerFailures(t *testing.T) {
	ctx := context.Background()
	d, events := newDispatcher(t, testSecret)
	d.Handle(services.EventPaymentIntentSucceeded, func(context.Context, *services.VerifiedEvent) (services.HandlerOutcome, error) {
		panic("nil order")
	})

	res, err := d.Dispatch(ctx, payload(t, "evt_panic", services.EventPaymentIntentSucceeded, map[string]interface{}{"id": "pi_1"}), "good")
	require.NoError(t, err)
	require.Equal(t, services.StatusFailed, res.Status)

	rec, err := events.Find(ctx, "evt_panic")
	require.NoError(t, err)
	require.Equal(t, models.WebhookStatusFailed, rec.Status)
	require.Contains(t, rec.Error, "nil order")

	// A malformed object fails only its own event.
	res, err = d.Dispatch(ctx, payload(t, "evt_bad", services.EventCheckoutSessionCompleted, map[string]interface{}{"amount_total": 1}), "good")
	require.NoError(t, err)
	require.Equal(t, services.StatusFailed, res.Status)

	res, err = d.Dispatch(ctx, payload(t, "evt_good", services.EventCheckoutSessionCompleted, map[string]interface{}{"id": "cs_2"}), "good")
	require.NoError(t, err)
	require.Equal(t, services.StatusHandled, res.Status)
}

func TestDispatchSkipsDuplicateDeliveries(t *testing.T) {
	ctx := context.Background()
	d, _ := newDispatcher(t, testSecret)
	calls := 0
	d.Handle(services.EventCheckoutSessionCompleted, func(context.Context, *services.VerifiedEvent) (services.HandlerOutcome, error) {
		calls++
		return services.HandlerOutcome{ObjectID: "cs_1", OrderID: "order-9"}, nil
	})
	body := payload(t, "evt_dup", services.EventCheckoutSessionCompleted, map[string]interface{}{"id": "cs_1"})

	first, err := d.Dispatch(ctx, body, "good")
	require.NoError(t, err)
	require.Equal(t, services.StatusHandled, first.Status)

	second, err := d.Dispatch(ctx, body, "good")
	require.NoError(t, err)
	require.Equal(t, services.StatusDuplicate, second.Status)
	require.Equal(t, "order-9", second.OrderID)
	require.Equal(t, 1, calls)
}

func TestDispatchRetriesPreviouslyFailedEvent(t *testing.T) {
	ctx := context.Background()
	d, events := newDispatcher(t, testSecret)
	fail := true
	d.Handle(services.EventPaymentIntentSucceeded, func(context.Context, *services.VerifiedEvent) (services.HandlerOutcome, error) {
		if fail {
			return services.HandlerOutcome{}, errors.New("transient")
		}
		return services.HandlerOutcome{ObjectID: "pi_1"}, nil
	})
	body := payload(t, "evt_retry", services.EventPaymentIntentSucceeded, map[string]interface{}{"id": "pi_1"})

	res, err := d.Dispatch(ctx, body, "good")
	require.NoError(t, err)
	require.Equal(t, services.StatusFailed, res.Status)

	fail = false
	res, err = d.Dispatch(ctx, body, "good")
	require.NoError(t, err)
	require.Equal(t, services.StatusHandled, res.Status)

	rec, err := events.Find(ctx, "evt_retry")
	require.NoError(t, err)
	require.Equal(t, models.WebhookStatusHandled, rec.Status)
	require.Empty(t, rec.Error)
}

func TestDispatchWhileHandlersAreRegistered(t *testing.T) {
	ctx := context.Background()
	d, _ := newDispatcher(t, testSecret)

	var wg sync.WaitGroup
	results := make(chan string, 20)
	for i := 0; i < 20; i++ {
		body := payload(t, fmt.Sprintf("evt_c%d", i), services.EventPaymentIntentSucceeded, map[string]interface{}{"id": "pi_c"})
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			d.Handle(fmt.Sprintf("custom.event_%d", i), func(context.Context, *services.VerifiedEvent) (services.HandlerOutcome, error) {
				return services.HandlerOutcome{}, nil
			})
		}(i)
		go func() {
			defer wg.Done()
			res, err := d.Dispatch(ctx, body, "good")
			if err != nil {
				results <- err.Error()
				return
			}
			results <- res.Status
		}()
	}
	wg.Wait()
	close(results)

	for status := range results {
		require.Equal(t, services.StatusHandled, status)
	}
}
