package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/anjiri1684/referral_payments/configs"
	"github.com/anjiri1684/referral_payments/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T, handler http.HandlerFunc) *BrevoService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewEmailService(config.Settings{
		BrevoAPIKey:     "xkeysib-test",
		EmailSender:     "noreply@example.com",
		EmailSenderName: "Referrals",
	}, zerolog.Nop())
	require.NotNil(t, s)
	s.URL = srv.URL
	return s
}

func TestNewEmailServiceDisabledWithoutKey(t *testing.T) {
	s := NewEmailService(config.Settings{EmailSender: "a@b.c", EmailSenderName: "x"}, zerolog.Nop())
	require.Nil(t, s)
	require.NoError(t, s.Send(context.Background(), "to@example.com", "", "s", "b"))
	s.ReferralCompleted(context.Background(), &models.User{}, &models.Referral{})
}

func TestSendPostsBrevoPayload(t *testing.T) {
	var got brevoPayload
	s := testService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "xkeysib-test", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, s.Send(context.Background(), "jane@example.com", "", "Hello", "<p>hi</p>"))
	require.Equal(t, "noreply@example.com", got.Sender["email"])
	require.Equal(t, "jane@example.com", got.To[0]["email"])
	require.Equal(t, "jane", got.To[0]["name"])
	require.Equal(t, "Hello", got.Subject)
}

func TestSendReportsProviderError(t *testing.T) {
	s := testService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Key not found"}`))
	})

	err := s.Send(context.Background(), "jane@example.com", "Jane", "Hello", "<p>hi</p>")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Key not found")

	require.Error(t, s.Send(context.Background(), "not-an-email", "", "s", "b"))
}

func TestReferralCompletedEmailsReferrer(t *testing.T) {
	received := make(chan brevoPayload, 1)
	s := testService(t, func(w http.ResponseWriter, r *http.Request) {
		var p brevoPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		received <- p
		w.WriteHeader(http.StatusCreated)
	})

	referrer := &models.User{ID: uuid.New(), FullName: "Alice", Email: "alice@example.com", ReferralRewards: decimal.NewFromInt(20)}
	referral := &models.Referral{
		ID:           uuid.New(),
		ReferralCode: "ABC123",
		RewardAmount: decimal.NewFromInt(10),
		ReferredUser: &models.PublicUser{FullName: "Bob"},
	}
	s.ReferralCompleted(context.Background(), referrer, referral)

	select {
	case p := <-received:
		require.Equal(t, "alice@example.com", p.To[0]["email"])
		require.Contains(t, p.HTMLContent, "Bob")
		require.Contains(t, p.HTMLContent, "ABC123")
		require.Contains(t, p.HTMLContent, "10.00")
		require.Contains(t, p.HTMLContent, "20.00")
	case <-time.After(5 * time.Second):
		t.Fatal("referral email was not sent")
	}
}

type countingNotifier struct{ calls int }

func (c *countingNotifier) ReferralCompleted(context.Context, *models.User, *models.Referral) {
	c.calls++
}

func TestFanoutCallsEveryNotifier(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	var disabled *BrevoService
	Fanout{a, disabled, nil, b}.ReferralCompleted(context.Background(), &models.User{}, &models.Referral{})
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
}
