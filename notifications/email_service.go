package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	config "github.com/anjiri1684/referral_payments/configs"
	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/rs/zerolog"
)

const DefaultBrevoURL = "https://api.brevo.com/v3/smtp/email"

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	URL         string

	client *http.Client
	logger zerolog.Logger
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewEmailService returns nil when Brevo is not configured; callers treat a
// nil *BrevoService as "email disabled".
func NewEmailService(settings config.Settings, logger zerolog.Logger) *BrevoService {
	logger = logger.With().Str("component", "email").Logger()
	if settings.BrevoAPIKey == "" || settings.EmailSender == "" || settings.EmailSenderName == "" {
		logger.Warn().Msg("email service not configured, missing API key, sender email or sender name")
		return nil
	}

	logger.Info().Str("sender", settings.EmailSender).Msg("email service initialized")
	return &BrevoService{
		APIKey:      settings.BrevoAPIKey,
		SenderEmail: settings.EmailSender,
		SenderName:  settings.EmailSenderName,
		URL:         DefaultBrevoURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

func (s *BrevoService) Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error {
	if s == nil {
		return nil
	}
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	body, err := json.Marshal(brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	client := s.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

// ReferralCompleted emails the referrer in the background. Failures are
// logged and never reach the redemption.
func (s *BrevoService) ReferralCompleted(_ context.Context, referrer *models.User, referral *models.Referral) {
	if s == nil || referrer == nil || referral == nil {
		return
	}
	subject, content := referralEmail(referrer, referral)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Send(ctx, referrer.Email, referrer.FullName, subject, content); err != nil {
			s.logger.Error().Err(err).Str("referral_id", referral.ID.String()).Msg("failed to send referral email")
			return
		}
		s.logger.Info().Str("referral_id", referral.ID.String()).Msg("referral email sent")
	}()
}

func referralEmail(referrer *models.User, referral *models.Referral) (string, string) {
	who := "Someone"
	if referral.ReferredUser != nil && referral.ReferredUser.FullName != "" {
		who = referral.ReferredUser.FullName
	}
	subject := "You earned a referral reward"
	content := fmt.Sprintf(
		"<p>Hi %s,</p><p>%s joined using your code <strong>%s</strong>. "+
			"We added <strong>%s</strong> to your rewards; your balance is now <strong>%s</strong>.</p>",
		html.EscapeString(referrer.FullName),
		html.EscapeString(who),
		html.EscapeString(referral.ReferralCode),
		referral.RewardAmount.StringFixed(2),
		referrer.ReferralRewards.StringFixed(2),
	)
	return subject, content
}

// Fanout forwards each completed referral to every notifier in order.
type Fanout []services.ReferralNotifier

func (f Fanout) ReferralCompleted(ctx context.Context, referrer *models.User, referral *models.Referral) {
	for _, n := range f {
		if n != nil {
			n.ReferralCompleted(ctx, referrer, referral)
		}
	}
}

var (
	_ services.ReferralNotifier = (*BrevoService)(nil)
	_ services.ReferralNotifier = Fanout(nil)
)
