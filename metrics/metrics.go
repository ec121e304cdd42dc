package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ReferralMetrics struct {
	operations *prometheus.CounterVec
	rewards    *prometheus.CounterVec
}

type WebhookMetrics struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

var (
	referralOnce sync.Once
	referralReg  *ReferralMetrics

	webhookOnce sync.Once
	webhookReg  *WebhookMetrics
)

// Referrals returns the lazily registered referral ledger metrics.
func Referrals() *ReferralMetrics {
	referralOnce.Do(func() {
		referralReg = &ReferralMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "referrals",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome code.",
			}, []string{"operation", "outcome"}),
			rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "referrals",
				Subsystem: "ledger",
				Name:      "reward_amount_total",
				Help:      "Reward amounts moved through the ledger, by direction.",
			}, []string{"direction"}),
		}
		prometheus.MustRegister(referralReg.operations, referralReg.rewards)
	})
	return referralReg
}

// Observe records one ledger operation. Outcome is "ok" or an error code.
func (m *ReferralMetrics) Observe(operation, outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *ReferralMetrics) Accrued(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.rewards.WithLabelValues("accrued").Add(amount)
}

func (m *ReferralMetrics) Spent(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.rewards.WithLabelValues("spent").Add(amount)
}

// Webhooks returns the lazily registered webhook dispatcher metrics.
func Webhooks() *WebhookMetrics {
	webhookOnce.Do(func() {
		webhookReg = &WebhookMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "payments",
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Provider webhook deliveries segmented by event type and final status.",
			}, []string{"type", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "payments",
				Subsystem: "webhook",
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent verifying and routing a webhook delivery.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
		}
		prometheus.MustRegister(webhookReg.events, webhookReg.latency)
	})
	return webhookReg
}

// Observe records one delivery. eventType should already be collapsed to a
// bounded set by the caller.
func (m *WebhookMetrics) Observe(eventType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType, status).Inc()
	m.latency.WithLabelValues(status).Observe(duration.Seconds())
}
