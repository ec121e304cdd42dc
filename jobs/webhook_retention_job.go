package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type EventPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneWebhookEvents drops idempotency records older than the retention
// window. The window must stay longer than Stripe's three day retry period.
type PruneWebhookEvents struct {
	Events        EventPruner
	RetentionDays int
	Logger        zerolog.Logger
	Now           func() time.Time
}

func (j *PruneWebhookEvents) Run() {
	if _, err := j.RunOnce(context.Background()); err != nil {
		j.Logger.Error().Err(err).Msg("prune webhook events failed")
	}
}

func (j *PruneWebhookEvents) RunOnce(ctx context.Context) (int64, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	days := j.RetentionDays
	if days <= 0 {
		days = 30
	}
	cutoff := now().UTC().AddDate(0, 0, -days)

	deleted, err := j.Events.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	j.Logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("pruned webhook events")
	return deleted, nil
}
