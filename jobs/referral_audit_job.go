package jobs

import (
	"context"

	"github.com/anjiri1684/referral_payments/database"
	"github.com/rs/zerolog"
)

type DriftFinder interface {
	CounterDrift(ctx context.Context) ([]database.CounterDrift, error)
}

// AuditReferralCounters compares each user's total_referrals with the
// referral rows that name them as referrer. Drift is logged, never repaired.
type AuditReferralCounters struct {
	Referrals DriftFinder
	Logger    zerolog.Logger
}

func (j *AuditReferralCounters) Run() {
	if _, err := j.RunOnce(context.Background()); err != nil {
		j.Logger.Error().Err(err).Msg("referral counter audit failed")
	}
}

func (j *AuditReferralCounters) RunOnce(ctx context.Context) ([]database.CounterDrift, error) {
	drift, err := j.Referrals.CounterDrift(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drift {
		j.Logger.Warn().
			Str("user_id", d.UserID).
			Int("total_referrals", d.TotalReferrals).
			Int("referral_rows", d.ReferralRows).
			Msg("referral counter drift")
	}
	if len(drift) == 0 {
		j.Logger.Debug().Msg("referral counters consistent")
	}
	return drift, nil
}
