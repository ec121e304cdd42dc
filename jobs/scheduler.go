package jobs

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	PruneSchedule = "@daily"
	AuditSchedule = "@hourly"
)

// Schedule registers the maintenance jobs on c. The caller starts and stops c.
func Schedule(c *cron.Cron, prune *PruneWebhookEvents, audit *AuditReferralCounters, logger zerolog.Logger) error {
	if _, err := c.AddJob(PruneSchedule, prune); err != nil {
		return err
	}
	if _, err := c.AddJob(AuditSchedule, audit); err != nil {
		return err
	}
	logger.Info().Str("prune", PruneSchedule).Str("audit", AuditSchedule).Msg("maintenance jobs scheduled")
	return nil
}
