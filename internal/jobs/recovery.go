package jobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"pavssv/internal/config"
	"pavssv/internal/store"
)

// RecoveryConfig holds configuration for the stale-job recovery sweep.
type RecoveryConfig struct {
	Schedule string        // cron schedule (default: every 10 minutes)
	MaxAge   time.Duration // non-terminal jobs older than this are failed
	TimeZone string
}

func NewDefaultRecoveryConfig() *RecoveryConfig {
	schedule := os.Getenv("RECOVERY_SCHEDULE")
	if schedule == "" {
		schedule = config.DefaultRecoverySchedule
	}
	maxAge := config.DefaultRecoveryMaxAgeMn * time.Minute
	if raw := os.Getenv("RECOVERY_MAX_AGE_MINUTES"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			maxAge = time.Duration(parsed) * time.Minute
		}
	}
	return &RecoveryConfig{Schedule: schedule, MaxAge: maxAge, TimeZone: "UTC"}
}

// RunRecoveryScheduler starts the cron job that fails QUEUED/RUNNING jobs
// left behind by a crash or restart. Without it a dead worker would hold the
// (org, period) slot forever.
func RunRecoveryScheduler(cfg *RecoveryConfig, st store.Store) (*cron.Cron, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultRecoverySchedule
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = config.DefaultRecoveryMaxAgeMn * time.Minute
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
		audit(fmt.Sprintf("Invalid timezone %s, falling back to UTC: %v", cfg.TimeZone, err))
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		if err := SweepStaleJobs(context.Background(), st, cfg.MaxAge); err != nil {
			audit(fmt.Sprintf("Recovery sweep failed: %v", err))
			log.Printf("ERROR: recovery sweep failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule recovery sweep: %v", err)
	}

	c.Start()
	audit(fmt.Sprintf("Recovery sweep scheduler started with schedule: %s (max age: %s)", cfg.Schedule, cfg.MaxAge))
	return c, nil
}

// SweepStaleJobs fails every non-terminal job untouched for longer than
// maxAge. Races with a live worker are harmless: the conditional transition
// only applies when the job really is stuck in the observed status.
func SweepStaleJobs(ctx context.Context, st store.Store, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge)
	stale, err := st.StaleJobs(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, j := range stale {
		err := st.TransitionJob(ctx, j.ID, j.Status, store.JobFailed, "abandoned by worker, recovered by sweep")
		switch {
		case err == nil:
			audit(fmt.Sprintf("Recovery sweep failed stale job %s (org=%s period=%s, was %s)", j.ID, j.OrgID, j.Period, j.Status))
		case err == store.ErrStale:
			// Job moved on since the listing; leave it alone.
		default:
			return err
		}
	}
	return nil
}
