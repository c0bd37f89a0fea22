package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"web-dlp/config"
	"web-dlp/constant"
	"web-dlp/entities"
	"web-dlp/pkg/storage"
	"web-dlp/repository"
)

type CleanupPolicy struct {
	Interval  time.Duration
	Retention time.Duration
	// AbandonGrace is added to Retention for jobs still processing.
	AbandonGrace time.Duration
	// RetrievalGrace reclaims finished jobs this long after their first
	// retrieval. Zero disables it.
	RetrievalGrace time.Duration
}

func PolicyFromConfig(cfg config.Cleanup) CleanupPolicy {
	return CleanupPolicy{
		Interval:       cfg.Interval,
		Retention:      cfg.Retention,
		AbandonGrace:   cfg.AbandonGrace,
		RetrievalGrace: cfg.RetrievalGrace,
	}
}

// Expired reports whether job should be reclaimed at now.
func (p CleanupPolicy) Expired(job entities.Job, now time.Time) bool {
	age := job.Age(now)
	if job.Status == constant.JobStatusProcessing {
		return age > p.Retention+p.AbandonGrace
	}
	if age > p.Retention {
		return true
	}
	if p.RetrievalGrace > 0 && job.Status == constant.JobStatusFinished && job.RetrievedAt != nil {
		return now.Sub(*job.RetrievedAt) > p.RetrievalGrace
	}
	return false
}

type SweepResult struct {
	Reclaimed int
	Orphans   int
	Failures  int
}

type Cleaner struct {
	repo   repository.JobRepository
	store  storage.Store
	policy CleanupPolicy
	now    func() time.Time
}

func NewCleaner(repo repository.JobRepository, store storage.Store, policy CleanupPolicy) *Cleaner {
	return &Cleaner{
		repo:   repo,
		store:  store,
		policy: policy,
		now:    time.Now,
	}
}

// Run sweeps every policy interval until ctx is done.
func (c *Cleaner) Run(ctx context.Context) {
	zerolog.Ctx(ctx).Info().Dur("interval", c.policy.Interval).Dur("retention", c.policy.Retention).Msg("cleanup scheduler started")

	ticker := time.NewTicker(c.policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zerolog.Ctx(ctx).Info().Msg("cleanup scheduler stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep reclaims expired jobs, then deletes unreferenced artifacts.
// Storage errors are logged and never stop the sweep.
func (c *Cleaner) Sweep(ctx context.Context) SweepResult {
	var result SweepResult
	now := c.now()
	// files of every job still in the table are off limits, including the
	// partial downloads of processing jobs
	live := make(map[string]bool)

	for _, job := range c.repo.List(ctx) {
		if !c.policy.Expired(job, now) {
			live[job.ID] = true
			continue
		}

		if job.Status == constant.JobStatusProcessing {
			zerolog.Ctx(ctx).Warn().Str("job_id", job.ID).Dur("age", job.Age(now)).Msg("reclaiming abandoned job")
		}

		if err := c.store.Remove(ctx, job.ResultPath); err != nil {
			result.Failures++
			zerolog.Ctx(ctx).Error().Err(err).Str("job_id", job.ID).Str("ref", job.ResultPath).Msg("failed to delete result file")
		}
		c.repo.Delete(ctx, job.ID)
		result.Reclaimed++
		zerolog.Ctx(ctx).Info().Str("job_id", job.ID).Str("status", job.Status.String()).Msg("removed old job")
	}

	orphans, err := c.store.SweepOrphans(ctx, now.Add(-c.policy.Retention), live)
	if err != nil {
		result.Failures++
		zerolog.Ctx(ctx).Error().Err(err).Msg("orphan sweep incomplete")
	}
	result.Orphans = orphans

	zerolog.Ctx(ctx).Debug().
		Int("reclaimed", result.Reclaimed).
		Int("orphans", result.Orphans).
		Int("failures", result.Failures).
		Msg("cleanup complete")
	return result
}
