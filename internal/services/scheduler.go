package services

import (
	"context"
	"fmt"
	"time"

	"proxy-bidding/internal/domain"
	"proxy-bidding/pkg/logger"
	"proxy-bidding/pkg/utils"

	"github.com/robfig/cron/v3"
)

// CronListingScheduler persists lifecycle jobs and polls for due ones on a
// cron tick. Jobs survive restarts; execution is leader-gated inside the
// lifecycle service.
type CronListingScheduler struct {
	cron      *cron.Cron
	repo      domain.SchedulerRepository
	lifecycle *ListingService
	interval  time.Duration
	log       logger.Logger
}

func NewCronListingScheduler(repo domain.SchedulerRepository, lifecycle *ListingService,
	interval time.Duration, log logger.Logger) *CronListingScheduler {
	return &CronListingScheduler{
		cron:      cron.New(cron.WithSeconds()),
		repo:      repo,
		lifecycle: lifecycle,
		interval:  interval,
		log:       log,
	}
}

func (s *CronListingScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting listing scheduler", "poll_interval", s.interval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.processPendingJobs(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronListingScheduler) Stop() error {
	s.log.Info("Stopping listing scheduler")
	s.cron.Stop()
	return nil
}

func (s *CronListingScheduler) ScheduleActivation(ctx context.Context, listingID string, at time.Time) error {
	return s.repo.CreateJob(ctx, &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		ListingID: listingID,
		JobType:   domain.JobActivateListing,
		RunAt:     at,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	})
}

func (s *CronListingScheduler) ScheduleClose(ctx context.Context, listingID string, at time.Time) error {
	return s.repo.CreateJob(ctx, &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		ListingID: listingID,
		JobType:   domain.JobCloseListing,
		RunAt:     at,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	})
}

func (s *CronListingScheduler) RescheduleClose(ctx context.Context, listingID string, at time.Time) error {
	if err := s.repo.CancelJobsForListing(ctx, listingID); err != nil {
		return err
	}
	return s.ScheduleClose(ctx, listingID, at)
}

func (s *CronListingScheduler) CancelSchedule(ctx context.Context, listingID string) error {
	return s.repo.CancelJobsForListing(ctx, listingID)
}

func (s *CronListingScheduler) processPendingJobs(ctx context.Context) {
	jobs, err := s.repo.GetPendingJobs(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "listing_id", job.ListingID)

		handled, err := s.lifecycle.RunScheduledJob(ctx, job)
		if err != nil {
			s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			// Left pending, will retry on the next tick.
			continue
		}
		if !handled {
			// Not the leader; the job stays pending for the leader's poll.
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to mark job executed", "job_id", job.ID, "error", err)
		}
	}
}
