package services

import (
	"context"
	"testing"
	"time"

	"proxy-bidding/internal/domain"
)

type schedulerFixture struct {
	scheduler *CronListingScheduler
	repo      *memSchedulerRepo
	lifecycle *lifecycleFixture
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	lifecycle := newLifecycleFixture(t)
	repo := newMemSchedulerRepo()
	return &schedulerFixture{
		scheduler: NewCronListingScheduler(repo, lifecycle.svc, 30*time.Second, nopLogger{}),
		repo:      repo,
		lifecycle: lifecycle,
	}
}

func (f *schedulerFixture) addDueCloseJob(t *testing.T) {
	t.Helper()
	f.lifecycle.listings.CreateListing(context.Background(), &domain.Listing{
		ID:          "listing-1",
		ListingType: domain.ListingAuction,
		Status:      domain.ListingActive,
		AuctionEnd:  f.lifecycle.now.Add(-time.Minute),
	})
	f.repo.CreateJob(context.Background(), &domain.ScheduledJob{
		ID:        "job-1",
		ListingID: "listing-1",
		JobType:   domain.JobCloseListing,
		RunAt:     f.lifecycle.now.Add(-time.Minute),
		Status:    domain.JobPending,
	})
}

func TestNonLeaderTickLeavesJobPending(t *testing.T) {
	f := newSchedulerFixture(t)
	f.lifecycle.leader.leading = false
	f.addDueCloseJob(t)

	f.scheduler.processPendingJobs(context.Background())

	if got := f.repo.status("job-1"); got != domain.JobPending {
		t.Fatalf("job status = %s on a non-leader, want pending", got)
	}
	stored, _ := f.lifecycle.listings.GetListing(context.Background(), "listing-1")
	if stored.Status != domain.ListingActive {
		t.Fatalf("non-leader closed the listing, status = %s", stored.Status)
	}
}

func TestLeaderTickExecutesAndMarksJob(t *testing.T) {
	f := newSchedulerFixture(t)
	f.addDueCloseJob(t)

	f.scheduler.processPendingJobs(context.Background())

	if got := f.repo.status("job-1"); got != domain.JobExecuted {
		t.Fatalf("job status = %s, want executed", got)
	}
	stored, _ := f.lifecycle.listings.GetListing(context.Background(), "listing-1")
	if stored.Status != domain.ListingEnded {
		t.Fatalf("listing status = %s, want ended", stored.Status)
	}
}

func TestJobTakenOverOnceLeadershipArrives(t *testing.T) {
	f := newSchedulerFixture(t)
	f.lifecycle.leader.leading = false
	f.addDueCloseJob(t)

	// A few ticks without leadership consume nothing.
	f.scheduler.processPendingJobs(context.Background())
	f.scheduler.processPendingJobs(context.Background())

	f.lifecycle.leader.leading = true
	f.scheduler.processPendingJobs(context.Background())

	if got := f.repo.status("job-1"); got != domain.JobExecuted {
		t.Fatalf("job status = %s after gaining leadership, want executed", got)
	}
	if got := len(f.lifecycle.events.byType(domain.EventAuctionEnded)); got != 1 {
		t.Fatalf("ended events = %d, want exactly 1", got)
	}
}
