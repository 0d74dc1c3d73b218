package services

import (
	"context"
	"fmt"
	"time"

	"proxy-bidding/internal/domain"
	"proxy-bidding/pkg/logger"
	"proxy-bidding/pkg/utils"

	"github.com/shopspring/decimal"
)

// ListingService owns the listing lifecycle: create, activate, close,
// cancel. Leaving the active state deactivates every proxy maximum exactly
// once and announces the close on the event channel.
type ListingService struct {
	tx             domain.Transactor
	listings       domain.ListingRepository
	proxies        domain.ProxyBidRepository
	scheduler      domain.ListingScheduler
	events         domain.EventPublisher
	cache          domain.PriceCache
	leaderElection domain.LeaderElection
	instanceID     string
	defaultWindow  time.Duration
	defaultExt     time.Duration
	log            logger.Logger
	now            func() time.Time
}

func NewListingService(
	tx domain.Transactor,
	listings domain.ListingRepository,
	proxies domain.ProxyBidRepository,
	scheduler domain.ListingScheduler,
	events domain.EventPublisher,
	cache domain.PriceCache,
	leaderElection domain.LeaderElection,
	instanceID string,
	defaultWindow, defaultExt time.Duration,
	log logger.Logger,
) *ListingService {
	return &ListingService{
		tx:             tx,
		listings:       listings,
		proxies:        proxies,
		scheduler:      scheduler,
		events:         events,
		cache:          cache,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		defaultWindow:  defaultWindow,
		defaultExt:     defaultExt,
		log:            log,
		now:            time.Now,
	}
}

// SetScheduler breaks the construction cycle between the lifecycle service
// and the cron scheduler.
func (s *ListingService) SetScheduler(scheduler domain.ListingScheduler) {
	s.scheduler = scheduler
}

type CreateListingParams struct {
	SellerID           string
	Title              string
	ListingType        domain.ListingType
	StartingBid        decimal.Decimal
	StartAt            time.Time
	AuctionEnd         time.Time
	ExtensionWindow    time.Duration
	ExtensionIncrement time.Duration
}

func (s *ListingService) CreateListing(ctx context.Context, params CreateListingParams) (*domain.Listing, error) {
	now := s.now()
	listing := &domain.Listing{
		ID:                 utils.GenerateID("listing"),
		SellerID:           params.SellerID,
		Title:              params.Title,
		ListingType:        params.ListingType,
		Status:             domain.ListingDraft,
		StartingBid:        params.StartingBid,
		AuctionEnd:         params.AuctionEnd,
		ExtensionWindow:    params.ExtensionWindow,
		ExtensionIncrement: params.ExtensionIncrement,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if listing.ExtensionWindow <= 0 {
		listing.ExtensionWindow = s.defaultWindow
	}
	if listing.ExtensionIncrement <= 0 {
		listing.ExtensionIncrement = s.defaultExt
	}

	if err := s.listings.CreateListing(ctx, listing); err != nil {
		return nil, err
	}
	if err := s.cache.SetCurrentPrice(ctx, listing.ID, listing.StartingBid, ""); err != nil {
		s.log.Warn("Failed to seed price cache", "listing_id", listing.ID, "error", err)
	}

	if listing.ListingType == domain.ListingAuction {
		if params.StartAt.After(now) {
			if err := s.scheduler.ScheduleActivation(ctx, listing.ID, params.StartAt); err != nil {
				return nil, err
			}
		} else {
			if err := s.ActivateListing(ctx, listing.ID); err != nil {
				return nil, err
			}
			listing.Status = domain.ListingActive
		}
		if !listing.AuctionEnd.IsZero() {
			if err := s.scheduler.ScheduleClose(ctx, listing.ID, listing.AuctionEnd); err != nil {
				return nil, err
			}
		}
	}

	s.log.Info("Listing created", "listing_id", listing.ID, "type", listing.ListingType)
	return listing, nil
}

func (s *ListingService) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	return s.listings.GetListing(ctx, listingID)
}

func (s *ListingService) ActivateListing(ctx context.Context, listingID string) error {
	s.log.Info("Activating listing", "listing_id", listingID)
	return s.listings.UpdateListingStatus(ctx, listingID, domain.ListingActive)
}

// CloseListing ends an active auction. If the anti-sniping clock moved past
// the scheduled close, the close job is pushed out instead. Idempotent:
// closing a non-active listing is a no-op.
func (s *ListingService) CloseListing(ctx context.Context, listingID string) error {
	var (
		closed     bool
		reschedule time.Time
	)
	err := s.tx.WithinListingTx(ctx, listingID, func(ctx context.Context) error {
		listing, err := s.listings.LoadForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.Status != domain.ListingActive {
			return nil
		}
		if listing.ListingType == domain.ListingAuction && listing.AuctionEnd.After(s.now()) {
			reschedule = listing.AuctionEnd
			return nil
		}
		if err := s.listings.UpdateListingStatus(ctx, listingID, domain.ListingEnded); err != nil {
			return err
		}
		if err := s.proxies.DeactivateAll(ctx, listingID); err != nil {
			return err
		}
		closed = true
		return nil
	})
	if err != nil {
		return err
	}

	if !reschedule.IsZero() {
		s.log.Info("Close deferred by extension", "listing_id", listingID, "new_end", reschedule)
		return s.scheduler.RescheduleClose(ctx, listingID, reschedule)
	}
	if closed {
		s.announceClose(ctx, listingID)
	}
	return nil
}

// CancelListing withdraws a listing entirely: status cancelled, all proxy
// maxima retired, pending jobs dropped.
func (s *ListingService) CancelListing(ctx context.Context, listingID string) error {
	var cancelled bool
	err := s.tx.WithinListingTx(ctx, listingID, func(ctx context.Context) error {
		listing, err := s.listings.LoadForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.Status == domain.ListingEnded || listing.Status == domain.ListingCancelled {
			return nil
		}
		if err := s.listings.UpdateListingStatus(ctx, listingID, domain.ListingCancelled); err != nil {
			return err
		}
		if err := s.proxies.DeactivateAll(ctx, listingID); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return err
	}
	if cancelled {
		if err := s.scheduler.CancelSchedule(ctx, listingID); err != nil {
			s.log.Error("Failed to cancel schedule", "listing_id", listingID, "error", err)
		}
		s.announceClose(ctx, listingID)
	}
	return nil
}

// RunScheduledJob executes one due lifecycle job. Only the elected leader
// acts so a scheduled close fires once across instances; handled reports
// whether the work ran, so a non-leader's poll leaves the job pending for
// the leader instead of consuming it.
func (s *ListingService) RunScheduledJob(ctx context.Context, job *domain.ScheduledJob) (handled bool, err error) {
	isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil {
		return false, err
	}
	if !isLeader {
		return false, nil
	}

	switch job.JobType {
	case domain.JobActivateListing:
		return true, s.ActivateListing(ctx, job.ListingID)
	case domain.JobCloseListing:
		return true, s.CloseListing(ctx, job.ListingID)
	default:
		return false, fmt.Errorf("unknown job type %q", job.JobType)
	}
}

func (s *ListingService) announceClose(ctx context.Context, listingID string) {
	if err := s.events.PublishAuctionEvent(ctx, &domain.AuctionEvent{
		Type:      domain.EventAuctionEnded,
		ListingID: listingID,
		Timestamp: s.now(),
	}); err != nil {
		s.log.Error("Failed to publish close event", "listing_id", listingID, "error", err)
	}
	if err := s.cache.DropListing(ctx, listingID); err != nil {
		s.log.Warn("Failed to drop cached price", "listing_id", listingID, "error", err)
	}
	s.log.Info("Listing closed", "listing_id", listingID)
}
