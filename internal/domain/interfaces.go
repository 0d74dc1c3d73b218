package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository interfaces. Implementations must honor a transaction carried in
// the context by the Transactor; LoadForUpdate additionally takes the
// per-listing row lock for the remainder of that transaction.
type ListingRepository interface {
	CreateListing(ctx context.Context, listing *Listing) error
	GetListing(ctx context.Context, listingID string) (*Listing, error)
	LoadForUpdate(ctx context.Context, listingID string) (*Listing, error)
	SaveAuctionState(ctx context.Context, listing *Listing) error
	UpdateListingStatus(ctx context.Context, listingID string, status ListingStatus) error
}

type BidRepository interface {
	AppendBid(ctx context.Context, bid *Bid) error
	HighestBid(ctx context.Context, listingID string) (*Bid, error)
	BidHistory(ctx context.Context, listingID string) ([]*Bid, error)
}

type ProxyBidRepository interface {
	Get(ctx context.Context, listingID, bidderID string) (*ProxyBid, error)
	ActiveCompetitor(ctx context.Context, listingID, excludeBidderID string) (*ProxyBid, error)
	Upsert(ctx context.Context, entry *ProxyBid) error
	Deactivate(ctx context.Context, listingID, bidderID string) error
	DeactivateAll(ctx context.Context, listingID string) error
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForListing(ctx context.Context, listingID string) error
}

// Transactor serializes all work for one listing: the callback runs inside a
// transaction holding that listing's exclusive lock, and every write in it
// commits or rolls back as a unit. Calls for different listings do not block
// each other.
type Transactor interface {
	WithinListingTx(ctx context.Context, listingID string, fn func(ctx context.Context) error) error
}

// Cache interfaces
type PriceCache interface {
	SetCurrentPrice(ctx context.Context, listingID string, price decimal.Decimal, leaderID string) error
	GetCurrentPrice(ctx context.Context, listingID string) (price decimal.Decimal, leaderID string, ok bool, err error)
	DropListing(ctx context.Context, listingID string) error
}

// Event interfaces
type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event *AuctionEvent) error
}

type EventSubscriber interface {
	SubscribeToAuctionEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *AuctionEvent) error

// Scheduler interface
type ListingScheduler interface {
	ScheduleActivation(ctx context.Context, listingID string, at time.Time) error
	ScheduleClose(ctx context.Context, listingID string, at time.Time) error
	RescheduleClose(ctx context.Context, listingID string, at time.Time) error
	CancelSchedule(ctx context.Context, listingID string) error
	Start(ctx context.Context) error
	Stop() error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket feed interfaces
type FeedConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	ListingID() string
}

type FeedManager interface {
	Register(userID, listingID string, conn FeedConnection) error
	Unregister(userID, listingID string) error
	BroadcastToListing(listingID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseListing(listingID string) error
}
