package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingType string

const (
	ListingFixed   ListingType = "fixed"
	ListingAuction ListingType = "auction"
)

type ListingStatus int

const (
	ListingDraft ListingStatus = iota
	ListingActive
	ListingEnded
	ListingCancelled
)

func (s ListingStatus) String() string {
	switch s {
	case ListingDraft:
		return "draft"
	case ListingActive:
		return "active"
	case ListingEnded:
		return "ended"
	case ListingCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Listing is the auction metadata row. AuctionEnd only moves forward, and
// only through the extension controller once the listing is active.
type Listing struct {
	ID                 string
	SellerID           string
	Title              string
	ListingType        ListingType
	Status             ListingStatus
	StartingBid        decimal.Decimal
	AuctionEnd         time.Time
	ExtensionWindow    time.Duration
	ExtensionIncrement time.Duration
	TimesExtended      int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (l *Listing) AuctionEnded(now time.Time) bool {
	if l.ListingType != ListingAuction {
		return false
	}
	// A bid landing exactly at the deadline is too late.
	return !l.AuctionEnd.IsZero() && !now.Before(l.AuctionEnd)
}

// Bid is an immutable ledger entry. IDs are assigned monotonically by the
// ledger store; the highest amount with the lowest id is the current leader.
type Bid struct {
	ID                 int64
	ListingID          string
	BidderID           string
	Amount             decimal.Decimal
	MaxAmount          decimal.Decimal
	ProxyPlaced        bool
	TriggeredExtension bool
	CreatedAt          time.Time
}

// ProxyBid is the one mutable record per bidder and listing holding the
// declared maximum. Inactive entries never win a resolution round.
type ProxyBid struct {
	ListingID string
	BidderID  string
	MaxAmount decimal.Decimal
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AuctionEvent struct {
	Type      AuctionEventType `json:"type"`
	ListingID string           `json:"listing_id"`
	UserID    string           `json:"user_id,omitempty"`
	Amount    decimal.Decimal  `json:"amount"`
	Timestamp time.Time        `json:"timestamp"`
}

type AuctionEventType string

const (
	// EventOutbid targets UserID: they lost the lead, Amount is the new price.
	EventOutbid          AuctionEventType = "outbid"
	EventBidAccepted     AuctionEventType = "bid_accepted"
	EventAuctionExtended AuctionEventType = "auction_extended"
	EventAuctionEnded    AuctionEventType = "auction_ended"
)

type ScheduledJob struct {
	ID        string
	ListingID string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobActivateListing JobType = "activate_listing"
	JobCloseListing    JobType = "close_listing"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
