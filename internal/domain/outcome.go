package domain

import "github.com/shopspring/decimal"

// DeclineReason classifies business-rule rejections. Declines are expected
// outcomes, not errors, and leave no side effect.
type DeclineReason string

const (
	DeclineNotAnAuction     DeclineReason = "not_an_auction"
	DeclineListingNotActive DeclineReason = "listing_not_active"
	DeclineAuctionEnded     DeclineReason = "auction_ended"
	DeclineSellerCannotBid  DeclineReason = "seller_cannot_bid"
	DeclineBelowMinimum     DeclineReason = "below_minimum"
)

// BidOutcome is the result of one PlaceBid call. When Accepted is false,
// Reason and Message carry enough detail for a user-facing response without
// a second lookup.
type BidOutcome struct {
	Accepted     bool            `json:"accepted"`
	Reason       DeclineReason   `json:"reason,omitempty"`
	Message      string          `json:"message"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MinimumBid   decimal.Decimal `json:"minimum_bid"`
	IsWinning    bool            `json:"is_winning"`
	WasOutbid    bool            `json:"was_outbid"`
	Bid          *Bid            `json:"-"`
}

func Declined(reason DeclineReason, message string, currentPrice decimal.Decimal) *BidOutcome {
	return &BidOutcome{
		Accepted:     false,
		Reason:       reason,
		Message:      message,
		CurrentPrice: currentPrice,
	}
}
