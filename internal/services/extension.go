package services

import (
	"time"

	"proxy-bidding/internal/domain"
)

// MaybeExtend applies the anti-sniping rule: a bid landing with less than
// ExtensionWindow left pushes AuctionEnd to the bid time plus
// ExtensionIncrement. The end time never moves backward and TimesExtended
// counts only actual moves; the triggering bid is marked when the clock
// moves.
func MaybeExtend(listing *domain.Listing, bid *domain.Bid, at time.Time) bool {
	if listing.AuctionEnd.IsZero() || listing.ExtensionWindow <= 0 {
		return false
	}
	if listing.AuctionEnd.Sub(at) >= listing.ExtensionWindow {
		return false
	}
	newEnd := at.Add(listing.ExtensionIncrement)
	if !newEnd.After(listing.AuctionEnd) {
		return false
	}
	listing.AuctionEnd = newEnd
	listing.TimesExtended++
	if bid != nil {
		bid.TriggeredExtension = true
	}
	return true
}
