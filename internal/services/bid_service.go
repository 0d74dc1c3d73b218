package services

import (
	"context"
	"fmt"
	"time"

	"proxy-bidding/internal/domain"
	"proxy-bidding/pkg/logger"

	"github.com/shopspring/decimal"
)

// BidService is the proxy bidding engine. Every bid is a maximum bid: the
// engine places the minimum amount necessary to lead and counter-bids on the
// standing leader's behalf up to their declared maximum. All reads and
// writes for one PlaceBid call happen inside the per-listing transaction, so
// concurrent calls on the same listing serialize and either fully apply or
// fully roll back.
type BidService struct {
	tx        domain.Transactor
	listings  domain.ListingRepository
	bids      domain.BidRepository
	proxies   domain.ProxyBidRepository
	events    domain.EventPublisher
	cache     domain.PriceCache
	increment decimal.Decimal
	log       logger.Logger
	now       func() time.Time
}

func NewBidService(
	tx domain.Transactor,
	listings domain.ListingRepository,
	bids domain.BidRepository,
	proxies domain.ProxyBidRepository,
	events domain.EventPublisher,
	cache domain.PriceCache,
	increment decimal.Decimal,
	log logger.Logger,
) *BidService {
	return &BidService{
		tx:        tx,
		listings:  listings,
		bids:      bids,
		proxies:   proxies,
		events:    events,
		cache:     cache,
		increment: increment,
		log:       log,
		now:       time.Now,
	}
}

// PlaceBid resolves a new (bidder, declared maximum) pair against the
// listing's ledger and proxy registry. Business-rule rejections come back as
// declined outcomes with a nil error and leave no side effect; only
// infrastructure failures return an error.
func (s *BidService) PlaceBid(ctx context.Context, listingID, bidderID string, maxAmount decimal.Decimal) (*domain.BidOutcome, error) {
	var (
		outcome *domain.BidOutcome
		pending []*domain.AuctionEvent
		leader  string
	)

	err := s.tx.WithinListingTx(ctx, listingID, func(ctx context.Context) error {
		outcome = nil
		pending = nil

		listing, err := s.listings.LoadForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		highest, err := s.bids.HighestBid(ctx, listingID)
		if err != nil {
			return err
		}

		now := s.now()
		currentPrice := listing.StartingBid
		if highest != nil {
			currentPrice = highest.Amount
		}

		switch {
		case listing.ListingType != domain.ListingAuction:
			outcome = domain.Declined(domain.DeclineNotAnAuction,
				"this is not an auction listing", currentPrice)
			return nil
		case listing.Status != domain.ListingActive:
			outcome = domain.Declined(domain.DeclineListingNotActive,
				"this listing is not active", currentPrice)
			return nil
		case listing.AuctionEnded(now):
			outcome = domain.Declined(domain.DeclineAuctionEnded,
				"this auction has ended", currentPrice)
			return nil
		case bidderID == listing.SellerID:
			outcome = domain.Declined(domain.DeclineSellerCannotBid,
				"you cannot bid on your own listing", currentPrice)
			return nil
		}

		minBid := listing.StartingBid
		if highest != nil {
			minBid = currentPrice.Add(s.increment)
		}
		if maxAmount.LessThan(minBid) {
			outcome = domain.Declined(domain.DeclineBelowMinimum,
				fmt.Sprintf("your max bid must be at least $%s", minBid.StringFixed(2)), currentPrice)
			outcome.MinimumBid = minBid
			return nil
		}

		// Already the high bidder: raise the declared maximum, no new ledger row.
		if highest != nil && highest.BidderID == bidderID {
			if err := s.upsertProxy(ctx, listingID, bidderID, maxAmount, now); err != nil {
				return err
			}
			outcome = &domain.BidOutcome{
				Accepted: true,
				Message: fmt.Sprintf("your maximum bid is now $%s; you are still the high bidder at $%s",
					maxAmount.StringFixed(2), currentPrice.StringFixed(2)),
				CurrentPrice: currentPrice,
				MinimumBid:   minBid,
				IsWinning:    true,
				Bid:          highest,
			}
			leader = bidderID
			return nil
		}

		competitor, err := s.proxies.ActiveCompetitor(ctx, listingID, bidderID)
		if err != nil {
			return err
		}
		if err := s.upsertProxy(ctx, listingID, bidderID, maxAmount, now); err != nil {
			return err
		}

		if competitor == nil {
			// No competing maximum in play: one bid at the minimum acceptable.
			bid := s.newBid(listingID, bidderID, minBid, maxAmount, false, now)
			extended := MaybeExtend(listing, bid, now)
			if err := s.bids.AppendBid(ctx, bid); err != nil {
				return err
			}
			if extended {
				if err := s.listings.SaveAuctionState(ctx, listing); err != nil {
					return err
				}
			}

			if highest != nil {
				pending = append(pending, outbidEvent(listingID, highest.BidderID, minBid, now))
			}
			pending = append(pending, feedEvent(domain.EventBidAccepted, listingID, bidderID, minBid, now))
			if extended {
				pending = append(pending, feedEvent(domain.EventAuctionExtended, listingID, "", minBid, now))
			}

			outcome = &domain.BidOutcome{
				Accepted: true,
				Message: fmt.Sprintf("you are the high bidder at $%s (max $%s)",
					minBid.StringFixed(2), maxAmount.StringFixed(2)),
				CurrentPrice: minBid,
				MinimumBid:   minBid,
				IsWinning:    true,
				Bid:          bid,
			}
			leader = bidderID
			return nil
		}

		if maxAmount.GreaterThan(competitor.MaxAmount) {
			// Caller beats the standing maximum. The loser's ceiling is put on
			// the ledger, then the caller's price-setting counter.
			loserBid := s.newBid(listingID, competitor.BidderID, competitor.MaxAmount, competitor.MaxAmount, true, now)
			winnerAmount := decimal.Min(competitor.MaxAmount.Add(s.increment), maxAmount)
			winnerBid := s.newBid(listingID, bidderID, winnerAmount, maxAmount, false, now)

			extended := MaybeExtend(listing, winnerBid, now)
			if err := s.bids.AppendBid(ctx, loserBid); err != nil {
				return err
			}
			if err := s.bids.AppendBid(ctx, winnerBid); err != nil {
				return err
			}
			if extended {
				if err := s.listings.SaveAuctionState(ctx, listing); err != nil {
					return err
				}
			}
			if err := s.proxies.Deactivate(ctx, listingID, competitor.BidderID); err != nil {
				return err
			}

			pending = append(pending, outbidEvent(listingID, competitor.BidderID, winnerAmount, now))
			pending = append(pending, feedEvent(domain.EventBidAccepted, listingID, bidderID, winnerAmount, now))
			if extended {
				pending = append(pending, feedEvent(domain.EventAuctionExtended, listingID, "", winnerAmount, now))
			}

			outcome = &domain.BidOutcome{
				Accepted: true,
				Message: fmt.Sprintf("you are the high bidder at $%s; another bidder's maximum of $%s was beaten",
					winnerAmount.StringFixed(2), competitor.MaxAmount.StringFixed(2)),
				CurrentPrice: winnerAmount,
				MinimumBid:   minBid,
				IsWinning:    true,
				Bid:          winnerBid,
			}
			leader = bidderID
			return nil
		}

		// Standing bidder wins the round (ties go to the earlier maximum). The
		// caller's full maximum goes on the ledger and the leader counters one
		// increment above it, capped at their own ceiling.
		counterAmount := decimal.Min(maxAmount.Add(s.increment), competitor.MaxAmount)
		callerBid := s.newBid(listingID, bidderID, maxAmount, maxAmount, false, now)
		counterBid := s.newBid(listingID, competitor.BidderID, counterAmount, competitor.MaxAmount, true, now)

		extended := MaybeExtend(listing, counterBid, now)
		// On equal maxima the counter is appended first: with equal amounts the
		// lower ledger id keeps the lead, which must stay with the standing bidder.
		ordered := []*domain.Bid{callerBid, counterBid}
		if counterAmount.Equal(maxAmount) {
			ordered = []*domain.Bid{counterBid, callerBid}
		}
		for _, bid := range ordered {
			if err := s.bids.AppendBid(ctx, bid); err != nil {
				return err
			}
		}
		if extended {
			if err := s.listings.SaveAuctionState(ctx, listing); err != nil {
				return err
			}
		}
		if err := s.proxies.Deactivate(ctx, listingID, bidderID); err != nil {
			return err
		}

		pending = append(pending, outbidEvent(listingID, bidderID, counterAmount, now))
		pending = append(pending, feedEvent(domain.EventBidAccepted, listingID, competitor.BidderID, counterAmount, now))
		if extended {
			pending = append(pending, feedEvent(domain.EventAuctionExtended, listingID, "", counterAmount, now))
		}

		outcome = &domain.BidOutcome{
			Accepted: true,
			Message: fmt.Sprintf("you were outbid: another bidder holds a higher maximum; current price is $%s",
				counterAmount.StringFixed(2)),
			CurrentPrice: counterAmount,
			MinimumBid:   minBid,
			WasOutbid:    true,
			Bid:          callerBid,
		}
		leader = competitor.BidderID
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notifications and cache refresh happen outside the transaction; the
	// ledger is the source of truth, so failures here are only logged.
	s.publishEvents(pending)
	if outcome.Accepted {
		if err := s.cache.SetCurrentPrice(ctx, listingID, outcome.CurrentPrice, leader); err != nil {
			s.log.Error("Failed to refresh price cache", "listing_id", listingID, "error", err)
		}
	}
	return outcome, nil
}

// CancelProxyBid withdraws the bidder from contention without touching the
// ledger or the current price. Idempotent.
func (s *BidService) CancelProxyBid(ctx context.Context, listingID, bidderID string) error {
	return s.tx.WithinListingTx(ctx, listingID, func(ctx context.Context) error {
		return s.proxies.Deactivate(ctx, listingID, bidderID)
	})
}

// DeactivateAllForListing retires every proxy maximum on the listing. Called
// by the listing lifecycle when an auction leaves the active state;
// idempotent and safe to repeat.
func (s *BidService) DeactivateAllForListing(ctx context.Context, listingID string) error {
	return s.tx.WithinListingTx(ctx, listingID, func(ctx context.Context) error {
		return s.proxies.DeactivateAll(ctx, listingID)
	})
}

// CurrentPrice serves the cheap read path: cache first, ledger on a miss
// (backfilling the cache).
func (s *BidService) CurrentPrice(ctx context.Context, listingID string) (decimal.Decimal, string, error) {
	price, leaderID, ok, err := s.cache.GetCurrentPrice(ctx, listingID)
	if err != nil {
		s.log.Warn("Price cache read failed", "listing_id", listingID, "error", err)
	} else if ok {
		return price, leaderID, nil
	}

	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return decimal.Zero, "", err
	}
	highest, err := s.bids.HighestBid(ctx, listingID)
	if err != nil {
		return decimal.Zero, "", err
	}
	price, leaderID = listing.StartingBid, ""
	if highest != nil {
		price, leaderID = highest.Amount, highest.BidderID
	}
	if err := s.cache.SetCurrentPrice(ctx, listingID, price, leaderID); err != nil {
		s.log.Warn("Price cache backfill failed", "listing_id", listingID, "error", err)
	}
	return price, leaderID, nil
}

func (s *BidService) BidHistory(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	return s.bids.BidHistory(ctx, listingID)
}

func (s *BidService) upsertProxy(ctx context.Context, listingID, bidderID string, maxAmount decimal.Decimal, now time.Time) error {
	return s.proxies.Upsert(ctx, &domain.ProxyBid{
		ListingID: listingID,
		BidderID:  bidderID,
		MaxAmount: maxAmount,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *BidService) newBid(listingID, bidderID string, amount, maxAmount decimal.Decimal, proxyPlaced bool, now time.Time) *domain.Bid {
	return &domain.Bid{
		ListingID:   listingID,
		BidderID:    bidderID,
		Amount:      amount,
		MaxAmount:   maxAmount,
		ProxyPlaced: proxyPlaced,
		CreatedAt:   now,
	}
}

func (s *BidService) publishEvents(events []*domain.AuctionEvent) {
	for _, event := range events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.events.PublishAuctionEvent(ctx, event); err != nil {
			s.log.Error("Failed to publish auction event",
				"type", event.Type, "listing_id", event.ListingID, "error", err)
		}
		cancel()
	}
}

func outbidEvent(listingID, userID string, newPrice decimal.Decimal, at time.Time) *domain.AuctionEvent {
	return &domain.AuctionEvent{
		Type:      domain.EventOutbid,
		ListingID: listingID,
		UserID:    userID,
		Amount:    newPrice,
		Timestamp: at,
	}
}

func feedEvent(kind domain.AuctionEventType, listingID, userID string, amount decimal.Decimal, at time.Time) *domain.AuctionEvent {
	return &domain.AuctionEvent{
		Type:      kind,
		ListingID: listingID,
		UserID:    userID,
		Amount:    amount,
		Timestamp: at,
	}
}
