package services

import (
	"context"
	"fmt"

	"proxy-bidding/internal/domain"
	"proxy-bidding/pkg/logger"
)

// EventListener bridges the auction event channel to live feed connections:
// price updates fan out to everyone watching a listing, outbid events go to
// the affected bidder.
type EventListener struct {
	feed domain.FeedManager
	log  logger.Logger
}

func NewEventListener(feed domain.FeedManager, log logger.Logger) *EventListener {
	return &EventListener{
		feed: feed,
		log:  log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToAuctionEvents(ctx, el.handleEvent)
}

func (el *EventListener) handleEvent(event *domain.AuctionEvent) error {
	el.log.Debug("Handling auction event", "type", event.Type, "listing_id", event.ListingID)

	switch event.Type {
	case domain.EventBidAccepted:
		return el.feed.BroadcastToListing(event.ListingID, map[string]interface{}{
			"type":           "bid_update",
			"current_price":  event.Amount,
			"current_leader": event.UserID,
			"timestamp":      event.Timestamp,
		})

	case domain.EventOutbid:
		return el.feed.NotifyUser(event.UserID, map[string]interface{}{
			"type":       "outbid",
			"listing_id": event.ListingID,
			"new_price":  event.Amount,
			"timestamp":  event.Timestamp,
		})

	case domain.EventAuctionExtended:
		return el.feed.BroadcastToListing(event.ListingID, map[string]interface{}{
			"type":      "auction_extended",
			"timestamp": event.Timestamp,
		})

	case domain.EventAuctionEnded:
		if err := el.feed.BroadcastToListing(event.ListingID, map[string]interface{}{
			"type":      "auction_ended",
			"timestamp": event.Timestamp,
		}); err != nil {
			el.log.Error("Failed to broadcast close", "listing_id", event.ListingID, "error", err)
			return err
		}
		return el.feed.CloseListing(event.ListingID)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}
