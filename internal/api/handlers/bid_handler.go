package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"proxy-bidding/internal/services"
	"proxy-bidding/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type BidHandler struct {
	bids *services.BidService
	log  logger.Logger
}

func NewBidHandler(bids *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bids: bids,
		log:  log,
	}
}

type PlaceBidRequest struct {
	BidderID  string `json:"bidder_id"`
	MaxAmount string `json:"max_amount"`
}

type BidOutcomeResponse struct {
	Accepted     bool   `json:"accepted"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message"`
	CurrentPrice string `json:"current_price"`
	MinimumBid   string `json:"minimum_bid,omitempty"`
	IsWinning    bool   `json:"is_winning"`
	WasOutbid    bool   `json:"was_outbid"`
	BidID        int64  `json:"bid_id,omitempty"`
}

type BidHistoryEntry struct {
	BidID       int64  `json:"bid_id"`
	BidderID    string `json:"bidder_id"`
	Amount      string `json:"amount"`
	ProxyPlaced bool   `json:"proxy_placed"`
	CreatedAt   string `json:"created_at"`
}

// PlaceBid submits a maximum bid. Business declines come back with a 200 and
// accepted=false; only malformed requests and infrastructure failures map to
// error statuses.
func (h *BidHandler) PlaceBid(c echo.Context) error {
	listingID := c.Param("id")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.BidderID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bidder_id required"})
	}
	maxAmount, err := decimal.NewFromString(req.MaxAmount)
	if err != nil || !maxAmount.IsPositive() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "max_amount must be a positive amount"})
	}

	outcome, err := h.bids.PlaceBid(c.Request().Context(), listingID, req.BidderID, maxAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "listing not found"})
		}
		h.log.Error("Failed to place bid", "listing_id", listingID, "bidder_id", req.BidderID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to place bid"})
	}

	resp := BidOutcomeResponse{
		Accepted:     outcome.Accepted,
		Reason:       string(outcome.Reason),
		Message:      outcome.Message,
		CurrentPrice: outcome.CurrentPrice.StringFixed(2),
		IsWinning:    outcome.IsWinning,
		WasOutbid:    outcome.WasOutbid,
	}
	if !outcome.MinimumBid.IsZero() {
		resp.MinimumBid = outcome.MinimumBid.StringFixed(2)
	}
	if outcome.Bid != nil {
		resp.BidID = outcome.Bid.ID
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *BidHandler) BidHistory(c echo.Context) error {
	listingID := c.Param("id")

	bids, err := h.bids.BidHistory(c.Request().Context(), listingID)
	if err != nil {
		h.log.Error("Failed to load bid history", "listing_id", listingID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load bid history"})
	}

	entries := make([]BidHistoryEntry, 0, len(bids))
	for _, bid := range bids {
		entries = append(entries, BidHistoryEntry{
			BidID:       bid.ID,
			BidderID:    bid.BidderID,
			Amount:      bid.Amount.StringFixed(2),
			ProxyPlaced: bid.ProxyPlaced,
			CreatedAt:   bid.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"listing_id": listingID,
		"bids":       entries,
	})
}

// CancelProxyBid withdraws the bidder's maximum from contention. The ledger
// and current price are untouched, so this always succeeds for a known
// listing.
func (h *BidHandler) CancelProxyBid(c echo.Context) error {
	listingID := c.Param("id")
	bidderID := c.Param("bidderID")

	if err := h.bids.CancelProxyBid(c.Request().Context(), listingID, bidderID); err != nil {
		h.log.Error("Failed to cancel proxy bid", "listing_id", listingID, "bidder_id", bidderID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to cancel proxy bid"})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"listing_id": listingID,
		"bidder_id":  bidderID,
		"status":     "cancelled",
	})
}
