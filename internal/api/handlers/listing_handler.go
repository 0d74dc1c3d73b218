package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"proxy-bidding/internal/domain"
	"proxy-bidding/internal/services"
	"proxy-bidding/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ListingHandler struct {
	lifecycle *services.ListingService
	bids      *services.BidService
	log       logger.Logger
}

func NewListingHandler(lifecycle *services.ListingService, bids *services.BidService, log logger.Logger) *ListingHandler {
	return &ListingHandler{
		lifecycle: lifecycle,
		bids:      bids,
		log:       log,
	}
}

type CreateListingRequest struct {
	SellerID           string    `json:"seller_id"`
	Title              string    `json:"title"`
	ListingType        string    `json:"listing_type"`
	StartingBid        string    `json:"starting_bid"`
	StartAt            time.Time `json:"start_at"`
	AuctionEnd         time.Time `json:"auction_end"`
	ExtensionWindow    string    `json:"extension_window"`
	ExtensionIncrement string    `json:"extension_increment"`
}

type ListingResponse struct {
	ListingID     string    `json:"listing_id"`
	SellerID      string    `json:"seller_id"`
	Title         string    `json:"title"`
	ListingType   string    `json:"listing_type"`
	Status        string    `json:"status"`
	StartingBid   string    `json:"starting_bid"`
	CurrentPrice  string    `json:"current_price"`
	LeaderID      string    `json:"leader_id,omitempty"`
	AuctionEnd    time.Time `json:"auction_end,omitempty"`
	TimesExtended int       `json:"times_extended"`
}

func (h *ListingHandler) CreateListing(c echo.Context) error {
	var req CreateListingRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	startingBid, err := decimal.NewFromString(req.StartingBid)
	if err != nil || !startingBid.IsPositive() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "starting bid must be a positive amount"})
	}

	listingType := domain.ListingType(req.ListingType)
	if listingType != domain.ListingFixed && listingType != domain.ListingAuction {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "listing_type must be fixed or auction"})
	}
	if listingType == domain.ListingAuction && !req.AuctionEnd.After(time.Now()) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "auction end must be in the future"})
	}

	params := services.CreateListingParams{
		SellerID:    req.SellerID,
		Title:       req.Title,
		ListingType: listingType,
		StartingBid: startingBid,
		StartAt:     req.StartAt,
		AuctionEnd:  req.AuctionEnd,
	}
	if req.ExtensionWindow != "" {
		if params.ExtensionWindow, err = time.ParseDuration(req.ExtensionWindow); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid extension_window"})
		}
	}
	if req.ExtensionIncrement != "" {
		if params.ExtensionIncrement, err = time.ParseDuration(req.ExtensionIncrement); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid extension_increment"})
		}
	}

	listing, err := h.lifecycle.CreateListing(c.Request().Context(), params)
	if err != nil {
		h.log.Error("Failed to create listing", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create listing"})
	}

	return c.JSON(http.StatusCreated, h.listingResponse(listing, listing.StartingBid, ""))
}

func (h *ListingHandler) GetListing(c echo.Context) error {
	listingID := c.Param("id")
	ctx := c.Request().Context()

	listing, err := h.lifecycle.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "listing not found"})
		}
		h.log.Error("Failed to load listing", "listing_id", listingID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load listing"})
	}

	price, leaderID, err := h.bids.CurrentPrice(ctx, listingID)
	if err != nil {
		h.log.Error("Failed to resolve current price", "listing_id", listingID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load listing"})
	}

	return c.JSON(http.StatusOK, h.listingResponse(listing, price, leaderID))
}

func (h *ListingHandler) CancelListing(c echo.Context) error {
	listingID := c.Param("id")

	if err := h.lifecycle.CancelListing(c.Request().Context(), listingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "listing not found"})
		}
		h.log.Error("Failed to cancel listing", "listing_id", listingID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to cancel listing"})
	}

	return c.JSON(http.StatusOK, map[string]string{"listing_id": listingID, "status": domain.ListingCancelled.String()})
}

func (h *ListingHandler) listingResponse(listing *domain.Listing, price decimal.Decimal, leaderID string) ListingResponse {
	return ListingResponse{
		ListingID:     listing.ID,
		SellerID:      listing.SellerID,
		Title:         listing.Title,
		ListingType:   string(listing.ListingType),
		Status:        listing.Status.String(),
		StartingBid:   listing.StartingBid.StringFixed(2),
		CurrentPrice:  price.StringFixed(2),
		LeaderID:      leaderID,
		AuctionEnd:    listing.AuctionEnd,
		TimesExtended: listing.TimesExtended,
	}
}
