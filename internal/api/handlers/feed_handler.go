package handlers

import (
	"net/http"

	"proxy-bidding/internal/domain"
	ws "proxy-bidding/internal/infrastructure/websocket"
	"proxy-bidding/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Feed is read-only price data; cross-origin viewers are expected.
		return true
	},
}

// FeedHandler upgrades watchers onto the live price feed for a listing.
type FeedHandler struct {
	feed domain.FeedManager
	log  logger.Logger
}

func NewFeedHandler(feed domain.FeedManager, log logger.Logger) *FeedHandler {
	return &FeedHandler{
		feed: feed,
		log:  log,
	}
}

func (h *FeedHandler) WatchListing(c echo.Context) error {
	listingID := c.Param("id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id required"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "listing_id", listingID, "error", err)
		return err
	}

	feedConn := ws.NewFeedConnection(conn, userID, listingID)
	if err := h.feed.Register(userID, listingID, feedConn); err != nil {
		h.log.Error("Failed to register feed connection", "user_id", userID, "error", err)
		feedConn.Close()
		return nil
	}

	go h.readLoop(feedConn, userID, listingID)
	return nil
}

// readLoop drains client frames so pings are answered and a close frame
// tears the registration down.
func (h *FeedHandler) readLoop(conn *ws.FeedConnection, userID, listingID string) {
	defer func() {
		h.feed.Unregister(userID, listingID)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Feed connection read error", "user_id", userID,
					"listing_id", listingID, "error", err)
			}
			return
		}
	}
}
