package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// FeedConnection wraps one gorilla connection. Writes are serialized; the
// read loop lives in the handler.
type FeedConnection struct {
	conn      *websocket.Conn
	userID    string
	listingID string
	writeMu   sync.Mutex
}

func NewFeedConnection(conn *websocket.Conn, userID, listingID string) *FeedConnection {
	return &FeedConnection{
		conn:      conn,
		userID:    userID,
		listingID: listingID,
	}
}

func (fc *FeedConnection) Send(message interface{}) error {
	fc.writeMu.Lock()
	defer fc.writeMu.Unlock()

	if payload, ok := message.([]byte); ok {
		return fc.conn.WriteMessage(websocket.TextMessage, payload)
	}
	return fc.conn.WriteJSON(message)
}

// ReadMessage blocks on the next client frame. Only the handler's read loop
// calls this; gorilla allows one concurrent reader.
func (fc *FeedConnection) ReadMessage() (int, []byte, error) {
	return fc.conn.ReadMessage()
}

func (fc *FeedConnection) Close() error {
	return fc.conn.Close()
}

func (fc *FeedConnection) UserID() string {
	return fc.userID
}

func (fc *FeedConnection) ListingID() string {
	return fc.listingID
}
