package websocket

import (
	"encoding/json"
	"sync"

	"proxy-bidding/internal/domain"
	"proxy-bidding/pkg/logger"
)

// ConnectionManager indexes live feed connections by listing and by user.
// One connection per (user, listing); re-registering replaces the old one.
type ConnectionManager struct {
	watchers map[string]map[string]domain.FeedConnection // listingID -> userID -> conn
	byUser   map[string]map[string]domain.FeedConnection // userID -> listingID -> conn
	mutex    sync.RWMutex
	log      logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		watchers: make(map[string]map[string]domain.FeedConnection),
		byUser:   make(map[string]map[string]domain.FeedConnection),
		log:      log,
	}
}

func (cm *ConnectionManager) Register(userID, listingID string, conn domain.FeedConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.watchers[listingID] == nil {
		cm.watchers[listingID] = make(map[string]domain.FeedConnection)
	}
	cm.watchers[listingID][userID] = conn

	if cm.byUser[userID] == nil {
		cm.byUser[userID] = make(map[string]domain.FeedConnection)
	}
	cm.byUser[userID][listingID] = conn

	cm.log.Info("Feed connection registered", "user_id", userID, "listing_id", listingID)
	return nil
}

func (cm *ConnectionManager) Unregister(userID, listingID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.remove(userID, listingID)
	cm.log.Info("Feed connection unregistered", "user_id", userID, "listing_id", listingID)
	return nil
}

// remove expects the write lock held.
func (cm *ConnectionManager) remove(userID, listingID string) {
	if conns := cm.watchers[listingID]; conns != nil {
		delete(conns, userID)
		if len(conns) == 0 {
			delete(cm.watchers, listingID)
		}
	}
	if conns := cm.byUser[userID]; conns != nil {
		delete(conns, listingID)
		if len(conns) == 0 {
			delete(cm.byUser, userID)
		}
	}
}

func (cm *ConnectionManager) BroadcastToListing(listingID string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	cm.mutex.RLock()
	conns := make([]domain.FeedConnection, 0, len(cm.watchers[listingID]))
	for _, conn := range cm.watchers[listingID] {
		conns = append(conns, conn)
	}
	cm.mutex.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			cm.log.Error("Failed to send feed message", "user_id", conn.UserID(),
				"listing_id", listingID, "error", err)
			// Keep going; a dead connection must not starve the rest.
		}
	}
	return nil
}

func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	cm.mutex.RLock()
	conns := make([]domain.FeedConnection, 0, len(cm.byUser[userID]))
	for _, conn := range cm.byUser[userID] {
		conns = append(conns, conn)
	}
	cm.mutex.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			cm.log.Error("Failed to notify user", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (cm *ConnectionManager) CloseListing(listingID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for userID, conn := range cm.watchers[listingID] {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close feed connection", "user_id", userID,
				"listing_id", listingID, "error", err)
		}
		cm.remove(userID, listingID)
	}

	cm.log.Info("Feed connections closed", "listing_id", listingID)
	return nil
}
