package services

import (
	"context"
	"time"

	"proxy-bidding/internal/domain"
	"proxy-bidding/pkg/logger"
)

// MaintainLeadership keeps trying to take the lifecycle leader lock until the
// context is cancelled. Once held, the election refreshes its own TTL; this
// loop only retries acquisition so a standby takes over when the lock lapses.
func MaintainLeadership(ctx context.Context, election domain.LeaderElection, instanceID string, retry time.Duration, log logger.Logger) {
	for {
		became, err := election.BecomeLeader(ctx, instanceID)
		if err != nil {
			log.Error("Failed to attempt leadership", "error", err)
		} else if became {
			log.Info("Became lifecycle leader", "instance_id", instanceID)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}
