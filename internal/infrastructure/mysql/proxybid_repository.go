package mysql

import (
	"context"
	"database/sql"
	"time"

	"proxy-bidding/internal/domain"
)

// MySQLProxyBidRepository holds one mutable row per (listing, bidder) with
// that bidder's declared maximum; the composite primary key makes Upsert a
// true insert-or-update.
type MySQLProxyBidRepository struct {
	db *sql.DB
}

func NewMySQLProxyBidRepository(db *sql.DB) *MySQLProxyBidRepository {
	return &MySQLProxyBidRepository{db: db}
}

func (r *MySQLProxyBidRepository) Get(ctx context.Context, listingID, bidderID string) (*domain.ProxyBid, error) {
	query := `
        SELECT listing_id, bidder_id, max_amount, is_active, created_at, updated_at
        FROM proxy_bids
        WHERE listing_id = ? AND bidder_id = ?
    `
	entry, err := scanProxyBid(runner(ctx, r.db).QueryRowContext(ctx, query, listingID, bidderID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// ActiveCompetitor returns the highest active declared maximum on the
// listing other than the caller's; the earlier entry wins equal maxima.
func (r *MySQLProxyBidRepository) ActiveCompetitor(ctx context.Context, listingID, excludeBidderID string) (*domain.ProxyBid, error) {
	query := `
        SELECT listing_id, bidder_id, max_amount, is_active, created_at, updated_at
        FROM proxy_bids
        WHERE listing_id = ? AND bidder_id <> ? AND is_active = 1
        ORDER BY max_amount DESC, created_at ASC
        LIMIT 1
    `
	entry, err := scanProxyBid(runner(ctx, r.db).QueryRowContext(ctx, query, listingID, excludeBidderID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

func (r *MySQLProxyBidRepository) Upsert(ctx context.Context, entry *domain.ProxyBid) error {
	query := `
        INSERT INTO proxy_bids (listing_id, bidder_id, max_amount, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE max_amount = VALUES(max_amount), is_active = VALUES(is_active), updated_at = VALUES(updated_at)
    `
	_, err := runner(ctx, r.db).ExecContext(ctx, query,
		entry.ListingID, entry.BidderID, entry.MaxAmount, entry.IsActive,
		entry.CreatedAt, entry.UpdatedAt)
	return err
}

func (r *MySQLProxyBidRepository) Deactivate(ctx context.Context, listingID, bidderID string) error {
	query := `UPDATE proxy_bids SET is_active = 0, updated_at = ? WHERE listing_id = ? AND bidder_id = ?`
	_, err := runner(ctx, r.db).ExecContext(ctx, query, time.Now(), listingID, bidderID)
	return err
}

func (r *MySQLProxyBidRepository) DeactivateAll(ctx context.Context, listingID string) error {
	query := `UPDATE proxy_bids SET is_active = 0, updated_at = ? WHERE listing_id = ? AND is_active = 1`
	_, err := runner(ctx, r.db).ExecContext(ctx, query, time.Now(), listingID)
	return err
}

func scanProxyBid(row *sql.Row) (*domain.ProxyBid, error) {
	var entry domain.ProxyBid
	err := row.Scan(&entry.ListingID, &entry.BidderID, &entry.MaxAmount,
		&entry.IsActive, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
