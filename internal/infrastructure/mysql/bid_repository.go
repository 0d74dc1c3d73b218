package mysql

import (
	"context"
	"database/sql"

	"proxy-bidding/internal/domain"
)

// MySQLBidRepository is the append-only ledger. Rows are never updated or
// deleted; the auto-increment id doubles as the tie-break key.
type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) AppendBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (listing_id, bidder_id, amount, max_amount, proxy_placed, triggered_extension, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	res, err := runner(ctx, r.db).ExecContext(ctx, query,
		bid.ListingID, bid.BidderID, bid.Amount, bid.MaxAmount,
		bid.ProxyPlaced, bid.TriggeredExtension, bid.CreatedAt)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	bid.ID = id
	return nil
}

func (r *MySQLBidRepository) HighestBid(ctx context.Context, listingID string) (*domain.Bid, error) {
	query := `
        SELECT id, listing_id, bidder_id, amount, max_amount, proxy_placed, triggered_extension, created_at
        FROM bids
        WHERE listing_id = ?
        ORDER BY amount DESC, id ASC
        LIMIT 1
    `
	bid, err := scanBid(runner(ctx, r.db).QueryRowContext(ctx, query, listingID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return bid, err
}

func (r *MySQLBidRepository) BidHistory(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, listing_id, bidder_id, amount, max_amount, proxy_placed, triggered_extension, created_at
        FROM bids
        WHERE listing_id = ?
        ORDER BY id ASC
    `
	rows, err := runner(ctx, r.db).QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.ListingID, &bid.BidderID, &bid.Amount,
			&bid.MaxAmount, &bid.ProxyPlaced, &bid.TriggeredExtension, &bid.CreatedAt)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}

func scanBid(row *sql.Row) (*domain.Bid, error) {
	var bid domain.Bid
	err := row.Scan(&bid.ID, &bid.ListingID, &bid.BidderID, &bid.Amount,
		&bid.MaxAmount, &bid.ProxyPlaced, &bid.TriggeredExtension, &bid.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}
