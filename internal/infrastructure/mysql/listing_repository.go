package mysql

import (
	"context"
	"database/sql"
	"time"

	"proxy-bidding/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLListingRepository struct {
	db *sql.DB
}

func NewMySQLListingRepository(db *sql.DB) *MySQLListingRepository {
	return &MySQLListingRepository{db: db}
}

const listingColumns = `id, seller_id, title, listing_type, status, starting_bid,
        auction_end, extension_window_secs, extension_increment_secs, times_extended,
        created_at, updated_at`

func (r *MySQLListingRepository) CreateListing(ctx context.Context, listing *domain.Listing) error {
	query := `
        INSERT INTO listings (` + listingColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	var auctionEnd interface{}
	if !listing.AuctionEnd.IsZero() {
		auctionEnd = listing.AuctionEnd
	}
	_, err := runner(ctx, r.db).ExecContext(ctx, query,
		listing.ID, listing.SellerID, listing.Title, string(listing.ListingType),
		int(listing.Status), listing.StartingBid, auctionEnd,
		int64(listing.ExtensionWindow.Seconds()), int64(listing.ExtensionIncrement.Seconds()),
		listing.TimesExtended, listing.CreatedAt, listing.UpdatedAt)
	return err
}

func (r *MySQLListingRepository) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	return r.scanListing(runner(ctx, r.db).QueryRowContext(ctx, query, listingID))
}

func (r *MySQLListingRepository) LoadForUpdate(ctx context.Context, listingID string) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ? FOR UPDATE`
	return r.scanListing(runner(ctx, r.db).QueryRowContext(ctx, query, listingID))
}

func (r *MySQLListingRepository) SaveAuctionState(ctx context.Context, listing *domain.Listing) error {
	query := `
        UPDATE listings
        SET auction_end = ?, times_extended = ?, status = ?, updated_at = ?
        WHERE id = ?
    `
	_, err := runner(ctx, r.db).ExecContext(ctx, query,
		listing.AuctionEnd, listing.TimesExtended, int(listing.Status), time.Now(), listing.ID)
	return err
}

func (r *MySQLListingRepository) UpdateListingStatus(ctx context.Context, listingID string, status domain.ListingStatus) error {
	query := `UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`
	_, err := runner(ctx, r.db).ExecContext(ctx, query, int(status), time.Now(), listingID)
	return err
}

func (r *MySQLListingRepository) scanListing(row *sql.Row) (*domain.Listing, error) {
	var (
		listing     domain.Listing
		listingType string
		status      int
		auctionEnd  sql.NullTime
		windowSecs  int64
		extSecs     int64
	)

	err := row.Scan(
		&listing.ID, &listing.SellerID, &listing.Title, &listingType, &status,
		&listing.StartingBid, &auctionEnd, &windowSecs, &extSecs,
		&listing.TimesExtended, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return nil, err
	}

	listing.ListingType = domain.ListingType(listingType)
	listing.Status = domain.ListingStatus(status)
	if auctionEnd.Valid {
		listing.AuctionEnd = auctionEnd.Time
	}
	listing.ExtensionWindow = time.Duration(windowSecs) * time.Second
	listing.ExtensionIncrement = time.Duration(extSecs) * time.Second
	return &listing, nil
}
