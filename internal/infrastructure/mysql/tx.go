package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// TxManager serializes all work on one listing behind its row lock. The
// callback's context carries the open transaction; repositories in this
// package pick it up, so every write inside the callback commits or rolls
// back as a unit. Different listings lock different rows and never block
// each other.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) WithinListingTx(ctx context.Context, listingID string, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		// Already inside a listing transaction, reuse it.
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin listing tx: %w", err)
	}
	// Releases the row lock on every exit path, panics included; a no-op
	// once committed.
	defer tx.Rollback()

	// Take the per-listing lock up front; blocks until the current holder
	// commits or rolls back.
	if _, err := tx.ExecContext(ctx, `SELECT id FROM listings WHERE id = ? FOR UPDATE`, listingID); err != nil {
		return fmt.Errorf("lock listing %s: %w", listingID, err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

func runner(ctx context.Context, db *sql.DB) executor {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db
}
