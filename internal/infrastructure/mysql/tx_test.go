package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
)

// A minimal driver that records transaction outcomes, enough for BeginTx,
// the lock statement and Commit/Rollback.

type recordingDriver struct {
	conn *recordingConn
}

func (d *recordingDriver) Open(name string) (driver.Conn, error) {
	return d.conn, nil
}

type recordingConn struct {
	mu        sync.Mutex
	begins    int
	commits   int
	rollbacks int
}

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return &recordingStmt{}, nil
}

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) Begin() (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begins++
	return &recordingTx{conn: c}, nil
}

func (c *recordingConn) counts() (begins, commits, rollbacks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begins, c.commits, c.rollbacks
}

type recordingStmt struct{}

func (s *recordingStmt) Close() error  { return nil }
func (s *recordingStmt) NumInput() int { return -1 }

func (s *recordingStmt) Exec(args []driver.Value) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

func (s *recordingStmt) Query(args []driver.Value) (driver.Rows, error) {
	return nil, errors.New("queries not recorded")
}

type recordingTx struct {
	conn *recordingConn
}

func (t *recordingTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.commits++
	return nil
}

func (t *recordingTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.rollbacks++
	return nil
}

var (
	recorder     = &recordingDriver{}
	registerOnce sync.Once
)

func openRecorderDB(t *testing.T) (*sql.DB, *recordingConn) {
	t.Helper()
	registerOnce.Do(func() {
		sql.Register("txrecorder", recorder)
	})
	conn := &recordingConn{}
	recorder.conn = conn
	db, err := sql.Open("txrecorder", "")
	if err != nil {
		t.Fatalf("open recorder db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, conn
}

func TestListingTxCommitsOnSuccess(t *testing.T) {
	db, conn := openRecorderDB(t)
	m := NewTxManager(db)

	err := m.WithinListingTx(context.Background(), "listing-1", func(ctx context.Context) error {
		if txFrom(ctx) == nil {
			t.Fatal("callback context carries no transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinListingTx: %v", err)
	}

	begins, commits, rollbacks := conn.counts()
	if begins != 1 || commits != 1 || rollbacks != 0 {
		t.Fatalf("begins=%d commits=%d rollbacks=%d, want 1/1/0", begins, commits, rollbacks)
	}
}

func TestListingTxRollsBackOnError(t *testing.T) {
	db, conn := openRecorderDB(t)
	m := NewTxManager(db)

	boom := errors.New("resolution failed")
	err := m.WithinListingTx(context.Background(), "listing-1", func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	_, commits, rollbacks := conn.counts()
	if commits != 0 || rollbacks != 1 {
		t.Fatalf("commits=%d rollbacks=%d, want 0/1", commits, rollbacks)
	}
}

func TestListingTxRollsBackOnPanic(t *testing.T) {
	db, conn := openRecorderDB(t)
	m := NewTxManager(db)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic did not propagate")
			}
		}()
		m.WithinListingTx(context.Background(), "listing-1", func(ctx context.Context) error {
			panic("resolution panicked")
		})
	}()

	// The row lock must not stay held behind a leaked open transaction.
	_, commits, rollbacks := conn.counts()
	if commits != 0 || rollbacks != 1 {
		t.Fatalf("commits=%d rollbacks=%d, want 0/1", commits, rollbacks)
	}
}

func TestListingTxIsReentrant(t *testing.T) {
	db, conn := openRecorderDB(t)
	m := NewTxManager(db)

	err := m.WithinListingTx(context.Background(), "listing-1", func(ctx context.Context) error {
		return m.WithinListingTx(ctx, "listing-1", func(ctx context.Context) error {
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithinListingTx: %v", err)
	}

	begins, commits, _ := conn.counts()
	if begins != 1 || commits != 1 {
		t.Fatalf("begins=%d commits=%d, want one shared transaction", begins, commits)
	}
}
