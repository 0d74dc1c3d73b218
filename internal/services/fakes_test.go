package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"proxy-bidding/internal/domain"
	"proxy-bidding/pkg/logger"

	"github.com/shopspring/decimal"
)

// In-memory doubles for the engine's dependencies. The transactor runs the
// callback directly; per-listing serialization is the store's concern and is
// covered by the MySQL implementation.

type memTx struct{}

func (memTx) WithinListingTx(ctx context.Context, listingID string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memListings struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
}

func newMemListings() *memListings {
	return &memListings{listings: make(map[string]*domain.Listing)}
}

func (m *memListings) CreateListing(ctx context.Context, listing *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *listing
	m.listings[listing.ID] = &cp
	return nil
}

func (m *memListings) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[listingID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *listing
	return &cp, nil
}

func (m *memListings) LoadForUpdate(ctx context.Context, listingID string) (*domain.Listing, error) {
	return m.GetListing(ctx, listingID)
}

func (m *memListings) SaveAuctionState(ctx context.Context, listing *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.listings[listing.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.AuctionEnd = listing.AuctionEnd
	stored.TimesExtended = listing.TimesExtended
	stored.Status = listing.Status
	return nil
}

func (m *memListings) UpdateListingStatus(ctx context.Context, listingID string, status domain.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[listingID]
	if !ok {
		return sql.ErrNoRows
	}
	listing.Status = status
	return nil
}

type memBids struct {
	mu     sync.Mutex
	nextID int64
	bids   []*domain.Bid
}

func newMemBids() *memBids {
	return &memBids{nextID: 1}
}

func (m *memBids) AppendBid(ctx context.Context, bid *domain.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid.ID = m.nextID
	m.nextID++
	cp := *bid
	m.bids = append(m.bids, &cp)
	return nil
}

func (m *memBids) HighestBid(ctx context.Context, listingID string) (*domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.Bid
	for _, bid := range m.bids {
		if bid.ListingID != listingID {
			continue
		}
		if best == nil || bid.Amount.GreaterThan(best.Amount) ||
			(bid.Amount.Equal(best.Amount) && bid.ID < best.ID) {
			best = bid
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *memBids) BidHistory(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Bid
	for _, bid := range m.bids {
		if bid.ListingID == listingID {
			cp := *bid
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type proxyKey struct{ listingID, bidderID string }

type memProxies struct {
	mu      sync.Mutex
	entries map[proxyKey]*domain.ProxyBid
}

func newMemProxies() *memProxies {
	return &memProxies{entries: make(map[proxyKey]*domain.ProxyBid)}
}

func (m *memProxies) Get(ctx context.Context, listingID, bidderID string) (*domain.ProxyBid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[proxyKey{listingID, bidderID}]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

func (m *memProxies) ActiveCompetitor(ctx context.Context, listingID, excludeBidderID string) (*domain.ProxyBid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.ProxyBid
	for key, entry := range m.entries {
		if key.listingID != listingID || key.bidderID == excludeBidderID || !entry.IsActive {
			continue
		}
		if best == nil || entry.MaxAmount.GreaterThan(best.MaxAmount) ||
			(entry.MaxAmount.Equal(best.MaxAmount) && entry.CreatedAt.Before(best.CreatedAt)) {
			best = entry
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *memProxies) Upsert(ctx context.Context, entry *domain.ProxyBid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := proxyKey{entry.ListingID, entry.BidderID}
	if existing, ok := m.entries[key]; ok {
		existing.MaxAmount = entry.MaxAmount
		existing.IsActive = true
		existing.UpdatedAt = entry.UpdatedAt
		return nil
	}
	cp := *entry
	m.entries[key] = &cp
	return nil
}

func (m *memProxies) Deactivate(ctx context.Context, listingID, bidderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[proxyKey{listingID, bidderID}]; ok {
		entry.IsActive = false
	}
	return nil
}

func (m *memProxies) DeactivateAll(ctx context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.entries {
		if key.listingID == listingID {
			entry.IsActive = false
		}
	}
	return nil
}

type memEvents struct {
	mu     sync.Mutex
	events []*domain.AuctionEvent
}

func (m *memEvents) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

func (m *memEvents) byType(kind domain.AuctionEventType) []*domain.AuctionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuctionEvent
	for _, event := range m.events {
		if event.Type == kind {
			out = append(out, event)
		}
	}
	return out
}

type cachedPrice struct {
	price    decimal.Decimal
	leaderID string
}

type memCache struct {
	mu     sync.Mutex
	prices map[string]cachedPrice
}

func newMemCache() *memCache {
	return &memCache{prices: make(map[string]cachedPrice)}
}

func (m *memCache) SetCurrentPrice(ctx context.Context, listingID string, price decimal.Decimal, leaderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[listingID] = cachedPrice{price: price, leaderID: leaderID}
	return nil
}

func (m *memCache) GetCurrentPrice(ctx context.Context, listingID string) (decimal.Decimal, string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.prices[listingID]
	if !ok {
		return decimal.Zero, "", false, nil
	}
	return entry.price, entry.leaderID, true, nil
}

func (m *memCache) DropListing(ctx context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prices, listingID)
	return nil
}

type memScheduler struct {
	mu          sync.Mutex
	activations map[string]time.Time
	closes      map[string]time.Time
	cancelled   map[string]bool
}

func newMemScheduler() *memScheduler {
	return &memScheduler{
		activations: make(map[string]time.Time),
		closes:      make(map[string]time.Time),
		cancelled:   make(map[string]bool),
	}
}

func (m *memScheduler) ScheduleActivation(ctx context.Context, listingID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations[listingID] = at
	return nil
}

func (m *memScheduler) ScheduleClose(ctx context.Context, listingID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes[listingID] = at
	return nil
}

func (m *memScheduler) RescheduleClose(ctx context.Context, listingID string, at time.Time) error {
	return m.ScheduleClose(ctx, listingID, at)
}

func (m *memScheduler) CancelSchedule(ctx context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[listingID] = true
	return nil
}

func (m *memScheduler) Start(ctx context.Context) error { return nil }
func (m *memScheduler) Stop() error                     { return nil }

type memSchedulerRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledJob
}

func newMemSchedulerRepo() *memSchedulerRepo {
	return &memSchedulerRepo{jobs: make(map[string]*domain.ScheduledJob)}
}

func (m *memSchedulerRepo) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memSchedulerRepo) GetPendingJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ScheduledJob
	for _, job := range m.jobs {
		if job.Status == domain.JobPending && !job.RunAt.After(before) {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSchedulerRepo) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.Status = status
	}
	return nil
}

func (m *memSchedulerRepo) CancelJobsForListing(ctx context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.ListingID == listingID && job.Status == domain.JobPending {
			job.Status = domain.JobCancelled
		}
	}
	return nil
}

func (m *memSchedulerRepo) status(jobID string) domain.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[jobID].Status
}

type memLeader struct {
	leading bool
}

func (m *memLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	m.leading = true
	return true, nil
}

func (m *memLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return m.leading, nil
}

func (m *memLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	m.leading = false
	return nil
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Fatal(msg string, keysAndValues ...interface{}) {}

var _ logger.Logger = nopLogger{}
