// Package snapshots keeps built dashboards for a short time so follow-up
// calls (series paging, export) can refer to them by ID.
package snapshots

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinodismyname/salesdash/config"
	"github.com/vinodismyname/salesdash/internal/dashboard"
)

// ErrNotFound indicates an unknown or expired snapshot ID.
var ErrNotFound = errors.New("snapshots: snapshot not found")

// Snapshot is a cached dashboard plus the request that built it.
type Snapshot struct {
	ID        string
	Dashboard *dashboard.Dashboard
	Request   dashboard.Request
	CreatedAt time.Time

	mu        sync.Mutex
	expiresAt time.Time
}

// ExpiresAt returns the current expiry.
func (s *Snapshot) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

func (s *Snapshot) expired(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

func (s *Snapshot) touch(until time.Time) {
	s.mu.Lock()
	s.expiresAt = until
	s.mu.Unlock()
}

// Gate coordinates capacity for cached snapshots (runtime.Controller).
type Gate interface {
	AcquireSnapshot(ctx context.Context) error
	ReleaseSnapshot()
}

// Store is a TTL cache of snapshots with idle-timeout semantics: every Get
// extends the expiry.
type Store struct {
	mu           sync.RWMutex
	items        map[string]*Snapshot
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         Gate
	stopCh       chan struct{}
	stopOnce     sync.Once
	cleanupWG    sync.WaitGroup
}

// NewStore constructs a Store. ttl or cleanupEvery <= 0 use the config
// defaults; gate may be nil; clock defaults to time.Now.
func NewStore(ttl, cleanupEvery time.Duration, gate Gate, clock func() time.Time) *Store {
	if ttl <= 0 {
		ttl = config.DefaultSnapshotTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultSnapshotCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		items:        make(map[string]*Snapshot),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		stopCh:       make(chan struct{}),
	}
}

// Start launches periodic eviction of expired snapshots.
func (s *Store) Start() {
	s.cleanupWG.Add(1)
	ticker := time.NewTicker(s.cleanupEvery)
	go func() {
		defer s.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.EvictExpired()
			}
		}
	}()
}

// Close stops the cleanup loop and drops every snapshot.
func (s *Store) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	done := make(chan struct{})
	go func() { s.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.items {
		delete(s.items, id)
		s.release()
	}
	return nil
}

// Put caches d and returns its new ID.
func (s *Store) Put(ctx context.Context, d *dashboard.Dashboard, req dashboard.Request) (string, error) {
	if d == nil {
		return "", errors.New("snapshots: nil dashboard")
	}
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	now := s.clock()
	snap := &Snapshot{
		ID:        uuid.NewString(),
		Dashboard: d,
		Request:   req,
		CreatedAt: now,
		expiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.items[snap.ID] = snap
	s.mu.Unlock()
	return snap.ID, nil
}

// Get returns the snapshot when present and not expired, refreshing its TTL.
func (s *Store) Get(id string) (*Snapshot, bool) {
	s.mu.RLock()
	snap, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := s.clock()
	if snap.expired(now) {
		s.remove(id)
		return nil, false
	}
	snap.touch(now.Add(s.ttl))
	return snap, true
}

// Delete removes a snapshot by ID.
func (s *Store) Delete(id string) error {
	if !s.remove(id) {
		return ErrNotFound
	}
	return nil
}

// EvictExpired removes every expired snapshot.
func (s *Store) EvictExpired() {
	now := s.clock()
	var expired []string
	s.mu.RLock()
	for id, snap := range s.items {
		if snap.expired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range expired {
		s.remove(id)
	}
}

// Count returns the number of cached snapshots.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) remove(id string) bool {
	s.mu.Lock()
	_, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	s.mu.Unlock()
	if ok {
		s.release()
	}
	return ok
}

func (s *Store) acquire(ctx context.Context) error {
	if s.gate == nil {
		return nil
	}
	return s.gate.AcquireSnapshot(ctx)
}

func (s *Store) release() {
	if s.gate == nil {
		return
	}
	s.gate.ReleaseSnapshot()
}
