package snapshots

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/salesdash/internal/dashboard"
)

// fakeGate implements Gate for tests with counters.
type fakeGate struct {
	acquireErr error
	acquires   atomic.Int64
	releases   atomic.Int64
}

func (g *fakeGate) AcquireSnapshot(ctx context.Context) error {
	g.acquires.Add(1)
	return g.acquireErr
}
func (g *fakeGate) ReleaseSnapshot() { g.releases.Add(1) }

func TestPutGetDelete(t *testing.T) {
	gate := &fakeGate{}
	// Long TTL and no Start so nothing is evicted behind the test's back.
	s := NewStore(2*time.Second, time.Second, gate, time.Now)

	d := &dashboard.Dashboard{Current: "2024-06"}
	id, err := s.Put(context.Background(), d, dashboard.Request{Current: "2024-06"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, 1, s.Count())

	snap, ok := s.Get(id)
	require.True(t, ok)
	require.Same(t, d, snap.Dashboard)
	require.Equal(t, "2024-06", snap.Request.Current)

	require.NoError(t, s.Delete(id))
	require.Equal(t, 0, s.Count())
	require.Equal(t, int64(1), gate.releases.Load())
	require.ErrorIs(t, s.Delete(id), ErrNotFound)
}

func TestTTLExpiryAndEviction(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Now().UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }

	gate := &fakeGate{}
	s := NewStore(50*time.Millisecond, 5*time.Millisecond, gate, clock)

	_, err := s.Put(context.Background(), &dashboard.Dashboard{}, dashboard.Request{})
	require.NoError(t, err)
	require.Equal(t, 1, s.Count())

	now.Add(int64(200 * time.Millisecond))
	s.EvictExpired()

	require.Equal(t, 0, s.Count())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestGetRefreshesAndExpires(t *testing.T) {
	var now atomic.Int64
	start := time.Now()
	now.Store(start.UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }

	s := NewStore(100*time.Millisecond, time.Second, nil, clock)
	id, err := s.Put(context.Background(), &dashboard.Dashboard{}, dashboard.Request{})
	require.NoError(t, err)

	now.Add(int64(80 * time.Millisecond))
	snap, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, start.Add(180*time.Millisecond).UnixNano(), snap.ExpiresAt().UnixNano())

	now.Add(int64(90 * time.Millisecond))
	_, ok = s.Get(id)
	require.True(t, ok)

	now.Add(int64(time.Second))
	_, ok = s.Get(id)
	require.False(t, ok)
	require.Equal(t, 0, s.Count())
}

func TestPutGateFull(t *testing.T) {
	gate := &fakeGate{acquireErr: errors.New("full")}
	s := NewStore(time.Second, time.Second, gate, time.Now)

	_, err := s.Put(context.Background(), &dashboard.Dashboard{}, dashboard.Request{})
	require.Error(t, err)
	require.Equal(t, int64(0), gate.releases.Load())
	require.Equal(t, 0, s.Count())

	_, err = s.Put(context.Background(), nil, dashboard.Request{})
	require.Error(t, err)
}

func TestStartAndClose(t *testing.T) {
	gate := &fakeGate{}
	s := NewStore(time.Millisecond, time.Millisecond, gate, time.Now)
	s.Start()

	_, err := s.Put(context.Background(), &dashboard.Dashboard{}, dashboard.Request{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Count() == 0 }, time.Second, 5*time.Millisecond)

	_, err = s.Put(context.Background(), &dashboard.Dashboard{}, dashboard.Request{})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	require.Equal(t, 0, s.Count())
	require.Equal(t, int64(2), gate.releases.Load())
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore(time.Second, time.Second, nil, time.Now)
	var wg sync.WaitGroup
	ids := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.Put(context.Background(), &dashboard.Dashboard{}, dashboard.Request{})
			if err == nil {
				ids <- id
			}
			s.EvictExpired()
		}()
	}
	wg.Wait()
	close(ids)
	for id := range ids {
		_, ok := s.Get(id)
		require.True(t, ok)
	}
	require.Equal(t, 16, s.Count())
}
