package runtime

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vinodismyname/salesdash/config"
)

// ErrSnapshotsFull is returned when every snapshot slot is taken.
var ErrSnapshotsFull = errors.New("runtime: snapshot capacity reached")

// Limits captures the concurrency and size guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxSnapshots          int

	// Source and output bounds
	MaxSourceBytes int64
	MaxRows        int
	SeriesPageSize int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with fallbacks from config when values are unset.
func NewLimits(maxConcurrentRequests, maxSnapshots int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxSnapshots <= 0 {
		maxSnapshots = config.DefaultMaxSnapshots
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxSnapshots:          maxSnapshots,
		MaxSourceBytes:        config.DefaultMaxSourceBytes,
		MaxRows:               config.DefaultMaxRows,
		SeriesPageSize:        config.DefaultSeriesPageSize,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// LimitsFromConfig applies the server and fetch sections of cfg.
func LimitsFromConfig(cfg *config.Config) Limits {
	l := NewLimits(cfg.Server.MaxConcurrentRequests, 0)
	if cfg.Fetch.MaxBytes > 0 {
		l.MaxSourceBytes = cfg.Fetch.MaxBytes
	}
	if cfg.Server.OperationTimeout > 0 {
		l.OperationTimeout = cfg.Server.OperationTimeout
	}
	return l
}

// Controller coordinates the request and snapshot semaphores.
type Controller struct {
	limits            Limits
	requestSemaphore  *semaphore.Weighted
	snapshotSemaphore *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:            limits,
		requestSemaphore:  semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		snapshotSemaphore: semaphore.NewWeighted(int64(limits.MaxSnapshots)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// AcquireSnapshot reserves a cached snapshot slot. It does not wait: a full
// cache is reported immediately.
func (c *Controller) AcquireSnapshot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.snapshotSemaphore.TryAcquire(1) {
		return ErrSnapshotsFull
	}
	return nil
}

// ReleaseSnapshot frees a snapshot slot.
func (c *Controller) ReleaseSnapshot() {
	c.snapshotSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
