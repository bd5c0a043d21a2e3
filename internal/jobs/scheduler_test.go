package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/pkg/lock"
)

// countingLocker hands out leases that record refreshes.
type countingLocker struct {
	mu        sync.Mutex
	held      map[string]bool
	refreshes int
	failWith  error
}

func newCountingLocker() *countingLocker {
	return &countingLocker{held: make(map[string]bool)}
}

func (l *countingLocker) Acquire(_ context.Context, resource string, _ time.Duration) (lock.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	if l.held[resource] {
		return nil, lock.ErrNotAcquired
	}
	l.held[resource] = true
	return &countingLease{locker: l, resource: resource}, nil
}

func (l *countingLocker) refreshCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refreshes
}

type countingLease struct {
	locker   *countingLocker
	resource string
}

func (c *countingLease) Resource() string { return c.resource }

func (c *countingLease) Refresh(context.Context, time.Duration) error {
	c.locker.mu.Lock()
	defer c.locker.mu.Unlock()
	c.locker.refreshes++
	return nil
}

func (c *countingLease) Release(context.Context) error {
	c.locker.mu.Lock()
	defer c.locker.mu.Unlock()
	delete(c.locker.held, c.resource)
	return nil
}

// funcJob adapts a func into a Job.
type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func newTestScheduler(t *testing.T, locker lock.Locker, guardTTL, runTimeout time.Duration) *Scheduler {
	t.Helper()
	s, err := NewScheduler("Asia/Ho_Chi_Minh", locker, guardTTL, runTimeout, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestFireDeadlineOutlivesGuardTTL(t *testing.T) {
	locker := newCountingLocker()
	s := newTestScheduler(t, locker, 5*time.Minute, 15*time.Minute)

	var deadline time.Time
	s.fire(funcJob{name: "deadline-check", run: func(ctx context.Context) error {
		d, ok := ctx.Deadline()
		require.True(t, ok)
		deadline = d
		return nil
	}})

	// A 10-minute training run must fit inside the job's deadline even
	// though the guard lease itself is shorter.
	remaining := time.Until(deadline)
	assert.Greater(t, remaining, 10*time.Minute)
}

func TestFireRefreshesGuardDuringRun(t *testing.T) {
	locker := newCountingLocker()
	s := newTestScheduler(t, locker, 20*time.Millisecond, time.Second)

	s.fire(funcJob{name: "slow", run: func(ctx context.Context) error {
		time.Sleep(120 * time.Millisecond)
		return nil
	}})

	assert.GreaterOrEqual(t, locker.refreshCount(), 3,
		"guard lease must be refreshed while the job runs")

	// The guard was released afterwards.
	lease, err := locker.Acquire(context.Background(), "jobs:slow", time.Second)
	require.NoError(t, err)
	_ = lease.Release(context.Background())
}

func TestFireSkipsWhenGuardHeld(t *testing.T) {
	locker := newCountingLocker()
	_, err := locker.Acquire(context.Background(), "jobs:held", time.Minute)
	require.NoError(t, err)

	s := newTestScheduler(t, locker, time.Minute, time.Minute)

	ran := false
	s.fire(funcJob{name: "held", run: func(ctx context.Context) error {
		ran = true
		return nil
	}})
	assert.False(t, ran, "a held guard must skip the tick, not queue behind it")
}

func TestNewSchedulerRaisesShortRunTimeout(t *testing.T) {
	locker := newCountingLocker()
	s := newTestScheduler(t, locker, 5*time.Minute, time.Minute)

	assert.Equal(t, 5*time.Minute, s.runTimeout)
}
