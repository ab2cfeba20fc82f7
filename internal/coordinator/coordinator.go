// Package coordinator polls the amplifier on a fixed interval and fans the
// resulting snapshot out to every entity.
package coordinator

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"monoamp/internal/amp"
	"monoamp/internal/clock"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrNotReady is returned by FirstRefresh when the device produced no snapshot
var ErrNotReady = errors.New("coordinator: amplifier not ready")

// Refresher fetches a new snapshot. On failure it returns the previously
// held snapshot (possibly nil) and the error.
type Refresher interface {
	Refresh(ctx context.Context) (*amp.Snapshot, error)
}

// Listener is called with the published snapshot after every tick
type Listener func(snapshot *amp.Snapshot)

// Subscription represents a registered listener
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id          uint64
	coordinator *Coordinator
}

func (s *subscription) Unsubscribe() {
	s.coordinator.unsubscribe(s.id)
}

// Coordinator owns the single polling loop. At most one refresh is in
// flight at a time and readers only ever see complete snapshots.
type Coordinator struct {
	refresher Refresher
	clock     clock.Clock
	interval  time.Duration
	logger    *zap.Logger

	sem  *semaphore.Weighted
	data atomic.Pointer[amp.Snapshot]

	listenersMu sync.RWMutex
	listeners   map[uint64]Listener
	nextID      uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a coordinator polling refresher every interval
func New(refresher Refresher, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		refresher: refresher,
		clock:     clk,
		interval:  interval,
		logger:    logger.Named("coordinator"),
		sem:       semaphore.NewWeighted(1),
		listeners: make(map[uint64]Listener),
	}
}

// Data returns the published snapshot, or nil before the first success
func (c *Coordinator) Data() *amp.Snapshot {
	return c.data.Load()
}

// Refresh runs one poll. A failed poll is logged and the previously
// published snapshot stays in place; listeners are notified either way.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	snapshot, err := c.refresher.Refresh(ctx)
	if err != nil {
		c.logger.Warn("Amplifier refresh failed", zap.Error(err))
	}
	if snapshot != nil {
		c.data.Store(snapshot)
	}

	c.notify(c.data.Load())
	return err
}

// FirstRefresh performs the initial poll. It returns ErrNotReady if no
// snapshot is available afterwards.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	err := c.Refresh(ctx)
	if c.Data() == nil {
		if err != nil {
			return errors.Join(ErrNotReady, err)
		}
		return ErrNotReady
	}
	return nil
}

// Subscribe registers a listener for every tick
func (c *Coordinator) Subscribe(listener Listener) Subscription {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners[id] = listener
	return &subscription{id: id, coordinator: c}
}

func (c *Coordinator) unsubscribe(id uint64) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	delete(c.listeners, id)
}

// notify calls every listener in registration order
func (c *Coordinator) notify(snapshot *amp.Snapshot) {
	c.listenersMu.RLock()
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	c.listenersMu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		c.listenersMu.RLock()
		listener, ok := c.listeners[id]
		c.listenersMu.RUnlock()
		if ok {
			listener(snapshot)
		}
	}
}

// Start launches the polling loop. The first poll happens one interval
// after Start; use FirstRefresh for the initial one.
func (c *Coordinator) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("Starting amplifier polling", zap.Duration("interval", c.interval))
	go c.run(ctx, c.done)
}

// Stop ends the polling loop and waits for it to exit
func (c *Coordinator) Stop() {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("Stopped amplifier polling")
}

func (c *Coordinator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(c.interval):
			c.Refresh(ctx)
		}
	}
}
