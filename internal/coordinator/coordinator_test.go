package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"monoamp/internal/amp"
	"monoamp/internal/clock"
	"monoamp/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubRefresher returns scripted results and tracks concurrency
type stubRefresher struct {
	mu       sync.Mutex
	results  []stubResult
	calls    int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	block    chan struct{}
}

type stubResult struct {
	snapshot *amp.Snapshot
	err      error
}

func (s *stubRefresher) Refresh(ctx context.Context) (*amp.Snapshot, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return nil, errors.New("no scripted result")
	}
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r.snapshot, r.err
}

func (s *stubRefresher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestFirstRefresh(t *testing.T) {
	snap := &amp.Snapshot{KeypadCount: 1}
	stub := &stubRefresher{results: []stubResult{{snapshot: snap}}}
	c := New(stub, clock.NewMockClock(time.Now()), 5*time.Second, zap.NewNop())

	require.NoError(t, c.FirstRefresh(context.Background()))
	assert.Same(t, snap, c.Data())
}

func TestFirstRefreshNotReady(t *testing.T) {
	stub := &stubRefresher{results: []stubResult{{err: amp.ErrNoData}}}
	c := New(stub, clock.NewMockClock(time.Now()), 5*time.Second, zap.NewNop())

	err := c.FirstRefresh(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, amp.ErrNoData)
	assert.Nil(t, c.Data())
}

func TestFailedRefreshKeepsSnapshotAndNotifies(t *testing.T) {
	first := &amp.Snapshot{KeypadCount: 2}
	stub := &stubRefresher{results: []stubResult{
		{snapshot: first},
		{snapshot: first, err: amp.ErrNoData},
	}}
	c := New(stub, clock.NewMockClock(time.Now()), 5*time.Second, zap.NewNop())

	var got []*amp.Snapshot
	c.Subscribe(func(s *amp.Snapshot) { got = append(got, s) })

	require.NoError(t, c.Refresh(context.Background()))
	assert.ErrorIs(t, c.Refresh(context.Background()), amp.ErrNoData)

	assert.Same(t, first, c.Data())
	require.Len(t, got, 2, "listeners hear every tick")
	assert.Same(t, first, got[0])
	assert.Same(t, first, got[1])
}

func TestSubscribeUnsubscribe(t *testing.T) {
	stub := &stubRefresher{results: []stubResult{{snapshot: &amp.Snapshot{}}}}
	c := New(stub, clock.NewMockClock(time.Now()), 5*time.Second, zap.NewNop())

	var order []string
	c.Subscribe(func(*amp.Snapshot) { order = append(order, "a") })
	sub := c.Subscribe(func(*amp.Snapshot) { order = append(order, "b") })
	c.Subscribe(func(*amp.Snapshot) { order = append(order, "c") })

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, order)

	sub.Unsubscribe()
	order = nil
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"a", "c"}, order)
}

func TestRefreshIsSerialized(t *testing.T) {
	stub := &stubRefresher{
		results: []stubResult{{snapshot: &amp.Snapshot{}}},
		block:   make(chan struct{}),
	}
	c := New(stub, clock.NewMockClock(time.Now()), 5*time.Second, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Refresh(context.Background())
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(stub.block)
	wg.Wait()

	assert.Equal(t, 4, stub.Calls())
	assert.Equal(t, int32(1), stub.maxSeen.Load())
}

func TestRefreshHonorsContextWhileWaiting(t *testing.T) {
	stub := &stubRefresher{
		results: []stubResult{{snapshot: &amp.Snapshot{}}},
		block:   make(chan struct{}),
	}
	c := New(stub, clock.NewMockClock(time.Now()), 5*time.Second, zap.NewNop())

	go c.Refresh(context.Background())
	require.Eventually(t, func() bool { return stub.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Refresh(ctx), context.DeadlineExceeded)

	close(stub.block)
}

func TestPollingLoop(t *testing.T) {
	fake := testutil.NewFakeAmp()
	defer fake.Close()
	fake.SetSources("Tuner")
	fake.SetKeypads(testutil.Keypad{ZN: 12, Name: "Living Room", PR: 1, VO: 30, CH: 1})

	mock := clock.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	gw := amp.NewGateway(fake.URL(), time.Second, zap.NewNop())
	c := New(gw, mock, 5*time.Second, zap.NewNop())

	ticks := make(chan *amp.Snapshot, 10)
	c.Subscribe(func(s *amp.Snapshot) { ticks <- s })

	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool { return mock.Waiters() == 1 }, time.Second, time.Millisecond)
	assert.Nil(t, c.Data(), "no poll before the first interval")

	mock.Advance(5 * time.Second)
	select {
	case s := <-ticks:
		require.NotNil(t, s)
		zone, ok := s.Zone(12)
		require.True(t, ok)
		assert.Equal(t, 30, zone.Volume)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a tick")
	}

	fake.SetKeypads(testutil.Keypad{ZN: 12, Name: "Living Room", PR: 1, VO: 20, CH: 1})
	require.Eventually(t, func() bool { return mock.Waiters() == 1 }, time.Second, time.Millisecond)
	mock.Advance(5 * time.Second)
	select {
	case s := <-ticks:
		zone, _ := s.Zone(12)
		assert.Equal(t, 20, zone.Volume)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a second tick")
	}

	assert.Equal(t, 2, fake.RequestCount("/api/AmpState"))
}

func TestStopIsIdempotent(t *testing.T) {
	stub := &stubRefresher{results: []stubResult{{snapshot: &amp.Snapshot{}}}}
	c := New(stub, clock.NewMockClock(time.Now()), 5*time.Second, zap.NewNop())

	c.Stop()
	c.Start(context.Background())
	c.Start(context.Background())
	c.Stop()
	c.Stop()
	assert.Equal(t, 0, stub.Calls())
}
