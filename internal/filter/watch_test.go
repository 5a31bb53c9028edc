package filter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-web3-core/internal/filter"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/unittest"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

const testPollInterval = 5 * time.Millisecond

// collector gathers delivered batches.
type collector struct {
	mu      sync.Mutex
	entries []filter.Entry
	batches int
}

func (c *collector) callback(entries []filter.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entries...)
	c.batches++
}

func (c *collector) snapshot() []filter.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]filter.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// TestWatchDeliversAndStops verifies a watch delivers new entries to the callback
// and uninstalls its filter when stopped.
func TestWatchDeliversAndStops(t *testing.T) {
	node := unittest.NewFakeNode()
	ctx := context.Background()
	address := unittest.RandomAddress(t)

	f, err := newEngine(t, node).NewLogFilter(ctx, ethereum.FilterQuery{Addresses: []common.Address{address}})
	require.NoError(t, err)

	c := &collector{}
	sub, err := f.Watch(ctx, c.callback, filter.WithPollInterval(testPollInterval))
	require.NoError(t, err)
	unittest.RequireReady(t, sub)
	require.Equal(t, f, sub.Filter())
	require.NotEmpty(t, sub.ID().String())

	for i := 0; i < 3; i++ {
		node.EmitLog(logAt(t, address))
	}
	require.Eventually(t, func() bool {
		return len(c.snapshot()) == 3
	}, 5*time.Second, testPollInterval)

	sub.Stop()
	unittest.RequireDone(t, sub)
	require.NoError(t, sub.Err())
	require.Equal(t, filter.StateUninstalled, f.State())
	require.Zero(t, node.InstalledFilters())
	require.Len(t, c.snapshot(), 3)
}

// TestWatchSlowCallback verifies a callback slower than the poll cadence still sees
// every entry exactly once.
func TestWatchSlowCallback(t *testing.T) {
	node := unittest.NewFakeNode()
	node.SetRedeliver(true)
	ctx := context.Background()

	f, err := newEngine(t, node).NewBlockFilter(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []common.Hash
	sub, err := f.Watch(ctx, func(entries []filter.Entry) {
		time.Sleep(4 * testPollInterval)
		mu.Lock()
		defer mu.Unlock()
		for _, e := range entries {
			got = append(got, e.Hash)
		}
	}, filter.WithPollInterval(testPollInterval), filter.WithDeliveryBuffer(1))
	require.NoError(t, err)
	unittest.RequireReady(t, sub)

	var mined []common.Hash
	for i := 0; i < 10; i++ {
		mined = append(mined, node.MineBlock())
		time.Sleep(testPollInterval)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= len(mined)
	}, 5*time.Second, testPollInterval)

	sub.Stop()
	unittest.RequireDone(t, sub)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, mined, got)
}

// TestWatchStopsOnPollError verifies a failing poll ends the watch and reports the error.
func TestWatchStopsOnPollError(t *testing.T) {
	node := unittest.NewFakeNode()
	ctx := context.Background()
	boom := errors.New("connection reset")

	f, err := newEngine(t, node).NewPendingTransactionFilter(ctx)
	require.NoError(t, err)
	node.FailNext(model.EthGetFilterChanges, boom)

	sub, err := f.Watch(ctx, func([]filter.Entry) {}, filter.WithPollInterval(testPollInterval))
	require.NoError(t, err)

	unittest.RequireDone(t, sub)
	require.ErrorIs(t, sub.Err(), web3err.ErrRequest)
	require.ErrorIs(t, sub.Err(), boom)
	require.Equal(t, filter.StateUninstalled, f.State())
	require.Zero(t, node.InstalledFilters())
}

// TestWatchStopsWithContext verifies cancelling the parent context ends the watch.
func TestWatchStopsWithContext(t *testing.T) {
	node := unittest.NewFakeNode()
	ctx, cancel := context.WithCancel(context.Background())

	f, err := newEngine(t, node).NewBlockFilter(context.Background())
	require.NoError(t, err)

	sub, err := f.Watch(ctx, func([]filter.Entry) {}, filter.WithPollInterval(testPollInterval))
	require.NoError(t, err)
	unittest.RequireReady(t, sub)

	cancel()
	unittest.RequireDone(t, sub)
	require.NoError(t, sub.Err())
	require.Zero(t, node.InstalledFilters())
}

// TestWatchRejectsSecondWatcher verifies a filter is owned by one watch loop.
func TestWatchRejectsSecondWatcher(t *testing.T) {
	node := unittest.NewFakeNode()
	ctx := context.Background()

	f, err := newEngine(t, node).NewBlockFilter(ctx)
	require.NoError(t, err)

	_, err = f.Watch(ctx, nil)
	require.ErrorIs(t, err, web3err.ErrValue)

	sub, err := f.Watch(ctx, func([]filter.Entry) {}, filter.WithPollInterval(testPollInterval))
	require.NoError(t, err)
	_, err = f.Watch(ctx, func([]filter.Entry) {})
	require.ErrorIs(t, err, web3err.ErrValidation)

	unittest.RequireCallMustReturnWithinTimeout(t, func() {
		sub.Stop()
		<-sub.Done()
	}, 5*time.Second, "watch did not stop")
}

// TestConcurrentWatches verifies watches over distinct filters only see their own logs.
func TestConcurrentWatches(t *testing.T) {
	node := unittest.NewFakeNode()
	ctx := context.Background()
	engine := newEngine(t, node)
	addresses := unittest.RandomAddresses(t, 3)

	collectors := make([]*collector, len(addresses))
	subs := make([]unittest.ReadyDoneAware, len(addresses))
	stops := make([]func(), len(addresses))
	for i, address := range addresses {
		f, err := engine.NewLogFilter(ctx, ethereum.FilterQuery{Addresses: []common.Address{address}})
		require.NoError(t, err)
		collectors[i] = &collector{}
		sub, err := f.Watch(ctx, collectors[i].callback, filter.WithPollInterval(testPollInterval))
		require.NoError(t, err)
		subs[i] = sub
		stops[i] = sub.Stop
	}
	unittest.RequireAllReady(t, subs...)

	for i, address := range addresses {
		for j := 0; j <= i; j++ {
			node.EmitLog(logAt(t, address))
		}
	}
	for i := range addresses {
		c, want := collectors[i], i+1
		require.Eventually(t, func() bool {
			return len(c.snapshot()) == want
		}, 5*time.Second, testPollInterval)
	}

	for _, stop := range stops {
		stop()
	}
	unittest.RequireAllDone(t, subs...)
	require.Zero(t, node.InstalledFilters())
	for i, address := range addresses {
		for _, e := range collectors[i].snapshot() {
			require.Equal(t, address, e.Log.Address)
		}
	}
}

// TestWatchStopFromCallback verifies a callback can end its own watch; the loop then
// drains, uninstalls and closes Done once the callback has returned.
func TestWatchStopFromCallback(t *testing.T) {
	node := unittest.NewFakeNode()
	ctx := context.Background()

	f, err := newEngine(t, node).NewBlockFilter(ctx)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		sub   *filter.Subscription
		calls int
	)
	started := make(chan struct{})
	sub, err = f.Watch(ctx, func([]filter.Entry) {
		<-started
		mu.Lock()
		defer mu.Unlock()
		calls++
		sub.Stop()
	}, filter.WithPollInterval(testPollInterval))
	require.NoError(t, err)
	close(started)
	unittest.RequireReady(t, sub)

	node.MineBlock()
	unittest.RequireDone(t, sub)
	require.NoError(t, sub.Err())
	require.Equal(t, filter.StateUninstalled, f.State())
	require.Zero(t, node.InstalledFilters())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}
