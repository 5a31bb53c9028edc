package filter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

const (
	DefaultPollInterval   = time.Second
	DefaultDeliveryBuffer = 16

	uninstallTimeout = 10 * time.Second
)

// Callback consumes one non-empty batch of new entries. It runs on the
// subscription's delivery goroutine, never concurrently with itself. A callback may
// call Stop but must not wait on Done: Done closes only after the callback returns.
type Callback func(entries []Entry)

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	pollInterval   time.Duration
	deliveryBuffer int
}

// WithPollInterval sets the polling cadence.
func WithPollInterval(interval time.Duration) WatchOption {
	return func(cfg *watchConfig) {
		if interval > 0 {
			cfg.pollInterval = interval
		}
	}
}

// WithDeliveryBuffer sets how many batches may queue ahead of a slow callback
// before polling pauses.
func WithDeliveryBuffer(batches int) WatchOption {
	return func(cfg *watchConfig) {
		if batches >= 0 {
			cfg.deliveryBuffer = batches
		}
	}
}

// Subscription is a running watch loop. The loop owns the filter: when it exits
// the filter is uninstalled.
type Subscription struct {
	id     uuid.UUID
	logger zerolog.Logger
	filter *Filter
	cancel context.CancelFunc

	ready chan struct{}
	done  chan struct{}

	mu  sync.Mutex
	err error
}

// Watch starts polling the filter in the background and hands every non-empty
// batch to callback. A filter can be watched once. The loop stops when Stop is
// called, when ctx is done or on the first poll error.
func (f *Filter) Watch(ctx context.Context, callback Callback, opts ...WatchOption) (*Subscription, error) {
	if callback == nil {
		return nil, web3err.Value("watch callback is required")
	}
	cfg := watchConfig{
		pollInterval:   DefaultPollInterval,
		deliveryBuffer: DefaultDeliveryBuffer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	f.mu.Lock()
	if err := f.requireActive("watch"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if f.watching {
		f.mu.Unlock()
		return nil, web3err.Validation("filter %s is already watched", f.id)
	}
	f.watching = true
	f.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	id := uuid.New()
	s := &Subscription{
		id:     id,
		logger: f.logger.With().Str("component", "filter-watch").Str("subscription", id.String()).Logger(),
		filter: f,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run(loopCtx, cfg, callback)
	return s, nil
}

// ID identifies the subscription.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Filter returns the watched filter.
func (s *Subscription) Filter() *Filter {
	return s.filter
}

// Stop asks the loop to exit at the next poll boundary. It does not wait; use Done.
func (s *Subscription) Stop() {
	s.cancel()
}

// Ready is closed once the loop is polling.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once the loop has exited, every queued batch has been delivered
// and the filter has been uninstalled. Waiting on it from a Callback never returns.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that stopped the loop, nil after a requested stop.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Subscription) run(ctx context.Context, cfg watchConfig, callback Callback) {
	defer close(s.done)
	defer s.cancel()

	batches := make(chan []Entry, cfg.deliveryBuffer)
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		for batch := range batches {
			callback(batch)
		}
	}()

	// in-flight polls complete even when the loop is stopped meanwhile
	pollCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(cfg.pollInterval)
	defer ticker.Stop()

	s.logger.Info().Dur("poll_interval", cfg.pollInterval).Msg("watch started")
	close(s.ready)

	for s.poll(ctx, pollCtx, ticker.C, batches) {
	}

	close(batches)
	<-delivered

	uninstallCtx, cancel := context.WithTimeout(pollCtx, uninstallTimeout)
	defer cancel()
	if s.filter.State() == StateActive {
		if err := s.filter.Uninstall(uninstallCtx); err != nil {
			s.logger.Warn().Err(err).Msg("could not uninstall watched filter")
		}
	}

	if err := s.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("watch stopped on error")
		return
	}
	s.logger.Info().Msg("watch stopped")
}

// poll waits for the next tick and queues the new entries. It reports whether
// the loop should continue.
func (s *Subscription) poll(ctx, pollCtx context.Context, tick <-chan time.Time, batches chan<- []Entry) bool {
	select {
	case <-ctx.Done():
		return false
	case <-tick:
	}

	entries, err := s.filter.GetNewEntries(pollCtx)
	if err != nil {
		s.setErr(err)
		return false
	}
	if len(entries) > 0 {
		// entries are already marked seen, so a batch is never dropped
		batches <- entries
	}
	return true
}
