package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// State is the lifecycle state of a Filter.
type State int

const (
	StateCreated State = iota
	StateActive
	StateUninstalled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateUninstalled:
		return "uninstalled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Filter is a node-side filter together with the keys of every entry already
// handed out. Polls are serialized, so the seen set only grows.
type Filter struct {
	logger zerolog.Logger
	caller provider.Provider
	id     string
	kind   Kind
	query  *ethereum.FilterQuery

	mu       sync.Mutex
	state    State
	seen     mapset.Set[string]
	watching bool
}

func newFilter(logger zerolog.Logger, caller provider.Provider, id string, kind Kind, query *ethereum.FilterQuery) *Filter {
	return &Filter{
		logger: logger.With().Str("filter_id", id).Stringer("kind", kind).Logger(),
		caller: caller,
		id:     id,
		kind:   kind,
		query:  query,
		state:  StateCreated,
		seen:   mapset.NewThreadUnsafeSet[string](),
	}
}

func (f *Filter) activate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateCreated {
		f.state = StateActive
	}
}

// ID returns the node's handle for the filter.
func (f *Filter) ID() string {
	return f.id
}

// Kind returns the kind of entries the filter reports.
func (f *Filter) Kind() Kind {
	return f.kind
}

// Query returns the log query the filter was installed with, nil for other kinds.
func (f *Filter) Query() *ethereum.FilterQuery {
	return f.query
}

// State returns the current lifecycle state.
func (f *Filter) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// GetNewEntries polls the node and returns the entries not handed out before, in
// the order the node reported them. A poll without news returns an empty batch.
func (f *Filter) GetNewEntries(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireActive("poll"); err != nil {
		return nil, err
	}
	reported, err := f.fetch(ctx, model.EthGetFilterChanges)
	if err != nil {
		return nil, err
	}

	fresh := make([]Entry, 0, len(reported))
	for _, entry := range reported {
		if f.seen.Add(entry.Key()) {
			fresh = append(fresh, entry)
		}
	}
	if len(fresh) > 0 {
		f.logger.Trace().Int("reported", len(reported)).Int("new", len(fresh)).Msg("filter polled")
	}
	return fresh, nil
}

// GetAllEntries returns every log matching a log filter, whether handed out
// before or not. It does not change what GetNewEntries reports.
func (f *Filter) GetAllEntries(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireActive("get all entries of"); err != nil {
		return nil, err
	}
	if f.kind != KindLog {
		return nil, web3err.Validation("filter %s is a %s filter; only log filters keep their entries", f.id, f.kind)
	}
	return f.fetch(ctx, model.EthGetFilterLogs)
}

// Uninstall removes the filter from the node. The filter is uninstalled afterwards
// even when the request fails.
func (f *Filter) Uninstall(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireActive("uninstall"); err != nil {
		return err
	}
	f.state = StateUninstalled

	raw, err := f.caller.Call(ctx, model.EthUninstallFilter, []any{f.id})
	if err != nil {
		return fmt.Errorf("uninstall filter %s: %w", f.id, err)
	}
	var removed bool
	if err := json.Unmarshal(raw, &removed); err == nil && !removed {
		f.logger.Debug().Msg("node no longer knew the filter")
	}
	f.logger.Debug().Msg("filter uninstalled")
	return nil
}

// requireActive must be called with mu held.
func (f *Filter) requireActive(operation string) error {
	if f.state != StateActive {
		return web3err.Validation("cannot %s filter %s: filter is %s", operation, f.id, f.state)
	}
	return nil
}

// fetch issues method for the filter and decodes its result by kind.
func (f *Filter) fetch(ctx context.Context, method string) ([]Entry, error) {
	raw, err := f.caller.Call(ctx, method, []any{f.id})
	if err != nil {
		return nil, err
	}
	if provider.IsNull(raw) {
		return nil, nil
	}

	if f.kind == KindLog {
		var logs []types.Log
		if err := json.Unmarshal(raw, &logs); err != nil {
			return nil, web3err.Request(method, fmt.Errorf("decode logs: %w", err), web3err.WithRetryable(false))
		}
		entries := make([]Entry, len(logs))
		for i := range logs {
			entries[i] = Entry{Kind: KindLog, Hash: logs[i].TxHash, Log: &logs[i]}
		}
		return entries, nil
	}

	var hashes []common.Hash
	if err := json.Unmarshal(raw, &hashes); err != nil {
		return nil, web3err.Request(method, fmt.Errorf("decode hashes: %w", err), web3err.WithRetryable(false))
	}
	entries := make([]Entry, len(hashes))
	for i, h := range hashes {
		entries[i] = Entry{Kind: f.kind, Hash: h}
	}
	return entries, nil
}
