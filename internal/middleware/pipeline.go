// Package middleware implements the request interception pipeline that wraps a Provider.
//
// A Pipeline keeps an ordered registry of named entries. Entry 0 wraps the raw
// provider call, entry n wraps entry n-1, so the entry with the highest layer is the
// first to see an outbound request and the last to see its result. Every mutation of
// the registry rebuilds the composed chain from scratch and swaps it in; calls already
// in flight finish on the chain they started with.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// RequestFunc issues one request and returns the raw result.
type RequestFunc func(ctx context.Context, method string, params []any) (json.RawMessage, error)

// Context is handed to every middleware factory when the chain is built.
type Context struct {
	Logger zerolog.Logger
	// Call sends a request through the complete pipeline, outermost entry first.
	// Middlewares use it for side requests that must be intercepted like any other.
	Call RequestFunc
}

// Middleware wraps the next-inner call. It may transform the outbound method and
// params, transform the result, short-circuit or fail the call.
type Middleware func(next RequestFunc, c Context) RequestFunc

// Entry is a named middleware at a position in the pipeline.
type Entry struct {
	Name    string
	Factory Middleware
	// Layer is the position of the entry, 0 being adjacent to the provider.
	Layer int
}

// Pipeline is the ordered middleware registry and the chain composed from it.
// It implements provider.Provider so it can be handed to anything expecting one.
type Pipeline struct {
	logger   zerolog.Logger
	provider provider.Provider

	mu      sync.RWMutex
	entries []Entry
	chain   RequestFunc
}

var _ provider.Provider = (*Pipeline)(nil)

// New creates a pipeline over p. The given entries are ordered by ascending layer;
// entries sharing a layer keep their relative order.
func New(logger zerolog.Logger, p provider.Provider, entries ...Entry) (*Pipeline, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Layer < sorted[j].Layer
	})

	pl := &Pipeline{
		logger:   logger.With().Str("component", "middleware-pipeline").Logger(),
		provider: p,
	}
	for _, e := range sorted {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
		if pl.indexOf(e.Name) >= 0 {
			return nil, web3err.Validation("middleware %s already registered", e.Name)
		}
		pl.entries = append(pl.entries, e)
	}
	pl.rebuild()
	return pl, nil
}

// Call sends a request through the current chain.
func (p *Pipeline) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	p.mu.RLock()
	chain := p.chain
	p.mu.RUnlock()

	return chain(ctx, method, params)
}

// Build returns the currently composed chain. Later mutations of the pipeline do not
// affect the returned function.
func (p *Pipeline) Build() RequestFunc {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.chain
}

// Add places the entry outermost. The entry's Layer is ignored.
func (p *Pipeline) Add(entry Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.insert(entry, len(p.entries))
}

// Inject places the entry at layer, ahead of the entries currently at that layer and
// above, which each move up by one. Layers beyond the top are clamped to the top.
func (p *Pipeline) Inject(entry Entry, layer int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.insert(entry, layer)
}

// Remove deletes the named entry.
func (p *Pipeline) Remove(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.indexOf(name)
	if i < 0 {
		return web3err.Validation("middleware %s not found", name)
	}
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	p.rebuild()
	p.logger.Debug().Str("middleware", name).Msg("middleware removed")
	return nil
}

// ReplaceOption customizes Replace.
type ReplaceOption func(*replaceConfig)

type replaceConfig struct {
	layer *int
}

// AtLayer moves the replacement to layer instead of keeping the original position.
func AtLayer(layer int) ReplaceOption {
	return func(cfg *replaceConfig) {
		cfg.layer = &layer
	}
}

// Replace swaps the named entry for a new one. The replacement takes the original
// layer unless AtLayer is given. The new entry may carry a different name as long as
// it does not collide with another entry.
func (p *Pipeline) Replace(name string, entry Entry, opts ...ReplaceOption) error {
	cfg := replaceConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validateEntry(entry); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.indexOf(name)
	if i < 0 {
		return web3err.Validation("middleware %s not found", name)
	}
	if entry.Name != name && p.indexOf(entry.Name) >= 0 {
		return web3err.Validation("middleware %s already registered", entry.Name)
	}

	if cfg.layer == nil {
		entry.Layer = i
		p.entries[i] = entry
		p.rebuild()
		return nil
	}

	if *cfg.layer < 0 {
		return web3err.Value("invalid layer %d for middleware %s", *cfg.layer, entry.Name)
	}

	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	return p.insert(entry, *cfg.layer)
}

// Clear removes every entry; calls then go straight to the provider.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = nil
	p.rebuild()
}

// Names returns entry names innermost first.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of the registry innermost first, with Layer set to each
// entry's current position.
func (p *Pipeline) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Entry, len(p.entries))
	for i, e := range p.entries {
		e.Layer = i
		out[i] = e
	}
	return out
}

// insert must be called with mu held.
func (p *Pipeline) insert(entry Entry, layer int) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if p.indexOf(entry.Name) >= 0 {
		return web3err.Validation("middleware %s already registered", entry.Name)
	}
	if layer < 0 {
		return web3err.Value("invalid layer %d for middleware %s", layer, entry.Name)
	}
	if layer > len(p.entries) {
		layer = len(p.entries)
	}

	p.entries = append(p.entries, Entry{})
	copy(p.entries[layer+1:], p.entries[layer:])
	p.entries[layer] = entry
	p.rebuild()

	p.logger.Debug().Str("middleware", entry.Name).Int("layer", layer).Msg("middleware registered")
	return nil
}

func (p *Pipeline) indexOf(name string) int {
	for i, e := range p.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// rebuild composes a fresh chain from the registry. Must be called with mu held.
func (p *Pipeline) rebuild() {
	c := Context{
		Logger: p.logger,
		Call:   p.Call,
	}

	chain := p.terminal()
	for i := range p.entries {
		p.entries[i].Layer = i
		chain = p.entries[i].Factory(chain, c)
	}
	p.chain = chain
}

// terminal is the innermost call. Provider failures that are not already classified
// become request errors.
func (p *Pipeline) terminal() RequestFunc {
	return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
		result, err := p.provider.Call(ctx, method, params)
		if err != nil {
			if _, ok := web3err.From(err); ok {
				return nil, err
			}
			return nil, web3err.Request(method, err)
		}
		return result, nil
	}
}

func validateEntry(e Entry) error {
	if e.Name == "" {
		return web3err.Value("middleware name is required")
	}
	if e.Factory == nil {
		return web3err.Value("middleware %s has no factory", e.Name)
	}
	return nil
}

// String renders the composition order, e.g. "provider <- poa <- retry".
func (p *Pipeline) String() string {
	s := "provider"
	for _, name := range p.Names() {
		s = fmt.Sprintf("%s <- %s", s, name)
	}
	return s
}
