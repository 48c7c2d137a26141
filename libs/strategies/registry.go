package strategies

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"jax-backtest-engine/internal/kernel"
)

// Registry is a thread-safe, name-keyed lookup of Strategy constructors.
// Each run gets a fresh Strategy instance (New) so per-run mutable state
// like BuyAndHold.placed never leaks across runs sharing a registry.
type Registry struct {
	mu  sync.RWMutex
	new map[string]func() Strategy
	md  map[string]Metadata
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{
		new: make(map[string]func() Strategy),
		md:  make(map[string]Metadata),
	}
}

// Register adds a strategy constructor under id.
func (r *Registry) Register(id string, meta Metadata, ctor func() Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		return fmt.Errorf("strategy id cannot be empty")
	}
	if ctor == nil {
		return fmt.Errorf("strategy %s: constructor cannot be nil", id)
	}
	if _, exists := r.new[id]; exists {
		return fmt.Errorf("strategy %s already registered", id)
	}

	r.new[id] = ctor
	r.md[id] = meta
	return nil
}

// New constructs a fresh Strategy instance for id.
func (r *Registry) New(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, exists := r.new[id]
	if !exists {
		return nil, fmt.Errorf("strategy %s not found", id)
	}
	return ctor(), nil
}

// List returns all registered strategy ids.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.new))
	for id := range r.new {
		ids = append(ids, id)
	}
	return ids
}

// Metadata returns the registered metadata for id.
func (r *Registry) Metadata(id string) (Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.md[id]
	if !exists {
		return Metadata{}, fmt.Errorf("metadata for strategy %s not found", id)
	}
	return meta, nil
}

// Default registers the kernel's built-in strategies under stable ids.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register("noop", Metadata{ID: "noop", Name: "No-Op", Description: "never trades"}, func() Strategy {
		return NoOp{}
	})
	_ = r.Register("buy_and_hold", Metadata{ID: "buy_and_hold", Name: "Buy and Hold", Description: "buys once, never sells"}, func() Strategy {
		return &BuyAndHold{
			Ticker: buyAndHoldTickerFromEnv(),
			Shares: envInt("BUY_AND_HOLD_SHARES", 100),
			TIF:    kernel.GTC,
		}
	})
	return r
}

// buyAndHoldTickerFromEnv picks the ticker a registry-constructed
// BuyAndHold instance trades: BUY_AND_HOLD_TICKER if set, otherwise the
// first entry of the run's own TICKERS (the same env var cmd/backtest
// reads for the session's ticker universe).
func buyAndHoldTickerFromEnv() string {
	if v := os.Getenv("BUY_AND_HOLD_TICKER"); v != "" {
		return v
	}
	if v := os.Getenv("TICKERS"); v != "" {
		return strings.Split(v, ",")[0]
	}
	return ""
}

func envInt(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
