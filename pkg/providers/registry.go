package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sigweihq/walletbridge/pkg/types"
)

// LookupFunc returns the provider a wallet currently exposes, if any.
// It is called on every resolution; results are never cached.
type LookupFunc func() (Provider, bool)

// Registry maps wallet brands to the lookup that finds their injected provider
type Registry struct {
	lookups map[types.WalletID]LookupFunc
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		lookups: make(map[types.WalletID]LookupFunc),
	}
}

// Register registers a lookup for a wallet brand
// If a lookup already exists for the wallet, it will be replaced (idempotent)
func (r *Registry) Register(wallet types.WalletID, lookup LookupFunc) error {
	if !wallet.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownWallet, wallet)
	}
	if lookup == nil {
		return fmt.Errorf("nil lookup for wallet %s", wallet)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lookups[wallet] = lookup
	return nil
}

// RegisterProvider registers a fixed provider for a wallet brand
func (r *Registry) RegisterProvider(wallet types.WalletID, provider Provider) error {
	return r.Register(wallet, StaticLookup(provider))
}

// Lookup runs the wallet's lookup and returns the provider it yields
func (r *Registry) Lookup(wallet types.WalletID) (Provider, bool) {
	r.mu.RLock()
	lookup, exists := r.lookups[wallet]
	r.mu.RUnlock()

	if !exists {
		return nil, false
	}

	provider, ok := lookup()
	if !ok || provider == nil {
		return nil, false
	}
	return provider, true
}

// Injected implements environment.InjectionChecker
func (r *Registry) Injected(wallet types.WalletID) bool {
	_, ok := r.Lookup(wallet)
	return ok
}

// GetRegisteredWallets returns all wallets with a registered lookup, sorted
func (r *Registry) GetRegisteredWallets() []types.WalletID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wallets := make([]types.WalletID, 0, len(r.lookups))
	for wallet := range r.lookups {
		wallets = append(wallets, wallet)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i] < wallets[j] })
	return wallets
}

// Unregister removes a wallet lookup (the provider went away)
func (r *Registry) Unregister(wallet types.WalletID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.lookups, wallet)
}

// StaticLookup wraps a provider that is always present
func StaticLookup(provider Provider) LookupFunc {
	return func() (Provider, bool) {
		return provider, provider != nil
	}
}
