package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sigweihq/walletbridge/pkg/types"
)

// ErrPendingNotFound is returned when no deferred acquisition matches a key
var ErrPendingNotFound = errors.New("pending acquisition not found")

// Navigator performs the page navigation that hands the user to a wallet app
// or install page. Navigation is fire-and-forget.
type Navigator interface {
	// Redirect replaces the current page with url
	Redirect(ctx context.Context, url string) error
	// OpenTab opens url in a new tab
	OpenTab(ctx context.Context, url string) error
}

// PrintNavigator writes navigation targets to W, one per line
type PrintNavigator struct {
	W io.Writer
}

// Redirect prints "redirect <url>"
func (n PrintNavigator) Redirect(_ context.Context, url string) error {
	_, err := fmt.Fprintf(n.W, "redirect %s\n", url)
	return err
}

// OpenTab prints "open <url>"
func (n PrintNavigator) OpenTab(_ context.Context, url string) error {
	_, err := fmt.Fprintf(n.W, "open %s\n", url)
	return err
}

// PendingStore keeps deferred acquisitions until the redirect handler claims them
type PendingStore interface {
	Save(ctx context.Context, pending *types.PendingAcquisition) error
	// Take returns and removes the acquisition stored under key
	Take(ctx context.Context, key string) (*types.PendingAcquisition, error)
}

// PendingKey is the key a pending acquisition is stored under: its session
// token for deep links, its id otherwise
func PendingKey(p *types.PendingAcquisition) string {
	if p.SessionToken != "" {
		return p.SessionToken
	}
	return p.ID
}

type pendingEntry struct {
	pending   *types.PendingAcquisition
	expiresAt time.Time
}

// MemoryPendingStore is an in-process PendingStore with expiry
type MemoryPendingStore struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]pendingEntry
	mu      sync.Mutex
}

// NewMemoryPendingStore creates a store whose entries expire after ttl
func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	return &MemoryPendingStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]pendingEntry),
	}
}

func (s *MemoryPendingStore) Save(_ context.Context, pending *types.PendingAcquisition) error {
	if pending == nil {
		return errors.New("nil pending acquisition")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()
	copied := *pending
	s.entries[PendingKey(pending)] = pendingEntry{
		pending:   &copied,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryPendingStore) Take(_ context.Context, key string) (*types.PendingAcquisition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrPendingNotFound
	}
	delete(s.entries, key)

	if !s.now().Before(entry.expiresAt) {
		return nil, ErrPendingNotFound
	}
	return entry.pending, nil
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryPendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryPendingStore) evictExpiredLocked() {
	now := s.now()
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}
