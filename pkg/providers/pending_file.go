package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/types"
)

// Session tokens are alphanumeric and pending ids are uuids
var pendingKeyPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,128}$`)

// FilePendingStore keeps one JSON file per pending acquisition in a
// directory, so separate CLI invocations on one host share state
type FilePendingStore struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

type filePendingEntry struct {
	Pending   *types.PendingAcquisition `json:"pending"`
	ExpiresAt time.Time                 `json:"expiresAt"`
}

// NewFilePendingStore creates dir if needed and returns a store rooted there
func NewFilePendingStore(dir string, ttl time.Duration) (*FilePendingStore, error) {
	if dir == "" {
		return nil, errors.New("pending store directory is required")
	}
	if ttl <= 0 {
		ttl = constants.PendingAcquisitionTTL
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create pending store directory: %w", err)
	}
	return &FilePendingStore{dir: dir, ttl: ttl, now: time.Now}, nil
}

func (s *FilePendingStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FilePendingStore) Save(_ context.Context, pending *types.PendingAcquisition) error {
	if pending == nil {
		return errors.New("nil pending acquisition")
	}
	key := PendingKey(pending)
	if !pendingKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid pending key %q", key)
	}

	data, err := json.Marshal(filePendingEntry{Pending: pending, ExpiresAt: s.now().Add(s.ttl)})
	if err != nil {
		return fmt.Errorf("failed to marshal pending acquisition: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".pending-*")
	if err != nil {
		return fmt.Errorf("failed to store pending acquisition: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to store pending acquisition: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to store pending acquisition: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("failed to store pending acquisition: %w", err)
	}
	return nil
}

// Take claims the file by renaming it first, so two concurrent takers
// cannot both receive the same acquisition
func (s *FilePendingStore) Take(_ context.Context, key string) (*types.PendingAcquisition, error) {
	if !pendingKeyPattern.MatchString(key) {
		return nil, ErrPendingNotFound
	}

	claimed := filepath.Join(s.dir, ".taken-"+uuid.NewString())
	if err := os.Rename(s.path(key), claimed); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to claim pending acquisition: %w", err)
	}
	defer os.Remove(claimed)

	data, err := os.ReadFile(claimed) // #nosec G304 -- path built from a validated key
	if err != nil {
		return nil, fmt.Errorf("failed to load pending acquisition: %w", err)
	}
	var entry filePendingEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending acquisition: %w", err)
	}
	if entry.Pending == nil || !s.now().Before(entry.ExpiresAt) {
		return nil, ErrPendingNotFound
	}
	return entry.Pending, nil
}

// Prune removes expired entries and returns how many were deleted
func (s *FilePendingStore) Prune() (int, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0, err
	}

	removed := 0
	now := s.now()
	for _, file := range files {
		data, err := os.ReadFile(file) // #nosec G304 -- file comes from Glob over our directory
		if err != nil {
			continue
		}
		var entry filePendingEntry
		if err := json.Unmarshal(data, &entry); err != nil || !now.Before(entry.ExpiresAt) {
			if os.Remove(file) == nil {
				removed++
			}
		}
	}
	return removed, nil
}
