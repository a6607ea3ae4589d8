package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigweihq/walletbridge/pkg/types"
)

func TestFilePendingStoreSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFilePendingStore(dir, time.Minute)
	require.NoError(t, err)
	pending := &types.PendingAcquisition{
		ID:           "5f0c6d7e-1b7a-4f0e-9a51-2f7d3c9e8a10",
		Wallet:       types.WalletOKX,
		Kind:         types.AcquisitionDeepLink,
		SessionToken: "AbC123xyz",
		CallbackURL:  "https://dapp.example.com/pay?session=AbC123xyz",
	}
	require.NoError(t, first.Save(ctx, pending))

	second, err := NewFilePendingStore(dir, time.Minute)
	require.NoError(t, err)
	got, err := second.Take(ctx, "AbC123xyz")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID)
	assert.Equal(t, types.WalletOKX, got.Wallet)
	assert.Equal(t, pending.CallbackURL, got.CallbackURL)

	_, err = first.Take(ctx, "AbC123xyz")
	assert.ErrorIs(t, err, ErrPendingNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFilePendingStoreKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilePendingStore(t.TempDir(), time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"path traversal", "../outside"},
		{"separator", "a/b"},
		{"unknown", "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Take(ctx, tt.key)
			assert.ErrorIs(t, err, ErrPendingNotFound)
		})
	}

	assert.Error(t, store.Save(ctx, &types.PendingAcquisition{ID: "../escape"}))
	assert.Error(t, store.Save(ctx, nil))
}

func TestFilePendingStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilePendingStore(t.TempDir(), time.Minute)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, &types.PendingAcquisition{ID: "a", Wallet: types.WalletOKX}))
	require.NoError(t, store.Save(ctx, &types.PendingAcquisition{ID: "b", Wallet: types.WalletBitget}))

	now = now.Add(2 * time.Minute)
	_, err = store.Take(ctx, "a")
	assert.ErrorIs(t, err, ErrPendingNotFound)

	removed, err := store.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = os.Stat(filepath.Join(store.dir, "b.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewFilePendingStoreRequiresDir(t *testing.T) {
	_, err := NewFilePendingStore("", time.Minute)
	assert.Error(t, err)
}
