package providers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigweihq/walletbridge/pkg/types"
)

// Requires a reachable Redis, e.g. WALLETBRIDGE_TEST_REDIS_ADDR=localhost:6379
func newTestRedisStore(t *testing.T) *RedisPendingStore {
	t.Helper()
	addr := os.Getenv("WALLETBRIDGE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis test: WALLETBRIDGE_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewRedisPendingStore(ctx, RedisPendingStoreConfig{
		Address: addr,
		Prefix:  "walletbridge:test:" + uuid.NewString() + ":",
		TTL:     time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisPendingStoreRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	pending := &types.PendingAcquisition{
		ID:           uuid.NewString(),
		Wallet:       types.WalletPhantom,
		Kind:         types.AcquisitionDeepLink,
		URL:          "https://phantom.app/ul/browse/x",
		SessionToken: "token123",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, pending))

	got, err := store.Take(ctx, "token123")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID)
	assert.Equal(t, pending.Wallet, got.Wallet)
	assert.True(t, pending.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Take(ctx, "token123")
	assert.ErrorIs(t, err, ErrPendingNotFound)
}

func TestNewRedisPendingStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisPendingStore(context.Background(), RedisPendingStoreConfig{})
	assert.Error(t, err)
}
