package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/sigweihq/walletbridge/pkg/types"
)

// KeypairProvider signs with a local Solana private key. It stands in for a
// browser wallet in the CLI and in server-side flows.
type KeypairProvider struct {
	key       solana.PrivateKey
	wallet    types.WalletID
	connected bool
	mu        sync.RWMutex
}

var _ Provider = (*KeypairProvider)(nil)

// NewKeypairProvider creates a provider for key
func NewKeypairProvider(key solana.PrivateKey) *KeypairProvider {
	return &KeypairProvider{key: key}
}

// ForWallet makes the provider present itself as wallet's brand, so it can
// be registered under a brand that checks identity
func (p *KeypairProvider) ForWallet(wallet types.WalletID) *KeypairProvider {
	p.wallet = wallet
	return p
}

// IsPhantom implements PhantomIdentifier
func (p *KeypairProvider) IsPhantom() bool {
	return p.wallet == types.WalletPhantom
}

// Connect marks the provider connected. A local key never prompts.
func (p *KeypairProvider) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(p.key) != 64 {
		return fmt.Errorf("invalid keypair length: %d", len(p.key))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *KeypairProvider) PublicKey() solana.PublicKey {
	if len(p.key) != 64 {
		return solana.PublicKey{}
	}
	return p.key.PublicKey()
}

// SignTransaction signs tx in place and returns it
func (p *KeypairProvider) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	if !connected {
		return nil, ErrNotConnected
	}

	pub := p.key.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &p.key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}
