package providers

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/sigweihq/walletbridge/pkg/types"
)

var (
	// ErrUserRejected is returned (wrapped) by providers when the user declines a prompt
	ErrUserRejected = errors.New("user rejected the request")

	// ErrNotConnected is returned when a provider is used before Connect succeeded
	ErrNotConnected = errors.New("provider not connected")

	// ErrUnknownWallet is returned for wallet ids with no acquisition strategy
	ErrUnknownWallet = errors.New("unknown wallet")
)

// Provider is the signing capability exposed by a wallet
type Provider interface {
	// Connect asks the wallet for access. It may prompt the user.
	Connect(ctx context.Context) error

	// PublicKey returns the connected account
	PublicKey() solana.PublicKey

	// SignTransaction returns tx signed by the wallet account
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// PhantomIdentifier is implemented by providers that self-identify as Phantom.
// Other extensions may inject themselves under the same namespace.
type PhantomIdentifier interface {
	IsPhantom() bool
}

// SignMessage is intentionally inert: message signing is disabled and the
// provider is never called. It returns empty values.
func SignMessage(_ context.Context, _ Provider, _ string) (types.SignedMessage, error) {
	return types.SignedMessage{
		PublicKey: "",
		Signature: "",
	}, nil
}
