package types

import (
	"fmt"
	"strings"
	"time"
)

// WalletID identifies which provider-acquisition strategy to run
type WalletID string

const (
	WalletPhantom  WalletID = "phantom"
	WalletOKX      WalletID = "okx"
	WalletBitget   WalletID = "bitget"
	WalletBackpack WalletID = "backpack"
)

// AllWallets lists every supported wallet brand in detection order
var AllWallets = []WalletID{WalletPhantom, WalletOKX, WalletBitget, WalletBackpack}

// ParseWalletID converts a user supplied name into a WalletID
func ParseWalletID(name string) (WalletID, error) {
	id := WalletID(strings.ToLower(strings.TrimSpace(name)))
	if !id.Valid() {
		return "", fmt.Errorf("unsupported wallet: %q", name)
	}
	return id, nil
}

// Valid reports whether the id is one of the supported brands
func (w WalletID) Valid() bool {
	for _, known := range AllWallets {
		if w == known {
			return true
		}
	}
	return false
}

func (w WalletID) String() string {
	return string(w)
}

// TransferRequest describes a single native SOL transfer
type TransferRequest struct {
	Wallet      WalletID `json:"wallet"`
	Amount      float64  `json:"amount"`                // Whole SOL
	Destination string   `json:"destination,omitempty"` // Empty means the default receiver
}

// ConfirmationStatus is the commitment level a transaction reached
type ConfirmationStatus string

const (
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusFinalized ConfirmationStatus = "finalized"
)

// Confirmation is the successful outcome of a submitted transfer
type Confirmation struct {
	TransactionID string             `json:"transactionId"`
	Slot          uint64             `json:"slot"`
	Status        ConfirmationStatus `json:"status"`
	Lamports      uint64             `json:"lamports"`
	Destination   string             `json:"destination"`
}

// FailureReason tags why a transfer did not produce a confirmed transaction
type FailureReason string

const (
	ReasonInvalidRequest      FailureReason = "invalid_request"
	ReasonProviderUnavailable FailureReason = "provider_unavailable"
	ReasonUserRejected        FailureReason = "user_rejected"
	ReasonProviderError       FailureReason = "provider_error"
	ReasonRPCUnavailable      FailureReason = "rpc_unavailable"
	ReasonSigningFailed       FailureReason = "signing_failed"
	ReasonBroadcastFailed     FailureReason = "broadcast_failed"
	ReasonChainError          FailureReason = "chain_error"
	ReasonExpired             FailureReason = "block_height_exceeded"
)

// AcquisitionKind tells how a deferred provider acquisition was started
type AcquisitionKind string

const (
	AcquisitionDeepLink AcquisitionKind = "deeplink"
	AcquisitionInstall  AcquisitionKind = "install"
)

// PendingAcquisition records a provider lookup that was deferred to an
// external navigation (mobile deep link or install page)
type PendingAcquisition struct {
	ID           string          `json:"id"`
	Wallet       WalletID        `json:"wallet"`
	Kind         AcquisitionKind `json:"kind"`
	URL          string          `json:"url"`
	SessionToken string          `json:"sessionToken,omitempty"`
	CallbackURL  string          `json:"callbackUrl,omitempty"`
	Origin       string          `json:"origin,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// SignedMessage is the result of a message signing request
type SignedMessage struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}
