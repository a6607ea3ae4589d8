package utils

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ParseSolanaPrivateKey parses a hex encoded Ed25519 key.
// Both the 32-byte seed and the 64-byte seed+public key forms are accepted.
func ParseSolanaPrivateKey(privateKeyHex string) (solana.PrivateKey, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	privateKeyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	switch len(privateKeyBytes) {
	case ed25519.SeedSize:
		return solana.PrivateKey(ed25519.NewKeyFromSeed(privateKeyBytes)), nil
	case ed25519.PrivateKeySize:
		return solana.PrivateKey(privateKeyBytes), nil
	default:
		return nil, fmt.Errorf("invalid private key length: %d (expected 32 or 64 bytes)", len(privateKeyBytes))
	}
}

// LoadSolanaPrivateKey reads a key file written by solana-keygen (JSON byte
// array) or a file holding a single hex encoded key
func LoadSolanaPrivateKey(path string) (solana.PrivateKey, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	if strings.HasPrefix(strings.TrimSpace(string(content)), "[") {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
		if err != nil {
			return nil, fmt.Errorf("invalid keygen file: %w", err)
		}
		return key, nil
	}

	return ParseSolanaPrivateKey(string(content))
}

// GenerateSolanaKeypair generates a new Solana keypair
func GenerateSolanaKeypair() (privateKeyHex, address string, err error) {
	account := solana.NewWallet()

	// PrivateKey is 64 bytes, first 32 bytes are the seed
	seed := account.PrivateKey[:ed25519.SeedSize]
	privateKeyHex = "0x" + hex.EncodeToString(seed)
	address = account.PublicKey().String()

	return privateKeyHex, address, nil
}

// FeePayer returns the fee payer (first account key) of a transaction, or
// the zero key when the message has no accounts
func FeePayer(tx *solana.Transaction) solana.PublicKey {
	if tx == nil || len(tx.Message.AccountKeys) == 0 {
		return solana.PublicKey{}
	}
	return tx.Message.AccountKeys[0]
}

// SOLToLamports converts whole SOL into lamports, rounding to the nearest
// lamport (halves away from zero)
func SOLToLamports(sol float64) (uint64, error) {
	if math.IsNaN(sol) || math.IsInf(sol, 0) {
		return 0, fmt.Errorf("invalid amount: %v", sol)
	}
	if sol <= 0 {
		return 0, fmt.Errorf("amount must be positive: %v", sol)
	}

	lamports := math.Round(sol * float64(solana.LAMPORTS_PER_SOL))
	if lamports >= math.MaxUint64 {
		return 0, fmt.Errorf("amount too large: %v", sol)
	}
	if lamports == 0 {
		return 0, fmt.Errorf("amount rounds to zero lamports: %v", sol)
	}
	return uint64(lamports), nil
}

// LamportsToSOL converts lamports into whole SOL
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
}
