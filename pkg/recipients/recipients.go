// Package recipients maps phone-number style identifiers to the Solana
// addresses that receive transfers sent to them.
package recipients

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrMappingNotFound is returned when an identifier has no address
var ErrMappingNotFound = errors.New("mapping not found for the given input string")

// IdentifierPrefix starts every identifier. Base58 addresses never contain it.
const IdentifierPrefix = "+"

// Directory maps identifiers to addresses
type Directory map[string]solana.PublicKey

// Default is the built-in directory
var Default = Directory{
	"+1234567890": solana.MustPublicKeyFromBase58("BCuSYsckaRs5WK1w8bbpSbnKCe6xWFjLDSFo7AAwjUAo"),
	"+2222222222": solana.MustPublicKeyFromBase58("5FvNyzr7RY7Eemw75bQFGjQqvctH9TFxy62zGRNiXXDL"),
	"+3333333333": solana.MustPublicKeyFromBase58("J5gLzp9UPqEkPfA9xskspJeALAzxPbLiyG58d7CHhx3v"),
}

// IsIdentifier reports whether s should be looked up rather than decoded as an address
func IsIdentifier(s string) bool {
	return strings.HasPrefix(s, IdentifierPrefix)
}

// Lookup returns the address mapped to identifier. The match is exact.
func (d Directory) Lookup(identifier string) (solana.PublicKey, error) {
	address, ok := d[identifier]
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrMappingNotFound, identifier)
	}
	return address, nil
}

// Lookup resolves identifier in the Default directory
func Lookup(identifier string) (solana.PublicKey, error) {
	return Default.Lookup(identifier)
}
