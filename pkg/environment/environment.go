package environment

import (
	"regexp"

	"github.com/sigweihq/walletbridge/pkg/types"
)

var (
	mobileUserAgent  = regexp.MustCompile(`(?i)iPhone|iPad|iPod|Android`)
	phantomUserAgent = regexp.MustCompile(`(?i)Phantom`)
	bitgetUserAgent  = regexp.MustCompile(`(?i)BitKeep`)
	okxUserAgent     = regexp.MustCompile(`(?i)OKEx`)
)

// InjectionChecker reports whether a wallet brand currently exposes an
// injected provider object
type InjectionChecker interface {
	Injected(wallet types.WalletID) bool
}

// Environment is a snapshot of the client the request originates from
type Environment struct {
	UserAgent string
	// Origin is the page origin that deep-link handlers return the user to
	Origin   string
	Injected InjectionChecker
}

// IsMobileDevice reports whether the user agent matches a mobile OS signature
func (e Environment) IsMobileDevice() bool {
	return mobileUserAgent.MatchString(e.UserAgent)
}

// IsProviderInjected reports whether the brand's provider object is present
func (e Environment) IsProviderInjected(wallet types.WalletID) bool {
	if e.Injected == nil {
		return false
	}
	return e.Injected.Injected(wallet)
}

// IsPhantomInjected is true when phantom is injected and bitget is not.
// Bitget also populates the phantom namespace.
func (e Environment) IsPhantomInjected() bool {
	return e.IsProviderInjected(types.WalletPhantom) && !e.IsProviderInjected(types.WalletBitget)
}

// IsBitgetInjected reports whether the bitget provider is present
func (e Environment) IsBitgetInjected() bool {
	return e.IsProviderInjected(types.WalletBitget)
}

// ClassifyMobileWalletApp returns the wallet whose in-app browser the
// request comes from. Precedence: phantom, bitget, okx.
func (e Environment) ClassifyMobileWalletApp() (types.WalletID, bool) {
	if !e.IsMobileDevice() {
		return "", false
	}
	switch {
	case phantomUserAgent.MatchString(e.UserAgent):
		return types.WalletPhantom, true
	case bitgetUserAgent.MatchString(e.UserAgent):
		return types.WalletBitget, true
	case okxUserAgent.MatchString(e.UserAgent):
		return types.WalletOKX, true
	}
	return "", false
}
