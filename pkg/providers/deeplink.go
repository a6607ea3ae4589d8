package providers

import (
	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/types"
	"github.com/sigweihq/walletbridge/pkg/utils"
)

// strategy describes how one wallet brand is acquired
type strategy struct {
	// verify rejects injected objects that only impersonate the brand
	verify func(Provider) bool
	// deepLink is nil for brands without a mobile app flow
	deepLink func(callbackURL, origin string) string
	// installURL is empty for brands without a desktop install redirect
	installURL string
}

var strategies = map[types.WalletID]strategy{
	types.WalletPhantom: {
		verify:     isPhantom,
		deepLink:   phantomDeepLink,
		installURL: constants.PhantomInstallURL,
	},
	types.WalletOKX: {
		deepLink:   okxDeepLink,
		installURL: constants.OKXInstallURL,
	},
	types.WalletBitget: {
		// https://docs.bitkeep.com/en/docs/guide/mobile/Deeplink.html
		deepLink:   bitgetDeepLink,
		installURL: constants.BitgetInstallURL,
	},
	types.WalletBackpack: {},
}

func isPhantom(p Provider) bool {
	id, ok := p.(PhantomIdentifier)
	return ok && id.IsPhantom()
}

func phantomDeepLink(callbackURL, origin string) string {
	return constants.PhantomDeepLinkBase + utils.EncodeURIComponent(callbackURL) +
		"?ref=" + utils.EncodeURIComponent(origin)
}

func okxDeepLink(callbackURL, _ string) string {
	return constants.OKXDeepLinkBase + utils.EncodeURIComponent(
		constants.OKXDappURLScheme+utils.EncodeURIComponent(callbackURL),
	)
}

func bitgetDeepLink(callbackURL, _ string) string {
	return constants.BitgetDeepLinkBase + utils.EncodeURIComponent(callbackURL)
}

// DeepLink returns the mobile deep link for wallet, or false when the brand
// has no mobile app flow
func DeepLink(wallet types.WalletID, callbackURL, origin string) (string, bool) {
	s, ok := strategies[wallet]
	if !ok || s.deepLink == nil {
		return "", false
	}
	return s.deepLink(callbackURL, origin), true
}

// InstallURL returns the desktop install page for wallet
func InstallURL(wallet types.WalletID) (string, bool) {
	s, ok := strategies[wallet]
	if !ok || s.installURL == "" {
		return "", false
	}
	return s.installURL, true
}
