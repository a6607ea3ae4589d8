package cli

import (
	"context"
	"fmt"

	"github.com/sigweihq/walletbridge/pkg/environment"
	"github.com/sigweihq/walletbridge/pkg/providers"
	"github.com/sigweihq/walletbridge/pkg/types"
	"github.com/sigweihq/walletbridge/pkg/utils"
)

// desktopUserAgent is used when no user agent is given on the command line
const desktopUserAgent = "Mozilla/5.0 (X11; Linux x86_64) walletbridge"

// walletFlags are the flags shared by commands that resolve a wallet
type walletFlags struct {
	wallet    string
	keypair   string
	userAgent string
	origin    string
	callback  string
}

// resolver builds a resolver whose registry holds the local keypair, if
// one was given, under the selected wallet brand. With no brand selected
// the keypair answers for every brand. Call the returned func when done.
func (a *app) resolver(ctx context.Context, flags walletFlags) (*providers.Resolver, func(), error) {
	registry := providers.NewRegistry()

	if flags.keypair != "" {
		key, err := utils.LoadSolanaPrivateKey(flags.keypair)
		if err != nil {
			return nil, nil, fmt.Errorf("load keypair: %w", err)
		}

		wallets := types.AllWallets
		if flags.wallet != "" {
			wallet, err := types.ParseWalletID(flags.wallet)
			if err != nil {
				return nil, nil, err
			}
			wallets = []types.WalletID{wallet}
		}
		for _, wallet := range wallets {
			provider := providers.NewKeypairProvider(key).ForWallet(wallet)
			if err := registry.RegisterProvider(wallet, provider); err != nil {
				return nil, nil, err
			}
		}
	}

	store, release, err := a.pendingStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	navigator := providers.PrintNavigator{W: a.out}
	resolver := providers.NewResolver(registry, navigator, store, a.logger).WithMetrics(a.metrics)
	return resolver, release, nil
}

func (a *app) environment(resolver *providers.Resolver, flags walletFlags) environment.Environment {
	userAgent := flags.userAgent
	if userAgent == "" {
		userAgent = desktopUserAgent
	}
	return environment.Environment{
		UserAgent: userAgent,
		Origin:    flags.origin,
		Injected:  resolver.Registry(),
	}
}
