package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigweihq/walletbridge/pkg/config"
	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/providers"
	"github.com/sigweihq/walletbridge/pkg/solanarpc/solanarpctest"
	"github.com/sigweihq/walletbridge/pkg/types"
	"github.com/sigweihq/walletbridge/pkg/utils"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15"

type testCLI struct {
	app        *app
	out        *bytes.Buffer
	errOut     *bytes.Buffer
	rpc        *solanarpctest.Client
	configPath string
}

// newTestCLI returns a CLI whose pending acquisitions live in a fresh
// directory
func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	body := fmt.Sprintf("pending:\n  store: file\n  dir: %q\n", t.TempDir())
	path := filepath.Join(t.TempDir(), "walletbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return newTestCLIWithConfig(t, path)
}

// newTestCLIWithConfig builds an independent app reading configPath
func newTestCLIWithConfig(t *testing.T, configPath string) *testCLI {
	t.Helper()
	for _, key := range []string{config.EnvRPCEndpoint, config.EnvNetwork, config.EnvLogLevel, config.EnvRedisAddr, config.EnvPendingDir} {
		t.Setenv(key, "")
	}

	fake := &solanarpctest.Client{
		Blockhash:            solana.Hash{9},
		LastValidBlockHeight: 500,
		BlockHeight:          10,
		Balances:             map[solana.PublicKey]uint64{},
		Statuses: []*rpc.SignatureStatusesResult{
			solanarpctest.Status(42, rpc.ConfirmationStatusFinalized, nil),
		},
	}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testCLI{
		app: &app{
			out:    out,
			errOut: errOut,
			dialer: fake.Dialer(),
		},
		out:        out,
		errOut:     errOut,
		rpc:        fake,
		configPath: configPath,
	}
}

func (c *testCLI) run(args ...string) (string, error) {
	c.out.Reset()
	c.errOut.Reset()
	cmd := newRootCmd(c.app)
	cmd.SetArgs(append(args, "--config", c.configPath))
	err := cmd.Execute()
	return c.out.String(), err
}

// writeKeypair stores key in solana-keygen format
func writeKeypair(t *testing.T, key solana.PrivateKey) string {
	t.Helper()
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// jsonTail decodes the JSON document that ends the output
func jsonTail(t *testing.T, out string, v any) {
	t.Helper()
	start := strings.Index(out, "{")
	require.GreaterOrEqual(t, start, 0, "no JSON in output: %s", out)
	require.NoError(t, json.Unmarshal([]byte(out[start:]), v))
}

func TestRandomCommand(t *testing.T) {
	c := newTestCLI(t)
	alnum := regexp.MustCompile(`^[A-Za-z0-9]+$`)

	out, err := c.run("random")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	assert.Len(t, token, constants.SessionTokenLength)
	assert.Regexp(t, alnum, token)

	out, err = c.run("random", "8")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 8)

	_, err = c.run("random", "eight")
	assert.Error(t, err)
}

func TestKeygenCommand(t *testing.T) {
	c := newTestCLI(t)
	path := filepath.Join(t.TempDir(), "key.hex")

	out, err := c.run("keygen", "--out", path)
	require.NoError(t, err)
	address := strings.TrimSpace(out)

	key, err := utils.LoadSolanaPrivateKey(path)
	require.NoError(t, err)
	assert.Equal(t, address, key.PublicKey().String())

	// The generated file signs transfers
	_, err = c.run("send", "--keypair", path, "--wallet", "bitget", "--amount", "0.1")
	require.NoError(t, err)
	assert.Len(t, c.rpc.Sent, 1)
}

func TestBalanceCommand(t *testing.T) {
	c := newTestCLI(t)
	address := solana.NewWallet().PublicKey()
	c.rpc.Balances[address] = 2 * solana.LAMPORTS_PER_SOL

	lamports := float64(2 * solana.LAMPORTS_PER_SOL)
	expected := lamports/float64(solana.LAMPORTS_PER_SOL) - constants.RentExemptAmount - constants.NetworkFee

	t.Run("explicit address", func(t *testing.T) {
		out, err := c.run("balance", address.String(), "--json")
		require.NoError(t, err)

		var got struct {
			Address   string  `json:"address"`
			Spendable float64 `json:"spendable"`
		}
		jsonTail(t, out, &got)
		assert.Equal(t, address.String(), got.Address)
		assert.Equal(t, expected, got.Spendable)
	})

	t.Run("placeholder falls back to connected", func(t *testing.T) {
		_, err := c.run("balance", constants.AddressPlaceholderPrefix+"pending", "--connected", address.String())
		require.NoError(t, err)
		assert.Equal(t, address, c.rpc.BalanceQueries[len(c.rpc.BalanceQueries)-1])
	})

	t.Run("invalid address", func(t *testing.T) {
		_, err := c.run("balance", "not-an-address")
		assert.Error(t, err)
	})
}

func TestSendCommand(t *testing.T) {
	c := newTestCLI(t)
	wallet := solana.NewWallet()
	keypair := writeKeypair(t, wallet.PrivateKey)
	dest := solana.NewWallet().PublicKey()

	out, err := c.run("send", "--keypair", keypair, "--wallet", "okx", "--amount", "0.25", "--to", dest.String(), "--json")
	require.NoError(t, err)

	var conf types.Confirmation
	jsonTail(t, out, &conf)
	assert.Equal(t, uint64(250_000_000), conf.Lamports)
	assert.Equal(t, dest.String(), conf.Destination)
	assert.Equal(t, types.StatusFinalized, conf.Status)
	assert.Equal(t, uint64(42), conf.Slot)

	require.Len(t, c.rpc.Sent, 1)
	tx, err := solana.TransactionFromBytes(c.rpc.Sent[0])
	require.NoError(t, err)
	assert.Equal(t, conf.TransactionID, tx.Signatures[0].String())
	assert.True(t, tx.Message.AccountKeys[0].Equals(wallet.PublicKey()))
}

func TestSendCommandToIdentifier(t *testing.T) {
	c := newTestCLI(t)
	keypair := writeKeypair(t, solana.NewWallet().PrivateKey)

	out, err := c.run("send", "--keypair", keypair, "--wallet", "phantom", "--amount", "0.1", "--to", "+2222222222", "--json")
	require.NoError(t, err)

	var conf types.Confirmation
	jsonTail(t, out, &conf)
	assert.Equal(t, "5FvNyzr7RY7Eemw75bQFGjQqvctH9TFxy62zGRNiXXDL", conf.Destination)
	require.Len(t, c.rpc.Sent, 1)
}

func TestSendCommandFailures(t *testing.T) {
	c := newTestCLI(t)
	keypair := writeKeypair(t, solana.NewWallet().PrivateKey)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown wallet", []string{"--wallet", "metamask", "--amount", "1"}},
		{"zero amount", []string{"--wallet", "phantom", "--amount", "0"}},
		{"invalid destination", []string{"--wallet", "phantom", "--amount", "1", "--to", "nowhere"}},
		{"unmapped identifier", []string{"--wallet", "phantom", "--amount", "1", "--to", "+9999999999"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"send", "--keypair", keypair}, tt.args...)
			_, err := c.run(args...)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, c.rpc.Sent)

	_, err := c.run("send", "--amount", "1")
	assert.Error(t, err, "keypair is required")
}

func TestResolveCommandDesktopInstall(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run("resolve", "--wallet", "okx")
	require.NoError(t, err)
	assert.Contains(t, out, "open "+constants.OKXInstallURL)
	assert.Contains(t, out, "okx pending (install)")
}

func TestResolveCommandInjected(t *testing.T) {
	c := newTestCLI(t)
	wallet := solana.NewWallet()
	keypair := writeKeypair(t, wallet.PrivateKey)

	out, err := c.run("resolve", "--wallet", "phantom", "--keypair", keypair, "--user-agent", iphoneUA)
	require.NoError(t, err)
	assert.Equal(t, "phantom available: "+wallet.PublicKey().String()+"\n", out)
}

func TestResolveThenComplete(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run("resolve",
		"--wallet", "phantom",
		"--user-agent", iphoneUA,
		"--callback", "https://dapp.example.com/pay",
		"--json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "redirect "+constants.PhantomDeepLinkBase), out)

	var view resolutionView
	jsonTail(t, out, &view)
	assert.False(t, view.Available)
	require.NotNil(t, view.Pending)
	assert.Equal(t, types.AcquisitionDeepLink, view.Pending.Kind)
	require.NotEmpty(t, view.Pending.SessionToken)

	// Wallet app opens the callback with the session token appended. The
	// redirect lands in a separate process.
	wallet := solana.NewWallet()
	keypair := writeKeypair(t, wallet.PrivateKey)
	other := newTestCLIWithConfig(t, c.configPath)
	out, err = other.run("complete", view.Pending.CallbackURL, "--keypair", keypair)
	require.NoError(t, err)
	assert.Equal(t, "phantom available: "+wallet.PublicKey().String()+"\n", out)

	// Consumed
	_, err = c.run("complete", view.Pending.SessionToken)
	assert.ErrorIs(t, err, providers.ErrPendingNotFound)
}

func TestCompleteUsesPendingWallet(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run("resolve", "--wallet", "okx", "--user-agent", iphoneUA, "--callback", "https://dapp.example.com/pay", "--json")
	require.NoError(t, err)
	var view resolutionView
	jsonTail(t, out, &view)
	require.NotNil(t, view.Pending)

	wallet := solana.NewWallet()
	keypair := writeKeypair(t, wallet.PrivateKey)
	out, err = newTestCLIWithConfig(t, c.configPath).run("complete", view.Pending.SessionToken, "--keypair", keypair)
	require.NoError(t, err)
	assert.Equal(t, "okx available: "+wallet.PublicKey().String()+"\n", out)
}

func TestCompleteInstallByID(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run("resolve", "--wallet", "bitget", "--json")
	require.NoError(t, err)
	var view resolutionView
	jsonTail(t, out, &view)
	require.NotNil(t, view.Pending)
	assert.Equal(t, types.AcquisitionInstall, view.Pending.Kind)

	// Still not installed
	out, err = newTestCLIWithConfig(t, c.configPath).run("complete", view.Pending.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "bitget pending (install) id="+view.Pending.ID), out)
}

func TestMetricsFlag(t *testing.T) {
	c := newTestCLI(t)

	_, err := c.run("resolve", "--wallet", "bitget", "--metrics")
	require.NoError(t, err)
	metricsOut := c.errOut.String()
	assert.Contains(t, metricsOut, "# TYPE walletbridge_provider_resolutions_total counter")
	assert.Contains(t, metricsOut, `provider_resolutions_total{outcome="install",wallet="bitget"} 1`)
}

func TestInvalidLogLevel(t *testing.T) {
	c := newTestCLI(t)
	_, err := c.run("random", "--log-level", "loud")
	assert.Error(t, err)
}
