package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/environment"
	"github.com/sigweihq/walletbridge/pkg/metrics"
	"github.com/sigweihq/walletbridge/pkg/providers"
	"github.com/sigweihq/walletbridge/pkg/solanarpc"
	"github.com/sigweihq/walletbridge/pkg/solanarpc/solanarpctest"
	"github.com/sigweihq/walletbridge/pkg/types"
)

const desktopUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"

// scriptedProvider fails on demand
type scriptedProvider struct {
	key        solana.PrivateKey
	connectErr error
	signErr    error
	// tamper rewrites the transfer amount before signing
	tamper bool
}

func (p *scriptedProvider) Connect(context.Context) error { return p.connectErr }

func (p *scriptedProvider) PublicKey() solana.PublicKey { return p.key.PublicKey() }

func (p *scriptedProvider) SignTransaction(_ context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if p.signErr != nil {
		return nil, p.signErr
	}
	if p.tamper {
		var err error
		tx, err = solana.NewTransaction(
			[]solana.Instruction{system.NewTransferInstruction(1, p.key.PublicKey(), p.key.PublicKey()).Build()},
			tx.Message.RecentBlockhash,
			solana.TransactionPayer(p.key.PublicKey()),
		)
		if err != nil {
			return nil, err
		}
	}
	_, err := tx.Sign(func(solana.PublicKey) *solana.PrivateKey { return &p.key })
	return tx, err
}

type harness struct {
	submitter *Submitter
	registry  *providers.Registry
	rpc       *solanarpctest.Client
	env       environment.Environment
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	fake := &solanarpctest.Client{
		Blockhash:            solana.Hash{1, 2, 3},
		LastValidBlockHeight: 200,
		BlockHeight:          100,
		Statuses: []*rpc.SignatureStatusesResult{
			nil,
			solanarpctest.Status(77, rpc.ConfirmationStatusProcessed, nil),
			solanarpctest.Status(77, rpc.ConfirmationStatusConfirmed, nil),
		},
	}
	registry := providers.NewRegistry()
	resolver := providers.NewResolver(registry, providers.PrintNavigator{W: io.Discard}, nil, logger)
	pool := solanarpc.NewPool(constants.NetworkSolanaDevnet, []string{"http://rpc.invalid"}, solanarpc.Options{
		Attempts:   1,
		RetryDelay: -1,
		Dialer:     fake.Dialer(),
	}, logger)

	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	submitter := NewSubmitter(resolver, pool, cfg, logger).WithMetrics(metrics.New(prometheus.NewRegistry()))

	return &harness{
		submitter: submitter,
		registry:  registry,
		rpc:       fake,
		env:       environment.Environment{UserAgent: desktopUA, Origin: "https://dapp.example.com", Injected: registry},
	}
}

func (h *harness) sentTransaction(t *testing.T) *solana.Transaction {
	t.Helper()
	require.Len(t, h.rpc.Sent, 1)
	tx, err := solana.TransactionFromBytes(h.rpc.Sent[0])
	require.NoError(t, err)
	return tx
}

func TestSubmitTransfersRoundedLamports(t *testing.T) {
	h := newHarness(t, Config{})
	wallet := solana.NewWallet()
	require.NoError(t, h.registry.RegisterProvider(types.WalletPhantom, providers.NewKeypairProvider(wallet.PrivateKey).ForWallet(types.WalletPhantom)))

	conf, err := h.submitter.Submit(context.Background(), h.env, types.TransferRequest{
		Wallet: types.WalletPhantom,
		Amount: 1.5,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1_500_000_000), conf.Lamports)
	assert.Equal(t, constants.ReceiverPublicKey, conf.Destination)
	assert.Equal(t, types.StatusConfirmed, conf.Status)
	assert.Equal(t, uint64(77), conf.Slot)

	tx := h.sentTransaction(t)
	assert.Equal(t, tx.Signatures[0].String(), conf.TransactionID)
	assert.Equal(t, solana.Hash{1, 2, 3}, tx.Message.RecentBlockhash)
	assert.Len(t, tx.Message.Instructions, 1)
	assert.NoError(t, tx.VerifySignatures())
	assert.NoError(t, verifySignedTransfer(tx, wallet.PublicKey(), solana.MustPublicKeyFromBase58(constants.ReceiverPublicKey), 1_500_000_000))

	assert.Equal(t, 3, h.rpc.StatusPolls)
	// blockhash, send, and one connection per poll
	assert.Equal(t, 5, h.rpc.Dials)
	assert.Equal(t, h.rpc.Dials, h.rpc.Closes)
}

func TestSendNativeTransferExplicitDestination(t *testing.T) {
	h := newHarness(t, Config{})
	wallet := solana.NewWallet()
	destination := solana.NewWallet().PublicKey()
	require.NoError(t, h.registry.RegisterProvider(types.WalletOKX, providers.NewKeypairProvider(wallet.PrivateKey)))

	sig := h.submitter.SendNativeTransfer(context.Background(), h.env, types.WalletOKX, 0.25, destination.String())
	require.NotEmpty(t, sig)

	tx := h.sentTransaction(t)
	assert.Equal(t, tx.Signatures[0].String(), sig)
	assert.NoError(t, verifySignedTransfer(tx, wallet.PublicKey(), destination, 250_000_000))
}

func TestSendNativeTransferToIdentifier(t *testing.T) {
	h := newHarness(t, Config{})
	wallet := solana.NewWallet()
	require.NoError(t, h.registry.RegisterProvider(types.WalletOKX, providers.NewKeypairProvider(wallet.PrivateKey)))

	conf, err := h.submitter.Submit(context.Background(), h.env, types.TransferRequest{
		Wallet:      types.WalletOKX,
		Amount:      0.5,
		Destination: "+2222222222",
	})
	require.NoError(t, err)
	assert.Equal(t, "5FvNyzr7RY7Eemw75bQFGjQqvctH9TFxy62zGRNiXXDL", conf.Destination)

	tx := h.sentTransaction(t)
	expected := solana.MustPublicKeyFromBase58("5FvNyzr7RY7Eemw75bQFGjQqvctH9TFxy62zGRNiXXDL")
	assert.NoError(t, verifySignedTransfer(tx, wallet.PublicKey(), expected, 500_000_000))
}

func TestSubmitWithFeeStrategy(t *testing.T) {
	fees := DefaultFeeStrategy()
	fees.Enabled = true
	h := newHarness(t, Config{FeeStrategy: fees})
	wallet := solana.NewWallet()
	require.NoError(t, h.registry.RegisterProvider(types.WalletBitget, providers.NewKeypairProvider(wallet.PrivateKey)))

	_, err := h.submitter.Submit(context.Background(), h.env, types.TransferRequest{Wallet: types.WalletBitget, Amount: 0.1})
	require.NoError(t, err)

	tx := h.sentTransaction(t)
	require.Len(t, tx.Message.Instructions, 3)
	program, err := tx.Message.ResolveProgramIDIndex(tx.Message.Instructions[0].ProgramIDIndex)
	require.NoError(t, err)
	assert.Equal(t, computebudget.ProgramID, program)
}

func TestSubmitFailures(t *testing.T) {
	rejected := fmt.Errorf("wallet said no: %w", providers.ErrUserRejected)

	tests := []struct {
		name     string
		setup    func(h *harness)
		request  types.TransferRequest
		expected types.FailureReason
		sent     int
	}{
		{
			name:     "no provider",
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1},
			expected: types.ReasonProviderUnavailable,
		},
		{
			name:     "backpack missing",
			request:  types.TransferRequest{Wallet: types.WalletBackpack, Amount: 1},
			expected: types.ReasonProviderUnavailable,
		},
		{
			name: "connect rejected",
			setup: func(h *harness) {
				_ = h.registry.RegisterProvider(types.WalletOKX, &scriptedProvider{key: solana.NewWallet().PrivateKey, connectErr: rejected})
			},
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1},
			expected: types.ReasonUserRejected,
		},
		{
			name: "connect broken",
			setup: func(h *harness) {
				_ = h.registry.RegisterProvider(types.WalletOKX, &scriptedProvider{key: solana.NewWallet().PrivateKey, connectErr: errors.New("extension crashed")})
			},
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1},
			expected: types.ReasonProviderError,
		},
		{
			name: "signing rejected",
			setup: func(h *harness) {
				_ = h.registry.RegisterProvider(types.WalletOKX, &scriptedProvider{key: solana.NewWallet().PrivateKey, signErr: rejected})
			},
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1},
			expected: types.ReasonUserRejected,
		},
		{
			name: "tampered transaction",
			setup: func(h *harness) {
				_ = h.registry.RegisterProvider(types.WalletOKX, &scriptedProvider{key: solana.NewWallet().PrivateKey, tamper: true})
			},
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1},
			expected: types.ReasonSigningFailed,
		},
		{
			name: "broadcast failure",
			setup: func(h *harness) {
				_ = h.registry.RegisterProvider(types.WalletOKX, providers.NewKeypairProvider(solana.NewWallet().PrivateKey))
				h.rpc.SendErr = errors.New("node is behind")
			},
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1},
			expected: types.ReasonBroadcastFailed,
			sent:     1,
		},
		{
			name: "chain error",
			setup: func(h *harness) {
				_ = h.registry.RegisterProvider(types.WalletOKX, providers.NewKeypairProvider(solana.NewWallet().PrivateKey))
				h.rpc.Statuses = []*rpc.SignatureStatusesResult{
					solanarpctest.Status(9, rpc.ConfirmationStatusConfirmed, map[string]interface{}{
						"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}},
					}),
				}
			},
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1},
			expected: types.ReasonChainError,
			sent:     1,
		},
		{
			name: "blockhash expired",
			setup: func(h *harness) {
				_ = h.registry.RegisterProvider(types.WalletOKX, providers.NewKeypairProvider(solana.NewWallet().PrivateKey))
				h.rpc.Statuses = nil
				h.rpc.BlockHeight = 201
			},
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1},
			expected: types.ReasonExpired,
			sent:     1,
		},
		{
			name:     "zero amount",
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 0},
			expected: types.ReasonInvalidRequest,
		},
		{
			name:     "NaN amount",
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: math.NaN()},
			expected: types.ReasonInvalidRequest,
		},
		{
			name:     "bad destination",
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1, Destination: "not-a-key"},
			expected: types.ReasonInvalidRequest,
		},
		{
			name:     "unmapped identifier",
			request:  types.TransferRequest{Wallet: types.WalletOKX, Amount: 1, Destination: "+9999999999"},
			expected: types.ReasonInvalidRequest,
		},
		{
			name:     "unknown wallet",
			request:  types.TransferRequest{Wallet: types.WalletID("metamask"), Amount: 1},
			expected: types.ReasonInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			if tt.setup != nil {
				tt.setup(h)
			}

			conf, err := h.submitter.Submit(context.Background(), h.env, tt.request)
			require.Error(t, err)
			assert.Nil(t, conf)
			assert.Equal(t, tt.expected, ReasonOf(err))

			var te *Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.expected, te.Reason)
			assert.Len(t, h.rpc.Sent, tt.sent)

			sig := h.submitter.SendNativeTransfer(context.Background(), h.env, tt.request.Wallet, tt.request.Amount, tt.request.Destination)
			assert.Empty(t, sig)
		})
	}
}

func TestSubmitUserRejectionUnwraps(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.registry.RegisterProvider(types.WalletOKX, &scriptedProvider{
		key:        solana.NewWallet().PrivateKey,
		connectErr: providers.ErrUserRejected,
	}))

	_, err := h.submitter.Submit(context.Background(), h.env, types.TransferRequest{Wallet: types.WalletOKX, Amount: 1})
	assert.ErrorIs(t, err, providers.ErrUserRejected)
	assert.Zero(t, h.rpc.Dials, "no RPC connection before the wallet connects")
}

func TestSubmitCancelledWhilePolling(t *testing.T) {
	h := newHarness(t, Config{PollInterval: time.Hour})
	require.NoError(t, h.registry.RegisterProvider(types.WalletOKX, providers.NewKeypairProvider(solana.NewWallet().PrivateKey)))
	h.rpc.Statuses = nil

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.submitter.Submit(ctx, h.env, types.TransferRequest{Wallet: types.WalletOKX, Amount: 1})
	assert.Equal(t, types.ReasonRPCUnavailable, ReasonOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "chain_error", (&Error{Reason: types.ReasonChainError}).Error())
	assert.Equal(t, "broadcast_failed: boom", fail(types.ReasonBroadcastFailed, errors.New("boom")).Error())
	assert.Equal(t, types.FailureReason(""), ReasonOf(nil))
	assert.Equal(t, types.FailureReason(""), ReasonOf(errors.New("plain")))
}

func TestFeeStrategyInstructions(t *testing.T) {
	assert.Nil(t, DefaultFeeStrategy().Instructions())

	fees := FeeStrategy{Enabled: true, UnitLimit: constants.ComputeUnitLimit}
	ixs := fees.Instructions()
	require.Len(t, ixs, 1)
	assert.Equal(t, computebudget.ProgramID, ixs[0].ProgramID())

	fees.UnitPriceMicroLamports = constants.ComputeUnitPriceMicroLamports
	assert.Len(t, fees.Instructions(), 2)
}
