package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/google/uuid"

	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/environment"
	"github.com/sigweihq/walletbridge/pkg/metrics"
	"github.com/sigweihq/walletbridge/pkg/providers"
	"github.com/sigweihq/walletbridge/pkg/recipients"
	"github.com/sigweihq/walletbridge/pkg/solanarpc"
	"github.com/sigweihq/walletbridge/pkg/types"
	"github.com/sigweihq/walletbridge/pkg/utils"
)

// ProviderResolver yields the provider for a wallet brand
type ProviderResolver interface {
	Resolve(ctx context.Context, env environment.Environment, wallet types.WalletID, callbackURL string) (*providers.Resolution, error)
}

// Config tunes a Submitter
type Config struct {
	// PollInterval is the delay between confirmation polls
	PollInterval time.Duration
	// PromptTimeout bounds each wallet prompt (connect, sign)
	PromptTimeout time.Duration
	// CallbackURL is handed to the resolver when the wallet must be acquired
	// through a deep link
	CallbackURL string
	FeeStrategy FeeStrategy
}

// DefaultConfig returns the stock submitter settings
func DefaultConfig() Config {
	return Config{
		PollInterval:  constants.ConfirmationPollInterval,
		PromptTimeout: constants.ProviderPromptTimeout,
		FeeStrategy:   DefaultFeeStrategy(),
	}
}

// Submitter builds, signs, broadcasts and confirms native SOL transfers
type Submitter struct {
	resolver ProviderResolver
	pool     *solanarpc.Pool
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSubmitter creates a submitter. Zero durations in cfg take their defaults.
func NewSubmitter(resolver ProviderResolver, pool *solanarpc.Pool, cfg Config, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.ConfirmationPollInterval
	}
	if cfg.PromptTimeout <= 0 {
		cfg.PromptTimeout = constants.ProviderPromptTimeout
	}
	return &Submitter{
		resolver: resolver,
		pool:     pool,
		cfg:      cfg,
		logger:   logger,
	}
}

// WithMetrics attaches metrics to the submitter
func (s *Submitter) WithMetrics(m *metrics.Metrics) *Submitter {
	s.metrics = m
	return s
}

// SendNativeTransfer submits a transfer and returns its signature, or ""
// on any failure. The failure reason is logged.
func (s *Submitter) SendNativeTransfer(ctx context.Context, env environment.Environment, wallet types.WalletID, amount float64, destination string) string {
	confirmation, err := s.Submit(ctx, env, types.TransferRequest{
		Wallet:      wallet,
		Amount:      amount,
		Destination: destination,
	})
	if err != nil {
		s.logger.Error("native transfer failed",
			"wallet", wallet,
			"reason", ReasonOf(err),
			"error", err)
		return ""
	}
	return confirmation.TransactionID
}

// Submit runs the full transfer: resolve and connect the wallet, build the
// transfer, have the wallet sign it, broadcast and wait for confirmation.
// Every failure is an *Error carrying a FailureReason.
func (s *Submitter) Submit(ctx context.Context, env environment.Environment, req types.TransferRequest) (confirmation *types.Confirmation, err error) {
	start := time.Now()
	logger := s.logger.With("request_id", uuid.NewString(), "wallet", req.Wallet)
	defer func() {
		status := "success"
		if err != nil {
			status = string(ReasonOf(err))
		}
		s.metrics.RecordTransfer(req.Wallet.String(), status, time.Since(start))
	}()

	lamports, destination, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	provider, err := s.acquireProvider(ctx, env, req.Wallet)
	if err != nil {
		return nil, err
	}
	from := provider.PublicKey()
	if from.IsZero() {
		return nil, fail(types.ReasonProviderError, errors.New("wallet returned no public key"))
	}
	logger = logger.With("from", from.String(), "to", destination.String(), "lamports", lamports)

	instructions := append(s.cfg.FeeStrategy.Instructions(),
		system.NewTransferInstruction(lamports, from, destination).Build())

	var latest *rpc.LatestBlockhashResult
	err = s.pool.Do(ctx, func(ctx context.Context, client solanarpc.Client) error {
		out, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return err
		}
		if out == nil || out.Value == nil {
			return errors.New("empty blockhash response")
		}
		latest = out.Value
		return nil
	})
	if err != nil {
		return nil, fail(types.ReasonRPCUnavailable, fmt.Errorf("failed to get latest blockhash: %w", err))
	}

	tx, err := solana.NewTransaction(instructions, latest.Blockhash, solana.TransactionPayer(from))
	if err != nil {
		return nil, fail(types.ReasonInvalidRequest, fmt.Errorf("failed to create transaction: %w", err))
	}

	signCtx, cancel := context.WithTimeout(ctx, s.cfg.PromptTimeout)
	signed, err := provider.SignTransaction(signCtx, tx)
	cancel()
	if err != nil {
		return nil, providerFailure("sign transaction", err)
	}
	if err := verifySignedTransfer(signed, from, destination, lamports); err != nil {
		return nil, fail(types.ReasonSigningFailed, err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fail(types.ReasonSigningFailed, fmt.Errorf("failed to serialize transaction: %w", err))
	}

	var signature solana.Signature
	err = s.pool.Do(ctx, func(ctx context.Context, client solanarpc.Client) error {
		sig, err := client.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			// Preflight rejections come back as RPC errors; another endpoint
			// would reject the same bytes.
			var rpcErr *jsonrpc.RPCError
			if errors.As(err, &rpcErr) {
				return solanarpc.Permanent(err)
			}
			return err
		}
		signature = sig
		return nil
	})
	if err != nil {
		return nil, fail(types.ReasonBroadcastFailed, fmt.Errorf("failed to broadcast transaction: %w", err))
	}
	logger.Info("transaction broadcast", "signature", signature.String())

	status, err := s.waitForConfirmation(ctx, signature, latest.LastValidBlockHeight)
	if err != nil {
		return nil, err
	}

	logger.Info("transaction confirmed",
		"signature", signature.String(),
		"slot", status.Slot,
		"status", status.ConfirmationStatus,
		"duration", time.Since(start))

	return &types.Confirmation{
		TransactionID: signature.String(),
		Slot:          status.Slot,
		Status:        types.ConfirmationStatus(status.ConfirmationStatus),
		Lamports:      lamports,
		Destination:   destination.String(),
	}, nil
}

func validateRequest(req types.TransferRequest) (uint64, solana.PublicKey, error) {
	if !req.Wallet.Valid() {
		return 0, solana.PublicKey{}, fail(types.ReasonInvalidRequest, fmt.Errorf("%w: %s", providers.ErrUnknownWallet, req.Wallet))
	}

	lamports, err := utils.SOLToLamports(req.Amount)
	if err != nil {
		return 0, solana.PublicKey{}, fail(types.ReasonInvalidRequest, err)
	}

	address := req.Destination
	if address == "" {
		address = constants.ReceiverPublicKey
	}
	if recipients.IsIdentifier(address) {
		destination, err := recipients.Lookup(address)
		if err != nil {
			return 0, solana.PublicKey{}, fail(types.ReasonInvalidRequest, err)
		}
		return lamports, destination, nil
	}
	destination, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, solana.PublicKey{}, fail(types.ReasonInvalidRequest, fmt.Errorf("invalid destination address %q: %w", address, err))
	}
	return lamports, destination, nil
}

// acquireProvider resolves the wallet and connects to it. The provider is
// looked up per call and used only after Connect succeeds.
func (s *Submitter) acquireProvider(ctx context.Context, env environment.Environment, wallet types.WalletID) (providers.Provider, error) {
	resolution, err := s.resolver.Resolve(ctx, env, wallet, s.cfg.CallbackURL)
	if err != nil {
		return nil, fail(types.ReasonProviderUnavailable, fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}
	if !resolution.Available() {
		if resolution.Pending != nil {
			return nil, fail(types.ReasonProviderUnavailable,
				fmt.Errorf("%w: acquisition pending via %s", ErrProviderUnavailable, resolution.Pending.Kind))
		}
		return nil, fail(types.ReasonProviderUnavailable, fmt.Errorf("%w: %s", ErrProviderUnavailable, wallet))
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.PromptTimeout)
	defer cancel()
	if err := resolution.Provider.Connect(connectCtx); err != nil {
		return nil, providerFailure("connect", err)
	}
	return resolution.Provider, nil
}

// waitForConfirmation polls the signature status until it reaches confirmed
// or finalized, fails on chain, or the blockhash expires
func (s *Submitter) waitForConfirmation(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) (*rpc.SignatureStatusesResult, error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var (
			status *rpc.SignatureStatusesResult
			height uint64
		)
		err := s.pool.Do(ctx, func(ctx context.Context, client solanarpc.Client) error {
			out, err := client.GetSignatureStatuses(ctx, false, signature)
			if err != nil {
				return err
			}
			status = nil
			if out != nil && len(out.Value) > 0 {
				status = out.Value[0]
			}
			if status != nil && (status.Err != nil || isConfirmed(status)) {
				return nil
			}
			height, err = client.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
			return err
		})
		if err != nil {
			return nil, fail(types.ReasonRPCUnavailable, fmt.Errorf("failed to poll signature %s: %w", signature, err))
		}

		if status != nil {
			if status.Err != nil {
				return nil, fail(types.ReasonChainError, fmt.Errorf("transaction %s failed: %v", signature, status.Err))
			}
			if isConfirmed(status) {
				return status, nil
			}
		}
		if height > lastValidBlockHeight {
			return nil, fail(types.ReasonExpired,
				fmt.Errorf("transaction %s expired at block height %d (last valid %d)", signature, height, lastValidBlockHeight))
		}

		select {
		case <-ctx.Done():
			return nil, fail(types.ReasonRPCUnavailable, fmt.Errorf("confirmation of %s interrupted: %w", signature, ctx.Err()))
		case <-ticker.C:
		}
	}
}

func isConfirmed(status *rpc.SignatureStatusesResult) bool {
	return status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized
}
