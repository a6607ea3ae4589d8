package solanarpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/sigweihq/walletbridge/pkg/constants"
)

// Client is the subset of the Solana JSON-RPC client used by wallet operations
type Client interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendRawTransactionWithOpts(ctx context.Context, rawTx []byte, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	Close() error
}

var _ Client = (*rpc.Client)(nil)

// Dialer opens a client for an endpoint
type Dialer func(endpoint string) Client

// DefaultDialer opens a JSON-RPC client over HTTP
func DefaultDialer(endpoint string) Client {
	return rpc.New(endpoint)
}

// ErrNoEndpoints is returned when a pool has nothing to dial
var ErrNoEndpoints = errors.New("no RPC endpoints configured")

// permanentError stops the retry loop
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying on another endpoint
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Options tunes a Pool
type Options struct {
	// Attempts is the number of calls made before giving up, cycling
	// through endpoints. Zero means MaxRetries.
	Attempts int
	// RetryDelay is the base backoff step between attempts. Zero means
	// DelayBetweenRPCCalls; a negative value disables the delay.
	RetryDelay time.Duration
	// CallTimeout bounds a single call. Zero means RPCCallTimeout.
	CallTimeout time.Duration
	Dialer      Dialer
}

// Pool dials a fresh client per call against a set of endpoints for one
// network. Nothing is kept open between calls.
type Pool struct {
	network   string
	endpoints []string
	opts      Options
	logger    *slog.Logger
}

// NewPool creates a pool. With no endpoints the network's official
// endpoints are used.
func NewPool(network string, endpoints []string, opts Options, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if len(endpoints) == 0 {
		endpoints = constants.OfficialRPCEndpoints[network]
	}
	if opts.Attempts <= 0 {
		opts.Attempts = constants.MaxRetries
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = constants.DelayBetweenRPCCalls * time.Millisecond
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = constants.RPCCallTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = DefaultDialer
	}
	return &Pool{
		network:   network,
		endpoints: append([]string(nil), endpoints...),
		opts:      opts,
		logger:    logger,
	}
}

// Network returns the network the pool talks to
func (p *Pool) Network() string {
	return p.network
}

// Endpoints returns a copy of the configured endpoints
func (p *Pool) Endpoints() []string {
	return append([]string(nil), p.endpoints...)
}

// Do runs fn against a freshly dialled client, retrying with linear backoff
// and cycling through endpoints from a random start. Errors wrapped with
// Permanent and context errors end the loop immediately.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context, client Client) error) error {
	if len(p.endpoints) == 0 {
		return fmt.Errorf("%w for network %s", ErrNoEndpoints, p.network)
	}

	startIdx := rand.Intn(len(p.endpoints))
	var lastErr error

	for attempt := 0; attempt < p.opts.Attempts; attempt++ {
		if attempt > 0 && p.opts.RetryDelay > 0 {
			delay := time.Duration(attempt+1) * p.opts.RetryDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		endpoint := p.endpoints[(startIdx+attempt)%len(p.endpoints)]
		err := p.call(ctx, endpoint, fn)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		p.logger.Warn("RPC call failed", "network", p.network, "endpoint", endpoint, "attempt", attempt+1, "error", err)
		lastErr = err
	}

	return fmt.Errorf("all RPC endpoints failed for network %s after %d attempts: %w", p.network, p.opts.Attempts, lastErr)
}

func (p *Pool) call(ctx context.Context, endpoint string, fn func(ctx context.Context, client Client) error) error {
	client := p.opts.Dialer(endpoint)
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	return fn(callCtx, client)
}
