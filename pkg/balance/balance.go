package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/metrics"
	"github.com/sigweihq/walletbridge/pkg/session"
	"github.com/sigweihq/walletbridge/pkg/solanarpc"
	"github.com/sigweihq/walletbridge/pkg/utils"
)

// Reader queries the SOL a wallet can actually move
type Reader struct {
	pool    *solanarpc.Pool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewReader creates a balance reader
func NewReader(pool *solanarpc.Pool, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{pool: pool, logger: logger}
}

// WithMetrics attaches metrics to the reader
func (r *Reader) WithMetrics(m *metrics.Metrics) *Reader {
	r.metrics = m
	return r
}

// ResolveAddress picks the address to query: address itself unless it is
// empty or an internal placeholder, in which case the session's connected
// wallet
func ResolveAddress(sess *session.Session, address string) string {
	if address != "" && !strings.HasPrefix(address, constants.AddressPlaceholderPrefix) {
		return address
	}
	return sess.Connected()
}

// SpendableBalance returns the balance in SOL minus the rent-exempt reserve
// and the network fee estimate. The result can be negative for nearly empty
// accounts. A nil sess falls back to the session attached to ctx.
func (r *Reader) SpendableBalance(ctx context.Context, sess *session.Session, address string) (float64, error) {
	if sess == nil {
		sess = session.FromContext(ctx)
	}
	target := ResolveAddress(sess, address)

	lamports, err := r.lamports(ctx, target)
	if err != nil {
		r.metrics.RecordBalanceQuery(false)
		r.logger.Warn("balance query failed", "address", target, "error", err)
		return 0, fmt.Errorf("unable to fetch balance for the provided wallet address: %s: %w", target, err)
	}
	r.metrics.RecordBalanceQuery(true)

	return utils.LamportsToSOL(lamports) - constants.RentExemptAmount - constants.NetworkFee, nil
}

func (r *Reader) lamports(ctx context.Context, address string) (uint64, error) {
	if address == "" {
		return 0, errors.New("no address given and no wallet connected")
	}
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %w", err)
	}

	var lamports uint64
	err = r.pool.Do(ctx, func(ctx context.Context, client solanarpc.Client) error {
		out, err := client.GetBalance(ctx, account, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		if out == nil {
			return errors.New("empty balance response")
		}
		lamports = out.Value
		return nil
	})
	return lamports, err
}
