// Package solanarpctest provides an in-memory solanarpc.Client for tests.
package solanarpctest

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/sigweihq/walletbridge/pkg/solanarpc"
)

// Client records calls and serves canned responses. Function fields
// override the defaults.
type Client struct {
	mu sync.Mutex

	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	BlockHeight          uint64
	Balances             map[solana.PublicKey]uint64

	// Statuses are returned by successive GetSignatureStatuses calls; the last
	// entry repeats. A nil entry means "not yet seen".
	Statuses []*rpc.SignatureStatusesResult

	SendErr    error
	BalanceErr error

	SendFunc func(rawTx []byte) (solana.Signature, error)

	Sent           [][]byte
	BalanceQueries []solana.PublicKey
	StatusPolls    int
	Dials          int
	Closes         int
}

var _ solanarpc.Client = (*Client)(nil)

// Dialer returns a solanarpc.Dialer that always yields c
func (c *Client) Dialer() solanarpc.Dialer {
	return func(string) solanarpc.Client {
		c.mu.Lock()
		c.Dials++
		c.mu.Unlock()
		return c
	}
}

func (c *Client) GetLatestBlockhash(ctx context.Context, _ rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            c.Blockhash,
			LastValidBlockHeight: c.LastValidBlockHeight,
		},
	}, nil
}

func (c *Client) SendRawTransactionWithOpts(ctx context.Context, rawTx []byte, _ rpc.TransactionOpts) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	c.mu.Lock()
	c.Sent = append(c.Sent, rawTx)
	sendErr, sendFunc := c.SendErr, c.SendFunc
	c.mu.Unlock()

	if sendErr != nil {
		return solana.Signature{}, sendErr
	}
	if sendFunc != nil {
		return sendFunc(rawTx)
	}

	tx, err := solana.TransactionFromBytes(rawTx)
	if err != nil {
		return solana.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction has no signatures")
	}
	return tx.Signatures[0], nil
}

func (c *Client) GetSignatureStatuses(ctx context.Context, _ bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var status *rpc.SignatureStatusesResult
	if len(c.Statuses) > 0 {
		idx := c.StatusPolls
		if idx >= len(c.Statuses) {
			idx = len(c.Statuses) - 1
		}
		status = c.Statuses[idx]
	}
	c.StatusPolls++

	out := &rpc.GetSignatureStatusesResult{}
	for range signatures {
		out.Value = append(out.Value, status)
	}
	return out, nil
}

func (c *Client) GetBlockHeight(ctx context.Context, _ rpc.CommitmentType) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BlockHeight, nil
}

func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BalanceQueries = append(c.BalanceQueries, account)
	if c.BalanceErr != nil {
		return nil, c.BalanceErr
	}
	return &rpc.GetBalanceResult{Value: c.Balances[account]}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closes++
	return nil
}

// Status builds a signature status at the given commitment
func Status(slot uint64, status rpc.ConfirmationStatusType, txErr interface{}) *rpc.SignatureStatusesResult {
	return &rpc.SignatureStatusesResult{
		Slot:               slot,
		Err:                txErr,
		ConfirmationStatus: status,
	}
}
