package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sigweihq/walletbridge/pkg/providers"
	"github.com/sigweihq/walletbridge/pkg/types"
)

// ErrProviderUnavailable is wrapped when the wallet has no usable provider
var ErrProviderUnavailable = errors.New("wallet provider unavailable")

// Error is a failed transfer tagged with the step that failed
type Error struct {
	Reason types.FailureReason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(reason types.FailureReason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// ReasonOf returns the failure reason carried by err, or "" when err is
// nil or not a transfer error
func ReasonOf(err error) types.FailureReason {
	var te *Error
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}

// providerFailure classifies an error returned by a wallet prompt
func providerFailure(step string, err error) *Error {
	wrapped := fmt.Errorf("%s: %w", step, err)
	if errors.Is(err, providers.ErrUserRejected) {
		return fail(types.ReasonUserRejected, wrapped)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fail(types.ReasonProviderError, fmt.Errorf("%s timed out: %w", step, err))
	}
	return fail(types.ReasonProviderError, wrapped)
}
