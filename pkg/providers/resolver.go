package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/environment"
	"github.com/sigweihq/walletbridge/pkg/metrics"
	"github.com/sigweihq/walletbridge/pkg/session"
	"github.com/sigweihq/walletbridge/pkg/types"
	"github.com/sigweihq/walletbridge/pkg/utils"
)

// Resolution is the outcome of a provider lookup. Provider is set when the
// wallet is usable now; Pending is set when acquisition was handed to an
// external navigation. Both nil means the wallet is simply not available.
type Resolution struct {
	Wallet   types.WalletID
	Provider Provider
	Pending  *types.PendingAcquisition
}

// Available reports whether a provider can be used immediately
func (r *Resolution) Available() bool {
	return r != nil && r.Provider != nil
}

// Resolver finds the signing provider for a wallet brand, or starts the
// deep-link / install flow when the wallet is not injected
type Resolver struct {
	registry  *Registry
	navigator Navigator
	pending   PendingStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewResolver creates a resolver. A nil pending store defaults to an
// in-memory store; a nil logger defaults to slog.Default().
func NewResolver(registry *Registry, navigator Navigator, pending PendingStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if pending == nil {
		pending = NewMemoryPendingStore(constants.PendingAcquisitionTTL)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{
		registry:  registry,
		navigator: navigator,
		pending:   pending,
		logger:    logger,
		now:       time.Now,
	}
}

// WithMetrics attaches metrics to the resolver
func (r *Resolver) WithMetrics(m *metrics.Metrics) *Resolver {
	r.metrics = m
	return r
}

// Registry returns the registry the resolver looks providers up in
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// lookup returns the injected provider for wallet if it passes the brand check
func (r *Resolver) lookup(wallet types.WalletID) (Provider, bool) {
	s, ok := strategies[wallet]
	if !ok {
		return nil, false
	}
	provider, ok := r.registry.Lookup(wallet)
	if !ok {
		return nil, false
	}
	if s.verify != nil && !s.verify(provider) {
		r.logger.Debug("injected provider failed brand check", "wallet", wallet)
		return nil, false
	}
	return provider, true
}

// Resolve returns the wallet's provider when it is injected, regardless of
// device. Otherwise it redirects mobile clients to the wallet app through a
// deep link, or opens the install page on desktop, and returns the pending
// acquisition. Not finding a provider is not an error.
func (r *Resolver) Resolve(ctx context.Context, env environment.Environment, wallet types.WalletID, callbackURL string) (*Resolution, error) {
	s, ok := strategies[wallet]
	if !ok {
		r.metrics.RecordResolution(wallet.String(), metrics.ResolutionError)
		return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, wallet)
	}

	if provider, ok := r.lookup(wallet); ok {
		r.logger.Debug("using injected provider", "wallet", wallet)
		r.metrics.RecordResolution(wallet.String(), metrics.ResolutionInjected)
		return &Resolution{Wallet: wallet, Provider: provider}, nil
	}

	if env.IsMobileDevice() {
		if app, ok := env.ClassifyMobileWalletApp(); ok {
			r.logger.Debug("request from wallet in-app browser", "app", app, "wallet", wallet)
		}
		if s.deepLink == nil {
			r.metrics.RecordResolution(wallet.String(), metrics.ResolutionUnavailable)
			return &Resolution{Wallet: wallet}, nil
		}
		pending, err := r.startDeepLink(ctx, env, wallet, callbackURL)
		if err != nil {
			r.metrics.RecordResolution(wallet.String(), metrics.ResolutionError)
			return nil, err
		}
		r.metrics.RecordResolution(wallet.String(), metrics.ResolutionDeepLink)
		return &Resolution{Wallet: wallet, Pending: pending}, nil
	}

	if s.installURL == "" {
		r.metrics.RecordResolution(wallet.String(), metrics.ResolutionUnavailable)
		return &Resolution{Wallet: wallet}, nil
	}
	pending, err := r.startInstall(ctx, wallet, s.installURL)
	if err != nil {
		r.metrics.RecordResolution(wallet.String(), metrics.ResolutionError)
		return nil, err
	}
	r.metrics.RecordResolution(wallet.String(), metrics.ResolutionInstall)
	return &Resolution{Wallet: wallet, Pending: pending}, nil
}

func (r *Resolver) startDeepLink(ctx context.Context, env environment.Environment, wallet types.WalletID, callbackURL string) (*types.PendingAcquisition, error) {
	if callbackURL == "" {
		callbackURL = env.Origin
	}
	if err := utils.ValidateCallbackURL(callbackURL); err != nil {
		return nil, err
	}

	token, err := utils.GenerateSecureRandomString(constants.SessionTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	sessionURL, err := session.URLWithSession(callbackURL, token)
	if err != nil {
		return nil, err
	}

	link, _ := DeepLink(wallet, sessionURL, env.Origin)
	pending := &types.PendingAcquisition{
		ID:           uuid.NewString(),
		Wallet:       wallet,
		Kind:         types.AcquisitionDeepLink,
		URL:          link,
		SessionToken: token,
		CallbackURL:  sessionURL,
		Origin:       env.Origin,
		CreatedAt:    r.now().UTC(),
	}
	if err := r.pending.Save(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to save pending acquisition: %w", err)
	}

	if r.navigator != nil {
		if err := r.navigator.Redirect(ctx, link); err != nil {
			r.discard(ctx, pending)
			return nil, fmt.Errorf("failed to redirect to %s app: %w", wallet, err)
		}
	}
	r.logger.Info("redirecting to wallet app", "wallet", wallet, "pending_id", pending.ID)
	return pending, nil
}

func (r *Resolver) startInstall(ctx context.Context, wallet types.WalletID, installURL string) (*types.PendingAcquisition, error) {
	pending := &types.PendingAcquisition{
		ID:        uuid.NewString(),
		Wallet:    wallet,
		Kind:      types.AcquisitionInstall,
		URL:       installURL,
		CreatedAt: r.now().UTC(),
	}
	if err := r.pending.Save(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to save pending acquisition: %w", err)
	}

	if r.navigator != nil {
		if err := r.navigator.OpenTab(ctx, installURL); err != nil {
			r.discard(ctx, pending)
			return nil, fmt.Errorf("failed to open %s install page: %w", wallet, err)
		}
	}
	r.logger.Info("wallet not installed, opened install page", "wallet", wallet, "pending_id", pending.ID)
	return pending, nil
}

// discard drops a pending acquisition whose navigation never happened
func (r *Resolver) discard(ctx context.Context, pending *types.PendingAcquisition) {
	if _, err := r.pending.Take(ctx, PendingKey(pending)); err != nil {
		r.logger.Warn("failed to discard pending acquisition", "pending_id", pending.ID, "error", err)
	}
}

// CompleteRedirect resolves a pending acquisition once the user is back.
// key is the session token carried by the callback URL, or the pending id
// for install flows. The pending record is consumed; Provider is nil when
// the wallet is still not injected.
func (r *Resolver) CompleteRedirect(ctx context.Context, key string) (*Resolution, error) {
	if key == "" {
		return nil, session.ErrNoSessionToken
	}

	pending, err := r.pending.Take(ctx, key)
	if err != nil {
		if errors.Is(err, ErrPendingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load pending acquisition: %w", err)
	}

	resolution := &Resolution{Wallet: pending.Wallet, Pending: pending}
	if provider, ok := r.lookup(pending.Wallet); ok {
		resolution.Provider = provider
	}
	r.metrics.RecordCompletion(pending.Wallet.String(), resolution.Available())
	r.logger.Info("completed wallet redirect",
		"wallet", pending.Wallet,
		"pending_id", pending.ID,
		"available", resolution.Available())
	return resolution, nil
}

// CompleteCallback is CompleteRedirect keyed by the session token found in callbackURL
func (r *Resolver) CompleteCallback(ctx context.Context, callbackURL string) (*Resolution, error) {
	token, err := session.TokenFromURL(callbackURL)
	if err != nil {
		return nil, err
	}
	return r.CompleteRedirect(ctx, token)
}
