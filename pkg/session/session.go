// Package session carries the connected-wallet state that balance queries
// and deep-link callbacks need. A Session is created by the caller and passed
// explicitly; nothing in this module reads it from global state.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/utils"
)

// QueryParam is the callback URL parameter holding the session token.
const QueryParam = "session"

// ErrNoSessionToken indicates a callback URL without a session token.
var ErrNoSessionToken = errors.New("callback URL has no session token")

// Session is the per-user state threaded through wallet operations.
type Session struct {
	// ConnectedAddress is the address of the wallet the user connected, if any.
	ConnectedAddress string `json:"connectedAddress,omitempty"`
	// Token correlates a deep-link round trip with this session.
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

// New creates a session with a fresh random token.
func New(connectedAddress string) (*Session, error) {
	token, err := utils.GenerateSecureRandomString(constants.SessionTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	return &Session{
		ConnectedAddress: connectedAddress,
		Token:            token,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// Connected returns the connected address, tolerating a nil session.
func (s *Session) Connected() string {
	if s == nil {
		return ""
	}
	return s.ConnectedAddress
}

// URLWithSession returns callbackURL with the session token appended as the
// last query parameter. Other parameters keep their order and encoding; a
// previous session parameter is dropped.
func URLWithSession(callbackURL, token string) (string, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("invalid callback URL: %w", err)
	}

	params := make([]string, 0, 4)
	for _, param := range strings.Split(u.RawQuery, "&") {
		if param == "" {
			continue
		}
		key, _, _ := strings.Cut(param, "=")
		if name, err := url.QueryUnescape(key); err == nil && name == QueryParam {
			continue
		}
		params = append(params, param)
	}
	params = append(params, QueryParam+"="+url.QueryEscape(token))
	u.RawQuery = strings.Join(params, "&")
	return u.String(), nil
}

// TokenFromURL extracts the session token from a callback URL.
func TokenFromURL(callbackURL string) (string, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("invalid callback URL: %w", err)
	}
	token := u.Query().Get(QueryParam)
	if token == "" {
		return "", ErrNoSessionToken
	}
	return token, nil
}

type contextKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session attached to ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
