// Package token resolves valid provider access tokens, refreshing on
// demand and coalescing concurrent refreshes for the same connection.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/kv"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/state"
)

// Kind classifies a refresh failure for the caller's recovery branch.
type Kind int

const (
	KindTransient Kind = iota
	KindRefreshInvalid
	KindAccessRevoked
	KindRateLimited
	KindNoConnection
)

// Error wraps a classified token-service failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

// Refresher exchanges a refresh token for a new access token against a
// single provider's OAuth endpoint.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// ClassifiableError carries a provider-specific refresh error already
// mapped to a Kind. Refreshers return their errors wrapped in it so this
// service never parses provider response bodies itself.
type ClassifiableError struct {
	Kind Kind
	Err  error
}

func (e *ClassifiableError) Error() string { return e.Err.Error() }
func (e *ClassifiableError) Unwrap() error { return e.Err }

const defaultRefreshBuffer = 60 * time.Minute

const maxBackoffMinutes = 240

type backoffState struct {
	Attempt       int
	NextAllowedAt int64
}

// Service resolves valid access tokens for (user, provider) pairs.
type Service struct {
	connections   *state.ProviderConnectionRepo
	refreshers    map[model.Provider]Refresher
	kv            kv.Store
	clock         clock.Clock
	refreshBuffer time.Duration
	sf            singleflight.Group
}

// New creates a Service. refreshBuffer defaults to 60 minutes when zero.
func New(connections *state.ProviderConnectionRepo, refreshers map[model.Provider]Refresher, store kv.Store, c clock.Clock, refreshBuffer time.Duration) *Service {
	if c == nil {
		c = clock.System{}
	}
	if refreshBuffer <= 0 {
		refreshBuffer = defaultRefreshBuffer
	}
	return &Service{
		connections:   connections,
		refreshers:    refreshers,
		kv:            store,
		clock:         c,
		refreshBuffer: refreshBuffer,
	}
}

func backoffKey(userID string, provider model.Provider) string {
	return fmt.Sprintf("token:backoff:%s:%s", userID, provider)
}

// GetValidToken returns a usable access token for (userID, provider),
// refreshing it first if it is within the refresh buffer of expiry.
func (s *Service) GetValidToken(ctx context.Context, userID string, provider model.Provider) (string, error) {
	conn, err := s.connections.GetByUserProvider(userID, provider)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return "", newError(KindNoConnection, fmt.Errorf("no connection for %s/%s", userID, provider))
		}
		return "", newError(KindTransient, err)
	}
	if conn.Status != model.ConnectionStatusActive {
		return "", newError(KindNoConnection, fmt.Errorf("connection for %s/%s is %s", userID, provider, conn.Status))
	}

	now := time.UnixMilli(s.clock.NowMillis())
	expiresAt := time.UnixMilli(conn.TokenExpiresAt)
	if expiresAt.Sub(now) > s.refreshBuffer {
		return conn.AccessToken, nil
	}

	if blocked, retryAfter := s.inBackoff(userID, provider, now); blocked {
		return "", newError(KindRateLimited, fmt.Errorf("refresh backoff active for %s/%s, retry after %s", userID, provider, retryAfter))
	}

	key := userID + ":" + string(provider)
	result, err, _ := s.sf.Do(key, func() (any, error) {
		return s.refresh(ctx, conn, userID, provider)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *Service) refresh(ctx context.Context, conn *model.ProviderConnection, userID string, provider model.Provider) (string, error) {
	refresher, ok := s.refreshers[provider]
	if !ok {
		return "", newError(KindTransient, fmt.Errorf("no refresher registered for %s", provider))
	}

	tok, err := refresher.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		kind := s.recordFailure(userID, provider, err)
		return "", newError(kind, err)
	}

	s.clearBackoff(userID, provider)

	nowMillis := s.clock.NowMillis()
	expiresAtMillis := nowMillis
	if !tok.Expiry.IsZero() {
		expiresAtMillis = tok.Expiry.UnixMilli()
	}
	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = conn.RefreshToken
	}

	if err := s.connections.UpdateTokens(conn.ID, tok.AccessToken, refreshToken, expiresAtMillis, nowMillis); err != nil {
		return "", newError(KindTransient, err)
	}
	return tok.AccessToken, nil
}

// recordFailure classifies err and, for permanent failures, advances the
// connection's exponential backoff counter in KV.
func (s *Service) recordFailure(userID string, provider model.Provider, err error) Kind {
	kind := KindTransient
	var classified *ClassifiableError
	if errors.As(err, &classified) {
		kind = classified.Kind
	}

	if kind != KindRefreshInvalid && kind != KindAccessRevoked {
		return kind
	}

	key := backoffKey(userID, provider)
	attempt := 1
	if v, ok := s.kv.Get(key); ok {
		if st, ok := v.(backoffState); ok {
			attempt = st.Attempt + 1
		}
	}
	delay := time.Duration(1<<uint(attempt)) * time.Minute
	if delay > maxBackoffMinutes*time.Minute {
		delay = maxBackoffMinutes * time.Minute
	}
	next := time.UnixMilli(s.clock.NowMillis()).Add(delay)
	s.kv.Set(key, backoffState{Attempt: attempt, NextAllowedAt: next.UnixMilli()}, delay)
	return kind
}

func (s *Service) clearBackoff(userID string, provider model.Provider) {
	s.kv.Del(backoffKey(userID, provider))
}

func (s *Service) inBackoff(userID string, provider model.Provider, now time.Time) (bool, time.Duration) {
	v, ok := s.kv.Get(backoffKey(userID, provider))
	if !ok {
		return false, 0
	}
	st, ok := v.(backoffState)
	if !ok {
		return false, 0
	}
	nextAllowed := time.UnixMilli(st.NextAllowedAt)
	if now.Before(nextAllowed) {
		return true, nextAllowed.Sub(now)
	}
	return false, 0
}
