package token

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/ejohane/zine-sub/internal/kv"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/state"
)

type fixedClock struct{ ms int64 }

func (c fixedClock) NowMillis() int64 { return c.ms }

type fakeRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func newTestDB(t *testing.T) *state.ProviderConnectionRepo {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := state.MigrateDB(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return state.NewProviderConnectionRepo(db)
}

func TestGetValidTokenReturnsStoredTokenWhenFresh(t *testing.T) {
	repo := newTestDB(t)
	now := int64(1_000_000)
	if err := repo.Upsert(model.ProviderConnection{ID: "conn_1", UserID: "u1", Provider: model.ProviderYouTube,
		AccessToken: "fresh-token", RefreshToken: "rt", TokenExpiresAt: now + int64(2*time.Hour/time.Millisecond),
		Status: model.ConnectionStatusActive, ConnectedAt: now}); err != nil {
		t.Fatalf("seed connection: %v", err)
	}

	svc := New(repo, nil, kv.NewMemStore(), fixedClock{ms: now}, 0)
	got, err := svc.GetValidToken(context.Background(), "u1", model.ProviderYouTube)
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if got != "fresh-token" {
		t.Fatalf("got = %q, want fresh-token", got)
	}
}

func TestGetValidTokenRefreshesWhenNearExpiry(t *testing.T) {
	repo := newTestDB(t)
	now := int64(1_000_000)
	if err := repo.Upsert(model.ProviderConnection{ID: "conn_1", UserID: "u1", Provider: model.ProviderYouTube,
		AccessToken: "old-token", RefreshToken: "rt", TokenExpiresAt: now + int64(5*time.Minute/time.Millisecond),
		Status: model.ConnectionStatusActive, ConnectedAt: now}); err != nil {
		t.Fatalf("seed connection: %v", err)
	}

	refresher := &fakeRefresher{token: &oauth2.Token{AccessToken: "new-token", RefreshToken: "rt2",
		Expiry: time.UnixMilli(now).Add(time.Hour)}}
	svc := New(repo, map[model.Provider]Refresher{model.ProviderYouTube: refresher}, kv.NewMemStore(), fixedClock{ms: now}, time.Hour)

	got, err := svc.GetValidToken(context.Background(), "u1", model.ProviderYouTube)
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if got != "new-token" {
		t.Fatalf("got = %q, want new-token", got)
	}
	if refresher.calls != 1 {
		t.Fatalf("refresher.calls = %d, want 1", refresher.calls)
	}
}

func TestGetValidTokenNoConnection(t *testing.T) {
	repo := newTestDB(t)
	svc := New(repo, nil, kv.NewMemStore(), fixedClock{ms: 0}, 0)

	_, err := svc.GetValidToken(context.Background(), "missing", model.ProviderYouTube)
	var tokErr *Error
	if !errors.As(err, &tokErr) || tokErr.Kind != KindNoConnection {
		t.Fatalf("err = %v, want KindNoConnection", err)
	}
}

func TestGetValidTokenBackoffBlocksRetry(t *testing.T) {
	repo := newTestDB(t)
	now := int64(1_000_000)
	if err := repo.Upsert(model.ProviderConnection{ID: "conn_1", UserID: "u1", Provider: model.ProviderYouTube,
		AccessToken: "old-token", RefreshToken: "rt", TokenExpiresAt: now,
		Status: model.ConnectionStatusActive, ConnectedAt: now}); err != nil {
		t.Fatalf("seed connection: %v", err)
	}

	refresher := &fakeRefresher{err: &ClassifiableError{Kind: KindRefreshInvalid, Err: errors.New("invalid_grant")}}
	store := kv.NewMemStore()
	svc := New(repo, map[model.Provider]Refresher{model.ProviderYouTube: refresher}, store, fixedClock{ms: now}, time.Hour)

	_, err := svc.GetValidToken(context.Background(), "u1", model.ProviderYouTube)
	var tokErr *Error
	if !errors.As(err, &tokErr) || tokErr.Kind != KindRefreshInvalid {
		t.Fatalf("first call err = %v, want KindRefreshInvalid", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("calls after first failure = %d, want 1", refresher.calls)
	}

	_, err = svc.GetValidToken(context.Background(), "u1", model.ProviderYouTube)
	if !errors.As(err, &tokErr) || tokErr.Kind != KindRateLimited {
		t.Fatalf("second call err = %v, want KindRateLimited", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("calls after backoff hit = %d, want still 1", refresher.calls)
	}
}
