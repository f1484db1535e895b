package state

import (
	"errors"
	"testing"

	"github.com/ejohane/zine-sub/internal/model"
)

func TestProviderConnectionRepoUpsertAndGet(t *testing.T) {
	db := openTestDB(t)
	r := NewProviderConnectionRepo(db)

	c := model.ProviderConnection{ID: "conn_1", UserID: "u1", Provider: model.ProviderYouTube,
		AccessToken: "at1", RefreshToken: "rt1", TokenExpiresAt: 1000,
		Status: model.ConnectionStatusActive, ConnectedAt: 1}
	if err := r.Upsert(c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := r.GetByUserProvider("u1", model.ProviderYouTube)
	if err != nil {
		t.Fatalf("GetByUserProvider: %v", err)
	}
	if got.AccessToken != "at1" {
		t.Fatalf("AccessToken = %q", got.AccessToken)
	}
}

func TestProviderConnectionRepoUpsertReplacesOnReconnect(t *testing.T) {
	db := openTestDB(t)
	r := NewProviderConnectionRepo(db)

	c := model.ProviderConnection{ID: "conn_1", UserID: "u1", Provider: model.ProviderYouTube,
		AccessToken: "at1", RefreshToken: "rt1", TokenExpiresAt: 1000,
		Status: model.ConnectionStatusExpired, ConnectedAt: 1}
	if err := r.Upsert(c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	c2 := model.ProviderConnection{ID: "conn_2", UserID: "u1", Provider: model.ProviderYouTube,
		AccessToken: "at2", RefreshToken: "rt2", TokenExpiresAt: 2000,
		Status: model.ConnectionStatusActive, ConnectedAt: 2}
	if err := r.Upsert(c2); err != nil {
		t.Fatalf("Upsert reconnect: %v", err)
	}

	got, err := r.GetByUserProvider("u1", model.ProviderYouTube)
	if err != nil {
		t.Fatalf("GetByUserProvider: %v", err)
	}
	if got.Status != model.ConnectionStatusActive || got.AccessToken != "at2" {
		t.Fatalf("got = %+v, want reconnected ACTIVE conn", got)
	}
}

func TestProviderConnectionRepoSetStatus(t *testing.T) {
	db := openTestDB(t)
	r := NewProviderConnectionRepo(db)

	c := model.ProviderConnection{ID: "conn_1", UserID: "u1", Provider: model.ProviderYouTube,
		AccessToken: "at1", RefreshToken: "rt1", TokenExpiresAt: 1000,
		Status: model.ConnectionStatusActive, ConnectedAt: 1}
	if err := r.Upsert(c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := r.SetStatus("conn_1", model.ConnectionStatusRevoked); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	got, err := r.GetByUserProvider("u1", model.ProviderYouTube)
	if err != nil {
		t.Fatalf("GetByUserProvider: %v", err)
	}
	if got.Status != model.ConnectionStatusRevoked {
		t.Fatalf("Status = %v, want REVOKED", got.Status)
	}
}

func TestProviderConnectionRepoNotFound(t *testing.T) {
	db := openTestDB(t)
	r := NewProviderConnectionRepo(db)

	_, err := r.GetByUserProvider("missing", model.ProviderYouTube)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
