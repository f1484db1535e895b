package health

import (
	"database/sql"
	"testing"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/kv"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/provider"
	"github.com/ejohane/zine-sub/internal/state"
)

type fixedClock struct{ ms int64 }

func (c fixedClock) NowMillis() int64 { return c.ms }

func newTestMonitor(t *testing.T, now int64) (*Monitor, *sql.DB, kv.Store) {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := state.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	c := fixedClock{ms: now}
	store := kv.NewMemStore()
	m := New(state.NewProviderConnectionRepo(db), state.NewSubscriptionRepo(db),
		state.NewUserNotificationRepo(db), store, clock.NewIDGenerator(c), c)
	return m, db, store
}

func seedConnectionAndSub(t *testing.T, db *sql.DB, now int64) {
	t.Helper()
	if err := state.NewProviderConnectionRepo(db).Upsert(model.ProviderConnection{
		ID: "conn_1", UserID: "u1", Provider: model.ProviderYouTube, AccessToken: "at",
		RefreshToken: "rt", TokenExpiresAt: now + 1000, Status: model.ConnectionStatusActive, ConnectedAt: now,
	}); err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	if err := state.NewSubscriptionRepo(db).Insert(model.Subscription{
		ID: "sub_1", UserID: "u1", Provider: model.ProviderYouTube, ProviderChannelID: "UC1",
		PollIntervalSeconds: 3600, Status: model.SubscriptionStatusActive, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func TestHandleAuthFailureRefreshInvalidCascades(t *testing.T) {
	m, db, _ := newTestMonitor(t, 1000)
	seedConnectionAndSub(t, db, 1000)

	if err := m.HandleAuthFailure("u1", model.ProviderYouTube, provider.KindRefreshInvalid); err != nil {
		t.Fatalf("HandleAuthFailure: %v", err)
	}

	conn, err := state.NewProviderConnectionRepo(db).GetByUserProvider("u1", model.ProviderYouTube)
	if err != nil {
		t.Fatalf("GetByUserProvider: %v", err)
	}
	if conn.Status != model.ConnectionStatusExpired {
		t.Fatalf("connection status = %v, want EXPIRED", conn.Status)
	}

	sub, err := state.NewSubscriptionRepo(db).GetByID("sub_1")
	if err != nil {
		t.Fatalf("GetByID sub: %v", err)
	}
	if sub.Status != model.SubscriptionStatusDisconnected {
		t.Fatalf("subscription status = %v, want DISCONNECTED", sub.Status)
	}

	provider := model.ProviderYouTube
	n, err := state.NewUserNotificationRepo(db).GetActiveByKey(model.NotificationKey{
		UserID: "u1", Type: model.NotificationTypeConnectionExpired, Provider: &provider})
	if err != nil {
		t.Fatalf("GetActiveByKey: %v", err)
	}
	if n == nil {
		t.Fatalf("expected active connection_expired notification")
	}
}

func TestHandleAuthFailureTransientIsNoop(t *testing.T) {
	m, db, _ := newTestMonitor(t, 1000)
	seedConnectionAndSub(t, db, 1000)

	if err := m.HandleAuthFailure("u1", model.ProviderYouTube, provider.KindTransient); err != nil {
		t.Fatalf("HandleAuthFailure: %v", err)
	}

	conn, err := state.NewProviderConnectionRepo(db).GetByUserProvider("u1", model.ProviderYouTube)
	if err != nil {
		t.Fatalf("GetByUserProvider: %v", err)
	}
	if conn.Status != model.ConnectionStatusActive {
		t.Fatalf("connection status = %v, want unchanged ACTIVE", conn.Status)
	}
}

func TestRecordPollFailureEmitsAtThreshold(t *testing.T) {
	m, db, _ := newTestMonitor(t, 1000)
	seedConnectionAndSub(t, db, 1000)

	for i := 0; i < 2; i++ {
		if err := m.RecordPollFailure("u1", model.ProviderYouTube, "sub_1"); err != nil {
			t.Fatalf("RecordPollFailure: %v", err)
		}
	}
	provider := model.ProviderYouTube
	if _, err := state.NewUserNotificationRepo(db).GetActiveByKey(model.NotificationKey{
		UserID: "u1", Type: model.NotificationTypePollFailures, Provider: &provider}); err == nil {
		t.Fatalf("expected no notification before threshold")
	}

	if err := m.RecordPollFailure("u1", model.ProviderYouTube, "sub_1"); err != nil {
		t.Fatalf("RecordPollFailure third: %v", err)
	}
	n, err := state.NewUserNotificationRepo(db).GetActiveByKey(model.NotificationKey{
		UserID: "u1", Type: model.NotificationTypePollFailures, Provider: &provider})
	if err != nil {
		t.Fatalf("GetActiveByKey: %v", err)
	}
	if n == nil {
		t.Fatalf("expected poll_failures notification at threshold")
	}
}

func TestRecordPollSuccessClearsCounterAndResolves(t *testing.T) {
	m, db, store := newTestMonitor(t, 1000)
	seedConnectionAndSub(t, db, 1000)

	for i := 0; i < 3; i++ {
		if err := m.RecordPollFailure("u1", model.ProviderYouTube, "sub_1"); err != nil {
			t.Fatalf("RecordPollFailure: %v", err)
		}
	}

	if err := m.RecordPollSuccess("u1", model.ProviderYouTube, "sub_1"); err != nil {
		t.Fatalf("RecordPollSuccess: %v", err)
	}

	if _, ok := store.Get(pollFailureKey("sub_1")); ok {
		t.Fatalf("failure counter should be cleared")
	}

	provider := model.ProviderYouTube
	if _, err := state.NewUserNotificationRepo(db).GetActiveByKey(model.NotificationKey{
		UserID: "u1", Type: model.NotificationTypePollFailures, Provider: &provider}); err == nil {
		t.Fatalf("poll_failures notification should be resolved")
	}
}
