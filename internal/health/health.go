// Package health implements the Health Monitor: the connection state
// machine driven by provider auth failures, the poll-failure counter that
// promotes repeated transient errors into a user-visible notice, and the
// reconnect flow that clears both.
package health

import (
	"errors"
	"fmt"
	"time"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/kv"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/provider"
	"github.com/ejohane/zine-sub/internal/state"
)

const pollFailureThreshold = 3
const pollFailureTTL = 24 * time.Hour

// Monitor applies the ACTIVE→EXPIRED/REVOKED connection state machine and
// tracks per-subscription poll failures.
type Monitor struct {
	connections   *state.ProviderConnectionRepo
	subscriptions *state.SubscriptionRepo
	notifications *state.UserNotificationRepo
	kv            kv.Store
	ids           *clock.IDGenerator
	clock         clock.Clock
}

// New creates a Monitor.
func New(connections *state.ProviderConnectionRepo, subscriptions *state.SubscriptionRepo,
	notifications *state.UserNotificationRepo, store kv.Store, ids *clock.IDGenerator, c clock.Clock) *Monitor {
	if c == nil {
		c = clock.System{}
	}
	return &Monitor{connections: connections, subscriptions: subscriptions,
		notifications: notifications, kv: store, ids: ids, clock: c}
}

func pollFailureKey(subscriptionID string) string {
	return fmt.Sprintf("poll:failures:%s", subscriptionID)
}

// HandleAuthFailure applies the connection state transition for a
// classified auth failure on (userID, provider). Transient failures
// (KindTransient, KindTokenExpired, KindRateLimited) are a no-op here; the
// caller already let the next tick retry.
func (m *Monitor) HandleAuthFailure(userID string, p model.Provider, kind provider.ErrorKind) error {
	now := m.clock.NowMillis()

	switch kind {
	case provider.KindRefreshInvalid:
		return m.disconnect(userID, p, model.ConnectionStatusExpired,
			model.NotificationTypeConnectionExpired, "Connection expired", now)
	case provider.KindAccessRevoked:
		return m.disconnect(userID, p, model.ConnectionStatusRevoked,
			model.NotificationTypeConnectionRevoked, "Connection revoked", now)
	default:
		return nil
	}
}

func (m *Monitor) disconnect(userID string, p model.Provider, status model.ConnectionStatus,
	notifType model.NotificationType, title string, now int64) error {

	conn, err := m.connections.GetByUserProvider(userID, p)
	if err != nil {
		return fmt.Errorf("health: load connection: %w", err)
	}
	if err := m.connections.SetStatus(conn.ID, status); err != nil {
		return fmt.Errorf("health: set connection status: %w", err)
	}
	if err := m.subscriptions.SetStatusByUserProvider(userID, p, model.SubscriptionStatusDisconnected, now); err != nil {
		return fmt.Errorf("health: cascade disconnect subscriptions: %w", err)
	}

	provCopy := p
	if err := m.notifications.Insert(model.UserNotification{
		ID: m.ids.New(), UserID: userID, Type: notifType, Provider: &provCopy,
		Title: title, Message: fmt.Sprintf("%s for %s", title, p), CreatedAt: now,
	}); err != nil && !errors.Is(err, state.ErrConflict) {
		return fmt.Errorf("health: insert notification: %w", err)
	}
	return nil
}

// RecordPollFailure increments the per-subscription failure counter,
// emitting a poll_failures notification once it reaches the threshold.
func (m *Monitor) RecordPollFailure(userID string, p model.Provider, subscriptionID string) error {
	n := m.kv.Incr(pollFailureKey(subscriptionID), pollFailureTTL)
	if n < pollFailureThreshold {
		return nil
	}

	provCopy := p
	if err := m.notifications.Insert(model.UserNotification{
		ID: m.ids.New(), UserID: userID, Type: model.NotificationTypePollFailures, Provider: &provCopy,
		Title: "Repeated sync failures", Message: fmt.Sprintf("Syncing has failed %d times in a row", n),
		CreatedAt: m.clock.NowMillis(),
	}); err != nil && !errors.Is(err, state.ErrConflict) {
		return fmt.Errorf("health: insert poll_failures notification: %w", err)
	}
	return nil
}

// RecordPollSuccess clears the failure counter and resolves any active
// poll_failures notification for (userID, provider).
func (m *Monitor) RecordPollSuccess(userID string, p model.Provider, subscriptionID string) error {
	m.kv.Reset(pollFailureKey(subscriptionID))

	provCopy := p
	return m.notifications.Resolve(
		model.NotificationKey{UserID: userID, Type: model.NotificationTypePollFailures, Provider: &provCopy},
		m.clock.NowMillis(),
	)
}

// Reconnect resolves all active connection_expired/connection_revoked
// notifications for (userID, provider) after the user re-authorizes.
func (m *Monitor) Reconnect(userID string, p model.Provider) error {
	now := m.clock.NowMillis()
	provCopy := p
	for _, t := range []model.NotificationType{model.NotificationTypeConnectionExpired, model.NotificationTypeConnectionRevoked} {
		if err := m.notifications.Resolve(model.NotificationKey{UserID: userID, Type: t, Provider: &provCopy}, now); err != nil {
			return fmt.Errorf("health: resolve %s notification: %w", t, err)
		}
	}
	return nil
}
