package state

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/ejohane/zine-sub/internal/model"
)

// SubscriptionRepo provides CRUD and the scheduler's due-work query for the
// subscriptions table.
type SubscriptionRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSubscriptionRepo creates a SubscriptionRepo over db.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

const subscriptionColumns = `
	id, user_id, provider, provider_channel_id, creator_id, total_items,
	last_published_at, last_polled_at, poll_interval_seconds, status,
	disconnected_at, disconnected_reason, created_at, updated_at`

func scanSubscription(row interface {
	Scan(dest ...any) error
}) (*model.Subscription, error) {
	var s model.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.Provider, &s.ProviderChannelID, &s.CreatorID,
		&s.TotalItems, &s.LastPublishedAt, &s.LastPolledAt, &s.PollIntervalSeconds, &s.Status,
		&s.DisconnectedAt, &s.DisconnectedReason, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByID looks up a subscription by id.
func (r *SubscriptionRepo) GetByID(id string) (*model.Subscription, error) {
	row := r.db.QueryRow(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	return scanSubscription(row)
}

// GetByKey looks up a subscription by (userId, provider, providerChannelId),
// including UNSUBSCRIBED rows (callers reactivate those on re-add).
func (r *SubscriptionRepo) GetByKey(key model.SubscriptionKey) (*model.Subscription, error) {
	row := r.db.QueryRow(`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ? AND provider = ? AND provider_channel_id = ?`,
		key.UserID, key.Provider, key.ProviderChannelID)
	return scanSubscription(row)
}

// Insert creates a new subscription row.
func (r *SubscriptionRepo) Insert(s model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO subscriptions (id, user_id, provider, provider_channel_id, creator_id,
		    total_items, last_published_at, last_polled_at, poll_interval_seconds, status,
		    disconnected_at, disconnected_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Provider, s.ProviderChannelID, s.CreatorID,
		s.TotalItems, s.LastPublishedAt, s.LastPolledAt, s.PollIntervalSeconds, s.Status,
		s.DisconnectedAt, s.DisconnectedReason, s.CreatedAt, s.UpdatedAt)
	if err != nil && isSQLiteUniqueConstraint(err) {
		return ErrConflict
	}
	return err
}

// Reactivate flips an UNSUBSCRIBED subscription back to ACTIVE in place,
// preserving its id, so add→remove→add yields the same subscriptionId.
func (r *SubscriptionRepo) Reactivate(id string, updatedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		UPDATE subscriptions SET status = 'ACTIVE', disconnected_at = NULL,
		    disconnected_reason = NULL, updated_at = ?
		WHERE id = ?`, updatedAt, id)
	return err
}

// UpdateAfterPoll applies the watermark-integrity update rule: lastPolledAt
// always advances; lastPublishedAt and totalItems only advance when the
// caller passed non-nil values (meaning at least one ingestion succeeded).
// lastPublishedAt additionally never regresses even when a caller does pass
// a non-nil value lower than what is already stored (a later poll's fetched
// window can rotate older items out and report a lower max than a prior run).
func (r *SubscriptionRepo) UpdateAfterPoll(id string, lastPolledAt int64, newLastPublishedAt, newTotalItems *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		UPDATE subscriptions SET
			last_polled_at    = ?,
			last_published_at = CASE
				WHEN ? IS NULL THEN last_published_at
				WHEN last_published_at IS NULL OR ? > last_published_at THEN ?
				ELSE last_published_at
			END,
			total_items       = COALESCE(?, total_items),
			updated_at        = ?
		WHERE id = ?`, lastPolledAt, newLastPublishedAt, newLastPublishedAt, newLastPublishedAt, newTotalItems, lastPolledAt, id)
	return err
}

// SetStatus transitions status and, when disconnecting, records the reason.
func (r *SubscriptionRepo) SetStatus(id string, status model.SubscriptionStatus, disconnectedAt *int64, reason *string, updatedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		UPDATE subscriptions SET status = ?, disconnected_at = ?, disconnected_reason = ?, updated_at = ?
		WHERE id = ?`, status, disconnectedAt, reason, updatedAt, id)
	return err
}

// SetStatusByUserProvider bulk-updates status for every subscription of a
// (userId, provider) pair, used by the health monitor's DISCONNECTED
// cascade on connection failure.
func (r *SubscriptionRepo) SetStatusByUserProvider(userID string, provider model.Provider, status model.SubscriptionStatus, updatedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		UPDATE subscriptions SET status = ?, updated_at = ?
		WHERE user_id = ? AND provider = ? AND status != 'UNSUBSCRIBED'`,
		status, updatedAt, userID, provider)
	return err
}

// DueForPoll returns ACTIVE subscriptions whose poll interval has elapsed,
// ordered never-polled first then oldest lastPolledAt first.
func (r *SubscriptionRepo) DueForPoll(nowMillis int64, limit int) ([]model.Subscription, error) {
	rows, err := r.db.Query(`
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'ACTIVE'
		  AND (last_polled_at IS NULL OR (? - last_polled_at) >= poll_interval_seconds * 1000)
		ORDER BY (last_polled_at IS NOT NULL), last_polled_at ASC
		LIMIT ?`, nowMillis, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ListByUser lists subscriptions for a user, optionally filtered by
// provider/status, cursor-paginated by id.
func (r *SubscriptionRepo) ListByUser(userID string, provider *model.Provider, status *model.SubscriptionStatus, cursor string, limit int) ([]model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ?`
	args := []any{userID}
	if provider != nil {
		query += ` AND provider = ?`
		args = append(args, *provider)
	}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	if cursor != "" {
		query += ` AND id > ?`
		args = append(args, cursor)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SetCreatorID attaches a resolved creator to a subscription, used by the
// operations router so list/add responses can show display fields before
// the first poll has run.
func (r *SubscriptionRepo) SetCreatorID(id, creatorID string, updatedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`UPDATE subscriptions SET creator_id = ?, updated_at = ? WHERE id = ?`,
		creatorID, updatedAt, id)
	return err
}

// SetPollInterval updates the adaptive-interval-controlled poll cadence.
func (r *SubscriptionRepo) SetPollInterval(id string, seconds int64, updatedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`UPDATE subscriptions SET poll_interval_seconds = ?, updated_at = ? WHERE id = ?`,
		seconds, updatedAt, id)
	return err
}
