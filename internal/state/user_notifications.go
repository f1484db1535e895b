package state

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/ejohane/zine-sub/internal/model"
)

// UserNotificationRepo provides CRUD for user_notifications, respecting the
// partial-unique active-notification dedup slot per (userId, type, provider).
type UserNotificationRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewUserNotificationRepo creates a UserNotificationRepo over db.
func NewUserNotificationRepo(db *sql.DB) *UserNotificationRepo {
	return &UserNotificationRepo{db: db}
}

// Insert creates a notification. Returns ErrConflict if an unresolved
// notification already occupies this (userId, type, provider) slot; callers
// treat that as "already notified, nothing to do".
func (r *UserNotificationRepo) Insert(n model.UserNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO user_notifications (id, user_id, type, provider, title, message, data, read_at, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Provider, n.Title, n.Message, n.Data, n.ReadAt, n.ResolvedAt, n.CreatedAt)
	if err != nil && isSQLiteUniqueConstraint(err) {
		return ErrConflict
	}
	return err
}

// GetActiveByKey looks up the unresolved notification occupying a dedup
// slot, if any.
func (r *UserNotificationRepo) GetActiveByKey(key model.NotificationKey) (*model.UserNotification, error) {
	var row *sql.Row
	if key.Provider != nil {
		row = r.db.QueryRow(`
			SELECT id, user_id, type, provider, title, message, data, read_at, resolved_at, created_at
			FROM user_notifications
			WHERE user_id = ? AND type = ? AND provider = ? AND resolved_at IS NULL`,
			key.UserID, key.Type, *key.Provider)
	} else {
		row = r.db.QueryRow(`
			SELECT id, user_id, type, provider, title, message, data, read_at, resolved_at, created_at
			FROM user_notifications
			WHERE user_id = ? AND type = ? AND provider IS NULL AND resolved_at IS NULL`,
			key.UserID, key.Type)
	}
	var n model.UserNotification
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Provider, &n.Title, &n.Message,
		&n.Data, &n.ReadAt, &n.ResolvedAt, &n.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// Resolve marks the active notification in a dedup slot resolved, freeing
// the slot for a future Insert. No-op if no active notification exists.
func (r *UserNotificationRepo) Resolve(key model.NotificationKey, resolvedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key.Provider != nil {
		_, err := r.db.Exec(`
			UPDATE user_notifications SET resolved_at = ?
			WHERE user_id = ? AND type = ? AND provider = ? AND resolved_at IS NULL`,
			resolvedAt, key.UserID, key.Type, *key.Provider)
		return err
	}
	_, err := r.db.Exec(`
		UPDATE user_notifications SET resolved_at = ?
		WHERE user_id = ? AND type = ? AND provider IS NULL AND resolved_at IS NULL`,
		resolvedAt, key.UserID, key.Type)
	return err
}

// MarkRead sets readAt on a notification by id.
func (r *UserNotificationRepo) MarkRead(id string, readAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`UPDATE user_notifications SET read_at = ? WHERE id = ? AND read_at IS NULL`, readAt, id)
	return err
}

// ListByUser lists a user's notifications, most recent first.
func (r *UserNotificationRepo) ListByUser(userID string, limit int) ([]model.UserNotification, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, type, provider, title, message, data, read_at, resolved_at, created_at
		FROM user_notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserNotification
	for rows.Next() {
		var n model.UserNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Provider, &n.Title, &n.Message,
			&n.Data, &n.ReadAt, &n.ResolvedAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
