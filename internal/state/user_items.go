package state

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/ejohane/zine-sub/internal/model"
)

// UserItemRepo provides CRUD for the user_items table (a user's
// relationship to a canonical item).
type UserItemRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewUserItemRepo creates a UserItemRepo over db.
func NewUserItemRepo(db *sql.DB) *UserItemRepo {
	return &UserItemRepo{db: db}
}

// Insert creates a new user_items row with the state given in ui. Returns ErrConflict
// if (userId, itemId) already exists.
func (r *UserItemRepo) Insert(ui model.UserItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO user_items (id, user_id, item_id, state, ingested_at, bookmarked_at,
		                        archived_at, last_opened_at, progress_position, progress_duration,
		                        is_finished, finished_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ui.ID, ui.UserID, ui.ItemID, ui.State, ui.IngestedAt, ui.BookmarkedAt,
		ui.ArchivedAt, ui.LastOpenedAt, ui.ProgressPosition, ui.ProgressDuration,
		ui.IsFinished, ui.FinishedAt, ui.CreatedAt, ui.UpdatedAt)
	if err != nil && isSQLiteUniqueConstraint(err) {
		return ErrConflict
	}
	return err
}

// GetByKey looks up a user-item by (userId, itemId).
func (r *UserItemRepo) GetByKey(key model.UserItemKey) (*model.UserItem, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, item_id, state, ingested_at, bookmarked_at, archived_at,
		       last_opened_at, progress_position, progress_duration, is_finished, finished_at,
		       created_at, updated_at
		FROM user_items WHERE user_id = ? AND item_id = ?`, key.UserID, key.ItemID)
	return scanUserItem(row)
}

func scanUserItem(row *sql.Row) (*model.UserItem, error) {
	var ui model.UserItem
	if err := row.Scan(&ui.ID, &ui.UserID, &ui.ItemID, &ui.State, &ui.IngestedAt, &ui.BookmarkedAt,
		&ui.ArchivedAt, &ui.LastOpenedAt, &ui.ProgressPosition, &ui.ProgressDuration,
		&ui.IsFinished, &ui.FinishedAt, &ui.CreatedAt, &ui.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ui, nil
}

// DeleteInboxBySubscription deletes INBOX user-items that were sourced from
// subscriptionID, preserving BOOKMARKED/ARCHIVED items per the unsubscribe
// preservation rule.
func (r *UserItemRepo) DeleteInboxBySubscription(subscriptionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		DELETE FROM user_items
		WHERE state = 'INBOX'
		  AND user_id = (SELECT user_id FROM subscriptions WHERE id = ?)
		  AND item_id IN (
		      SELECT item_id FROM subscription_items WHERE subscription_id = ?
		  )`, subscriptionID, subscriptionID)
	return err
}
