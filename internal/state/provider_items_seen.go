package state

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/ejohane/zine-sub/internal/model"
)

// ProviderItemsSeenRepo implements the cross-resubscribe idempotency gate:
// once a (userId, provider, providerItemId) row exists, ingestion never
// repeats for that item, even after unsubscribe/resubscribe.
type ProviderItemsSeenRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewProviderItemsSeenRepo creates a ProviderItemsSeenRepo over db.
func NewProviderItemsSeenRepo(db *sql.DB) *ProviderItemsSeenRepo {
	return &ProviderItemsSeenRepo{db: db}
}

// Insert records that an item has been seen for a user. Returns ErrConflict
// if the row already exists, which the ingestion core treats as "already
// ingested, skip".
func (r *ProviderItemsSeenRepo) Insert(s model.ProviderItemsSeen) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO provider_items_seen (id, user_id, provider, provider_item_id, source_id, first_seen_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Provider, s.ProviderItemID, s.SourceID, s.FirstSeenAt)
	if err != nil && isSQLiteUniqueConstraint(err) {
		return ErrConflict
	}
	return err
}

// Exists reports whether an item has already been seen for a user.
func (r *ProviderItemsSeenRepo) Exists(key model.ProviderItemsSeenKey) (bool, error) {
	var n int
	err := r.db.QueryRow(`
		SELECT 1 FROM provider_items_seen
		WHERE user_id = ? AND provider = ? AND provider_item_id = ?`,
		key.UserID, key.Provider, key.ProviderItemID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
