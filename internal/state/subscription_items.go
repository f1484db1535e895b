package state

import (
	"database/sql"
	"sync"

	"github.com/ejohane/zine-sub/internal/model"
)

// SubscriptionItemRepo tracks which items were seen through which
// subscription, for adaptive-interval activity scans and unsubscribe-time
// inbox purge.
type SubscriptionItemRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSubscriptionItemRepo creates a SubscriptionItemRepo over db.
func NewSubscriptionItemRepo(db *sql.DB) *SubscriptionItemRepo {
	return &SubscriptionItemRepo{db: db}
}

// Insert records a subscription→item link. Returns ErrConflict if
// (subscriptionId, providerItemId) was already recorded.
func (r *SubscriptionItemRepo) Insert(si model.SubscriptionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO subscription_items (id, subscription_id, item_id, provider_item_id, published_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		si.ID, si.SubscriptionID, si.ItemID, si.ProviderItemID, si.PublishedAt, si.FetchedAt)
	if err != nil && isSQLiteUniqueConstraint(err) {
		return ErrConflict
	}
	return err
}

// CountBySubscription returns how many items have been recorded for a
// subscription. The Spotify delta-detection short-circuit does not use it;
// that compares the show's reported totalEpisodes with the subscription's
// stored totalItems.
func (r *SubscriptionItemRepo) CountBySubscription(subscriptionID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM subscription_items WHERE subscription_id = ?`, subscriptionID).Scan(&n)
	return n, err
}

// RecentPublishedAt returns up to limit non-null publishedAt values for a
// subscription's tracked items, newest first — the raw input the adaptive
// interval controller reduces into recent-activity metrics.
func (r *SubscriptionItemRepo) RecentPublishedAt(subscriptionID string, limit int) ([]int64, error) {
	rows, err := r.db.Query(`
		SELECT published_at FROM subscription_items
		WHERE subscription_id = ? AND published_at IS NOT NULL
		ORDER BY published_at DESC
		LIMIT ?`, subscriptionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// DeleteBySubscription purges tracking rows for a removed subscription.
func (r *SubscriptionItemRepo) DeleteBySubscription(subscriptionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`DELETE FROM subscription_items WHERE subscription_id = ?`, subscriptionID)
	return err
}
