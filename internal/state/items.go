package state

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/ejohane/zine-sub/internal/model"
)

// ItemRepo provides CRUD for the items table (canonical content, shared
// across users).
type ItemRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewItemRepo creates an ItemRepo over db.
func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// GetByKey looks up an item by (provider, providerId).
func (r *ItemRepo) GetByKey(key model.ItemKey) (*model.Item, error) {
	row := r.db.QueryRow(`
		SELECT id, content_type, provider, provider_id, canonical_url, title,
		       thumbnail_url, creator_id, duration, published_at, summary, raw_metadata,
		       created_at, updated_at
		FROM items WHERE provider = ? AND provider_id = ?`, key.Provider, key.ProviderID)
	return scanItem(row)
}

func scanItem(row *sql.Row) (*model.Item, error) {
	var it model.Item
	if err := row.Scan(&it.ID, &it.ContentType, &it.Provider, &it.ProviderID, &it.CanonicalURL,
		&it.Title, &it.ThumbnailURL, &it.CreatorID, &it.Duration, &it.PublishedAt,
		&it.Summary, &it.RawMetadata, &it.CreatedAt, &it.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

// Insert creates a new canonical item row.
func (r *ItemRepo) Insert(it model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO items (id, content_type, provider, provider_id, canonical_url, title,
		                   thumbnail_url, creator_id, duration, published_at, summary, raw_metadata,
		                   created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.ContentType, it.Provider, it.ProviderID, it.CanonicalURL, it.Title,
		it.ThumbnailURL, it.CreatorID, it.Duration, it.PublishedAt, it.Summary, it.RawMetadata,
		it.CreatedAt, it.UpdatedAt)
	if err != nil && isSQLiteUniqueConstraint(err) {
		return ErrConflict
	}
	return err
}

// LinkCreator sets the creator id on an item that does not yet have one.
func (r *ItemRepo) LinkCreator(itemID, creatorID string, updatedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		UPDATE items SET creator_id = ?, updated_at = ?
		WHERE id = ? AND creator_id IS NULL`, creatorID, updatedAt, itemID)
	return err
}
