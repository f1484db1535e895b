package state

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ejohane/zine-sub/internal/model"
)

// CreatorRepo provides CRUD for the creators table. All writes are
// serialized by an internal mutex, matching the single-writer-connection
// model the rest of this package relies on.
type CreatorRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewCreatorRepo creates a CreatorRepo over db.
func NewCreatorRepo(db *sql.DB) *CreatorRepo {
	return &CreatorRepo{db: db}
}

func isSQLiteUniqueConstraint(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// GetByKey looks up a creator by (provider, providerCreatorId).
func (r *CreatorRepo) GetByKey(key model.CreatorKey) (*model.Creator, error) {
	row := r.db.QueryRow(`
		SELECT id, provider, provider_creator_id, name, normalized_name,
		       image_url, handle, external_url, description, created_at, updated_at
		FROM creators WHERE provider = ? AND provider_creator_id = ?`,
		key.Provider, key.ProviderCreatorID)
	return scanCreator(row)
}

// GetByID looks up a creator by id.
func (r *CreatorRepo) GetByID(id string) (*model.Creator, error) {
	row := r.db.QueryRow(`
		SELECT id, provider, provider_creator_id, name, normalized_name,
		       image_url, handle, external_url, description, created_at, updated_at
		FROM creators WHERE id = ?`, id)
	return scanCreator(row)
}

func scanCreator(row *sql.Row) (*model.Creator, error) {
	var c model.Creator
	if err := row.Scan(&c.ID, &c.Provider, &c.ProviderCreatorID, &c.Name, &c.NormalizedName,
		&c.ImageURL, &c.Handle, &c.ExternalURL, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Insert creates a new creator row.
func (r *CreatorRepo) Insert(c model.Creator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO creators (id, provider, provider_creator_id, name, normalized_name,
		                      image_url, handle, external_url, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Provider, c.ProviderCreatorID, c.Name, c.NormalizedName,
		c.ImageURL, c.Handle, c.ExternalURL, c.Description, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isSQLiteUniqueConstraint(err) {
			return fmt.Errorf("%w: creator (provider,providerCreatorId) already exists", ErrConflict)
		}
		return err
	}
	return nil
}

// UpdateNameAndFillNulls updates name and only the optional fields that are
// currently null, matching the find-or-create update rule: existing
// non-null attribution is never overwritten except name.
func (r *CreatorRepo) UpdateNameAndFillNulls(c model.Creator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		UPDATE creators SET
			name          = ?,
			image_url     = COALESCE(image_url, ?),
			handle        = COALESCE(handle, ?),
			external_url  = COALESCE(external_url, ?),
			description   = COALESCE(description, ?),
			updated_at    = ?
		WHERE id = ?`,
		c.Name, c.ImageURL, c.Handle, c.ExternalURL, c.Description, c.UpdatedAt, c.ID)
	return err
}
