package state

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/ejohane/zine-sub/internal/model"
)

// ProviderConnectionRepo provides CRUD for the provider_connections table.
// Access/refresh tokens are opaque at this layer; only the token service
// decrypts them.
type ProviderConnectionRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewProviderConnectionRepo creates a ProviderConnectionRepo over db.
func NewProviderConnectionRepo(db *sql.DB) *ProviderConnectionRepo {
	return &ProviderConnectionRepo{db: db}
}

const connectionColumns = `
	id, user_id, provider, provider_user_id, access_token, refresh_token,
	token_expires_at, scopes, status, connected_at, last_refreshed_at`

func scanConnection(row *sql.Row) (*model.ProviderConnection, error) {
	var c model.ProviderConnection
	if err := row.Scan(&c.ID, &c.UserID, &c.Provider, &c.ProviderUserID, &c.AccessToken,
		&c.RefreshToken, &c.TokenExpiresAt, &c.Scopes, &c.Status, &c.ConnectedAt,
		&c.LastRefreshedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByUserProvider looks up a user's connection to a provider.
func (r *ProviderConnectionRepo) GetByUserProvider(userID string, provider model.Provider) (*model.ProviderConnection, error) {
	row := r.db.QueryRow(`SELECT `+connectionColumns+` FROM provider_connections
		WHERE user_id = ? AND provider = ?`, userID, provider)
	return scanConnection(row)
}

// Upsert inserts a new connection or replaces an existing one for the same
// (userId, provider), used both on initial OAuth connect and reconnect
// after EXPIRED/REVOKED.
func (r *ProviderConnectionRepo) Upsert(c model.ProviderConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO provider_connections (id, user_id, provider, provider_user_id, access_token,
		    refresh_token, token_expires_at, scopes, status, connected_at, last_refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			provider_user_id  = excluded.provider_user_id,
			access_token      = excluded.access_token,
			refresh_token     = excluded.refresh_token,
			token_expires_at  = excluded.token_expires_at,
			scopes            = excluded.scopes,
			status            = excluded.status,
			connected_at      = excluded.connected_at,
			last_refreshed_at = excluded.last_refreshed_at`,
		c.ID, c.UserID, c.Provider, c.ProviderUserID, c.AccessToken, c.RefreshToken,
		c.TokenExpiresAt, c.Scopes, c.Status, c.ConnectedAt, c.LastRefreshedAt)
	return err
}

// UpdateTokens updates the access/refresh tokens after a successful refresh.
func (r *ProviderConnectionRepo) UpdateTokens(id, accessToken, refreshToken string, expiresAt, refreshedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		UPDATE provider_connections SET
			access_token = ?, refresh_token = ?, token_expires_at = ?, status = 'ACTIVE', last_refreshed_at = ?
		WHERE id = ?`, accessToken, refreshToken, expiresAt, refreshedAt, id)
	return err
}

// SetStatus transitions a connection's status, used by the health monitor
// when refresh fails persistently (EXPIRED) or the provider reports the
// grant revoked (REVOKED).
func (r *ProviderConnectionRepo) SetStatus(id string, status model.ConnectionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`UPDATE provider_connections SET status = ? WHERE id = ?`, status, id)
	return err
}
