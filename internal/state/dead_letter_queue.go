package state

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/ejohane/zine-sub/internal/model"
)

// DeadLetterQueueRepo provides CRUD for dead_letter_queue, the durable sink
// for items that failed transformation/ingestion after inline retries.
type DeadLetterQueueRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewDeadLetterQueueRepo creates a DeadLetterQueueRepo over db.
func NewDeadLetterQueueRepo(db *sql.DB) *DeadLetterQueueRepo {
	return &DeadLetterQueueRepo{db: db}
}

// Insert records a failed item.
func (r *DeadLetterQueueRepo) Insert(d model.DeadLetterQueue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO dead_letter_queue (id, subscription_id, user_id, provider, provider_id,
		    raw_data, error_message, error_type, error_stack, retry_count, last_retry_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SubscriptionID, d.UserID, d.Provider, d.ProviderID, d.RawData, d.ErrorMessage,
		d.ErrorType, d.ErrorStack, d.RetryCount, d.LastRetryAt, d.Status, d.CreatedAt)
	return err
}

// ListByStatus lists dead-lettered rows by status, oldest first, for the
// retry sweep.
func (r *DeadLetterQueueRepo) ListByStatus(status model.DLQStatus, limit int) ([]model.DeadLetterQueue, error) {
	rows, err := r.db.Query(`
		SELECT id, subscription_id, user_id, provider, provider_id, raw_data, error_message,
		       error_type, error_stack, retry_count, last_retry_at, status, created_at
		FROM dead_letter_queue WHERE status = ? ORDER BY created_at ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DeadLetterQueue
	for rows.Next() {
		var d model.DeadLetterQueue
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.UserID, &d.Provider, &d.ProviderID,
			&d.RawData, &d.ErrorMessage, &d.ErrorType, &d.ErrorStack, &d.RetryCount,
			&d.LastRetryAt, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByID looks up a dead-lettered row by id.
func (r *DeadLetterQueueRepo) GetByID(id string) (*model.DeadLetterQueue, error) {
	row := r.db.QueryRow(`
		SELECT id, subscription_id, user_id, provider, provider_id, raw_data, error_message,
		       error_type, error_stack, retry_count, last_retry_at, status, created_at
		FROM dead_letter_queue WHERE id = ?`, id)
	var d model.DeadLetterQueue
	if err := row.Scan(&d.ID, &d.SubscriptionID, &d.UserID, &d.Provider, &d.ProviderID,
		&d.RawData, &d.ErrorMessage, &d.ErrorType, &d.ErrorStack, &d.RetryCount,
		&d.LastRetryAt, &d.Status, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// UpdateRetry records a retry attempt, advancing retry_count and status.
func (r *DeadLetterQueueRepo) UpdateRetry(id string, status model.DLQStatus, retryCount int, lastRetryAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		UPDATE dead_letter_queue SET status = ?, retry_count = ?, last_retry_at = ? WHERE id = ?`,
		status, retryCount, lastRetryAt, id)
	return err
}
