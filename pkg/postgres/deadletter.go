package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
)

const deadLetterSchema = `
CREATE TABLE IF NOT EXISTS bulk_dead_letters (
	id          BIGSERIAL PRIMARY KEY,
	kind        TEXT        NOT NULL,
	action      JSONB       NOT NULL,
	index_name  TEXT        NOT NULL,
	doc_id      TEXT        NOT NULL DEFAULT '',
	status      INTEGER     NOT NULL,
	error_type  TEXT        NOT NULL DEFAULT '',
	reason      TEXT        NOT NULL DEFAULT '',
	failed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS bulk_dead_letters_failed_at ON bulk_dead_letters (failed_at);`

// DeadLetter is one rejected bulk action. Action holds the action's
// polymorphic JSON form so it can be decoded and sent again.
type DeadLetter struct {
	ID        int64
	Kind      string
	Action    []byte
	Index     string
	DocID     string
	Status    int
	ErrorType string
	Reason    string
	FailedAt  time.Time
}

// NewDeadLetter pairs a rejected action with the engine's verdict on it.
func NewDeadLetter(a bulkable.Action, item reply.BulkItem, at time.Time) (DeadLetter, error) {
	data, err := bulkable.Marshal(a)
	if err != nil {
		return DeadLetter{}, fmt.Errorf("encoding dead letter: %w", err)
	}
	dl := DeadLetter{
		Kind:     string(a.Kind()),
		Action:   data,
		Index:    a.Meta().Index,
		DocID:    item.ID,
		Status:   item.Status,
		FailedAt: at.UTC(),
	}
	if dl.DocID == "" {
		dl.DocID = a.Meta().ID
	}
	if item.Error != nil {
		dl.ErrorType = item.Error.Type
		dl.Reason = item.Error.Reason
	}
	return dl, nil
}

// Decode returns the action the letter carries.
func (d DeadLetter) Decode() (bulkable.Action, error) {
	return bulkable.Unmarshal(d.Action)
}

// DeadLetterStore persists dead letters in the bulk_dead_letters table.
type DeadLetterStore struct {
	client *Client
	logger *slog.Logger
}

func NewDeadLetterStore(c *Client) *DeadLetterStore {
	return &DeadLetterStore{
		client: c,
		logger: slog.Default().With("component", "dead-letters"),
	}
}

// EnsureSchema creates the table if it does not exist.
func (s *DeadLetterStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.DB.ExecContext(ctx, deadLetterSchema); err != nil {
		return fmt.Errorf("creating dead letter table: %w", err)
	}
	return nil
}

// Record inserts letters in one transaction.
func (s *DeadLetterStore) Record(ctx context.Context, letters []DeadLetter) error {
	if len(letters) == 0 {
		return nil
	}
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO bulk_dead_letters (kind, action, index_name, doc_id, status, error_type, reason, failed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
		if err != nil {
			return fmt.Errorf("preparing dead letter insert: %w", err)
		}
		defer stmt.Close()
		for _, d := range letters {
			if _, err := stmt.ExecContext(ctx,
				d.Kind, string(d.Action), d.Index, d.DocID, d.Status, d.ErrorType, d.Reason, d.FailedAt,
			); err != nil {
				return fmt.Errorf("inserting dead letter for %s/%s: %w", d.Index, d.DocID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("dead letters recorded", "count", len(letters))
	return nil
}

// List returns up to limit letters, oldest first.
func (s *DeadLetterStore) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT id, kind, action, index_name, doc_id, status, error_type, reason, failed_at
		FROM bulk_dead_letters
		ORDER BY failed_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var d DeadLetter
		if err := rows.Scan(&d.ID, &d.Kind, &d.Action, &d.Index, &d.DocID, &d.Status, &d.ErrorType, &d.Reason, &d.FailedAt); err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes letters by id, typically after a successful replay.
func (s *DeadLetterStore) Delete(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.client.DB.ExecContext(ctx, `DELETE FROM bulk_dead_letters WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("deleting dead letters: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored letters.
func (s *DeadLetterStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.client.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM bulk_dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting dead letters: %w", err)
	}
	return n, nil
}
