package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"news_digest/internal/domain"
)

// ActivityStore is append-only; entries are never mutated or deleted
// by the pipeline.
type ActivityStore struct {
	db *sqlx.DB
}

func NewActivityStore(db *sqlx.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) Append(ctx context.Context, entry domain.ActivityEntry) error {
	var details []byte
	if entry.Details != nil {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
	}

	query := `
		INSERT INTO activity_log (type, message, details, severity, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		entry.Type,
		entry.Message,
		details,
		entry.Severity,
		entry.CreatedAt,
	)
	return err
}
