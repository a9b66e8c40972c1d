package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"news_digest/internal/domain"
)

type ScheduleStore struct {
	db *sqlx.DB
}

func NewScheduleStore(db *sqlx.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// Get returns the singleton schedule state, or a disabled default when
// the row has never been written.
func (s *ScheduleStore) Get(ctx context.Context) (*domain.ScheduleState, error) {
	query := `
		SELECT enabled, frequency_hours, next_run, last_run
		FROM schedule_state
		WHERE id = 1`

	var state domain.ScheduleState
	err := s.db.GetContext(ctx, &state, query)
	if err == sql.ErrNoRows {
		return &domain.ScheduleState{FrequencyHours: 4}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *ScheduleStore) Update(ctx context.Context, state *domain.ScheduleState) error {
	query := `
		INSERT INTO schedule_state (id, enabled, frequency_hours, next_run, last_run)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			frequency_hours = EXCLUDED.frequency_hours,
			next_run = EXCLUDED.next_run,
			last_run = EXCLUDED.last_run`

	_, err := s.db.ExecContext(ctx, query,
		state.Enabled,
		state.FrequencyHours,
		state.NextRun,
		state.LastRun,
	)
	return err
}
