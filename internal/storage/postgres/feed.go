package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"news_digest/internal/domain"
)

type FeedStore struct {
	db *sqlx.DB
}

func NewFeedStore(db *sqlx.DB) *FeedStore {
	return &FeedStore{db: db}
}

func (s *FeedStore) Create(ctx context.Context, feed *domain.Feed) error {
	query := `
		INSERT INTO feeds (id, name, url, active, include_in_digest, poll_frequency_hours, last_error, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		feed.ID,
		feed.Name,
		feed.URL,
		feed.Active,
		feed.IncludeInDigest,
		feed.PollFrequencyHours,
		feed.LastError,
		feed.Status,
	)
	return err
}

func (s *FeedStore) List(ctx context.Context) ([]domain.Feed, error) {
	query := `
		SELECT id, name, url, active, include_in_digest, poll_frequency_hours,
		       last_checked_at, last_error, status
		FROM feeds
		ORDER BY name`

	var feeds []domain.Feed
	err := s.db.SelectContext(ctx, &feeds, query)
	return feeds, err
}

func (s *FeedStore) Get(ctx context.Context, id string) (*domain.Feed, error) {
	query := `
		SELECT id, name, url, active, include_in_digest, poll_frequency_hours,
		       last_checked_at, last_error, status
		FROM feeds
		WHERE id = $1`

	var feed domain.Feed
	err := s.db.GetContext(ctx, &feed, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func (s *FeedStore) UpdateHealth(ctx context.Context, id string, status domain.FeedStatus, lastError string, checkedAt time.Time) error {
	query := `
		UPDATE feeds
		SET status = $2, last_error = $3, last_checked_at = $4
		WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, id, status, lastError, checkedAt)
	return err
}
