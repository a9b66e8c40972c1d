package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"news_digest/internal/domain"
)

type DigestStore struct {
	db *sqlx.DB
}

func NewDigestStore(db *sqlx.DB) *DigestStore {
	return &DigestStore{db: db}
}

func (s *DigestStore) Create(ctx context.Context, digest *domain.Digest) error {
	query := `
		INSERT INTO digests (
			id, title, body, excerpt, article_count, source_count,
			email_sent, email_error, generated_at, feed_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		digest.ID,
		digest.Title,
		digest.Body,
		digest.Excerpt,
		digest.ArticleCount,
		digest.SourceCount,
		digest.EmailSent,
		digest.EmailError,
		digest.GeneratedAt,
		pq.Array(digest.FeedIDs),
	)
	return err
}

func (s *DigestStore) Get(ctx context.Context, id string) (*domain.Digest, error) {
	query := `
		SELECT id, title, body, excerpt, article_count, source_count,
		       email_sent, email_error, generated_at, feed_ids
		FROM digests
		WHERE id = $1`

	digest, err := scanDigest(s.db.QueryRowxContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return digest, nil
}

func (s *DigestStore) UpdateDelivery(ctx context.Context, id string, sent bool, emailError string) error {
	query := `
		UPDATE digests
		SET email_sent = $2, email_error = $3
		WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, id, sent, emailError)
	return err
}

func (s *DigestStore) ListRecent(ctx context.Context, limit int) ([]domain.Digest, error) {
	query := `
		SELECT id, title, body, excerpt, article_count, source_count,
		       email_sent, email_error, generated_at, feed_ids
		FROM digests
		ORDER BY generated_at DESC
		LIMIT $1`

	rows, err := s.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var digests []domain.Digest
	for rows.Next() {
		digest, err := scanDigest(rows)
		if err != nil {
			return nil, err
		}
		digests = append(digests, *digest)
	}

	return digests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDigest(row rowScanner) (*domain.Digest, error) {
	var digest domain.Digest
	var feedIDs pq.StringArray

	err := row.Scan(
		&digest.ID,
		&digest.Title,
		&digest.Body,
		&digest.Excerpt,
		&digest.ArticleCount,
		&digest.SourceCount,
		&digest.EmailSent,
		&digest.EmailError,
		&digest.GeneratedAt,
		&feedIDs,
	)
	if err != nil {
		return nil, err
	}

	digest.FeedIDs = feedIDs
	return &digest, nil
}
