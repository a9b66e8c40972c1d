package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"news_digest/internal/domain"
)

type MailSettingsStore struct {
	db *sqlx.DB
}

func NewMailSettingsStore(db *sqlx.DB) *MailSettingsStore {
	return &MailSettingsStore{db: db}
}

// GetActive returns the active outbound mail configuration, or nil
// when none is configured.
func (s *MailSettingsStore) GetActive(ctx context.Context) (*domain.MailSettings, error) {
	query := `
		SELECT host, port, username, password, security, from_address, recipients, subject_template
		FROM mail_settings
		WHERE active = TRUE
		ORDER BY id
		LIMIT 1`

	var settings domain.MailSettings
	var recipients pq.StringArray

	err := s.db.QueryRowxContext(ctx, query).Scan(
		&settings.Host,
		&settings.Port,
		&settings.Username,
		&settings.Password,
		&settings.Security,
		&settings.FromAddress,
		&recipients,
		&settings.SubjectTemplate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	settings.Recipients = recipients
	return &settings, nil
}
