package service

import (
	"context"
	"log/slog"
	"time"

	"news_digest/internal/domain"
)

// recorder appends audit entries, degrading to a log line when the
// activity store itself is unavailable. Audit failures never fail the
// operation that produced them.
type recorder struct {
	activity ActivityStore
	logger   *slog.Logger
}

func (r recorder) record(ctx context.Context, typ, message string, severity domain.ActivitySeverity, details map[string]any) {
	entry := domain.ActivityEntry{
		Type:      typ,
		Message:   message,
		Details:   details,
		Severity:  severity,
		CreatedAt: time.Now(),
	}

	if err := r.activity.Append(ctx, entry); err != nil {
		r.logger.Warn("failed to append activity entry",
			"type", typ,
			"message", message,
			"error", err,
		)
	}
}
