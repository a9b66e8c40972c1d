package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"news_digest/internal/domain"
)

const defaultSubjectTemplate = "News Digest - {date}"

// Delivery renders a digest into an email and dispatches it to all
// configured recipients in one message, recording the outcome on the
// digest record.
type Delivery struct {
	digests  DigestStore
	settings MailSettingsStore
	sender   MailSender
	rec      recorder
	logger   *slog.Logger
}

func NewDelivery(digests DigestStore, settings MailSettingsStore, sender MailSender, activity ActivityStore, logger *slog.Logger) *Delivery {
	logger = logger.With("component", "delivery")
	return &Delivery{
		digests:  digests,
		settings: settings,
		sender:   sender,
		rec:      recorder{activity: activity, logger: logger},
		logger:   logger,
	}
}

// Deliver emails the digest with the given id. On failure the digest
// keeps emailSent=false and carries the cause in emailError; on
// success emailSent is set and emailError cleared.
func (d *Delivery) Deliver(ctx context.Context, digestID string) error {
	digest, err := d.digests.Get(ctx, digestID)
	if err != nil {
		return fmt.Errorf("get digest: %w", err)
	}
	if digest == nil {
		d.rec.record(ctx, "delivery", "Digest to deliver does not exist",
			domain.SeverityError, map[string]any{"digest_id": digestID})
		return ErrDigestNotFound
	}

	cfg, err := d.settings.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("get mail settings: %w", err)
	}
	if cfg == nil {
		d.rec.record(ctx, "delivery", "No active mail settings configured",
			domain.SeverityError, nil)
		return ErrNoMailSettings
	}

	email, err := d.buildEmail(digest, cfg)
	if err != nil {
		return d.failDelivery(ctx, digest, err)
	}

	if err := d.sender.Send(ctx, *cfg, email); err != nil {
		return d.failDelivery(ctx, digest, err)
	}

	if err := d.digests.UpdateDelivery(ctx, digest.ID, true, ""); err != nil {
		return fmt.Errorf("mark digest sent: %w", err)
	}

	d.rec.record(ctx, "delivery", "Digest email sent",
		domain.SeverityInfo, map[string]any{
			"digest_id":  digest.ID,
			"subject":    email.Subject,
			"recipients": email.To,
		})

	return nil
}

// SendTest sends a fixed synthetic digest to validate the mail
// configuration without touching any stored digest.
func (d *Delivery) SendTest(ctx context.Context) error {
	cfg, err := d.settings.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("get mail settings: %w", err)
	}
	if cfg == nil {
		return ErrNoMailSettings
	}

	digest := &domain.Digest{
		Title:        "Test Digest",
		Body:         "# Test Digest\n\nThis is a **test email** from your news digest service.\n\nIf you can read this, outbound mail is configured correctly.",
		Excerpt:      "Configuration test.",
		ArticleCount: 1,
		SourceCount:  1,
		GeneratedAt:  time.Now(),
	}

	email, err := d.buildEmail(digest, cfg)
	if err != nil {
		return err
	}
	email.Subject = "Test: " + email.Subject

	if err := d.sender.Send(ctx, *cfg, email); err != nil {
		d.rec.record(ctx, "delivery", "Test email failed",
			domain.SeverityError, map[string]any{"error": err.Error()})
		return fmt.Errorf("send test email: %w", err)
	}

	d.rec.record(ctx, "delivery", "Test email sent",
		domain.SeverityInfo, map[string]any{"recipients": email.To})

	return nil
}

func (d *Delivery) buildEmail(digest *domain.Digest, cfg *domain.MailSettings) (domain.Email, error) {
	html, err := renderHTML(digest)
	if err != nil {
		return domain.Email{}, err
	}

	return domain.Email{
		From:    cfg.FromAddress,
		To:      cfg.Recipients,
		Subject: buildSubject(cfg.SubjectTemplate, time.Now()),
		HTML:    html,
		Text:    renderText(digest),
	}, nil
}

func (d *Delivery) failDelivery(ctx context.Context, digest *domain.Digest, cause error) error {
	if err := d.digests.UpdateDelivery(ctx, digest.ID, false, cause.Error()); err != nil {
		d.logger.Error("failed to record delivery error", "digest_id", digest.ID, "error", err)
	}

	d.rec.record(ctx, "delivery", "Digest email failed",
		domain.SeverityError, map[string]any{
			"digest_id": digest.ID,
			"error":     cause.Error(),
		})

	return fmt.Errorf("deliver digest %s: %w", digest.ID, cause)
}

func buildSubject(tmpl string, now time.Time) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultSubjectTemplate
	}
	return strings.ReplaceAll(tmpl, "{date}", now.Format("January 2, 2006"))
}
