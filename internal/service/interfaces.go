package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"news_digest/internal/domain"
)

type FeedStore interface {
	List(ctx context.Context) ([]domain.Feed, error)
	Get(ctx context.Context, id string) (*domain.Feed, error)
	UpdateHealth(ctx context.Context, id string, status domain.FeedStatus, lastError string, checkedAt time.Time) error
}

type DigestStore interface {
	Create(ctx context.Context, digest *domain.Digest) error
	Get(ctx context.Context, id string) (*domain.Digest, error)
	UpdateDelivery(ctx context.Context, id string, sent bool, emailError string) error
	ListRecent(ctx context.Context, limit int) ([]domain.Digest, error)
}

type MailSettingsStore interface {
	GetActive(ctx context.Context) (*domain.MailSettings, error)
}

type ActivityStore interface {
	Append(ctx context.Context, entry domain.ActivityEntry) error
}

type FeedSource interface {
	Fetch(ctx context.Context, url string) (*domain.ParsedFeed, error)
}

type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type MailSender interface {
	Send(ctx context.Context, settings domain.MailSettings, email domain.Email) error
}

type DigestPublisher interface {
	Publish(ctx context.Context, digest *domain.Digest) error
	Close() error
}
