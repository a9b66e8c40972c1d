package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"news_digest/internal/domain"
)

// FeedChecker polls a single feed and owns the health fields on its
// Feed record: every poll stamps lastChecked and either restores the
// feed to active or marks it errored with the cause.
type FeedChecker struct {
	source FeedSource
	feeds  FeedStore
	rec    recorder
	logger *slog.Logger
}

func NewFeedChecker(source FeedSource, feeds FeedStore, activity ActivityStore, logger *slog.Logger) *FeedChecker {
	logger = logger.With("component", "feedcheck")
	return &FeedChecker{
		source: source,
		feeds:  feeds,
		rec:    recorder{activity: activity, logger: logger},
		logger: logger,
	}
}

// Check fetches one feed and applies the health outcome. A fetch
// failure is returned as a value so callers can keep going with the
// remaining feeds.
func (c *FeedChecker) Check(ctx context.Context, feed domain.Feed) (*domain.ParsedFeed, error) {
	parsed, err := c.source.Fetch(ctx, feed.URL)
	now := time.Now()

	if err != nil {
		if uerr := c.feeds.UpdateHealth(ctx, feed.ID, domain.FeedStatusError, err.Error(), now); uerr != nil {
			c.logger.Error("failed to update feed health", "feed", feed.Name, "error", uerr)
		}
		c.rec.record(ctx, "feed_check", fmt.Sprintf("Failed to fetch feed %q", feed.Name),
			domain.SeverityError, map[string]any{
				"feed_id": feed.ID,
				"url":     feed.URL,
				"error":   err.Error(),
			})
		return nil, err
	}

	if uerr := c.feeds.UpdateHealth(ctx, feed.ID, domain.FeedStatusActive, "", now); uerr != nil {
		c.logger.Error("failed to update feed health", "feed", feed.Name, "error", uerr)
	}
	c.rec.record(ctx, "feed_check", fmt.Sprintf("Fetched feed %q", feed.Name),
		domain.SeverityInfo, map[string]any{
			"feed_id": feed.ID,
			"items":   len(parsed.Items),
		})

	return parsed, nil
}

// CheckByID checks a single feed by id, for the manual check-feed
// operation.
func (c *FeedChecker) CheckByID(ctx context.Context, id string) error {
	feed, err := c.feeds.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get feed: %w", err)
	}
	if feed == nil {
		return fmt.Errorf("feed %s not found", id)
	}

	_, err = c.Check(ctx, *feed)
	return err
}

// CheckAll polls every active feed sequentially and reports how many
// checks failed. Individual failures do not stop the sweep.
func (c *FeedChecker) CheckAll(ctx context.Context) (checked, failed int, err error) {
	feeds, err := c.feeds.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list feeds: %w", err)
	}

	for _, feed := range feeds {
		if !feed.Active {
			continue
		}
		checked++
		if _, cerr := c.Check(ctx, feed); cerr != nil {
			failed++
		}
	}

	c.logger.Info("feed sweep completed", "checked", checked, "failed", failed)
	return checked, failed, nil
}
