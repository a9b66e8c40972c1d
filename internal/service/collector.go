package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"news_digest/internal/config"
	"news_digest/internal/domain"
)

// Collection is the output of one collect pass: the flattened article
// list plus the ids of the feeds that contributed at least one usable
// article.
type Collection struct {
	Articles []domain.Article
	FeedIDs  []string
}

// Collector drives the feed checker across all eligible feeds and
// filters the results down to recent, usable articles. Feeds are
// polled one at a time; a failing feed is skipped, not fatal.
type Collector struct {
	feeds   FeedStore
	checker *FeedChecker
	cfg     config.DigestConfig
	rec     recorder
	logger  *slog.Logger
}

func NewCollector(feeds FeedStore, checker *FeedChecker, activity ActivityStore, logger *slog.Logger, cfg config.DigestConfig) *Collector {
	logger = logger.With("component", "collector")
	return &Collector{
		feeds:   feeds,
		checker: checker,
		cfg:     cfg,
		rec:     recorder{activity: activity, logger: logger},
		logger:  logger,
	}
}

// Collect gathers articles from every feed that is active and marked
// for digest inclusion.
func (c *Collector) Collect(ctx context.Context) (*Collection, error) {
	feeds, err := c.feeds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	var eligible []domain.Feed
	for _, feed := range feeds {
		if feed.Eligible() {
			eligible = append(eligible, feed)
		}
	}

	if len(eligible) == 0 {
		c.rec.record(ctx, "collect", "No feeds are active and included in the digest",
			domain.SeverityError, nil)
		return nil, ErrNoEligibleFeeds
	}

	cutoff := time.Now().Add(-c.cfg.RecencyWindow)

	collection := &Collection{}
	for _, feed := range eligible {
		parsed, cerr := c.checker.Check(ctx, feed)
		if cerr != nil {
			continue
		}

		articles := c.selectArticles(feed, parsed, cutoff)
		if len(articles) == 0 {
			continue
		}

		collection.Articles = append(collection.Articles, articles...)
		collection.FeedIDs = append(collection.FeedIDs, feed.ID)
	}

	if len(collection.Articles) == 0 {
		c.rec.record(ctx, "collect", "Eligible feeds yielded no usable articles",
			domain.SeverityError, map[string]any{"eligible_feeds": len(eligible)})
		return nil, ErrNoArticles
	}

	c.rec.record(ctx, "collect", "Collected articles for digest",
		domain.SeverityInfo, map[string]any{
			"articles": len(collection.Articles),
			"feeds":    len(collection.FeedIDs),
		})

	c.logger.Info("collection completed",
		"articles", len(collection.Articles),
		"feeds", len(collection.FeedIDs),
	)

	return collection, nil
}

// selectArticles filters one feed's items to those within the recency
// window with both a title and a body, newest first, capped per feed.
// Undated items are treated as recent.
func (c *Collector) selectArticles(feed domain.Feed, parsed *domain.ParsedFeed, cutoff time.Time) []domain.Article {
	var kept []domain.FeedItem
	for _, item := range parsed.Items {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Content) == "" {
			continue
		}
		if item.PublishedAt != nil && item.PublishedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return itemTime(kept[i]).After(itemTime(kept[j]))
	})

	if len(kept) > c.cfg.MaxPerFeed {
		kept = kept[:c.cfg.MaxPerFeed]
	}

	sourceName := feed.Name
	if sourceName == "" {
		sourceName = parsed.Title
	}

	articles := make([]domain.Article, 0, len(kept))
	for _, item := range kept {
		articles = append(articles, domain.Article{
			Title:       item.Title,
			Body:        item.Content,
			SourceName:  sourceName,
			Link:        item.Link,
			PublishedAt: item.PublishedAt,
		})
	}

	return articles
}

func itemTime(item domain.FeedItem) time.Time {
	if item.PublishedAt != nil {
		return *item.PublishedAt
	}
	// undated items sort as newest
	return time.Now()
}
