package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"news_digest/internal/domain"
)

const userAgent = "NewsDigest/1.0"

// Config holds fetch bounds for a single feed poll.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	Retries      int
	Backoff      time.Duration
}

// Source fetches and parses remote RSS/Atom feeds. A failed primary
// URL is retried with linear backoff; when every attempt fails and the
// URL ends in "/feed", one "/rss" variant is tried before giving up.
type Source struct {
	parser  *gofeed.Parser
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}

	return &Source{
		parser:  parser,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		logger:  logger.With("component", "rss"),
	}
}

// Fetch retrieves and normalizes the feed at url. Failure is returned
// as an error value; it is never fatal to the caller.
func (s *Source) Fetch(ctx context.Context, url string) (*domain.ParsedFeed, error) {
	feed, err := s.fetchWithRetry(ctx, url)
	if err == nil {
		return s.transform(feed), nil
	}

	alternate, ok := alternateURL(url)
	if !ok {
		return nil, err
	}

	s.logger.Warn("primary url failed, trying alternate",
		"url", url,
		"alternate", alternate,
		"error", err,
	)

	feed, altErr := s.parser.ParseURLWithContext(alternate, ctx)
	if altErr != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}

	return s.transform(feed), nil
}

func (s *Source) fetchWithRetry(ctx context.Context, url string) (*gofeed.Feed, error) {
	attempts := s.retries + 1

	var feed *gofeed.Feed
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		feed, err = s.parser.ParseURLWithContext(url, ctx)
		if err == nil {
			return feed, nil
		}

		if attempt == attempts {
			break
		}

		backoff := s.backoff * time.Duration(attempt)
		s.logger.Warn("fetch failed, retrying",
			"url", url,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", attempts, err)
}

func (s *Source) transform(feed *gofeed.Feed) *domain.ParsedFeed {
	items := make([]domain.FeedItem, 0, len(feed.Items))

	for _, item := range feed.Items {
		content := item.Content
		if content == "" {
			content = item.Description
		}

		var author string
		if item.Author != nil {
			author = item.Author.Name
		}

		items = append(items, domain.FeedItem{
			Title:       item.Title,
			Link:        item.Link,
			Content:     content,
			Author:      author,
			Categories:  item.Categories,
			PublishedAt: publishedAt(item),
		})
	}

	return &domain.ParsedFeed{
		Title: feed.Title,
		Items: items,
	}
}

// publishedAt prefers the published timestamp and falls back to the
// updated one. Items with neither stay undated.
func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	return nil
}

func alternateURL(url string) (string, bool) {
	if strings.HasSuffix(url, "/feed") {
		return strings.TrimSuffix(url, "/feed") + "/rss", true
	}
	return "", false
}
