package domain

import "time"

// FeedStatus reflects the health of a feed after its last poll.
type FeedStatus string

const (
	FeedStatusActive  FeedStatus = "active"
	FeedStatusWarning FeedStatus = "warning"
	FeedStatusError   FeedStatus = "error"
)

// Feed is a registered RSS/Atom source. LastError is non-empty exactly
// when Status is FeedStatusError.
type Feed struct {
	ID                 string     `db:"id"`
	Name               string     `db:"name"`
	URL                string     `db:"url"`
	Active             bool       `db:"active"`
	IncludeInDigest    bool       `db:"include_in_digest"`
	PollFrequencyHours int        `db:"poll_frequency_hours"`
	LastCheckedAt      *time.Time `db:"last_checked_at"`
	LastError          string     `db:"last_error"`
	Status             FeedStatus `db:"status"`
}

// Eligible reports whether the feed participates in digest runs.
func (f Feed) Eligible() bool {
	return f.Active && f.IncludeInDigest
}

// ParsedFeed is the normalized result of fetching one feed URL.
type ParsedFeed struct {
	Title string
	Items []FeedItem
}

// FeedItem is a single normalized entry from a parsed feed.
// PublishedAt is nil when the feed carried no usable timestamp.
type FeedItem struct {
	Title       string
	Link        string
	Content     string
	Author      string
	Categories  []string
	PublishedAt *time.Time
}

// Article is the ephemeral per-run unit handed from the collector to
// the generator. It is never persisted.
type Article struct {
	Title       string
	Body        string
	SourceName  string
	Link        string
	PublishedAt *time.Time
}
