package service

import "errors"

var (
	// ErrNoEligibleFeeds is reported when no feed is both active and
	// marked for digest inclusion.
	ErrNoEligibleFeeds = errors.New("no eligible feeds")

	// ErrNoArticles is reported when every eligible feed yielded zero
	// usable articles after filtering.
	ErrNoArticles = errors.New("no articles collected")

	// ErrDigestNotFound is reported when a delivery or retry targets a
	// digest id that does not exist.
	ErrDigestNotFound = errors.New("digest not found")

	// ErrNoMailSettings is reported when delivery is attempted without
	// an active outbound mail configuration.
	ErrNoMailSettings = errors.New("no active mail settings")
)
