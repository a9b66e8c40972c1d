package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"news_digest/internal/config"
	"news_digest/internal/domain"
)

// placeholderBody matches refusal boilerplate that some models emit
// instead of an actual digest body.
var placeholderBody = regexp.MustCompile(`(?i)could not be generated|unable to generate|cannot generate`)

const fallbackHeadlines = 5

// Generator turns a collection of articles into a persisted digest.
// When the text-generation call fails or returns unusable output it
// falls through to a deterministic local digest, so a run always
// produces something deliverable.
type Generator struct {
	textgen TextGenerator
	digests DigestStore
	cfg     config.DigestConfig
	rec     recorder
	logger  *slog.Logger
}

func NewGenerator(textgen TextGenerator, digests DigestStore, activity ActivityStore, logger *slog.Logger, cfg config.DigestConfig) *Generator {
	logger = logger.With("component", "generator")
	return &Generator{
		textgen: textgen,
		digests: digests,
		cfg:     cfg,
		rec:     recorder{activity: activity, logger: logger},
		logger:  logger,
	}
}

// Generate creates exactly one digest record from the collection.
func (g *Generator) Generate(ctx context.Context, col *Collection) (*domain.Digest, error) {
	if col == nil || len(col.Articles) == 0 {
		return nil, ErrNoArticles
	}

	content := g.compose(ctx, col.Articles)

	digest := &domain.Digest{
		ID:           uuid.NewString(),
		Title:        content.Title,
		Body:         content.Body,
		Excerpt:      content.Excerpt,
		ArticleCount: len(col.Articles),
		SourceCount:  len(col.FeedIDs),
		GeneratedAt:  time.Now(),
		FeedIDs:      col.FeedIDs,
	}

	if err := g.digests.Create(ctx, digest); err != nil {
		g.rec.record(ctx, "generate", "Failed to store generated digest",
			domain.SeverityError, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("create digest: %w", err)
	}

	g.rec.record(ctx, "generate", "Digest generated",
		domain.SeverityInfo, map[string]any{
			"digest_id": digest.ID,
			"articles":  digest.ArticleCount,
			"sources":   digest.SourceCount,
			"fallback":  content.Fallback,
		})

	return digest, nil
}

// digestContent is the generator's intermediate output before it is
// stamped into a Digest record.
type digestContent struct {
	Title    string
	Excerpt  string
	Body     string
	Fallback bool
}

func (g *Generator) compose(ctx context.Context, articles []domain.Article) digestContent {
	now := time.Now()

	raw, callErr := g.textgen.Complete(ctx, buildPrompt(articles, g.cfg.MaxArticleChars))

	fields, verdict := evaluateCompletion(raw, callErr)
	switch verdict {
	case completionOK:
	case completionCallFailed, completionEmptyPayload, completionMalformed, completionEmptyBody:
		g.logger.Warn("text generation unusable, using fallback digest",
			"reason", verdict.String(),
			"error", callErr,
		)
		fb := fallbackContent(articles, now)
		fb.Fallback = true
		return fb
	}

	// body accepted; title and excerpt still fall back individually
	if strings.TrimSpace(fields.Title) == "" {
		fields.Title = fallbackTitle(now)
	}
	if strings.TrimSpace(fields.Excerpt) == "" {
		fields.Excerpt = fallbackExcerpt(articles)
	}

	return digestContent{
		Title:   fields.Title,
		Excerpt: fields.Excerpt,
		Body:    fields.Body,
	}
}

// completionVerdict tags the outcome of parse-then-validate on the
// text-generation response. The checks run in a fixed order; the
// first failure wins.
type completionVerdict int

const (
	completionOK completionVerdict = iota
	completionCallFailed
	completionEmptyPayload
	completionMalformed
	completionEmptyBody
)

func (v completionVerdict) String() string {
	switch v {
	case completionOK:
		return "ok"
	case completionCallFailed:
		return "call_failed"
	case completionEmptyPayload:
		return "empty_payload"
	case completionMalformed:
		return "malformed_json"
	case completionEmptyBody:
		return "empty_body"
	default:
		return "unknown"
	}
}

type completionFields struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Body    string `json:"body"`
}

// evaluateCompletion applies the ordered validation chain:
// call error, missing payload, malformed JSON, unusable body.
func evaluateCompletion(raw string, callErr error) (completionFields, completionVerdict) {
	if callErr != nil {
		return completionFields{}, completionCallFailed
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return completionFields{}, completionEmptyPayload
	}

	var fields completionFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return completionFields{}, completionMalformed
	}

	if strings.TrimSpace(fields.Body) == "" || placeholderBody.MatchString(fields.Body) {
		return completionFields{}, completionEmptyBody
	}

	return fields, completionOK
}

func buildPrompt(articles []domain.Article, maxChars int) string {
	var b strings.Builder
	b.WriteString("Summarize the following articles into one news digest.\n\n")

	for i, a := range articles {
		fmt.Fprintf(&b, "Article %d: %s\nSource: %s\n%s\n\n",
			i+1, a.Title, a.SourceName, truncate(a.Body, maxChars))
	}

	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// fallbackContent builds the deterministic digest used when text
// generation is unavailable: source list plus the most recent
// headlines, no external call.
func fallbackContent(articles []domain.Article, now time.Time) digestContent {
	title := fallbackTitle(now)
	sources := distinctSources(articles)

	sorted := make([]domain.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return articleTime(sorted[i], now).After(articleTime(sorted[j], now))
	})

	headlines := sorted
	if len(headlines) > fallbackHeadlines {
		headlines = headlines[:fallbackHeadlines]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString("## Sources\n\n")
	for _, source := range sources {
		fmt.Fprintf(&b, "- %s\n", source)
	}
	b.WriteString("\n## Latest Headlines\n\n")
	for _, a := range headlines {
		fmt.Fprintf(&b, "- %s\n", a.Title)
	}
	b.WriteString("\n*AI summarization was unavailable for this digest. The headlines above were taken directly from the collected articles.*\n")

	return digestContent{
		Title:   title,
		Excerpt: fallbackExcerpt(articles),
		Body:    b.String(),
	}
}

func fallbackTitle(now time.Time) string {
	return "News Summary - " + now.Format("January 2, 2006")
}

func fallbackExcerpt(articles []domain.Article) string {
	n := len(articles)
	m := len(distinctSources(articles))
	return fmt.Sprintf("Latest news from %d %s across %d %s.",
		n, pluralize(n, "article", "articles"),
		m, pluralize(m, "source", "sources"),
	)
}

func distinctSources(articles []domain.Article) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, a := range articles {
		if _, ok := seen[a.SourceName]; ok {
			continue
		}
		seen[a.SourceName] = struct{}{}
		sources = append(sources, a.SourceName)
	}
	return sources
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

func articleTime(a domain.Article, now time.Time) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return now
}
