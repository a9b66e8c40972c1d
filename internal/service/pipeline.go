package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"news_digest/internal/domain"
)

// Pipeline is one full collect -> generate -> deliver pass. A stage's
// reported failure short-circuits later stages but is returned as a
// value; the pipeline never panics past this boundary on its own.
type Pipeline struct {
	collector *Collector
	generator *Generator
	delivery  *Delivery
	digests   DigestStore
	publisher DigestPublisher
	rec       recorder
	logger    *slog.Logger
}

func NewPipeline(
	collector *Collector,
	generator *Generator,
	delivery *Delivery,
	digests DigestStore,
	publisher DigestPublisher,
	activity ActivityStore,
	logger *slog.Logger,
) *Pipeline {
	logger = logger.With("component", "pipeline")
	return &Pipeline{
		collector: collector,
		generator: generator,
		delivery:  delivery,
		digests:   digests,
		publisher: publisher,
		rec:       recorder{activity: activity, logger: logger},
		logger:    logger,
	}
}

// Run executes the whole pipeline and reports what happened. The
// returned stats carry the failed stage name when err is non-nil.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunStats, error) {
	start := time.Now()
	stats := &domain.RunStats{}

	col, err := p.collector.Collect(ctx)
	if err != nil {
		stats.FailedStage = "collect"
		stats.Duration = time.Since(start)
		p.logger.Error("run failed during collection", "error", err)
		return stats, err
	}
	stats.Articles = len(col.Articles)
	stats.Sources = len(col.FeedIDs)

	digest, err := p.generator.Generate(ctx, col)
	if err != nil {
		stats.FailedStage = "generate"
		stats.Duration = time.Since(start)
		p.logger.Error("run failed during generation", "error", err)
		return stats, err
	}
	stats.DigestID = digest.ID

	if p.publisher != nil {
		if perr := p.publisher.Publish(ctx, digest); perr != nil {
			// event delivery is best-effort
			p.logger.Warn("failed to publish digest event", "digest_id", digest.ID, "error", perr)
		}
	}

	if err := p.delivery.Deliver(ctx, digest.ID); err != nil {
		stats.FailedStage = "deliver"
		stats.Duration = time.Since(start)
		p.logger.Error("run failed during delivery", "digest_id", digest.ID, "error", err)
		return stats, err
	}
	stats.EmailSent = true
	stats.Duration = time.Since(start)

	p.logger.Info("run completed",
		"digest_id", stats.DigestID,
		"articles", stats.Articles,
		"sources", stats.Sources,
		"duration", stats.Duration,
	)

	return stats, nil
}

// GenerateDigest runs collection and generation without delivery, for
// the on-demand generate operation.
func (p *Pipeline) GenerateDigest(ctx context.Context) (*domain.Digest, error) {
	col, err := p.collector.Collect(ctx)
	if err != nil {
		return nil, err
	}

	digest, err := p.generator.Generate(ctx, col)
	if err != nil {
		return nil, err
	}

	if p.publisher != nil {
		if perr := p.publisher.Publish(ctx, digest); perr != nil {
			p.logger.Warn("failed to publish digest event", "digest_id", digest.ID, "error", perr)
		}
	}

	return digest, nil
}

// RetryDigest regenerates and delivers a fresh digest after verifying
// that the referenced digest exists. Retrying re-runs the whole
// generate step rather than resending the stored digest; use
// Delivery.Deliver to resend an existing one.
func (p *Pipeline) RetryDigest(ctx context.Context, digestID string) (*domain.Digest, error) {
	prev, err := p.digests.Get(ctx, digestID)
	if err != nil {
		return nil, fmt.Errorf("get digest: %w", err)
	}
	if prev == nil {
		return nil, ErrDigestNotFound
	}

	digest, err := p.GenerateDigest(ctx)
	if err != nil {
		return nil, err
	}

	if err := p.delivery.Deliver(ctx, digest.ID); err != nil {
		return digest, err
	}

	return digest, nil
}
