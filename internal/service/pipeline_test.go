package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"news_digest/internal/config"
	"news_digest/internal/domain"
	"news_digest/internal/service/mocks"
	"news_digest/testdata/utils"
)

// PipelineTestSuite exercises the full collect -> generate -> deliver
// chain with real services over mocked stores and transports.
type PipelineTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	feeds     *mocks.MockFeedStore
	digests   *mocks.MockDigestStore
	settings  *mocks.MockMailSettingsStore
	activity  *mocks.MockActivityStore
	source    *mocks.MockFeedSource
	textgen   *mocks.MockTextGenerator
	sender    *mocks.MockMailSender
	publisher *mocks.MockDigestPublisher

	pipeline *Pipeline
}

func (s *PipelineTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.feeds = mocks.NewMockFeedStore(s.ctrl)
	s.digests = mocks.NewMockDigestStore(s.ctrl)
	s.settings = mocks.NewMockMailSettingsStore(s.ctrl)
	s.activity = mocks.NewMockActivityStore(s.ctrl)
	s.source = mocks.NewMockFeedSource(s.ctrl)
	s.textgen = mocks.NewMockTextGenerator(s.ctrl)
	s.sender = mocks.NewMockMailSender(s.ctrl)
	s.publisher = mocks.NewMockDigestPublisher(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := config.DigestConfig{
		RecencyWindow:   24 * time.Hour,
		MaxPerFeed:      10,
		MaxArticleChars: 2000,
	}

	s.activity.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	checker := NewFeedChecker(s.source, s.feeds, s.activity, logger)
	collector := NewCollector(s.feeds, checker, s.activity, logger, cfg)
	generator := NewGenerator(s.textgen, s.digests, s.activity, logger, cfg)
	delivery := NewDelivery(s.digests, s.settings, s.sender, s.activity, logger)

	s.pipeline = NewPipeline(collector, generator, delivery, s.digests, s.publisher, s.activity, logger)
}

func (s *PipelineTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

func (s *PipelineTestSuite) expectCollection(ctx context.Context) {
	now := time.Now()

	feeds := []domain.Feed{
		{ID: "f1", Name: "Tech News", URL: "https://tech.example/feed", Active: true, IncludeInDigest: true},
		{ID: "f2", Name: "World News", URL: "https://world.example/feed", Active: true, IncludeInDigest: true},
	}

	s.feeds.EXPECT().List(ctx).Return(feeds, nil)

	for _, feed := range feeds {
		items := make([]domain.FeedItem, 0, 3)
		for i := 0; i < 3; i++ {
			items = append(items, domain.FeedItem{
				Title:       fmt.Sprintf("%s story %d", feed.Name, i),
				Content:     "body",
				PublishedAt: utils.Ptr(now.Add(-time.Duration(i) * time.Minute)),
			})
		}
		s.source.EXPECT().Fetch(ctx, feed.URL).Return(&domain.ParsedFeed{Title: feed.Name, Items: items}, nil)
		s.feeds.EXPECT().UpdateHealth(ctx, feed.ID, domain.FeedStatusActive, "", gomock.Any()).Return(nil)
	}
}

func (s *PipelineTestSuite) TestRun_FullPassWithFallbackDigest() {
	ctx := context.Background()

	s.expectCollection(ctx)

	// generation fails, the run continues on the fallback digest
	s.textgen.EXPECT().Complete(ctx, gomock.Any()).Return("", errors.New("model unavailable"))

	var created *domain.Digest
	s.digests.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, d *domain.Digest) error {
			created = d
			return nil
		})

	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	s.digests.EXPECT().Get(ctx, gomock.Any()).DoAndReturn(
		func(context.Context, string) (*domain.Digest, error) {
			return created, nil
		})
	s.settings.EXPECT().GetActive(ctx).Return(&domain.MailSettings{
		Host:        "smtp.example.com",
		Port:        587,
		FromAddress: "digest@example.com",
		Recipients:  []string{"reader@example.com"},
	}, nil)
	s.sender.EXPECT().Send(ctx, gomock.Any(), gomock.Any()).Return(nil)
	s.digests.EXPECT().UpdateDelivery(ctx, gomock.Any(), true, "").Return(nil)

	stats, err := s.pipeline.Run(ctx)

	s.NoError(err)
	s.Equal(6, stats.Articles)
	s.Equal(2, stats.Sources)
	s.Equal(created.ID, stats.DigestID)
	s.True(stats.EmailSent)
	s.Empty(stats.FailedStage)

	s.Equal(6, created.ArticleCount)
	s.Equal(2, created.SourceCount)
	s.Contains(created.Body, "## Latest Headlines")
}

func (s *PipelineTestSuite) TestRun_CollectionFailureShortCircuits() {
	ctx := context.Background()

	s.feeds.EXPECT().List(ctx).Return(nil, nil)

	stats, err := s.pipeline.Run(ctx)

	s.ErrorIs(err, ErrNoEligibleFeeds)
	s.Equal("collect", stats.FailedStage)
	s.False(stats.EmailSent)
	s.Empty(stats.DigestID)
}

func (s *PipelineTestSuite) TestRun_DeliveryFailureReported() {
	ctx := context.Background()

	s.expectCollection(ctx)

	s.textgen.EXPECT().Complete(ctx, gomock.Any()).Return(
		`{"title": "T", "excerpt": "E", "body": "B"}`, nil)

	var created *domain.Digest
	s.digests.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, d *domain.Digest) error {
			created = d
			return nil
		})

	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	sendErr := errors.New("smtp down")
	s.digests.EXPECT().Get(ctx, gomock.Any()).DoAndReturn(
		func(context.Context, string) (*domain.Digest, error) {
			return created, nil
		})
	s.settings.EXPECT().GetActive(ctx).Return(&domain.MailSettings{
		Host:        "smtp.example.com",
		Port:        587,
		FromAddress: "digest@example.com",
		Recipients:  []string{"reader@example.com"},
	}, nil)
	s.sender.EXPECT().Send(ctx, gomock.Any(), gomock.Any()).Return(sendErr)
	s.digests.EXPECT().UpdateDelivery(ctx, gomock.Any(), false, sendErr.Error()).Return(nil)

	stats, err := s.pipeline.Run(ctx)

	s.Error(err)
	s.Equal("deliver", stats.FailedStage)
	s.False(stats.EmailSent)
	s.Equal(created.ID, stats.DigestID)
}

func (s *PipelineTestSuite) TestRun_PublishFailureIsNotFatal() {
	ctx := context.Background()

	s.expectCollection(ctx)

	s.textgen.EXPECT().Complete(ctx, gomock.Any()).Return(
		`{"title": "T", "excerpt": "E", "body": "B"}`, nil)

	var created *domain.Digest
	s.digests.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, d *domain.Digest) error {
			created = d
			return nil
		})

	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("broker gone"))

	s.digests.EXPECT().Get(ctx, gomock.Any()).DoAndReturn(
		func(context.Context, string) (*domain.Digest, error) {
			return created, nil
		})
	s.settings.EXPECT().GetActive(ctx).Return(&domain.MailSettings{
		Host:        "smtp.example.com",
		Port:        587,
		FromAddress: "digest@example.com",
		Recipients:  []string{"reader@example.com"},
	}, nil)
	s.sender.EXPECT().Send(ctx, gomock.Any(), gomock.Any()).Return(nil)
	s.digests.EXPECT().UpdateDelivery(ctx, gomock.Any(), true, "").Return(nil)

	stats, err := s.pipeline.Run(ctx)

	s.NoError(err)
	s.True(stats.EmailSent)
}

func (s *PipelineTestSuite) TestGenerateDigest_SkipsDelivery() {
	ctx := context.Background()

	s.expectCollection(ctx)

	s.textgen.EXPECT().Complete(ctx, gomock.Any()).Return(
		`{"title": "T", "excerpt": "E", "body": "B"}`, nil)
	s.digests.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	digest, err := s.pipeline.GenerateDigest(ctx)

	s.NoError(err)
	s.NotNil(digest)
	s.False(digest.EmailSent)
}

func (s *PipelineTestSuite) TestRetryDigest_UnknownDigest() {
	ctx := context.Background()

	s.digests.EXPECT().Get(ctx, "missing").Return(nil, nil)

	digest, err := s.pipeline.RetryDigest(ctx, "missing")

	s.ErrorIs(err, ErrDigestNotFound)
	s.Nil(digest)
}

func (s *PipelineTestSuite) TestRun_NilPublisher() {
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.DigestConfig{RecencyWindow: 24 * time.Hour, MaxPerFeed: 10, MaxArticleChars: 2000}

	checker := NewFeedChecker(s.source, s.feeds, s.activity, logger)
	collector := NewCollector(s.feeds, checker, s.activity, logger, cfg)
	generator := NewGenerator(s.textgen, s.digests, s.activity, logger, cfg)
	delivery := NewDelivery(s.digests, s.settings, s.sender, s.activity, logger)
	pipeline := NewPipeline(collector, generator, delivery, s.digests, nil, s.activity, logger)

	s.expectCollection(ctx)

	s.textgen.EXPECT().Complete(ctx, gomock.Any()).Return(
		`{"title": "T", "excerpt": "E", "body": "B"}`, nil)

	var created *domain.Digest
	s.digests.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, d *domain.Digest) error {
			created = d
			return nil
		})

	s.digests.EXPECT().Get(ctx, gomock.Any()).DoAndReturn(
		func(context.Context, string) (*domain.Digest, error) {
			return created, nil
		})
	s.settings.EXPECT().GetActive(ctx).Return(&domain.MailSettings{
		Host:        "smtp.example.com",
		Port:        587,
		FromAddress: "digest@example.com",
		Recipients:  []string{"reader@example.com"},
	}, nil)
	s.sender.EXPECT().Send(ctx, gomock.Any(), gomock.Any()).Return(nil)
	s.digests.EXPECT().UpdateDelivery(ctx, gomock.Any(), true, "").Return(nil)

	stats, err := pipeline.Run(ctx)

	s.NoError(err)
	s.True(stats.EmailSent)
}
