package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"news_digest/internal/domain"
	"news_digest/internal/service/mocks"
	"news_digest/testdata/utils"
)

type FeedCheckerTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source   *mocks.MockFeedSource
	feeds    *mocks.MockFeedStore
	activity *mocks.MockActivityStore

	checker *FeedChecker
}

func (s *FeedCheckerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockFeedSource(s.ctrl)
	s.feeds = mocks.NewMockFeedStore(s.ctrl)
	s.activity = mocks.NewMockActivityStore(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.activity.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s.checker = NewFeedChecker(s.source, s.feeds, s.activity, logger)
}

func (s *FeedCheckerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestFeedCheckerTestSuite(t *testing.T) {
	suite.Run(t, new(FeedCheckerTestSuite))
}

func (s *FeedCheckerTestSuite) TestCheck_SuccessRestoresHealth() {
	ctx := context.Background()
	now := time.Now()

	feed := domain.Feed{
		ID:        "f1",
		Name:      "Tech News",
		URL:       "https://tech.example/feed",
		Status:    domain.FeedStatusError,
		LastError: "previous failure",
	}

	parsed := &domain.ParsedFeed{
		Title: "Tech News",
		Items: []domain.FeedItem{{Title: "Story", Content: "body", PublishedAt: utils.Ptr(now)}},
	}

	s.source.EXPECT().Fetch(ctx, feed.URL).Return(parsed, nil)
	s.feeds.EXPECT().UpdateHealth(ctx, "f1", domain.FeedStatusActive, "", gomock.Any()).Return(nil)

	got, err := s.checker.Check(ctx, feed)

	s.NoError(err)
	s.Equal(parsed, got)
}

func (s *FeedCheckerTestSuite) TestCheck_FailureMarksError() {
	ctx := context.Background()

	feed := domain.Feed{ID: "f1", Name: "Broken", URL: "https://broken.example/feed"}
	fetchErr := errors.New("dial tcp: timeout")

	s.source.EXPECT().Fetch(ctx, feed.URL).Return(nil, fetchErr)
	s.feeds.EXPECT().UpdateHealth(ctx, "f1", domain.FeedStatusError, fetchErr.Error(), gomock.Any()).Return(nil)

	got, err := s.checker.Check(ctx, feed)

	s.ErrorIs(err, fetchErr)
	s.Nil(got)
}

func (s *FeedCheckerTestSuite) TestCheckByID_UnknownFeed() {
	ctx := context.Background()

	s.feeds.EXPECT().Get(ctx, "missing").Return(nil, nil)

	err := s.checker.CheckByID(ctx, "missing")

	s.Error(err)
	s.Contains(err.Error(), "not found")
}

func (s *FeedCheckerTestSuite) TestCheckAll_CountsFailures() {
	ctx := context.Background()

	feeds := []domain.Feed{
		{ID: "f1", Name: "Good", URL: "https://good.example/feed", Active: true},
		{ID: "f2", Name: "Bad", URL: "https://bad.example/feed", Active: true},
		{ID: "f3", Name: "Paused", URL: "https://paused.example/feed", Active: false},
	}

	s.feeds.EXPECT().List(ctx).Return(feeds, nil)

	s.source.EXPECT().Fetch(ctx, "https://good.example/feed").Return(&domain.ParsedFeed{Title: "Good"}, nil)
	s.feeds.EXPECT().UpdateHealth(ctx, "f1", domain.FeedStatusActive, "", gomock.Any()).Return(nil)

	fetchErr := errors.New("404")
	s.source.EXPECT().Fetch(ctx, "https://bad.example/feed").Return(nil, fetchErr)
	s.feeds.EXPECT().UpdateHealth(ctx, "f2", domain.FeedStatusError, fetchErr.Error(), gomock.Any()).Return(nil)

	checked, failed, err := s.checker.CheckAll(ctx)

	s.NoError(err)
	s.Equal(2, checked)
	s.Equal(1, failed)
}
