package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"news_digest/internal/domain"
)

// ErrAlreadyRunning is returned by TriggerRun when a pipeline run is
// in progress.
var ErrAlreadyRunning = errors.New("digest run already in progress")

// Runner executes one full pipeline pass.
type Runner interface {
	Run(ctx context.Context) (*domain.RunStats, error)
}

// ScheduleStore persists the singleton schedule state.
type ScheduleStore interface {
	Get(ctx context.Context) (*domain.ScheduleState, error)
	Update(ctx context.Context, state *domain.ScheduleState) error
}

// ActivityStore appends audit entries.
type ActivityStore interface {
	Append(ctx context.Context, entry domain.ActivityEntry) error
}

// cronSpecs maps supported frequency buckets to their cron cadence.
var cronSpecs = map[int]string{
	1:  "0 * * * *",
	2:  "0 */2 * * *",
	4:  "0 */4 * * *",
	6:  "0 */6 * * *",
	8:  "0 */8 * * *",
	12: "0 */12 * * *",
	24: "0 0 * * *",
}

const defaultFrequencyHours = 4

func cronSpecFor(hours int) string {
	if spec, ok := cronSpecs[hours]; ok {
		return spec
	}
	return cronSpecs[defaultFrequencyHours]
}

// Scheduler owns the recurring digest trigger. It guarantees at most
// one concurrent pipeline run: automatic ticks that land during a run
// are skipped with a notice, manual triggers get ErrAlreadyRunning.
// The armed cron is an owned resource with an explicit stop lifecycle,
// never a process-wide singleton.
type Scheduler struct {
	runner   Runner
	store    ScheduleStore
	activity ActivityStore
	logger   *slog.Logger

	mu        sync.Mutex // guards cron, enabled, frequency
	cron      *cron.Cron
	enabled   bool
	frequency int

	running atomic.Bool
}

func New(runner Runner, store ScheduleStore, activity ActivityStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		store:    store,
		activity: activity,
		logger:   logger.With("component", "scheduler"),
	}
}

// UpdateSchedule enables or disables the recurring trigger. Any
// previously armed cron is always stopped and discarded before a new
// one is created, so duplicate timers cannot coexist.
func (s *Scheduler) UpdateSchedule(ctx context.Context, enabled bool, frequencyHours int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}

	state := &domain.ScheduleState{
		Enabled:        enabled,
		FrequencyHours: frequencyHours,
	}
	if prev, err := s.store.Get(ctx); err == nil && prev != nil {
		state.LastRun = prev.LastRun
	}

	if enabled {
		c := cron.New()
		if _, err := c.AddFunc(cronSpecFor(frequencyHours), s.onTick); err != nil {
			return fmt.Errorf("arm schedule: %w", err)
		}
		c.Start()
		s.cron = c

		next := time.Now().Add(time.Duration(frequencyHours) * time.Hour)
		state.NextRun = &next
	}

	s.enabled = enabled
	s.frequency = frequencyHours

	if err := s.store.Update(ctx, state); err != nil {
		return fmt.Errorf("update schedule state: %w", err)
	}

	s.logger.Info("schedule updated",
		"enabled", enabled,
		"frequency_hours", frequencyHours,
	)

	return nil
}

// TriggerRun starts a manual pipeline run. It returns ErrAlreadyRunning
// when a run is already in progress.
func (s *Scheduler) TriggerRun(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	return s.run(ctx, "manual")
}

// Status reports the persisted schedule state plus whether a run is
// executing right now.
func (s *Scheduler) Status(ctx context.Context) (*domain.ScheduleState, bool, error) {
	state, err := s.store.Get(ctx)
	return state, s.running.Load(), err
}

// Stop disarms the recurring trigger. In-progress runs finish on
// their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

func (s *Scheduler) onTick() {
	ctx := context.Background()

	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("scheduled run skipped, previous run still in progress")
		entry := domain.ActivityEntry{
			Type:      "schedule",
			Message:   "Scheduled digest run skipped: previous run still in progress",
			Severity:  domain.SeverityWarning,
			CreatedAt: time.Now(),
		}
		if err := s.activity.Append(ctx, entry); err != nil {
			s.logger.Warn("failed to append activity entry", "error", err)
		}
		return
	}

	_ = s.run(ctx, "automatic")
}

// run executes one pipeline pass. The caller must have acquired the
// run flag; run always releases it, and always records run timestamps,
// even when the pipeline panics.
func (s *Scheduler) run(ctx context.Context, trigger string) (err error) {
	defer s.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected pipeline failure: %v", r)
			s.logger.Error("pipeline panicked", "trigger", trigger, "panic", r)
		}
		s.recordRun()
	}()

	s.logger.Info("starting digest run", "trigger", trigger)

	stats, runErr := s.runner.Run(ctx)
	if stats != nil {
		stats.Trigger = trigger
	}
	if runErr != nil {
		stage := ""
		if stats != nil {
			stage = stats.FailedStage
		}
		s.logger.Error("digest run failed",
			"trigger", trigger,
			"stage", stage,
			"error", runErr,
		)
		return runErr
	}

	s.logger.Info("digest run completed",
		"trigger", trigger,
		"digest_id", stats.DigestID,
		"articles", stats.Articles,
		"duration", stats.Duration,
	)

	return nil
}

// recordRun stamps lastRun and recomputes nextRun after every run,
// regardless of outcome.
func (s *Scheduler) recordRun() {
	ctx := context.Background()
	now := time.Now()

	s.mu.Lock()
	enabled, frequency := s.enabled, s.frequency
	s.mu.Unlock()

	state := &domain.ScheduleState{
		Enabled:        enabled,
		FrequencyHours: frequency,
		LastRun:        &now,
	}
	if enabled {
		next := now.Add(time.Duration(frequency) * time.Hour)
		state.NextRun = &next
	}

	if err := s.store.Update(ctx, state); err != nil {
		s.logger.Error("failed to update schedule state", "error", err)
	}
}
