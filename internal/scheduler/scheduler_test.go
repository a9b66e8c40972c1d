package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_digest/internal/domain"
)

type stubRunner struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{}
	err     error
	dopanic bool
}

func (r *stubRunner) Run(ctx context.Context) (*domain.RunStats, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.block != nil {
		<-r.block
	}
	if r.dopanic {
		panic("pipeline exploded")
	}
	if r.err != nil {
		return &domain.RunStats{FailedStage: "collect"}, r.err
	}
	return &domain.RunStats{DigestID: "d1", Articles: 3, EmailSent: true}, nil
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type memoryScheduleStore struct {
	mu    sync.Mutex
	state *domain.ScheduleState
}

func (m *memoryScheduleStore) Get(ctx context.Context) (*domain.ScheduleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return &domain.ScheduleState{FrequencyHours: 4}, nil
	}
	cp := *m.state
	return &cp, nil
}

func (m *memoryScheduleStore) Update(ctx context.Context, state *domain.ScheduleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.state = &cp
	return nil
}

type memoryActivityStore struct {
	mu      sync.Mutex
	entries []domain.ActivityEntry
}

func (m *memoryActivityStore) Append(ctx context.Context, entry domain.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCronSpecFor(t *testing.T) {
	tests := []struct {
		hours int
		want  string
	}{
		{1, "0 * * * *"},
		{2, "0 */2 * * *"},
		{4, "0 */4 * * *"},
		{6, "0 */6 * * *"},
		{8, "0 */8 * * *"},
		{12, "0 */12 * * *"},
		{24, "0 0 * * *"},
		{3, "0 */4 * * *"}, // unsupported bucket falls back to the default
		{0, "0 */4 * * *"},
		{48, "0 */4 * * *"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cronSpecFor(tt.hours), "hours=%d", tt.hours)
	}
}

func TestUpdateSchedule_EnableArmsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := &memoryScheduleStore{}
	sched := New(&stubRunner{}, store, &memoryActivityStore{}, testLogger())
	defer sched.Stop()

	err := sched.UpdateSchedule(ctx, true, 6)
	require.NoError(t, err)

	assert.NotNil(t, sched.cron)

	state, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, state.Enabled)
	assert.Equal(t, 6, state.FrequencyHours)
	require.NotNil(t, state.NextRun)
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), *state.NextRun, 5*time.Second)
}

func TestUpdateSchedule_DisableDisarms(t *testing.T) {
	ctx := context.Background()
	store := &memoryScheduleStore{}
	sched := New(&stubRunner{}, store, &memoryActivityStore{}, testLogger())
	defer sched.Stop()

	require.NoError(t, sched.UpdateSchedule(ctx, true, 4))
	require.NoError(t, sched.UpdateSchedule(ctx, false, 4))

	assert.Nil(t, sched.cron)

	state, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, state.Enabled)
	assert.Nil(t, state.NextRun)
}

func TestUpdateSchedule_PreservesLastRun(t *testing.T) {
	ctx := context.Background()
	lastRun := time.Now().Add(-2 * time.Hour)
	store := &memoryScheduleStore{state: &domain.ScheduleState{
		Enabled:        true,
		FrequencyHours: 4,
		LastRun:        &lastRun,
	}}
	sched := New(&stubRunner{}, store, &memoryActivityStore{}, testLogger())
	defer sched.Stop()

	require.NoError(t, sched.UpdateSchedule(ctx, true, 12))

	state, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.LastRun)
	assert.WithinDuration(t, lastRun, *state.LastRun, time.Second)
	assert.Equal(t, 12, state.FrequencyHours)
}

func TestTriggerRun_StampsRunTimes(t *testing.T) {
	ctx := context.Background()
	store := &memoryScheduleStore{}
	runner := &stubRunner{}
	sched := New(runner, store, &memoryActivityStore{}, testLogger())
	defer sched.Stop()

	require.NoError(t, sched.UpdateSchedule(ctx, true, 4))

	err := sched.TriggerRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.callCount())

	state, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.LastRun)
	assert.WithinDuration(t, time.Now(), *state.LastRun, 5*time.Second)
	require.NotNil(t, state.NextRun)
	assert.WithinDuration(t, time.Now().Add(4*time.Hour), *state.NextRun, 5*time.Second)
}

func TestTriggerRun_RejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	runner := &stubRunner{block: make(chan struct{})}
	sched := New(runner, &memoryScheduleStore{}, &memoryActivityStore{}, testLogger())
	defer sched.Stop()

	done := make(chan error, 1)
	go func() {
		done <- sched.TriggerRun(ctx)
	}()

	// wait for the first run to take the flag
	require.Eventually(t, func() bool {
		return runner.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	err := sched.TriggerRun(ctx)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(runner.block)
	require.NoError(t, <-done)

	// the flag is released once the run finishes
	require.NoError(t, sched.TriggerRun(ctx))
	assert.Equal(t, 2, runner.callCount())
}

func TestTriggerRun_RecoversFromPanic(t *testing.T) {
	ctx := context.Background()
	store := &memoryScheduleStore{}
	runner := &stubRunner{dopanic: true}
	sched := New(runner, store, &memoryActivityStore{}, testLogger())
	defer sched.Stop()

	err := sched.TriggerRun(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected pipeline failure")

	// run times are stamped and the flag released even after a panic
	state, serr := store.Get(ctx)
	require.NoError(t, serr)
	require.NotNil(t, state.LastRun)

	runner.dopanic = false
	require.NoError(t, sched.TriggerRun(ctx))
}

func TestTriggerRun_ReturnsPipelineError(t *testing.T) {
	ctx := context.Background()
	runner := &stubRunner{err: context.DeadlineExceeded}
	sched := New(runner, &memoryScheduleStore{}, &memoryActivityStore{}, testLogger())
	defer sched.Stop()

	err := sched.TriggerRun(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	store := &memoryScheduleStore{state: &domain.ScheduleState{Enabled: true, FrequencyHours: 8}}
	sched := New(&stubRunner{}, store, &memoryActivityStore{}, testLogger())
	defer sched.Stop()

	state, running, err := sched.Status(ctx)
	require.NoError(t, err)
	assert.True(t, state.Enabled)
	assert.Equal(t, 8, state.FrequencyHours)
	assert.False(t, running)
}

func TestOnTick_SkipsWhileRunning(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	activity := &memoryActivityStore{}
	sched := New(runner, &memoryScheduleStore{}, activity, testLogger())
	defer sched.Stop()

	go func() {
		_ = sched.TriggerRun(context.Background())
	}()

	require.Eventually(t, func() bool {
		return runner.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	sched.onTick()

	close(runner.block)

	assert.Equal(t, 1, runner.callCount())

	activity.mu.Lock()
	defer activity.mu.Unlock()
	require.Len(t, activity.entries, 1)
	assert.Equal(t, "schedule", activity.entries[0].Type)
	assert.Equal(t, domain.SeverityWarning, activity.entries[0].Severity)
}
