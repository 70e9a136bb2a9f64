package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/limbo/plankup/internal/connectivity"
	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/internal/repository"
	"github.com/limbo/plankup/internal/service"
	"github.com/limbo/plankup/internal/storage"
	"github.com/limbo/plankup/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockState int

const (
	stateSuccess mockState = iota
	stateNetworkError
	stateBlocked
)

var (
	userID   = "test_uid"
	quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))
	startDay = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	errNetwork = fmt.Errorf("%w: network down", errorvalues.ErrRemoteUnavailable)
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// remoteMock is a working in-memory remote store that can be switched to
// fail or hang.
type remoteMock struct {
	real *storage.RemoteStore

	mu    sync.Mutex
	state mockState
	// 1-based SaveSession call that fails, 0 never fails
	failSaveSessionAt int
	saveSessionDelay  time.Duration
	saveSessionCalls  int
	calls             int

	gate    chan struct{}
	entered chan struct{}
}

func newRemoteMock(t *testing.T) *remoteMock {
	m := &remoteMock{
		real:    storage.NewRemoteStore(repository.NewMemoryDocumentStore()),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 16),
	}
	t.Cleanup(m.release)
	return m
}

func (m *remoteMock) setState(state mockState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

func (m *remoteMock) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.gate:
	default:
		close(m.gate)
	}
}

func (m *remoteMock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *remoteMock) before() error {
	m.mu.Lock()
	m.calls++
	state := m.state
	m.mu.Unlock()
	switch state {
	case stateNetworkError:
		return errNetwork
	case stateBlocked:
		select {
		case m.entered <- struct{}{}:
		default:
		}
		<-m.gate
	}
	return nil
}

func (m *remoteMock) GetProgress(ctx context.Context, uid string) (*entity.UserProgress, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	return m.real.GetProgress(ctx, uid)
}

func (m *remoteMock) SaveProgress(ctx context.Context, progress entity.UserProgress) error {
	if err := m.before(); err != nil {
		return err
	}
	return m.real.SaveProgress(ctx, progress)
}

func (m *remoteMock) GetSessions(ctx context.Context, uid string) ([]entity.Session, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	return m.real.GetSessions(ctx, uid)
}

func (m *remoteMock) SaveSession(ctx context.Context, session entity.Session) error {
	if err := m.before(); err != nil {
		return err
	}
	m.mu.Lock()
	m.saveSessionCalls++
	fail := m.saveSessionCalls == m.failSaveSessionAt
	delay := m.saveSessionDelay
	m.mu.Unlock()
	time.Sleep(delay)
	if fail {
		return errNetwork
	}
	return m.real.SaveSession(ctx, session)
}

func (m *remoteMock) SaveSessions(ctx context.Context, sessions []entity.Session) error {
	if err := m.before(); err != nil {
		return err
	}
	return m.real.SaveSessions(ctx, sessions)
}

func (m *remoteMock) GetSettings(ctx context.Context, uid string) (*entity.UserSettings, error) {
	if err := m.before(); err != nil {
		return nil, err
	}
	return m.real.GetSettings(ctx, uid)
}

func (m *remoteMock) SaveSettings(ctx context.Context, uid string, settings entity.UserSettings) error {
	if err := m.before(); err != nil {
		return err
	}
	return m.real.SaveSettings(ctx, uid, settings)
}

func (m *remoteMock) InitializeUser(ctx context.Context, uid string) error {
	if err := m.before(); err != nil {
		return err
	}
	return m.real.InitializeUser(ctx, uid)
}

func (m *remoteMock) DeleteUser(ctx context.Context, uid string) error {
	if err := m.before(); err != nil {
		return err
	}
	return m.real.DeleteUser(ctx, uid)
}

type fixture struct {
	tracker *service.Tracker
	local   *storage.LocalStore
	blobs   repository.BlobStore
	remote  *remoteMock
	signal  *connectivity.Broadcaster
	clock   *clock
}

func newFixture(t *testing.T, identity entity.Identity, online bool) *fixture {
	f := &fixture{
		blobs:  repository.NewMemoryBlobStore(),
		remote: newRemoteMock(t),
		signal: connectivity.NewBroadcaster(online),
		clock:  &clock{now: startDay},
	}
	f.local = storage.NewLocalStore(f.blobs, identity.UserID, quietLog)
	f.tracker = f.newTracker(identity, 0)
	return f
}

func (f *fixture) newTracker(identity entity.Identity, timeout time.Duration) *service.Tracker {
	return service.NewTracker(identity, f.local, f.remote, f.signal, service.TrackerOptions{
		LoadTimeout: timeout,
		Now:         f.clock.Now,
		Logger:      quietLog,
	})
}

func member() entity.Identity { return entity.Identity{UserID: userID} }
func guest() entity.Identity  { return entity.Identity{UserID: "guest_uid", IsGuest: true} }

func session(id, date string, duration int) entity.Session {
	return entity.Session{
		ID:             id,
		UserID:         userID,
		Date:           date,
		Duration:       duration,
		TargetDuration: 30,
		Type:           entity.SessionProgression,
		Completed:      true,
		Timestamp:      startDay,
	}
}

func TestLoadInitializesNewUser(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	assert.Equal(t, service.StateUninitialized, f.tracker.State())

	require.NoError(t, f.tracker.Load(ctx))
	assert.Equal(t, service.StateReady, f.tracker.State())
	progress := f.tracker.Progress()
	require.NotNil(t, progress)
	assert.Equal(t, entity.DefaultTargetDuration, progress.CurrentTargetDuration)
	assert.False(t, progress.BaselineData.IsComplete)
	assert.Equal(t, entity.DefaultSettings(), *f.tracker.Settings())
	assert.Empty(t, f.tracker.Sessions())

	remote, err := f.remote.real.GetProgress(ctx, userID)
	require.NoError(t, err)
	assert.NotNil(t, remote, "defaults are created remotely")
	assert.NotNil(t, f.local.LoadProgress(ctx), "remote data is mirrored locally")
	assert.NotNil(t, f.local.LoadSettings(ctx))
}

func TestLoadAdoptsRemoteData(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.remote.real.InitializeUser(ctx, userID))
	require.NoError(t, f.remote.real.SaveSessions(ctx, []entity.Session{
		session("a", "2026-03-08", 40),
		session("b", "2026-03-09", 45),
	}))
	f.local.SaveSessions(ctx, []entity.Session{session("stale", "2026-01-01", 10)})

	require.NoError(t, f.tracker.Load(ctx))
	sessions := f.tracker.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].ID)
	assert.Equal(t, sessions, f.local.LoadSessions(ctx))
}

func TestLoadFromLocal(t *testing.T) {
	testCases := []struct {
		Desc    string
		Online  bool
		Prepare func(f *fixture)
	}{
		{
			Desc:   "offline",
			Online: false,
		},
		{
			Desc:    "remote error",
			Online:  true,
			Prepare: func(f *fixture) { f.remote.setState(stateNetworkError) },
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			f := newFixture(t, member(), tc.Online)
			ctx := context.Background()
			progress := entity.DefaultProgress(userID, startDay)
			progress.CurrentTargetDuration = 42
			f.local.SaveProgress(ctx, progress)
			f.local.SaveSessions(ctx, []entity.Session{session("a", "2026-03-09", 41)})
			if tc.Prepare != nil {
				tc.Prepare(f)
			}

			require.NoError(t, f.tracker.Load(ctx))
			assert.Equal(t, service.StateReady, f.tracker.State())
			require.NotNil(t, f.tracker.Progress())
			assert.Equal(t, 42, f.tracker.Progress().CurrentTargetDuration)
			assert.Len(t, f.tracker.Sessions(), 1)
			assert.Equal(t, entity.DefaultSettings(), *f.tracker.Settings(), "missing settings fall back to defaults")
		})
	}
}

func TestLoadOfflineWithoutCache(t *testing.T) {
	f := newFixture(t, member(), false)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))
	assert.Nil(t, f.tracker.Progress())
	assert.NotNil(t, f.tracker.Settings())
	assert.Equal(t, service.OutcomeSkipped, f.tracker.UpdateProgress(ctx, entity.ProgressPatch{}))
	assert.Zero(t, f.remote.callCount())
}

func TestLoadTimeoutFallsBackToLocal(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	progress := entity.DefaultProgress(userID, startDay)
	progress.CurrentTargetDuration = 77
	f.local.SaveProgress(ctx, progress)
	f.remote.setState(stateBlocked)
	tracker := f.newTracker(member(), 20*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- tracker.Load(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("load didn't give up on the remote store")
	}
	require.NotNil(t, tracker.Progress())
	assert.Equal(t, 77, tracker.Progress().CurrentTargetDuration)
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))

	f.remote.setState(stateBlocked)
	done := make(chan error, 1)
	go func() { done <- f.tracker.Load(ctx) }()
	<-f.remote.entered

	increment := 9
	f.remote.setState(stateSuccess)
	assert.Equal(t, service.OutcomeAppliedBoth, f.tracker.UpdateSettings(ctx, entity.SettingsPatch{DailyIncrement: &increment}))

	f.remote.release()
	assert.ErrorIs(t, <-done, errorvalues.ErrStaleLoad)
	assert.Equal(t, increment, f.tracker.Settings().DailyIncrement)
	assert.Equal(t, service.StateReady, f.tracker.State())
}

func TestMutationsBeforeLoad(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	target := 50
	assert.Equal(t, service.OutcomeSkipped, f.tracker.UpdateProgress(ctx, entity.ProgressPatch{CurrentTargetDuration: &target}))
	assert.Equal(t, service.OutcomeSkipped, f.tracker.AddSession(ctx, session("a", "2026-03-10", 40)))
	assert.Equal(t, service.OutcomeSkipped, f.tracker.UpdateSettings(ctx, entity.SettingsPatch{}))
	_, _, err := f.tracker.CompleteSession(ctx, 40)
	assert.ErrorIs(t, err, errorvalues.ErrNotLoaded)
	assert.Empty(t, f.local.LoadSessions(ctx))
	assert.Zero(t, f.remote.callCount())
}

func TestBaselineToProgression(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))

	for _, duration := range []int{40, 50, 60} {
		s, outcome, err := f.tracker.CompleteSession(ctx, duration)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAppliedBoth, outcome)
		assert.Equal(t, entity.SessionBaseline, s.Type)
		assert.Equal(t, fmt.Sprintf("%s_%d", userID, f.clock.Now().UnixMilli()), s.ID)
		f.clock.Advance(24 * time.Hour)
	}

	progress := f.tracker.Progress()
	require.NotNil(t, progress)
	assert.True(t, progress.BaselineData.IsComplete)
	assert.Equal(t, []int{40, 50, 60}, progress.BaselineData.Sessions)
	assert.Equal(t, 50, progress.BaselineData.AverageTime)
	assert.Equal(t, 50, progress.CurrentTargetDuration)
	assert.Equal(t, 3, progress.TotalSessions)
	assert.Equal(t, 150, progress.TotalPlankTime)
	assert.Equal(t, 3, progress.StreakData.CurrentStreak)

	s, _, err := f.tracker.CompleteSession(ctx, 52)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionProgression, s.Type)
	assert.Equal(t, 50, s.TargetDuration)
	progress = f.tracker.Progress()
	assert.Equal(t, 53, progress.CurrentTargetDuration)
	assert.Equal(t, 4, progress.StreakData.CurrentStreak)
	assert.Equal(t, 4, progress.StreakData.BestStreak)

	remote, err := f.remote.real.GetProgress(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 53, remote.CurrentTargetDuration)
	sessions, err := f.remote.real.GetSessions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, sessions, 4)

	stats := f.tracker.Stats()
	assert.Equal(t, 4, stats.CompletedSessions)
	assert.Equal(t, 60, stats.LongestPlank)
}

func TestConcurrentCompletions(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))
	f.remote.saveSessionDelay = 2 * time.Millisecond

	completeAll := func(durations ...int) {
		var wg sync.WaitGroup
		for _, d := range durations {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, outcome, err := f.tracker.CompleteSession(ctx, d)
				assert.NoError(t, err)
				assert.Equal(t, service.OutcomeAppliedBoth, outcome)
			}()
		}
		wg.Wait()
	}

	completeAll(40, 50, 60)
	progress := f.tracker.Progress()
	require.NotNil(t, progress)
	assert.Len(t, f.tracker.Sessions(), 3)
	assert.ElementsMatch(t, []int{40, 50, 60}, progress.BaselineData.Sessions)
	assert.True(t, progress.BaselineData.IsComplete)
	assert.Equal(t, 50, progress.CurrentTargetDuration)

	completeAll(50, 50, 50)
	assert.Equal(t, 50+3*entity.DefaultDailyIncrement, f.tracker.Progress().CurrentTargetDuration)

	ids := map[string]bool{}
	for _, s := range f.tracker.Sessions() {
		ids[s.ID] = true
	}
	assert.Len(t, ids, 6)
	remote, err := f.remote.real.GetSessions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, remote, 6)
}

func TestCompleteSessionRejectsBrokenBaseline(t *testing.T) {
	f := newFixture(t, member(), false)
	ctx := context.Background()
	broken := entity.DefaultProgress(userID, startDay)
	broken.BaselineData.Sessions = []int{40, 50, 60}
	f.local.SaveProgress(ctx, broken)
	require.NoError(t, f.tracker.Load(ctx))

	_, outcome, err := f.tracker.CompleteSession(ctx, 45)
	assert.ErrorIs(t, err, errorvalues.ErrInvalidInput)
	assert.Equal(t, service.OutcomeSkipped, outcome)
	assert.Empty(t, f.tracker.Sessions())
	assert.Empty(t, f.local.GetOfflineQueue(ctx))
	assert.Zero(t, f.remote.callCount())
}

func TestCompleteSessionRejectsBadDuration(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))
	_, outcome, err := f.tracker.CompleteSession(ctx, -1)
	assert.ErrorIs(t, err, errorvalues.ErrInvalidInput)
	assert.Equal(t, service.OutcomeSkipped, outcome)
	assert.Empty(t, f.tracker.Sessions())
}

func TestRemoteWriteFailureKeepsLocal(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))
	f.remote.setState(stateNetworkError)

	target := 99
	assert.Equal(t, service.OutcomeAppliedLocal, f.tracker.UpdateProgress(ctx, entity.ProgressPatch{CurrentTargetDuration: &target}))
	assert.Equal(t, 99, f.tracker.Progress().CurrentTargetDuration)
	assert.Equal(t, 99, f.local.LoadProgress(ctx).CurrentTargetDuration)

	dark := true
	assert.Equal(t, service.OutcomeAppliedLocal, f.tracker.UpdateSettings(ctx, entity.SettingsPatch{DarkMode: &dark}))
	assert.True(t, f.local.LoadSettings(ctx).DarkMode)

	assert.Equal(t, service.OutcomeAppliedLocalQueuedRemote, f.tracker.AddSession(ctx, session("a", "2026-03-10", 40)))
	queue := f.local.GetOfflineQueue(ctx)
	require.Len(t, queue, 1)
	assert.Equal(t, "a", queue[0].ID)
}

func TestOfflineSessionSyncsOnReconnect(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.tracker.Load(ctx))

	done := make(chan struct{})
	go func() {
		f.tracker.Run(ctx)
		close(done)
	}()
	f.signal.SetOnline(false)
	require.Eventually(t, func() bool { return !f.tracker.IsOnline() }, time.Second, 5*time.Millisecond)

	calls := f.remote.callCount()
	assert.Equal(t, service.OutcomeAppliedLocalQueuedRemote, f.tracker.AddSession(ctx, session("a", "2026-03-10", 40)))
	assert.Equal(t, calls, f.remote.callCount(), "no remote attempt while offline")
	assert.Len(t, f.local.GetOfflineQueue(ctx), 1)
	assert.Equal(t, 1, f.tracker.Progress().TotalSessions)

	f.signal.SetOnline(true)
	f.signal.Announce()
	// Progress changed offline is pushed after the queue
	require.Eventually(t, func() bool {
		remote, err := f.remote.real.GetProgress(ctx, userID)
		return err == nil && remote != nil && remote.TotalSessions == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, f.local.GetOfflineQueue(ctx))

	sessions, err := f.remote.real.GetSessions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "a", sessions[0].ID)
	require.Eventually(t, func() bool { return len(f.tracker.Sessions()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.tracker.Progress().TotalSessions)

	cancel()
	<-done
}

// signalMock hands out events independent of the state it reports, the way a
// slow subscriber sees a stale event after later ones were dropped.
type signalMock struct {
	mu     sync.Mutex
	online bool
	events chan connectivity.Event
}

func (sm *signalMock) Online() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.online
}

func (sm *signalMock) set(online bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.online = online
}

func (sm *signalMock) Subscribe() (<-chan connectivity.Event, func()) {
	return sm.events, func() {}
}

func TestRunFollowsSignalState(t *testing.T) {
	f := newFixture(t, member(), true)
	signal := &signalMock{online: true, events: make(chan connectivity.Event)}
	tracker := service.NewTracker(member(), f.local, f.remote, signal, service.TrackerOptions{
		Now:    f.clock.Now,
		Logger: quietLog,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tracker.Load(ctx))

	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()

	// The offline transition was dropped, a stale online event arrives
	signal.set(false)
	signal.events <- connectivity.Online
	require.Eventually(t, func() bool { return !tracker.IsOnline() }, time.Second, 5*time.Millisecond)

	signal.set(true)
	signal.events <- connectivity.Offline
	require.Eventually(t, tracker.IsOnline, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSyncPartialFailure(t *testing.T) {
	f := newFixture(t, member(), false)
	ctx := context.Background()
	require.NoError(t, f.remote.real.InitializeUser(ctx, userID))
	require.NoError(t, f.tracker.Load(ctx))
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, service.OutcomeAppliedLocalQueuedRemote, f.tracker.AddSession(ctx, session(id, "2026-03-10", 40)))
	}

	report, err := f.tracker.Sync(ctx)
	assert.ErrorIs(t, err, errorvalues.ErrRemoteUnavailable, "sync needs connectivity")
	assert.Equal(t, 3, report.Pending)

	f.signal.SetOnline(true)
	handle := service.NewTracker(member(), f.local, f.remote, f.signal, service.TrackerOptions{Now: f.clock.Now, Logger: quietLog})
	f.remote.mu.Lock()
	f.remote.failSaveSessionAt = 2
	f.remote.mu.Unlock()

	report, err = handle.Sync(ctx)
	assert.ErrorIs(t, err, errorvalues.ErrRemoteUnavailable)
	assert.Equal(t, service.SyncReport{Pushed: 1, Pending: 2}, report)
	queue := f.local.GetOfflineQueue(ctx)
	require.Len(t, queue, 2)
	assert.Equal(t, "b", queue[0].ID)
	assert.Equal(t, "c", queue[1].ID)

	report, err = handle.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.SyncReport{Pushed: 2, Pending: 0, Reloaded: true}, report)
	assert.Empty(t, f.local.GetOfflineQueue(ctx))
	sessions, err := f.remote.real.GetSessions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
	assert.Len(t, handle.Sessions(), 3)
	assert.Equal(t, service.StateReady, handle.State())
}

func TestSyncInFlight(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	f.local.AddToOfflineQueue(ctx, session("a", "2026-03-10", 40))
	f.remote.setState(stateBlocked)

	done := make(chan error, 1)
	go func() {
		_, err := f.tracker.Sync(ctx)
		done <- err
	}()
	<-f.remote.entered

	_, err := f.tracker.Sync(ctx)
	assert.ErrorIs(t, err, errorvalues.ErrSyncInFlight)

	f.remote.setState(stateSuccess)
	f.remote.release()
	assert.NoError(t, <-done)
	assert.Empty(t, f.local.GetOfflineQueue(ctx))

	report, err := f.tracker.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.SyncReport{}, report, "empty queue is a no-op")
}

func TestReloadKeepsQueuedSessions(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))
	f.local.AddToOfflineQueue(ctx, session("queued", "2026-03-10", 40))

	require.NoError(t, f.tracker.Load(ctx))
	sessions := f.tracker.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "queued", sessions[0].ID)
}

func TestGuestStaysLocal(t *testing.T) {
	f := newFixture(t, guest(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))
	require.NotNil(t, f.tracker.Progress(), "guests start with default progress")

	_, outcome, err := f.tracker.CompleteSession(ctx, 45)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeAppliedLocal, outcome)
	dark := true
	assert.Equal(t, service.OutcomeAppliedLocal, f.tracker.UpdateSettings(ctx, entity.SettingsPatch{DarkMode: &dark}))
	report, err := f.tracker.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.SyncReport{}, report)
	assert.Zero(t, f.remote.callCount())
	assert.Empty(t, f.local.GetOfflineQueue(ctx))

	bundle := f.local.LoadGuestData(ctx)
	require.NotNil(t, bundle)
	assert.Len(t, bundle.Sessions, 1)
	assert.Equal(t, []int{45}, bundle.Progress.BaselineData.Sessions)
	assert.True(t, bundle.Settings.DarkMode)
}

func TestGuestBundleRestore(t *testing.T) {
	f := newFixture(t, guest(), false)
	ctx := context.Background()
	progress := entity.DefaultProgress("guest_uid", startDay)
	progress.CurrentTargetDuration = 64
	settings := entity.DefaultSettings()
	settings.DailyIncrement = 5
	f.local.SaveGuestData(ctx, entity.GuestBundle{
		Progress: progress,
		Sessions: []entity.Session{session("g", "2026-03-09", 60)},
		Settings: settings,
	})

	require.NoError(t, f.tracker.Load(ctx))
	assert.Equal(t, 64, f.tracker.Progress().CurrentTargetDuration)
	assert.Equal(t, 5, f.tracker.Settings().DailyIncrement)
	assert.Len(t, f.tracker.Sessions(), 1)
}

func TestResetProgram(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))
	for range 3 {
		_, _, err := f.tracker.CompleteSession(ctx, 50)
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}
	require.Equal(t, 3, f.tracker.Progress().StreakData.BestStreak)

	assert.Equal(t, service.OutcomeAppliedBoth, f.tracker.ResetProgram(ctx))
	progress := f.tracker.Progress()
	assert.False(t, progress.BaselineData.IsComplete)
	assert.Empty(t, progress.BaselineData.Sessions)
	assert.Equal(t, entity.DefaultTargetDuration, progress.CurrentTargetDuration)
	assert.Zero(t, progress.StreakData.CurrentStreak)
	assert.Equal(t, 3, progress.StreakData.BestStreak)
	assert.Nil(t, progress.StreakData.LastCompletedDate)
	assert.Zero(t, progress.TotalSessions)
	assert.Zero(t, progress.TotalPlankTime)
	assert.Len(t, f.tracker.Sessions(), 3, "history is kept")
}

func TestDeleteAccountData(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))
	_, _, err := f.tracker.CompleteSession(ctx, 40)
	require.NoError(t, err)

	f.remote.setState(stateNetworkError)
	assert.ErrorIs(t, f.tracker.DeleteAccountData(ctx), errorvalues.ErrRemoteUnavailable)
	assert.Len(t, f.local.LoadSessions(ctx), 1, "local data stays when the remote delete fails")

	f.remote.setState(stateSuccess)
	require.NoError(t, f.tracker.DeleteAccountData(ctx))
	assert.Empty(t, f.tracker.Sessions())
	assert.Equal(t, entity.DefaultTargetDuration, f.tracker.Progress().CurrentTargetDuration)
	assert.Empty(t, f.local.LoadSessions(ctx))
	assert.Nil(t, f.local.LoadProgress(ctx))
	remote, err := f.remote.real.GetProgress(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, remote)
}

func TestAccessorsReturnCopies(t *testing.T) {
	f := newFixture(t, member(), true)
	ctx := context.Background()
	require.NoError(t, f.tracker.Load(ctx))
	f.tracker.AddSession(ctx, session("a", "2026-03-10", 40))

	sessions := f.tracker.Sessions()
	sessions[0].Duration = 1000
	progress := f.tracker.Progress()
	progress.CurrentTargetDuration = 1000
	settings := f.tracker.Settings()
	settings.DailyIncrement = 1000

	assert.Equal(t, 40, f.tracker.Sessions()[0].Duration)
	assert.Equal(t, entity.DefaultTargetDuration, f.tracker.Progress().CurrentTargetDuration)
	assert.Equal(t, entity.DefaultDailyIncrement, f.tracker.Settings().DailyIncrement)
}

func TestOutcomeAndStateStrings(t *testing.T) {
	assert.Equal(t, "applied_both", service.OutcomeAppliedBoth.String())
	assert.Equal(t, "skipped", service.OutcomeSkipped.String())
	assert.Equal(t, "ready", service.StateReady.String())
	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", errNetwork), errorvalues.ErrRemoteUnavailable))
}

func TestStatus(t *testing.T) {
	f := newFixture(t, member(), false)
	ctx := context.Background()
	assert.Equal(t, service.Status{State: "uninitialized"}, f.tracker.Status(ctx))
	require.NoError(t, f.tracker.Load(ctx))
	f.tracker.AddSession(ctx, session("a", "2026-03-10", 40))
	assert.Equal(t, service.Status{State: "ready", QueuedSessions: 1}, f.tracker.Status(ctx))
}
