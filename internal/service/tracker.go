package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/limbo/plankup/internal/connectivity"
	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/internal/progression"
	"github.com/limbo/plankup/internal/storage"
	"github.com/limbo/plankup/pkg/dateutil"
	"github.com/limbo/plankup/pkg/entity"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Outcome tells the caller which copies a mutation reached.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeAppliedLocal
	OutcomeAppliedLocalQueuedRemote
	OutcomeAppliedBoth
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppliedLocal:
		return "applied_local"
	case OutcomeAppliedLocalQueuedRemote:
		return "applied_local_queued_remote"
	case OutcomeAppliedBoth:
		return "applied_both"
	default:
		return "skipped"
	}
}

type SyncReport struct {
	Pushed   int  `json:"pushed"`
	Pending  int  `json:"pending"`
	Reloaded bool `json:"reloaded"`
}

const DefaultLoadTimeout = 5 * time.Second

type TrackerOptions struct {
	// Upper bound for the remote part of Load. Defaults to DefaultLoadTimeout.
	LoadTimeout time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

// Tracker owns the in-memory copy of one user's progress, sessions and
// settings and keeps the local and remote stores in step with it.
type Tracker struct {
	identity    entity.Identity
	local       LocalStoreI
	remote      RemoteStoreI
	signal      connectivity.Signal
	loadTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.RWMutex
	state    State
	online   bool
	progress *entity.UserProgress
	sessions []entity.Session
	settings *entity.UserSettings
	// loadSeq increments per Load, version per mutation. A load applies only
	// when neither moved while it was fetching.
	loadSeq uint64
	version uint64
	// Set when a change reached only the local store
	pendingProgress bool
	pendingSettings bool

	queueMu sync.Mutex
	// Serializes CompleteSession and ResetProgram, which read progress and
	// write it back. Taken before mu.
	completeMu sync.Mutex
	// Millis of the last session id handed out, guarded by completeMu
	lastIDMillis int64
	syncing      atomic.Bool
}

func NewTracker(identity entity.Identity, local LocalStoreI, remote RemoteStoreI, signal connectivity.Signal, opts TrackerOptions) *Tracker {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{
		identity:    identity,
		local:       local,
		remote:      remote,
		signal:      signal,
		loadTimeout: opts.LoadTimeout,
		now:         opts.Now,
		logger: opts.Logger.With(
			slog.String("uid", identity.UserID),
			slog.Bool("guest", identity.IsGuest),
		),
		sessions: []entity.Session{},
		online:   signal.Online(),
	}
}

type snapshot struct {
	progress   *entity.UserProgress
	sessions   []entity.Session
	settings   *entity.UserSettings
	fromRemote bool
}

// Load fetches the user's data, from the remote store when possible and from
// the local cache otherwise. A load that was overtaken by a newer load or by
// a mutation returns errorvalues.ErrStaleLoad and leaves the data untouched.
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	t.loadSeq++
	seq, version := t.loadSeq, t.version
	if t.state == StateUninitialized {
		t.state = StateLoading
	}
	online := t.online
	t.mu.Unlock()

	var snap snapshot
	if t.identity.IsGuest || !online {
		snap = t.localSnapshot(ctx)
	} else {
		var err error
		snap, err = t.remoteSnapshot(ctx)
		if err != nil {
			t.logger.Warn("loading from local cache", slog.String("error", err.Error()))
			snap = t.localSnapshot(ctx)
		}
	}
	return t.apply(ctx, seq, version, snap)
}

func (t *Tracker) apply(ctx context.Context, seq, version uint64, snap snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq != t.loadSeq {
		return errorvalues.ErrStaleLoad
	}
	if version != t.version {
		t.state = StateReady
		return errorvalues.ErrStaleLoad
	}
	if snap.fromRemote {
		snap.sessions = t.withQueued(ctx, snap.sessions)
		if snap.progress != nil {
			t.local.SaveProgress(ctx, *snap.progress)
		}
		t.local.SaveSessions(ctx, snap.sessions)
		t.local.SaveSettings(ctx, *snap.settings)
	}
	t.progress = snap.progress
	t.sessions = snap.sessions
	t.settings = snap.settings
	t.state = StateReady
	t.logger.Debug("user data loaded",
		slog.Bool("remote", snap.fromRemote),
		slog.Int("sessions", len(snap.sessions)),
		slog.Bool("has_progress", snap.progress != nil),
	)
	return nil
}

// withQueued adds sessions still waiting in the offline queue, so a reload
// between two syncs doesn't hide them.
func (t *Tracker) withQueued(ctx context.Context, sessions []entity.Session) []entity.Session {
	t.queueMu.Lock()
	queue := t.local.GetOfflineQueue(ctx)
	t.queueMu.Unlock()
	if len(queue) == 0 {
		return sessions
	}
	known := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		known[s.ID] = struct{}{}
	}
	merged := sessions
	for _, s := range queue {
		if _, ok := known[s.ID]; !ok {
			merged = append(merged, s)
		}
	}
	storage.SortSessions(merged)
	return merged
}

func (t *Tracker) localSnapshot(ctx context.Context) snapshot {
	snap := snapshot{
		progress: t.local.LoadProgress(ctx),
		sessions: t.local.LoadSessions(ctx),
		settings: t.local.LoadSettings(ctx),
	}
	if t.identity.IsGuest {
		if snap.progress == nil && len(snap.sessions) == 0 && snap.settings == nil {
			if bundle := t.local.LoadGuestData(ctx); bundle != nil {
				progress, settings := bundle.Progress, bundle.Settings
				snap.progress, snap.settings = &progress, &settings
				if bundle.Sessions != nil {
					snap.sessions = bundle.Sessions
				}
			}
		}
		if snap.progress == nil {
			progress := entity.DefaultProgress(t.identity.UserID, t.now())
			snap.progress = &progress
		}
	}
	if snap.settings == nil {
		settings := entity.DefaultSettings()
		snap.settings = &settings
	}
	return snap
}

func (t *Tracker) remoteSnapshot(ctx context.Context) (snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, t.loadTimeout)
	defer cancel()

	type result struct {
		snap snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := t.fetchRemote(ctx)
		if err == nil && (snap.progress == nil || snap.settings == nil) {
			t.logger.Info("initializing new user")
			if err = t.remote.InitializeUser(ctx, t.identity.UserID); err == nil {
				snap, err = t.fetchRemote(ctx)
			}
		}
		done <- result{snap: snap, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return snapshot{}, r.err
		}
		if r.snap.progress == nil {
			progress := entity.DefaultProgress(t.identity.UserID, t.now())
			r.snap.progress = &progress
		}
		if r.snap.settings == nil {
			settings := entity.DefaultSettings()
			r.snap.settings = &settings
		}
		return r.snap, nil
	case <-ctx.Done():
		return snapshot{}, fmt.Errorf("%w: load timed out: %w", errorvalues.ErrRemoteUnavailable, ctx.Err())
	}
}

// fetchRemote reads the three documents concurrently and waits for all of them.
func (t *Tracker) fetchRemote(ctx context.Context) (snapshot, error) {
	snap := snapshot{fromRemote: true}
	var g errgroup.Group
	g.Go(func() error {
		var err error
		snap.progress, err = t.remote.GetProgress(ctx, t.identity.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.sessions, err = t.remote.GetSessions(ctx, t.identity.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.settings, err = t.remote.GetSettings(ctx, t.identity.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	if snap.sessions == nil {
		snap.sessions = []entity.Session{}
	}
	return snap, nil
}

// UpdateProgress merges the patch into the loaded progress. Nothing happens
// until progress is loaded.
func (t *Tracker) UpdateProgress(ctx context.Context, patch entity.ProgressPatch) Outcome {
	t.mu.Lock()
	if t.progress == nil {
		t.mu.Unlock()
		t.logger.Debug("progress update skipped, nothing loaded")
		return OutcomeSkipped
	}
	updated := t.progress.Apply(patch)
	updated.LastUpdated = t.now()
	t.progress = &updated
	t.version++
	t.local.SaveProgress(ctx, updated)
	t.saveGuestBundleLocked(ctx)
	writeRemote := !t.identity.IsGuest && t.online
	if !t.identity.IsGuest && !writeRemote {
		t.pendingProgress = true
	}
	t.mu.Unlock()

	if !writeRemote {
		return OutcomeAppliedLocal
	}
	if err := t.remote.SaveProgress(ctx, updated.Clone()); err != nil {
		t.logger.Warn("progress kept locally", slog.String("error", err.Error()))
		t.markPending(true, false)
		return OutcomeAppliedLocal
	}
	return OutcomeAppliedBoth
}

// AddSession prepends the session, recomputes the derived progress fields and
// pushes the session to the remote store or the offline queue.
func (t *Tracker) AddSession(ctx context.Context, session entity.Session) Outcome {
	t.mu.Lock()
	if t.state != StateReady {
		t.mu.Unlock()
		t.logger.Debug("session skipped, nothing loaded", slog.String("session_id", session.ID))
		return OutcomeSkipped
	}
	sessions := make([]entity.Session, 0, len(t.sessions)+1)
	sessions = append(sessions, session)
	sessions = append(sessions, t.sessions...)
	t.sessions = sessions
	t.version++
	t.local.SaveSessions(ctx, sessions)
	var patch *entity.ProgressPatch
	if t.progress != nil {
		streak := progression.CalculateStreak(sessions, t.progress.StreakData, t.now())
		total := progression.CalculateTotalPlankTime(sessions)
		count := progression.GetCompletedSessionsCount(sessions)
		patch = &entity.ProgressPatch{
			StreakData:     &streak,
			TotalPlankTime: &total,
			TotalSessions:  &count,
		}
	} else {
		t.saveGuestBundleLocked(ctx)
	}
	online := t.online
	t.mu.Unlock()

	if patch != nil {
		t.UpdateProgress(ctx, *patch)
	}
	if t.identity.IsGuest {
		return OutcomeAppliedLocal
	}
	if online {
		err := t.remote.SaveSession(ctx, session)
		if err == nil {
			return OutcomeAppliedBoth
		}
		t.logger.Warn("queueing session after failed save",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}
	t.queueMu.Lock()
	t.local.AddToOfflineQueue(ctx, session)
	t.queueMu.Unlock()
	return OutcomeAppliedLocalQueuedRemote
}

func (t *Tracker) UpdateSettings(ctx context.Context, patch entity.SettingsPatch) Outcome {
	t.mu.Lock()
	if t.settings == nil {
		t.mu.Unlock()
		t.logger.Debug("settings update skipped, nothing loaded")
		return OutcomeSkipped
	}
	updated := t.settings.Apply(patch)
	t.settings = &updated
	t.version++
	t.local.SaveSettings(ctx, updated)
	t.saveGuestBundleLocked(ctx)
	writeRemote := !t.identity.IsGuest && t.online
	if !t.identity.IsGuest && !writeRemote {
		t.pendingSettings = true
	}
	t.mu.Unlock()

	if !writeRemote {
		return OutcomeAppliedLocal
	}
	if err := t.remote.SaveSettings(ctx, t.identity.UserID, updated); err != nil {
		t.logger.Warn("settings kept locally", slog.String("error", err.Error()))
		t.markPending(false, true)
		return OutcomeAppliedLocal
	}
	return OutcomeAppliedBoth
}

func (t *Tracker) markPending(progress, settings bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingProgress = t.pendingProgress || progress
	t.pendingSettings = t.pendingSettings || settings
}

// pushPending writes progress and settings that only reached the local store.
func (t *Tracker) pushPending(ctx context.Context) error {
	t.mu.Lock()
	var progress *entity.UserProgress
	var settings *entity.UserSettings
	if t.pendingProgress && t.progress != nil {
		p := t.progress.Clone()
		progress = &p
	}
	if t.pendingSettings && t.settings != nil {
		s := *t.settings
		settings = &s
	}
	t.pendingProgress, t.pendingSettings = false, false
	t.mu.Unlock()

	if progress != nil {
		if err := t.remote.SaveProgress(ctx, *progress); err != nil {
			t.markPending(true, settings != nil)
			return err
		}
	}
	if settings != nil {
		if err := t.remote.SaveSettings(ctx, t.identity.UserID, *settings); err != nil {
			t.markPending(false, true)
			return err
		}
	}
	return nil
}

func (t *Tracker) hasPending() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pendingProgress || t.pendingSettings
}

func (t *Tracker) saveGuestBundleLocked(ctx context.Context) {
	if !t.identity.IsGuest || t.progress == nil || t.settings == nil {
		return
	}
	sessions := make([]entity.Session, len(t.sessions))
	copy(sessions, t.sessions)
	t.local.SaveGuestData(ctx, entity.GuestBundle{
		Progress: t.progress.Clone(),
		Sessions: sessions,
		Settings: *t.settings,
	})
}

// Sync pushes queued sessions one by one, oldest first. Confirmed sessions
// leave the queue even when a later one fails; the rest wait for the next
// attempt. Once the whole queue went through, progress and settings changed
// offline are pushed and the user data is reloaded.
func (t *Tracker) Sync(ctx context.Context) (SyncReport, error) {
	if t.identity.IsGuest {
		return SyncReport{}, nil
	}
	if !t.syncing.CompareAndSwap(false, true) {
		return SyncReport{}, errorvalues.ErrSyncInFlight
	}
	defer t.syncing.Store(false)

	t.queueMu.Lock()
	queue := t.local.GetOfflineQueue(ctx)
	t.queueMu.Unlock()
	report := SyncReport{Pending: len(queue)}
	if len(queue) == 0 && !t.hasPending() {
		return report, nil
	}
	if !t.IsOnline() {
		return report, fmt.Errorf("%w: offline", errorvalues.ErrRemoteUnavailable)
	}

	pushed := make([]string, 0, len(queue))
	var pushErr error
	for _, s := range queue {
		if pushErr = t.remote.SaveSession(ctx, s); pushErr != nil {
			break
		}
		pushed = append(pushed, s.ID)
	}
	report.Pushed = len(pushed)
	report.Pending = len(queue) - len(pushed)

	t.queueMu.Lock()
	t.local.RemoveFromOfflineQueue(ctx, pushed)
	if pushErr == nil && len(t.local.GetOfflineQueue(ctx)) == 0 {
		t.local.ClearOfflineQueue(ctx)
	}
	t.queueMu.Unlock()

	if pushErr != nil {
		t.logger.Warn("offline queue partially synced",
			slog.Int("pushed", report.Pushed),
			slog.Int("pending", report.Pending),
			slog.String("error", pushErr.Error()),
		)
		return report, pushErr
	}
	if err := t.pushPending(ctx); err != nil {
		t.logger.Warn("offline changes not pushed", slog.String("error", err.Error()))
		return report, err
	}
	t.logger.Info("offline changes synced", slog.Int("pushed", report.Pushed))

	if err := t.Load(ctx); err != nil && !errors.Is(err, errorvalues.ErrStaleLoad) {
		return report, err
	}
	report.Reloaded = true
	return report, nil
}

// Run follows connectivity changes until ctx is done. Going online triggers
// a sync, duplicate events are harmless.
func (t *Tracker) Run(ctx context.Context) {
	events, cancel := t.signal.Subscribe()
	defer cancel()
	t.setOnline(t.signal.Online())
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			t.handleEvent(ctx, e)
		}
	}
}

// handleEvent treats e as a hint only. A slow reader may miss transitions,
// so the signal's current state is what counts.
func (t *Tracker) handleEvent(ctx context.Context, e connectivity.Event) {
	online := t.signal.Online()
	t.logger.Debug("connectivity event", slog.String("event", e.String()), slog.Bool("online", online))
	t.setOnline(online)
	if !online || t.identity.IsGuest {
		return
	}
	if _, err := t.Sync(ctx); err != nil && !errors.Is(err, errorvalues.ErrSyncInFlight) {
		t.logger.Warn("sync after reconnect failed", slog.String("error", err.Error()))
	}
	// Transitions published while syncing may have been dropped
	t.setOnline(t.signal.Online())
}

func (t *Tracker) setOnline(online bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.online != online {
		t.logger.Info("connectivity changed", slog.Bool("online", online))
	}
	t.online = online
}

// CompleteSession records a finished plank for today and moves the program
// forward: the baseline collects the duration, progression raises the target.
// Completions of one user run one at a time so each one sees the previous result.
func (t *Tracker) CompleteSession(ctx context.Context, duration int) (*entity.Session, Outcome, error) {
	if err := validateDuration(duration); err != nil {
		return nil, OutcomeSkipped, err
	}
	t.completeMu.Lock()
	defer t.completeMu.Unlock()

	t.mu.RLock()
	if t.progress == nil || t.settings == nil {
		t.mu.RUnlock()
		return nil, OutcomeSkipped, errorvalues.ErrNotLoaded
	}
	baseline := t.progress.BaselineData.Clone()
	target := t.progress.CurrentTargetDuration
	increment := t.settings.DailyIncrement
	t.mu.RUnlock()

	// The patch is settled before anything is stored, a rejected baseline
	// leaves no session behind.
	kind := entity.SessionProgression
	var patch entity.ProgressPatch
	if !progression.IsBaselineComplete(baseline) {
		kind = entity.SessionBaseline
		next, err := progression.ApplyBaselineDuration(baseline, duration)
		if err != nil {
			return nil, OutcomeSkipped, err
		}
		patch.BaselineData = &next
		if next.IsComplete {
			patch.CurrentTargetDuration = &next.AverageTime
		}
	} else {
		next := progression.CalculateNextTarget(target, increment)
		patch.CurrentTargetDuration = &next
	}

	now := t.now()
	millis := now.UnixMilli()
	if millis <= t.lastIDMillis {
		millis = t.lastIDMillis + 1
	}
	t.lastIDMillis = millis
	session := entity.Session{
		ID:             fmt.Sprintf("%s_%d", t.identity.UserID, millis),
		UserID:         t.identity.UserID,
		Date:           dateutil.DateString(now),
		Duration:       duration,
		TargetDuration: target,
		Type:           kind,
		Completed:      true,
		Timestamp:      now,
	}
	outcome := t.AddSession(ctx, session)
	if outcome == OutcomeSkipped {
		return nil, outcome, errorvalues.ErrNotLoaded
	}
	t.UpdateProgress(ctx, patch)
	return &session, outcome, nil
}

// ResetProgram starts a new baseline. The best streak survives.
func (t *Tracker) ResetProgram(ctx context.Context) Outcome {
	t.completeMu.Lock()
	defer t.completeMu.Unlock()
	t.mu.RLock()
	if t.progress == nil {
		t.mu.RUnlock()
		return OutcomeSkipped
	}
	best := t.progress.StreakData.BestStreak
	t.mu.RUnlock()

	target, zero := entity.DefaultTargetDuration, 0
	return t.UpdateProgress(ctx, entity.ProgressPatch{
		BaselineData:          &entity.BaselineData{Sessions: []int{}},
		StreakData:            &entity.StreakData{BestStreak: best},
		CurrentTargetDuration: &target,
		TotalSessions:         &zero,
		TotalPlankTime:        &zero,
	})
}

// DeleteAccountData removes every trace of the user and starts over with
// defaults. The remote copy goes first; if that fails nothing local is touched.
func (t *Tracker) DeleteAccountData(ctx context.Context) error {
	if !t.identity.IsGuest {
		if err := t.remote.DeleteUser(ctx, t.identity.UserID); err != nil {
			return err
		}
	}
	t.queueMu.Lock()
	t.local.ClearAll(ctx)
	t.queueMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	progress := entity.DefaultProgress(t.identity.UserID, t.now())
	settings := entity.DefaultSettings()
	t.progress = &progress
	t.settings = &settings
	t.sessions = []entity.Session{}
	t.pendingProgress, t.pendingSettings = false, false
	t.version++
	t.state = StateReady
	t.logger.Info("account data deleted")
	return nil
}

func (t *Tracker) Progress() *entity.UserProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.progress == nil {
		return nil
	}
	progress := t.progress.Clone()
	return &progress
}

func (t *Tracker) Sessions() []entity.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sessions := make([]entity.Session, len(t.sessions))
	copy(sessions, t.sessions)
	return sessions
}

func (t *Tracker) Settings() *entity.UserSettings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.settings == nil {
		return nil
	}
	settings := *t.settings
	return &settings
}

func (t *Tracker) Stats() entity.Stats {
	return progression.CalculateStats(t.Sessions(), t.now())
}

func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tracker) IsOnline() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.online
}

func (t *Tracker) Identity() entity.Identity {
	return t.identity
}

type Status struct {
	State          string `json:"state"`
	Online         bool   `json:"online"`
	Guest          bool   `json:"guest"`
	QueuedSessions int    `json:"queued_sessions"`
	Syncing        bool   `json:"syncing"`
}

func (t *Tracker) Status(ctx context.Context) Status {
	t.queueMu.Lock()
	queued := len(t.local.GetOfflineQueue(ctx))
	t.queueMu.Unlock()
	return Status{
		State:          t.State().String(),
		Online:         t.IsOnline(),
		Guest:          t.identity.IsGuest,
		QueuedSessions: queued,
		Syncing:        t.syncing.Load(),
	}
}
