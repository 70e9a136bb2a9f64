package service

import (
	"context"

	"github.com/limbo/plankup/pkg/entity"
)

// LocalStoreI is the per-user local cache. Reads never fail, absent or broken
// data comes back as nil or an empty slice.
type LocalStoreI interface {
	SaveProgress(ctx context.Context, progress entity.UserProgress)
	LoadProgress(ctx context.Context) *entity.UserProgress
	SaveSessions(ctx context.Context, sessions []entity.Session)
	LoadSessions(ctx context.Context) []entity.Session
	SaveSettings(ctx context.Context, settings entity.UserSettings)
	LoadSettings(ctx context.Context) *entity.UserSettings

	AddToOfflineQueue(ctx context.Context, session entity.Session)
	GetOfflineQueue(ctx context.Context) []entity.Session
	RemoveFromOfflineQueue(ctx context.Context, ids []string)
	ClearOfflineQueue(ctx context.Context)

	SaveGuestData(ctx context.Context, bundle entity.GuestBundle)
	LoadGuestData(ctx context.Context) *entity.GuestBundle
	ClearGuestData(ctx context.Context)
	ClearAll(ctx context.Context)
}

// RemoteStoreI is the authoritative per-user store. Absent documents are
// returned as nil without error.
type RemoteStoreI interface {
	GetProgress(ctx context.Context, userID string) (*entity.UserProgress, error)
	SaveProgress(ctx context.Context, progress entity.UserProgress) error
	GetSessions(ctx context.Context, userID string) ([]entity.Session, error)
	SaveSession(ctx context.Context, session entity.Session) error
	SaveSessions(ctx context.Context, sessions []entity.Session) error
	GetSettings(ctx context.Context, userID string) (*entity.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, settings entity.UserSettings) error
	// Creates default progress and settings for a brand-new user
	InitializeUser(ctx context.Context, userID string) error
	// Removes progress, settings and every session of the user
	DeleteUser(ctx context.Context, userID string) error
}

// TrackerI is what the transport layer needs from a tracker.
type TrackerI interface {
	Load(ctx context.Context) error
	UpdateProgress(ctx context.Context, patch entity.ProgressPatch) Outcome
	AddSession(ctx context.Context, session entity.Session) Outcome
	UpdateSettings(ctx context.Context, patch entity.SettingsPatch) Outcome
	Sync(ctx context.Context) (SyncReport, error)

	CompleteSession(ctx context.Context, duration int) (*entity.Session, Outcome, error)
	ResetProgram(ctx context.Context) Outcome
	DeleteAccountData(ctx context.Context) error

	Progress() *entity.UserProgress
	Sessions() []entity.Session
	Settings() *entity.UserSettings
	Stats() entity.Stats
	State() State
	IsOnline() bool
	Identity() entity.Identity
	Status(ctx context.Context) Status
}
