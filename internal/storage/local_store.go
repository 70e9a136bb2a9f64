package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytedance/sonic"
	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/internal/repository"
	"github.com/limbo/plankup/pkg/entity"
)

const (
	KeyUserProgress = "plankup_user_progress"
	KeySessions     = "plankup_sessions"
	KeySettings     = "plankup_settings"
	KeyOfflineQueue = "plankup_offline_queue"
	KeyGuestData    = "plankup_guest_data"

	probeKey = "__storage_test__"
)

var allKeys = []string{KeyUserProgress, KeySessions, KeySettings, KeyOfflineQueue, KeyGuestData}

// LocalStore is the typed local cache of one user's data. It never returns
// errors: failed reads come back as absent values, failed writes are logged.
type LocalStore struct {
	blobs     repository.BlobStore
	namespace string
	logger    *slog.Logger
}

func NewLocalStore(blobs repository.BlobStore, namespace string, logger *slog.Logger) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{
		blobs:     blobs,
		namespace: namespace,
		logger:    logger.With(slog.String("component", "local_store")),
	}
}

func (ls *LocalStore) save(ctx context.Context, key string, value any) {
	data, err := sonic.ConfigDefault.Marshal(value)
	if err == nil {
		err = ls.blobs.Set(ctx, ls.namespace, key, data)
	}
	if err != nil {
		ls.logger.Error("saving to local storage failed",
			slog.String("key", key),
			slog.String("error", fmt.Errorf("%w: %w", errorvalues.ErrLocalStorage, err).Error()))
	}
}

// load decodes key into dst. It reports false when the key is absent or unreadable.
func (ls *LocalStore) load(ctx context.Context, key string, dst any) bool {
	data, err := ls.blobs.Get(ctx, ls.namespace, key)
	if err != nil {
		if !errors.Is(err, errorvalues.ErrBlobNotFound) {
			ls.logger.Error("loading from local storage failed",
				slog.String("key", key),
				slog.String("error", fmt.Errorf("%w: %w", errorvalues.ErrLocalStorage, err).Error()))
		}
		return false
	}
	if len(data) == 0 || string(data) == "null" {
		return false
	}
	if err = sonic.ConfigDefault.Unmarshal(data, dst); err != nil {
		ls.logger.Error("corrupt local storage value",
			slog.String("key", key),
			slog.String("error", fmt.Errorf("%w: %w", errorvalues.ErrLocalStorage, err).Error()))
		return false
	}
	return true
}

func (ls *LocalStore) remove(ctx context.Context, key string) {
	if err := ls.blobs.Delete(ctx, ls.namespace, key); err != nil {
		ls.logger.Error("removing from local storage failed",
			slog.String("key", key),
			slog.String("error", fmt.Errorf("%w: %w", errorvalues.ErrLocalStorage, err).Error()))
	}
}

func (ls *LocalStore) SaveProgress(ctx context.Context, progress entity.UserProgress) {
	ls.save(ctx, KeyUserProgress, progress)
}

func (ls *LocalStore) LoadProgress(ctx context.Context) *entity.UserProgress {
	var progress entity.UserProgress
	if !ls.load(ctx, KeyUserProgress, &progress) {
		return nil
	}
	return &progress
}

// SaveSessions replaces the whole stored list.
func (ls *LocalStore) SaveSessions(ctx context.Context, sessions []entity.Session) {
	if sessions == nil {
		sessions = []entity.Session{}
	}
	ls.save(ctx, KeySessions, sessions)
}

func (ls *LocalStore) LoadSessions(ctx context.Context) []entity.Session {
	sessions := []entity.Session{}
	if !ls.load(ctx, KeySessions, &sessions) || sessions == nil {
		return []entity.Session{}
	}
	return sessions
}

func (ls *LocalStore) SaveSettings(ctx context.Context, settings entity.UserSettings) {
	ls.save(ctx, KeySettings, settings)
}

func (ls *LocalStore) LoadSettings(ctx context.Context) *entity.UserSettings {
	var settings entity.UserSettings
	if !ls.load(ctx, KeySettings, &settings) {
		return nil
	}
	return &settings
}

func (ls *LocalStore) AddToOfflineQueue(ctx context.Context, session entity.Session) {
	queue := ls.GetOfflineQueue(ctx)
	queue = append(queue, session)
	ls.save(ctx, KeyOfflineQueue, queue)
}

func (ls *LocalStore) GetOfflineQueue(ctx context.Context) []entity.Session {
	queue := []entity.Session{}
	if !ls.load(ctx, KeyOfflineQueue, &queue) || queue == nil {
		return []entity.Session{}
	}
	return queue
}

// RemoveFromOfflineQueue drops the entries with the given ids and keeps the
// order of everything else, including entries appended meanwhile.
func (ls *LocalStore) RemoveFromOfflineQueue(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	queue := ls.GetOfflineQueue(ctx)
	kept := make([]entity.Session, 0, len(queue))
	for _, s := range queue {
		if _, ok := drop[s.ID]; !ok {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		ls.ClearOfflineQueue(ctx)
		return
	}
	ls.save(ctx, KeyOfflineQueue, kept)
}

func (ls *LocalStore) ClearOfflineQueue(ctx context.Context) {
	ls.remove(ctx, KeyOfflineQueue)
}

func (ls *LocalStore) SaveGuestData(ctx context.Context, bundle entity.GuestBundle) {
	ls.save(ctx, KeyGuestData, bundle)
}

func (ls *LocalStore) LoadGuestData(ctx context.Context) *entity.GuestBundle {
	var bundle entity.GuestBundle
	if !ls.load(ctx, KeyGuestData, &bundle) {
		return nil
	}
	return &bundle
}

func (ls *LocalStore) ClearGuestData(ctx context.Context) {
	ls.remove(ctx, KeyGuestData)
}

func (ls *LocalStore) ClearAll(ctx context.Context) {
	for _, key := range allKeys {
		ls.remove(ctx, key)
	}
}

// IsAvailable probes the store with a throwaway write and delete.
func (ls *LocalStore) IsAvailable(ctx context.Context) bool {
	if err := ls.blobs.Set(ctx, ls.namespace, probeKey, []byte("test")); err != nil {
		return false
	}
	return ls.blobs.Delete(ctx, ls.namespace, probeKey) == nil
}
