package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/internal/repository"
	"github.com/limbo/plankup/pkg/entity"
)

const (
	CollectionUsers    = "users"
	CollectionSessions = "sessions"
	CollectionSettings = "settings"
)

// RemoteStore is the typed view of the authoritative per-user document store.
// Every failure it returns wraps errorvalues.ErrRemoteUnavailable.
type RemoteStore struct {
	docs repository.DocumentStore
	now  func() time.Time
}

func NewRemoteStore(docs repository.DocumentStore) *RemoteStore {
	return &RemoteStore{
		docs: docs,
		now:  time.Now,
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", errorvalues.ErrRemoteUnavailable, op, err)
}

// GetProgress returns nil without error when the user has no progress document.
func (rs *RemoteStore) GetProgress(ctx context.Context, userID string) (*entity.UserProgress, error) {
	doc, err := rs.docs.Get(ctx, CollectionUsers, userID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrDocumentNotFound) {
			return nil, nil
		}
		return nil, unavailable("get progress", err)
	}
	var progress entity.UserProgress
	if err = sonic.ConfigDefault.Unmarshal(doc.Data, &progress); err != nil {
		return nil, unavailable("decode progress", err)
	}
	if !doc.UpdatedAt.IsZero() {
		progress.LastUpdated = doc.UpdatedAt
	}
	if progress.BaselineData.Sessions == nil {
		progress.BaselineData.Sessions = []int{}
	}
	return &progress, nil
}

// SaveProgress upserts the progress document. The store stamps the update time.
func (rs *RemoteStore) SaveProgress(ctx context.Context, progress entity.UserProgress) error {
	doc, err := encode(progress.UserID, progress.UserID, progress)
	if err != nil {
		return unavailable("encode progress", err)
	}
	if _, err = rs.docs.Set(ctx, CollectionUsers, doc); err != nil {
		return unavailable("save progress", err)
	}
	return nil
}

// GetSessions returns the user's sessions, newest date first. Sorting happens
// here so no store index is needed.
func (rs *RemoteStore) GetSessions(ctx context.Context, userID string) ([]entity.Session, error) {
	docs, err := rs.docs.Query(ctx, CollectionSessions, userID)
	if err != nil {
		return nil, unavailable("get sessions", err)
	}
	sessions := make([]entity.Session, 0, len(docs))
	for _, doc := range docs {
		var s entity.Session
		if err = sonic.ConfigDefault.Unmarshal(doc.Data, &s); err != nil {
			return nil, unavailable("decode session "+doc.ID, err)
		}
		sessions = append(sessions, s)
	}
	SortSessions(sessions)
	return sessions, nil
}

func (rs *RemoteStore) SaveSession(ctx context.Context, session entity.Session) error {
	doc, err := encode(session.ID, session.UserID, session)
	if err != nil {
		return unavailable("encode session", err)
	}
	if _, err = rs.docs.Set(ctx, CollectionSessions, doc); err != nil {
		return unavailable("save session", err)
	}
	return nil
}

// SaveSessions writes every session or none of them.
func (rs *RemoteStore) SaveSessions(ctx context.Context, sessions []entity.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	ops := make([]repository.BatchOp, 0, len(sessions))
	for _, s := range sessions {
		doc, err := encode(s.ID, s.UserID, s)
		if err != nil {
			return unavailable("encode session", err)
		}
		ops = append(ops, repository.BatchOp{Kind: repository.BatchSet, Collection: CollectionSessions, Document: doc})
	}
	if err := rs.docs.Batch(ctx, ops); err != nil {
		return unavailable("save sessions", err)
	}
	return nil
}

// GetSettings returns nil without error when the user has no settings document.
func (rs *RemoteStore) GetSettings(ctx context.Context, userID string) (*entity.UserSettings, error) {
	doc, err := rs.docs.Get(ctx, CollectionSettings, userID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrDocumentNotFound) {
			return nil, nil
		}
		return nil, unavailable("get settings", err)
	}
	var settings entity.UserSettings
	if err = sonic.ConfigDefault.Unmarshal(doc.Data, &settings); err != nil {
		return nil, unavailable("decode settings", err)
	}
	return &settings, nil
}

func (rs *RemoteStore) SaveSettings(ctx context.Context, userID string, settings entity.UserSettings) error {
	doc, err := encode(userID, userID, settings)
	if err != nil {
		return unavailable("encode settings", err)
	}
	if _, err = rs.docs.Set(ctx, CollectionSettings, doc); err != nil {
		return unavailable("save settings", err)
	}
	return nil
}

// InitializeUser creates default progress and settings in one batch.
func (rs *RemoteStore) InitializeUser(ctx context.Context, userID string) error {
	progressDoc, err := encode(userID, userID, entity.DefaultProgress(userID, rs.now()))
	if err != nil {
		return unavailable("encode progress", err)
	}
	settingsDoc, err := encode(userID, userID, entity.DefaultSettings())
	if err != nil {
		return unavailable("encode settings", err)
	}
	err = rs.docs.Batch(ctx, []repository.BatchOp{
		{Kind: repository.BatchSet, Collection: CollectionUsers, Document: progressDoc},
		{Kind: repository.BatchSet, Collection: CollectionSettings, Document: settingsDoc},
	})
	if err != nil {
		return unavailable("initialize user", err)
	}
	return nil
}

// DeleteUser removes progress, settings and every session of the user in one batch.
func (rs *RemoteStore) DeleteUser(ctx context.Context, userID string) error {
	sessions, err := rs.docs.Query(ctx, CollectionSessions, userID)
	if err != nil {
		return unavailable("list sessions for deletion", err)
	}
	ops := make([]repository.BatchOp, 0, len(sessions)+2)
	ops = append(ops,
		repository.BatchOp{Kind: repository.BatchDelete, Collection: CollectionUsers, Document: repository.Document{ID: userID}},
		repository.BatchOp{Kind: repository.BatchDelete, Collection: CollectionSettings, Document: repository.Document{ID: userID}},
	)
	for _, doc := range sessions {
		ops = append(ops, repository.BatchOp{Kind: repository.BatchDelete, Collection: CollectionSessions, Document: repository.Document{ID: doc.ID}})
	}
	if err = rs.docs.Batch(ctx, ops); err != nil {
		return unavailable("delete user", err)
	}
	return nil
}

// SortSessions orders sessions by date descending, newest timestamp first within a day.
func SortSessions(sessions []entity.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Date != sessions[j].Date {
			return sessions[i].Date > sessions[j].Date
		}
		return sessions[i].Timestamp.After(sessions[j].Timestamp)
	})
}

func encode(id, userID string, value any) (repository.Document, error) {
	data, err := sonic.ConfigDefault.Marshal(value)
	if err != nil {
		return repository.Document{}, err
	}
	return repository.Document{ID: id, UserID: userID, Data: data}, nil
}
