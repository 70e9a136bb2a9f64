package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/internal/service"
	"github.com/limbo/plankup/pkg/dateutil"
	"github.com/limbo/plankup/pkg/entity"
	"github.com/limbo/plankup/pkg/httputil"
)

const handlerTimeout = 10 * time.Second

type CreateSessionRequest struct {
	Duration *int `json:"duration"`
}

type SessionResponse struct {
	Session  *entity.Session      `json:"session"`
	Outcome  string               `json:"outcome"`
	Progress *entity.UserProgress `json:"progress"`
}

type ProgressResponse struct {
	Progress *entity.UserProgress `json:"progress"`
	Outcome  string               `json:"outcome,omitempty"`
}

type SettingsResponse struct {
	Settings *entity.UserSettings `json:"settings"`
	Outcome  string               `json:"outcome,omitempty"`
}

type SessionsResponse struct {
	Sessions []entity.Session `json:"sessions"`
	Total    int              `json:"total"`
}

type StatsResponse struct {
	entity.Stats
	TotalTimeFormatted string `json:"total_time_formatted"`
	AverageFormatted   string `json:"average_formatted"`
}

// tracker resolves the caller's tracker. It writes the error response itself
// and returns nil on failure.
func (s *Server) tracker(ctx context.Context, w http.ResponseWriter, r *http.Request) service.TrackerI {
	logger := GetLoggerFromCtx(r.Context())
	identity, err := GetIdentityFromContext(r)
	if err != nil {
		logger.Error("tracker lookup: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return nil
	}
	tracker, err := s.trackers.Get(ctx, identity)
	if err != nil {
		logger.Error("tracker lookup: registry error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error loading user data", nil)
		return nil
	}
	return tracker
}

func (s *Server) GuestSignIn(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	identity := entity.Identity{
		UserID:  "guest_" + uuid.New().String(),
		IsGuest: true,
	}
	token, err := s.jwtService.GenerateToken(identity)
	if err != nil {
		logger.Error("guest sign in error: generating token error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error creating token", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, map[string]any{
		"uid":   identity.UserID,
		"guest": true,
		"token": token,
	})
	logger.Info("guest signed in", slog.String("uid", identity.UserID))
}

func (s *Server) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	progress := tracker.Progress()
	if progress == nil {
		httputil.WriteErrorResponse(w, http.StatusNotFound, "progress isn't available yet", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, ProgressResponse{Progress: progress})
}

func (s *Server) ResetProgress(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	outcome := tracker.ResetProgram(ctx)
	if outcome == service.OutcomeSkipped {
		logger.Error("reset error: progress not loaded")
		httputil.WriteErrorResponse(w, http.StatusConflict, "progress isn't available yet", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, ProgressResponse{
		Progress: tracker.Progress(),
		Outcome:  outcome.String(),
	})
	logger.Info("program reset", slog.String("outcome", outcome.String()))
}

func (s *Server) GetSessions(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			logger.Error("get sessions error: invalid limit")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid limit", nil)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	sessions := tracker.Sessions()
	total := len(sessions)
	if limit > 0 && limit < total {
		sessions = sessions[:limit]
	}
	httputil.WriteJSONResponse(w, http.StatusOK, SessionsResponse{Sessions: sessions, Total: total})
}

func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req CreateSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || req.Duration == nil {
		logger.Error("create session error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	session, outcome, err := tracker.CompleteSession(ctx, *req.Duration)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrInvalidInput):
			logger.Error("create session error: session rejected", slog.Int("duration", *req.Duration), slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "session rejected", err)
		case errors.Is(err, errorvalues.ErrNotLoaded):
			logger.Error("create session error: data not loaded")
			httputil.WriteErrorResponse(w, http.StatusConflict, "progress isn't available yet", nil)
		default:
			logger.Error("create session error: tracker error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while saving session", nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, SessionResponse{
		Session:  session,
		Outcome:  outcome.String(),
		Progress: tracker.Progress(),
	})
	logger.Info("session completed",
		slog.String("session_id", session.ID),
		slog.Int("duration", session.Duration),
		slog.String("outcome", outcome.String()),
	)
}

func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	settings := tracker.Settings()
	if settings == nil {
		httputil.WriteErrorResponse(w, http.StatusNotFound, "settings aren't available yet", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, SettingsResponse{Settings: settings})
}

func (s *Server) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var patch entity.SettingsPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		logger.Error("update settings error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := service.ValidateSettingsPatch(patch); err != nil {
		logger.Error("update settings error: validation failed", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid settings", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	outcome := tracker.UpdateSettings(ctx, patch)
	if outcome == service.OutcomeSkipped {
		logger.Error("update settings error: settings not loaded")
		httputil.WriteErrorResponse(w, http.StatusConflict, "settings aren't available yet", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, SettingsResponse{
		Settings: tracker.Settings(),
		Outcome:  outcome.String(),
	})
	logger.Info("settings updated", slog.String("outcome", outcome.String()))
}

func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	stats := tracker.Stats()
	httputil.WriteJSONResponse(w, http.StatusOK, StatsResponse{
		Stats:              stats,
		TotalTimeFormatted: dateutil.FormatDuration(stats.TotalPlankTime),
		AverageFormatted:   dateutil.FormatTime(stats.AverageTime),
	})
}

func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, tracker.Status(ctx))
}

func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	report, err := tracker.Sync(ctx)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrSyncInFlight):
			logger.Error("sync error: already in progress")
			httputil.WriteErrorResponse(w, http.StatusConflict, "sync already in progress", nil)
		case errors.Is(err, errorvalues.ErrRemoteUnavailable):
			logger.Error("sync error: remote unavailable", slog.String("error", err.Error()))
			httputil.WriteJSONResponse(w, http.StatusServiceUnavailable, report)
		default:
			logger.Error("sync error: tracker error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while syncing", nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, report)
	logger.Info("sync finished", slog.Int("pushed", report.Pushed))
}

func (s *Server) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	tracker := s.tracker(ctx, w, r)
	if tracker == nil {
		return
	}
	if err := tracker.DeleteAccountData(ctx); err != nil {
		if errors.Is(err, errorvalues.ErrRemoteUnavailable) {
			logger.Error("delete account error: remote unavailable", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusServiceUnavailable, "remote store unavailable, try again later", nil)
			return
		}
		logger.Error("delete account error: tracker error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while deleting account", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logger.Info("account data deleted")
}
