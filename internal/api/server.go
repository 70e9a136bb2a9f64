package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	mx         *chi.Mux
	trackers   TrackerRegistryI
	jwtService JWTServiceI
}

type ServicesList struct {
	Trackers   TrackerRegistryI
	JwtService JWTServiceI
}

func New(servicesOptions *ServicesList) *Server {
	s := &Server{
		mx:         chi.NewMux(),
		trackers:   servicesOptions.Trackers,
		jwtService: servicesOptions.JwtService,
	}
	s.mountRoutes()
	return s
}

func (s *Server) mountRoutes() {
	s.mx.Use(s.RequestIDMiddleware, s.SettingUpLoggerMiddleware, s.AccessLogMiddleware, middleware.Recoverer)
	s.mx.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/guest", s.GuestSignIn)

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware, s.LoggerExtensionMiddleware)
			r.Get("/progress", s.GetProgress)
			r.Patch("/progress/reset", s.ResetProgress)
			r.Get("/sessions", s.GetSessions)
			r.Post("/sessions", s.CreateSession)
			r.Get("/settings", s.GetSettings)
			r.Patch("/settings", s.UpdateSettings)
			r.Get("/stats", s.GetStats)
			r.Get("/status", s.GetStatus)
			r.Post("/sync", s.Sync)
			r.Delete("/account", s.DeleteAccount)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mx.ServeHTTP(w, r)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server started", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New("server shutdown error: " + err.Error())
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
