// @title PlankUp API
// @description Progress, sessions and settings of the PlankUp daily plank program
// @BasePath /api/v1
// @schemes http
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/limbo/plankup/internal/api"
	"github.com/limbo/plankup/internal/bootstrap"
	"github.com/limbo/plankup/internal/service"
	"github.com/limbo/plankup/pkg/cleanup"
	"github.com/limbo/plankup/pkg/config"
	jwtservice "github.com/limbo/plankup/pkg/jwt_service"
)

func init() {
	service.InitValidator()
}

func main() {
	cfg := config.New()
	secret := cfg.GetString("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET isn't set")
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores := bootstrap.MustOpenStores(cfg, logger)
	if stores.Prober != nil {
		if !stores.Prober.Probe(ctx) {
			logger.Warn("remote store unreachable at startup, serving from local data")
		}
		go stores.Prober.Run(ctx)
	}
	registry := service.NewTrackerRegistry(stores.Blobs, stores.Remote, stores.Signal, service.TrackerOptions{
		LoadTimeout: stores.LoadTimeout,
		Logger:      logger,
	})
	cleanup.Register(&cleanup.Job{
		Name: "stopping trackers",
		F: func() error {
			registry.Close()
			return nil
		},
	})

	serv := api.New(&api.ServicesList{
		Trackers:   registry,
		JwtService: jwtservice.New(secret, cfg.GetDuration("JWT_TTL", 0)),
	})
	err := serv.Run(ctx, cfg.GetStringOr("API_ADDRESS", ":8080"))
	if err != nil {
		log.Println("Server error: " + err.Error())
	}
	cleanup.CleanUp()
}
