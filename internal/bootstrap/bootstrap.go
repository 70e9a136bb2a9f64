// Package bootstrap builds the stores and connectivity signal shared by the
// api server and the CLI from configuration.
package bootstrap

import (
	"errors"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/limbo/plankup/internal/connectivity"
	"github.com/limbo/plankup/internal/repository"
	"github.com/limbo/plankup/internal/service"
	"github.com/limbo/plankup/internal/storage"
	"github.com/limbo/plankup/pkg/cleanup"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
)

// Configurer is the part of config.Config the wiring reads.
type Configurer interface {
	GetString(key string) string
	GetStringOr(key, def string) string
	GetDuration(key string, def time.Duration) time.Duration
}

type Stores struct {
	Blobs  repository.BlobStore
	Remote *storage.RemoteStore
	Signal *connectivity.Broadcaster
	// Nil when the remote store lives in memory
	Prober *connectivity.Prober

	LoadTimeout time.Duration
}

func OpenStores(cfg Configurer, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	blobs, err := openBlobs(cfg)
	if err != nil {
		return nil, err
	}
	stores := &Stores{
		Blobs:       blobs,
		LoadTimeout: cfg.GetDuration("LOAD_TIMEOUT", service.DefaultLoadTimeout),
	}

	switch driver := cfg.GetStringOr("REMOTE_DRIVER", DriverPostgres); driver {
	case DriverPostgres:
		docs, err := repository.NewPgDocumentStore(&repository.PGCfg{
			Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
			Username: cfg.GetString("POSTGRES_USER"),
			Password: cfg.GetString("POSTGRES_PASSWORD"),
			DB:       cfg.GetString("POSTGRES_DB"),
		})
		if err != nil {
			return nil, err
		}
		stores.Remote = storage.NewRemoteStore(docs)
		// Offline until the first probe says otherwise
		stores.Signal = connectivity.NewBroadcaster(false)
		interval := cfg.GetDuration("CONNECTIVITY_PROBE_INTERVAL", 15*time.Second)
		stores.Prober = connectivity.NewProber(docs, stores.Signal, interval, logger)
	case DriverMemory:
		stores.Remote = storage.NewRemoteStore(repository.NewMemoryDocumentStore())
		stores.Signal = connectivity.NewBroadcaster(true)
	default:
		return nil, errors.New("unknown REMOTE_DRIVER: " + driver)
	}
	return stores, nil
}

// OpenLocalStores opens only the local store. The remote side is detached and
// the signal stays offline, so nothing tries to reach the network.
func OpenLocalStores(cfg Configurer) (*Stores, error) {
	blobs, err := openBlobs(cfg)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Blobs:       blobs,
		Remote:      storage.NewRemoteStore(repository.DetachedDocumentStore{}),
		Signal:      connectivity.NewBroadcaster(false),
		LoadTimeout: cfg.GetDuration("LOAD_TIMEOUT", service.DefaultLoadTimeout),
	}, nil
}

func openBlobs(cfg Configurer) (repository.BlobStore, error) {
	switch driver := cfg.GetStringOr("LOCAL_DRIVER", DriverSQLite); driver {
	case DriverSQLite:
		path := cfg.GetStringOr("LOCAL_DB_PATH", "./data/local.db")
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, errors.New("creating local db directory error: " + err.Error())
			}
		}
		blobs, err := repository.OpenSQLiteBlobStore(path)
		if err != nil {
			return nil, err
		}
		cleanup.Register(&cleanup.Job{
			Name: "closing local sqlite store",
			F:    blobs.Close,
		})
		return blobs, nil
	case DriverMemory:
		return repository.NewMemoryBlobStore(), nil
	default:
		return nil, errors.New("unknown LOCAL_DRIVER: " + driver)
	}
}

// MustOpenStores is OpenStores for entry points, where a wiring error is fatal.
func MustOpenStores(cfg Configurer, logger *slog.Logger) *Stores {
	stores, err := OpenStores(cfg, logger)
	if err != nil {
		log.Fatal("opening stores error: " + err.Error())
	}
	return stores
}
