package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/limbo/plankup/internal/connectivity"
	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/internal/repository"
	"github.com/limbo/plankup/internal/storage"
	"github.com/limbo/plankup/pkg/entity"
)

type registryEntry struct {
	tracker *Tracker
	loaded  chan struct{}
}

// TrackerRegistry keeps one running Tracker per user. Trackers share the
// blob store, each under its own namespace, and the remote store.
type TrackerRegistry struct {
	blobs  repository.BlobStore
	remote RemoteStoreI
	signal connectivity.Signal
	opts   TrackerOptions

	runCtx context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	trackers map[string]*registryEntry
}

func NewTrackerRegistry(blobs repository.BlobStore, remote RemoteStoreI, signal connectivity.Signal, opts TrackerOptions) *TrackerRegistry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	runCtx, stop := context.WithCancel(context.Background())
	return &TrackerRegistry{
		blobs:    blobs,
		remote:   remote,
		signal:   signal,
		opts:     opts,
		runCtx:   runCtx,
		stop:     stop,
		trackers: make(map[string]*registryEntry),
	}
}

// Get returns the user's tracker, creating and loading it on first use.
// Callers racing on a new user all wait for the same first load.
func (r *TrackerRegistry) Get(ctx context.Context, identity entity.Identity) (TrackerI, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New("tracker registry is closed")
	}
	entry, ok := r.trackers[identity.UserID]
	if ok {
		r.mu.Unlock()
		select {
		case <-entry.loaded:
			return entry.tracker, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	local := storage.NewLocalStore(r.blobs, identity.UserID, r.opts.Logger)
	entry = &registryEntry{
		tracker: NewTracker(identity, local, r.remote, r.signal, r.opts),
		loaded:  make(chan struct{}),
	}
	r.trackers[identity.UserID] = entry
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		entry.tracker.Run(r.runCtx)
	}()
	r.mu.Unlock()

	defer close(entry.loaded)
	if err := entry.tracker.Load(ctx); err != nil && !errors.Is(err, errorvalues.ErrStaleLoad) {
		return nil, err
	}
	return entry.tracker, nil
}

func (r *TrackerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// Close stops every tracker and waits for them to exit.
func (r *TrackerRegistry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.stop()
	r.wg.Wait()
}
