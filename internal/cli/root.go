// Package cli implements plankctl, a local-first command line client that
// drives the same tracker as the api server.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/limbo/plankup/internal/bootstrap"
	"github.com/limbo/plankup/internal/connectivity"
	"github.com/limbo/plankup/internal/service"
	"github.com/limbo/plankup/internal/storage"
	"github.com/limbo/plankup/pkg/entity"
	"github.com/spf13/cobra"
)

var ValidFormats = []string{"yaml", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	User    string
	Guest   bool
	Offline bool
	Verbose bool
	Format  string
}

// StoresFunc opens the stores a command works on. With offline set the
// remote store must not be contacted.
type StoresFunc func(logger *slog.Logger, offline bool) (*bootstrap.Stores, error)

func NewRootCommand(openStores StoresFunc) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "plankctl",
		Short: "PlankUp from the terminal",
		Long: `Track the daily plank program from the command line.

Data is kept in the local store and pushed to the remote store when it is
reachable, the same way the api server does it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.User == "" {
				return fmt.Errorf("user can't be empty")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "local", "user id to track")
	cmd.PersistentFlags().BoolVar(&opts.Guest, "guest", false, "keep data on this machine only")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "don't contact the remote store")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "yaml", "output format (yaml|json)")

	cmd.AddCommand(newStatusCommand(opts, openStores))
	cmd.AddCommand(newCompleteCommand(opts, openStores))
	cmd.AddCommand(newSessionsCommand(opts, openStores))
	cmd.AddCommand(newStatsCommand(opts, openStores))
	cmd.AddCommand(newSyncCommand(opts, openStores))
	cmd.AddCommand(newResetCommand(opts, openStores))
	cmd.AddCommand(newSettingsCommand(opts, openStores))

	return cmd
}

// loadTracker opens the stores and returns a loaded tracker for the selected user.
func loadTracker(ctx context.Context, cmd *cobra.Command, opts *RootOptions, openStores StoresFunc) (*service.Tracker, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	stores, err := openStores(logger, opts.Offline)
	if err != nil {
		return nil, err
	}

	var signal connectivity.Signal = stores.Signal
	switch {
	case opts.Offline:
		signal = connectivity.NewBroadcaster(false)
	case stores.Prober != nil:
		stores.Prober.Probe(ctx)
	}

	identity := entity.Identity{UserID: opts.User, IsGuest: opts.Guest}
	local := storage.NewLocalStore(stores.Blobs, identity.UserID, logger)
	tracker := service.NewTracker(identity, local, stores.Remote, signal, service.TrackerOptions{
		LoadTimeout: stores.LoadTimeout,
		Logger:      logger,
	})
	if err = tracker.Load(ctx); err != nil {
		return nil, err
	}
	return tracker, nil
}
