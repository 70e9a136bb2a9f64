package cli

import (
	"errors"
	"strconv"

	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/internal/service"
	"github.com/limbo/plankup/pkg/dateutil"
	"github.com/limbo/plankup/pkg/entity"
	"github.com/spf13/cobra"
)

type statusOutput struct {
	Identity entity.Identity      `json:"identity"`
	Status   service.Status       `json:"status"`
	Progress *entity.UserProgress `json:"progress"`
}

func newStatusCommand(opts *RootOptions, openStores StoresFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queued sessions and current progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tracker, err := loadTracker(ctx, cmd, opts, openStores)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading tracker", err)
			}
			return writeOutput(cmd.OutOrStdout(), opts.Format, statusOutput{
				Identity: tracker.Identity(),
				Status:   tracker.Status(ctx),
				Progress: tracker.Progress(),
			})
		},
	}
}

type completeOutput struct {
	Session  *entity.Session      `json:"session"`
	Outcome  string               `json:"outcome"`
	Progress *entity.UserProgress `json:"progress"`
}

func newCompleteCommand(opts *RootOptions, openStores StoresFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "complete <seconds>",
		Short:   "Record a finished plank",
		Example: "  plankctl complete 45",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, err := strconv.Atoi(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "duration must be a number of seconds", err)
			}
			ctx := cmd.Context()
			tracker, err := loadTracker(ctx, cmd, opts, openStores)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading tracker", err)
			}
			session, outcome, err := tracker.CompleteSession(ctx, duration)
			if err != nil {
				if errors.Is(err, errorvalues.ErrInvalidInput) {
					return WrapExitError(ExitCommandError, "session rejected", err)
				}
				return WrapExitError(ExitFailure, "saving session", err)
			}
			return writeOutput(cmd.OutOrStdout(), opts.Format, completeOutput{
				Session:  session,
				Outcome:  outcome.String(),
				Progress: tracker.Progress(),
			})
		},
	}
}

type sessionsOutput struct {
	Sessions []entity.Session `json:"sessions"`
	Total    int              `json:"total"`
}

func newSessionsCommand(opts *RootOptions, openStores StoresFunc) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return NewExitError(ExitCommandError, "limit can't be negative")
			}
			tracker, err := loadTracker(cmd.Context(), cmd, opts, openStores)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading tracker", err)
			}
			sessions := tracker.Sessions()
			total := len(sessions)
			if limit > 0 && limit < total {
				sessions = sessions[:limit]
			}
			return writeOutput(cmd.OutOrStdout(), opts.Format, sessionsOutput{Sessions: sessions, Total: total})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of sessions to show, 0 for all")
	return cmd
}

type statsOutput struct {
	entity.Stats
	TotalTimeFormatted string `json:"total_time_formatted"`
	AverageFormatted   string `json:"average_formatted"`
}

func newStatsCommand(opts *RootOptions, openStores StoresFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals, averages and the last week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker(cmd.Context(), cmd, opts, openStores)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading tracker", err)
			}
			stats := tracker.Stats()
			return writeOutput(cmd.OutOrStdout(), opts.Format, statsOutput{
				Stats:              stats,
				TotalTimeFormatted: dateutil.FormatDuration(stats.TotalPlankTime),
				AverageFormatted:   dateutil.FormatTime(stats.AverageTime),
			})
		},
	}
}

func newSyncCommand(opts *RootOptions, openStores StoresFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push sessions recorded while offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker(cmd.Context(), cmd, opts, openStores)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading tracker", err)
			}
			report, err := tracker.Sync(cmd.Context())
			if werr := writeOutput(cmd.OutOrStdout(), opts.Format, report); werr != nil {
				return werr
			}
			if err != nil {
				return WrapExitError(ExitFailure, "sync incomplete", err)
			}
			return nil
		},
	}
}

func newResetCommand(opts *RootOptions, openStores StoresFunc) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Start the program over with a new baseline",
		Long:  "Start the program over with a new baseline. Sessions are kept, the best streak survives.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "reset needs --yes")
			}
			ctx := cmd.Context()
			tracker, err := loadTracker(ctx, cmd, opts, openStores)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading tracker", err)
			}
			outcome := tracker.ResetProgram(ctx)
			if outcome == service.OutcomeSkipped {
				return WrapExitError(ExitFailure, "reset skipped", errorvalues.ErrNotLoaded)
			}
			return writeOutput(cmd.OutOrStdout(), opts.Format, completeOutput{
				Outcome:  outcome.String(),
				Progress: tracker.Progress(),
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}

type settingsOutput struct {
	Settings *entity.UserSettings `json:"settings"`
	Outcome  string               `json:"outcome,omitempty"`
}

func newSettingsCommand(opts *RootOptions, openStores StoresFunc) *cobra.Command {
	var (
		increment    int
		reminderTime string
		reminder     bool
		darkMode     bool
		sound        bool
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
		Long:  "Show settings. Any flag given is applied as a partial update first.",
		Example: `  plankctl settings
  plankctl settings --daily-increment 5 --reminder-time 07:30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch entity.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("daily-increment") {
				patch.DailyIncrement = &increment
			}
			if flags.Changed("reminder-time") {
				patch.ReminderTime = &reminderTime
			}
			if flags.Changed("reminder") {
				patch.ReminderEnabled = &reminder
			}
			if flags.Changed("dark-mode") {
				patch.DarkMode = &darkMode
			}
			if flags.Changed("sound") {
				patch.SoundEnabled = &sound
			}
			if err := service.ValidateSettingsPatch(patch); err != nil {
				return WrapExitError(ExitCommandError, "invalid settings", err)
			}

			ctx := cmd.Context()
			tracker, err := loadTracker(ctx, cmd, opts, openStores)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading tracker", err)
			}
			out := settingsOutput{}
			if patch != (entity.SettingsPatch{}) {
				outcome := tracker.UpdateSettings(ctx, patch)
				if outcome == service.OutcomeSkipped {
					return WrapExitError(ExitFailure, "settings update skipped", errorvalues.ErrNotLoaded)
				}
				out.Outcome = outcome.String()
			}
			out.Settings = tracker.Settings()
			return writeOutput(cmd.OutOrStdout(), opts.Format, out)
		},
	}
	cmd.Flags().IntVar(&increment, "daily-increment", entity.DefaultDailyIncrement, "seconds added to the target after each progression session")
	cmd.Flags().StringVar(&reminderTime, "reminder-time", entity.DefaultReminderTime, "daily reminder as HH:MM")
	cmd.Flags().BoolVar(&reminder, "reminder", false, "enable the daily reminder")
	cmd.Flags().BoolVar(&darkMode, "dark-mode", false, "enable dark mode")
	cmd.Flags().BoolVar(&sound, "sound", true, "enable sounds")
	return cmd
}
