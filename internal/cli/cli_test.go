package cli_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/limbo/plankup/internal/bootstrap"
	"github.com/limbo/plankup/internal/cli"
	"github.com/limbo/plankup/internal/connectivity"
	"github.com/limbo/plankup/internal/repository"
	"github.com/limbo/plankup/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newStores() *bootstrap.Stores {
	return &bootstrap.Stores{
		Blobs:  repository.NewMemoryBlobStore(),
		Remote: storage.NewRemoteStore(repository.NewMemoryDocumentStore()),
		Signal: connectivity.NewBroadcaster(true),
	}
}

// run executes a fresh root command against stores shared between runs.
func run(stores *bootstrap.Stores, args ...string) (string, error) {
	root := cli.NewRootCommand(func(logger *slog.Logger, offline bool) (*bootstrap.Stores, error) {
		return stores, nil
	})
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func runJSON(t *testing.T, stores *bootstrap.Stores, args ...string) map[string]any {
	t.Helper()
	out, err := run(stores, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err, out)
	var v map[string]any
	require.NoError(t, sonic.ConfigStd.Unmarshal([]byte(out), &v), out)
	return v
}

func TestRootCommand(t *testing.T) {
	root := cli.NewRootCommand(nil)
	assert.Equal(t, "plankctl", root.Use)
	assert.True(t, root.SilenceUsage)
	assert.True(t, root.SilenceErrors)

	for _, name := range []string{"status", "complete", "sessions", "stats", "sync", "reset", "settings"} {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, cmd.Name())
		})
	}

	for _, name := range []string{"user", "guest", "offline", "verbose", "format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "yaml", root.PersistentFlags().Lookup("format").DefValue)
}

func TestRootValidation(t *testing.T) {
	testCases := []struct {
		Desc string
		Args []string
	}{
		{Desc: "unknown format", Args: []string{"--format", "xml", "status"}},
		{Desc: "empty user", Args: []string{"--user", "", "status"}},
		{Desc: "complete without duration", Args: []string{"complete"}},
		{Desc: "complete with text duration", Args: []string{"complete", "abc"}},
		{Desc: "complete with negative duration", Args: []string{"complete", "--", "-5"}},
		{Desc: "reset without confirmation", Args: []string{"reset"}},
		{Desc: "bad reminder time", Args: []string{"settings", "--reminder-time", "25:00"}},
		{Desc: "negative limit", Args: []string{"sessions", "--limit", "-1"}},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			_, err := run(newStores(), tc.Args...)
			assert.Error(t, err)
		})
	}
}

func TestExitCodes(t *testing.T) {
	_, err := run(newStores(), "complete", "abc")
	assert.Equal(t, cli.ExitCommandError, cli.GetExitCode(err))
	assert.Equal(t, cli.ExitFailure, cli.GetExitCode(errors.New("plain")))

	wrapped := cli.WrapExitError(cli.ExitFailure, "sync incomplete", errors.New("offline"))
	assert.Equal(t, "sync incomplete: offline", wrapped.Error())
	assert.Equal(t, "offline", errors.Unwrap(wrapped).Error())
}

func TestCompleteAndStats(t *testing.T) {
	stores := newStores()

	completed := runJSON(t, stores, "complete", "40")
	assert.Equal(t, "applied_both", completed["outcome"])
	session := completed["session"].(map[string]any)
	assert.Equal(t, "baseline", session["type"])
	assert.EqualValues(t, 40, session["duration"])

	sessions := runJSON(t, stores, "sessions")
	assert.EqualValues(t, 1, sessions["total"])

	stats := runJSON(t, stores, "stats")
	assert.EqualValues(t, 1, stats["completed_sessions"])
	assert.Equal(t, "40s", stats["total_time_formatted"])

	remote, err := stores.Remote.GetSessions(context.Background(), "local")
	require.NoError(t, err)
	assert.Len(t, remote, 1)
}

func TestOfflineCompleteThenSync(t *testing.T) {
	stores := newStores()
	// An online run seeds the local cache first.
	runJSON(t, stores, "status")

	completed := runJSON(t, stores, "--offline", "complete", "40")
	assert.Equal(t, "applied_local_queued_remote", completed["outcome"])

	status := runJSON(t, stores, "--offline", "status")
	assert.EqualValues(t, 1, status["status"].(map[string]any)["queued_sessions"])
	assert.Equal(t, false, status["status"].(map[string]any)["online"])

	_, err := run(stores, "--offline", "sync")
	assert.Error(t, err)

	report := runJSON(t, stores, "sync")
	assert.EqualValues(t, 1, report["pushed"])
	assert.EqualValues(t, 0, report["pending"])
	assert.Equal(t, true, report["reloaded"])

	remote, err := stores.Remote.GetSessions(context.Background(), "local")
	require.NoError(t, err)
	assert.Len(t, remote, 1)
}

func TestOfflineOpensLocalOnly(t *testing.T) {
	var opened []bool
	root := cli.NewRootCommand(func(logger *slog.Logger, offline bool) (*bootstrap.Stores, error) {
		opened = append(opened, offline)
		return &bootstrap.Stores{
			Blobs:  repository.NewMemoryBlobStore(),
			Remote: storage.NewRemoteStore(repository.DetachedDocumentStore{}),
			Signal: connectivity.NewBroadcaster(false),
		}, nil
	})
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"--offline", "--format", "json", "status"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, []bool{true}, opened)

	var v map[string]any
	require.NoError(t, sonic.ConfigStd.Unmarshal(out.Bytes(), &v), out.String())
	status := v["status"].(map[string]any)
	assert.Equal(t, "ready", status["state"])
	assert.Equal(t, false, status["online"])
}

func TestGuestStaysLocal(t *testing.T) {
	stores := newStores()
	completed := runJSON(t, stores, "--guest", "--user", "guest_cli", "complete", "35")
	assert.Equal(t, "applied_local", completed["outcome"])

	sessions := runJSON(t, stores, "--guest", "--user", "guest_cli", "sessions")
	assert.EqualValues(t, 1, sessions["total"])

	progress, err := stores.Remote.GetProgress(context.Background(), "guest_cli")
	require.NoError(t, err)
	assert.Nil(t, progress)
}

func TestSettingsAndReset(t *testing.T) {
	stores := newStores()

	shown := runJSON(t, stores, "settings")
	assert.NotContains(t, shown, "outcome")
	assert.EqualValues(t, 3, shown["settings"].(map[string]any)["daily_increment"])

	updated := runJSON(t, stores, "settings", "--daily-increment", "5", "--dark-mode")
	assert.Equal(t, "applied_both", updated["outcome"])
	settings := updated["settings"].(map[string]any)
	assert.EqualValues(t, 5, settings["daily_increment"])
	assert.Equal(t, true, settings["dark_mode"])
	assert.Equal(t, "19:00", settings["reminder_time"])

	runJSON(t, stores, "complete", "40")
	reset := runJSON(t, stores, "reset", "--yes")
	assert.Equal(t, "applied_both", reset["outcome"])
	baseline := reset["progress"].(map[string]any)["baseline_data"].(map[string]any)
	assert.Empty(t, baseline["sessions"])
}

func TestYAMLOutput(t *testing.T) {
	out, err := run(newStores(), "status")
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &v), out)
	status, ok := v["status"].(map[string]any)
	require.True(t, ok, out)
	assert.Equal(t, "ready", status["state"])
	assert.Equal(t, "local", v["identity"].(map[string]any)["user_id"])
}
