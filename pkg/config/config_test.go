package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/limbo/plankup/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PLANKUP_TEST_ADDR=:9090\nPLANKUP_TEST_INT=7\nPLANKUP_TEST_TIMEOUT=3s\nPLANKUP_TEST_BOOL=true\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)
	cfg := config.New()

	assert.Equal(t, ":9090", cfg.GetString("PLANKUP_TEST_ADDR"))
	assert.Equal(t, "fallback", cfg.GetStringOr("PLANKUP_TEST_MISSING", "fallback"))
	assert.Equal(t, 7, cfg.GetInt("PLANKUP_TEST_INT", 1))
	assert.Equal(t, 1, cfg.GetInt("PLANKUP_TEST_ADDR", 1))
	assert.Equal(t, 3*time.Second, cfg.GetDuration("PLANKUP_TEST_TIMEOUT", time.Second))
	assert.Equal(t, time.Second, cfg.GetDuration("PLANKUP_TEST_MISSING", time.Second))
	assert.True(t, cfg.GetBool("PLANKUP_TEST_BOOL", false))
	assert.Same(t, cfg, config.New())
}
