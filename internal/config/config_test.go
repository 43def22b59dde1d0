package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	c, err := FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestFromEnv_Overrides(t *testing.T) {
	c, err := FromEnv(env(map[string]string{
		"ADDR":            ":9000",
		"LOG_LEVEL":       "debug",
		"ROUND_LIMIT":     "3",
		"FLAVOR_URL":      "http://flavor.local",
		"FLAVOR_TIMEOUT":  "750ms",
		"WS_READ_TIMEOUT": "2m",
		"ALLOWED_ORIGINS": "localhost:*, 192.168.*.*:5173 ,",
		"DEV":             "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.Addr)
	assert.Equal(t, 3, c.RoundLimit)
	assert.Equal(t, 750*time.Millisecond, c.FlavorTimeout)
	assert.Equal(t, 2*time.Minute, c.WSReadTimeout)
	assert.Equal(t, []string{"localhost:*", "192.168.*.*:5173"}, c.AllowedOrigins)
	assert.True(t, c.Dev)

	log, err := c.Logger()
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestFromEnv_ReportsEveryBadValue(t *testing.T) {
	_, err := FromEnv(env(map[string]string{
		"ROUND_LIMIT":    "zero",
		"FLAVOR_TIMEOUT": "soon",
		"LOG_LEVEL":      "chatty",
	}))
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ROUND_LIMIT=4\nBOARD_FILE=boards/small.yaml\n"), 0o600))
	t.Setenv("ROUND_LIMIT", "")
	t.Setenv("BOARD_FILE", "")
	os.Unsetenv("ROUND_LIMIT")
	os.Unsetenv("BOARD_FILE")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.RoundLimit)
	assert.Equal(t, "boards/small.yaml", c.BoardFile)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}
