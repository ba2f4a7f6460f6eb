package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.New().Struct(Defaults()))
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()

	cfg := Defaults()

	assert.Equal(t, "5m0s", cfg.Tracking.MinUpdateInterval().String())
	assert.Equal(t, "2s", cfg.Tracking.DebounceWindow().String())
	assert.Equal(t, "10s", cfg.Tracking.ReaperInterval().String())
	assert.Equal(t, "5m0s", cfg.Tracking.ActivityWindow().String())
	assert.Equal(t, "50ms", cfg.Render.FrameInterval().String())
	assert.Equal(t, "10s", cfg.Render.RefreshInterval().String())
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	content := []byte(`
tracking:
  accuracy_threshold_metres: 75
  min_displacement_metres: 25
feed:
  transport: nats
  subject: fleet.positions
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	t.Setenv("TRANSPORT_CONFIG", path)

	require.NoError(t, Load())

	assert.Equal(t, 75.0, Config.Tracking.AccuracyThresholdMetres)
	assert.Equal(t, 25.0, Config.Tracking.MinDisplacementMetres)
	assert.Equal(t, "nats", Config.Feed.Transport)
	assert.Equal(t, "fleet.positions", Config.Feed.Subject)

	// Untouched knobs keep their defaults
	assert.Equal(t, 300, Config.Tracking.MinUpdateIntervalSeconds)
	assert.Equal(t, 20, Config.Render.AnimationSteps)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TRANSPORT_CONFIG", filepath.Join(t.TempDir(), "missing.yml"))

	require.NoError(t, Load())
	assert.Equal(t, Defaults(), Config)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	require.NoError(t, os.WriteFile(path, []byte("feed:\n  transport: carrier-pigeon\n"), 0644))

	t.Setenv("TRANSPORT_CONFIG", path)

	assert.Error(t, Load())
}
