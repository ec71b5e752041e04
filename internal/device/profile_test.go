package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p := Default()

	assert.True(t, p.HighRefreshRate)
	assert.Equal(t, 2, p.SimSlots)
	assert.Equal(t, 3, p.Vibration.Default)
	assert.Contains(t, p.Paths.VibrationLevel, "leds/vibrator/level")
	assert.NotEmpty(t, p.Services.HBM)
}

func TestLoad_OverridesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := `
name: test-phone
high_refresh_rate: false
paths:
  hbm: /tmp/hbm
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-phone", p.Name)
	assert.False(t, p.HighRefreshRate)
	assert.Equal(t, "/tmp/hbm", p.Paths.HBM)
	assert.Equal(t, Default().Paths.VibrationLevel, p.Paths.VibrationLevel)
	assert.Equal(t, Default().Services, p.Services)
}

func TestLoad_EmptyPath(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoad_RejectsBadRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vibration:\n  min: 5\n  max: 1\n  default: 3\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
