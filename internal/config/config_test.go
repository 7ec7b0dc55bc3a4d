package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/sitposture/pkg/posture"
)

func TestFromEnv_Defaults(t *testing.T) {
	s, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, posture.DefaultConfig(), s.Posture)
	assert.Equal(t, DefaultDashboardPort, s.DashboardPort)
	assert.Equal(t, "0", s.Camera.Device)
	assert.True(t, s.Camera.Mirror)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CALIBRATION_WINDOW_FRAMES", "90")
	t.Setenv("NOD_THRESHOLD_RATIO", "0.8")
	t.Setenv("TILT_THRESHOLD_DEGREES", "12.5")
	t.Setenv("CALIBRATION_DURATION", "3s")
	t.Setenv("CAMERA_DEVICE", "clips/desk.mp4")
	t.Setenv("CAMERA_WIDTH", "1280")
	t.Setenv("CAMERA_MIRROR", "false")
	t.Setenv("DASHBOARD_PORT", "")

	s, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 90, s.Posture.CalibrationFrames)
	assert.Equal(t, 0.8, s.Posture.NodThresholdRatio)
	assert.Equal(t, 12.5, s.Posture.TiltThresholdDegrees)
	assert.Equal(t, 3*time.Second, s.Posture.CalibrationDuration)
	assert.Equal(t, "clips/desk.mp4", s.Camera.Device)
	assert.Equal(t, 1280, s.Camera.Width)
	assert.False(t, s.Camera.Mirror)
	assert.Empty(t, s.DashboardPort, "an empty DASHBOARD_PORT disables the dashboard")
}

func TestFromEnv_Malformed(t *testing.T) {
	t.Setenv("CALIBRATION_WINDOW_FRAMES", "fifty")
	t.Setenv("NOD_THRESHOLD_RATIO", "3/4")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALIBRATION_WINDOW_FRAMES")
	assert.Contains(t, err.Error(), "NOD_THRESHOLD_RATIO")
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TILT_THRESHOLD_DEGREES=15\nLOG_LEVEL=debug\n"), 0o600))

	// Unset afterwards: godotenv writes straight into the process env
	t.Setenv("TILT_THRESHOLD_DEGREES", "")
	os.Unsetenv("TILT_THRESHOLD_DEGREES")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15.0, s.Posture.TiltThresholdDegrees)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
