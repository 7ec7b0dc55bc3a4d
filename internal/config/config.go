// Package config loads sitposture settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/teslashibe/sitposture/pkg/camera"
	"github.com/teslashibe/sitposture/pkg/estimator"
	"github.com/teslashibe/sitposture/pkg/posture"
)

// Default process settings.
const (
	DefaultDashboardPort = "8080"
	DefaultLogLevel      = "info"
)

// Settings is everything a sitposture command needs to start.
type Settings struct {
	Posture      posture.Config
	Camera       camera.Config
	EstimatorURL string
	// DashboardPort is empty when the dashboard is disabled
	DashboardPort string
	LogLevel      string
}

// Load reads the given .env files (".env" when none are named) and then the
// environment. Missing files are fine; existing variables win over files.
func Load(files ...string) (Settings, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("config: load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds Settings from environment variables over the defaults.
// Every malformed value is reported.
func FromEnv() (Settings, error) {
	s := Settings{
		Posture:       posture.DefaultConfig(),
		Camera:        camera.DefaultConfig(),
		EstimatorURL:  envString("ESTIMATOR_URL", estimator.DefaultURL),
		DashboardPort: envString("DASHBOARD_PORT", DefaultDashboardPort),
		LogLevel:      envString("LOG_LEVEL", DefaultLogLevel),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(envInt("CALIBRATION_WINDOW_FRAMES", &s.Posture.CalibrationFrames))
	collect(envFloat("NOD_THRESHOLD_RATIO", &s.Posture.NodThresholdRatio))
	collect(envFloat("TILT_THRESHOLD_DEGREES", &s.Posture.TiltThresholdDegrees))
	collect(envDuration("CALIBRATION_DURATION", &s.Posture.CalibrationDuration))

	s.Camera.Device = envString("CAMERA_DEVICE", s.Camera.Device)
	collect(envInt("CAMERA_WIDTH", &s.Camera.Width))
	collect(envInt("CAMERA_HEIGHT", &s.Camera.Height))
	collect(envInt("CAMERA_FPS", &s.Camera.Framerate))
	collect(envInt("CAMERA_JPEG_QUALITY", &s.Camera.Quality))
	collect(envBool("CAMERA_MIRROR", &s.Camera.Mirror))

	if len(errs) > 0 {
		return s, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return s, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s=%q: not an integer", key, v)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s=%q: not a number", key, v)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s=%q: not a duration", key, v)
	}
	*dst = d
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s=%q: not a boolean", key, v)
	}
	*dst = b
	return nil
}
