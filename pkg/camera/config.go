// Package camera captures frames from a local webcam or video file with GoCV.
package camera

import "strconv"

// Config holds capture settings.
type Config struct {
	// Device is a camera index ("0") or a video file path.
	Device string `json:"device"`

	Width     int `json:"width"`     // Requested frame width in pixels
	Height    int `json:"height"`    // Requested frame height in pixels
	Framerate int `json:"framerate"` // Requested FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100 for encoded frames

	// Mirror flips frames horizontally so the view behaves like a mirror.
	Mirror bool `json:"mirror"`
}

// Capture limits accepted by Validate.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns a 640x480 mirrored webcam at 30fps.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
		Mirror:    true,
	}
}

// IsDevice reports whether Device names a camera index rather than a file.
func (c *Config) IsDevice() bool {
	_, err := strconv.Atoi(c.Device)
	return err == nil
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device must be a camera index or a file path")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
