package posture

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned when a session is created with a configuration
// outside its sane range. It is fatal at startup.
var ErrInvalidConfig = errors.New("posture: invalid configuration")

// Config holds the tunable parameters of the classification engine.
type Config struct {
	// CalibrationFrames is how many valid frames feed the nod baseline.
	CalibrationFrames int `json:"calibration_window_frames" validate:"gte=1"`

	// NodThresholdRatio scales the mean calibration distance into the nod threshold.
	NodThresholdRatio float64 `json:"nod_threshold_ratio" validate:"gt=0,lte=1"`

	// TiltThresholdDegrees is the tilt both the eye and ear pairs must exceed.
	TiltThresholdDegrees float64 `json:"tilt_threshold_degrees" validate:"gte=0,lte=90"`

	// CalibrationDuration switches the warm-up to elapsed time when non-zero.
	// The window then closes on the first valid frame at least this long after
	// the first calibration frame, and CalibrationFrames is ignored.
	CalibrationDuration time.Duration `json:"calibration_duration" validate:"gte=0"`
}

// DefaultConfig returns the parameters the engine was tuned with:
// 50 frames (about 1.67s at 30fps), 3/4 of the mean distance, 10 degrees.
func DefaultConfig() Config {
	return Config{
		CalibrationFrames:    50,
		NodThresholdRatio:    0.75,
		TiltThresholdDegrees: 10,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate reports every out-of-range field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)",
			fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
