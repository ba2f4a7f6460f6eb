package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// AppConfig is the application configuration. Connection strings stay in
// environment variables, behavioural knobs live here.
type AppConfig struct {
	Feed     FeedConfig     `yaml:"feed" validate:"required"`
	Tracking TrackingConfig `yaml:"tracking" validate:"required"`
	Render   RenderConfig   `yaml:"render" validate:"required"`
	API      APIConfig      `yaml:"api"`
}

type FeedConfig struct {
	// Transport selects the realtime feed implementation
	Transport string `yaml:"transport" validate:"oneof=mongo nats"`

	// Collection watched by the mongo transport
	Collection string `yaml:"collection" validate:"required"`

	// Subject subscribed to by the nats transport
	Subject string `yaml:"subject"`
}

type TrackingConfig struct {
	// AccuracyThresholdMetres rejects reports with a worse GPS accuracy
	AccuracyThresholdMetres float64 `yaml:"accuracy_threshold_metres" validate:"gt=0"`

	// MinDisplacementMetres rejects reports closer than this to the last
	// accepted position
	MinDisplacementMetres float64 `yaml:"min_displacement_metres" validate:"gte=0"`

	// MinUpdateIntervalSeconds rejects reports arriving within this window of
	// the last accepted one. Deliberately coarse, most movement updates are
	// dropped on purpose
	MinUpdateIntervalSeconds int `yaml:"min_update_interval_seconds" validate:"gt=0"`

	// DebounceWindowMillis coalesces bursts of accepted updates into a single
	// publish
	DebounceWindowMillis int `yaml:"debounce_window_millis" validate:"gt=0"`

	// ReaperIntervalSeconds is how often the staleness reaper re-evaluates
	// the active set
	ReaperIntervalSeconds int `yaml:"reaper_interval_seconds" validate:"gt=0"`

	// ActivityWindowSeconds is how long a vehicle stays online without a new
	// accepted report
	ActivityWindowSeconds int `yaml:"activity_window_seconds" validate:"gt=0"`

	// MaxTrackedVehicles bounds the per-vehicle filter state, oldest entries
	// are evicted beyond this
	MaxTrackedVehicles int `yaml:"max_tracked_vehicles" validate:"gt=0"`
}

type RenderConfig struct {
	// AnimationSteps is the number of frames a marker glide is split into
	AnimationSteps int `yaml:"animation_steps" validate:"gt=0"`

	// FrameIntervalMillis is the delay between interpolation frames
	FrameIntervalMillis int `yaml:"frame_interval_millis" validate:"gt=0"`

	// RefreshIntervalSeconds re-runs reconciliation even when the vehicle
	// list has not changed
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds" validate:"gt=0"`

	// Listen target of the map websocket server
	Listen string `yaml:"listen"`
}

type APIConfig struct {
	Listen string `yaml:"listen"`
}

func (c TrackingConfig) MinUpdateInterval() time.Duration {
	return time.Duration(c.MinUpdateIntervalSeconds) * time.Second
}

func (c TrackingConfig) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowMillis) * time.Millisecond
}

func (c TrackingConfig) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSeconds) * time.Second
}

func (c TrackingConfig) ActivityWindow() time.Duration {
	return time.Duration(c.ActivityWindowSeconds) * time.Second
}

func (c RenderConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMillis) * time.Millisecond
}

func (c RenderConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// Config is the loaded application configuration.
var Config AppConfig

// Defaults returns the production defaults, used as the base for any loaded
// file.
func Defaults() AppConfig {
	return AppConfig{
		Feed: FeedConfig{
			Transport:  "mongo",
			Collection: "vehicle_locations",
			Subject:    "vehicles.locations",
		},
		Tracking: TrackingConfig{
			AccuracyThresholdMetres:  100,
			MinDisplacementMetres:    50,
			MinUpdateIntervalSeconds: 300,
			DebounceWindowMillis:     2000,
			ReaperIntervalSeconds:    10,
			ActivityWindowSeconds:    300,
			MaxTrackedVehicles:       10000,
		},
		Render: RenderConfig{
			AnimationSteps:         20,
			FrameIntervalMillis:    50,
			RefreshIntervalSeconds: 10,
			Listen:                 ":3334",
		},
		API: APIConfig{
			Listen: ":8080",
		},
	}
}

// Load reads config.yml (path overridable with TRANSPORT_CONFIG) over the
// defaults and validates the result. A missing file is not an error, the
// defaults are used as-is.
func Load() error {
	// .env files are a local development convenience
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env")
	}

	Config = Defaults()

	path := os.Getenv("TRANSPORT_CONFIG")
	if path == "" {
		path = "config.yml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", path).Msg("No config file found, using defaults")
			return validate()
		}

		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &Config); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return validate()
}

func validate() error {
	if err := validator.New().Struct(Config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
