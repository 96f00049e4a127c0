// Package config provides configuration management for the liveness tools.
// It loads configuration from YAML files with sensible defaults and lets
// LIVENESS_* environment variables override individual settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
)

// EnvPrefix is the prefix of environment overrides, e.g. LIVENESS_LOG_LEVEL.
const EnvPrefix = "LIVENESS"

// Default config file locations.
const (
	SystemConfigPath = "/etc/facepass-liveness/liveness.yaml"
	UserConfigPath   = ".config/facepass-liveness/liveness.yaml"
)

// Config holds all configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera" envconfig:"SOURCE"`
	Viewport    ViewportConfig    `yaml:"viewport" envconfig:"VIEWPORT"`
	Liveness    LivenessConfig    `yaml:"liveness" envconfig:"CHALLENGE"`
	Recognition RecognitionConfig `yaml:"recognition" envconfig:"RECOGNITION"`
	Storage     StorageConfig     `yaml:"storage" envconfig:"STORAGE"`
	Notify      NotifyConfig      `yaml:"notify" envconfig:"MQTT"`
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOG"`
}

// CameraConfig selects where face measurements come from.
type CameraConfig struct {
	// Kind is "replay" for JSON-lines measurement recordings or "images"
	// for a directory of JPEG frames run through the dlib detector.
	Kind   string `yaml:"kind" split_words:"true" validate:"oneof=replay images"`
	Path   string `yaml:"path" split_words:"true"`
	FPS    int    `yaml:"fps" split_words:"true" validate:"gte=0,lte=240"`
	Mirror bool   `yaml:"mirror" split_words:"true"`
}

// ViewportConfig is the preview geometry used by the framing gate.
type ViewportConfig struct {
	PreviewSize      float64 `yaml:"preview_size" split_words:"true" validate:"gt=0"`
	PreviewTopMargin float64 `yaml:"preview_top_margin" split_words:"true" validate:"gte=0"`
	WindowWidth      float64 `yaml:"window_width" split_words:"true" validate:"gt=0,gtefield=PreviewSize"`
}

// LivenessConfig holds the challenge settings.
type LivenessConfig struct {
	Sequence        []string         `yaml:"sequence" split_words:"true" validate:"min=1,dive,required"`
	Thresholds      ThresholdsConfig `yaml:"thresholds" envconfig:"THRESHOLD"`
	CompletionDelay time.Duration    `yaml:"completion_delay" split_words:"true" validate:"gte=0"`
	Timeout         time.Duration    `yaml:"timeout" split_words:"true" validate:"gte=0"`
	SaveSessions    bool             `yaml:"save_sessions" split_words:"true"`
}

// ThresholdsConfig holds the per-gesture decision limits.
type ThresholdsConfig struct {
	BlinkMaxEyeOpen     float64 `yaml:"blink_max_eye_open" split_words:"true" validate:"gte=0,lte=1"`
	TurnLeftMinYaw      float64 `yaml:"turn_left_min_yaw" split_words:"true" validate:"gt=0,lte=90"`
	TurnRightMaxYaw     float64 `yaml:"turn_right_max_yaw" split_words:"true" validate:"lt=0,gte=-90"`
	NodMinDiff          float64 `yaml:"nod_min_diff" split_words:"true" validate:"gt=0"`
	NodWindow           int     `yaml:"nod_window" split_words:"true" validate:"gte=2,lte=120"`
	SmileMinProbability float64 `yaml:"smile_min_probability" split_words:"true" validate:"gte=0,lte=1"`
}

// RecognitionConfig holds settings for the dlib landmark detector.
type RecognitionConfig struct {
	ModelPath string `yaml:"model_path" split_words:"true"`
}

// StorageConfig holds storage settings for session records.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir" split_words:"true"`
	EncryptionEnabled bool   `yaml:"encryption_enabled" split_words:"true"`
}

// NotifyConfig holds the MQTT completion publisher settings.
type NotifyConfig struct {
	Enabled  bool   `yaml:"enabled" split_words:"true"`
	Broker   string `yaml:"broker" split_words:"true" validate:"required_if=Enabled true"`
	Port     int    `yaml:"port" split_words:"true" validate:"gte=1,lte=65535"`
	ClientID string `yaml:"client_id" split_words:"true"`
	Username string `yaml:"username" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	Topic    string `yaml:"topic" split_words:"true" validate:"required_if=Enabled true"`
	QoS      byte   `yaml:"qos" envconfig:"QOS" validate:"lte=2"`
	Retain   bool   `yaml:"retain" split_words:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" split_words:"true" validate:"oneof=text nested json"`
	File       string `yaml:"file" split_words:"true"`
	MaxSizeMB  int    `yaml:"max_size_mb" split_words:"true" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" split_words:"true" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" split_words:"true" validate:"gte=0"`
	Compress   bool   `yaml:"compress" split_words:"true"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/facepass-liveness")

	seq := liveness.DefaultSequence()
	names := make([]string, len(seq))
	for i, g := range seq {
		names[i] = string(g)
	}

	th := liveness.DefaultThresholds()
	vp := liveness.DefaultViewport()

	return &Config{
		Camera: CameraConfig{
			Kind:   "replay",
			FPS:    30,
			Mirror: false,
		},
		Viewport: ViewportConfig{
			PreviewSize:      vp.PreviewSize,
			PreviewTopMargin: vp.PreviewTopMargin,
			WindowWidth:      vp.WindowWidth,
		},
		Liveness: LivenessConfig{
			Sequence: names,
			Thresholds: ThresholdsConfig{
				BlinkMaxEyeOpen:     th.BlinkMaxEyeOpen,
				TurnLeftMinYaw:      th.TurnLeftMinYaw,
				TurnRightMaxYaw:     th.TurnRightMaxYaw,
				NodMinDiff:          th.NodMinDiff,
				NodWindow:           th.NodWindow,
				SmileMinProbability: th.SmileMinProbability,
			},
			CompletionDelay: 750 * time.Millisecond,
			Timeout:         60 * time.Second,
			SaveSessions:    true,
		},
		Recognition: RecognitionConfig{
			ModelPath: filepath.Join(dataDir, "models"),
		},
		Storage: StorageConfig{
			DataDir:           dataDir,
			EncryptionEnabled: true,
		},
		Notify: NotifyConfig{
			Enabled:  false,
			Broker:   "localhost",
			Port:     1883,
			ClientID: "facepass-liveness",
			Topic:    "facepass/liveness",
			QoS:      1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       filepath.Join(dataDir, "liveness.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load loads configuration from the specified file and applies
// environment overrides on top of it.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := config.ApplyEnv(); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	// Try system config first
	if _, err := os.Stat(SystemConfigPath); err == nil {
		return Load(SystemConfigPath)
	}

	// Try user config
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfig := filepath.Join(homeDir, UserConfigPath)
		if _, err := os.Stat(userConfig); err == nil {
			return Load(userConfig)
		}
	}

	// Return defaults
	config := DefaultConfig()
	if err := config.ApplyEnv(); err != nil {
		return config, err
	}
	return config, nil
}

// ApplyEnv overrides settings from LIVENESS_* environment variables, named
// after the section and field, e.g. LIVENESS_LOG_LEVEL or
// LIVENESS_CHALLENGE_THRESHOLD_NOD_WINDOW. Unset variables leave the current
// values alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Gesture names are checked here so the error names the bad entry
	if _, err := c.Sequence(); err != nil {
		return fmt.Errorf("invalid liveness sequence: %w", err)
	}

	if c.Camera.Kind == "images" && c.Recognition.ModelPath == "" {
		return fmt.Errorf("recognition.model_path is required for the images source")
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Camera.Path = ExpandPath(c.Camera.Path)
	c.Recognition.ModelPath = ExpandPath(c.Recognition.ModelPath)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates necessary directories for storage and logging.
func (c *Config) EnsureDirectories() error {
	// Create sessions directory
	sessionsDir := filepath.Join(c.Storage.DataDir, "sessions")
	if err := os.MkdirAll(sessionsDir, 0700); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	// Create log directory
	if c.Logging.File != "" {
		logDir := filepath.Dir(c.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return nil
}

// Sequence returns the configured gesture order.
func (c *Config) Sequence() ([]liveness.Gesture, error) {
	return liveness.ParseSequence(c.Liveness.Sequence)
}

// Thresholds returns the configured gesture limits.
func (c *Config) Thresholds() liveness.Thresholds {
	t := c.Liveness.Thresholds
	return liveness.Thresholds{
		BlinkMaxEyeOpen:     t.BlinkMaxEyeOpen,
		TurnLeftMinYaw:      t.TurnLeftMinYaw,
		TurnRightMaxYaw:     t.TurnRightMaxYaw,
		NodMinDiff:          t.NodMinDiff,
		NodWindow:           t.NodWindow,
		SmileMinProbability: t.SmileMinProbability,
	}
}

// PreviewViewport returns the configured preview geometry.
func (c *Config) PreviewViewport() liveness.Viewport {
	return liveness.Viewport{
		PreviewSize:      c.Viewport.PreviewSize,
		PreviewTopMargin: c.Viewport.PreviewTopMargin,
		WindowWidth:      c.Viewport.WindowWidth,
	}
}

// ChallengeOptions builds the options for a new liveness challenge.
func (c *Config) ChallengeOptions() (liveness.Options, error) {
	seq, err := c.Sequence()
	if err != nil {
		return liveness.Options{}, err
	}
	return liveness.Options{
		Sequence:   seq,
		Thresholds: c.Thresholds(),
		Viewport:   c.PreviewViewport(),
	}, nil
}
