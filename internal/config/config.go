// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every setting of the tryon service.
type Config struct {
	HTTPAddr string `env:"TRYON_HTTP_ADDR" envDefault:"127.0.0.1:8765" validate:"required,hostname_port"`
	DataDir  string `env:"TRYON_DATA_DIR"`

	CameraID     int    `env:"TRYON_CAMERA_ID" envDefault:"0" validate:"gte=0"`
	CameraWidth  int    `env:"TRYON_CAMERA_WIDTH" envDefault:"640" validate:"gte=160,lte=3840"`
	CameraHeight int    `env:"TRYON_CAMERA_HEIGHT" envDefault:"480" validate:"gte=120,lte=2160"`
	Detector     string `env:"TRYON_DETECTOR" envDefault:"mediapipe" validate:"oneof=mediapipe mock"`

	DetectionInterval    time.Duration `env:"TRYON_DETECTION_INTERVAL" envDefault:"50ms" validate:"gte=1ms"`
	LostAfter            int           `env:"TRYON_LOST_AFTER" envDefault:"10" validate:"gte=1"`
	HistorySize          int           `env:"TRYON_HISTORY_SIZE" envDefault:"10" validate:"gte=1,lte=120"`
	BaseWeight           float64       `env:"TRYON_BASE_WEIGHT" envDefault:"0.3" validate:"gt=0"`
	MaxConsecutiveErrors int           `env:"TRYON_MAX_CONSECUTIVE_ERRORS" envDefault:"30" validate:"gte=1"`

	Jewelry string `env:"TRYON_JEWELRY" envDefault:"ring" validate:"oneof=ring bracelet necklace"`
	Finger  string `env:"TRYON_FINGER" envDefault:"ring" validate:"oneof=thumb index middle ring pinky"`

	RedisAddr    string `env:"TRYON_REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisChannel string `env:"TRYON_REDIS_CHANNEL" envDefault:"tryon:events" validate:"required"`

	MDNS bool `env:"TRYON_MDNS" envDefault:"false"`
	Tray bool `env:"TRYON_TRAY" envDefault:"true"`

	LogLevel string `env:"TRYON_LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn warning error"`
	LogFile  string `env:"TRYON_LOG_FILE"`
}

// Load reads an optional .env file, parses the environment and validates
// the result. A missing .env file is not an error.
func Load(dotenv ...string) (*Config, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DBPath returns the path of the session journal database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "tryon.db")
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tryon"), nil
}
