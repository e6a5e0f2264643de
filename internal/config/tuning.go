package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// TuningConfig is the root configuration for pipeline tuning parameters.
// All fields are pointers so a partial JSON file only overrides the values
// it names; the Get* accessors supply defaults for everything else.
type TuningConfig struct {
	// Motion detector params
	DownscaleFactor          *float64 `json:"downscale_factor,omitempty"`
	DeltaThreshold           *float64 `json:"delta_threshold,omitempty"`
	BackgroundUpdateFraction *float64 `json:"bg_update_fraction,omitempty"`

	// Pipeline params
	SkipEmptyMinutes  *bool   `json:"skip_empty_minutes,omitempty"`
	MaxSegmentsPerRun *int    `json:"max_segments_per_run,omitempty"`
	Workers           *int    `json:"workers,omitempty"`
	RetryAttempts     *int    `json:"retry_attempts,omitempty"`
	RetryBackoff      *string `json:"retry_backoff,omitempty"` // duration string like "2s"

	// Rendering params
	JPEGQuality *int `json:"jpeg_quality,omitempty"`

	// Retention params
	RetentionDays *int `json:"retention_days,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil,
// i.e. pure defaults.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and be under 1MB. Fields omitted from the JSON retain
// their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.DownscaleFactor != nil {
		if *c.DownscaleFactor <= 0 || *c.DownscaleFactor > 1 {
			return fmt.Errorf("downscale_factor must be in (0, 1], got %f", *c.DownscaleFactor)
		}
	}

	if c.DeltaThreshold != nil {
		if *c.DeltaThreshold < 0 || *c.DeltaThreshold > 255 {
			return fmt.Errorf("delta_threshold must be between 0 and 255, got %f", *c.DeltaThreshold)
		}
	}

	if c.BackgroundUpdateFraction != nil {
		if *c.BackgroundUpdateFraction < 0 || *c.BackgroundUpdateFraction > 1 {
			return fmt.Errorf("bg_update_fraction must be between 0 and 1, got %f", *c.BackgroundUpdateFraction)
		}
	}

	if c.MaxSegmentsPerRun != nil && *c.MaxSegmentsPerRun < 1 {
		return fmt.Errorf("max_segments_per_run must be positive, got %d", *c.MaxSegmentsPerRun)
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}

	if c.RetryAttempts != nil && *c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be non-negative, got %d", *c.RetryAttempts)
	}

	if c.RetryBackoff != nil && *c.RetryBackoff != "" {
		if _, err := time.ParseDuration(*c.RetryBackoff); err != nil {
			return fmt.Errorf("invalid retry_backoff '%s': %w", *c.RetryBackoff, err)
		}
	}

	if c.JPEGQuality != nil {
		if *c.JPEGQuality < 1 || *c.JPEGQuality > 100 {
			return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", *c.JPEGQuality)
		}
	}

	if c.RetentionDays != nil && *c.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be positive, got %d", *c.RetentionDays)
	}

	return nil
}

// GetDownscaleFactor returns the downscale_factor value or the default.
func (c *TuningConfig) GetDownscaleFactor() float64 {
	if c.DownscaleFactor == nil {
		return 0.25
	}
	return *c.DownscaleFactor
}

// GetDeltaThreshold returns the delta_threshold value or the default.
func (c *TuningConfig) GetDeltaThreshold() float64 {
	if c.DeltaThreshold == nil {
		return 16
	}
	return *c.DeltaThreshold
}

// GetBackgroundUpdateFraction returns the bg_update_fraction value or the default.
func (c *TuningConfig) GetBackgroundUpdateFraction() float64 {
	if c.BackgroundUpdateFraction == nil {
		return 0.05
	}
	return *c.BackgroundUpdateFraction
}

// GetSkipEmptyMinutes returns the skip_empty_minutes value or the default.
func (c *TuningConfig) GetSkipEmptyMinutes() bool {
	if c.SkipEmptyMinutes == nil {
		return true // default: minutes with no motion are not persisted
	}
	return *c.SkipEmptyMinutes
}

// GetMaxSegmentsPerRun returns the max_segments_per_run value or the default.
func (c *TuningConfig) GetMaxSegmentsPerRun() int {
	if c.MaxSegmentsPerRun == nil {
		return 10
	}
	return *c.MaxSegmentsPerRun
}

// GetWorkers returns the workers value or the default (one per CPU, capped
// at 4 since decoding is subprocess-bound).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		n := runtime.NumCPU()
		if n > 4 {
			n = 4
		}
		return n
	}
	return *c.Workers
}

// GetRetryAttempts returns the retry_attempts value or the default.
func (c *TuningConfig) GetRetryAttempts() int {
	if c.RetryAttempts == nil {
		return 3
	}
	return *c.RetryAttempts
}

// GetRetryBackoff parses and returns the RetryBackoff as a time.Duration.
func (c *TuningConfig) GetRetryBackoff() time.Duration {
	if c.RetryBackoff == nil || *c.RetryBackoff == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.RetryBackoff)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetJPEGQuality returns the jpeg_quality value or the default.
func (c *TuningConfig) GetJPEGQuality() int {
	if c.JPEGQuality == nil {
		return 90
	}
	return *c.JPEGQuality
}

// GetRetentionDays returns the retention_days value or the default.
func (c *TuningConfig) GetRetentionDays() int {
	if c.RetentionDays == nil {
		return 90
	}
	return *c.RetentionDays
}
