package lib

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

const (
	// MaxNumObjects caps both the top-level contours accepted in one mask and
	// the detections published for one frame.
	MaxNumObjects = 50
	// MinObjectArea is the smallest contour area that is not treated as noise.
	MinObjectArea = 15 * 15
)

// CalibrationConfig holds settings for deriving color profiles
type CalibrationConfig struct {
	// SkipFirstRowCol starts the min/max scan at row 1 and column 1, which
	// reproduces the range produced by the historical Android tracker.
	SkipFirstRowCol bool `json:"skip_first_row_col"`
}

// TrackerConfig holds configuration for the detection pipeline
type TrackerConfig struct {
	// Blob selection
	MaxObjects    int     `json:"max_objects"`     // Contour and detection cap (noise guard)
	MinObjectArea float64 `json:"min_object_area"` // Areas at or below this are noise
	MaxAreaRatio  float64 `json:"max_area_ratio"`  // Areas at or above frameArea/MaxAreaRatio are a bad filter

	// Morphology
	ErodeKernelSize  int `json:"erode_kernel_size"`
	ErodeIterations  int `json:"erode_iterations"`
	DilateKernelSize int `json:"dilate_kernel_size"`
	DilateIterations int `json:"dilate_iterations"`

	// Workers bounds how many profiles are processed concurrently in one frame
	Workers int `json:"workers"`

	// CenterWidth is the center band used for zone reports, as a fraction of
	// the frame width (e.g. 12 means 1/12 of the width)
	CenterWidth int `json:"center_width"`

	Calibration CalibrationConfig `json:"calibration"`
}

// DefaultTrackerConfig returns the settings of the reference tracker
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxObjects:       MaxNumObjects,
		MinObjectArea:    MinObjectArea,
		MaxAreaRatio:     1.5,
		ErodeKernelSize:  3, // Small kernel strips specks
		ErodeIterations:  2,
		DilateKernelSize: 8, // Larger kernel keeps surviving blobs coherent
		DilateIterations: 2,
		Workers:          runtime.GOMAXPROCS(0),
		CenterWidth:      12,
	}
}

// Validate checks that every setting is usable by the pipeline.
func (c TrackerConfig) Validate() error {
	switch {
	case c.MaxObjects < 1:
		return errors.Wrapf(ErrInvalidConfig, "max_objects must be positive, got %d", c.MaxObjects)
	case c.MinObjectArea < 0:
		return errors.Wrapf(ErrInvalidConfig, "min_object_area must not be negative, got %v", c.MinObjectArea)
	case c.MaxAreaRatio < 1:
		return errors.Wrapf(ErrInvalidConfig, "max_area_ratio must be at least 1, got %v", c.MaxAreaRatio)
	case c.ErodeKernelSize < 1 || c.DilateKernelSize < 1:
		return errors.Wrapf(ErrInvalidConfig, "kernel sizes must be positive, got %d and %d", c.ErodeKernelSize, c.DilateKernelSize)
	case c.ErodeIterations < 0 || c.DilateIterations < 0:
		return errors.Wrapf(ErrInvalidConfig, "iterations must not be negative, got %d and %d", c.ErodeIterations, c.DilateIterations)
	case c.Workers < 1:
		return errors.Wrapf(ErrInvalidConfig, "workers must be positive, got %d", c.Workers)
	case c.CenterWidth < 1:
		return errors.Wrapf(ErrInvalidConfig, "center_width must be positive, got %d", c.CenterWidth)
	}
	return nil
}

// LoadTrackerConfig reads a JSON config file. Fields omitted from the file
// keep their default values.
func LoadTrackerConfig(path string) (TrackerConfig, error) {
	cfg := DefaultTrackerConfig()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, errors.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to stat config file")
	}
	const maxFileSize = 1 << 20
	if info.Size() > maxFileSize {
		return cfg, errors.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config file")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to parse config JSON")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
