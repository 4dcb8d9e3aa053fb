// Package config loads the recognizer's file configuration, falling back to
// defaults for anything missing.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const DefaultConfigPath = "alpr.json"

// Config is the persisted service configuration.
type Config struct {
	ModelsDir           string  `json:"models_dir"`
	OnnxRuntimeLibPath  string  `json:"onnxruntime_lib_path"`
	DetectorModel       string  `json:"detector_model"`
	OCRModel            string  `json:"ocr_model"`
	ConfidenceThreshold float32 `json:"confidence_threshold"`
	IoUThreshold        float32 `json:"iou_threshold"`
}

// Default returns the baseline configuration. The onnxruntime library path
// is left empty here; the service fills in the platform default.
func Default() Config {
	return Config{
		ModelsDir:           "models",
		DetectorModel:       "plate-det-384",
		OCRModel:            "plate-ocr-ctc",
		ConfidenceThreshold: 0.3,
		IoUThreshold:        0.5,
	}
}

// Load reads the config file at path, layering it over the defaults. A
// missing file yields the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
