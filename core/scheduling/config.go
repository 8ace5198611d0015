package scheduling

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines planning parameters for one-shot scheduling runs loaded
// from a standalone file (see the `schedule` command).
type Config struct {
	AssetID           string  `json:"asset_id" yaml:"asset_id"`
	Scheduler         string  `json:"scheduler" yaml:"scheduler"`
	ResolutionMinutes int     `json:"resolution_minutes" yaml:"resolution_minutes"`
	HorizonHours      int     `json:"horizon_hours" yaml:"horizon_hours"`
	SoCAtStart        float64 `json:"soc_at_start" yaml:"soc_at_start"`
}

// Resolution returns the slot duration.
func (c Config) Resolution() time.Duration {
	return time.Duration(c.ResolutionMinutes) * time.Minute
}

// Horizon returns the planning window length.
func (c Config) Horizon() time.Duration {
	return time.Duration(c.HorizonHours) * time.Hour
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.AssetID == "" {
		return fmt.Errorf("asset_id is required")
	}
	if c.ResolutionMinutes <= 0 {
		return fmt.Errorf("resolution_minutes must be positive")
	}
	if c.HorizonHours <= 0 {
		return fmt.Errorf("horizon_hours must be positive")
	}
	return nil
}

// LoadConfig loads Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var cfg Config
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", ext)
	}
	return cfg, err
}

// DecodeConfig reads from r to decode a Config.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	return cfg, nil
}
