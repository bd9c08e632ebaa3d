package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPresetHours = 16
	configFileName     = "config.yaml"
)

type Config struct {
	DataDir       string
	DBPath        string
	ConfigPath    string
	Person        string
	Timezone      string
	Location      *time.Location
	PresetHours   float64
	LogLevel      string
	ReconcileOpen bool
}

type fileConfig struct {
	Person      string  `yaml:"person"`
	Timezone    string  `yaml:"timezone"`
	PresetHours float64 `yaml:"preset_hours"`
	LogLevel    string  `yaml:"log_level"`
	Import      struct {
		ReconcileOpen *bool `yaml:"reconcile_open"`
	} `yaml:"import"`
}

func New(dataDir string) (Config, error) {
	if strings.TrimSpace(dataDir) == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:       dataDir,
		DBPath:        filepath.Join(dataDir, "macrotrack.db"),
		ConfigPath:    filepath.Join(dataDir, configFileName),
		Location:      time.Local,
		PresetHours:   DefaultPresetHours,
		LogLevel:      "info",
		ReconcileOpen: true,
	}, nil
}

// Load builds the defaults for dataDir and overlays the YAML file at path
// (or <dataDir>/config.yaml when path is empty). A missing file is not an error.
func Load(dataDir, path string) (Config, error) {
	cfg, err := New(dataDir)
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(path) != "" {
		cfg.ConfigPath = path
	}

	content, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return cfg, nil
	}

	raw := fileConfig{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.apply(raw); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(raw fileConfig) error {
	if person := strings.TrimSpace(raw.Person); person != "" {
		c.Person = person
	}
	if raw.PresetHours < 0 {
		return fmt.Errorf("preset_hours must be non-negative")
	}
	if raw.PresetHours > 0 {
		c.PresetHours = raw.PresetHours
	}
	if level := strings.ToLower(strings.TrimSpace(raw.LogLevel)); level != "" {
		c.LogLevel = level
	}
	if raw.Import.ReconcileOpen != nil {
		c.ReconcileOpen = *raw.Import.ReconcileOpen
	}
	return c.SetTimezone(raw.Timezone)
}

// SetTimezone resolves an IANA zone name; an empty name keeps the current location.
func (c *Config) SetTimezone(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", name, err)
	}
	c.Timezone = name
	c.Location = loc
	return nil
}
