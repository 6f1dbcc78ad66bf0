package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ByteMirror/overseer/log"
	"github.com/ByteMirror/overseer/supervisor"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = "config.json"

// ReportFileName is the default status report location inside the config dir.
const ReportFileName = "status.json"

// configFileNames are probed in order by LoadConfig.
var configFileNames = []string{ConfigFileName, "config.toml", "config.yaml", "config.yml"}

// GetConfigDir returns the path to the application's configuration directory.
// OVERSEER_DIR overrides the default of ~/.overseer.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("OVERSEER_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".overseer"), nil
}

// Config represents the application configuration
type Config struct {
	// Limits are the resource limits of a supervised session.
	Limits supervisor.Limits `json:"limits" toml:"limits" yaml:"limits"`
	// ReportPath is where status reports are written. Empty means status.json
	// in the config directory.
	ReportPath string `json:"report_path,omitempty" toml:"report_path,omitempty" yaml:"report_path,omitempty"`
	// ReportIntervalSeconds is how often a running session rewrites its report.
	ReportIntervalSeconds float64 `json:"report_interval_seconds" toml:"report_interval_seconds" yaml:"report_interval_seconds"`
	// Shell runs the command strings given to `overseer run` and spawn_subagent.
	Shell string `json:"shell" toml:"shell" yaml:"shell"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Limits:                supervisor.DefaultLimits(),
		ReportIntervalSeconds: 5,
		Shell:                 "sh",
	}
}

// Validate checks the limits and the reporting settings.
func (c *Config) Validate() error {
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if ns := c.ReportIntervalSeconds * float64(time.Second); !(ns >= 1 && ns < float64(math.MaxInt64)) {
		return fmt.Errorf("report_interval_seconds must be a positive duration of at least 1ns, got %v", c.ReportIntervalSeconds)
	}
	if c.Shell == "" {
		return errors.New("shell must not be empty")
	}
	return nil
}

// ReportInterval returns ReportIntervalSeconds as a duration.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalSeconds * float64(time.Second))
}

// ReportFile returns the resolved status report path.
func (c *Config) ReportFile() (string, error) {
	if c.ReportPath != "" {
		return c.ReportPath, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ReportFileName), nil
}

// LoadConfig loads the configuration from disk. If it cannot be done, we return the default configuration.
func LoadConfig() *Config {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultConfig()
	}

	for _, name := range configFileNames {
		configPath := filepath.Join(configDir, name)
		if _, err := os.Stat(configPath); err != nil {
			if !os.IsNotExist(err) {
				log.WarningLog.Printf("failed to stat config file %s: %v", configPath, err)
			}
			continue
		}

		config, err := LoadConfigFrom(configPath)
		if err != nil {
			log.ErrorLog.Printf("failed to load config file: %v", err)
			return DefaultConfig()
		}
		return config
	}

	// Create and save default config if no file exists
	defaultCfg := DefaultConfig()
	if saveErr := saveConfig(defaultCfg); saveErr != nil {
		log.WarningLog.Printf("failed to save default config: %v", saveErr)
	}
	return defaultCfg
}

// LoadConfigFrom reads and validates a config file. The format follows the
// extension: .toml, .yaml/.yml, anything else is JSON. Fields missing from
// the file keep their default values.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.Decode(string(data), config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// saveConfig saves the configuration to disk
func saveConfig(config *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return AtomicWriteFile(configPath, data, 0644)
}

// SaveConfig exports the saveConfig function for use by other packages
func SaveConfig(config *Config) error {
	return saveConfig(config)
}
