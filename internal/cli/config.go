// Config loading for the habitgrid CLI.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/habitgrid/internal/paths"
	"github.com/mesh-intelligence/habitgrid/internal/tracker"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "HABITGRID"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyWindowSize    = "window_size"
	cfgKeySyncStrategy  = "sync_strategy"
	cfgKeyBatchSize     = "batch_size"
	cfgKeyBatchInterval = "batch_interval"
)

// configFile is the structure written to config.yaml.
type configFile struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	DataDir string `yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	// Number of trailing days to display, including today.
	WindowSize    int    `yaml:"window_size" mapstructure:"window_size"`
	SyncStrategy  string `yaml:"sync_strategy" mapstructure:"sync_strategy"`
	BatchSize     int    `yaml:"batch_size,omitempty" mapstructure:"batch_size"`
	BatchInterval int    `yaml:"batch_interval,omitempty" mapstructure:"batch_interval"`
}

func defaultConfig() configFile {
	return configFile{
		Backend:      types.BackendSQLite,
		WindowSize:   tracker.DefaultWindowSize,
		SyncStrategy: types.SyncImmediate,
	}
}

const configHeader = "# habitgrid configuration\n# Environment variables prefixed with HABITGRID_ override these keys.\n\n"

// loadConfig reads config.yaml from configDir using Viper. On first run it
// creates the directory and a config.yaml holding the defaults.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeConfigFile(path, defaultConfig()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}

	defaults := defaultConfig()
	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaults.Backend)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyWindowSize, defaults.WindowSize)
	v.SetDefault(cfgKeySyncStrategy, defaults.SyncStrategy)
	v.SetDefault(cfgKeyBatchSize, types.DefaultBatchSize)
	v.SetDefault(cfgKeyBatchInterval, types.DefaultBatchInterval)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigFile marshals cfg with yaml.v3 and replaces path.
func writeConfigFile(path string, cfg configFile) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), data...), 0o644)
}

// effectiveConfig returns the configuration after defaults, config.yaml,
// environment, and flags have been applied.
func (a *app) effectiveConfig() (configFile, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.cfg.GetString(cfgKeyDataDir), a.configDir)
	if err != nil {
		return configFile{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := configFile{
		Backend:       a.cfg.GetString(cfgKeyBackend),
		DataDir:       dataDir,
		WindowSize:    a.cfg.GetInt(cfgKeyWindowSize),
		SyncStrategy:  a.cfg.GetString(cfgKeySyncStrategy),
		BatchSize:     a.cfg.GetInt(cfgKeyBatchSize),
		BatchInterval: a.cfg.GetInt(cfgKeyBatchInterval),
	}
	if cfg.WindowSize <= 0 {
		return configFile{}, &types.ValidationError{Field: cfgKeyWindowSize, Reason: "must be a positive number of days"}
	}
	return cfg, nil
}

// journalConfig converts the effective configuration into a types.Config.
func (c configFile) journalConfig() types.Config {
	return types.Config{
		Backend: c.Backend,
		DataDir: c.DataDir,
		SQLiteConfig: &types.SQLiteConfig{
			SyncStrategy:  c.SyncStrategy,
			BatchSize:     c.BatchSize,
			BatchInterval: c.BatchInterval,
		},
	}
}
