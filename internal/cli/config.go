// Config loading for the strata CLI.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/strata/internal/paths"
	"github.com/mesh-intelligence/strata/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyName     = "name"
	cfgKeyProvider = "provider"
	cfgKeyBackend  = "backend"
	cfgKeyDataDir  = "data_dir"

	defaultName     = "strata"
	defaultProvider = "auto"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Strata CLI configuration

# Database name; becomes part of on-disk file names.
name: strata

# Backend family: auto, relational, or keyvalue.
provider: auto

# Pin a concrete backend instead of selecting one (optional).
# backend:

# Data directory (optional; overridable by --data-dir flag)
# data_dir:
`

// loadConfig reads config.yaml from the resolved config directory. The
// directory and a default config.yaml are created on first run; a missing
// config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyName, defaultName)
	v.SetDefault(cfgKeyProvider, defaultProvider)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does
// not exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// buildConfig merges flags over config.yaml into an open configuration.
// Precedence per field: flag > config.yaml > default.
func buildConfig() (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, err
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return types.Config{}, err
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, err
	}

	cfg := types.Config{
		Name:     v.GetString(cfgKeyName),
		Provider: types.Provider(v.GetString(cfgKeyProvider)),
		Backend:  types.BackendID(v.GetString(cfgKeyBackend)),
		DataDir:  dataDir,
	}
	if flags.name != "" {
		cfg.Name = flags.name
	}
	if flags.provider != "" {
		cfg.Provider = types.Provider(flags.provider)
	}
	if flags.backend != "" {
		cfg.Backend = types.BackendID(flags.backend)
	}
	return cfg, nil
}
