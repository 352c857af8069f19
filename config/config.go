// Package config contains the nodeprops node configuration definitions.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/spacemeshos/go-nodeprops/exchange"
	"github.com/spacemeshos/go-nodeprops/metrics"
	"github.com/spacemeshos/go-nodeprops/nodeprops"
	"github.com/spacemeshos/go-nodeprops/p2p"
)

const defaultDataDirName = "nodeprops"

var defaultDataDir = filepath.Join(homeDir(), defaultDataDirName)

// Config defines the top level configuration for a nodeprops node.
type Config struct {
	BaseConfig `mapstructure:"main"`
	NodeProps  nodeprops.Config `mapstructure:"nodeprops"`
	P2P        p2p.Config       `mapstructure:"p2p"`
	Exchange   exchange.Config  `mapstructure:"exchange"`
	LOGGING    LoggerConfig     `mapstructure:"logging"`
}

// BaseConfig defines the default configuration options for the node.
type BaseConfig struct {
	DataDirParent string `mapstructure:"data-folder"`
	FileLock      string `mapstructure:"filelock"`

	CollectMetrics bool   `mapstructure:"metrics"`
	MetricsAddr    string `mapstructure:"metrics-addr"`

	MetricsPush metrics.PushConfig `mapstructure:",squash"`

	// DisplayName is published under nodeprops.DisplayNameKey on start.
	DisplayName string            `mapstructure:"name"`
	// Properties are published on start. Keys are lowercased when read from a file.
	Properties  map[string]string `mapstructure:"properties"`
}

// DataDir returns the absolute path to use for the node's data.
func (cfg *Config) DataDir() string {
	return canonicalPath(cfg.DataDirParent)
}

// DefaultConfig returns the default configuration for a node.
func DefaultConfig() Config {
	return Config{
		BaseConfig: defaultBaseConfig(),
		NodeProps:  nodeprops.DefaultConfig(),
		P2P:        p2p.DefaultConfig(),
		Exchange:   exchange.DefaultConfig(),
		LOGGING:    DefaultLoggingConfig(),
	}
}

func defaultBaseConfig() BaseConfig {
	return BaseConfig{
		DataDirParent: defaultDataDir,
		FileLock:      filepath.Join(os.TempDir(), "nodeprops.lock"),
		MetricsAddr:   "127.0.0.1:1010",
		MetricsPush: metrics.PushConfig{
			Period: time.Minute,
		},
	}
}

// LoadConfig reads the config file into vip. An empty location is not an error,
// the node then runs with defaults and flags.
func LoadConfig(fileLocation string, vip *viper.Viper) error {
	if fileLocation == "" {
		return nil
	}
	vip.SetConfigFile(fileLocation)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", fileLocation, err)
	}
	return nil
}

// Load reads the config file at path and decodes it on top of cfg. Keys that are
// not present in the file keep the values from cfg.
func Load(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	v := viper.New()
	if err := LoadConfig(path, v); err != nil {
		return err
	}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(hook),
		WithZeroFields(),
		WithIgnoreUntagged(),
		WithErrorUnused(),
	}
	if err := v.Unmarshal(cfg, opts...); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func WithZeroFields() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ZeroFields = true
	}
}

func WithIgnoreUntagged() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.IgnoreUntaggedFields = true
	}
}

func WithErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// canonicalPath expands a leading ~ and makes the path absolute.
func canonicalPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		path = filepath.Join(homeDir(), path[1:])
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
