// Package config contains the configuration of the node.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/attestate/leafsync/filesystem"
	"github.com/attestate/leafsync/p2p"
	"github.com/attestate/leafsync/p2p/pubsub"
	"github.com/attestate/leafsync/registry"
	"github.com/attestate/leafsync/store"
	"github.com/attestate/leafsync/triesync"
)

const (
	defaultDataDirName = "leafsync"
	// LockFile is the name of the file guarding the data directory.
	LockFile = "leafsync.lock"
)

var defaultHomeDir = filesystem.GetUserHomeDirectory()

// Config defines the top level configuration of the node.
type Config struct {
	BaseConfig `mapstructure:"main"`
	Preset     string          `mapstructure:"preset"`
	LOGGING    LoggerConfig    `mapstructure:"logging"`
	P2P        p2p.Config      `mapstructure:"p2p"`
	PubSub     pubsub.Config   `mapstructure:"pubsub"`
	Sync       triesync.Config `mapstructure:"sync"`
	Registry   registry.Config `mapstructure:"registry"`
	Store      store.Config    `mapstructure:"store"`
}

// DataDir returns the absolute path to use for the node's data. This is the tilde-expanded path given in the config
// file.
func (cfg *Config) DataDir() string {
	return filesystem.GetCanonicalPath(cfg.DataDirParent)
}

// BaseConfig defines the main config options of the node.
type BaseConfig struct {
	DataDirParent string `mapstructure:"data-dir"`
	// RecordKey is the ed25519 key records are signed with. Relative to the
	// data directory unless absolute.
	RecordKey string `mapstructure:"record-key"`

	CollectMetrics bool `mapstructure:"metrics"`
	MetricsPort    int  `mapstructure:"metrics-port"`

	DatabaseCache   int `mapstructure:"db-cache"`
	DatabaseHandles int `mapstructure:"db-handles"`
}

// RecordKeyPath resolves the path of the record signing key.
func (cfg *Config) RecordKeyPath() string {
	if filepath.IsAbs(cfg.RecordKey) {
		return cfg.RecordKey
	}
	return filepath.Join(cfg.DataDir(), cfg.RecordKey)
}

// DefaultConfig returns the default configuration of the node.
func DefaultConfig() Config {
	return Config{
		BaseConfig: defaultBaseConfig(),
		LOGGING:    DefaultLoggingConfig(),
		P2P:        p2p.DefaultConfig(),
		PubSub:     pubsub.DefaultConfig(),
		Sync:       triesync.DefaultConfig(),
		Registry:   registry.DefaultConfig(),
		Store:      store.DefaultConfig(),
	}
}

// DefaultTestConfig returns the default config for tests.
func DefaultTestConfig() Config {
	conf := DefaultConfig()
	conf.BaseConfig = defaultTestConfig()
	conf.P2P.Listen = "/ip4/127.0.0.1/tcp/0"
	conf.P2P.MDNS = false
	return conf
}

func defaultBaseConfig() BaseConfig {
	return BaseConfig{
		DataDirParent:   filepath.Join(defaultHomeDir, defaultDataDirName),
		RecordKey:       "record.key",
		MetricsPort:     1010,
		DatabaseCache:   16,
		DatabaseHandles: 16,
	}
}

func defaultTestConfig() BaseConfig {
	conf := defaultBaseConfig()
	conf.MetricsPort += 10000
	return conf
}

// LoadConfig reads the config file at path into vip. An empty path is not an error.
func LoadConfig(path string, vip *viper.Viper) error {
	if path == "" {
		return nil
	}
	vip.SetConfigFile(path)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Decode writes the values held by vip on top of cfg. Keys that do not
// match a field are an error.
func Decode(vip *viper.Viper, cfg *Config) error {
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(hook),
		withZeroFields(),
		withIgnoreUntagged(),
		withErrorUnused(),
	}
	if err := vip.Unmarshal(cfg, opts...); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func withZeroFields() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ZeroFields = true
	}
}

func withIgnoreUntagged() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.IgnoreUntaggedFields = true
	}
}

func withErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}
