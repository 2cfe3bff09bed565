package config

import (
	"go.uber.org/zap/zapcore"

	"github.com/attestate/leafsync/log"
)

// LogEncoder defines a log encoder kind.
type LogEncoder = string

const (
	defaultLoggingLevel = zapcore.InfoLevel
	// ConsoleLogEncoder represents logging with plain text.
	ConsoleLogEncoder LogEncoder = log.ConsoleEncoder
	// JSONLogEncoder represents logging with JSON.
	JSONLogEncoder LogEncoder = log.JSONEncoder
)

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder             LogEncoder `mapstructure:"log-encoder"`
	Level               string     `mapstructure:"log-level"`
	Libp2pLoggerLevel   string     `mapstructure:"libp2p"`
	P2PLoggerLevel      string     `mapstructure:"p2p"`
	PubSubLoggerLevel   string     `mapstructure:"pubsub"`
	ServerLoggerLevel   string     `mapstructure:"server"`
	SyncLoggerLevel     string     `mapstructure:"sync"`
	StoreLoggerLevel    string     `mapstructure:"store"`
	RegistryLoggerLevel string     `mapstructure:"registry"`
	DatabaseLoggerLevel string     `mapstructure:"database"`
	MetricsLoggerLevel  string     `mapstructure:"metrics"`
}

// DefaultLoggingConfig returns the default logging config.
func DefaultLoggingConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:           ConsoleLogEncoder,
		Level:             defaultLoggingLevel.String(),
		Libp2pLoggerLevel: zapcore.FatalLevel.String(),
	}
}
