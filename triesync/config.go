package triesync

import (
	"time"

	"github.com/attestate/leafsync/codec"
)

const (
	// LevelsProtocol compares the nodes of one level.
	LevelsProtocol = "/levels/1.0.0"
	// LeavesProtocol pushes leaves the remote is missing.
	LeavesProtocol = "/leaves/1.0.0"
	// RootsTopic is the gossip topic of root advertisements.
	RootsTopic = "roots"
)

// Config for the sync engine.
type Config struct {
	// AdvertiseInterval is the pause between two root advertisements.
	AdvertiseInterval time.Duration `mapstructure:"advertise-interval"`
	// SessionTimeout releases the peer lock of a session that made no
	// progress for this long. Zero keeps the lock until it is released.
	SessionTimeout time.Duration `mapstructure:"session-timeout"`
	// RequestTimeout bounds a single request of a session.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	// MaxFrameSize bounds the size of a single message.
	MaxFrameSize int `mapstructure:"max-frame-size"`
	// RootCacheSize is the number of peers whose last advertised root is
	// remembered.
	RootCacheSize int `mapstructure:"root-cache-size"`
	// QueueSize is the number of discovered peers waiting for a session.
	QueueSize int `mapstructure:"queue-size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		AdvertiseInterval: 10 * time.Second,
		SessionTimeout:    2 * time.Minute,
		RequestTimeout:    30 * time.Second,
		MaxFrameSize:      codec.DefaultFrameLimit,
		RootCacheSize:     1024,
		QueueSize:         16,
	}
}
