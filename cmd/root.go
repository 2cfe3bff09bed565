package cmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/attestate/leafsync/config"
	"github.com/attestate/leafsync/config/presets"
)

// AddFlags adds the node flags to flagSet. Values are written into cfg. The
// returned pointer holds the path of the config file once flags are parsed.
func AddFlags(flagSet *pflag.FlagSet, cfg *config.Config) (configPath *string) {
	configPath = flagSet.StringP("config", "c", "", "load configuration from file")
	flagSet.StringVarP(&cfg.Preset, "preset", "p", cfg.Preset,
		fmt.Sprintf("preset overwrites default values of the config. options %+s", presets.Options()))

	/** ======================== BaseConfig Flags ========================== **/
	flagSet.StringVarP(&cfg.DataDirParent, "data-dir", "d",
		cfg.DataDirParent, "directory for the records, the identity and the lock")
	flagSet.StringVar(&cfg.RecordKey, "record-key",
		cfg.RecordKey, "ed25519 key records are signed with, relative to the data directory")
	flagSet.BoolVar(&cfg.CollectMetrics, "metrics",
		cfg.CollectMetrics, "collect node metrics")
	flagSet.IntVar(&cfg.MetricsPort, "metrics-port",
		cfg.MetricsPort, "metric server port")

	/** ======================== Logging Flags ========================== **/
	flagSet.StringVar(&cfg.LOGGING.Level, "log-level",
		cfg.LOGGING.Level, "log level of modules without their own level")
	flagSet.StringVar(&cfg.LOGGING.Encoder, "log-encoder",
		cfg.LOGGING.Encoder, "log as plain text (console) or as json")

	/** ======================== P2P Flags ========================== **/
	flagSet.StringVar(&cfg.P2P.Listen, "listen",
		cfg.P2P.Listen, "address for listening")
	flagSet.StringSliceVar(&cfg.P2P.Bootnodes, "bootnode",
		cfg.P2P.Bootnodes, "address of a peer to connect on startup. can be passed multiple times")
	flagSet.StringVar(&cfg.P2P.NetworkID, "network-id",
		cfg.P2P.NetworkID, "nodes only connect to nodes of the same network")
	flagSet.BoolVar(&cfg.P2P.MDNS, "mdns",
		cfg.P2P.MDNS, "discover peers on the local network")
	flagSet.IntVar(&cfg.P2P.LowPeers, "low-peers",
		cfg.P2P.LowPeers, "low watermark for the number of connections")
	flagSet.IntVar(&cfg.P2P.HighPeers, "high-peers",
		cfg.P2P.HighPeers, "high watermark for the number of connections")

	/** ======================== Sync Flags ========================== **/
	flagSet.DurationVar(&cfg.Sync.AdvertiseInterval, "advertise-interval",
		cfg.Sync.AdvertiseInterval, "pause between two root advertisements")
	flagSet.DurationVar(&cfg.Sync.SessionTimeout, "session-timeout",
		cfg.Sync.SessionTimeout, "release the lock of a session without progress after this long. 0 disables")
	flagSet.DurationVar(&cfg.Sync.RequestTimeout, "request-timeout",
		cfg.Sync.RequestTimeout, "timeout of a single sync request")

	/** ======================== Registry Flags ========================== **/
	flagSet.StringSliceVar(&cfg.Registry.Identities, "allow",
		cfg.Registry.Identities, "hex encoded key allowed to author records. can be passed multiple times")
	flagSet.StringVar(&cfg.Registry.File, "allowlist-file",
		cfg.Registry.File, "file with one hex encoded key per line, read on every use")

	/** ======================== Store Flags ========================== **/
	flagSet.DurationVar(&cfg.Store.MaxDrift, "max-drift",
		cfg.Store.MaxDrift, "maximal distance between the timestamp of a posted record and the local clock")
	return configPath
}
