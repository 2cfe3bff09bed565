package presets

import (
	"time"

	"github.com/attestate/leafsync/config"
)

func init() {
	register("fastnet", fastnet())
}

// fastnet finds peers on the local network and syncs aggressively.
func fastnet() config.Config {
	conf := config.DefaultConfig()
	conf.Preset = "fastnet"

	conf.P2P.MDNS = true
	conf.P2P.BootstrapInterval = 5 * time.Second
	conf.P2P.LowPeers = 5
	conf.P2P.HighPeers = 20

	conf.Sync.AdvertiseInterval = 2 * time.Second
	conf.Sync.SessionTimeout = 20 * time.Second
	conf.Sync.RequestTimeout = 5 * time.Second

	conf.LOGGING.SyncLoggerLevel = "debug"
	return conf
}
