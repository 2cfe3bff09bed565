package presets

import (
	"os"
	"path/filepath"
	"time"

	"github.com/attestate/leafsync/config"
)

func init() {
	register("standalone", standalone())
}

// standalone runs a single node without peers, for trying out posting.
func standalone() config.Config {
	conf := config.DefaultConfig()
	conf.Preset = "standalone"
	conf.DataDirParent = filepath.Join(os.TempDir(), "leafsync")

	conf.P2P.Listen = "/ip4/127.0.0.1/tcp/0"
	conf.P2P.MDNS = false
	conf.P2P.Bootnodes = nil
	conf.P2P.LowPeers = 0
	conf.P2P.HighPeers = 1

	conf.Sync.AdvertiseInterval = time.Minute
	conf.Store.MaxDrift = time.Hour
	return conf
}
