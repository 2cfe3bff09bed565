// Package node wires the components of a leafsync node together and runs
// them.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/attestate/leafsync/cmd"
	"github.com/attestate/leafsync/common/types"
	"github.com/attestate/leafsync/config"
	"github.com/attestate/leafsync/config/presets"
	"github.com/attestate/leafsync/database"
	"github.com/attestate/leafsync/filesystem"
	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/log"
	"github.com/attestate/leafsync/metrics"
	"github.com/attestate/leafsync/p2p"
	"github.com/attestate/leafsync/p2p/pubsub"
	"github.com/attestate/leafsync/p2p/server"
	"github.com/attestate/leafsync/registry"
	"github.com/attestate/leafsync/signing"
	"github.com/attestate/leafsync/store"
	"github.com/attestate/leafsync/triesync"
)

const (
	dbFile = "records.ldb"
	// recordsPrefix is the leveldb key prefix of the records.
	recordsPrefix = "r/"
)

// Logger names.
const (
	AppLogger      = "app"
	P2PLogger      = "p2p"
	PubSubLogger   = "pubsub"
	ServerLogger   = "server"
	SyncLogger     = "sync"
	StoreLogger    = "store"
	RegistryLogger = "registry"
	DatabaseLogger = "database"
	MetricsLogger  = "metrics"
)

// GetCommand returns the root command of the node.
func GetCommand() *cobra.Command {
	conf := config.DefaultConfig()
	var configPath *string
	c := &cobra.Command{
		Use:   "leafsync",
		Short: "start node",
		RunE: func(c *cobra.Command, args []string) error {
			if err := configure(c, *configPath, &conf); err != nil {
				return err
			}
			logger, err := newRootLogger(&conf)
			if err != nil {
				return err
			}
			app := New(WithConfig(&conf), WithLog(logger))

			// os.Interrupt for all systems, syscall.SIGTERM is mainly for docker.
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := app.Initialize(); err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}
			if err := app.Lock(); err != nil {
				return fmt.Errorf("getting exclusive file lock: %w", err)
			}
			defer app.Unlock()

			// Don't print usage on error from this point forward
			c.SilenceUsage = true

			if err := app.OpenStore(); err != nil {
				return err
			}
			// This blocks until the context is finished or until an error is produced
			err = app.Start(ctx)
			app.Cleanup()
			return err
		},
	}

	configPath = cmd.AddFlags(c.PersistentFlags(), &conf)

	// versionCmd returns the current version of leafsync.
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(c *cobra.Command, args []string) {
			fmt.Print(cmd.Version)
			fmt.Println()
		},
	}
	c.AddCommand(versionCmd)

	rec := types.Record{Type: types.AmplifyType}
	postCmd := &cobra.Command{
		Use:          "post",
		Short:        "Sign a record with the record key and add it to the local store",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			if err := configure(c, *configPath, &conf); err != nil {
				return err
			}
			logger, err := newRootLogger(&conf)
			if err != nil {
				return err
			}
			app := New(WithConfig(&conf), WithLog(logger))
			if err := app.Initialize(); err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}
			if err := app.Lock(); err != nil {
				return fmt.Errorf("getting exclusive file lock: %w", err)
			}
			defer app.Unlock()
			if err := app.OpenStore(); err != nil {
				return err
			}
			defer app.Cleanup()

			posted := rec
			id, err := app.Post(c.Context(), &posted)
			if err != nil {
				return err
			}
			fmt.Println(id.Hex())
			return nil
		},
	}
	postCmd.Flags().StringVar(&rec.Href, "href", "", "link of the record")
	postCmd.Flags().StringVar(&rec.Title, "title", "", "title of the record")
	postCmd.Flags().StringVar(&rec.Type, "type", rec.Type, "type of the record")
	postCmd.Flags().Int64Var(&rec.Timestamp, "timestamp", 0, "unix timestamp of the record. defaults to now")
	c.AddCommand(postCmd)

	return c
}

func configure(c *cobra.Command, configPath string, conf *config.Config) error {
	preset := conf.Preset // might be set via CLI flag
	if err := loadConfig(conf, preset, configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// apply CLI args to config
	if err := c.ParseFlags(os.Args[1:]); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	return nil
}

// loadConfig loads config and preset (if provided) into the provided config.
// It first loads the preset and then overrides it with values from the config file.
func loadConfig(cfg *config.Config, preset, path string) error {
	v := viper.New()
	// read in config from file
	if err := config.LoadConfig(path, v); err != nil {
		return log.ErrMalformedConfig(err)
	}

	// override default config with preset if provided
	if len(preset) == 0 && v.IsSet("preset") {
		preset = v.GetString("preset")
	}
	if len(preset) > 0 {
		p, err := presets.Get(preset)
		if err != nil {
			return err
		}
		*cfg = p
	}
	if err := config.Decode(v, cfg); err != nil {
		return log.ErrMalformedConfig(err)
	}
	return nil
}

// newRootLogger logs everything. Module loggers narrow it down to the
// configured levels.
func newRootLogger(conf *config.Config) (*zap.Logger, error) {
	return log.New(conf.LOGGING.Encoder, zapcore.DebugLevel)
}

// Option to modify an App instance.
type Option func(app *App)

// WithLog enables logger for an App.
func WithLog(logger *zap.Logger) Option {
	return func(app *App) {
		app.root = logger
		app.log = logger
	}
}

// WithConfig overwrites default App config.
func WithConfig(conf *config.Config) Option {
	return func(app *App) {
		app.Config = conf
	}
}

// WithFs sets the filesystem used for the data directory and the allow list.
func WithFs(fs afero.Fs) Option {
	return func(app *App) {
		app.fs = fs
	}
}

// New creates an instance of the leafsync app.
func New(opts ...Option) *App {
	defaultConfig := config.DefaultConfig()
	app := &App{
		Config:  &defaultConfig,
		root:    log.NewNop(),
		log:     log.NewNop(),
		fs:      afero.NewOsFs(),
		started: make(chan struct{}),
		eg:      &errgroup.Group{},
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// App is the cli app singleton.
type App struct {
	Config   *config.Config
	root     *zap.Logger
	log      *zap.Logger
	fs       afero.Fs
	fileLock *flock.Flock

	db       *database.LDBDatabase
	store    *store.Store
	registry *registry.Registry

	host       *p2p.Host
	pubsub     *pubsub.GossipPubSub
	levels     *server.Server
	leaves     *server.Server
	syncer     *triesync.Syncer
	discovery  *triesync.Discovery
	advertiser *triesync.Advertiser
	metrics    *metrics.Server

	cancel  context.CancelFunc
	started chan struct{} // this channel is closed once the app has finished starting
	eg      *errgroup.Group
}

// Started is closed once all services run.
func (app *App) Started() <-chan struct{} {
	return app.started
}

// Lock locks the app for exclusive use. It returns an error if the app is already locked.
func (app *App) Lock() error {
	path := filepath.Join(app.Config.DataDir(), config.LockFile)
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("flock %s: %w", path, err)
	} else if !locked {
		return fmt.Errorf("only one leafsync instance should be running (locking file %s)", fl.Path())
	}
	app.fileLock = fl
	return nil
}

// Unlock unlocks the app. It is a no-op if the app is not locked.
func (app *App) Unlock() {
	if app.fileLock == nil {
		return
	}
	if err := app.fileLock.Unlock(); err != nil {
		app.log.Error("failed to unlock file",
			zap.String("path", app.fileLock.Path()),
			zap.Error(err),
		)
	}
}

// Initialize validates the logging config, creates the data directory and
// routes libp2p logs.
func (app *App) Initialize() error {
	levels, err := decodeLoggers(app.Config.LOGGING)
	if err != nil {
		return err
	}
	delete(levels, "log-encoder")
	for name, lvl := range levels {
		if lvl == "" {
			continue
		}
		if _, err := zapcore.ParseLevel(lvl); err != nil {
			return fmt.Errorf("logger %s: %w", name, err)
		}
	}
	if err := filesystem.ExistOrCreate(app.fs, app.Config.DataDir()); err != nil {
		return log.ErrEnsureDataDir(app.Config.DataDir(), err)
	}
	app.log = app.addLogger(AppLogger)
	if err := log.SetupLibp2p(app.root.Named("libp2p"), app.Config.LOGGING.Libp2pLoggerLevel); err != nil {
		return err
	}
	app.log.Info("Welcome to leafsync. node is starting...", zap.String("info", app.getAppInfo()))
	return nil
}

func (app *App) getAppInfo() string {
	return fmt.Sprintf(
		"App version: %s. Git: %s - %s . Go Version: %s. OS: %s-%s",
		cmd.Version,
		cmd.Branch,
		cmd.Commit,
		runtime.Version(),
		runtime.GOOS,
		runtime.GOARCH,
	)
}

func decodeLoggers(cfg config.LoggerConfig) (map[string]string, error) {
	levels := make(map[string]string)
	if err := mapstructure.Decode(cfg, &levels); err != nil {
		return nil, fmt.Errorf("decode loggers: %w", err)
	}
	return levels, nil
}

// addLogger creates a child logger of the module with the level from config.
// Levels are validated by Initialize.
func (app *App) addLogger(name string) *zap.Logger {
	levels, err := decodeLoggers(app.Config.LOGGING)
	if err != nil {
		app.log.Panic("unable to decode loggers into map[string]string", zap.Error(err))
	}
	lvl := levels[name]
	if lvl == "" {
		lvl = app.Config.LOGGING.Level
	}
	logger, err := log.Named(app.root, name, lvl)
	if err != nil {
		app.log.Panic("BUG: invalid level for logger", zap.String("name", name), zap.Error(err))
	}
	return logger
}

// OpenStore opens the database and rebuilds the trie from it.
func (app *App) OpenStore() error {
	path := filepath.Join(app.Config.DataDir(), dbFile)
	db, err := database.NewLDBDatabase(
		path,
		app.Config.DatabaseCache,
		app.Config.DatabaseHandles,
		app.addLogger(DatabaseLogger),
	)
	if err != nil {
		return log.ErrOpenDatabase(path, err)
	}
	app.db = db
	return app.openStore(db.Table(recordsPrefix))
}

func (app *App) openStore(table *database.Table) error {
	verifier, err := signing.NewEdVerifier()
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	app.store, err = store.Open(app.addLogger(StoreLogger), verifier, table, store.WithConfig(app.Config.Store))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	app.registry, err = registry.New(app.addLogger(RegistryLogger), app.fs, app.Config.Registry)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	return nil
}

// Post signs rec with the record key and adds it to the store. The key is
// created on first use.
func (app *App) Post(ctx context.Context, rec *types.Record) (hash.Hash32, error) {
	signer, err := signing.NewEdSigner(signing.LoadOrCreate(app.Config.RecordKeyPath()))
	if err != nil {
		return hash.Hash32{}, fmt.Errorf("load record key: %w", err)
	}
	allow, err := app.registry.Allowlist(ctx)
	if err != nil {
		return hash.Hash32{}, err
	}
	return app.store.Post(signer, rec, allow)
}

func (app *App) initServices(ctx context.Context) error {
	p2pCfg := app.Config.P2P
	p2pCfg.DataDir = app.Config.DataDir()
	h, err := p2p.New(app.addLogger(P2PLogger), p2pCfg)
	if err != nil {
		return fmt.Errorf("create p2p host: %w", err)
	}
	app.host = h
	app.pubsub, err = pubsub.New(ctx, app.addLogger(PubSubLogger), h, app.Config.PubSub)
	if err != nil {
		return fmt.Errorf("create pubsub: %w", err)
	}

	cfg := app.Config.Sync
	tr := app.store.Trie()
	syncLogger := app.addLogger(SyncLogger)
	lock := triesync.NewPeerLock(triesync.WithSessionTimeout(cfg.SessionTimeout))
	responder := triesync.NewResponder(syncLogger, tr, lock, app.store, app.registry)
	opts := []server.Opt{
		server.WithLog(app.addLogger(ServerLogger)),
		server.WithTimeout(cfg.RequestTimeout),
		server.WithRequestSizeLimit(cfg.MaxFrameSize),
		server.WithResponseSizeLimit(cfg.MaxFrameSize),
	}
	if app.Config.CollectMetrics {
		opts = append(opts, server.WithMetrics())
	}
	app.levels = server.New(h, triesync.LevelsProtocol, responder.LevelsHandler(), opts...)
	app.leaves = server.New(h, triesync.LeavesProtocol, responder.LeavesHandler(), opts...)
	app.syncer = triesync.NewSyncer(tr, lock, app.levels, app.leaves,
		triesync.WithLogger(syncLogger),
		triesync.WithConfig(cfg),
	)
	app.discovery, err = triesync.NewDiscovery(syncLogger, h.ID(), tr, app.syncer, cfg)
	if err != nil {
		return fmt.Errorf("create discovery: %w", err)
	}
	app.pubsub.Register(triesync.RootsTopic, app.discovery.Handle)
	app.advertiser = triesync.NewAdvertiser(syncLogger, tr, app.pubsub, triesync.WithInterval(cfg.AdvertiseInterval))

	if app.Config.CollectMetrics {
		app.metrics = metrics.NewServer(app.addLogger(MetricsLogger), app.Config.MetricsPort)
	}
	return nil
}

// Start creates the services and runs them until ctx is canceled or one of
// them fails.
func (app *App) Start(ctx context.Context) error {
	if app.store == nil {
		return errors.New("store is not open")
	}
	ctx, cancel := context.WithCancel(ctx)
	app.cancel = cancel
	if err := app.initServices(ctx); err != nil {
		app.log.Error("failed to start App", zap.Error(err))
		return err
	}

	errCh := make(chan error, 1)
	run := func(name string, f func(context.Context) error) {
		app.eg.Go(func() error {
			if err := f(ctx); err != nil {
				app.log.Error("service failed", zap.String("service", name), zap.Error(err))
				select {
				case errCh <- fmt.Errorf("%s: %w", name, err):
				default:
				}
			}
			return nil
		})
	}
	run("host", app.host.Run)
	run("levels server", app.levels.Run)
	run("leaves server", app.leaves.Run)
	run("discovery", app.discovery.Run)
	run("advertiser", app.advertiser.Run)
	if app.metrics != nil {
		run("metrics", app.metrics.Run)
	}
	app.log.Info("node started",
		zap.Stringer("id", app.host.ID()),
		zap.Any("addresses", app.host.Addrs()),
		zap.Stringer("root", app.store.Trie().Root()),
		zap.Int("records", app.store.Trie().Len()),
	)
	close(app.started)

	// app blocks until it receives a signal to exit
	// this signal may come from the node or from sig-abort (ctrl-c)
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Host returns the libp2p host once the app started.
func (app *App) Host() *p2p.Host {
	return app.host
}

// Store returns the record store once it is open.
func (app *App) Store() *store.Store {
	return app.store
}

// Syncer returns the sync initiator once the app started.
func (app *App) Syncer() *triesync.Syncer {
	return app.syncer
}

// Cleanup stops all app services.
func (app *App) Cleanup() {
	app.log.Info("app cleanup starting...")
	if app.cancel != nil {
		app.cancel()
	}
	done := make(chan struct{})
	go func() {
		app.eg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		app.log.Error("app failed to clean up in time")
	}
	if app.host != nil {
		if err := app.host.Stop(); err != nil {
			app.log.Warn("failed to stop host", zap.Error(err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.log.Warn("failed to close database", zap.Error(err))
		}
	}
	app.log.Info("app cleanup completed")
}
