// Package node contains the main executable for a nodeprops node.
package node

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-nodeprops/cmd"
	"github.com/spacemeshos/go-nodeprops/common/types"
	"github.com/spacemeshos/go-nodeprops/config"
	"github.com/spacemeshos/go-nodeprops/exchange"
	"github.com/spacemeshos/go-nodeprops/log"
	"github.com/spacemeshos/go-nodeprops/metrics"
	"github.com/spacemeshos/go-nodeprops/metrics/public"
	"github.com/spacemeshos/go-nodeprops/nodeprops"
	"github.com/spacemeshos/go-nodeprops/p2p"
	"github.com/spacemeshos/go-nodeprops/prune"
)

const (
	P2PLogger       = "p2p"
	NodePropsLogger = "nodeprops"
	ExchangeLogger  = "exchange"
	PruneLogger     = "prune"
)

// GetCommand returns the command that runs the node.
func GetCommand() *cobra.Command {
	conf := config.DefaultConfig()
	var configPath *string
	c := &cobra.Command{
		Use:   "nodeprops",
		Short: "start node",
		RunE: func(c *cobra.Command, args []string) error {
			if err := configure(c, *configPath, &conf, os.Args[1:]); err != nil {
				return err
			}

			app := New(
				WithConfig(&conf),
				// child loggers can only increase the level, so the root logs everything
				WithLog(log.NewWithLevel("node", zap.NewAtomicLevelAt(zap.DebugLevel))),
			)

			// os.Interrupt for all systems, especially windows, syscall.SIGTERM is mainly for docker.
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

			// This blocks until the context is finished or until an error is produced
			return app.Start(ctx)
		},
	}

	configPath = cmd.AddFlags(c.PersistentFlags(), &conf)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprintf(c.OutOrStdout(), "%s+%s+%s\n", cmd.Version, cmd.Commit, cmd.Branch)
		},
	}
	c.AddCommand(versionCmd)
	return c
}

func configure(c *cobra.Command, configPath string, conf *config.Config, args []string) error {
	if err := config.Load(conf, configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// apply CLI args to config
	if err := c.ParseFlags(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	switch conf.LOGGING.Encoder {
	case config.JSONLogEncoder:
		log.JSONLog(true)
	case config.ConsoleLogEncoder:
	default:
		return fmt.Errorf("unknown log encoder %q", conf.LOGGING.Encoder)
	}
	return nil
}

// Option to modify an App instance.
type Option func(app *App)

// WithLog enables logger for an App.
func WithLog(logger *zap.Logger) Option {
	return func(app *App) {
		app.log = logger
	}
}

// WithConfig overwrites default App config.
func WithConfig(conf *config.Config) Option {
	return func(app *App) {
		app.Config = conf
	}
}

// New creates an instance of the nodeprops app.
func New(opts ...Option) *App {
	defaultConfig := config.DefaultConfig()
	app := &App{
		Config:  &defaultConfig,
		log:     log.NewNop(),
		started: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// App is the cli app singleton.
type App struct {
	Config   *config.Config
	log      *zap.Logger
	fileLock *flock.Flock

	host    *p2p.Host
	svc     *nodeprops.Service
	ex      *exchange.Exchange
	metrics *metrics.Server
	pruner  *prune.Pruner

	started chan struct{}
}

// Started is closed once all services are running.
func (app *App) Started() <-chan struct{} {
	return app.started
}

// Host returns the p2p host. It is nil until the app is started.
func (app *App) Host() *p2p.Host {
	return app.host
}

// Service returns the node properties service. It is nil until the app is started.
func (app *App) Service() *nodeprops.Service {
	return app.svc
}

// Lock locks the app for exclusive use. It returns an error if the app is already locked.
func (app *App) Lock() error {
	lockDir := filepath.Dir(app.Config.FileLock)
	if _, err := os.Stat(lockDir); errors.Is(err, fs.ErrNotExist) {
		err := os.Mkdir(lockDir, os.ModePerm)
		if err != nil {
			return fmt.Errorf("creating dir %s for lock %s: %w", lockDir, app.Config.FileLock, err)
		}
	}
	fl := flock.New(app.Config.FileLock)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("flock %s: %w", app.Config.FileLock, err)
	} else if !locked {
		return fmt.Errorf("only one nodeprops instance should be running (locking file %s)", fl.Path())
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

// Initialize ensures that the data folder exists.
func (app *App) Initialize() error {
	if err := os.MkdirAll(app.Config.DataDir(), 0o700); err != nil {
		return fmt.Errorf("ensure folders exist: %w", err)
	}
	return nil
}

func (app *App) addLogger(name string, lvl zapcore.Level) *zap.Logger {
	return log.Named(app.log, name, lvl)
}

func (app *App) setupServices(ctx context.Context) error {
	cfg := app.Config
	p2pCfg := cfg.P2P
	p2pCfg.DataDir = cfg.DataDir()
	p2pCfg.LogLevel = cfg.LOGGING.LibP2PLoggerLevel
	host, err := p2p.New(ctx, app.addLogger(P2PLogger, cfg.LOGGING.P2PLoggerLevel), p2pCfg)
	if err != nil {
		return fmt.Errorf("initialize p2p host: %w", err)
	}
	app.host = host

	app.svc = nodeprops.New(p2p.NodeID(host.ID()),
		nodeprops.WithLogger(app.addLogger(NodePropsLogger, cfg.LOGGING.NodePropsLoggerLevel)),
		nodeprops.WithConfig(cfg.NodeProps),
		nodeprops.WithPublisher(nodeprops.PublisherFunc(func(records []types.NodeProperty) {
			app.ex.PublishLocal(records)
		})),
	)
	app.ex = exchange.New(host, app.svc, host,
		exchange.WithLogger(app.addLogger(ExchangeLogger, cfg.LOGGING.ExchangeLoggerLevel)),
		exchange.WithConfig(cfg.Exchange),
		exchange.WithRelay(cfg.NodeProps.Relay),
	)
	host.Register(exchange.DeltaTopic, app.ex.HandleDelta)
	host.Topology().Register(func(now, joined, left []peer.ID) {
		app.svc.OnReachableNodesChanged(p2p.NodeIDs(now), p2p.NodeIDs(joined), p2p.NodeIDs(left))
		app.ex.OnPeersChanged(now, joined, left)
	})

	if cfg.NodeProps.Retention > 0 {
		if cfg.NodeProps.PruneInterval <= 0 {
			return fmt.Errorf("prune interval must be positive with retention %v", cfg.NodeProps.Retention)
		}
		app.pruner = prune.New(app.svc, cfg.NodeProps.Retention,
			prune.WithLogger(app.addLogger(PruneLogger, cfg.LOGGING.NodePropsLoggerLevel)))
	}
	if cfg.CollectMetrics {
		app.metrics, err = metrics.NewServer(app.log, cfg.MetricsAddr)
		if err != nil {
			return err
		}
	}
	return nil
}

func (app *App) watchChanges() {
	app.svc.AddNodePropertiesChangeListener(func(cs nodeprops.ChangeSet) {
		public.VisibleNodes.Set(float64(len(app.svc.GetAllNodeProperties())))
		public.KnownNodes.Set(float64(len(app.svc.KnownNodes())))
		app.log.Info("node properties changed",
			zap.Int("added", len(cs.Added)),
			zap.Int("updated", len(cs.Updated)),
			zap.Int("removed", len(cs.Removed)),
			zap.Int("nodes", len(cs.NodeMaps)),
		)
		for id, props := range cs.NodeMaps {
			if props == nil {
				app.log.Debug("node is not visible", zap.Stringer("node", id))
				continue
			}
			app.log.Debug("visible node properties", zap.Stringer("node", id), zap.Any("properties", props))
		}
	})
	app.svc.WatchDisplayNames(func(id types.NodeID, name string) {
		if name == "" {
			app.log.Info("display name removed", zap.Stringer("node", id))
			return
		}
		app.log.Info("display name", zap.Stringer("node", id), zap.String("name", name))
	})
}

func (app *App) publishConfigured() {
	values := make(map[string]*string, len(app.Config.Properties)+1)
	for key, value := range app.Config.Properties {
		values[key] = &value
	}
	if app.Config.DisplayName != "" {
		name := app.Config.DisplayName
		values[nodeprops.DisplayNameKey] = &name
	}
	if len(values) > 0 {
		app.svc.AddOrUpdateLocalNodeProperties(values)
	}
}

// Start starts the node services and blocks until ctx is canceled or one of the
// services fails.
func (app *App) Start(ctx context.Context) error {
	if err := app.setupServices(ctx); err != nil {
		if app.svc != nil {
			app.svc.Close()
		}
		if app.host != nil {
			app.host.Stop()
		}
		return err
	}
	defer app.stopServices()
	app.log.Info("node started",
		zap.Stringer("node", app.svc.LocalID()),
		zap.Any("addresses", app.host.ListenAddrs()),
		zap.Bool("relay", app.Config.NodeProps.Relay),
		zap.String("version", cmd.Version),
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return app.ex.Run(ctx)
	})
	eg.Go(func() error {
		return app.host.Bootstrap(ctx)
	})
	if app.pruner != nil {
		eg.Go(func() error {
			app.pruner.Run(ctx, app.Config.NodeProps.PruneInterval)
			return nil
		})
	}
	if app.metrics != nil {
		eg.Go(func() error {
			return app.metrics.Run(ctx)
		})
	}
	if app.Config.MetricsPush.URL != "" {
		eg.Go(func() error {
			metrics.StartPushingMetrics(ctx, app.log, app.Config.MetricsPush, app.svc.LocalID().String())
			return nil
		})
	}
	app.watchChanges()
	app.publishConfigured()
	close(app.started)
	return eg.Wait()
}

func (app *App) stopServices() {
	app.svc.Close()
	if err := app.host.Stop(); err != nil {
		app.log.Warn("failed to stop p2p host", zap.Error(err))
	}
	app.log.Info("node stopped")
}
