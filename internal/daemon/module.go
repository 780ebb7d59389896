package daemon

import (
	"context"
	"time"

	"github.com/lframos/pairchat/internal/api"
	"github.com/lframos/pairchat/internal/bus"
	"github.com/lframos/pairchat/internal/config"
	"github.com/lframos/pairchat/internal/lock"
	"github.com/lframos/pairchat/internal/logging"
	"github.com/lframos/pairchat/internal/outbox"
	"github.com/lframos/pairchat/internal/remote"
	"github.com/lframos/pairchat/internal/session"
	"github.com/lframos/pairchat/internal/status"
	"github.com/lframos/pairchat/internal/store"
	intsync "github.com/lframos/pairchat/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	ConfigPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRemote,
			provideOutbox,
			provideSyncEngine,
			provideSessionService,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(p Params, logger *zap.Logger) *config.Config {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Info("no config file, using defaults", zap.String("path", path))
		return &config.Config{}
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

// provideRemote dials the configured sync backend, or falls back to the
// in-process loopback server when no URL is configured.
func provideRemote(cfg *config.Config, logger *zap.Logger) (remote.Client, error) {
	if cfg.Remote.URL == "" {
		logger.Info("no remote url configured, using loopback server")
		return remote.NewServer(), nil
	}
	rc := remote.Config{
		URL:                  cfg.Remote.URL,
		OpTimeout:            time.Duration(cfg.Remote.OpTimeoutSeconds) * time.Second,
		ReconnectBaseDelay:   time.Duration(cfg.Remote.ReconnectBaseMillis) * time.Millisecond,
		ReconnectMaxDelay:    time.Duration(cfg.Remote.ReconnectMaxSeconds) * time.Second,
		MaxReconnectAttempts: cfg.Remote.MaxReconnectAttempts,
	}
	// The initial dial is bounded like every other remote op.
	dialTimeout := rc.OpTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	return remote.DialWS(ctx, rc, logger)
}

func provideOutbox(db *store.DB, rc remote.Client, b *bus.Bus, logger *zap.Logger) *outbox.Manager {
	return outbox.NewManager(db, rc, b, logger)
}

func provideSyncEngine(cfg *config.Config, db *store.DB, rc remote.Client, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(cfg.User.UID, db, rc, b, logger)
}

func provideSessionService(p Params, m *status.Machine, db *store.DB) *api.SessionService {
	return api.NewSessionService(p.SessionName, m, db)
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, lk *lock.Lock, db *store.DB, rc remote.Client, engine *intsync.Engine, out *outbox.Manager, machine *status.Machine, sess *api.SessionService, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Seed the local account row so services can resolve it offline.
			if cfg.User.UID != "" {
				err := db.UpsertUser(&store.User{
					UID:         cfg.User.UID,
					Username:    cfg.User.Username,
					DisplayName: cfg.User.DisplayName,
				})
				if err != nil {
					return err
				}
			}

			out.Start(context.Background())

			if cfg.User.UID == "" {
				logger.Info("no local user configured, staying offline")
				return machine.Transition(status.Offline)
			}

			_ = machine.Transition(status.Connecting)
			if err := engine.Start(context.Background()); err != nil {
				logger.Error("sync engine start failed", zap.Error(err))
				_ = machine.Transition(status.Offline)
				return nil
			}
			_ = machine.Transition(status.Syncing)
			_ = machine.Transition(status.Ready)

			if info, err := sess.Info(); err == nil {
				logger.Info("session ready",
					zap.String("state", string(info.State)),
					zap.Int64("chats", info.ChatCount),
					zap.Int64("messages", info.MessageCount))
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			out.Stop()
			engine.Stop()
			if ws, ok := rc.(*remote.WSClient); ok {
				ws.Close()
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
