package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/lythe-im/lythed/internal/api"
	"github.com/lythe-im/lythed/internal/auth"
	"github.com/lythe-im/lythed/internal/bus"
	"github.com/lythe-im/lythed/internal/config"
	"github.com/lythe-im/lythed/internal/lock"
	"github.com/lythe-im/lythed/internal/logging"
	"github.com/lythe-im/lythed/internal/outbox"
	"github.com/lythe-im/lythed/internal/session"
	"github.com/lythe-im/lythed/internal/status"
	"github.com/lythe-im/lythed/internal/store"
	intsync "github.com/lythe-im/lythed/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Sender      outbox.MessageSender // optional; nil disables the resend loop
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideTracker,
			provideLock,
			provideStore,
			provideAuthManager,
			provideHTTPClient,
			provideAPIClient,
			provideSyncEngine,
			provideRefresher,
			provideResender,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return config.Default()
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideTracker(b *bus.Bus) *status.Tracker {
	return status.NewTracker(b)
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
	dbPath := session.AppDBPath(p.SessionName)
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

func provideAuthManager(p Params, logger *zap.Logger) *auth.Manager {
	source := &auth.FileTokenSource{Path: session.TokenPath(p.SessionName)}
	return auth.NewManager(source, logger)
}

func provideHTTPClient(cfg *config.Config, manager *auth.Manager, logger *zap.Logger) *http.Client {
	timeouts := auth.Timeouts{
		Connect: time.Duration(cfg.Server.ConnectTimeoutSeconds) * time.Second,
		Read:    time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		Write:   time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}
	return auth.NewHTTPClient(manager, timeouts, logger)
}

func provideAPIClient(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.Server.BaseURL, httpClient, logger)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger)
}

func provideRefresher(db *store.DB, client *api.Client, tracker *status.Tracker, b *bus.Bus, logger *zap.Logger) *intsync.Refresher {
	return intsync.NewRefresher(db, client, tracker, b, logger)
}

func provideResender(p Params, cfg *config.Config, db *store.DB, b *bus.Bus, logger *zap.Logger) *outbox.Resender {
	if p.Sender == nil {
		return nil
	}
	interval := time.Duration(cfg.Resend.IntervalSeconds) * time.Second
	return outbox.NewResender(db, p.Sender, b, logger, interval, cfg.Resend.MaxRetries)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, engine *intsync.Engine, refresher *intsync.Refresher, resender *outbox.Resender, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if resender != nil {
				resender.Start(context.Background())
			} else {
				logger.Info("no message sender configured, resend loop disabled")
			}

			if convs, err := engine.Conversations(); err == nil {
				logger.Info("local state loaded", zap.Int("conversations", len(convs)))
			}

			// Warm the local caches in the background. Failures fall back
			// to whatever the store already holds.
			go func() {
				ctx := context.Background()
				<-refresher.RefreshFriends(ctx)
				<-refresher.RefreshGroups(ctx)
			}()

			logger.Info("daemon started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			if resender != nil {
				resender.Stop()
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
