// Package server wires the academyhub components together and runs them:
// the HTTP API with its websocket relay, the gRPC health endpoint and the
// background scheduler.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/auth"
	"github.com/dmitrijs2005/academyhub/internal/server/config"
	"github.com/dmitrijs2005/academyhub/internal/server/notify/webpush"
	"github.com/dmitrijs2005/academyhub/internal/server/realtime"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/academyhub/internal/server/rest"
	"github.com/dmitrijs2005/academyhub/internal/server/scheduler"
	"github.com/dmitrijs2005/academyhub/internal/server/services"
	"github.com/dmitrijs2005/academyhub/internal/storage"
	"github.com/dmitrijs2005/academyhub/internal/storage/httprelay"
	"github.com/dmitrijs2005/academyhub/internal/storage/localfs"
	"github.com/dmitrijs2005/academyhub/internal/storage/s3store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/academyhub/internal/server/grpc"
)

const purgeInterval = time.Hour

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	broker    *realtime.RedisBroker
	local     *localfs.Service
	hub       *realtime.Hub
	http      *rest.Server
	grpc      *gs.GRPCServer
	scheduler *scheduler.Scheduler
}

// NewApp opens the database, applies migrations and builds every component.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	store, err := app.initStorage(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	hubOpts := []realtime.Option{}
	if c.Realtime.RedisURL != "" {
		broker, err := realtime.NewRedisBroker(c.Realtime.RedisURL, logger)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.broker = broker
		hubOpts = append(hubOpts, realtime.WithBroker(broker))
	}

	users := services.NewUserService(db, rm, c, auth.NewBcryptHasher(c.BcryptCost), store, logger)
	hubOpts = append(hubOpts, realtime.WithAuthenticator(rest.SessionAuthenticator(users)))
	if !c.IsProduction() {
		hubOpts = append(hubOpts, realtime.WithAnyOrigin())
	}
	app.hub = realtime.NewHub(logger, hubOpts...)

	push := webpush.NewSender(c.WebPush, rm.PushSubscriptions(db), logger)
	notifications := services.NewNotificationService(db, rm, app.hub, push, logger)
	publicKey := ""
	if push.Enabled() {
		publicKey = push.PublicKey()
	}

	app.http = rest.NewServer(c, rest.Deps{
		Users:         users,
		Posts:         services.NewPostService(db, rm, store, notifications, logger),
		Messages:      services.NewMessageService(db, rm, store, app.hub, notifications, logger),
		Notifications: notifications,
		Push:          services.NewPushService(db, rm, publicKey),
		Realtime:      app.hub,
		LocalStorage:  app.local,
		Health:        db.PingContext,
	}, logger)

	if c.GRPCAddr != "" {
		checks := map[string]gs.Check{"database": db.PingContext}
		if app.broker != nil {
			checks["redis"] = app.broker.Ping
		}
		app.grpc = gs.NewGRPCServer(c.GRPCAddr, logger, checks)
	}

	app.scheduler, err = scheduler.New(logger)
	if err != nil {
		app.close()
		return nil, err
	}
	if c.RevokeOnLogout {
		if err := app.scheduler.AddJob(scheduler.PurgeRevokedTokensJob, purgeInterval,
			scheduler.PurgeRevokedTokens(rm.RevokedTokens(db), logger)); err != nil {
			app.close()
			return nil, err
		}
	}

	return app, nil
}

// initStorage picks the media backend. The filesystem storage service is
// opened first so that the http backend can relay to it; both share the
// relay secret.
func (app *App) initStorage(ctx context.Context) (storage.Adapter, error) {
	sc := app.config.Storage

	secret := sc.RelaySecret
	if secret == "" && sc.LocalEnabled {
		secret = uuid.NewString()
	}

	if sc.LocalEnabled {
		local, err := localfs.New(sc.LocalRoot, secret, app.logger)
		if err != nil {
			return nil, fmt.Errorf("local storage init error: %w", err)
		}
		app.local = local
	}

	switch sc.Backend {
	case config.StorageBackendS3:
		store, err := s3store.New(ctx, s3store.Options{
			Region:    sc.S3Region,
			AccessKey: sc.S3RootUser,
			SecretKey: sc.S3RootPassword,
			Endpoint:  sc.S3BaseEndpoint,
			Bucket:    sc.S3Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 storage init error: %w", err)
		}
		return store, nil
	default:
		return httprelay.New(sc.RelayURL, secret, nil), nil
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until a signal arrives or a component fails, then stops the
// others and releases resources.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	app.initSignalHandler(cancelFunc)

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.hub.Run(gctx) })
	g.Go(func() error { return app.http.Run(gctx) })
	g.Go(func() error { return app.scheduler.Run(gctx) })
	if app.grpc != nil {
		g.Go(func() error { return app.grpc.Run(gctx) })
	}

	err := g.Wait()
	app.close()

	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}

func (app *App) close() {
	if app.broker != nil {
		_ = app.broker.Close()
	}
	if app.local != nil {
		_ = app.local.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
