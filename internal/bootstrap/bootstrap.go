// Package bootstrap assembles the message store, live feed and directory selected by config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"direct-messaging/internal/app/chat"
	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/infra/broker/kafka"
	"direct-messaging/internal/infra/config"
	"direct-messaging/internal/infra/db/mongo"
	"direct-messaging/internal/infra/storage/memory"
	"direct-messaging/internal/infra/storage/scylla"
	"direct-messaging/internal/live"
)

// Directory is both the actor listing and the token resolver.
type Directory interface {
	directory.Directory
	directory.Identity
}

// App is a wired messaging core. Run must be active for subscriptions to see changes.
type App struct {
	Store     *live.Store
	Directory Directory
	Service   *chat.Service
	Checks    map[string]func(context.Context) error

	closers []func(context.Context) error
}

// Build connects the configured backend. On error everything opened so far is released.
func Build(cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Checks: make(map[string]func(context.Context) error)}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	var (
		backend live.Backend
		feed    live.Feed
	)
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		app.closers = append(app.closers, client.Disconnect)
		app.Checks["mongo"] = client.Ping
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		messages, err := mongo.NewMessageStore(initCtx, client.DB)
		if err != nil {
			return nil, fmt.Errorf("mongo init: %w", err)
		}
		users, err := mongo.NewUsers(initCtx, client.DB)
		if err != nil {
			return nil, fmt.Errorf("mongo init: %w", err)
		}
		backend = messages
		app.Directory = users
		if !cfg.UseKafka() {
			feed = mongo.NewChangeStream(client.DB, logger)
		}
	case config.BackendScylla:
		session, err := scylla.NewSession(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("scylla init: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error {
			session.Close()
			return nil
		})
		st := scylla.NewStore(session, cfg.ScyllaConsistency, logger)
		app.Checks["scylla"] = st.Ping
		backend = st
	case config.BackendMemory, "":
		backend = memory.NewMessageStore()
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}

	if app.Directory == nil {
		registry := memory.NewActorRegistry()
		n, err := registry.LoadFixtures(cfg.ActorsFixtures)
		if err != nil {
			return nil, fmt.Errorf("actor fixtures: %w", err)
		}
		logger.Info("actor fixtures loaded", "count", n, "path", cfg.ActorsFixtures)
		app.Directory = registry
	}

	if cfg.UseKafka() {
		kf, err := kafka.NewChangeFeed(kafka.FeedConfig{
			Brokers:     cfg.KafkaBrokers,
			Topic:       cfg.KafkaChangesTopic,
			GroupPrefix: cfg.KafkaGroupPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		feed = kf
	}
	if feed == nil {
		feed = live.NewLocalFeed(0)
	}

	app.Store = live.NewStore(backend, feed, logger)
	app.Service = chat.NewService(app.Store, app.Directory, cfg.DeleteConcurrency, logger)
	logger.Info("messaging core ready", "backend", cfg.StoreBackend, "kafka", cfg.UseKafka())
	return app, nil
}

// Run consumes the change feed until ctx is done.
func (a *App) Run(ctx context.Context) error {
	err := a.Store.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close ends every subscription and releases backend connections in parallel.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("live store: %w", err))
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, closeFn := range a.closers {
		g.Go(func() error { return closeFn(gctx) })
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	a.closers = nil
	return errors.Join(errs...)
}
