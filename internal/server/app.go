// Package server wires the HealthChat server together: database and
// migrations, services, the context cache, the completion bridge, the
// WebSocket gateway, the HTTP API and the gRPC health endpoint. It also
// handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/healthchat/internal/logging"
	"github.com/dmitrijs2005/healthchat/internal/server/archive"
	"github.com/dmitrijs2005/healthchat/internal/server/auth"
	"github.com/dmitrijs2005/healthchat/internal/server/completion"
	"github.com/dmitrijs2005/healthchat/internal/server/config"
	"github.com/dmitrijs2005/healthchat/internal/server/contextcache"
	"github.com/dmitrijs2005/healthchat/internal/server/gateway"
	"github.com/dmitrijs2005/healthchat/internal/server/httpapi"
	"github.com/dmitrijs2005/healthchat/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/healthchat/internal/server/services"

	gs "github.com/dmitrijs2005/healthchat/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	cache   contextcache.Cache
	closers []func() error
	router  http.Handler
	checks  map[string]httpapi.Pinger
}

// seams for tests
var (
	openDB = repomanager.OpenDB
	newRM  = repomanager.NewPostgresRepositoryManager
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []func() error{db.Close}}

	rm := newRM()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app.checks = map[string]httpapi.Pinger{
		"postgres": httpapi.PingFunc(db.PingContext),
	}

	cache, err := app.newCache(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.cache = cache

	us := services.NewUserService(db, rm, c)
	cs := services.NewConversationService(db, rm)
	ups := services.NewUploadService(cache, archive.NewArchiver(c), logger)

	verifier := auth.NewVerifier([]byte(c.SecretKey), rm.Users(db))
	bridge := completion.NewBridge(completion.Config{
		BaseURL:     c.LLMBaseURL,
		APIKey:      c.LLMAPIKey,
		Model:       c.LLMModel,
		IdleTimeout: c.StreamIdleTimeout,
	}, logger)

	opts := gateway.DefaultOptions()
	opts.AllowedOrigins = c.CORSOrigins
	gw := gateway.New(verifier, cs, cache, bridge, logger, opts)

	h := httpapi.NewHandler(us, cs, ups, app.checks, c.MaxUploadSize, logger)
	app.router = httpapi.NewRouter(h, verifier, gw, c.CORSOrigins, logger)

	return app, nil
}

// newCache picks Redis when a URL is configured and the in-process map
// otherwise.
func (app *App) newCache(ctx context.Context) (contextcache.Cache, error) {
	if app.config.RedisURL == "" {
		app.logger.Info(ctx, "using in-memory context cache")
		return contextcache.NewMemoryCache(), nil
	}
	rc, err := contextcache.NewRedisCache(ctx, app.config.RedisURL, app.config.ContextTTL)
	if err != nil {
		return nil, fmt.Errorf("context cache: %w", err)
	}
	app.closers = append(app.closers, rc.Close)
	app.checks["redis"] = rc
	app.logger.Info(ctx, "using redis context cache")
	return rc, nil
}

// Close releases the database and cache connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) runHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		// WebSocket sessions hang off this context, so shutdown reaches them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Warn(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) runGRPCServer(ctx context.Context) error {
	checks := make(map[string]gs.Pinger, len(app.checks))
	for name, p := range app.checks {
		checks[name] = p
	}
	return gs.NewGRPCServer(app.config.GRPCAddr, app.logger, checks, gs.DefaultProbeInterval).Run(ctx)
}

// Run serves until a signal arrives, ctx is cancelled or a server fails.
func (app *App) Run(ctx context.Context) error {
	defer app.Close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.runHTTPServer(gctx) })
	g.Go(func() error { return app.runGRPCServer(gctx) })

	err := g.Wait()
	app.logger.Info(ctx, "App stopped")
	return err
}
