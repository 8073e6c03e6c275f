// Package server initializes and runs the gophmaps server: it opens the
// relational and object stores, builds the domain services and supervises
// the HTTP server, the deletion sweeper and the reconciler until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/logging"
	"github.com/dmitrijs2005/gophmaps/internal/server/auth"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/config"
	"github.com/dmitrijs2005/gophmaps/internal/server/httpapi"
	"github.com/dmitrijs2005/gophmaps/internal/server/media"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophmaps/internal/server/services"
	"github.com/dmitrijs2005/gophmaps/internal/server/storage"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	slog       *slog.Logger
	db         *sql.DB
	server     *httpapi.Server
	sweeper    *media.Sweeper
	reconciler *media.Reconciler
}

// NewApp builds every component from c. Log output goes to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger, err := logging.New(w, c.LogBackend, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	app := &App{config: c, logger: logger, slog: supervisorLogger(logger, w)}

	tx, repos, err := app.openDatabase(ctx)
	if err != nil {
		return nil, err
	}

	store, objects, err := app.openObjectStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	engine, err := authz.NewEngine(repos)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("authz init error: %w", err)
	}

	mgr := media.NewManager(media.Config{
		UploadTTL:     c.UploadURLTTL,
		DownloadTTL:   c.DownloadURLTTL,
		MaxUploadSize: c.MaxUploadSize,
	}, tx, repos, store, engine, logger)
	app.sweeper = media.NewSweeper(media.SweeperConfig{
		Interval:        c.SweepInterval,
		BatchSize:       c.SweepBatchSize,
		MaxAttempts:     c.SweepMaxAttempts,
		RetryInitial:    c.DeleteRetryInitial,
		RetryMaxElapsed: c.DeleteRetryMaxElapsed,
	}, tx, repos, store, mgr.Notifications(), logger)
	app.reconciler = media.NewReconciler(media.ReconcilerConfig{
		Interval:    c.ReconcileInterval,
		GracePeriod: c.MediaGracePeriod,
		BatchSize:   c.SweepBatchSize,
	}, tx, repos, store, app.sweeper, logger)

	tokens := auth.NewTokenService([]byte(c.SecretKey), c.AccessTokenValidityDuration)
	d := services.Deps{Tx: tx, Repos: repos, Authz: engine, Media: mgr, Log: logger}
	router := httpapi.NewRouter(httpapi.Config{
		CORSOrigins:       c.CORSOrigins,
		RateLimitRequests: c.RateLimitRequests,
		RateLimitWindow:   c.RateLimitWindow,
		Objects:           objects,
	}, httpapi.Services{
		Users:       services.NewUserService(tx, repos, tokens, c.RefreshTokenValidityDuration),
		Maps:        services.NewMapService(d),
		Grants:      services.NewGrantService(d),
		Collections: services.NewCollectionService(d),
		Markers:     services.NewMarkerService(d),
		Articles:    services.NewArticleService(d),
		Media:       services.NewMediaService(d),
		Folders:     services.NewFolderService(d),
	}, logger)
	app.server = httpapi.NewServer(c.HTTPAddress, router, logger, c.ShutdownTimeout)

	return app, nil
}

// supervisorLogger returns the slog logger behind l, or a JSON slog logger on
// w for other backends.
func supervisorLogger(l logging.Logger, w io.Writer) *slog.Logger {
	if sl, ok := l.(*logging.SlogLogger); ok {
		return sl.Slog()
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}

func (app *App) openDatabase(ctx context.Context) (dbx.Transactor, repomanager.RepositoryManager, error) {
	if app.config.InMemory() {
		app.logger.Warn(ctx, "Using in-memory repositories; data is lost on exit")
		store := memory.NewStore()
		return store, memory.NewManager(store), nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	app.db = db
	return dbx.NewSQLTransactor(db), repos, nil
}

// openObjectStore returns the store and, for the in-memory backend, the
// handler serving its presigned URLs.
func (app *App) openObjectStore(ctx context.Context) (storage.ObjectStore, http.Handler, error) {
	c := app.config
	if c.StorageBackend == config.StorageMemory {
		app.logger.Warn(ctx, "Using in-memory object store; media is lost on exit")
		store := storage.NewMemoryStore(strings.TrimRight(c.PublicURL, "/") + httpapi.ObjectsPath)
		return store, store, nil
	}

	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:           c.S3Region,
		User:             c.S3RootUser,
		Password:         c.S3RootPassword,
		BaseEndpoint:     c.S3BaseEndpoint,
		Bucket:           c.S3Bucket,
		FailureThreshold: c.StorageFailureThreshold,
		OpenTimeout:      c.StorageOpenTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("object store init error: %w", err)
	}
	return store, nil, nil
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

// supervisor builds the service tree. Each service is restarted on failure.
func (app *App) supervisor() *suture.Supervisor {
	handler := &sutureslog.Handler{Logger: app.slog}
	sup := suture.New("gophmaps", suture.Spec{
		EventHook: handler.MustHook(),
		Timeout:   app.config.ShutdownTimeout,
	})
	sup.Add(app.server)
	sup.Add(app.sweeper)
	sup.Add(app.reconciler)
	return sup
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "address", app.config.HTTPAddress, "storage", app.config.StorageBackend)
	app.initSignalHandler(cancelFunc)

	err := app.supervisor().Serve(ctx)
	app.logger.Info(context.Background(), "App stopped")
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Close releases the database connection pool.
func (app *App) Close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err.Error())
		}
		app.db = nil
	}
}
