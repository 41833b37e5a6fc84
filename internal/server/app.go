// Package server wires the varejo backend: Postgres, object storage, the
// realtime listener, services, the gRPC endpoint and background jobs.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/server/config"
	"github.com/dmitrijs2005/varejo/internal/server/photos"
	"github.com/dmitrijs2005/varejo/internal/server/realtime"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/varejo/internal/server/services"
	"github.com/dmitrijs2005/varejo/internal/server/storage"

	gs "github.com/dmitrijs2005/varejo/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	hub        *realtime.Hub
	listener   *realtime.Listener
	grpcServer *gs.GRPCServer
	cashierJob *services.CashierJob
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)

	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager(c.PageSize)
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := storage.NewS3Store(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	hub := realtime.NewHub()
	audit := services.NewAuditEmitter(db, rm)
	as := services.NewAuthService(db, rm, c, logger)
	rs := services.NewRecordService(db, rm, photos.NewReconciler(store, c.S3BucketPrefix, logger), as, audit, logger)
	ps := services.NewPermissionService(db, rm, hub, audit, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		hub:        hub,
		listener:   realtime.NewListener(c.DatabaseDSN, realtime.PermissionsChannel, hub, logger),
		grpcServer: gs.NewGRPCServer(c.EndpointAddrGRPC, logger, as, rs, ps),
		cashierJob: services.NewCashierJob(rs, c.CashierCheckInterval, loc, logger),
	}, nil
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startListener(ctx context.Context) {
	if err := app.listener.Run(ctx); err != nil {
		app.logger.Error(ctx, "realtime listener stopped", "error", err)
	}
}

// Run blocks until a termination signal arrives or the gRPC server fails,
// then waits for every component to stop.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startListener(ctx)
	}()
	go func() {
		defer wg.Done()
		app.cashierJob.Run(ctx)
	}()

	wg.Wait()

	app.hub.CloseAll()
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
