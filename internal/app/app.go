package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eboda/ride-hail-realtime/config"
	"github.com/eboda/ride-hail-realtime/internal/adapter/http/server"
	repo "github.com/eboda/ride-hail-realtime/internal/adapter/postgres"
	rabbitadapter "github.com/eboda/ride-hail-realtime/internal/adapter/rabbit"
	"github.com/eboda/ride-hail-realtime/internal/realtime"
	"github.com/eboda/ride-hail-realtime/internal/service/matching"
	"github.com/eboda/ride-hail-realtime/internal/service/ride"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	"github.com/eboda/ride-hail-realtime/pkg/postgres"
	"github.com/eboda/ride-hail-realtime/pkg/rabbit"
	"github.com/eboda/ride-hail-realtime/pkg/trm"
)

// App owns the wiring of the realtime coordination service: database,
// broker, websocket core, matching engine, ride lifecycle and the HTTP
// surface.
type App struct {
	postgresDB *postgres.PostgreDB
	rabbitMQ   *rabbit.RabbitMQ
	httpServer *server.API
	registry   *realtime.Registry

	cfg config.Config
	log logger.Logger
}

func New(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "Failed to setup database", err)
		return nil, err
	}

	rabbitMQ, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		log.Error(ctx, "Failed to connect to RabbitMQ", err)
		postgresDB.Close()
		return nil, err
	}

	producer := rabbitadapter.NewRideEventProducer(rabbitMQ)
	if err := producer.Setup(ctx); err != nil {
		log.Error(ctx, "Failed to declare broker exchange", err)
		postgresDB.Close()
		rabbitMQ.Close(ctx)
		return nil, err
	}

	txManager := trm.New(postgresDB.Pool)
	rideRepo := repo.NewRideRepo(postgresDB.Pool)
	driverRepo := repo.NewDriverRepo(postgresDB.Pool)

	// realtime core
	rooms := realtime.NewRoomRegistry()
	registry := realtime.NewRegistry(cfg.Realtime, rooms, log)
	dispatcher := realtime.NewDispatcher(cfg.Realtime, registry, rooms, log)

	eventHandlers := realtime.NewEventHandlers(cfg.Realtime, dispatcher, rooms, rideRepo, driverRepo, log)
	eventHandlers.RegisterAll()

	// services
	engine := matching.NewEngine(cfg.Matching, rideRepo, driverRepo, txManager, dispatcher, log)
	rideService := ride.NewService(rideRepo, driverRepo, engine, dispatcher, producer, txManager, log)

	httpServer, err := server.New(cfg, rideService, engine, registry, dispatcher, rideRepo, postgresDB.Pool, log)
	if err != nil {
		log.Error(ctx, "Failed to setup http server", err)
		postgresDB.Close()
		rabbitMQ.Close(ctx)
		return nil, err
	}

	return &App{
		postgresDB: postgresDB,
		rabbitMQ:   rabbitMQ,
		httpServer: httpServer,
		registry:   registry,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	a.registry.Start(ctx)
	a.httpServer.Run(ctx, errCh)
	defer func() {
		a.close(ctx)
		a.log.Info(ctx, "realtime service closed")
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info(ctx, "realtime service started", "port", a.cfg.Server.Port)

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		a.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (a *App) close(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Warn(ctx, "Failed to gracefully close http server", "error", err.Error())
		}
	}

	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(ctx); err != nil {
			a.log.Warn(ctx, "Failed to close RabbitMQ connection", "error", err.Error())
		}
	}

	if a.postgresDB != nil && a.postgresDB.Pool != nil {
		a.postgresDB.Pool.Close()
	}
}
