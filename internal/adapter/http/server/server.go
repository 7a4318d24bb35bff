package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eboda/ride-hail-realtime/config"
	"github.com/eboda/ride-hail-realtime/internal/adapter/http/handler"
	"github.com/eboda/ride-hail-realtime/internal/adapter/http/middleware"
	"github.com/eboda/ride-hail-realtime/internal/realtime"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
	"github.com/eboda/ride-hail-realtime/pkg/token"
)

const serverIPAddress = "%s:%s"

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	ride   *handler.Ride
	ws     *handler.WS
	stats  *handler.Stats
	health *handler.Health
}

func New(
	cfg config.Config,
	rideService handler.RideService,
	matchingService handler.MatchingService,
	registry *realtime.Registry,
	dispatcher *realtime.Dispatcher,
	rides realtime.RideStore,
	db handler.Pinger,
	log logger.Logger,
) (*API, error) {
	if rideService == nil {
		return nil, errors.New("ride service is required")
	}

	addr := fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Server.Port)

	routes := &handlers{
		ride:   handler.NewRide(rideService, matchingService, log),
		ws:     handler.NewWS(registry, dispatcher, rides, log),
		stats:  handler.NewStats(registry, log),
		health: handler.NewHealth("ride-hail-realtime", db, log),
	}

	verifier := token.NewVerifier(cfg.Auth.JWTSecret)
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	mid := middleware.NewMiddleware(verifier, limiter, log)

	api := &API{
		mux:    http.NewServeMux(),
		routes: routes,
		m:      mid,
		addr:   addr,
		cfg:    cfg,
		log:    log,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.withMiddleware(),
	}

	return api, nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

// withMiddleware applies the global middleware chain to the mux.
func (a *API) withMiddleware() http.Handler {
	return a.m.Recover(a.m.RequestID(a.m.Logging(a.m.Metrics(a.m.Auth(a.m.RateLimit(a.mux))))))
}
