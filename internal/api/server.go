package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/agri-gateway/internal/audit"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/config"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/agri-gateway/internal/infrastructure/metrics"
	"github.com/nerrad567/agri-gateway/internal/relay"
	"github.com/nerrad567/agri-gateway/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CommandRelay sends actuator and configuration commands to the field devices.
type CommandRelay interface {
	Control(ctx context.Context, actuator string, cmd relay.ControlCommand) (relay.ControlCommand, error)
	UpdateConfig(ctx context.Context, update relay.ConfigUpdate) (relay.ConfigUpdate, error)
	BreakerState() string
}

// BusStatus reports the state of the message bus connection.
type BusStatus interface {
	IsConnected() bool
	Broker() string
	SubscribedTopics() []string
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Store   *telemetry.Store
	Relay   CommandRelay
	Bus     BusStatus
	Audit   audit.Repository // optional; /commands answers 503 without it
	Metrics *metrics.Metrics // optional
	Hub     *Hub             // if set, the server uses this hub instead of creating its own
	Version string
	Started time.Time
}

// Server is the HTTP API server for the gateway.
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	store   *telemetry.Store
	relay   CommandRelay
	bus     BusStatus
	audit   audit.Repository
	metrics *metrics.Metrics
	version string
	started time.Time
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc
}

// New creates a new API server. The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("telemetry store is required")
	}
	if deps.Relay == nil {
		return nil, fmt.Errorf("command relay is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("bus status is required")
	}

	started := deps.Started
	if started.IsZero() {
		started = time.Now()
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		store:   deps.Store,
		relay:   deps.Relay,
		bus:     deps.Bus,
		audit:   deps.Audit,
		metrics: deps.Metrics,
		version: deps.Version,
		started: started,
	}

	// The ingestor broadcasts through the same hub, so main usually builds it.
	if deps.Hub != nil {
		s.hub = deps.Hub
	}

	return s, nil
}

// Start builds the router and begins listening in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// An injected hub is run by its owner.
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger, s.metrics)
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	s.logger.Info("API server starting", "address", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
