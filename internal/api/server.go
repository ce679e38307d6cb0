package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gamepad-coop/internal/bridges/platform"
	"github.com/nerrad567/gamepad-coop/internal/gamepad"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/config"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HistoryReader is the journal query surface used by the history endpoints.
// *gamepad.SQLiteJournal satisfies it.
type HistoryReader interface {
	History(ctx context.Context, deviceID gamepad.DeviceID, limit int) ([]gamepad.Event, error)
	Recent(ctx context.Context, limit int) ([]gamepad.Event, error)
}

// HealthChecker is implemented by infrastructure components reported on
// /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionStatus reports whether a broker link is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// BridgeStatsProvider exposes platform bridge counters.
type BridgeStatsProvider interface {
	Stats() platform.BridgeStats
}

// PublisherStatsProvider exposes event publisher counters.
type PublisherStatsProvider interface {
	Stats() platform.PublisherStats
}

// DBStatsProvider exposes connection pool statistics.
type DBStatsProvider interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *gamepad.Registry

	// Optional collaborators. Endpoints that need a missing one answer 503.
	Journal   HistoryReader
	MQTT      ConnectionStatus
	Bridge    BridgeStatsProvider
	Publisher PublisherStatsProvider
	DB        DBStatsProvider

	// Health lists the components checked by /health, by name.
	Health map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for coopd.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *gamepad.Registry
	journal   HistoryReader
	mqtt      ConnectionStatus
	bridge    BridgeStatsProvider
	publisher PublisherStatsProvider
	db        DBStatsProvider
	health    map[string]HealthChecker
	version   string
	startTime time.Time

	server         *http.Server
	hub            *Hub
	cancel         context.CancelFunc
	detachObserver func()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("gamepad registry is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		journal:   deps.Journal,
		mqtt:      deps.MQTT,
		bridge:    deps.Bridge,
		publisher: deps.Publisher,
		db:        deps.DB,
		health:    deps.Health,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start attaches the WebSocket hub to the registry and begins listening for
// HTTP connections in a background goroutine. Stop it with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.detachObserver = s.registry.Observe(s.hub)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It detaches the hub from the registry, disconnects WebSocket clients and
// waits up to 10 seconds for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.detachObserver != nil {
		s.detachObserver()
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
