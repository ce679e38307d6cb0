// coopd tracks which gamepads belong to which players in a local co-op
// session.
//
// It listens to the platform input layer over MQTT, keeps the device to
// user table in memory, journals every change to SQLite and serves the
// table over HTTP and WebSocket.
//
// Usage:
//
//	coopd                                   run the daemon
//	coopd token -subject NAME -role ROLE    print an access token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gamepad-coop/migrations"

	"github.com/nerrad567/gamepad-coop/internal/api"
	"github.com/nerrad567/gamepad-coop/internal/auth"
	"github.com/nerrad567/gamepad-coop/internal/bridges/platform"
	"github.com/nerrad567/gamepad-coop/internal/gamepad"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/config"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/database"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/influxdb"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/logging"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// pruneInterval is how often the journal is trimmed to the retention window.
const pruneInterval = time.Hour

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the daemon, separated from main for testability.
// Deferred cleanups run in reverse start order on return.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting coopd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	registry := gamepad.NewRegistry()
	registry.SetLogger(log.Component("registry"))

	journal := gamepad.NewSQLiteJournal(db.DB)
	journal.SetLogger(log.Component("journal"))
	detachJournal := journal.Attach(registry)
	defer detachJournal()

	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	influxClient, err := connectInflux(ctx, cfg, registry, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	bridge, err := platform.NewBridge(platform.BridgeOptions{
		MQTTClient:       mqttClient,
		Registry:         registry,
		Logger:           log.Component("platform"),
		QoS:              cfg.InputQoS(),
		RequestTimeout:   cfg.GetRequestTimeout(),
		EnumerateOnStart: cfg.Input.EnumerateOnStart,
	})
	if err != nil {
		return fmt.Errorf("creating platform bridge: %w", err)
	}
	registry.SetAuthority(bridge)
	registry.SetHardwareResolver(bridge)

	publisher, err := platform.NewEventPublisher(platform.PublisherOptions{
		MQTTClient: mqttClient,
		Hardware:   bridge,
		Logger:     log.Component("publisher"),
		QoS:        byte(cfg.MQTT.QoS),
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	publisher.Start()
	detachPublisher := publisher.Attach(registry)
	defer func() {
		detachPublisher()
		publisher.Stop()
	}()

	health := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		health["influxdb"] = influxClient
	}

	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Registry:  registry,
		Journal:   journal,
		MQTT:      mqttClient,
		Bridge:    bridge,
		Publisher: publisher,
		DB:        db,
		Health:    health,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Observers are attached; live platform events may flow from here on.
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting platform bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping platform bridge")
		bridge.Stop()
	}()
	log.Info("platform bridge started", "gamepads", registry.Count())

	if err := healthCheck(ctx, health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pruneHistory(gctx, journal, cfg.GetHistoryRetention(), log)
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// connectInflux connects the optional metrics writer and attaches it to the
// registry. It returns nil when InfluxDB is disabled.
func connectInflux(ctx context.Context, cfg *config.Config, registry *gamepad.Registry, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Session.ID)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	gamepad.AttachMetrics(registry, client)

	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// healthCheck verifies every infrastructure connection, in a fixed order.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		check, ok := checks[name]
		if !ok {
			continue
		}
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// historyPruner is the journal surface used by pruneHistory.
type historyPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneHistory trims the journal once at startup and then every
// pruneInterval until ctx is cancelled. A zero retention keeps everything.
// Prune failures are logged, never fatal.
func pruneHistory(ctx context.Context, journal historyPruner, retention time.Duration, log *logging.Logger) error {
	if retention <= 0 {
		<-ctx.Done()
		return nil
	}

	prune := func() {
		n, err := journal.Prune(ctx, retention)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			log.Warn("pruning gamepad history failed", "error", err)
		case n > 0:
			log.Info("pruned gamepad history", "deleted", n, "retention", retention.String())
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prune()
		}
	}
}

// runToken prints a signed access token for the API.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("subject", "", "token subject, e.g. a console or operator name")
	role := fs.String("role", string(auth.RoleViewer), "viewer or operator")
	ttl := fs.Int("ttl", 0, "lifetime in minutes (default security.jwt.access_token_ttl)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing token flags: %w", err)
	}

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	minutes := *ttl
	if minutes <= 0 {
		minutes = cfg.Security.JWT.AccessTokenTTL
	}

	token, err := auth.GenerateAccessToken(*subject, auth.Role(*role), cfg.Session.ID, cfg.Security.JWT.Secret, minutes)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
