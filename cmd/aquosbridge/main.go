// Aquos Bridge - Gray Logic protocol bridge for Sharp Aquos televisions.
//
// This is the main entry point for the bridge. It connects one Aquos TV,
// over RS-232 or its IP control port, to the Gray Logic MQTT bus and
// optionally exposes an HTTP control API and InfluxDB telemetry.
//
// Configuration: configs/aquos.yaml (override with -config or AQUOS_CONFIG).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-aquos/internal/api"
	"github.com/nerrad567/gray-logic-aquos/internal/bridges/aquos"
	"github.com/nerrad567/gray-logic-aquos/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-aquos/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-aquos/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-aquos/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/aquos.yaml"

var configFlag = flag.String("config", "", "path to the configuration file")

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Aquos bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
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

	commands, err := loadCommands(cfg.TV)
	if err != nil {
		return err
	}
	log.Info("command table loaded",
		"region", commands.Region(),
		"inputs", len(commands.Inputs()),
	)

	// Open the TV link. A TV in deep standby may not answer yet; the
	// poll loop reports it as off until it does.
	transport, err := aquos.Open(ctx, aquos.ConnectionParams{
		Address:      cfg.TV.Address,
		BaudRate:     cfg.TV.BaudRate,
		DataBits:     cfg.TV.DataBits,
		StopBits:     cfg.TV.StopBits,
		Parity:       cfg.TV.Parity,
		ReadTimeout:  cfg.GetTVReadTimeout(),
		WriteTimeout: cfg.GetTVWriteTimeout(),
	})
	if err != nil {
		return fmt.Errorf("opening TV link: %w", err)
	}
	defer func() {
		log.Info("closing TV link")
		if closeErr := transport.Close(); closeErr != nil {
			log.Error("error closing TV link", "error", closeErr)
		}
	}()
	log.Info("TV link open", "address", transport.Address())

	tvLog := log.Component("aquos")
	client, err := aquos.NewClient(aquos.ClientOptions{
		Commands:       commands,
		Transport:      transport,
		Logger:         tvLog,
		PowerOnEnabled: cfg.TV.PowerOnEnabled,
	})
	if err != nil {
		return fmt.Errorf("creating TV client: %w", err)
	}

	player, err := aquos.NewPlayer(aquos.PlayerOptions{
		Client: client,
		Retry: aquos.RetryPolicy{
			Attempts: cfg.Bridge.RetryAttempts,
			Logger:   tvLog,
		},
		Logger: tvLog,
	})
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}

	// Connect to MQTT broker. The broker publishes the bridge's offline
	// health message if the connection drops.
	lwt, err := aquos.LWTPayload(cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("building LWT payload: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.Presence{
		Topic: aquos.HealthTopic(),
		Will:  lwt,
	})
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, map[string]string{"bridge": cfg.Bridge.ID})
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	bridgeOpts := aquos.BridgeOptions{
		BridgeID:       cfg.Bridge.ID,
		DeviceID:       cfg.Bridge.DeviceID,
		Version:        version,
		PollInterval:   cfg.GetPollInterval(),
		HealthInterval: cfg.GetHealthInterval(),
		Player:         player,
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Logger:         log.Component("bridge"),
	}
	// A nil *influxdb.Client must not become a non-nil interface.
	if influxClient != nil {
		bridgeOpts.Telemetry = influxClient
	}

	bridge, err := aquos.NewBridge(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log.Component("api"),
			Controller: bridge,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server listening", "addr", srv.Addr())
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Bridge
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. TV link

	log.Info("Aquos bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// The -config flag wins over the AQUOS_CONFIG environment variable, which
// wins over the default.
func getConfigPath() string {
	if *configFlag != "" {
		return *configFlag
	}
	if path := os.Getenv("AQUOS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadCommands returns the command file when one is configured, otherwise
// the embedded table for the region.
func loadCommands(cfg config.TVConfig) (*aquos.CommandTable, error) {
	if cfg.CommandFile != "" {
		table, err := aquos.LoadCommandTableFile(cfg.CommandFile)
		if err != nil {
			return nil, fmt.Errorf("loading command file %s: %w", cfg.CommandFile, err)
		}
		return table, nil
	}
	table, err := aquos.LoadCommandTable(cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("loading %s command table: %w", cfg.Region, err)
	}
	return table, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The TV itself is not checked: a TV in standby is a normal state and
	// is reported through the bridge's health messages instead.
	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the Aquos
// bridge's MQTTClient interface. The difference is the Subscribe handler
// signature:
//   - Infrastructure mqtt: func(topic, payload []byte) error
//   - Aquos bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements aquos.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements aquos.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements aquos.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
