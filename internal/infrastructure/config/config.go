package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Aquos bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	TV        TVConfig        `yaml:"tv"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig identifies the bridge and the TV it drives.
type BridgeConfig struct {
	// ID identifies this bridge instance in health messages.
	ID string `yaml:"id"`

	// DeviceID is the Gray Logic device ID of the TV.
	// Commands are accepted on graylogic/command/aquos/{device_id}.
	DeviceID string `yaml:"device_id"`

	// PollInterval is how often the TV state is refreshed (seconds).
	PollInterval int `yaml:"poll_interval"`

	// HealthInterval is how often bridge health is published (seconds).
	HealthInterval int `yaml:"health_interval"`

	// RetryAttempts is the total number of attempts per TV operation.
	RetryAttempts int `yaml:"retry_attempts"`
}

// TVConfig describes the link to the TV.
type TVConfig struct {
	// Address is a serial device ("/dev/ttyUSB0") or the TV's IP control
	// endpoint ("tcp://192.168.1.20:10002").
	Address string `yaml:"address"`

	// Region selects the embedded command map: us, eu, cn or jp.
	Region string `yaml:"region"`

	// CommandFile is an optional YAML command map that replaces the
	// embedded regional one.
	CommandFile string `yaml:"command_file,omitempty"`

	// PowerOnEnabled keeps the TV accepting power-on commands while in
	// standby. Uses slightly more standby power.
	PowerOnEnabled bool `yaml:"power_on_enabled"`

	BaudRate int     `yaml:"baud_rate"`
	DataBits int     `yaml:"data_bits"`
	StopBits float64 `yaml:"stop_bits"`
	Parity   string  `yaml:"parity"`

	// ReadTimeout and WriteTimeout are in milliseconds.
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP control API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// validRegions mirrors the embedded command maps.
var validRegions = []string{"us", "eu", "cn", "jp"}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AQUOS_SECTION_KEY
// For example: AQUOS_TV_ADDRESS, AQUOS_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Serial line settings follow the Aquos RS-232C manual (9600 8N1).
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "aquos-bridge",
			PollInterval:   10,
			HealthInterval: 30,
			RetryAttempts:  3,
		},
		TV: TVConfig{
			Region:       "us",
			BaudRate:     9600,
			DataBits:     8,
			StopBits:     1,
			Parity:       "N",
			ReadTimeout:  2000,
			WriteTimeout: 2000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "aquos-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "aquos",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AQUOS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bridge
	if v := os.Getenv("AQUOS_BRIDGE_DEVICE_ID"); v != "" {
		cfg.Bridge.DeviceID = v
	}

	// TV
	if v := os.Getenv("AQUOS_TV_ADDRESS"); v != "" {
		cfg.TV.Address = v
	}
	if v := os.Getenv("AQUOS_TV_REGION"); v != "" {
		cfg.TV.Region = v
	}
	if v := os.Getenv("AQUOS_TV_POWER_ON_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TV.PowerOnEnabled = b
		}
	}

	// MQTT
	if v := os.Getenv("AQUOS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AQUOS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AQUOS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("AQUOS_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("AQUOS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("AQUOS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	// Bridge validation
	if c.Bridge.DeviceID == "" {
		errs = append(errs, "bridge.device_id is required (set AQUOS_BRIDGE_DEVICE_ID environment variable)")
	}
	if c.Bridge.PollInterval < 1 {
		errs = append(errs, "bridge.poll_interval must be at least 1 second")
	}
	if c.Bridge.RetryAttempts < 1 {
		errs = append(errs, "bridge.retry_attempts must be at least 1")
	}

	// TV validation
	if c.TV.Address == "" {
		errs = append(errs, "tv.address is required (set AQUOS_TV_ADDRESS environment variable)")
	}
	if c.TV.CommandFile == "" && !slices.Contains(validRegions, c.TV.Region) {
		errs = append(errs, fmt.Sprintf("tv.region must be one of %s", strings.Join(validRegions, ", ")))
	}
	if c.TV.ReadTimeout < 1 {
		errs = append(errs, "tv.read_timeout must be positive")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetPollInterval returns the TV poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Bridge.PollInterval) * time.Second
}

// GetHealthInterval returns the health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetTVReadTimeout returns the per-byte reply timeout as a Duration.
func (c *Config) GetTVReadTimeout() time.Duration {
	return time.Duration(c.TV.ReadTimeout) * time.Millisecond
}

// GetTVWriteTimeout returns the frame write timeout as a Duration.
func (c *Config) GetTVWriteTimeout() time.Duration {
	return time.Duration(c.TV.WriteTimeout) * time.Millisecond
}
