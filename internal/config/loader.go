package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAmpPort is the fixed port of the amplifier HTTP API
	DefaultAmpPort = 50230
	// DefaultPianodPort is the fixed port of the pianod playback socket
	DefaultPianodPort = 4446
	// DefaultMaxVolumePercent caps the volume exposed to users
	DefaultMaxVolumePercent = 80
)

// Config is the configuration of one integration instance
type Config struct {
	Host             string        `yaml:"host"`
	AmpPort          int           `yaml:"amp_port"`
	PianodPort       int           `yaml:"pianod_port"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	ScanInterval     time.Duration `yaml:"scan_interval"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	ReceiveTimeout   time.Duration `yaml:"receive_timeout"`
	MaxDiscarded     int           `yaml:"max_discarded"`
	MaxVolumePercent int           `yaml:"max_volume_percent"`
	Platforms        []string      `yaml:"platforms"`
	ReadOnly         bool          `yaml:"read_only"`
	DataDir          string        `yaml:"data_dir"`
	API              APIConfig     `yaml:"api"`
	MQTT             MQTTConfig    `yaml:"mqtt"`
}

// APIConfig configures the HTTP API server
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// MQTTConfig configures the Home Assistant MQTT discovery bridge
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	DeviceName      string `yaml:"device_name"`
}

// Default returns a configuration with every optional field populated
func Default() *Config {
	return &Config{
		AmpPort:          DefaultAmpPort,
		PianodPort:       DefaultPianodPort,
		PollInterval:     5 * time.Second,
		ScanInterval:     10 * time.Second,
		RequestTimeout:   time.Second,
		ReceiveTimeout:   10 * time.Second,
		MaxDiscarded:     256,
		MaxVolumePercent: DefaultMaxVolumePercent,
		Platforms:        []string{"media_player", "number"},
		DataDir:          ".",
		API: APIConfig{
			Enabled: true,
			Port:    8081,
		},
		MQTT: MQTTConfig{
			DiscoveryPrefix: "homeassistant",
			DeviceName:      "monoamp",
		},
	}
}

// Loader reads the YAML configuration file and applies environment overrides
type Loader struct {
	path   string
	logger *zap.Logger
	getenv func(string) string
}

// NewLoader creates a new configuration loader. An empty path means
// configuration comes from the environment only.
func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{
		path:   path,
		logger: logger,
		getenv: os.Getenv,
	}
}

// Load builds the configuration: defaults, then the file, then the environment
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		l.logger.Debug("Loading config file", zap.String("path", l.path))

		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.logger.Info("Configuration loaded",
		zap.String("host", cfg.Host),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("max_volume_percent", cfg.MaxVolumePercent),
		zap.Bool("read_only", cfg.ReadOnly),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
		zap.Bool("api", cfg.API.Enabled))
	return cfg, nil
}

// applyEnv overrides file values with MONOAMP_* environment variables
func (l *Loader) applyEnv(cfg *Config) error {
	if v := l.getenv("MONOAMP_HOST"); v != "" {
		cfg.Host = v
	}
	if v := l.getenv("MONOAMP_READ_ONLY"); v != "" {
		cfg.ReadOnly = v == "true"
	}
	if v := l.getenv("MONOAMP_MAX_VOLUME_PERCENT"); v != "" {
		pct, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MONOAMP_MAX_VOLUME_PERCENT %q: %w", v, err)
		}
		cfg.MaxVolumePercent = pct
	}
	if v := l.getenv("MONOAMP_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MONOAMP_POLL_INTERVAL %q: %w", v, err)
		}
		cfg.PollInterval = d
	}
	if v := l.getenv("MONOAMP_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MONOAMP_API_PORT %q: %w", v, err)
		}
		cfg.API.Port = port
	}
	if v := l.getenv("MONOAMP_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
		cfg.MQTT.Enabled = true
	}
	if v := l.getenv("MONOAMP_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := l.getenv("MONOAMP_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	return nil
}

// Validate checks the configuration for values the clients cannot work with
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must be set")
	}
	if c.MaxVolumePercent <= 0 || c.MaxVolumePercent > 100 {
		return fmt.Errorf("max_volume_percent must be in 1..100, got %d", c.MaxVolumePercent)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive")
	}
	if c.RequestTimeout <= 0 || c.ReceiveTimeout <= 0 {
		return fmt.Errorf("request_timeout and receive_timeout must be positive")
	}
	if c.MaxDiscarded <= 0 {
		return fmt.Errorf("max_discarded must be positive")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must be set when mqtt is enabled")
	}
	return nil
}

// AmpEndpoint returns the base URL of the amplifier HTTP API
func (c *Config) AmpEndpoint() string {
	return fmt.Sprintf("http://%s:%d/api", c.Host, c.AmpPort)
}

// PianodURL returns the WebSocket URL of the playback controller
func (c *Config) PianodURL() string {
	return fmt.Sprintf("ws://%s:%d/pianod/?protocol=json", c.Host, c.PianodPort)
}

// PlatformEnabled reports whether the named platform should be set up
func (c *Config) PlatformEnabled(name string) bool {
	for _, p := range c.Platforms {
		if p == name {
			return true
		}
	}
	return false
}
