// README: Config loader with env defaults for HTTP, telemetry, ingestion API, monitor, storage and messaging.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "DRIVESAFE"

type MonitorConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	IdleThreshold  int           `mapstructure:"idle_threshold"`
	GraceDelay     time.Duration `mapstructure:"grace_delay"`
	EndTimeout     time.Duration `mapstructure:"end_timeout"`
	ForwardTimeout time.Duration `mapstructure:"forward_timeout"`
}

type Config struct {
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	Telemetry struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"telemetry"`
	API struct {
		BaseURL string        `mapstructure:"base_url"`
		Token   string        `mapstructure:"token"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Store   struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"store"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"redis"`
	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Kafka struct {
		Brokers string `mapstructure:"brokers"`
		Topic   string `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Firebase struct {
		ProjectID       string `mapstructure:"project_id"`
		CredentialsFile string `mapstructure:"credentials_file"`
		DeviceToken     string `mapstructure:"device_token"`
	} `mapstructure:"firebase"`
}

var defaults = map[string]any{
	"http.addr":                 ":8090",
	"telemetry.url":             "http://192.0.0.2:9999/20250530_070001.json",
	"telemetry.timeout":         "10s",
	"api.base_url":              "http://localhost:8080/api",
	"api.token":                 "",
	"api.timeout":               "10s",
	"monitor.poll_interval":     "5s",
	"monitor.idle_threshold":    5,
	"monitor.grace_delay":       "3s",
	"monitor.end_timeout":       "5s",
	"monitor.forward_timeout":   "4s",
	"store.driver":              "memory",
	"redis.addr":                "localhost:6379",
	"redis.password":            "",
	"redis.prefix":              "drivesafe:",
	"db.dsn":                    "",
	"kafka.brokers":             "",
	"kafka.topic":               "drivesafe.live-trip",
	"firebase.project_id":       "",
	"firebase.credentials_file": "",
	"firebase.device_token":     "",
}

// Load reads DRIVESAFE_* environment variables on top of the defaults.
// Nested keys use underscores: monitor.poll_interval is DRIVESAFE_MONITOR_POLL_INTERVAL.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Telemetry.URL == "" {
		return fmt.Errorf("telemetry url is required")
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor poll interval must be positive, got %s", c.Monitor.PollInterval)
	}
	if c.Monitor.IdleThreshold <= 0 {
		return fmt.Errorf("monitor idle threshold must be positive, got %d", c.Monitor.IdleThreshold)
	}
	if c.Monitor.GraceDelay < 0 {
		return fmt.Errorf("monitor grace delay must not be negative, got %s", c.Monitor.GraceDelay)
	}
	switch c.Store.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// KafkaBrokers splits the comma separated broker list, dropping blanks.
func (c Config) KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
