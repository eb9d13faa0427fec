// Package config loads YAML configuration with defaults and env
// overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Logger struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`

	Binance struct {
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443" validate:"required"`
		Instruments    []string      `yaml:"instruments" validate:"min=1"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"binance"`

	Engine struct {
		MaxTicksPerSeries int           `yaml:"max_ticks_per_series" default:"100000"`
		TickRetention     time.Duration `yaml:"tick_retention" default:"24h"`
		MaxBarsPerSeries  int           `yaml:"max_bars_per_series" default:"10000"`
		SeriesLimit       int           `yaml:"series_limit" default:"500"`
		FlushInterval     time.Duration `yaml:"flush_interval" default:"1s"`
		CacheTTL          time.Duration `yaml:"cache_ttl" default:"5s"`
		Durable           bool          `yaml:"durable" default:"true"`
		RestoreRetention  time.Duration `yaml:"restore_retention" default:"24h"`
	} `yaml:"engine"`

	Pipeline struct {
		MaxRPS     int `yaml:"max_rps" default:"50"`
		BufferSize int `yaml:"buffer_size" default:"1000"`
	} `yaml:"pipeline"`

	Alerts struct {
		Resolution   string        `yaml:"resolution" default:"1m"`
		Window       int           `yaml:"window" default:"20"`
		EvalInterval time.Duration `yaml:"eval_interval" default:"5s"`
	} `yaml:"alerts"`

	Kafka struct {
		Enabled     bool     `yaml:"enabled"`
		Brokers     []string `yaml:"brokers"`
		BarsTopic   string   `yaml:"bars_topic" default:"pairpulse.bars"`
		AlertsTopic string   `yaml:"alerts_topic" default:"pairpulse.alerts"`
		LogsTopic   string   `yaml:"logs_topic" default:"pairpulse.logs"`
		TicksTopic  string   `yaml:"ticks_topic"`
		Compression string   `yaml:"compression" default:"gzip"`
		Consumer    struct {
			GroupID    string        `yaml:"group_id" default:"pairpulse"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"pairpulse"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads a YAML file, applies defaults, env overrides, and
// validates the result. A missing file is not an error; defaults plus
// env then fully describe the configuration.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.applyEnv()

	if err := validator.New().Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Binance.Instruments = strings.Split(v, ",")
	}
	if v := os.Getenv("BINANCE_WS_URL"); v != "" {
		c.Binance.WebSocketURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}
