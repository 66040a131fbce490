package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yaml:"env" env-default:"local"`
	Postgres Postgres `yaml:"postgres"`
	Server   Server   `yaml:"server" env-required:"true"`
	Listener Listener `yaml:"listener"`
	Poller   Poller   `yaml:"poller"`
	AI       AI       `yaml:"ai"`
	Retry    Retry    `yaml:"retry"`
}

type Postgres struct {
	Username        string        `env:"POSTGRES_USER" env-required:"true"`
	Password        string        `env:"POSTGRES_PASSWORD" env-required:"true"`
	Host            string        `yaml:"host" env-required:"true"`
	Port            string        `env:"POSTGRES_PORT" env-required:"true"`
	Database        string        `env:"POSTGRES_DB" env-required:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns" env-default:"50"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env-default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env-default:"1m"`
}

func (p Postgres) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.Username, p.Password, p.Host, p.Port, p.Database,
	)
}

type Server struct {
	Host    string        `yaml:"host" env-default:"localhost"`
	Port    string        `yaml:"port" env-default:"8080"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

// Listener configures the LISTEN/NOTIFY change feed.
// The listener holds its own dedicated connection, outside the general pool.
type Listener struct {
	Enabled      bool          `yaml:"enabled" env-default:"true"`
	MinReconnect time.Duration `yaml:"min_reconnect" env-default:"5s"`
	MaxReconnect time.Duration `yaml:"max_reconnect" env-default:"1m"`
	PingInterval time.Duration `yaml:"ping_interval" env-default:"90s"`
}

// Poller configures the reconciliation safety net. Deployments set a short
// interval (~2s) when the listener is disabled and a long one (30-60s)
// behind an active listener.
type Poller struct {
	Interval     time.Duration `yaml:"interval" env-default:"30s"`
	BatchSize    int           `yaml:"batch_size" env-default:"10"`
	ErrorBackoff time.Duration `yaml:"error_backoff" env-default:"5s"`
}

type AI struct {
	APIKey      string        `env:"GEMINI_API_KEY" env-required:"true"`
	Model       string        `yaml:"model" env:"GEMINI_AI_MODEL" env-default:"gemini-2.5-flash"`
	Endpoint    string        `yaml:"endpoint" env-default:"https://generativelanguage.googleapis.com/v1beta"`
	Timeout     time.Duration `yaml:"timeout" env-default:"30s"`
	MaxAttempts int           `yaml:"max_attempts" env-default:"3"`
	Temperature float32       `yaml:"temperature" env-default:"0.3"`
	MaxTokens   int           `yaml:"max_tokens" env-default:"1024"`
}

// Retry configures the background enrichment retry sweep.
type Retry struct {
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1m"`
	Cooldown      time.Duration `yaml:"cooldown" env-default:"5m"`
	MaxAttempts   int           `yaml:"max_attempts" env-default:"5"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return nil, errors.New("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file does not exist: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}

	return cfg
}
