package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	BackendScylla   = "scylla"
	BackendPostgres = "postgres"

	FanoutLocal = "local"
	FanoutKafka = "kafka"
)

// devSecret signs tokens when running locally without JWT_SECRET.
const devSecret = "dev-secret-change-me"

// Config is shared by the api, gateway and migrate binaries. Variable names
// match the ones the services have always read.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	APIAddr        string   `envconfig:"API_ADDR" default:":8081"`
	GatewayAddr    string   `envconfig:"GATEWAY_ADDR" default:":8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	StoreBackend      string        `envconfig:"STORE_BACKEND" default:"scylla"`
	ScyllaHosts       []string      `envconfig:"SCYLLA_HOSTS" default:"localhost:9042"`
	ScyllaKeyspace    string        `envconfig:"SCYLLA_KEYSPACE" default:"chat"`
	ScyllaConsistency string        `envconfig:"SCYLLA_CONSISTENCY" default:"QUORUM"` // any gocql name, e.g. LOCAL_QUORUM
	ScyllaTimeout     time.Duration `envconfig:"SCYLLA_TIMEOUT" default:"5s"`
	DatabaseURL       string        `envconfig:"DATABASE_URL"`

	RedisAddr       string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	ProfileCacheTTL time.Duration `envconfig:"PROFILE_CACHE_TTL" default:"5m"`

	Fanout       string   `envconfig:"FANOUT" default:"local"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:19092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"chat-messages"`

	// NodeID must be unique per running instance; it seeds message ids.
	NodeID int64 `envconfig:"NODE_ID" default:"1"`

	SendRate   float64 `envconfig:"SEND_RATE" default:"5"`
	SendBurst  int     `envconfig:"SEND_BURST" default:"10"`
	PushBuffer int     `envconfig:"PUSH_BUFFER" default:"256"`
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("config: JWT_SECRET is required outside development")
		}
		c.JWTSecret = devSecret
	}
	switch c.StoreBackend {
	case BackendScylla:
		if len(c.ScyllaHosts) == 0 {
			return errors.New("config: SCYLLA_HOSTS is empty")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres backend")
		}
	default:
		return errors.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.Fanout {
	case FanoutLocal:
	case FanoutKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("config: KAFKA_BROKERS is empty")
		}
	default:
		return errors.Errorf("config: unknown FANOUT %q", c.Fanout)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return errors.Errorf("config: NODE_ID %d out of range", c.NodeID)
	}
	if c.SendRate <= 0 || c.SendBurst <= 0 {
		return errors.New("config: SEND_RATE and SEND_BURST must be positive")
	}
	if c.PushBuffer <= 0 {
		return errors.New("config: PUSH_BUFFER must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
