package config

import (
	"fmt"
	"time"

	"github.com/eboda/ride-hail-realtime/pkg/configparser"
)

// Config contains all configuration variables of the service.
type (
	Config struct {
		Server   ServerConfig
		Database DatabaseConfig
		RabbitMQ RabbitMQConfig
		Auth     AuthConfig
		Realtime RealtimeConfig
		Matching MatchingConfig
		LogLevel string `env:"LOG_LEVEL" default:"INFO"`
	}

	ServerConfig struct {
		Port string `env:"SERVER_PORT" default:"8080"`
	}

	DatabaseConfig struct {
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"eboda_user"`
		Password string `env:"DATABASE_PASSWORD" default:"eboda_pass"`
		Database string `env:"DATABASE_DATABASE" default:"eboda_db"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`
	}

	AuthConfig struct {
		JWTSecret string `env:"AUTH_JWT_SECRET" default:"supersecretkey"`
	}

	// RealtimeConfig holds the liveness and delivery tunables of the
	// websocket layer.
	RealtimeConfig struct {
		HeartbeatInterval time.Duration `env:"REALTIME_HEARTBEAT_INTERVAL" default:"15s"`
		HeartbeatTimeout  time.Duration `env:"REALTIME_HEARTBEAT_TIMEOUT" default:"45s"`
		PingInterval      time.Duration `env:"REALTIME_PING_INTERVAL" default:"10s"`
		CleanupInterval   time.Duration `env:"REALTIME_CLEANUP_INTERVAL" default:"30s"`
		SendTimeout       time.Duration `env:"REALTIME_SEND_TIMEOUT" default:"5s"`

		LocationThrottle    time.Duration `env:"REALTIME_LOCATION_THROTTLE" default:"400ms"`
		LocationMinDistance float64       `env:"REALTIME_LOCATION_MIN_DISTANCE_METERS" default:"1"`
	}

	MatchingConfig struct {
		SearchRadiusKm float64       `env:"MATCHING_SEARCH_RADIUS_KM" default:"5"`
		PendingTTL     time.Duration `env:"MATCHING_PENDING_TTL" default:"10m"`
		MaxAttempts    int           `env:"MATCHING_MAX_ATTEMPTS" default:"5"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

// NewConfig loads environment variables from the YAML file (if any)
// and parses them into a Config.
func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	return cfg, nil
}
