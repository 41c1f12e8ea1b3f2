package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/paventhan183/dr-appointment/libs/config"
	"github.com/paventhan183/dr-appointment/libs/kafkax"
	"github.com/paventhan183/dr-appointment/libs/mongox"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/events"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/grpcserver"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/keepalive"
)

const (
	backendMongo    = "mongo"
	backendFile     = "file"
	backendPostgres = "postgres"
)

type settings struct {
	service  string
	port     string
	logLevel string

	backend       string
	mongoURI      string
	mongoDatabase string
	dataFile      string
	databaseURL   string

	authEnabled bool
	jwtSecret   string

	keepAliveInterval time.Duration
	requestTimeout    time.Duration
	bodyLimit         int

	rateLimitPerMinute int
	rateLimitFailOpen  bool
	redisAddr          string
	redisPassword      string
	redisDB            int

	corsOrigins []string

	kafkaBrokers []string
	kafkaTopic   string

	grpcPort      string
	healthRefresh time.Duration
}

func loadSettings() (settings, error) {
	s := settings{
		service:       config.String("SERVICE_NAME", "appointment-service"),
		logLevel:      config.String("LOG_LEVEL", "info"),
		backend:       strings.ToLower(config.String("STORE_BACKEND", backendMongo)),
		mongoURI:      config.String("MONGO_URI", "mongodb://127.0.0.1:27017/"+mongox.DefaultDatabase),
		mongoDatabase: config.String("MONGO_DATABASE", ""),
		dataFile:      config.String("DATA_FILE", "data/appointments.json"),
		authEnabled:   config.Bool("AUTH_ENABLED", false),
		redisAddr:     config.String("REDIS_ADDR", ""),
		redisPassword: config.String("REDIS_PASSWORD", ""),
		corsOrigins:   config.List("CORS_ALLOWED_ORIGINS", "*"),
		kafkaBrokers:  kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")),
		kafkaTopic:    config.String("KAFKA_TOPIC", events.DefaultTopic),

		rateLimitFailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
	}

	var err error
	if s.port, err = config.Port("PORT", "3000"); err != nil {
		return s, err
	}
	if s.grpcPort, err = config.OptionalPort("GRPC_PORT"); err != nil {
		return s, err
	}
	if s.keepAliveInterval, err = config.Duration("KEEPALIVE_INTERVAL", keepalive.DefaultInterval); err != nil {
		return s, err
	}
	if s.requestTimeout, err = config.Duration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return s, err
	}
	if s.healthRefresh, err = config.Duration("HEALTH_REFRESH_INTERVAL", grpcserver.DefaultRefreshInterval); err != nil {
		return s, err
	}
	if s.bodyLimit, err = config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20); err != nil {
		return s, err
	}
	if s.rateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 0); err != nil {
		return s, err
	}
	if s.redisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return s, err
	}

	switch s.backend {
	case backendMongo, backendFile:
	case backendPostgres:
		if s.databaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("STORE_BACKEND must be one of mongo, file, postgres, got %q", s.backend)
	}

	if s.authEnabled {
		if s.jwtSecret, err = config.RequiredString("JWT_SECRET"); err != nil {
			return s, err
		}
	}
	return s, nil
}
