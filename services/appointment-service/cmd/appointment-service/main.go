package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/paventhan183/dr-appointment/libs/auth"
	"github.com/paventhan183/dr-appointment/libs/config"
	"github.com/paventhan183/dr-appointment/libs/httpx"
	"github.com/paventhan183/dr-appointment/libs/kafkax"
	otelx "github.com/paventhan183/dr-appointment/libs/otel"
	"github.com/paventhan183/dr-appointment/libs/runtime"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/events"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/grpcserver"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/handlers"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/keepalive"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadWithConfigKey(".env", "CONFIG_FILE"); err != nil {
		runtime.NewLogger("appointment-service", "info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	s, err := loadSettings()
	if err != nil {
		runtime.NewLogger(config.String("SERVICE_NAME", "appointment-service"), "info").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(s.service, s.logLevel)

	var issuer *auth.Issuer
	if s.authEnabled {
		issuer, err = auth.NewIssuer(s.jwtSecret, auth.DefaultTTL)
		if err != nil {
			logger.Error("auth setup failed", "err", err)
			os.Exit(1)
		}
		logger.Info("auth gate enabled")
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(s.service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	store, pingable, err := openStore(ctx, s, logger)
	if err != nil {
		logger.Error("store connection failed", "backend", s.backend, "err", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("store close failed", "err", err)
		}
	}()

	checks := []runtime.ReadyCheck{{Name: "store", Check: store.Ping}}

	var rdb *redis.Client
	if s.redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     s.redisAddr,
			Password: s.redisPassword,
			DB:       s.redisDB,
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}
	if len(s.kafkaBrokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(s.kafkaBrokers)})
	}

	var workers sync.WaitGroup
	defer workers.Wait()
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var publisher events.Publisher = events.Noop{}
	if len(s.kafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(logger, events.PublisherConfig{Brokers: s.kafkaBrokers, Topic: s.kafkaTopic})
		publisher = kp
		workers.Add(1)
		go func() {
			defer workers.Done()
			kp.Run(workerCtx)
		}()
		logger.Info("event publishing enabled", "topic", s.kafkaTopic)
	} else {
		logger.Info("event publishing disabled (no kafka brokers configured)")
	}

	if pingable {
		w := keepalive.NewWorker(store, logger, s.keepAliveInterval)
		workers.Add(1)
		go func() {
			defer workers.Done()
			w.Run(workerCtx)
		}()
	}

	if s.grpcPort != "" {
		health := grpcserver.NewHealth(s.service, checks, s.healthRefresh, logger)
		grpcSrv := grpcserver.NewServer(logger)
		health.Register(grpcSrv)
		if err := grpcserver.Start(workerCtx, grpcSrv, s.grpcPort, logger); err != nil {
			logger.Error("grpc server failed to start", "err", err)
		} else {
			workers.Add(1)
			go func() {
				defer workers.Done()
				health.Run(workerCtx)
			}()
		}
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Store:  store,
		Events: publisher,
		Logger: logger,
		Issuer: issuer,
		Base:   runtime.NewBaseMuxWithReady(checks...),
	})

	handler := httpx.Chain(router,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(s.bodyLimit)),
		httpx.WithTimeout(s.requestTimeout),
		rateLimit(s, rdb, logger),
	)
	handler = otelhttp.NewHandler(handler, "appointments")
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "backend", s.backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	stopWorkers()
}

func rateLimit(s settings, rdb *redis.Client, logger *slog.Logger) httpx.Middleware {
	if s.rateLimitPerMinute <= 0 {
		return nil
	}
	if rdb != nil {
		logger.Info("rate limiting enabled (redis)", "per_minute", s.rateLimitPerMinute, "redis_addr", s.redisAddr)
		return httpx.NewRedisRateLimiter(rdb, s.rateLimitPerMinute, time.Minute, "rl:"+s.service).Middleware(logger, s.rateLimitFailOpen)
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", s.rateLimitPerMinute)
	return httpx.NewRateLimiter(s.rateLimitPerMinute, time.Minute).Middleware()
}
