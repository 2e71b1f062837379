package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/gateway/identity"
	"github.com/arklim/practicum-auth/internal/infra/config"
	"github.com/arklim/practicum-auth/internal/infra/database"
	kafkainfra "github.com/arklim/practicum-auth/internal/infra/kafka"
	"github.com/arklim/practicum-auth/internal/infra/logger"
	redisinfra "github.com/arklim/practicum-auth/internal/infra/redis"
	"github.com/arklim/practicum-auth/internal/infra/telemetry"
	postgresrepo "github.com/arklim/practicum-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/practicum-auth/internal/repository/redis"
	"github.com/arklim/practicum-auth/internal/transport/http/routes"
	"github.com/arklim/practicum-auth/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	consumer *kafkainfra.SessionConsumer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewAuthMetrics(registry)

	repos := postgresrepo.NewRepositories(pool)

	attemptStore := redisrepo.NewAttemptLogRepository(redisClient.Client(), redisrepo.AttemptLogConfig{
		LogKey:        cfg.Redis.AttemptLogKey,
		LockoutPrefix: cfg.Redis.LockoutPrefix,
	}, log)

	var producer *kafkainfra.Producer
	var eventPublisher port.SessionEventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewSessionEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	gateway := identity.NewClient(cfg.Identity, log)

	store := usecase.NewSessionStore()
	resolver := usecase.NewProfileRoleResolver(repos.Profiles, repos.Roles, repos.Permissions, log)
	monitor := usecase.NewSecurityMonitor(attemptStore, usecase.SecurityPolicy{
		MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
		AttemptWindow:     cfg.Security.AttemptWindow,
		LockoutDuration:   cfg.Security.LockoutDuration,
	}, log)
	lifecycle := usecase.NewSessionLifecycleManager(store, resolver, monitor, gateway, eventPublisher, metrics, log)
	evaluator := usecase.NewPermissionEvaluator(store)

	var consumer *kafkainfra.SessionConsumer
	if producer != nil && cfg.Kafka.GroupID != "" {
		consumer = kafkainfra.NewSessionConsumer(lifecycle, lifecycle.InstanceID(), log)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Registry: registry,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Lifecycle: lifecycle,
			Evaluator: evaluator,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	consumerErrCh := make(chan error, 1)
	if a.consumer != nil {
		topics := []string{
			a.producer.TopicName(domain.SessionSignedIn),
			a.producer.TopicName(domain.SessionSignedOut),
		}
		a.logger.Info("starting session event consumer",
			zap.Strings("topics", topics),
			zap.String("group_id", a.cfg.Kafka.GroupID),
		)
		go func() {
			if err := kafkainfra.RunSessionConsumer(ctx, a.cfg.Kafka.Brokers, a.cfg.Kafka.GroupID, topics, a.consumer, a.logger); err != nil {
				consumerErrCh <- fmt.Errorf("run session consumer: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-consumerErrCh:
		return err
	}
}
