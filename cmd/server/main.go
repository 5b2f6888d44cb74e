// Package main - точка входа для Study Tracker Hub.
//
// Философия: "Учёба - это марафон, а не спринт" - трекер превращает разрозненные
// учебные сессии в видимый прогресс: серии дней, статистику и достижения,
// которые мотивируют возвращаться каждый день.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/Sagas)
// - Infrastructure: реализация репозиториев, кеш, шина событий, планировщик
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Application layer
	"github.com/studyhub/study-tracker/internal/application/command"
	"github.com/studyhub/study-tracker/internal/application/eventhandler"
	"github.com/studyhub/study-tracker/internal/application/query"
	"github.com/studyhub/study-tracker/internal/application/saga"

	// Domain layer
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"

	// Infrastructure layer
	"github.com/studyhub/study-tracker/internal/infrastructure/messaging"
	"github.com/studyhub/study-tracker/internal/infrastructure/persistence/postgres"
	"github.com/studyhub/study-tracker/internal/infrastructure/persistence/redis"
	"github.com/studyhub/study-tracker/internal/infrastructure/scheduler"
	"github.com/studyhub/study-tracker/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/studyhub/study-tracker/internal/interface/http"
	"github.com/studyhub/study-tracker/internal/interface/http/handlers"

	// Packages
	"github.com/studyhub/study-tracker/config"
	"github.com/studyhub/study-tracker/pkg/circuitbreaker"
	"github.com/studyhub/study-tracker/pkg/clock"
	"github.com/studyhub/study-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем приложение
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Study Tracker Hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.Bool("debug", cfg.App.Debug),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	// Проверяем соединение
	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		status, err := migrator.Status(ctx)
		if err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			appliedCount := 0
			for _, m := range status {
				if m.IsApplied {
					appliedCount++
				}
			}
			log.Info("migrations completed",
				logger.Int("applied", appliedCount),
				logger.Int("total", len(status)),
			)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var statsCache user.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			statsCache = redis.NewStatsCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	userRepo := postgres.NewUserRepository(dbConn)
	sessionRepo := postgres.NewSessionRepository(dbConn)
	topicRepo := postgres.NewTopicRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS И DISPATCHER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBusConfig.AsyncMode = true
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	dispatcherConfig := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherConfig.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherConfig)
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries, Sagas)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")
	clk := clock.Real{}

	// Commands
	planSessionCmd := command.NewPlanSessionHandler(sessionRepo, userRepo, topicRepo, eventBus, clk)
	startSessionCmd := command.NewStartSessionHandler(sessionRepo, eventBus, clk)
	pauseSessionCmd := command.NewPauseSessionHandler(sessionRepo, eventBus, clk)
	resumeSessionCmd := command.NewResumeSessionHandler(sessionRepo, eventBus, clk)
	cancelSessionCmd := command.NewCancelSessionHandler(sessionRepo, eventBus, clk)
	addBreakCmd := command.NewAddBreakHandler(sessionRepo, clk)
	createTopicCmd := command.NewCreateTopicHandler(topicRepo, clk)
	updateProgressCmd := command.NewUpdateProgressHandler(progressRepo, topicRepo, userRepo, eventBus, clk)
	updatePrefsCmd := command.NewUpdatePreferencesHandler(userRepo, statsCache)
	reconcileCmd := command.NewReconcileStatisticsHandler(userRepo, sessionRepo, progressRepo, eventBus, clk)

	// Queries
	// Кэш статистики прикрыт circuit breaker'ом: при деградации Redis
	// запросы уходят напрямую в Postgres без ожидания таймаутов.
	var statsBreaker *circuitbreaker.CircuitBreaker
	if statsCache != nil {
		statsBreaker = circuitbreaker.New("stats-cache",
			circuitbreaker.WithTimeout(15*time.Second),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}),
		)
	}
	userStatsQuery := query.NewGetUserStatsHandler(userRepo, sessionRepo, statsCache, statsBreaker, clk)
	dailyStatsQuery := query.NewGetDailyStatsHandler(userRepo, sessionRepo, clk)
	streaksQuery := query.NewGetStudyStreaksHandler(userRepo, sessionRepo, clk)
	listSessionsQuery := query.NewListSessionsHandler(sessionRepo)
	activeSessionQuery := query.NewGetActiveSessionHandler(sessionRepo, clk)
	topicProgressQuery := query.NewGetTopicProgressHandler(topicRepo, progressRepo)

	// Sagas
	registrationSaga := saga.NewRegistrationSaga(userRepo, eventBus, clk)
	completionSaga := saga.NewCompletionSaga(sessionRepo, userRepo, progressRepo, topicRepo, eventBus, clk)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	if statsCache != nil {
		log.Info("registering event handlers...")

		onCompleted := eventhandler.NewOnSessionCompletedHandler(statsCache, log)
		if err := dispatcher.Register(shared.EventSessionCompleted, "invalidate_stats_cache", onCompleted.HandlerFunc()); err != nil {
			return fmt.Errorf("failed to register completion handler: %w", err)
		}

		onReconciled := eventhandler.NewOnStatisticsReconciledHandler(statsCache, log)
		if err := dispatcher.Register(shared.EventStatisticsReconciled, "refresh_stats_cache", onReconciled.HandlerFunc()); err != nil {
			return fmt.Errorf("failed to register reconciliation handler: %w", err)
		}
	} else {
		log.Info("event handlers not registered - cache disabled")
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping dispatcher...")
		_ = dispatcher.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ПЛАНИРОВЩИК ФОНОВЫХ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		log.Info("initializing scheduler...")
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:        log,
			Timezone:      cfg.App.Location,
			EnableMetrics: true,
		})

		reconcileJob := jobs.NewReconcileStatisticsJob(userRepo, reconcileCmd, log, jobs.ReconcileStatisticsConfig{
			Concurrency: cfg.Scheduler.ReconcileConcurrency,
			Timeout:     cfg.Scheduler.JobTimeout,
		})

		// Cron-выражение прибивает сверку к настенным часам (например,
		// ночью, когда нагрузка минимальна); без него - простой интервал.
		var reconcileSchedule scheduler.Schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileInterval)
		if cfg.Scheduler.ReconcileCron != "" {
			expr, err := scheduler.ParseCronExpression(cfg.Scheduler.ReconcileCron)
			if err != nil {
				return fmt.Errorf("invalid SCHEDULER_RECONCILE_CRON: %w", err)
			}
			reconcileSchedule = expr
		}
		if err := sched.Register(reconcileJob, reconcileSchedule); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.RequestTimeout = cfg.HTTP.RequestTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	httpDeps := httpserver.Dependencies{
		RegistrationSaga:         registrationSaga,
		CompletionSaga:           completionSaga,
		PlanSessionHandler:       planSessionCmd,
		StartSessionHandler:      startSessionCmd,
		PauseSessionHandler:      pauseSessionCmd,
		ResumeSessionHandler:     resumeSessionCmd,
		CancelSessionHandler:     cancelSessionCmd,
		AddBreakHandler:          addBreakCmd,
		CreateTopicHandler:       createTopicCmd,
		UpdateProgressHandler:    updateProgressCmd,
		UpdatePreferencesHandler: updatePrefsCmd,
		ReconcileHandler:         reconcileCmd,
		GetUserStatsHandler:      userStatsQuery,
		GetDailyStatsHandler:     dailyStatsQuery,
		GetStudyStreaksHandler:   streaksQuery,
		ListSessionsHandler:      listSessionsQuery,
		GetActiveSessionHandler:  activeSessionQuery,
		GetTopicProgressHandler:  topicProgressQuery,
		Logger:                   log,
		HealthChecker:            healthChecker,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 13. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting services...")

	// Канал для ошибок
	errCh := make(chan error, 1)

	// Запускаем HTTP сервер
	go func() {
		log.Info("starting HTTP server", logger.String("address", httpServer.Address()))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 14. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Study Tracker Hub is running",
		logger.String("http_address", httpServer.Address()),
		logger.Bool("scheduler", cfg.Scheduler.Enabled),
		logger.Bool("cache", redisCache != nil),
	)

	// Ожидаем сигнал завершения или ошибку
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	// Начинаем graceful shutdown
	log.Info("starting graceful shutdown...",
		logger.Duration("timeout", cfg.App.ShutdownTimeout),
	)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	// Останавливаем HTTP сервер, остальное закроется через defer
	log.Info("stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}

	return logger.New(opts)
}
