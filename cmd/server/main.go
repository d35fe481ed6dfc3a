package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/smartcrm/internal/ai"
	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/handler"
	"github.com/aryan0dhankhar/smartcrm/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/smartcrm/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/smartcrm/internal/notify"
	"github.com/aryan0dhankhar/smartcrm/internal/observability/tracing"
	"github.com/aryan0dhankhar/smartcrm/internal/repository"
	"github.com/aryan0dhankhar/smartcrm/internal/repository/memory"
	"github.com/aryan0dhankhar/smartcrm/internal/security"
	"github.com/aryan0dhankhar/smartcrm/internal/security/audit"
	"github.com/aryan0dhankhar/smartcrm/internal/security/auth"
	"github.com/aryan0dhankhar/smartcrm/internal/security/ratelimit"
	"github.com/aryan0dhankhar/smartcrm/internal/service"
	"github.com/aryan0dhankhar/smartcrm/internal/worker"
	"github.com/aryan0dhankhar/smartcrm/pkg/cache"
	"github.com/aryan0dhankhar/smartcrm/pkg/config"
	"github.com/aryan0dhankhar/smartcrm/pkg/database"
)

// repositories is the storage backend the services run on.
type repositories struct {
	orgs       domain.OrganizationRepository
	users      domain.UserRepository
	leads      domain.LeadRepository
	complaints domain.ComplaintRepository
	ping       handler.Pinger
	close      func() error
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting SmartCRM server", slog.String("environment", cfg.Environment))

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, tracing.Config{
		ServiceName: "smartcrm",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", slog.String("error", err.Error()))
		}
	}()

	// 4. Storage
	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repos.close()

	// 5. Token revocation, backed by Redis when configured
	revokedCache := cache.New[bool]()
	var revocations auth.RevocationList = auth.NewMemoryRevocationList(revokedCache)
	var redisPing handler.Pinger
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		revocations = auth.NewRedisRevocationList(redisClient)
		redisPing = redisClient
	} else {
		log.Warn("REDIS_URL not set: token revocations are kept in process memory")
	}

	// 6. Outbound email
	var mailer notify.Mailer
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		log.Warn("SMTP_HOST not set: emails are logged, not sent")
		mailer = notify.NewLogMailer(log, cfg.IsDevelopment())
	}
	notifier := notify.NewNotifier(mailer, notify.DefaultConfig(cfg.AppName), log)

	// 7. Services
	auditLogger := audit.NewLogger(log)
	authz := security.NewAuthorizer(log, auditLogger)
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "smartcrm")

	orgCache := cache.New[domain.Organization]()
	orgService := service.NewOrganizationService(repos.orgs, authz, orgCache, cfg.OrgCacheTTL, log)
	authService := service.NewAuthService(repos.users, repos.orgs, tokenManager, revocations, notifier, authz,
		service.AuthConfig{TokenTTL: cfg.TokenTTL, BcryptCost: cfg.BcryptCost}, log)
	userService := service.NewUserService(repos.users, authz, log)
	leadService := service.NewLeadService(repos.leads, repos.users, orgService, ai.HeuristicScorer{}, authz, log)
	complaintService := service.NewComplaintService(repos.complaints, repos.users, ai.KeywordClassifier{}, authz, cfg.AutoClassify, log)

	// 8. Background stats and cache sweeping
	statsWorker := worker.NewStatsWorker(repos.leads, repos.complaints, log, cfg.StatsInterval, orgCache, revokedCache)
	go statsWorker.Start(ctx)

	// 9. HTTP surface
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	defer rateLimiter.Stop()

	router := handler.NewRouter(handler.RouterConfig{
		Auth:          handler.NewAuthHandler(authService, log),
		Users:         handler.NewUserHandler(userService, log),
		Organizations: handler.NewOrganizationHandler(orgService, log),
		Leads:         handler.NewLeadHandler(leadService, log),
		Complaints:    handler.NewComplaintHandler(complaintService, log),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": repos.ping,
			"redis":    redisPing,
		}, log),
		Metrics:       promhttp.Handler(),
		Authenticator: authService,
		RateLimiter:   rateLimiter,
		AuditLog:      auditLogger,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		Logger:        log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(router, "smartcrm"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("postgres", cfg.DatabaseURL != ""),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Bool("auto_classify", cfg.AutoClassify),
		slog.Int("rate_limit", cfg.RateLimitRequests),
		slog.Duration("rate_limit_window", cfg.RateLimitWindow),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
	return nil
}

// openRepositories connects to Postgres when DATABASE_URL is set and
// otherwise falls back to the in-memory store.
func openRepositories(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repositories, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set: using the in-memory store, data is lost on restart")
		store := memory.New()
		return &repositories{
			orgs:       store.Organizations(),
			users:      store.Users(),
			leads:      store.Leads(),
			complaints: store.Complaints(),
			ping:       store,
			close:      func() error { return nil },
		}, nil
	}

	pool, err := database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL}, log)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	store := repository.NewStore(pool.GetDB(), log)
	return &repositories{
		orgs:       repository.NewPostgresOrganizationRepository(store),
		users:      repository.NewPostgresUserRepository(store),
		leads:      repository.NewPostgresLeadRepository(store),
		complaints: repository.NewPostgresComplaintRepository(store),
		ping:       handler.PingFunc(pool.Health),
		close:      pool.Close,
	}, nil
}
