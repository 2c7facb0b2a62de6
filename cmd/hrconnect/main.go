package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/hrconnect/hrconnect/cmd/hrconnect/cli"
	"github.com/hrconnect/hrconnect/internal/app"
	"github.com/hrconnect/hrconnect/internal/audit"
	audithttp "github.com/hrconnect/hrconnect/internal/audit/http"
	"github.com/hrconnect/hrconnect/internal/auth"
	"github.com/hrconnect/hrconnect/internal/observability"
	"github.com/hrconnect/hrconnect/internal/platform/cache"
	"github.com/hrconnect/hrconnect/internal/platform/db"
	"github.com/hrconnect/hrconnect/internal/rbac"
	"github.com/hrconnect/hrconnect/internal/shared"
	"github.com/hrconnect/hrconnect/internal/users"
	"github.com/hrconnect/hrconnect/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) > 1 && args[0] == "policy" && (args[1] == "check" || args[1] == "matrix") {
		os.Exit(cli.NewPolicyCLI(nil, os.Stdout, os.Stderr).Run(ctx, args[1:]))
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(args) > 0 {
		os.Exit(runCommand(ctx, cfg, logger, args))
	}
	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("serve", slog.Any("error", err))
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	switch args[0] {
	case "migrate":
		if err := db.Migrate(cfg.PGDSN, cfg.MigrationsDir, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			return 1
		}
		return 0
	case "policy":
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			return 1
		}
		defer pool.Close()
		service := rbac.NewService(rbac.NewRepository(pool), nil, logger)
		return cli.NewPolicyCLI(service, os.Stdout, os.Stderr).Run(ctx, args[1:])
	default:
		logger.Error("unknown command", slog.String("command", args[0]))
		return 1
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "hrconnect_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	tokens := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL).WithRevocations(auth.NewRevocationList(redisClient))

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, tokens, sessionManager, jobClient)

	var (
		rbacService *rbac.Service
		table       *rbac.RuleTable
	)
	if cfg.UsesRulesFile() {
		table, err = rbac.LoadRulesFile(cfg.RBACRulesFile)
		if err != nil {
			return err
		}
		logger.Info("rbac rules loaded from file", slog.String("path", cfg.RBACRulesFile), slog.Int("rules", len(table.Rules())))
	} else {
		snapshots := rbac.NewSnapshotCache(redisClient, cfg.RBACCacheTTL)
		rbacService = rbac.NewService(rbac.NewRepository(pool), snapshots, logger)
		table, err = rbacService.Policy(ctx)
		if err != nil {
			logger.Warn("rbac initial load, denying until refresh", slog.Any("error", err))
		}
	}
	policy := rbac.NewReloadingPolicy(table)
	rbacMiddleware := rbac.Middleware{Policy: policy, Tokens: tokens, Logger: logger, Observer: metrics}
	rbacHandler := rbac.NewHandler(logger, rbacService, policy, rbacMiddleware)
	auditHandler := audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool)), rbacMiddleware)
	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(pool), jobClient, logger), rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		RBACMiddleware: rbacMiddleware,
		AuthHandler:    authHandler,
		RBACHandler:    rbacHandler,
		UsersHandler:   usersHandler,
		AuditHandler:   auditHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if rbacService != nil {
		g.Go(func() error {
			return rbacService.Refresh(gctx, policy, cfg.RBACRefreshInterval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
