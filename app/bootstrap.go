package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"api-boilerplate/internal/auth"
	"api-boilerplate/internal/config"
	"api-boilerplate/internal/db"
	"api-boilerplate/internal/observability"
	"api-boilerplate/internal/role"
	"api-boilerplate/internal/user"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Logger  *observability.Logger
	Close   func() error
}

// Build wires the whole application: config, database, migrations, seeding,
// services, routes. Seeding failure is fatal here; the process must not serve
// traffic without a guaranteed administrator account.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", observability.Fields{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DB.ConnMaxIdleTime)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	if err := auth.Seed(context.Background(), database, cfg.Seed); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("seed roles and superuser: %w", err)
	}

	codec, err := auth.NewCodec(cfg.Auth)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	userRepo := user.NewRepository(database)
	roleRepo := role.NewRepository(database)

	authService := auth.NewService(codec, userRepo, roleRepo, cfg.Auth.RotateRefresh)
	authHandler := auth.NewHandler(authService)
	userHandler := user.NewHandler(userRepo, auth.HashPassword)
	roleHandler := role.NewHandler(roleRepo)

	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow, cfg.TrustProxy)
	metrics := observability.NewMetrics()

	mux := http.NewServeMux()
	mux.Handle("POST /auth/login", loginLimiter.Middleware(metrics.LoginMiddleware(http.HandlerFunc(authHandler.Login))))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.Handle("GET /auth/me", auth.Require(authService, auth.PermUsersRead, http.HandlerFunc(authHandler.Me)))

	mux.Handle("GET /users", auth.Require(authService, auth.PermUsersRead, http.HandlerFunc(userHandler.ListUsers)))
	mux.Handle("POST /users", auth.Require(authService, auth.PermUsersWrite, http.HandlerFunc(userHandler.CreateUser)))
	mux.Handle("GET /users/{id}", auth.Require(authService, auth.PermUsersRead, http.HandlerFunc(userHandler.GetUser)))
	mux.Handle("PATCH /users/{id}/role", auth.Require(authService, auth.PermUsersWrite, http.HandlerFunc(userHandler.UpdateUserRole)))
	mux.Handle("DELETE /users/{id}", auth.Require(authService, auth.PermUsersWrite, http.HandlerFunc(userHandler.DeactivateUser)))

	mux.Handle("GET /roles", auth.Require(authService, auth.PermRolesRead, http.HandlerFunc(roleHandler.ListRoles)))
	mux.Handle("POST /roles", auth.Require(authService, auth.PermRolesWrite, http.HandlerFunc(roleHandler.CreateRole)))

	mux.HandleFunc("GET /health", healthHandler(database))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := observability.RecoverMiddleware(logger,
		CORSMiddleware(cfg.CORS,
			observability.RequestLoggingMiddleware(logger,
				metrics.Middleware(mux))))

	return &Runtime{
		Handler: handler,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
