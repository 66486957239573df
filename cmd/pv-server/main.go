package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/config"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/aimodel"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/audit"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/dashboard"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/identity"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/prediction"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/triage"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/db"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/middleware"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/sandbox"
	"github.com/cjLee-cmd/acuzen-ICBM/migrations"
)

const serviceName = "pharma-surveillance-api"

func main() {
	rootCmd := &cobra.Command{
		Use:   "pv-server",
		Short: "Pharmacovigilance case management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is not supported by the built-in runner.")
			fmt.Println("Audit and case records are retained for compliance; restore from backup instead.")
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo accounts, the triage model and optional sample cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("cases")
			seed, _ := cmd.Flags().GetInt64("seed")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			logger := newLogger(cfg.Env)

			recorder := audit.NewService(audit.NewRepoPG(pool), logger)
			users := identity.NewService(identity.NewRepoPG(pool), auth.NewMemoryLoginLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow), recorder, logger)
			models := aimodel.NewService(aimodel.NewRepoPG(pool), recorder, logger)
			caseSvc := cases.NewService(cases.NewRepoPG(pool), db.NewTxRunner(pool), recorder)

			seeder := sandbox.NewSeeder(sandbox.SeedConfig{
				CaseCount:    count,
				ModelName:    cfg.TriageModel,
				ModelVersion: cfg.TriageModelVersion,
				Seed:         seed,
			}, users, models, caseSvc, logger)
			res, err := seeder.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Users created: %d (existing: %d), model created: %t, cases created: %d\n",
				res.UsersCreated, res.UsersExisting, res.ModelCreated, res.CasesCreated)
			return nil
		},
	}
	cmd.Flags().Int("cases", 0, "Number of sample cases to create")
	cmd.Flags().Int64("seed", 0, "Random seed for sample cases (0 = time based)")
	return cmd
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Sessions
	secret, generated, err := resolveSessionSecret(cfg.SessionSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("session secret")
	}
	if generated {
		logger.Warn().Msg("SESSION_SECRET not set; using a random key, sessions will not survive restarts")
	}
	cookieOpts := auth.CookieOptions(cfg.SessionMaxAge, cfg.IsProduction())
	store, closeStore, err := newSessionStore(cfg, cookieOpts, secret)
	if err != nil {
		logger.Fatal().Err(err).Msg("session store")
	}
	defer closeStore()
	sessionMgr := auth.NewSessionManager(cookieOpts)

	// Login limiter
	limiter, err := newLoginLimiter(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("login limiter")
	}

	// API tokens
	var tokens *auth.TokenIssuer
	if cfg.TokenSigningKey != "" {
		tokens, err = auth.NewTokenIssuer([]byte(cfg.TokenSigningKey), cfg.TokenTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("token issuer")
		}
	}

	// Domain services
	auditSvc := audit.NewService(audit.NewRepoPG(pool), logger)
	identitySvc := identity.NewService(identity.NewRepoPG(pool), limiter, auditSvc, logger)
	caseSvc := cases.NewService(cases.NewRepoPG(pool), db.NewTxRunner(pool), auditSvc)
	modelSvc := aimodel.NewService(aimodel.NewRepoPG(pool), auditSvc, logger)
	analyzer := newAnalyzer(cfg, logger)
	if name, version := analyzer.Model(); name != "" {
		if _, err := modelSvc.Ensure(ctx, name, version); err != nil {
			logger.Warn().Err(err).Str("model", name).Msg("register triage model")
		}
	}
	predictionSvc := prediction.NewService(prediction.NewRepoPG(pool), caseSvc, analyzer, modelSvc, auditSvc, logger)
	dashboardSvc := dashboard.NewService(dashboard.NewRepoPG(pool))

	// Identity provider
	provider, err := newIdentityProvider(ctx, cfg, identitySvc, sessionMgr, tokens)
	if err != nil {
		logger.Fatal().Err(err).Msg("identity provider")
	}
	if cfg.DevAuthEnabled() {
		logger.Warn().Msg("AUTH_MODE=development: every request runs as the development ADMIN")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = apperr.NewValidator()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)
	ipExtractor, err := middleware.ClientIPExtractor(cfg.TrustedProxies)
	if err != nil {
		logger.Fatal().Err(err).Msg("trusted proxies")
	}
	e.IPExtractor = ipExtractor

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(session.Middleware(store))
	e.Use(audit.CaptureClient())
	e.Use(auth.Authenticate(provider, logger))

	registerHealth(e, pool)

	api := e.Group("/api")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	identity.NewHandler(identitySvc, sessionMgr, tokens).RegisterRoutes(api)
	cases.NewHandler(caseSvc).RegisterRoutes(api)
	prediction.NewHandler(predictionSvc).RegisterRoutes(api)
	aimodel.NewHandler(modelSvc).RegisterRoutes(api)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(api)
	audit.NewHandler(auditSvc).RegisterRoutes(api)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func registerHealth(e *echo.Echo, pool db.Pinger) {
	health := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	}
	ok := func(c echo.Context) error {
		if c.Request().Method == http.MethodHead {
			return c.NoContent(http.StatusOK)
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	e.GET("/health", health)
	e.GET("/api/health", health)
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/", ok)
	e.HEAD("/", ok)
	e.HEAD("/api", ok)
}

// resolveSessionSecret returns SESSION_SECRET or a random 32-byte key. The
// second return value is true when a random key was generated. Validate
// rejects an empty secret in production, so generation only happens in
// development and staging.
func resolveSessionSecret(envValue string) ([]byte, bool, error) {
	if envValue != "" {
		return []byte(envValue), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random session key: %w", err)
	}
	return key, true, nil
}

func newSessionStore(cfg *config.Config, opts sessions.Options, secret []byte) (sessions.Store, func(), error) {
	if cfg.SessionStore == config.BackendRedis {
		store, err := auth.NewRedisStore(cfg.RedisURL, opts, secret)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return auth.NewMemoryStore(opts, secret), func() {}, nil
}

func newLoginLimiter(cfg *config.Config) (auth.LoginLimiter, error) {
	if cfg.LoginLimitBackend != config.BackendRedis {
		return auth.NewMemoryLoginLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return auth.NewRedisLoginLimiter(redis.NewClient(opts), "pv:login", cfg.LoginMaxAttempts, cfg.LoginWindow)
}

func newAnalyzer(cfg *config.Config, logger zerolog.Logger) triage.Analyzer {
	if !cfg.TriageEnabled() {
		logger.Warn().Msg("OPENAI_API_KEY not set; AI analysis requests will fail")
		return triage.Unavailable{Name: cfg.TriageModel, Version: cfg.TriageModelVersion}
	}
	return triage.NewOpenAIAnalyzer(triage.Config{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Model:        cfg.TriageModel,
		ModelVersion: cfg.TriageModelVersion,
		Timeout:      cfg.TriageTimeout,
	})
}

// devAccountEmail owns rows written while AUTH_MODE=development.
const devAccountEmail = "dev-admin@localhost"

// devUsers is the part of the identity service the development provider
// needs.
type devUsers interface {
	auth.PrincipalLookup
	EnsureUser(ctx context.Context, req identity.CreateUserRequest) (*identity.User, bool, error)
}

func newIdentityProvider(ctx context.Context, cfg *config.Config, users devUsers, sessionMgr *auth.SessionManager, tokens *auth.TokenIssuer) (auth.IdentityProvider, error) {
	if cfg.DevAuthEnabled() {
		password := make([]byte, 24)
		if _, err := crypto_rand.Read(password); err != nil {
			return nil, err
		}
		u, _, err := users.EnsureUser(ctx, identity.CreateUserRequest{
			Email:    devAccountEmail,
			Name:     "Development Admin",
			Password: hex.EncodeToString(password),
			Role:     string(auth.RoleAdmin),
		})
		if err != nil {
			return nil, fmt.Errorf("ensure development account: %w", err)
		}
		return auth.NewDevProviderFor(*u.Principal()), nil
	}

	chain := auth.ChainProvider{auth.NewSessionProvider(sessionMgr, users)}
	if tokens != nil {
		chain = append(chain, auth.NewTokenProvider(tokens, users))
	}
	return chain, nil
}
