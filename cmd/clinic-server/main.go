package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/hubassist/clinic-api/internal/config"
	"github.com/hubassist/clinic-api/internal/domain/anamnesis"
	"github.com/hubassist/clinic-api/internal/domain/clinic"
	"github.com/hubassist/clinic-api/internal/domain/files"
	"github.com/hubassist/clinic-api/internal/domain/identity"
	"github.com/hubassist/clinic-api/internal/domain/patient"
	"github.com/hubassist/clinic-api/internal/domain/planning"
	"github.com/hubassist/clinic-api/internal/platform/auth"
	"github.com/hubassist/clinic-api/internal/platform/blobstore"
	"github.com/hubassist/clinic-api/internal/platform/db"
	"github.com/hubassist/clinic-api/internal/platform/middleware"
	"github.com/hubassist/clinic-api/internal/platform/session"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
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
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations",
	}

	createUserCmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a login account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}

			user := &identity.User{Email: email, PasswordHash: string(hash)}
			if err := identity.NewUserRepo(pool).Create(ctx, user); err != nil {
				return err
			}

			fmt.Printf("Created user %s (%s). The clinic is provisioned on first sign-in.\n", user.ID, user.Email)
			return nil
		},
	}
	createUserCmd.Flags().String("email", "", "Account email")
	createUserCmd.Flags().String("password", "", "Account password")
	cmd.AddCommand(createUserCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Blob storage
	blobs, err := blobstore.NewFileStore(cfg.StorageDir, blobstore.DefaultBuckets(), cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.StorageDir).Msg("failed to open blob storage")
	}

	// Repositories
	userRepo := identity.NewUserRepo(pool)
	profileRepo := identity.NewProfileRepo(pool)
	clinicRepo := clinic.NewRepo(pool)
	sessionRepo := session.NewRepo(pool)
	patientRepo := patient.NewRepo(pool)
	anamnesisRepo := anamnesis.NewRepo(pool)
	planRepo := planning.NewRepo(pool)

	// Session store and profile resolver
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL())
	resolver := identity.NewResolver(profileRepo, clinicRepo, logger)
	resolver.SetTxRunner(func(ctx context.Context, fn func(context.Context) error) error {
		return db.RunInTx(ctx, pool, fn)
	})
	accounts := identity.NewAccountsAdapter(userRepo)
	sessionStore := session.NewStore(sessionRepo, accounts, issuer, cfg.SessionTTL(), cfg.BcryptCost, logger)

	// Subscribe before Initialize so persisted sessions are replayed. The
	// resolver warms its cache on each sign-in event, so profiles are ready
	// by the time the first authenticated request arrives.
	events := sessionStore.Subscribe()
	go func() {
		for ev := range events {
			switch ev.Type {
			case session.EventSignedIn:
				logger.Info().
					Str("session_id", ev.Session.ID.String()).
					Str("email", ev.Session.Email).
					Msg("session opened")
				resolver.Resolve(context.Background(), ev.Session.UserID, ev.Session.Email)
			case session.EventSignedOut:
				logger.Info().
					Str("session_id", ev.Session.ID.String()).
					Msg("session closed")
			}
		}
	}()
	if err := sessionStore.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize session store")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "25M"))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Public bucket contents are served straight from disk.
	e.Static("/api/v1/storage", cfg.StorageDir)

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Public routes: signup and signin.
	identityHandler := identity.NewHandler(sessionStore, resolver)
	identityHandler.RegisterPublicRoutes(apiV1)

	// Protected routes require a live session.
	protected := apiV1.Group("", auth.Middleware(issuer, sessionStore))
	identityHandler.RegisterProtectedRoutes(protected)

	// Clinic-scoped routes additionally resolve the caller's clinic.
	membership := identity.NewMembershipAdapter(resolver)
	scoped := protected.Group("", auth.ClinicMiddleware(membership))

	patientSvc := patient.NewService(patientRepo, blobs, logger)
	patient.NewHandler(patientSvc).RegisterRoutes(scoped)

	anamnesisSvc := anamnesis.NewService(anamnesisRepo, patientRepo)
	anamnesis.NewHandler(anamnesisSvc).RegisterRoutes(scoped)

	filesSvc := files.NewService(blobs, patientRepo, logger)
	files.NewHandler(filesSvc).RegisterRoutes(scoped)

	planningSvc := planning.NewService(planRepo, patientRepo)
	planning.NewHandler(planningSvc).RegisterRoutes(scoped)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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
