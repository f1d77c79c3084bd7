package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/config"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/handler"
	v1 "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/handler/v1"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/repository"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/service"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/auth"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/database"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/logger"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/metrics"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/objectstore"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/tracer"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "medintake",
		Short:        "Medical record ingestion API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ingestion API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create schemas and tables for medical records and the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			db, err := database.Connect(cfg.Database)
			if err != nil {
				return err
			}
			return database.Migrate(db, log)
		},
	}
}

// tokenCmd mints a session token for local testing against JWT_SECRET.
func tokenCmd() *cobra.Command {
	var (
		subject string
		email   string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.App.Environment == "production" {
				return errors.New("token issuing is disabled in production")
			}
			if !domain.Role(role).IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}

			verifier := auth.NewTokenVerifier(cfg.JWT)
			token, exp, err := verifier.Issue(domain.Identity{
				SubjectID: subject,
				Email:     email,
				Role:      domain.Role(role),
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "dev-user", "subject id recorded as created_by")
	cmd.Flags().StringVar(&email, "email", "dev@medintake.local", "email claim")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleDoctor), "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	log = log.With(
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Environment),
	)

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}

	store, err := objectstore.New(ctx, cfg.ObjectStore, log)
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	m := metrics.NewCollector(cfg.App.Name, prometheus.DefaultRegisterer)

	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), m, log)
	defer auditSvc.Shutdown()

	recordRepo := repository.NewMedicalRecordRepository(db)
	identity := auth.NewJWTIdentityProvider(auth.NewTokenVerifier(cfg.JWT), log)

	ingestion := service.NewIngestionService(
		identity,
		service.NewAssetUploader(store, cfg.Ingestion.UploadTimeout, m, log),
		service.NewRecordCommitter(recordRepo, cfg.Ingestion.CommitTimeout, m, log),
		auditSvc,
		m,
		service.IngestionOptions{CleanupOrphans: cfg.Ingestion.CleanupOrphans},
		log,
	)

	policy := service.SelectionPolicy{
		Accepted:     mr.NewAcceptedMediaTypes(cfg.Ingestion.AcceptedMediaTypes...),
		MaxFiles:     cfg.Ingestion.MaxFiles,
		MaxFileBytes: cfg.Ingestion.MaxFileBytes,
	}
	recordHandler := v1.NewMedicalRecordHandler(
		ingestion,
		service.NewMedicalRecordService(recordRepo, auditSvc, log),
		policy,
		cfg.Ingestion.AbortOnDisconnect,
		log,
	)

	router := handler.NewRouter(cfg, handler.RouterDeps{
		Records:  recordHandler,
		Identity: identity,
		Metrics:  m,
		DB:       db,
		Log:      log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("object_store", string(cfg.ObjectStore.Backend)),
			zap.Strings("accepted_media_types", policy.Accepted.List()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
