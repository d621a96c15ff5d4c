package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/rajasatyajit/IssueRadar/internal/api"
	"github.com/rajasatyajit/IssueRadar/internal/auth"
	"github.com/rajasatyajit/IssueRadar/internal/logger"
	"github.com/rajasatyajit/IssueRadar/internal/metrics"
	middlewares "github.com/rajasatyajit/IssueRadar/internal/middleware"
	"github.com/rajasatyajit/IssueRadar/internal/scheduler"
	"github.com/rajasatyajit/IssueRadar/internal/store"
)

func newServeCmd(logLevel *string) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			logger.Info("Starting IssueRadar",
				"version", Version,
				"build_time", BuildTime,
				"git_commit", GitCommit,
			)

			// Initialize metrics
			metrics.Init(cfg.Metrics.Enabled)
			if cfg.Metrics.Enabled {
				logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if seed {
				res, err := store.SeedDemo(ctx, a.store, time.Now().UTC())
				if err != nil {
					return err
				}
				logger.Info("Demo data seeded", "organization_id", res.OrganizationID, "brand_id", res.BrandID)
			}

			verifier := auth.NewVerifier(cfg.Auth.TokenHash)
			if !verifier.Enabled() {
				logger.Warn("AUTH_OPERATOR_TOKEN_HASH not set; run endpoints are open")
			}

			// Setup HTTP server
			r := chi.NewRouter()

			// Global middleware
			r.Use(middleware.RequestID)
			r.Use(middleware.RealIP)
			r.Use(middlewares.Logging)
			r.Use(middlewares.Metrics)
			r.Use(middleware.Recoverer)
			r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
			r.Use(middlewares.Security)
			r.Use(middlewares.CORS(cfg.Server.CORSOrigins, cfg.Auth.Header))

			apiHandler := api.NewHandler(a.store, a.clusterer, a.scorer, a.ingester, api.Config{
				Verifier:      verifier,
				AuthHeader:    cfg.Auth.Header,
				RunsPerMinute: cfg.Server.RunsPerMinute,
				Version:       Version,
				BuildTime:     BuildTime,
				GitCommit:     GitCommit,
			})
			apiHandler.RegisterRoutes(r)

			// Metrics endpoint
			if cfg.Metrics.Enabled {
				go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
			}

			var sched *scheduler.Scheduler
			if cfg.Scheduler.Enabled {
				sched, err = newScheduler(a)
				if err != nil {
					return err
				}
				sched.Start()
			}

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      r,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "address", addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serveErr <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				return fmt.Errorf("HTTP server failed: %w", err)
			}

			logger.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
			defer cancel()

			if sched != nil {
				sched.Stop(shutdownCtx)
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", "error", err)
			}

			logger.Info("Server exited")
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "seed demo data on startup")
	return cmd
}

// newScheduler registers the periodic runs in pipeline order
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sc := a.cfg.Scheduler
	s := scheduler.New(a.store, sc)

	jobs := []struct {
		name string
		spec string
	}{
		{"ingest", sc.IngestCron},
		{"cluster", sc.ClusterCron},
		{"score", sc.RiskCron},
	}
	for _, j := range jobs {
		name := j.name
		err := s.Add(name, j.spec, func(ctx context.Context, orgID string) error {
			_, err := a.run(ctx, name, orgID)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
