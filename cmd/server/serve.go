package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"living-science-documents/internal/auth"
	"living-science-documents/internal/logger"
	"living-science-documents/internal/middleware"
	"living-science-documents/internal/publication"
	"living-science-documents/internal/version"
	"living-science-documents/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const sweepRetryLimit = 100

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	pool := worker.NewWorkerPool(cfg.RetryWorkers, 0, logger.Component("worker"))
	versionService := a.versionService(
		version.WithRetryQueue(pool),
		version.WithRetryDelay(cfg.RetryDelay),
	)
	publicationService := publication.NewService(a.repo, a.cache, logger.Component("publication"))

	// pick up withdrawals whose registration failed before the last shutdown,
	// then keep sweeping the ones the requeue gave up on
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepRetries(sweepCtx, pool, versionService, cfg.RetryInterval)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		logger.RequestLogger(logger.Component("http")),
		middleware.ErrorHandler(logger.Component("http")),
	)

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Location", "X-Request-ID"},
		AllowCredentials: false,
	}
	if cfg.Environment == "development" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.FrontendURL}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		if err := a.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	authMiddleware := &middleware.Auth{Verifier: auth.NewManager(cfg.JWTSecret)}
	public := router.Group("", authMiddleware.OptionalAuth())
	protected := router.Group("", authMiddleware.AuthMiddleWare())

	version.NewHandler(versionService).RegisterRoutes(public, protected)
	publication.NewHandler(publicationService).RegisterRoutes(public, protected)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	stopSweep()
	pool.Shutdown(shutdownCtx)

	log.Info().Msg("server shutdown complete")
	return nil
}

// sweepRetries submits a RetryPending sweep right away and then once per
// interval until ctx is done.
func sweepRetries(ctx context.Context, pool version.Submitter, svc version.Service, interval time.Duration) {
	sweep := func() {
		ok := pool.Submit(func(ctx context.Context) error {
			n, err := svc.RetryPending(ctx, sweepRetryLimit)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info().Int("recovered", n).Msg("registration sweep done")
			}
			return nil
		})
		if !ok {
			log.Warn().Msg("retry queue rejected registration sweep")
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
