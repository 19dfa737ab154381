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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/classpal-api/api/swagger"
	"github.com/noah-isme/classpal-api/internal/handler"
	"github.com/noah-isme/classpal-api/internal/middleware"
	"github.com/noah-isme/classpal-api/internal/service"
	"github.com/noah-isme/classpal-api/pkg/config"
	"github.com/noah-isme/classpal-api/pkg/jobs"
	"github.com/noah-isme/classpal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classpal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classpal-api/pkg/middleware/requestid"
	"github.com/noah-isme/classpal-api/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reminder workers",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if servePort > 0 {
		cfg.Port = servePort
	}

	b, err := openBackend(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer b.Close()

	metrics := service.NewMetricsService()
	cacheSvc := b.openCache(ctx, cfg, metrics, logr)

	local, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		return fmt.Errorf("attachment storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	reminders := service.NewReminderService(nil, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Reminders.Workers,
		MaxRetries: cfg.Reminders.Retries,
		RetryDelay: cfg.Reminders.RetryDelay,
	})

	engine := newEngine(cfg, logr, metrics)
	routes := buildRouter(b, cacheSvc, metrics, reminders, local, signer)
	routes.Register(engine, cfg.APIPrefix)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reminders.Queue().Run(gctx)
	})
	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logr.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newEngine(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	if cfg.Env != config.EnvProduction {
		swagger.SwaggerInfo.BasePath = cfg.APIPrefix
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	return r
}

func buildRouter(b *backend, cacheSvc *service.CacheService, metrics *service.MetricsService, reminders *service.ReminderService, local *storage.LocalStorage, signer *storage.SignedURLSigner) handler.Router {
	validate := validator.New()
	stores := b.stores

	access := service.NewAccessService(stores.Classes, logr)
	auth := service.NewAuthService(stores.Users, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	attachments := service.NewAttachmentService(local, signer, access, logr, service.AttachmentServiceConfig{
		MaxFileSize: cfg.Attachments.MaxFileSizeBytes,
		APIPrefix:   cfg.APIPrefix,
	})

	checkIns := storage.NewSignedURLSigner(cfg.Events.CheckInSecret, cfg.Events.CheckInTTL)
	events := service.NewEventService(stores.Events, stores.Classes, access, reminders, checkIns, metrics, validate, logr)
	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Duties: stores.Duties,
		Events: stores.Events,
		Assets: stores.Assets,
		Funds:  stores.Funds,
		Access: access,
		Logger: logr,
	})

	return handler.Router{
		Tokens:      auth,
		Members:     access,
		Classes:     handler.NewClassHandler(service.NewClassService(stores.Users, stores.Classes, access, logr)),
		Duties:      handler.NewDutyHandler(service.NewDutyService(stores.Duties, access, attachments, cacheSvc, metrics, validate, logr)),
		Events:      handler.NewEventHandler(events),
		Assets:      handler.NewAssetHandler(service.NewAssetService(stores.Assets, access, metrics, validate, logr)),
		Funds:       handler.NewFundHandler(service.NewFundService(stores.Funds, access, attachments, cacheSvc, metrics, validate, logr, service.FundServiceConfig{RequireReceipt: cfg.Funds.RequireReceipt})),
		Dashboard:   handler.NewDashboardHandler(dashboard),
		Attachments: handler.NewAttachmentHandler(attachments),
		Metrics:     handler.NewMetricsHandler(metrics, b.checks),
	}
}
