package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/staff-appeal-api/api/swagger"
	"github.com/noah-isme/staff-appeal-api/internal/middleware"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/pkg/config"
	"github.com/noah-isme/staff-appeal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/staff-appeal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/staff-appeal-api/pkg/middleware/requestid"
)

// @title Staff Appeal API
// @version 1.0.0
// @description Evaluation appeal workflow for staff performance reviews
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to wire application", "error", err)
	}
	defer application.Close()

	if application.reminder != nil {
		application.reminder.Start(ctx, cfg.Reminder.Interval, cfg.Reminder.Workers)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(middleware.WithResponseMeta())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(application.metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", application.health.Health)
	r.GET("/ready", application.health.Ready)
	r.GET("/metrics", application.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), application)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func registerRoutes(api *gin.RouterGroup, a *app) {
	reviewers := middleware.RequireRoles(models.RoleReviewer, models.RoleHRAdmin, models.RoleAdmin)

	appeals := api.Group("/appeals")
	appeals.Use(middleware.JWT(a.tokens))
	{
		appeals.POST("/submit", a.appeals.Submit)
		appeals.PUT("/submit", a.appeals.ProvideAdditionalInfo)
		appeals.DELETE("/submit", a.appeals.Withdraw)
		appeals.POST("/submit/remote", a.appeals.SubmitRemote)
		appeals.GET("/drafts/:key", a.appeals.GetDraft)
		appeals.POST("/check-eligibility", a.appeals.CheckEligibility)

		appeals.GET("/status/:id", a.appeals.GetStatus)
		appeals.PUT("/status/:id", reviewers, a.appeals.UpdateStatus)
		appeals.POST("/status/:id", a.appeals.AddComment)
		appeals.GET("/status/:id/audit", reviewers, a.appeals.AuditTrail)

		appeals.GET("/employees/:employeeId",
			middleware.RBAC(string(models.RoleReviewer), string(models.RoleHRAdmin), string(models.RoleAdmin), "SELF"),
			a.appeals.ListByEmployee)
	}
}
