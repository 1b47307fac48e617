package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/love-timeline-api/api/swagger"
	"github.com/noah-isme/love-timeline-api/internal/handler"
	internalmiddleware "github.com/noah-isme/love-timeline-api/internal/middleware"
	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/internal/repository"
	"github.com/noah-isme/love-timeline-api/internal/service"
	"github.com/noah-isme/love-timeline-api/internal/session"
	"github.com/noah-isme/love-timeline-api/internal/timeline"
	"github.com/noah-isme/love-timeline-api/pkg/cache"
	"github.com/noah-isme/love-timeline-api/pkg/config"
	"github.com/noah-isme/love-timeline-api/pkg/database"
	"github.com/noah-isme/love-timeline-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/love-timeline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/love-timeline-api/pkg/middleware/requestid"
	"github.com/noah-isme/love-timeline-api/pkg/storage"
)

// @title Love Timeline API
// @version 1.0.0
// @description Shared timeline of photos, videos, notes, audio and PDFs for two partners
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.Database.MigrationsDir, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	metrics := service.NewMetricsService()

	var (
		cacheRepo service.CacheRepository
		ledger    timeline.LikeLedger
	)
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and like ledger disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		ledger = repository.NewLikeRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Timeline.CacheTTL, logr, cfg.Timeline.CacheEnabled)

	blobs, err := storage.NewLocalStorage(cfg.Storage.Dir, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
	if err != nil {
		logr.Fatal("failed to prepare blob storage", zap.Error(err))
	}
	previews := storage.NewPreviewSigner(cfg.JWT.Secret, 15*time.Minute)

	validate := validator.New()
	userRepo := repository.NewUserRepository(db)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	}).WithProfileStorage(blobs, cacheSvc)
	memorySvc := service.NewMemoryService(repository.NewMemoryRepository(db), blobs, cacheSvc, validate, logr)
	commentSvc := service.NewCommentService(repository.NewCommentRepository(db), validate, logr)
	exportSvc := service.NewExportService(logr, nil, nil)

	sessions := session.NewManager(session.Deps{
		Memories: memorySvc,
		Comments: commentSvc,
		Ledger:   ledger,
		Blobs:    blobs,
		Preview: func(viewerID, itemID string, index int) (string, error) {
			token, _, err := previews.Sign(viewerID, itemID, index)
			if err != nil {
				return "", err
			}
			return cfg.APIPrefix + "/previews/" + token, nil
		},
		Metrics:  metrics,
		Logger:   logr.Named("session"),
		Upload:   cfg.Upload,
		Timeline: cfg.Timeline,
	})
	sessions.Start()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	mediaHandler := handler.NewMediaHandler(blobs)
	r.GET("/media/:bucket/*key", mediaHandler.Serve)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		logger:   logr,
		auth:     authSvc,
		metrics:  metricsHandler,
		authH:    handler.NewAuthHandler(authSvc),
		memoryH:  handler.NewMemoryHandler(memorySvc),
		commentH: handler.NewCommentHandler(commentSvc),
		timeline: handler.NewTimelineHandler(sessions, exportSvc, validate),
		uploads:  handler.NewUploadHandler(sessions, previews, validate, cfg.Storage.MaxFileBytes),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	sessions.Shutdown()
}

type routeDeps struct {
	logger   *zap.Logger
	auth     internalmiddleware.TokenValidator
	metrics  *handler.MetricsHandler
	authH    *handler.AuthHandler
	memoryH  *handler.MemoryHandler
	commentH *handler.CommentHandler
	timeline *handler.TimelineHandler
	uploads  *handler.UploadHandler
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	requireAuth := internalmiddleware.JWT(d.auth)
	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)
	audit := func(action, resource string) gin.HandlerFunc {
		return internalmiddleware.Audit(d.logger, action, resource)
	}

	api.Use(internalmiddleware.WithResponseMeta())

	api.POST("/auth/login", d.authH.Login)
	api.GET("/auth/me", requireAuth, d.authH.Me)
	api.PATCH("/auth/me", requireAuth, audit("update_profile", "user"), d.authH.UpdateMe)
	api.GET("/partners", d.authH.Partners)

	memories := api.Group("/memories")
	memories.GET("", d.memoryH.List)
	memories.POST("", requireAuth, adminOnly, audit("create", "memory"), d.memoryH.Create)
	memories.POST("/batch-delete", requireAuth, audit("batch_delete", "memory"), d.memoryH.BatchDelete)
	memories.DELETE("/:id", requireAuth, audit("delete", "memory"), d.memoryH.Delete)
	memories.POST("/:id/like", d.memoryH.Like)
	memories.DELETE("/:id/like", d.memoryH.Unlike)

	comments := api.Group("/comments")
	comments.GET("", d.commentH.List)
	comments.POST("", d.commentH.Create)
	comments.DELETE("/:id", requireAuth, audit("delete", "comment"), d.commentH.Delete)
	comments.DELETE("/by-date/:date", requireAuth, audit("delete_by_date", "comment"), d.commentH.DeleteByDate)

	api.GET("/previews/:token", d.uploads.Preview)

	tl := api.Group("/timeline", requireAuth)
	tl.GET("", d.timeline.Projection)
	tl.GET("/state", d.timeline.State)
	tl.POST("/refresh", d.timeline.Refresh)
	tl.GET("/tree", d.timeline.Tree)
	tl.GET("/contributions", d.timeline.Contributions)
	tl.PUT("/active-date", d.timeline.SetActiveDate)
	tl.GET("/export", d.timeline.Export)
	tl.DELETE("/memories/:id", audit("delete", "memory"), d.timeline.Delete)
	tl.POST("/memories/:id/like", d.timeline.Like)
	tl.DELETE("/memories/:id/like", d.timeline.Unlike)
	tl.POST("/uploads", adminOnly, d.uploads.Enqueue)
	tl.GET("/uploads", d.uploads.List)
	tl.DELETE("/uploads/:id", d.uploads.Dismiss)

	api.GET("/system/metrics", requireAuth, adminOnly, d.metrics.Summary)
}
