package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sekolahkita/ppdb-api/internal/handler"
	"github.com/sekolahkita/ppdb-api/internal/middleware"
	"github.com/sekolahkita/ppdb-api/internal/models"
	"github.com/sekolahkita/ppdb-api/internal/repository"
	"github.com/sekolahkita/ppdb-api/internal/service"
	"github.com/sekolahkita/ppdb-api/pkg/cache"
	"github.com/sekolahkita/ppdb-api/pkg/config"
	"github.com/sekolahkita/ppdb-api/pkg/database"
	"github.com/sekolahkita/ppdb-api/pkg/jobs"
	"github.com/sekolahkita/ppdb-api/pkg/logger"
	corsmiddleware "github.com/sekolahkita/ppdb-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sekolahkita/ppdb-api/pkg/middleware/requestid"
)

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, tracking cache disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	validate := validator.New()
	metricsService := service.NewMetricsService()
	gate := service.NewGate(classRepo, logr)
	trackingCache := service.NewTrackingCache(redisClient, cfg.Admission.TrackingCacheTTL, metricsService, logr)
	provisioner := service.NewProvisioner(applicationRepo, cfg.Admission.TempPasswordLen, cfg.Admission.CodeRetryAttempts, metricsService, logr)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	applicationService := service.NewApplicationService(applicationRepo, schoolRepo, gate, provisioner, trackingCache, validate, logr, cfg.Admission.CodeRetryAttempts)
	attendanceService := service.NewAttendanceService(attendanceRepo, studentRepo, gate, validate, metricsService, logr, cfg.Records.MaxBatchSize)
	gradeService := service.NewGradeService(gradeRepo, studentRepo, gate, validate, metricsService, logr, cfg.Records.MaxBatchSize)
	schoolService := service.NewSchoolService(schoolRepo, userRepo, gate, validate, logr)
	classService := service.NewClassService(classRepo, userRepo, gate, validate, logr)

	schoolService.OnSchoolCreated(func(ctx context.Context, school *models.School) {
		logr.Sugar().Infow("school awaiting approval", "school_id", school.ID, "name", school.Name)
	})

	// Applicant notifications are best-effort; the decision itself has
	// already committed by the time a job is enqueued.
	notifyQueue := jobs.NewQueue("applicant-notifications", func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(service.DecisionEvent)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.ID)
		}
		logr.Sugar().Infow("applicant notified",
			"tracking_code", event.Application.TrackingCode,
			"decision", event.Decision)
		return nil
	}, jobs.QueueConfig{Workers: 2, Logger: logr})
	applicationService.OnDecision(func(ctx context.Context, event service.DecisionEvent) {
		if err := notifyQueue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "decision", Payload: event}); err != nil {
			logr.Sugar().Warnw("failed to enqueue applicant notification", "error", err)
		}
	})

	authHandler := handler.NewAuthHandler(authService)
	applicationHandler := handler.NewApplicationHandler(applicationService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	gradeHandler := handler.NewGradeHandler(gradeService)
	schoolHandler := handler.NewSchoolHandler(schoolService)
	classHandler := handler.NewClassHandler(classService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	// Submission and tracking are public; applicants have no account yet.
	api.POST("/applications", applicationHandler.Submit)
	api.GET("/applications/track/:code", applicationHandler.Track)

	review := api.Group("/applications", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	review.GET("", applicationHandler.List)
	review.GET("/export", applicationHandler.Export)
	review.GET("/:id", applicationHandler.Get)
	review.POST("/:id/approve", applicationHandler.Approve)
	review.POST("/:id/reject", applicationHandler.Reject)

	schools := api.Group("/schools")
	schools.GET("/:id", schoolHandler.Get)
	schools.POST("", middleware.JWT(authService), middleware.RequireRoles(models.RoleSuperAdmin), schoolHandler.Create)
	schools.POST("/:id/approve", middleware.JWT(authService), middleware.RequireRoles(models.RoleSuperAdmin), schoolHandler.Approve)
	schools.POST("/:id/admins", middleware.JWT(authService), middleware.RequireRoles(models.RoleSuperAdmin), schoolHandler.CreateAdmin)

	classes := api.Group("/classes", middleware.JWT(authService), middleware.RequireRoles(models.RoleTeacher))
	classes.PUT("/:id/attendance", attendanceHandler.UpsertBatch)
	classes.GET("/:id/attendance", attendanceHandler.List)
	classes.PUT("/:id/grades", gradeHandler.UpsertBatch)
	classes.GET("/:id/grades", gradeHandler.List)
	api.POST("/classes/:id/teachers", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin), classHandler.AssignTeacher)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifyQueue.Start(ctx)
	defer notifyQueue.Stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
