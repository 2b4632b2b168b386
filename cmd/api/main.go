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

	_ "github.com/agriquest/agriquest-api/api/swagger"
	migrations "github.com/agriquest/agriquest-api/db"
	"github.com/agriquest/agriquest-api/internal/handler"
	"github.com/agriquest/agriquest-api/internal/middleware"
	"github.com/agriquest/agriquest-api/internal/repository"
	"github.com/agriquest/agriquest-api/internal/service"
	"github.com/agriquest/agriquest-api/pkg/cache"
	"github.com/agriquest/agriquest-api/pkg/config"
	"github.com/agriquest/agriquest-api/pkg/database"
	"github.com/agriquest/agriquest-api/pkg/logger"
	"github.com/agriquest/agriquest-api/pkg/mail"
	corsmiddleware "github.com/agriquest/agriquest-api/pkg/middleware/cors"
	reqidmiddleware "github.com/agriquest/agriquest-api/pkg/middleware/requestid"
)

// @title AgriQuest API
// @version 1.0.0
// @description Role-based agricultural education platform
// @BasePath /api/v1
// @schemes http

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

	dbConn, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer dbConn.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, dbConn, migrations.Migrations); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	var transport mail.Transport
	if cfg.Mail.Provider == "sendgrid" && cfg.Mail.SendGridKey != "" {
		transport = mail.NewSendGridTransport(cfg.Mail.SendGridKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	} else {
		transport = mail.NewConsoleTransport(logr)
	}

	userRepo := repository.NewUserRepository(dbConn)
	subjectRepo := repository.NewSubjectRepository(dbConn)
	invitationRepo := repository.NewInvitationRepository(dbConn)
	enrollmentRepo := repository.NewEnrollmentRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	quizRepo := repository.NewQuizRepository(dbConn)
	resultRepo := repository.NewResultRepository(dbConn)
	weaknessRepo := repository.NewWeaknessRepository(dbConn)
	cacheRepo := repository.NewCacheRepository(redisClient)

	validate := validator.New()
	metrics := service.NewMetricsService()

	notificationService := service.NewNotificationService(notificationRepo, cacheRepo, cfg.Cache.UnreadCountTTL, metrics, logr)
	userService := service.NewUserService(userRepo, notificationService, validate, logr)
	subjectService := service.NewSubjectService(subjectRepo, cacheRepo, cfg.Cache.SubjectListTTL, validate, logr)
	invitationService := service.NewInvitationService(invitationRepo, userRepo, subjectRepo, notificationService, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, invitationRepo, userRepo, subjectRepo, notificationService, validate, logr)
	quizService := service.NewQuizService(quizRepo, resultRepo, invitationRepo, enrollmentRepo, weaknessRepo, notificationService, metrics, validate, logr, service.QuizConfig{
		WeaknessThreshold: cfg.Quiz.WeaknessThreshold,
	})
	resultService := service.NewResultService(resultRepo, quizRepo, cfg.Quiz.WeaknessThreshold, logr)
	weaknessService := service.NewWeaknessService(weaknessRepo, invitationRepo, validate, logr)
	authService := service.NewAuthService(userRepo, cacheRepo, transport, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		OTPTTL:             cfg.OTP.TTL,
		OTPLength:          cfg.OTP.Length,
	})

	dispatcher := service.NewNotificationDispatcher(notificationRepo, userRepo, transport, service.DispatcherConfig{
		Interval:  cfg.Notifications.DispatchInterval,
		BatchSize: cfg.Notifications.DispatchBatch,
		Workers:   cfg.Notifications.Workers,
	}, metrics, logr)
	if cfg.Notifications.DispatchEnabled {
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Subject:      handler.NewSubjectHandler(subjectService),
		Invitation:   handler.NewInvitationHandler(invitationService),
		Enrollment:   handler.NewEnrollmentHandler(enrollmentService),
		Quiz:         handler.NewQuizHandler(quizService),
		Result:       handler.NewResultHandler(resultService),
		Notification: handler.NewNotificationHandler(notificationService),
		Weakness:     handler.NewWeaknessHandler(weaknessService),
		Dashboard:    handler.NewDashboardHandler(userService, notificationService),
		Metrics:      handler.NewMetricsHandler(metrics),
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, authService)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
