package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"futureintern/internship-app/internal/api"
	"futureintern/internship-app/internal/config"
	"futureintern/internship-app/internal/curriculum"
	"futureintern/internship-app/internal/logger"
	"futureintern/internship-app/internal/notify"
	"futureintern/internship-app/internal/repository/memory"
	"futureintern/internship-app/internal/repository/mongo"
	"futureintern/internship-app/internal/service"
	"futureintern/internship-app/internal/storage"
)

// @title Internship Tracking API
// @version 1.0
// @description Registration, tasks, certificates and offer letters for internship students.
// @host localhost:5000
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Could not load config")
	}
	log := logger.New(cfg.Logging)
	log.Info().Str("environment", cfg.Server.Environment).Msg("Starting Internship API server")

	// --- Repositories ---
	var repos service.Repositories
	switch cfg.Database.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		repos = service.Repositories{
			Students:    store.Students(),
			Internships: store.Internships(),
			Tasks:       store.Tasks(),
			Submissions: store.Submissions(),
		}
	default:
		dbClient, err := mongo.ConnectDB(cfg.Database.URI)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not connect to MongoDB")
		}
		defer func() {
			log.Info().Msg("Disconnecting MongoDB...")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				log.Error().Err(err).Msg("Failed to disconnect MongoDB")
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)

		indexCtx, cancelIndex := context.WithTimeout(context.Background(), time.Minute)
		mongo.EnsureIndexes(indexCtx, appDB, log)
		cancelIndex()

		repos = service.Repositories{
			Students:    mongo.NewMongoStudentRepository(appDB),
			Internships: mongo.NewMongoInternshipRepository(appDB),
			Tasks:       mongo.NewMongoTaskRepository(appDB),
			Submissions: mongo.NewMongoSubmissionRepository(appDB),
		}
		log.Info().Str("database", cfg.Database.Name).Msg("Database connection established")
	}

	catalog, err := curriculum.Load(cfg.Curriculum.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load curriculum")
	}

	passwords, err := service.NewPasswordStorage(cfg.Auth.PasswordStorage)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid password storage")
	}

	// --- File storage (optional) ---
	var files storage.FileStorage
	if cfg.S3.BucketName != "" {
		files, err = storage.NewS3Storage(context.Background(), cfg.S3, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}
	} else {
		log.Info().Msg("No S3 bucket configured; certificate documents are not stored")
	}

	// --- Event publishing (optional) ---
	publisher := notify.NewNop()
	if cfg.RabbitMQ.URL != "" {
		publisher, err = notify.NewRabbitMQPublisher(cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}()

	// --- Services ---
	issuer := service.NewCertificateIssuer(repos, files, cfg.Server.BaseURL, publisher, log)
	authService := service.NewAuthService(repos, catalog, passwords, cfg.JWT.Secret, cfg.JWT.Expiration, publisher, log)
	internshipService := service.NewInternshipService(repos, catalog, issuer, cfg.OfferLetter, cfg.Certificates.AutoGenerateOnList, publisher, log)
	taskService := service.NewTaskService(repos, publisher, log)
	certificateService := service.NewCertificateService(repos, issuer, publisher, log)

	// --- HTTP ---
	if !cfg.Server.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	rateLimit := cfg.RateLimit
	rateLimit.Enabled = rateLimit.Enabled && !cfg.Server.IsDevelopment()
	if err := api.SetupRoutes(router, api.RouterOptions{
		JWTSecret:    cfg.JWT.Secret,
		Logger:       log,
		ExposeErrors: cfg.Server.IsDevelopment(),
		RateLimit:    rateLimit,
	}, authService, internshipService, taskService, certificateService); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up routes")
	}

	handler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exiting")
}
