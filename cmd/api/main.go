package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wms-platform/roadmap-service/internal/application"
	"github.com/wms-platform/roadmap-service/internal/config"
	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/internal/infrastructure/catalog"
	"github.com/wms-platform/roadmap-service/internal/infrastructure/clients"
	mongoRepo "github.com/wms-platform/roadmap-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/roadmap-service/pkg/cloudevents"
	idempotencyMongo "github.com/wms-platform/roadmap-service/pkg/idempotency/mongodb"
	"github.com/wms-platform/roadmap-service/pkg/kafka"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
	"github.com/wms-platform/roadmap-service/pkg/mongodb"
	"github.com/wms-platform/roadmap-service/pkg/outbox"
	outboxMongo "github.com/wms-platform/roadmap-service/pkg/outbox/mongodb"
	"github.com/wms-platform/roadmap-service/pkg/tracing"
)

const serviceName = config.ServiceName

func main() {
	bootLogger := logging.New(logging.DefaultConfig(serviceName))

	cfg, err := config.Load(os.Getenv("ROADMAP_CONFIG"))
	if err != nil {
		bootLogger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting roadmap-service API", "environment", cfg.Environment)
	ctx := context.Background()

	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	kafkaProducer := kafka.NewProducer(cfg.Kafka)
	instrumentedProducer := kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
	defer instrumentedProducer.Close()
	logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)

	eventFactory := cloudevents.NewEventFactory("/roadmap-service")

	db := mongoClient.Database()
	obs := mongodb.NewObserver(m, logger)
	templateRepo := mongoRepo.NewTemplateRepository(db, obs)
	projectRepo := mongoRepo.NewProjectRepository(db, obs)
	outboxStore := outboxMongo.NewStore(db)
	if err := outboxStore.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to create outbox indexes")
	}
	idempotencyStore := idempotencyMongo.NewStore(db)
	if err := idempotencyStore.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to create idempotency indexes")
	}

	roadmapRepo := mongoRepo.NewRoadmapRepository(db, outboxStore, eventFactory, obs)
	taskRepo := mongoRepo.NewTaskRepository(db, obs)
	generationRepo := mongoRepo.NewGenerationRepository(db, taskRepo, outboxStore, eventFactory, obs)
	employeeRepo := mongoRepo.NewEmployeeRepository(db, obs)
	attendanceRepo := mongoRepo.NewAttendanceRepository(db, obs)

	outboxPublisher := outbox.NewPublisher(outboxStore, instrumentedProducer, logger, m, outbox.PublisherConfig{
		PollInterval: time.Second,
		BatchSize:    100,
	})
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()

	if cfg.Engine.SeedTemplates {
		if err := seedTemplates(ctx, templateRepo, cfg.Engine.TemplateCatalog, logger); err != nil {
			logger.WithError(err).Error("Failed to seed template catalog")
			os.Exit(1)
		}
	}

	var oracle domain.AvailabilityOracle = attendanceRepo
	if cfg.Engine.AttendanceServiceURL != "" {
		oracle = clients.NewAttendanceClient(cfg.Engine.AttendanceServiceURL, cfg.Engine.AvailabilityTimeout, logger, m)
		logger.Info("Using attendance service for availability", "url", cfg.Engine.AttendanceServiceURL)
	}

	generator, err := application.NewTaskGenerator(cfg.Engine.PriorityBands)
	if err != nil {
		logger.WithError(err).Error("Invalid priority bands")
		os.Exit(1)
	}
	generator.WithMaxTasks(cfg.Engine.MaxTasksPerRun)

	svc := &services{
		roadmaps: application.NewRoadmapService(templateRepo, projectRepo, roadmapRepo, logger, m),
		generation: application.NewGenerationService(application.GenerationDeps{
			Projects:  projectRepo,
			Templates: templateRepo,
			Roadmaps:  roadmapRepo,
			Tasks:     taskRepo,
			Directory: employeeRepo,
			Generator: generator,
			Engine:    application.NewAssignmentEngine(oracle, cfg.Engine.AvailabilityTimeout, logger, m),
			Ledger:    application.NewGenerationLedger(generationRepo, logger),
		}, logger, m),
		monitoring: application.NewMonitoringService(roadmapRepo, logger, m),
		directory:  application.NewDirectoryService(employeeRepo, attendanceRepo, logger),
	}

	router := newRouter(svc, logger, m, idempotencyStore, cfg.Engine.ElevatedRoles, func() error {
		return mongoClient.HealthCheck(ctx)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// seedTemplates inserts the catalog templates that are not stored yet
func seedTemplates(ctx context.Context, repo *mongoRepo.TemplateRepository, path string, logger *logging.Logger) error {
	templates, err := catalog.Load(path, time.Now().UTC())
	if err != nil {
		return err
	}
	added, err := repo.Seed(ctx, templates)
	if err != nil {
		return err
	}
	logger.Info("Template catalog seeded", "templates", len(templates), "added", added)
	return nil
}
