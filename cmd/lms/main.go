package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/classtrack/lms/internal/ai"
	"github.com/classtrack/lms/internal/config"
	"github.com/classtrack/lms/internal/db"
	"github.com/classtrack/lms/internal/drive"
	"github.com/classtrack/lms/internal/filestore"
	"github.com/classtrack/lms/internal/handler"
	"github.com/classtrack/lms/internal/job"
	"github.com/classtrack/lms/internal/middleware"
	"github.com/classtrack/lms/internal/repo"
	"github.com/classtrack/lms/internal/runner"
	"github.com/classtrack/lms/internal/schedule"
	"github.com/classtrack/lms/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "lms",
		Short: "classtrack lms backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run lms server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("drive_api", cfg.Drive.APIBaseURL),
		zap.Bool("mirror_content", cfg.Import.MirrorContent),
	)

	userRepo := repo.NewUserRepo(database)
	courseRepo := repo.NewCourseRepo(database)
	moduleRepo := repo.NewCourseModuleRepo(database)
	subjectRepo := repo.NewSubjectRepo(database)
	lessonRepo := repo.NewLessonRepo(database)
	testRepo := repo.NewTestRepo(database)
	progressRepo := repo.NewImportProgressRepo(database)
	jobRepo := repo.NewDriveImportJobRepo(database)
	locker := repo.NewCourseLocker(database)

	driveClient := drive.NewClient(cfg.Drive)

	var generator ai.IGenerator
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	if aiProvider != nil {
		generator = ai.NewGenerator(aiProvider, cfg.AI.Model)
	}
	extractor := service.NewAnswerKeyExtractor(generator)

	var store filestore.Store
	if cfg.Import.MirrorContent {
		store, err = filestore.New(cfg.FileStore)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
	}

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	courseService := service.NewCourseService(courseRepo)
	progressService := service.NewProgressService(progressRepo, jobRepo)
	builder := service.NewTaskListService(driveClient, moduleRepo, subjectRepo, lessonRepo, testRepo, extractor, cfg.Import.MaxItemsPerListing)
	importService := service.NewImportService(service.ImportServiceParams{
		Courses:  courseRepo,
		Modules:  moduleRepo,
		Subjects: subjectRepo,
		Lessons:  lessonRepo,
		Tests:    testRepo,
		Jobs:     jobRepo,
		Locker:   locker,
		Progress: progressService,
		Builder:  builder,
		Drive:    driveClient,
		Store:    store,
		Mirror:   cfg.Import.MirrorContent,
		MaxTasks: cfg.Import.MaxTasksPerRun,
	})

	importRunner := runner.New(importService, cfg.Import.QueueSize, cfg.Import.MaxAttempts)
	importService.AttachRunner(importRunner)
	importRunner.Start()
	defer importRunner.Stop()

	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewJobCleanupJob(jobRepo, time.Duration(cfg.Import.JobRetentionDays)*24*time.Hour)
	if err := scheduler.AddJob(cleanup, "0 4 * * *"); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Courses:   handler.NewCourseHandler(courseService),
		Imports:   handler.NewImportHandler(importService, progressService),
		JWTSecret: []byte(cfg.JWTSecret),
	}
	if store != nil {
		deps.Files = handler.NewFileHandler(store)
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllow),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
