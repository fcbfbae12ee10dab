package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ethesis-api/config"
	"ethesis-api/controllers"
	"ethesis-api/middleware"
	"ethesis-api/routes"
	"ethesis-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, logWriter := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}
	config.ReloadMailerConfig()

	// Initialize database
	config.InitDB()

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logWriter
	gin.DefaultErrorWriter = logWriter

	// Create upload directory if not exists
	storageCfg := config.Storage()
	if err := os.MkdirAll(storageCfg.Root, os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create upload directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage := services.NewLocalStorage(storageCfg)
	plagiarismCfg := config.Plagiarism()
	plagiarism := services.NewPlagiarismService(config.DB, plagiarismCfg, storage, nil)
	scans := services.NewScanQueue(ctx, plagiarism, plagiarismCfg.Workers, 0)
	directory := services.NewDirectoryClient(config.Directory(), nil)
	notifier := services.NewMailNotifier()
	if !config.MailerConfigured() {
		log.Printf("SMTP is not configured; chapter notifications will be logged as failures")
	}

	controllers.Configure(controllers.Dependencies{
		Auth:       services.NewAuthService(config.DB, directory),
		Guard:      services.NewAuthorizationService(config.DB),
		Dashboard:  services.NewDashboardService(config.DB),
		Titles:     services.NewThesisTitleService(config.DB, storage),
		Theses:     services.NewThesisService(config.DB, storage, notifier),
		Plagiarism: plagiarism,
		Sync:       services.NewDirectorySyncService(config.DB, directory),
		SyncRuns:   services.NewDirectorySyncRunService(config.DB),
		Storage:    storage,
		Scans:      scans,
	})

	requeuePendingScans(ctx, plagiarism, scans)
	scans.StartSweeper(plagiarism, plagiarismCfg.SweepInterval)

	// Create Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware())

	// Stored documents are fetched from here by the plagiarism provider
	router.Static("/storage", storageCfg.Root)

	routes.SetupRoutes(router)

	port := config.ServerPort()
	srv := &http.Server{Addr: ":" + port, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", port)
		if ginMode == "release" {
			log.Printf("Running in production mode")
		} else {
			log.Printf("Running in development mode")
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	scans.Close()
	log.Printf("Server stopped")
}

// requeuePendingScans hands scans left pending by a previous process back to the workers.
// Whatever does not fit in the buffer is picked up by the sweeper.
func requeuePendingScans(ctx context.Context, plagiarism *services.PlagiarismService, scans *services.ScanQueue) {
	queued, err := scans.RequeuePending(ctx, plagiarism)
	if err != nil {
		log.Printf("Warning: pending plagiarism scans not fully requeued: %v", err)
	}
	if queued > 0 {
		log.Printf("Requeued %d pending plagiarism scans", queued)
	}
}
