package main

import (
	"context"
	"crm_advocacia_go/config"
	"crm_advocacia_go/db"
	"crm_advocacia_go/handlers"
	"crm_advocacia_go/middleware"
	"crm_advocacia_go/models"
	"crm_advocacia_go/services"
	"crm_advocacia_go/services/jobs"
	"crm_advocacia_go/services/judicial"
	"crm_advocacia_go/services/nlp"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Portal passwords cannot be read or written without the secret
	vault, err := services.NewCredentialVault(cfg.CredentialEncryptionKey)
	if err != nil {
		log.Fatalf("[CRITICAL] %v", err)
	}

	// Initialize database
	if cfg.TursoDatabaseURL != "" {
		err = db.InitializeRemote(cfg.TursoDatabaseURL, cfg.TursoAuthToken, cfg.Environment)
	} else {
		err = db.Initialize(cfg.DBPath, cfg.Environment)
	}
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(&models.Practitioner{}, &models.Intimacao{}, &models.SyncHistory{}, &models.Notification{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Search falls back to LIKE queries without FTS5
	if err := services.InitializeSearchIndex(db.DB); err != nil {
		log.Printf("[WARNING] Search index unavailable: %v", err)
	} else if err := services.SyncSearchIndex(db.DB); err != nil {
		log.Printf("[WARNING] Failed to sync search index: %v", err)
	}

	services.InitializeStorage(cfg)

	credentials := services.NewCredentialService(db.DB, vault)
	intimacoes := services.NewIntimacaoService(db.DB)
	notifications := services.NewNotificationService(db.DB)
	archive := services.NewIntimacaoArchive(services.Storage)

	nlpClient := nlp.NewClient(cfg.NLPServiceURL, cfg.NLPTimeout)
	queue := jobs.NewReprocessQueue(nlpClient, intimacoes, cfg.QueueDelay)

	profile, err := judicial.LoadProfile(cfg.PortalProfilePath)
	if err != nil {
		log.Fatalf("Failed to load portal profile: %v", err)
	}
	judicial.RegisterProvider("comunica", judicial.NewComunicaService(profile.WithOverrides(cfg.PortalBaseURL, cfg.ChromePath), nil))
	provider, err := judicial.GetProvider("comunica")
	if err != nil {
		log.Fatalf("Failed to create portal provider: %v", err)
	}

	loc := cfg.Location()
	collector := jobs.NewCollector(credentials, intimacoes, notifications, archive, queue, provider, jobs.CollectorConfig{
		DefaultLookbackDays:   cfg.DefaultLookback,
		NewLawyerLookbackDays: cfg.NewLawyerLookback,
		Location:              loc,
		Pause:                 5 * time.Second,
	})
	alerter := jobs.NewDeadlineAlerter(credentials, intimacoes, notifications, cfg)

	scheduler := jobs.NewScheduler(loc)
	if err := jobs.ScheduleIntimacaoJobs(scheduler, cfg, collector, alerter); err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(echomiddleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, middleware.HeaderPractitionerID},
	}))

	// Make config available to handlers
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("config", cfg)
			return next(c)
		}
	})

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	juridico := handlers.NewJuridicoHandler(credentials, intimacoes, notifications, archive, collector, alerter, cfg)
	api := e.Group("/api/juridico")
	api.Use(middleware.RequirePractitioner())
	juridico.Register(api, middleware.NewManualCollectLimiter(cfg.ManualCollectLimit))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The service may start later than us; collection still runs and rows wait as pending
	go func() {
		healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := nlpClient.Health(healthCtx); err != nil {
			log.Printf("[WARNING] NLP service not reachable at %s: %v", cfg.NLPServiceURL, err)
		}
	}()

	if _, err := collector.RequeuePending(500); err != nil {
		log.Printf("[WARNING] Failed to requeue pending intimações: %v", err)
	}

	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		scheduler.Stop()
		queue.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped with error: %v", err)
	}
}
