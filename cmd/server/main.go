package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/practicehub/be-workflow-emails/internal/client"
	"github.com/practicehub/be-workflow-emails/internal/config"
	"github.com/practicehub/be-workflow-emails/internal/database"
	"github.com/practicehub/be-workflow-emails/internal/handler"
	"github.com/practicehub/be-workflow-emails/internal/logger"
	"github.com/practicehub/be-workflow-emails/internal/middleware"
	"github.com/practicehub/be-workflow-emails/internal/repository"
	"github.com/practicehub/be-workflow-emails/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Workflow Emails Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize NATS connection for events
	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS disabled; events will not be published and the dispatcher is idle")
	}

	// Initialize repositories
	rulesRepo := repository.NewEmailRulesRepository(db)
	templatesRepo := repository.NewEmailTemplatesRepository(db)
	queueRepo := repository.NewEmailQueueRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	// Initialize event publisher
	events := client.NewEmailEventPublisher(nc, log.Logger)

	// Initialize services
	resolver := service.NewRecipientResolver(directoryRepo, log)
	gatherer := service.NewVariableGatherer(taskRepo, workflowRepo, directoryRepo, log)
	writer := service.NewQueueWriter(queueRepo, events, log)
	triggerService := service.NewTriggerService(rulesRepo, templatesRepo, taskRepo, workflowRepo, resolver, gatherer, writer, log)
	adminService := service.NewAdminService(rulesRepo, templatesRepo, queueRepo, log)

	// Start the queue dispatcher worker
	if cfg.NATS.Enabled {
		dispatcher := service.NewDispatcher(queueRepo, events, cfg.Dispatch.BatchSize, cfg.Dispatch.Interval, log)
		go dispatcher.Run(ctx)
	}

	// Subscribe to workflow events
	var workflowSubs []*nats.Subscription
	if cfg.NATS.Enabled {
		subscriber := client.NewCompletionSubscriber(nc, triggerService, 30*time.Second, log.Logger)
		workflowSubs, err = subscriber.Subscribe()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to subscribe to workflow events")
		}
	}

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(adminService, triggerService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Rule routes
	mux.HandleFunc("/api/v1/email-rules", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListRules(w, r)
		case http.MethodPost:
			httpHandler.CreateRule(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/email-rules/get", httpHandler.GetRule)
	mux.HandleFunc("/api/v1/email-rules/update", httpHandler.UpdateRule)
	mux.HandleFunc("/api/v1/email-rules/delete", httpHandler.DeleteRule)

	// Template routes
	mux.HandleFunc("/api/v1/email-templates", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListTemplates(w, r)
		case http.MethodPost:
			httpHandler.CreateTemplate(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/email-templates/get", httpHandler.GetTemplate)
	mux.HandleFunc("/api/v1/email-templates/update", httpHandler.UpdateTemplate)
	mux.HandleFunc("/api/v1/email-templates/delete", httpHandler.DeleteTemplate)
	mux.HandleFunc("/api/v1/email-templates/validate", httpHandler.ValidateTemplate)

	// Queue routes
	mux.HandleFunc("/api/v1/email-queue", httpHandler.ListQueuedEmails)
	mux.HandleFunc("/api/v1/email-queue/get", httpHandler.GetQueuedEmail)

	// Trigger routes (internal, for callers not yet on the event bus)
	mux.HandleFunc("/api/v1/triggers/stage-completed", httpHandler.TriggerWorkflowEmails)
	mux.HandleFunc("/api/v1/triggers/checklist-updated", httpHandler.ChecklistUpdated)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop consuming new workflow events first
	for _, sub := range workflowSubs {
		if err := sub.Drain(); err != nil {
			log.Error().Err(err).Str("subject", sub.Subject).Msg("Failed to drain subscription")
		}
	}

	// Stop the dispatcher
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
