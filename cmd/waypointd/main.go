package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waypoint/internal/config"
	"waypoint/internal/handler"
	"waypoint/internal/messaging"
	"waypoint/internal/middleware"
	"waypoint/internal/observability"
	"waypoint/internal/repository/postgres"
	"waypoint/internal/service"
	"waypoint/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	observability.InitLogger(logLevel, logFormat)

	slog.Info("starting waypoint daemon")

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.EnsureSchema(connCtx, db); err != nil {
		slog.Error("schema setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	var bus *messaging.EventBus
	if cfg.EventBusURL != "" {
		busCtx, busCancel := context.WithTimeout(context.Background(), 60*time.Second)
		bus, err = messaging.NewEventBusWithRetry(busCtx, cfg.EventBusURL)
		busCancel()
		if err != nil {
			slog.Error("failed to connect to event bus", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer bus.Close()
		slog.Info("event bus connected")
	}

	visitRepo := postgres.NewVisitRepository(db)
	siteRepo := postgres.NewSiteRepository(db)

	classifier := service.NewSiteClassifier(nil)
	ledger := service.NewLedgerService(visitRepo)
	sites := service.NewSiteService(siteRepo, classifier)
	views := service.NewViewURLs(cfg.ViewsBaseURL)

	if err := sites.Bootstrap(connCtx, cfg.DefaultSites); err != nil {
		slog.Error("failed to bootstrap watched sites", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hub := websocket.NewHub()

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil && err != context.Canceled {
			slog.Error("hub error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("websocket hub started")

	// A typed nil *EventBus must not end up in the interface
	var events service.EventPublisher
	if bus != nil {
		events = bus
	}
	gate := service.NewGateService(classifier, ledger, hub, views, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go gate.Run(ctx, cfg.SweepInterval)
	slog.Info("session sweep started", slog.Duration("interval", cfg.SweepInterval))

	gateHandler := handler.NewGateHandler(gate, views)
	visitHandler := handler.NewVisitHandler(gate, ledger)
	siteHandler := handler.NewSiteHandler(sites)
	tabsHandler := handler.NewTabsHandler(hub, gate, cfg.AllowedOrigins)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.AllowedOrigins)))
	r.Use(middleware.Metrics())
	r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig()))

	r.Get("/health", handler.Health)
	if bus != nil {
		r.Get("/health/ready", handler.Ready(db, bus))
	} else {
		r.Get("/health/ready", handler.Ready(db, nil))
	}
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Decide sits on the navigation path, so its budget is far above
		// the rest of the API
		decideLimiter := middleware.NewRateLimiter(ctx, 200, 400)
		apiLimiter := middleware.NewRateLimiter(ctx, 20, 50)

		r.Group(func(r chi.Router) {
			r.Use(decideLimiter.Middleware())
			r.Post("/gate/decide", gateHandler.Decide)
		})

		r.Group(func(r chi.Router) {
			r.Use(apiLimiter.Middleware())

			r.Post("/gate/allow", gateHandler.Allow)
			r.Post("/gate/block", gateHandler.Block)
			r.Get("/visits", visitHandler.History)
			r.Post("/visits/{visitID}/reflection", visitHandler.StoreReflection)
			r.Get("/sites", siteHandler.List)
			r.Put("/sites", siteHandler.Update)
		})
	})

	r.Get("/ws/tabs", tabsHandler.HandleConnection)

	srv := &http.Server{
		Addr:         "127.0.0.1:" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("waypoint daemon listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down daemon")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	hubCancel()

	time.Sleep(100 * time.Millisecond)

	slog.Info("daemon stopped gracefully")
}
