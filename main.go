package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"openwork-backend/config"
	"openwork-backend/container"
	"openwork-backend/core/conversation"
	"openwork-backend/indexer"
	"openwork-backend/middleware"
	"openwork-backend/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	relay := services.NewRelaySubmitter(cfg.RelayURL, cfg.RelayTimeout)
	c, err := container.NewContainer(ctx, cfg, nil, relay, registry)
	if err != nil {
		log.Fatalf("failed to build container: %v", err)
	}
	defer c.Close()

	indexerClient := indexer.NewClient(cfg.IndexerURL, 0)
	for _, jobID := range cfg.WatchJobs {
		watcher := indexer.NewWatcher(indexerClient, jobID, cfg.PollInterval)
		watcher.SetObserver(c.Metrics)
		sync := services.NewEventService(watcher, c.Store, c.JobCache)
		view := conversation.NewConversationView(c.Keys, c.IPFS)
		view.SetObserver(c.Metrics)
		sync.AttachView(view)
		go sync.Run(ctx)
		go watcher.Run(ctx)
		log.Printf("Mirroring job %s from %s", jobID, cfg.IndexerURL)
	}

	apiMux := http.NewServeMux()
	setupRoutes(apiMux, c)

	var api http.Handler = middleware.ContentType(apiMux)
	if cfg.APIKey != "" {
		api = middleware.APIAuth(middleware.StaticAPIKey(cfg.APIKey))(api)
		log.Println("API key auth enabled for /api/")
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				middleware.SecurityHeaders(
					middleware.ValidateFilename(
						middleware.RateLimit(300, time.Minute)(
							middleware.Timeout(30 * time.Second)(mux),
						),
					),
				),
			),
		),
	)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on %s", cfg.HTTPAddr)
	log.Printf("Conversation API endpoints at: http://localhost%s/api/", cfg.HTTPAddr)
	log.Printf("Metrics at: http://localhost%s/metrics", cfg.HTTPAddr)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

func setupRoutes(mux *http.ServeMux, c *container.Container) {
	// Health endpoints
	mux.HandleFunc("/api/health", c.HealthHandler.HandleHealth)

	// Job and conversation endpoints
	mux.HandleFunc("/api/jobs", c.JobHandler.HandleJobs)
	mux.HandleFunc("/api/jobs/", c.JobHandler.HandleJob)

	// Profile endpoints
	mux.HandleFunc("/api/users/", c.UserHandler.HandleUser)

	// QR code endpoints
	mux.HandleFunc("/api/qrcode", c.QRCodeHandler.HandleQRCode)
}
