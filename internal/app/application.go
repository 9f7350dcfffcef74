package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"liveclass/internal/config"
	"liveclass/internal/gateway"
	"liveclass/internal/store"
	pkgdatabase "liveclass/pkg/database"
)

// Application coordinates all system components. Initialization follows
// dependency order: store, then gateway, then HTTP.
type Application struct {
	config     *config.Config
	store      *store.Manager
	registry   *gateway.Registry
	gateway    *gateway.Handler
	httpServer *http.Server
}

// NewApplication creates an application with all components initialized.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Store.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Store.WriteTimeout,
		ConnMaxIdleTime: cfg.Store.WriteTimeout / 3,
	}

	storeManager, err := store.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document store: %w", err)
	}

	registry := gateway.NewRegistry()
	gatewayHandler := gateway.NewHandler(storeManager, registry, gateway.Config{
		OwnerLabel:   cfg.Gateway.OwnerLabel,
		PingInterval: cfg.Gateway.PingInterval,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
		BufferSize:   cfg.Gateway.BufferSize,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gatewayHandler.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := storeManager.HealthCheck(ctx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","connections":%d}`, registry.Count())
	})

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:     mux,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		// WriteTimeout stays unset: it would sever long-lived WebSockets.
	}

	return &Application{
		config:     cfg,
		store:      storeManager,
		registry:   registry,
		gateway:    gatewayHandler,
		httpServer: httpServer,
	}, nil
}

// Start begins serving. Returns once the listener is accepting or startup
// failed.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting liveclass application on %s", app.httpServer.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Liveclass application started successfully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP listener first, then
// the store with its notifier and write loop.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down liveclass application")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	app.registry.CloseAll()

	if err := app.store.Close(); err != nil {
		log.Printf("Store shutdown error: %v", err)
	}

	log.Printf("Liveclass application shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
