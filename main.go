// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"sitecheckout/internal/backend"
	"sitecheckout/internal/catalog"
	"sitecheckout/internal/checkout"
	"sitecheckout/internal/config"
	"sitecheckout/internal/logger"
	"sitecheckout/internal/middleware"
	"sitecheckout/internal/security"
	"sitecheckout/internal/session"
	"sitecheckout/internal/stock"
	"sitecheckout/internal/ws"
)

type App struct {
	addr          string
	mux           *http.ServeMux
	ws            http.HandlerFunc
	allowedOrigin string
	connections   sync.WaitGroup
	totalRequests int64
}

func main() {
	// Step 1: Setup configuration first
	config.LoadEnv()

	// Step 2: Setup logging
	loggerConfig := config.LoggerConfig()
	if err := logger.SetupLogger(loggerConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	// Only NOW is logging safe to use!
	logger.LogInfo("Environment loaded. Logger ready.")

	// Step 3: Load checkout configuration
	cfg, err := config.LoadCheckoutConfig()
	if err != nil {
		logger.LogFatal("Failed to load checkout config: %v", err)
	}
	config.LogCurrentEnvironment()

	// Step 4: Wire the inventory backend
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	var source catalog.Source = client
	if cfg.CatalogFile != "" {
		source = catalog.FileSource{Path: cfg.CatalogFile}
	}

	gate, err := security.NewGate(cfg.StockPassword)
	if err != nil {
		logger.LogFatal("Failed to set up stock password: %v", err)
	}

	// Step 5: Start background tasks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := session.NewStore(cfg.SessionTTL)
	sessions.StartJanitor(ctx, time.Minute)

	// Step 6: Setup app
	h := checkout.New(checkout.Deps{
		Sessions: sessions,
		Source:   source,
		Backend:  client,
		Stock:    stock.NewService(gate, client),
		Hub:      ws.NewHub(),
		Now:      func() time.Time { return time.Now().In(cfg.TimeZone) },
	})

	app := &App{
		addr:          config.ServerAddress(),
		mux:           routes(h),
		ws:            h.ServeWS,
		allowedOrigin: cfg.AllowedOrigin,
	}

	// Step 7: Run server
	app.Run()
}

// routes sets up all API routes
func routes(h *checkout.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	h.Register(mux)
	return mux
}

// Run starts the HTTP server
func (a *App) Run() {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogFatal("Server failed: %v", err)
		}
	}()

	<-stop
	logger.LogInfo("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server shutdown error: %v", err)
	}

	logger.LogInfo("Waiting for active connections to finish...")
	a.connections.Wait()
	logger.LogInfo("All connections closed. Total requests handled: %d", atomic.LoadInt64(&a.totalRequests))
	logger.LogInfo("Server shut down gracefully")
}

// Handler assembles all middleware around the main mux. The websocket route skips the
// timeout wrapper since it hijacks the connection.
func (a *App) Handler() http.Handler {
	api := withCustom404(a.mux)
	api = a.trackConnections(api)
	api = logRequests(api)
	api = withTimeout(api, 15*time.Second)
	api = security.AddCORSHeaders(a.allowedOrigin, api)

	root := http.NewServeMux()
	root.Handle("GET /ws", a.ws)
	root.Handle("/", api)
	return root
}

// Middleware: timeout handler
func withTimeout(h http.Handler, timeout time.Duration) http.Handler {
	return http.TimeoutHandler(h, timeout, `{"code":"timeout","message":"Request timed out"}`)
}

// Middleware: log requests
func logRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		h.ServeHTTP(w, r)

		duration := time.Since(start)
		logger.LogInfo("%s %s took %v", r.Method, r.URL.Path, duration)
	})
}

// Middleware: track active connections and total requests
func (a *App) trackConnections(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.connections.Add(1)
		atomic.AddInt64(&a.totalRequests, 1)
		defer a.connections.Done()

		h.ServeHTTP(w, r)
	})
}

// Middleware: JSON 404 for routes the mux does not know
func withCustom404(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := mux.Handler(r); pattern == "" {
			logger.LogInfo("404 not found: %s %s", r.Method, r.URL.Path)
			middleware.WriteAPIError(w, r, http.StatusNotFound, "not_found", "The requested resource was not found", r.URL.Path)
			return
		}
		mux.ServeHTTP(w, r)
	})
}
