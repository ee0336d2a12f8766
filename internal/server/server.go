// Package server exposes the lead discovery pipeline over HTTP: job
// submission, status polling, cancellation, and health. Jobs run
// asynchronously on a fixed worker pool; each worker owns one browser
// session at a time.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/leadscout/internal/capture"
	"github.com/jonathan/leadscout/internal/db"
	"github.com/jonathan/leadscout/internal/driver"
	"github.com/jonathan/leadscout/internal/llm"
	"github.com/jonathan/leadscout/internal/server/ratelimit"
	"github.com/jonathan/leadscout/internal/types"
)

const (
	defaultPort     = 8080
	defaultWorkers  = 2
	jobQueueSize    = 64
	shutdownTimeout = 30 * time.Second
)

// Config holds server configuration.
type Config struct {
	Port        int
	Workers     int    // concurrent browser sessions
	DatabaseURL string // optional; empty disables persistence
	APIKey      string // optional Gemini key; empty falls back to DOM extraction
	BaseURL     string // target site root for the default stage sequence
	MediaDir    string
	Headless    bool
	Verbose     bool
}

// Session bundles the per-job driver and media sink. Cleanup must be called
// once the job finishes.
type Session struct {
	Driver  driver.Driver
	Sink    capture.Sink
	Cleanup func()
}

// SessionFactory creates a fresh automation session for one job. Tests
// substitute fakes here to exercise the API without a browser.
type SessionFactory func(ctx context.Context) (*Session, error)

// queuedJob pairs a job with the context its worker must run it under.
type queuedJob struct {
	config types.JobConfig
	stages []types.Stage
	ctx    context.Context
}

// Server is the HTTP API for the job pipeline.
type Server struct {
	httpServer *http.Server
	config     Config
	store      *jobStore
	database   *db.DB
	limiter    *ratelimit.Limiter
	rlEnabled  bool
	newSession SessionFactory
	queue      chan queuedJob
}

// New creates a Server. The database is optional: when cfg.DatabaseURL is
// empty, terminal results live only in memory.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	var database *db.DB
	if cfg.DatabaseURL != "" {
		var err error
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	rlConfig := ratelimit.LoadConfig()

	s := &Server{
		config:    cfg,
		store:     newJobStore(),
		database:  database,
		limiter:   ratelimit.NewLimiter(rlConfig),
		rlEnabled: rlConfig.Enabled,
		queue:     make(chan queuedJob, jobQueueSize),
	}
	s.newSession = s.browserSession

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /jobs/{id}/cancel", s.handleCancelJob)

	s.httpServer = &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      s.withRateLimit(withLogging(withCORS(mux))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the server's HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// browserSession is the production SessionFactory: headless Chrome plus a
// filesystem screenshot sink, with Gemini interpretation when a key is set.
func (s *Server) browserSession(ctx context.Context) (*Session, error) {
	var client llm.Client
	if s.config.APIKey != "" {
		var err error
		client, err = llm.NewGeminiClient(ctx, s.config.APIKey, llm.DefaultModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
	}

	d, err := driver.NewBrowserDriver(ctx, driver.Options{
		Headless: s.config.Headless,
		LLM:      client,
		Verbose:  s.config.Verbose,
	})
	if err != nil {
		if client != nil {
			client.Close()
		}
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	mediaDir := s.config.MediaDir
	if mediaDir == "" {
		mediaDir = "media"
	}
	sink, err := capture.NewFilesystemSink(d, mediaDir)
	if err != nil {
		d.Close()
		if client != nil {
			client.Close()
		}
		return nil, fmt.Errorf("failed to create media sink: %w", err)
	}

	return &Session{
		Driver: d,
		Sink:   sink,
		Cleanup: func() {
			d.Close()
			if client != nil {
				client.Close()
			}
		},
	}, nil
}

// Start runs the server until SIGINT/SIGTERM, then drains workers and shuts
// down gracefully.
func (s *Server) Start() error {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers, workerCtx := errgroup.WithContext(rootCtx)
	for i := 0; i < s.config.Workers; i++ {
		workers.Go(func() error {
			s.runWorker(workerCtx)
			return nil
		})
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s (%d workers)", s.httpServer.Addr, s.config.Workers)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		_ = workers.Wait()
		return fmt.Errorf("server failed: %w", err)
	case <-rootCtx.Done():
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Workers observe rootCtx cancellation and finish their current job.
	_ = workers.Wait()
	s.limiter.Close()
	if s.database != nil {
		s.database.Close()
	}

	log.Println("Server stopped")
	return nil
}

// withLogging logs each request with its duration.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%v)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

// withCORS adds permissive CORS headers and answers preflight requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit enforces per-client token buckets before any handler runs.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rlEnabled {
			next.ServeHTTP(w, r)
			return
		}

		decision := s.limiter.Check(extractClientID(r), r.URL.Path, r.Method)
		if !decision.Unlimited {
			setRateLimitHeaders(w, decision)
		}
		if !decision.Allowed {
			log.Printf("[rate-limit] %s %s denied for %s", r.Method, r.URL.Path, extractClientID(r))
			rateLimitResponse(w, decision)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID identifies a client by remote IP, ignoring the port so a
// client's requests share buckets across connections.
func extractClientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func rateLimitResponse(w http.ResponseWriter, d ratelimit.Decision) {
	retryAfter := d.RetryAfter()
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	jsonResponse(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": retryAfter,
	})
}
