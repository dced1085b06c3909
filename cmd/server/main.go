package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/invoiceworks/ruleflow/engine"
	"github.com/invoiceworks/ruleflow/internal/logger"
	"github.com/invoiceworks/ruleflow/lookup"
	"github.com/invoiceworks/ruleflow/rules"
)

// Config is the service configuration, read from the environment. With no
// DATABASE_URL the service runs entirely off the YAML rule and lookup files.
type Config struct {
	DatabaseURL string        `env:"DATABASE_URL"`
	Port        string        `env:"PORT" envDefault:"8080"`
	RulesPath   string        `env:"RULES_PATH" envDefault:"config/rules.yaml"`
	LookupPath  string        `env:"LOOKUP_PATH" envDefault:"config/lookup.yaml"`
	LookupTTL   time.Duration `env:"LOOKUP_CACHE_TTL" envDefault:"5m"`
}

type Server struct {
	db        *sql.DB
	store     rules.Store
	cache     rules.SnapshotCache
	processor *engine.Processor
	evaluator *engine.Evaluator
	router    *chi.Mux
}

func NewServer(cfg Config) (*Server, error) {
	var db *sql.DB
	var store rules.Store
	var source lookup.Adapter

	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store = rules.NewPostgresStore(db)
		source = lookup.NewPostgresSource(db, lookup.DefaultTableSpecs())
	} else {
		store = rules.NewYAMLStore(cfg.RulesPath)
		static, err := lookup.NewStaticSourceFromFile(cfg.LookupPath)
		if err != nil {
			return nil, err
		}
		source = static
	}

	evaluator, err := engine.NewEvaluator(engine.KeywordClassifier{},
		lookup.NewCachedSource(source, cfg.LookupTTL))
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:        db,
		store:     store,
		cache:     rules.NewInMemorySnapshotCache(rules.DefaultCacheConfig()),
		processor: engine.NewProcessor(evaluator),
		evaluator: evaluator,
	}

	// Fail fast on unreadable rule configuration.
	snap, err := store.Load(context.Background())
	if err != nil {
		return nil, err
	}
	s.cache.Set(snap)
	logger.Info("rules loaded",
		"completion_rules", len(snap.Completion),
		"validation_rules", len(snap.Validation))

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Route("/api/v1/invoices", func(r chi.Router) {
		r.Post("/process", s.handleProcess)
		r.Post("/complete", s.handleComplete)
		r.Post("/validate", s.handleValidate)
	})

	r.Post("/api/v1/expressions/validate", s.handleCheckExpression)

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/reload", s.handleReloadRules)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// snapshot returns the active rule set, reloading from the store on a cache
// miss.
func (s *Server) snapshot(ctx context.Context) (*rules.Snapshot, error) {
	if snap := s.cache.Get(); snap != nil {
		return snap, nil
	}
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(snap)
	return snap, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"completion_rules": len(snap.Completion),
		"validation_rules": len(snap.Validation),
	})
}

// handleProcess runs completion and then validates the completed document in
// one call.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeInvoiceRequest(w, r)
	if !ok {
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load rules", err)
		return
	}

	started := time.Now()
	completed := s.processor.Complete(r.Context(), req.Invoice, snap.Completion)
	report := s.processor.Validate(r.Context(), completed.Document, snap.Validation)

	respondJSON(w, http.StatusOK, ProcessResponse{
		RunID:          uuid.NewString(),
		Document:       completed.Document,
		ExecutionLog:   completed.Log,
		Validation:     report,
		ProcessingTime: time.Since(started).String(),
	})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeInvoiceRequest(w, r)
	if !ok {
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load rules", err)
		return
	}

	started := time.Now()
	completed := s.processor.Complete(r.Context(), req.Invoice, snap.Completion)

	respondJSON(w, http.StatusOK, CompleteResponse{
		RunID:          uuid.NewString(),
		Document:       completed.Document,
		ExecutionLog:   completed.Log,
		ProcessingTime: time.Since(started).String(),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeInvoiceRequest(w, r)
	if !ok {
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load rules", err)
		return
	}

	report := s.processor.Validate(r.Context(), req.Invoice, snap.Validation)
	respondJSON(w, http.StatusOK, report)
}

// handleCheckExpression compiles an expression without evaluating it, for
// rule authoring tools.
func (s *Server) handleCheckExpression(w http.ResponseWriter, r *http.Request) {
	var req CheckExpressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Expression == "" {
		respondError(w, http.StatusBadRequest, "expression is required", nil)
		return
	}

	if err := s.evaluator.Check(req.Expression); err != nil {
		respondJSON(w, http.StatusOK, CheckExpressionResponse{
			Valid: false,
			Error: err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, CheckExpressionResponse{Valid: true})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load rules", err)
		return
	}

	respondJSON(w, http.StatusOK, RulesResponse{
		Completion: snap.Completion,
		Validation: snap.Validation,
		LoadedAt:   snap.LoadedAt,
	})
}

func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Load(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reload rules", err)
		return
	}
	s.cache.Set(snap)

	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "reloaded",
		"completion_rules": len(snap.Completion),
		"validation_rules": len(snap.Validation),
	})
}

func decodeInvoiceRequest(w http.ResponseWriter, r *http.Request) (InvoiceRequest, bool) {
	var req InvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return req, false
	}
	if req.Invoice == nil {
		respondError(w, http.StatusBadRequest, "invoice is required", nil)
		return req, false
	}
	return req, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
	if status >= 500 {
		logger.ErrorHttp5xx()
	} else if status >= 400 {
		logger.WarnHttp4xx(status)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
