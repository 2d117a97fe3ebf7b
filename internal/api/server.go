// Package api provides the HTTP and WebSocket server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/stratlab/backtest-backend/internal/backtest"
	"github.com/stratlab/backtest-backend/internal/data"
	"github.com/stratlab/backtest-backend/pkg/types"
)

// Server is the HTTP/WebSocket API server
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	clients    map[string]*Client
	store      *data.Store
	runner     *backtest.Runner
	runs       map[string]*RunState
	registry   *prometheus.Registry
	metrics    *Metrics
}

// RunState tracks a backtest run submitted through the API
type RunState struct {
	ID      string           `json:"id"`
	Request *types.RunRequest `json:"request"`
	Status  string           `json:"status"`
	Started time.Time        `json:"started"`
	Result  *types.RunResult `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// NewServer creates a new API server
func NewServer(logger *zap.Logger, config *types.ServerConfig, store *data.Store, runner *backtest.Runner) *Server {
	registry := prometheus.NewRegistry()
	server := &Server{
		logger:   logger,
		config:   config,
		router:   mux.NewRouter(),
		clients:  make(map[string]*Client),
		store:    store,
		runner:   runner,
		runs:     make(map[string]*RunState),
		registry: registry,
		metrics:  NewMetrics(registry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	// Data endpoints
	s.router.HandleFunc("/api/v1/data/symbols", s.handleGetSymbols).Methods("GET")
	s.router.HandleFunc("/api/v1/data/history/{symbol}", s.handleGetHistory).Methods("GET")

	// Backtest endpoints
	s.router.HandleFunc("/api/v1/backtest/run", s.handleRunBacktest).Methods("POST")
	s.router.HandleFunc("/api/v1/backtest/sweep", s.handleSweep).Methods("POST")
	s.router.HandleFunc("/api/v1/backtest/{id}", s.handleGetRun).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/ledger", s.handleGetLedger).Methods("GET")

	// DCA endpoint
	s.router.HandleFunc("/api/v1/dca/run", s.handleDCA).Methods("POST")

	// Prometheus metrics
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// WebSocket
	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting API server", zap.String("addr", addr))

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// Router exposes the route tree for tests.
func (s *Server) Router() http.Handler { return s.router }

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// handleGetSymbols returns available symbols
func (s *Server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := s.store.Symbols()

	// Sample symbols keep a fresh install usable
	if len(symbols) == 0 {
		symbols = []string{"AAPL", "MSFT", "SPY"}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbols": symbols,
	})
}

// handleGetHistory returns the stored daily bars for a symbol
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]

	bars, err := s.store.LoadBars(r.Context(), symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbol": symbol,
		"bars":   bars,
		"count":  len(bars),
	})
}

// handleRunBacktest starts a backtest in the background and returns its id
func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req types.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	state := &RunState{
		ID:      req.ID,
		Request: &req,
		Status:  "running",
		Started: time.Now(),
	}

	s.mu.Lock()
	s.runs[req.ID] = state
	s.mu.Unlock()

	go func() {
		timer := prometheus.NewTimer(s.metrics.RunDuration)
		result, err := s.runner.Run(context.Background(), &req)
		timer.ObserveDuration()

		s.mu.Lock()
		if err != nil {
			state.Status = "failed"
			state.Error = err.Error()
			s.logger.Error("Backtest failed", zap.String("id", req.ID), zap.Error(err))
		} else {
			state.Status = "completed"
			state.Result = result
		}
		status := state.Status
		s.mu.Unlock()

		s.metrics.RunsTotal.WithLabelValues(status).Inc()
		s.broadcast(&Message{
			ID:        uuid.New().String(),
			Type:      "event",
			Method:    "backtest:complete",
			Payload:   map[string]interface{}{"id": req.ID, "status": status},
			Timestamp: time.Now().UnixMilli(),
		})
	}()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      req.ID,
		"status":  "running",
		"started": state.Started.Unix(),
	})
}

// handleSweep runs a batch of backtests synchronously on the worker pool
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var reqs []*types.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(reqs) == 0 {
		http.Error(w, "Empty sweep", http.StatusBadRequest)
		return
	}

	results, err := s.runner.Sweep(r.Context(), reqs)
	if err != nil {
		s.metrics.RunsTotal.WithLabelValues("failed").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for range results {
		s.metrics.RunsTotal.WithLabelValues("completed").Inc()
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// handleGetRun returns the state of a backtest run
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	s.mu.RLock()
	state, ok := s.runs[id]
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "Backtest not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(state)
}

// handleGetLedger returns the ledger rows of a completed run
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	s.mu.RLock()
	state, ok := s.runs[id]
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "Backtest not found", http.StatusNotFound)
		return
	}
	if state.Result == nil {
		http.Error(w, "Backtest not complete", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     id,
		"ledger": state.Result.Ledger,
		"count":  len(state.Result.Ledger),
	})
}

// handleDCA runs a dollar-cost-averaging report
func (s *Server) handleDCA(w http.ResponseWriter, r *http.Request) {
	var req types.DCARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rows, dates, err := s.runner.DCA(r.Context(), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbol":        req.Symbol,
		"rows":          rows,
		"purchaseDates": dates,
		"count":         len(rows),
	})
}
