// File: internal/captcha/bridge.go
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/config"
)

// Bridge is the local HTTP facade the companion browser extension talks to.
// It exposes the solving service over loopback so content scripts never hold
// the API key.
type Bridge struct {
	cfg    config.BridgeConfig
	solver *Solver
	logger *zap.Logger

	srv *http.Server
	ln  net.Listener
}

// NewBridge wires the bridge routes. Call Start to begin serving.
func NewBridge(cfg config.BridgeConfig, solver *Solver, logger *zap.Logger) *Bridge {
	b := &Bridge{cfg: cfg, solver: solver, logger: logger.Named("bridge")}

	r := mux.NewRouter()
	r.Use(b.corsMiddleware)
	r.HandleFunc("/health", b.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/balance", b.handleBalance).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/solve", b.handleSolve).Methods(http.MethodPost, http.MethodOptions)

	b.srv = &http.Server{
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // /solve blocks for the whole solve
	}
	return b
}

// Start binds the listener and serves in the background. Binding errors are
// returned synchronously so a port conflict surfaces at startup.
func (b *Bridge) Start() error {
	addr := fmt.Sprintf("%s:%d", b.cfg.Host, b.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge failed to bind %s: %w", addr, err)
	}
	b.ln = ln

	go func() {
		if err := b.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			b.logger.Error("Bridge server stopped unexpectedly", zap.Error(err))
		}
	}()
	b.logger.Info("Extension bridge listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, valid after Start.
func (b *Bridge) Addr() string {
	if b.ln == nil {
		return ""
	}
	return b.ln.Addr().String()
}

// Stop drains in-flight requests and shuts the server down.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.ln == nil {
		return nil
	}
	return b.srv.Shutdown(ctx)
}

// corsMiddleware admits extension origins. The bridge binds loopback only, so
// the permissive origin is confined to the local machine.
func (b *Bridge) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Bridge) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		b.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (b *Bridge) handleHealth(w http.ResponseWriter, _ *http.Request) {
	b.writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"solver_configured": b.solver != nil && b.solver.Configured(),
	})
}

func (b *Bridge) handleBalance(w http.ResponseWriter, r *http.Request) {
	if b.solver == nil || !b.solver.Configured() {
		b.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no solving service configured",
		})
		return
	}
	balance, err := b.solver.Balance(r.Context())
	if err != nil {
		b.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	b.writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

// solveRequest mirrors the Challenge wire shape the extension sends.
type solveRequest struct {
	CaptchaType string `json:"captcha_type"`
	SiteKey     string `json:"site_key"`
	PageURL     string `json:"page_url"`
	Action      string `json:"action,omitempty"`
}

type solveResponse struct {
	Success  bool   `json:"success"`
	Solution string `json:"solution,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (b *Bridge) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.writeJSON(w, http.StatusBadRequest, solveResponse{Error: "invalid request body"})
		return
	}
	if req.SiteKey == "" || req.PageURL == "" {
		b.writeJSON(w, http.StatusBadRequest, solveResponse{Error: "site_key and page_url are required"})
		return
	}
	if b.solver == nil || !b.solver.Configured() {
		b.writeJSON(w, http.StatusServiceUnavailable, solveResponse{Error: "no solving service configured"})
		return
	}

	ch := &Challenge{
		Type:    req.CaptchaType,
		SiteKey: req.SiteKey,
		PageURL: req.PageURL,
		Action:  req.Action,
	}
	if ch.Type == "" {
		ch.Type = TypeRecaptchaV2
	}

	b.logger.Info("Bridge solve request",
		zap.String("type", ch.Type),
		zap.String("page_url", ch.PageURL))

	token, err := b.solver.Solve(r.Context(), ch)
	if err != nil {
		b.writeJSON(w, http.StatusBadGateway, solveResponse{Error: err.Error()})
		return
	}
	b.writeJSON(w, http.StatusOK, solveResponse{Success: true, Solution: token})
}
