// File: internal/captcha/bridge_test.go
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/tkoster88/applypilot-cli/internal/config"
)

// startBridge binds an ephemeral port and registers shutdown cleanup.
func startBridge(t *testing.T, solver *Solver) *Bridge {
	t.Helper()
	b := NewBridge(config.BridgeConfig{Enabled: true, Host: "127.0.0.1", Port: 0}, solver, zaptest.NewLogger(t))
	require.NoError(t, b.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, b.Stop(ctx))
	})
	return b
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestBridgeLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)
	defer http.DefaultClient.CloseIdleConnections()

	b := NewBridge(config.BridgeConfig{Host: "127.0.0.1", Port: 0}, nil, zaptest.NewLogger(t))
	require.NoError(t, b.Start())
	require.NotEmpty(t, b.Addr())

	var health map[string]any
	resp := getJSON(t, "http://"+b.Addr()+"/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, false, health["solver_configured"])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Stop(ctx))
}

func TestBridgeCORSPreflight(t *testing.T) {
	b := startBridge(t, nil)

	req, err := http.NewRequest(http.MethodOptions, "http://"+b.Addr()+"/solve", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestBridgeBalance(t *testing.T) {
	svc := &solvingService{}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	solver := NewSolver(solverConfig(srv.URL, 10*time.Millisecond, time.Second), zaptest.NewLogger(t))
	b := startBridge(t, solver)

	var body map[string]float64
	resp := getJSON(t, "http://"+b.Addr()+"/balance", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.75, body["balance"])
}

func TestBridgeBalanceWithoutSolver(t *testing.T) {
	b := startBridge(t, nil)

	var body map[string]string
	resp := getJSON(t, "http://"+b.Addr()+"/balance", &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body["error"], "no solving service")
}

func TestBridgeSolve(t *testing.T) {
	svc := &solvingService{readyAfter: 1, token: "bridge-token"}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	solver := NewSolver(solverConfig(srv.URL, 10*time.Millisecond, 2*time.Second), zaptest.NewLogger(t))
	b := startBridge(t, solver)

	payload, _ := json.Marshal(solveRequest{
		CaptchaType: TypeRecaptchaV2,
		SiteKey:     "site-key",
		PageURL:     "https://jobs.example.com/apply",
	})
	resp, err := http.Post("http://"+b.Addr()+"/solve", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out solveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
	assert.Equal(t, "bridge-token", out.Solution)
}

func TestBridgeSolveValidatesRequest(t *testing.T) {
	b := startBridge(t, nil)

	resp, err := http.Post("http://"+b.Addr()+"/solve", "application/json",
		bytes.NewReader([]byte(`{"captcha_type":"recaptcha_v2"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out solveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out.Error, "required")
}

func TestBridgePortConflict(t *testing.T) {
	first := startBridge(t, nil)
	_, portStr, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	second := NewBridge(config.BridgeConfig{Host: "127.0.0.1", Port: port}, nil, zaptest.NewLogger(t))
	err = second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind")
}
