package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/code-assistant/pkg/config"
	"github.com/abdhe/code-assistant/pkg/logging"
	"github.com/abdhe/code-assistant/pkg/provider"
	"github.com/abdhe/code-assistant/pkg/resilience"
)

// failingBackend answers every /v1/models call with status and counts them.
func failingBackend(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			calls.Add(1)
		}
		http.Error(w, http.StatusText(status), status)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func fastBackoff(t *testing.T) {
	t.Helper()
	prev := loadBackoff
	loadBackoff = func() resilience.RetryConfig {
		return resilience.RetryConfig{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	}
	t.Cleanup(func() { loadBackoff = prev })
}

func modelConfig(url string) config.ModelConfig {
	mc := config.Default().Model
	mc.BackendURL = url
	mc.RequestTimeout = time.Second
	mc.LoadRetries = 3
	return mc
}

func TestLoadModelRejectedTokenIsNotRetried(t *testing.T) {
	fastBackoff(t)
	srv, calls := failingBackend(t, http.StatusUnauthorized)

	h, err := loadModel(context.Background(), modelConfig(srv.URL), logging.Discard())
	require.Error(t, err)
	assert.Nil(t, h)
	assert.False(t, provider.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoadModelRetriesUnavailableBackend(t *testing.T) {
	fastBackoff(t)
	srv, calls := failingBackend(t, http.StatusServiceUnavailable)

	_, err := loadModel(context.Background(), modelConfig(srv.URL), logging.Discard())
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err))
	assert.Equal(t, int32(4), calls.Load(), "first attempt plus three retries")
}

func TestServeFailsBeforeListening(t *testing.T) {
	fastBackoff(t)
	srv, _ := failingBackend(t, http.StatusUnauthorized)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	cfg := config.Default()
	cfg.Model = modelConfig(srv.URL)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = port
	cfg.Server.GRPCPort = 0
	cfg.Server.MetricsPort = 0

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), cfg, logging.Discard()) }()

	select {
	case err := <-done:
		require.ErrorContains(t, err, "load model")
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running after the model failed to load")
	}

	// Nothing was left bound on the HTTP port.
	lis, err = net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	_ = lis.Close()
}
