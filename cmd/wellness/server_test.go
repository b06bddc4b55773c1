package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/api"
	"github.com/NisargKadam/mental-wellness-agent/config"
	"github.com/NisargKadam/mental-wellness-agent/internal/runstore"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// newOfflineApp 装配使用离线模型与内存运行记录的应用
func newOfflineApp(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "offline"
	cfg.History.Backend = runstore.BackendMemory
	if mutate != nil {
		mutate(cfg)
	}

	a, err := newApp(context.Background(), cfg, zap.NewNop(), appOptions{offline: true})
	require.NoError(t, err)
	t.Cleanup(func() { a.close(context.Background()) })
	return a
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestServer_RespondAndHistory(t *testing.T) {
	a := newOfflineApp(t, nil)
	ts := httptest.NewServer(NewServer(a).Handler(t.Context()))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/respond", "application/json",
		strings.NewReader(`{"input":"I'm so stressed about my deadlines"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	answer := decodeEnvelope[api.RespondResponse](t, resp)
	require.True(t, answer.Success)
	assert.Equal(t, workflow.RunCompleted, answer.Data.Status)
	assert.False(t, answer.Data.Blocked)
	assert.NotEmpty(t, answer.Data.FinalOutput.PracticalSteps)
	require.NotEmpty(t, answer.Data.RunID)

	listResp, err := http.Get(ts.URL + "/v1/runs?graph=mental-wellness")
	require.NoError(t, err)
	list := decodeEnvelope[api.RunListResponse](t, listResp)
	require.True(t, list.Success)
	require.Equal(t, 1, list.Data.Count)
	assert.Equal(t, answer.Data.RunID, list.Data.Runs[0].RunID)

	getResp, err := http.Get(ts.URL + "/v1/runs/" + answer.Data.RunID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	rec := decodeEnvelope[workflow.RunRecord](t, getResp)
	assert.Equal(t, workflow.RunCompleted, rec.Data.Status)

	missing, err := http.Get(ts.URL + "/v1/runs/does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	_ = missing.Body.Close()
}

func TestServer_BlockedRequest(t *testing.T) {
	a := newOfflineApp(t, nil)
	ts := httptest.NewServer(NewServer(a).Handler(t.Context()))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/respond", "application/json",
		strings.NewReader(`{"input":"I want to end my life"}`))
	require.NoError(t, err)

	answer := decodeEnvelope[api.RespondResponse](t, resp)
	assert.True(t, answer.Data.Blocked)
	assert.Equal(t, workflow.RunBlocked, answer.Data.Status)
}

func TestServer_MethodAndHealthRoutes(t *testing.T) {
	a := newOfflineApp(t, nil)
	ts := httptest.NewServer(NewServer(a).Handler(t.Context()))
	defer ts.Close()

	for _, path := range []string{"/health", "/healthz", "/ready", "/readyz", "/version"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		_ = resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/v1/respond")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/v1/graph?format=mermaid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestServer_APIKeyRequired(t *testing.T) {
	a := newOfflineApp(t, func(cfg *config.Config) {
		cfg.Server.APIKeys = []string{"k1"}
	})
	ts := httptest.NewServer(NewServer(a).Handler(t.Context()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/graph")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/graph", nil)
	req.Header.Set("X-API-Key", "k1")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestServer_HistoryDisabled(t *testing.T) {
	a := newOfflineApp(t, func(cfg *config.Config) {
		cfg.History.Backend = runstore.BackendNone
	})
	require.Nil(t, a.store)

	ts := httptest.NewServer(NewServer(a).Handler(t.Context()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	a := newOfflineApp(t, func(cfg *config.Config) {
		cfg.Server.HTTPPort = 0
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(a).Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
