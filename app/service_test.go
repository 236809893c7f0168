package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/porttrack/config"
	"github.com/kilianp07/porttrack/core/model"
)

type remoteServer struct {
	mu     sync.Mutex
	pushes []map[string]any
	doc    model.Document
}

func (r *remoteServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch req.Method {
	case http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		r.pushes = append(r.pushes, body)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(r.doc)
	}
}

func testConfig(t *testing.T, remoteURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.Path = filepath.Join(t.TempDir(), "store.json")
	if remoteURL != "" {
		cfg.Remote.Enabled = true
		cfg.Remote.BaseURL = remoteURL
		cfg.Remote.PushPerMinute = 600
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceHealth(t *testing.T) {
	svc, err := New(testConfig(t, ""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["sync"])
}

func TestServiceReportsPushToRemote(t *testing.T) {
	remote := &remoteServer{doc: model.EmptyDocument()}
	rsrv := httptest.NewServer(remote)
	t.Cleanup(rsrv.Close)

	svc, err := New(testConfig(t, rsrv.URL))
	require.NoError(t, err)
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/ship-tracker/reports", "application/json",
		strings.NewReader(`[{"id":"V1","lat":28.9,"lng":-94.5,"speed":12,"heading":10}]`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, svc.Close())
	remote.mu.Lock()
	defer remote.mu.Unlock()
	require.Len(t, remote.pushes, 1)
	assert.Equal(t, true, remote.pushes[0]["merge"])
	vessels, ok := remote.pushes[0]["vessels"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, vessels, "V1")
}

func TestServiceForecastUsesTrackedVessels(t *testing.T) {
	svc, err := New(testConfig(t, ""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/ship-tracker/reports", "application/json",
		strings.NewReader(`[{"id":"IN","lat":28.9,"lng":-94.5,"speed":12,"heading":10},
		{"id":"DOCK","lat":29.72,"lng":-95.0,"speed":0.1}]`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/forecast/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	var summary struct {
		TotalVessels int `json:"total_vessels"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 1, summary.TotalVessels)
}
