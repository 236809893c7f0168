package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/porttrack/auth"
	"github.com/kilianp07/porttrack/core/model"
)

func TestClient_PushSendsMergeFlag(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ship-tracker", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	doc := model.EmptyDocument()
	doc.Vessels["V1"] = model.VesselRecord{ID: "V1", Status: model.StatusInbound}
	c := NewClient(Config{BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, c.Push(context.Background(), doc))

	assert.JSONEq(t, "true", string(got["merge"]))
	assert.Contains(t, got, "vessels")
	assert.Contains(t, got, "history")
}

func TestClient_PushNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(Config{BaseURL: srv.URL}, nil).Push(context.Background(), model.EmptyDocument())
	assert.Error(t, err)
}

func TestClient_Pull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"vessels":{"V9":{"id":"V9","status":"docked"}},"history":[],"stats":{"totalTracked":1}}`))
	}))
	defer srv.Close()

	doc, err := NewClient(Config{BaseURL: srv.URL}, nil).Pull(context.Background())
	require.NoError(t, err)
	require.Contains(t, doc.Vessels, "V9")
	assert.Equal(t, model.StatusDocked, doc.Vessels["V9"].Status)
	assert.Equal(t, 1, doc.Stats.TotalTracked)
}

func TestClient_PullErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("x") == "" {
			_, _ = w.Write([]byte(`not json`))
			return
		}
	}))
	defer srv.Close()
	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Pull(context.Background())
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil).Pull(context.Background())
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Enabled: true}.Validate())
	assert.NoError(t, Config{}.Validate())
	c := Config{}
	c.SetDefaults()
	assert.Equal(t, 10, c.TimeoutSeconds)
	assert.Equal(t, 6, c.PushPerMinute)
}

func TestClient_OAuthRefreshOn401(t *testing.T) {
	var issued int
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		issued++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok` + string(rune('0'+issued)) + `","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer tok2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"vessels":{},"history":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Auth: auth.Conf{ClientID: "id", ClientSecret: "s", AuthURL: tokenSrv.URL}}, nil)
	_, err := c.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer tok1", "Bearer tok2"}, seen)
	assert.Equal(t, 2, issued)
}
