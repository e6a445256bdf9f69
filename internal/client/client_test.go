package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mcpdeck/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListServersQuery(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]*api.Server{{ID: "a", Name: "one"}})
	}))
	defer ts.Close()

	servers, err := New(ts.URL).ListServers(context.Background(), api.ServerFilter{
		NameContains: "one",
		Status:       api.StatusRunning,
	})
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "one", servers[0].Name)
	assert.Contains(t, gotQuery, "name=one")
	assert.Contains(t, gotQuery, "status=running")
}

func TestErrorBodySurfaced(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "cannot delete server in status running"})
	}))
	defer ts.Close()

	err := New(ts.URL).DeleteServer(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot delete server in status running")
}

func TestResolveServerByName(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/servers/db":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		case r.URL.Path == "/api/v1/servers":
			json.NewEncoder(w).Encode([]*api.Server{
				{ID: "id-1", Name: "db"},
				{ID: "id-2", Name: "db-replica"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	srv, err := New(ts.URL).ResolveServer(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, "id-1", srv.ID)
}

func TestResolveServerUnknown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/servers" {
			json.NewEncoder(w).Encode([]*api.Server{})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}))
	defer ts.Close()

	_, err := New(ts.URL).ResolveServer(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestCreateServerRoundTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name   string           `json:"name"`
			Config api.ServerConfig `json:"config"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&api.Server{ID: "new-id", Name: req.Name, Config: req.Config})
	}))
	defer ts.Close()

	srv, err := New(ts.URL).CreateServer(context.Background(), "api", api.ServerConfig{
		Host: "localhost", Port: 8080, Command: "/usr/bin/node",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", srv.ID)
	assert.Equal(t, 8080, srv.Config.Port)
}
