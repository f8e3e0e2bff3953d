package glowctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"glowhost/pkg/types"
)

func TestClientListNetworks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/networks" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]types.NetworkStatus{{Name: "f", RefCount: 1}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	nets, err := c.ListNetworks(context.Background())
	if err != nil {
		t.Fatalf("ListNetworks: %v", err)
	}
	if len(nets) != 1 || nets[0].Name != "f" {
		t.Fatalf("unexpected networks: %+v", nets)
	}
}

func TestClientMapsErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "network not found: f", Code: 404})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.GetNetworkDAG(context.Background(), "f"); err == nil {
		t.Fatal("expected error")
	}
}

func TestClientRemoveNetwork(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.RemoveNetwork(context.Background(), "f"); err != nil {
		t.Fatalf("RemoveNetwork: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", gotMethod)
	}
}

func TestClientClearHost(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.ClearHost(context.Background()); err != nil {
		t.Fatalf("ClearHost: %v", err)
	}
	if gotPath != "/clear" {
		t.Fatalf("expected /clear, got %q", gotPath)
	}
}
