package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNetworkInfoParsesHeightAndCurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			t.Errorf("path = %q, want /info", r.URL.Path)
		}
		w.Write([]byte(`{"height": 1234, "current": "abc123"}`))
	}))
	defer server.Close()

	g := New(server.URL, time.Second)
	info, err := g.NetworkInfo(context.Background())
	if err != nil {
		t.Fatalf("NetworkInfo: %v", err)
	}
	if info.Height != "1234" {
		t.Errorf("Height = %q, want 1234", info.Height)
	}
	if info.Current != "abc123" {
		t.Errorf("Current = %q, want abc123", info.Current)
	}
}

func TestNetworkInfoPropagatesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	g := New(server.URL, time.Second)
	if _, err := g.NetworkInfo(context.Background()); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestCheckHeadFoundAndNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tx/present/status" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	g := New(server.URL, time.Second)

	found, err := g.CheckHead(context.Background(), "present")
	if err != nil || !found {
		t.Errorf("CheckHead(present) = %v, %v, want true, nil", found, err)
	}

	found, err = g.CheckHead(context.Background(), "absent")
	if err != nil || found {
		t.Errorf("CheckHead(absent) = %v, %v, want false, nil", found, err)
	}
}

func TestCheckHeadPropagatesUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	g := New(server.URL, time.Second)
	if _, err := g.CheckHead(context.Background(), "x"); err == nil {
		t.Fatal("expected an error for an unexpected status code")
	}
}
