package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testConnection() *ConnectionManager {
	cfg := DefaultConnectionConfig()
	cfg.RequestTimeout = 2 * time.Second
	return NewConnectionManager(cfg)
}

func TestSerpAPIClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api_key") != "secret-1" || q.Get("q") != "example.com/page" || q.Get("engine") != "google" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("num") != "10" {
			t.Errorf("Expected num=10, got %s", q.Get("num"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic_results":[{"position":1,"title":"Page","link":"https://example.com/page"}]}`))
	}))
	defer server.Close()

	client := NewSerpAPIClient(ProviderConfig{BaseURL: server.URL}, testConnection())
	resp, err := client.Search(context.Background(), Credential{Key: "secret-1"}, SearchRequest{Query: "example.com/page", Num: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	links := resp.Links()
	if len(links) != 1 || links[0] != "https://example.com/page" {
		t.Errorf("Unexpected links: %v", links)
	}
}

func TestSerpAPIClient_SearchStatusError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid API key."}`))
	}))
	defer server.Close()

	client := NewSerpAPIClient(ProviderConfig{BaseURL: server.URL, MaxRetries: 2, RetryDelay: time.Millisecond}, testConnection())
	_, err := client.Search(context.Background(), Credential{Key: "bad"}, SearchRequest{Query: "x"})

	if StatusCodeOf(err) != http.StatusUnauthorized {
		t.Errorf("Expected 401 status error, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("Expected no retries for 401, got %d requests", hits)
	}
}

func TestSerpAPIClient_SearchRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"organic_results":[]}`))
	}))
	defer server.Close()

	client := NewSerpAPIClient(ProviderConfig{BaseURL: server.URL, MaxRetries: 2, RetryDelay: time.Millisecond}, testConnection())
	resp, err := client.Search(context.Background(), Credential{Key: "k"}, SearchRequest{Query: "x"})
	if err != nil {
		t.Fatalf("Expected recovery after retry, got %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("Expected no results, got %d", len(resp.Results))
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("Expected 2 requests, got %d", hits)
	}
}

func TestSerpAPIClient_Quota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("api_key") {
		case "full":
			w.Write([]byte(`{"searches_left": 42}`))
		case "empty":
			w.Write([]byte(`{"searches_left": 0}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := NewSerpAPIClient(ProviderConfig{BaseURL: server.URL}, testConnection())

	if q, err := client.Quota(context.Background(), Credential{Key: "full"}); err != nil || q != 42 {
		t.Errorf("Expected 42, got %d (%v)", q, err)
	}
	if q, err := client.Quota(context.Background(), Credential{Key: "empty"}); err != nil || q != 0 {
		t.Errorf("Expected 0, got %d (%v)", q, err)
	}

	q, err := client.Quota(context.Background(), Credential{Key: "unknown"})
	var pe *QuotaError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected QuotaError, got %v", err)
	}
	if q != 0 {
		t.Errorf("Expected 0 quota on failure, got %d", q)
	}
	if StatusCodeOf(err) != http.StatusUnauthorized {
		t.Errorf("Expected wrapped 401, got %v", err)
	}
}

func TestSerperClient_SearchAndQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "serper-key" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"Unauthorized."}`))
			return
		}
		switch r.URL.Path {
		case "/search":
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST, got %s", r.Method)
			}
			var body serperSearchRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("Bad request body: %v", err)
			}
			if body.Q != "example.com" || body.Num != 5 {
				t.Errorf("Unexpected body %+v", body)
			}
			w.Write([]byte(`{"organic":[{"title":"Example","link":"https://www.example.com/","position":1}]}`))
		case "/account":
			w.Write([]byte(`{"balance": 2500}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider, err := NewProvider(ProviderConfig{Name: "serper", BaseURL: server.URL}, testConnection())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if provider.Name() != ProviderSerper {
		t.Errorf("Expected serper provider, got %s", provider.Name())
	}

	resp, err := provider.Search(context.Background(), Credential{Key: "serper-key"}, SearchRequest{Query: "example.com", Num: 5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if links := resp.Links(); len(links) != 1 || links[0] != "https://www.example.com/" {
		t.Errorf("Unexpected links %v", links)
	}

	quota, err := provider.Quota(context.Background(), Credential{Key: "serper-key"})
	if err != nil || quota != 2500 {
		t.Errorf("Expected 2500, got %d (%v)", quota, err)
	}

	if _, err := provider.Quota(context.Background(), Credential{Key: "wrong"}); err == nil {
		t.Error("Expected quota error for wrong key")
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	if _, err := NewProvider(ProviderConfig{Name: "bing"}, nil); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestConnectionManager_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewSerpAPIClient(ProviderConfig{BaseURL: url}, testConnection())
	_, err := client.Search(context.Background(), Credential{Key: "k"}, SearchRequest{Query: "x"})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("Expected TransportError, got %v", err)
	}
}
