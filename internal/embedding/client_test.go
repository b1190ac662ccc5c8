package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(ClientConfig{Model: "m"}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := NewClient(ClientConfig{BaseURL: "http://x"}); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestClient_Embed(t *testing.T) {
	var gotReq embeddingsRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,-1,2]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/", APIKey: "secret", Model: "text-embedding-3-small", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	vec, err := c.Embed(context.Background(), "caption: hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -1 || vec[2] != 2 {
		t.Errorf("Embed() = %v", vec)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "text-embedding-3-small" || len(gotReq.Input) != 1 || gotReq.Input[0] != "caption: hello" {
		t.Errorf("unexpected request body %+v", gotReq)
	}
	if c.Model() != "text-embedding-3-small" {
		t.Errorf("Model() = %q", c.Model())
	}
}

func TestClient_Embed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, nil},
		{"rate limited", http.StatusTooManyRequests, `slow down`, nil},
		{"empty data", http.StatusOK, `{"data":[]}`, ErrEmptyEmbedding},
		{"invalid json", http.StatusOK, `not json`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m", HTTPClient: srv.Client()})
			_, err := c.Embed(context.Background(), "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.status >= 300 {
				var httpErr *HTTPError
				if !errors.As(err, &httpErr) || httpErr.StatusCode != tt.status {
					t.Errorf("expected HTTPError with status %d, got %v", tt.status, err)
				}
			}
		})
	}
}
