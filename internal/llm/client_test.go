package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:11434", "llama3.2", 2*time.Minute)
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.BaseURL != "http://localhost:11434" {
		t.Errorf("NewClient() BaseURL = %v, want http://localhost:11434", client.BaseURL)
	}
	if client.Model != "llama3.2" {
		t.Errorf("NewClient() Model = %v, want llama3.2", client.Model)
	}
	if client.Temperature != 0.7 || client.TopP != 0.9 {
		t.Errorf("NewClient() sampling = %v/%v, want 0.7/0.9", client.Temperature, client.TopP)
	}
	if client.client == nil || client.client.Timeout != 2*time.Minute {
		t.Error("NewClient() should configure the HTTP client timeout")
	}
}

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name       string
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantReply  string
		wantStatus int
		wantErr    bool
	}{
		{
			name: "successful generation",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/api/generate" {
					t.Errorf("expected /api/generate, got %s", r.URL.Path)
				}

				var req GenerateRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				if req.Model != "llama3.2" || req.Prompt != "Question: hi" || req.Stream {
					t.Errorf("unexpected request %+v", req)
				}
				if req.Temperature != 0.7 || req.TopP != 0.9 {
					t.Errorf("unexpected sampling %v/%v", req.Temperature, req.TopP)
				}

				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(GenerateResponse{Model: "llama3.2", Response: "<p>Hello</p>", Done: true})
			},
			wantReply: "<p>Hello</p>",
		},
		{
			name: "server error",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("model not loaded"))
			},
			wantStatus: http.StatusInternalServerError,
			wantErr:    true,
		},
		{
			name: "malformed response",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL, "llama3.2", 5*time.Second)
			reply, err := client.Generate(context.Background(), "Question: hi")

			if tt.wantErr {
				if err == nil {
					t.Fatal("Generate() expected error, got nil")
				}
				var statusErr *StatusError
				isStatus := errors.As(err, &statusErr)
				if tt.wantStatus != 0 && (!isStatus || statusErr.StatusCode != tt.wantStatus) {
					t.Errorf("Generate() error = %v, want status %d", err, tt.wantStatus)
				}
				if tt.wantStatus == 0 && isStatus {
					t.Errorf("Generate() error = %v, want non-status error", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("Generate() reply = %v, want %v", reply, tt.wantReply)
			}
		})
	}
}

func TestClient_Generate_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, "llama3.2", time.Second).Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("Generate() against a closed server should fail")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Error("transport failure should not be a StatusError")
	}
}

func TestModelChecker_HasModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("expected /api/tags, got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(ModelsResponse{Models: []ModelStatus{
			{Name: "llama3.2:latest"},
			{Model: "nomic-embed-text:v1.5"},
		}})
	}))
	defer server.Close()

	checker := NewModelChecker(server.URL)

	tests := []struct {
		model string
		want  bool
	}{
		{"llama3.2", true},
		{"llama3.2:latest", true},
		{"llama3.2:1b", false},
		{"nomic-embed-text", true},
		{"mistral", false},
	}

	for _, tt := range tests {
		got, err := checker.HasModel(context.Background(), tt.model)
		if err != nil {
			t.Fatalf("HasModel(%q) error = %v", tt.model, err)
		}
		if got != tt.want {
			t.Errorf("HasModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
