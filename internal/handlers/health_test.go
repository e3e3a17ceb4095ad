package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"policy-manual-ai/internal/storage"
	vectorstore_mocks "policy-manual-ai/internal/vectorstore/mocks"
)

type fakeModels struct {
	ok  bool
	err error
}

func (f fakeModels) HasModel(context.Context, string) (bool, error) {
	return f.ok, f.err
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	const collection = "USCIS_Policy_Manual"

	tests := []struct {
		name       string
		method     string
		exists     bool
		existsErr  error
		models     ModelChecker
		wantStatus int
		wantHealth string
		wantIssues []string
	}{
		{
			name:       "healthy without model check",
			method:     http.MethodGet,
			exists:     true,
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name:       "healthy with model",
			method:     http.MethodGet,
			exists:     true,
			models:     fakeModels{ok: true},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name:       "missing model degrades",
			method:     http.MethodGet,
			exists:     true,
			models:     fakeModels{ok: false},
			wantStatus: http.StatusOK,
			wantHealth: "degraded",
			wantIssues: []string{"llm_model_unavailable"},
		},
		{
			name:       "model service error degrades",
			method:     http.MethodGet,
			exists:     true,
			models:     fakeModels{err: errors.New("connection refused")},
			wantStatus: http.StatusOK,
			wantHealth: "degraded",
			wantIssues: []string{"llm_model_unavailable"},
		},
		{
			name:       "missing collection",
			method:     http.MethodGet,
			exists:     false,
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
			wantIssues: []string{"vector_store_unavailable"},
		},
		{
			name:       "vector store error",
			method:     http.MethodGet,
			existsErr:  errors.New("unavailable"),
			models:     fakeModels{ok: false},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
			wantIssues: []string{"vector_store_unavailable", "llm_model_unavailable"},
		},
		{
			name:       "method not allowed",
			method:     http.MethodPost,
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			vs := vectorstore_mocks.NewMockVectorStore(ctrl)
			if tt.method == http.MethodGet {
				vs.EXPECT().CollectionExists(gomock.Any(), collection).Return(tt.exists, tt.existsErr)
			}

			handler := NewHealthHandler(vs, tt.models, "llama3.2", collection)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, "/api/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("ServeHTTP() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantHealth == "" {
				return
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("Status = %v, want %v", resp.Status, tt.wantHealth)
			}
			if resp.Timestamp == "" {
				t.Error("Timestamp should be set")
			}
			if len(resp.Issues) != len(tt.wantIssues) {
				t.Fatalf("Issues = %v, want %v", resp.Issues, tt.wantIssues)
			}
			for i := range tt.wantIssues {
				if resp.Issues[i] != tt.wantIssues[i] {
					t.Errorf("Issues[%d] = %v, want %v", i, resp.Issues[i], tt.wantIssues[i])
				}
			}
		})
	}
}

type fakeRuns struct {
	run *storage.RunRecord
	err error
}

func (f fakeRuns) Latest(context.Context) (*storage.RunRecord, error) {
	return f.run, f.err
}

func TestHealthHandler_IndexCheck(t *testing.T) {
	tests := []struct {
		name       string
		runs       fakeRuns
		wantHealth string
		wantIndex  string
		wantRunID  string
	}{
		{
			name:       "imported run",
			runs:       fakeRuns{run: &storage.RunRecord{ID: "20250114_093005"}},
			wantHealth: "healthy",
			wantIndex:  "ok",
			wantRunID:  "20250114_093005",
		},
		{
			name:       "nothing imported",
			runs:       fakeRuns{err: storage.ErrNotFound},
			wantHealth: "degraded",
			wantIndex:  "empty",
		},
		{
			name:       "registry error",
			runs:       fakeRuns{err: errors.New("database is locked")},
			wantHealth: "degraded",
			wantIndex:  "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			vs := vectorstore_mocks.NewMockVectorStore(ctrl)
			vs.EXPECT().CollectionExists(gomock.Any(), "c").Return(true, nil)

			handler := NewHealthHandler(vs, nil, "llama3.2", "c").WithRuns(tt.runs)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("ServeHTTP() status = %v, want 200", w.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("Status = %v, want %v", resp.Status, tt.wantHealth)
			}
			if resp.Checks["index"] != tt.wantIndex {
				t.Errorf("Checks[index] = %v, want %v", resp.Checks["index"], tt.wantIndex)
			}
			if resp.RunID != tt.wantRunID {
				t.Errorf("RunID = %v, want %v", resp.RunID, tt.wantRunID)
			}
		})
	}
}
