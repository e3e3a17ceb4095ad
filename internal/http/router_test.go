package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"policy-manual-ai/internal/indexer"
	"policy-manual-ai/internal/service"
	"policy-manual-ai/internal/service/mocks"
	"policy-manual-ai/internal/session"
	vectorstore_mocks "policy-manual-ai/internal/vectorstore/mocks"
)

type stubImporter struct {
	calls chan string
}

func (s *stubImporter) ImportLatest(_ context.Context, dir string) (*indexer.ImportStats, error) {
	s.calls <- dir
	return &indexer.ImportStats{}, nil
}

func newTestDeps(ctrl *gomock.Controller) (*Deps, *mocks.MockChatService) {
	mockChatService := mocks.NewMockChatService(ctrl)
	return &Deps{
		ChatService: mockChatService,
		Sessions:    session.NewStore(),
		IndexHTML:   "<html><body>Test</body></html>",
	}, mockChatService
}

func TestNewRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deps, _ := newTestDeps(ctrl)

	router := NewRouter(deps)

	if router == nil {
		t.Fatal("NewRouter() returned nil")
	}
}

func TestRouter_Routes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deps, mockChatService := newTestDeps(ctrl)
	mockChatService.EXPECT().History(gomock.Any(), gomock.Any()).Return([]session.Turn{}).AnyTimes()
	mockChatService.EXPECT().Clear(gomock.Any(), gomock.Any()).AnyTimes()

	router := NewRouter(deps)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{
			name:       "GET root serves HTML",
			method:     http.MethodGet,
			path:       "/",
			wantStatus: http.StatusOK,
		},
		{
			name:       "POST /api/chat/ask exists",
			method:     http.MethodPost,
			path:       "/api/chat/ask",
			wantStatus: http.StatusBadRequest, // Bad request due to empty body, but route exists
		},
		{
			name:       "GET /api/chat/ask method not allowed",
			method:     http.MethodGet,
			path:       "/api/chat/ask",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "GET /api/chat/history",
			method:     http.MethodGet,
			path:       "/api/chat/history",
			wantStatus: http.StatusOK,
		},
		{
			name:       "POST /api/chat/clear/history",
			method:     http.MethodPost,
			path:       "/api/chat/clear/history",
			wantStatus: http.StatusOK,
		},
		{
			name:       "POST /api/chat/clear alias",
			method:     http.MethodPost,
			path:       "/api/chat/clear",
			wantStatus: http.StatusOK,
		},
		{
			name:       "health not mounted without vector store",
			method:     http.MethodGet,
			path:       "/api/health",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "import not mounted without importer",
			method:     http.MethodPost,
			path:       "/api/import",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_AskKeepsSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deps, mockChatService := newTestDeps(ctrl)
	router := NewRouter(deps)

	var seen []string
	mockChatService.EXPECT().
		Ask(gomock.Any(), gomock.Any(), service.AskRequest{Question: "What is ability to pay?"}).
		DoAndReturn(func(_ context.Context, sess *session.Session, req service.AskRequest) (service.AskResponse, error) {
			seen = append(seen, sess.ID())
			return service.AskResponse{Question: req.Question, Answer: "<p>ok</p>"}, nil
		}).
		Times(2)

	ask := func(sessionID string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"question": "What is ability to pay?"})
		req := httptest.NewRequest(http.MethodPost, "/api/chat/ask", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if sessionID != "" {
			req.Header.Set(SessionHeader, sessionID)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := ask("")
	if first.Code != http.StatusOK {
		t.Fatalf("first ask status = %v, want %v", first.Code, http.StatusOK)
	}
	id := first.Header().Get(SessionHeader)
	if id == "" {
		t.Fatal("first ask should return a session ID")
	}

	second := ask(id)
	if second.Code != http.StatusOK {
		t.Fatalf("second ask status = %v, want %v", second.Code, http.StatusOK)
	}
	if len(seen) != 2 || seen[0] != id || seen[1] != id {
		t.Errorf("sessions seen = %v, want both %s", seen, id)
	}
	if deps.Sessions.Len() != 1 {
		t.Errorf("live sessions = %d, want 1", deps.Sessions.Len())
	}
}

func TestRouter_HealthAndImport(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deps, _ := newTestDeps(ctrl)
	vs := vectorstore_mocks.NewMockVectorStore(ctrl)
	vs.EXPECT().CollectionExists(gomock.Any(), "USCIS_Policy_Manual").Return(true, nil)
	importer := &stubImporter{calls: make(chan string, 1)}

	deps.VectorStore = vs
	deps.CollectionName = "USCIS_Policy_Manual"
	deps.Importer = importer
	deps.DataDir = "/data/raw_data"

	router := NewRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /api/health status = %v, want %v", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	if w.Code != http.StatusAccepted {
		t.Errorf("POST /api/import status = %v, want %v", w.Code, http.StatusAccepted)
	}
	if dir := <-importer.calls; dir != "/data/raw_data" {
		t.Errorf("import dir = %v, want /data/raw_data", dir)
	}
}

func TestRouter_RootServesHTML(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deps, _ := newTestDeps(ctrl)
	htmlContent := "<html><body>Test HTML</body></html>"
	deps.IndexHTML = htmlContent

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Router GET / status = %v, want %v", w.Code, http.StatusOK)
	}

	if w.Body.String() != htmlContent {
		t.Errorf("Router GET / body = %v, want %v", w.Body.String(), htmlContent)
	}

	if w.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("Router GET / Content-Type = %v, want text/html; charset=utf-8", w.Header().Get("Content-Type"))
	}
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deps, _ := newTestDeps(ctrl)

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/ask", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// Check CORS headers are present
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Router should apply CORS middleware")
	}
	if w.Header().Get(SessionHeader) == "" {
		t.Error("Router should apply session middleware to chat routes")
	}
}
