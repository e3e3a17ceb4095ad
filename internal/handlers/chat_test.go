package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"policy-manual-ai/internal/rag"
	"policy-manual-ai/internal/service"
	"policy-manual-ai/internal/service/mocks"
	"policy-manual-ai/internal/session"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newRequest(t *testing.T, method, path string, body any, sess *session.Session) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req = req.WithContext(session.NewContext(req.Context(), sess))
	}
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestNewChatHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChatService := mocks.NewMockChatService(ctrl)
	handler := NewChatHandler(mockChatService)

	if handler == nil {
		t.Fatal("NewChatHandler() returned nil")
	}
	if handler.chatService != mockChatService {
		t.Error("NewChatHandler() chatService not set correctly")
	}
}

func TestChatHandler_Ask(t *testing.T) {
	history := []session.Turn{{Question: "What is ability to pay?", Answer: "<p>It is...</p>"}}

	tests := []struct {
		name          string
		body          any
		mockSetup     func(*mocks.MockChatService)
		wantStatus    int
		wantError     string
		checkResponse func(*testing.T, AskResponse)
	}{
		{
			name: "successful ask",
			body: AskRequest{Question: "What is ability to pay?"},
			mockSetup: func(m *mocks.MockChatService) {
				m.EXPECT().
					Ask(gomock.Any(), gomock.Any(), service.AskRequest{Question: "What is ability to pay?"}).
					Return(service.AskResponse{
						Question: "What is ability to pay?",
						Answer:   "<p>It is...</p>",
						Outcome:  rag.OutcomeAnswered,
						History:  history,
					}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp AskResponse) {
				if resp.Question != "What is ability to pay?" {
					t.Errorf("Question = %v", resp.Question)
				}
				if resp.Answer != "<p>It is...</p>" {
					t.Errorf("Answer = %v", resp.Answer)
				}
				if len(resp.History) != 1 || resp.History[0] != history[0] {
					t.Errorf("History = %v, want %v", resp.History, history)
				}
			},
		},
		{
			name:       "invalid JSON body",
			body:       "invalid json",
			mockSetup:  func(m *mocks.MockChatService) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "Question is required",
		},
		{
			name: "validation error",
			body: map[string]any{},
			mockSetup: func(m *mocks.MockChatService) {
				m.EXPECT().
					Ask(gomock.Any(), gomock.Any(), service.AskRequest{}).
					Return(service.AskResponse{}, &service.ValidationError{Field: "question", Message: "is required"})
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Question is required",
		},
		{
			name: "external service error",
			body: AskRequest{Question: "q"},
			mockSetup: func(m *mocks.MockChatService) {
				m.EXPECT().
					Ask(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(service.AskResponse{}, service.WrapError(service.ErrExternalService, "failed to answer question"))
			},
			wantStatus: http.StatusBadGateway,
			wantError:  "External service error",
		},
		{
			name: "not found error",
			body: AskRequest{Question: "q"},
			mockSetup: func(m *mocks.MockChatService) {
				m.EXPECT().
					Ask(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(service.AskResponse{}, service.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantError:  "Resource not found",
		},
		{
			name: "unexpected error",
			body: AskRequest{Question: "q"},
			mockSetup: func(m *mocks.MockChatService) {
				m.EXPECT().
					Ask(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(service.AskResponse{}, errors.New("boom"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to answer question",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockChatService := mocks.NewMockChatService(ctrl)
			tt.mockSetup(mockChatService)
			handler := NewChatHandler(mockChatService)

			w := httptest.NewRecorder()
			handler.Ask(w, newRequest(t, http.MethodPost, "/api/chat/ask", tt.body, session.New()))

			if w.Code != tt.wantStatus {
				t.Fatalf("Ask() status = %v, want %v (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Ask() Content-Type = %v, want application/json", ct)
			}
			if tt.wantError != "" {
				if got := decodeError(t, w); got != tt.wantError {
					t.Errorf("Ask() error = %q, want %q", got, tt.wantError)
				}
				return
			}
			if tt.checkResponse != nil {
				var resp AskResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestChatHandler_AskPassesSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sess := session.New()
	mockChatService := mocks.NewMockChatService(ctrl)
	mockChatService.EXPECT().
		Ask(gomock.Any(), sess, service.AskRequest{Question: "q"}).
		Return(service.AskResponse{Question: "q", Answer: "a"}, nil)

	w := httptest.NewRecorder()
	NewChatHandler(mockChatService).Ask(w, newRequest(t, http.MethodPost, "/api/chat/ask", AskRequest{Question: "q"}, sess))

	if w.Code != http.StatusOK {
		t.Errorf("Ask() status = %v, want %v", w.Code, http.StatusOK)
	}
}

func TestChatHandler_History(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sess := session.New()
	turns := []session.Turn{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}}

	mockChatService := mocks.NewMockChatService(ctrl)
	mockChatService.EXPECT().History(gomock.Any(), sess).Return(turns)

	w := httptest.NewRecorder()
	NewChatHandler(mockChatService).History(w, newRequest(t, http.MethodGet, "/api/chat/history", nil, sess))

	if w.Code != http.StatusOK {
		t.Fatalf("History() status = %v, want %v", w.Code, http.StatusOK)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := `[["q1","a1"],["q2","a2"]]`
	if got := string(raw["history"]); got != want {
		t.Errorf("History() history = %s, want %s", got, want)
	}
}

func TestChatHandler_HistoryEmptyIsArray(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sess := session.New()
	mockChatService := mocks.NewMockChatService(ctrl)
	mockChatService.EXPECT().History(gomock.Any(), sess).Return([]session.Turn{})

	w := httptest.NewRecorder()
	NewChatHandler(mockChatService).History(w, newRequest(t, http.MethodGet, "/api/chat/history", nil, sess))

	if got := w.Body.String(); got != "{\"history\":[]}\n" {
		t.Errorf("History() body = %q, want empty array", got)
	}
}

func TestChatHandler_Clear(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sess := session.New()
	mockChatService := mocks.NewMockChatService(ctrl)
	mockChatService.EXPECT().Clear(gomock.Any(), sess)

	w := httptest.NewRecorder()
	NewChatHandler(mockChatService).Clear(w, newRequest(t, http.MethodPost, "/api/chat/clear/history", nil, sess))

	if w.Code != http.StatusOK {
		t.Fatalf("Clear() status = %v, want %v", w.Code, http.StatusOK)
	}
	var resp MessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "Chat history cleared successfully" {
		t.Errorf("Clear() message = %q", resp.Message)
	}
}

func TestChatHandler_NoSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewChatHandler(mocks.NewMockChatService(ctrl))

	for name, fn := range map[string]http.HandlerFunc{
		"ask":     handler.Ask,
		"history": handler.History,
		"clear":   handler.Clear,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			fn(w, newRequest(t, http.MethodPost, "/", AskRequest{Question: "q"}, nil).WithContext(context.Background()))
			if w.Code != http.StatusInternalServerError {
				t.Errorf("status = %v, want %v", w.Code, http.StatusInternalServerError)
			}
		})
	}
}
