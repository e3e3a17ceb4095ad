package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_service.go -package=mocks -mock_names=ChatService=MockChatService policy-manual-ai/internal/service ChatService

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/rag"
	"policy-manual-ai/internal/session"
)

// AskRequest represents an ask request in the domain layer.
type AskRequest struct {
	Question string `validate:"required"`
}

// AskResponse represents an answered question in the domain layer.
type AskResponse struct {
	Question  string
	Answer    string
	Outcome   rag.Outcome
	Citations []rag.Citation
	History   []session.Turn
}

// ChatService answers questions within a conversation session.
type ChatService interface {
	// Ask answers a question and returns the session history after the answer.
	Ask(ctx context.Context, sess *session.Session, req AskRequest) (AskResponse, error)
	// History returns the session's full history.
	History(ctx context.Context, sess *session.Session) []session.Turn
	// Clear drops the session's history.
	Clear(ctx context.Context, sess *session.Session)
}

// chatService implements ChatService.
type chatService struct {
	engine   rag.Engine
	validate *validator.Validate
}

// NewChatService creates a new ChatService.
func NewChatService(engine rag.Engine) ChatService {
	return &chatService{
		engine:   engine,
		validate: validator.New(),
	}
}

// Ask validates the request and runs it through the engine. Degraded
// answers (no grounding, model failure) are not errors: they come back as
// answer-shaped HTML.
func (s *chatService) Ask(ctx context.Context, sess *session.Session, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	req.Question = strings.TrimSpace(req.Question)
	if err := s.validate.Struct(req); err != nil {
		logger.WarnContext(ctx, "invalid ask request", "error", err)
		return AskResponse{}, &ValidationError{
			Field:   "question",
			Message: "is required",
		}
	}

	ans, err := s.engine.Ask(ctx, sess, req.Question)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			return AskResponse{}, &ValidationError{Field: "question", Message: "is required"}
		}
		logger.ErrorContext(ctx, "failed to answer question", "error", err)
		return AskResponse{}, WrapError(FromKind(err), "failed to answer question")
	}

	if ans.Err != nil {
		logger.WarnContext(ctx, "answer degraded", "outcome", ans.Outcome, "error", FromKind(ans.Err))
	}

	logger.InfoContext(ctx, "ask request processed",
		"outcome", ans.Outcome,
		"question_length", len(req.Question),
		"answer_length", len(ans.HTML),
		"duration", ans.Duration,
	)
	return AskResponse{
		Question:  ans.Question,
		Answer:    ans.HTML,
		Outcome:   ans.Outcome,
		Citations: ans.Citations,
		History:   sess.History(),
	}, nil
}

// History returns the session's full history.
func (s *chatService) History(ctx context.Context, sess *session.Session) []session.Turn {
	return sess.History()
}

// Clear drops the session's history.
func (s *chatService) Clear(ctx context.Context, sess *session.Session) {
	logger := contextutil.LoggerFromContext(ctx)
	n := sess.Len()
	sess.Clear()
	logger.InfoContext(ctx, "chat history cleared", "session_id", sess.ID(), "turns", n)
}
