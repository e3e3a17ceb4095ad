package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks policy-manual-ai/internal/rag Engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/llm"
	"policy-manual-ai/internal/manual"
	"policy-manual-ai/internal/session"
)

// ErrEmptyQuestion is returned when Ask is called without a question.
var ErrEmptyQuestion = errors.New("question is empty")

// Outcome describes how an answer was produced.
type Outcome string

const (
	// OutcomeAnswered means the model produced the answer.
	OutcomeAnswered Outcome = "answered"
	// OutcomeNoInformation means no passage was relevant enough and the model was not called.
	OutcomeNoInformation Outcome = "no_information"
	// OutcomeModelError means the model call failed and the answer describes the failure.
	OutcomeModelError Outcome = "model_error"
)

// Answer is the result of one ask.
type Answer struct {
	Question string
	// HTML is the answer shown to the user. It is always well formed, even on failure.
	HTML      string
	Outcome   Outcome
	Sources   []RetrievedChunk
	Citations []Citation
	// Err is the failure behind a degraded answer, tagged with its manual.Kind.
	Err      error
	Duration time.Duration
}

// Engine answers questions against the policy manual.
type Engine interface {
	// Ask answers question within sess. History is only extended when the
	// model produced an answer.
	Ask(ctx context.Context, sess *session.Session, question string) (*Answer, error)
}

// Searcher retrieves grounding chunks for a question.
type Searcher interface {
	Search(ctx context.Context, question string) ([]RetrievedChunk, error)
}

var _ Engine = (*ragEngine)(nil)

// ragEngine implements the Engine interface.
type ragEngine struct {
	retriever Searcher
	generator llm.Generator
	formatter *Formatter
	now       func() time.Time
}

// NewEngine creates a new RAG engine.
func NewEngine(retriever Searcher, generator llm.Generator, formatter *Formatter) Engine {
	return &ragEngine{
		retriever: retriever,
		generator: generator,
		formatter: formatter,
		now:       time.Now,
	}
}

// Ask retrieves grounding, prompts the model and checks its citations.
func (e *ragEngine) Ask(ctx context.Context, sess *session.Session, question string) (*Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := e.now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if sess == nil {
		return nil, fmt.Errorf("ask requires a session")
	}

	logger.InfoContext(ctx, "RAG query started", "session_id", sess.ID(), "question", question)

	ans := &Answer{Question: question}
	defer func() { ans.Duration = e.now().Sub(start) }()

	chunks, err := e.retriever.Search(ctx, question)
	if err != nil {
		logger.WarnContext(ctx, "retrieval degraded to no grounding", "error", err)
		ans.Err = err
	}

	prompt, ok := BuildPrompt(question, chunks, sess.Recent(HistoryTurns), e.formatter.Mode())
	if !ok {
		logger.InfoContext(ctx, "no relevant passages", "retrieved", len(chunks))
		ans.HTML = NoInformationHTML
		ans.Outcome = OutcomeNoInformation
		ans.Sources = []RetrievedChunk{}
		ans.Citations = []Citation{}
		return ans, nil
	}
	ans.Sources = FilterRelevant(chunks)

	logger.InfoContext(ctx, "sending request to LLM",
		"sources", len(ans.Sources),
		"prompt_length", len(prompt),
	)
	logger.DebugContext(ctx, "LLM prompt", "prompt", prompt)

	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get LLM response", "error", err)
		ans.Outcome = OutcomeModelError
		ans.Err = manual.Transient("generate answer", err)
		ans.Citations = []Citation{}
		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) {
			ans.HTML = ServerErrorHTML
		} else {
			ans.HTML = ErrorHTML(err)
		}
		return ans, nil
	}

	res, err := e.formatter.Format(raw)
	if err != nil {
		logger.WarnContext(ctx, "failed to check answer citations, returning raw answer", "error", err)
	}
	if res.Repaired > 0 || res.Dropped > 0 {
		logger.InfoContext(ctx, "citation links corrected", "repaired", res.Repaired, "dropped", res.Dropped)
	}

	ans.HTML = res.HTML
	ans.Citations = res.Citations
	ans.Outcome = OutcomeAnswered
	sess.Append(question, ans.HTML)

	logger.InfoContext(ctx, "RAG query completed",
		"answer_length", len(ans.HTML),
		"citations", len(ans.Citations),
		"history_turns", sess.Len(),
	)
	return ans, nil
}
