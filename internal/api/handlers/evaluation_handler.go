package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/confidence"
	"github.com/research-agent/backend/internal/evaluation"
	"github.com/research-agent/backend/internal/session"
	"github.com/research-agent/backend/pkg/logger"
)

// Evaluator is the fail-open evaluation surface of the gateway.
type Evaluator interface {
	EvaluatePlan(ctx context.Context, in evaluation.PlanInput) *evaluation.PlanEvaluationResult
	EvaluateRetrieval(ctx context.Context, in evaluation.RetrievalInput) *evaluation.RetrievalEvaluationResult
	EvaluateAnswer(ctx context.Context, in evaluation.AnswerInput) *evaluation.AnswerEvaluationResult
	ScoreConfidence(ctx context.Context, in confidence.ScoreInput) *confidence.PipelineResult
}

type SessionRunner interface {
	Run(ctx context.Context, in session.Input) (*session.Result, error)
}

type EvaluationHandler struct {
	evaluator Evaluator
	sessions  SessionRunner
}

func NewEvaluationHandler(evaluator Evaluator, sessions SessionRunner) *EvaluationHandler {
	return &EvaluationHandler{
		evaluator: evaluator,
		sessions:  sessions,
	}
}

type sourceRequest struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type evaluationRequest struct {
	Query   string          `json:"query"`
	Plan    any             `json:"plan"`
	Sources []sourceRequest `json:"sources"`
	Answer  string          `json:"answer"`
}

func (r evaluationRequest) sources() []evaluation.Source {
	out := make([]evaluation.Source, len(r.Sources))
	for i, s := range r.Sources {
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("source-%d", i+1)
		}
		out[i] = evaluation.Source{ID: id, URL: s.URL, Title: s.Title, Content: s.Content}
	}
	return out
}

func (r evaluationRequest) confidenceSources() []confidence.Source {
	src := r.sources()
	out := make([]confidence.Source, len(src))
	for i, s := range src {
		out[i] = confidence.Source{ID: s.ID, URL: s.URL, Title: s.Title, Content: s.Content}
	}
	return out
}

func parseRequest(c *fiber.Ctx) (*evaluationRequest, error) {
	var req evaluationRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Query == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}
	return &req, nil
}

func (h *EvaluationHandler) EvaluatePlan(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if req == nil {
		return err
	}
	if req.Plan == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Plan is required",
		})
	}

	return c.JSON(h.evaluator.EvaluatePlan(c.UserContext(), evaluation.PlanInput{
		Query: req.Query,
		Plan:  req.Plan,
	}))
}

func (h *EvaluationHandler) EvaluateRetrieval(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if req == nil {
		return err
	}
	if len(req.Sources) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one source is required",
		})
	}

	return c.JSON(h.evaluator.EvaluateRetrieval(c.UserContext(), evaluation.RetrievalInput{
		Query:   req.Query,
		Sources: req.sources(),
	}))
}

func (h *EvaluationHandler) EvaluateAnswer(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if req == nil {
		return err
	}

	return c.JSON(h.evaluator.EvaluateAnswer(c.UserContext(), evaluation.AnswerInput{
		Query:   req.Query,
		Answer:  req.Answer,
		Sources: req.sources(),
	}))
}

func (h *EvaluationHandler) ScoreConfidence(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if req == nil {
		return err
	}
	if req.Answer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Answer is required",
		})
	}

	return c.JSON(h.evaluator.ScoreConfidence(c.UserContext(), confidence.ScoreInput{
		Query:   req.Query,
		Answer:  req.Answer,
		Sources: req.confidenceSources(),
	}))
}

func (h *EvaluationHandler) RunSession(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if req == nil {
		return err
	}

	result, err := h.sessions.Run(c.UserContext(), session.Input{
		Query:   req.Query,
		Plan:    req.Plan,
		Sources: req.sources(),
		Answer:  req.Answer,
	})
	if err != nil {
		logger.Error("Failed to run session evaluation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record session evaluation",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}
