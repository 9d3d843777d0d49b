package gateway

import "time"

type Phase string

const (
	PhasePlan       Phase = "plan"
	PhaseRetrieval  Phase = "retrieval"
	PhaseAnswer     Phase = "answer"
	PhaseConfidence Phase = "confidence"
)

// Config holds the per-phase deadline for one guarded evaluation.
type Config struct {
	PlanTimeout       time.Duration
	RetrievalTimeout  time.Duration
	AnswerTimeout     time.Duration
	ConfidenceTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PlanTimeout:       60 * time.Second,
		RetrievalTimeout:  30 * time.Second,
		AnswerTimeout:     45 * time.Second,
		ConfidenceTimeout: 45 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PlanTimeout <= 0 {
		c.PlanTimeout = d.PlanTimeout
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = d.RetrievalTimeout
	}
	if c.AnswerTimeout <= 0 {
		c.AnswerTimeout = d.AnswerTimeout
	}
	if c.ConfidenceTimeout <= 0 {
		c.ConfidenceTimeout = d.ConfidenceTimeout
	}
	return c
}

func (c Config) TimeoutFor(phase Phase) time.Duration {
	switch phase {
	case PhasePlan:
		return c.PlanTimeout
	case PhaseRetrieval:
		return c.RetrievalTimeout
	case PhaseConfidence:
		return c.ConfidenceTimeout
	}
	return c.AnswerTimeout
}
