package evaluation

// Config is the immutable tuning passed to every evaluator at construction.
type Config struct {
	PanelModel      string
	EscalationModel string
	Temperature     float32
	MaxTokens       int

	PassThreshold          float64
	SevereFailureThreshold float64
	MaxAttempts            int

	ConfidenceThreshold   float64
	DisagreementThreshold float64
	BorderlineMargin      float64

	MaxConcurrentJudges int
	// DimensionThresholds are per-dimension floors checked on top of the
	// overall pass threshold.
	DimensionThresholds map[string]float64
}

func DefaultConfig() Config {
	return Config{
		PanelModel:             "gpt-4o-mini",
		EscalationModel:        "gpt-4o",
		Temperature:            0.1,
		MaxTokens:              2048,
		PassThreshold:          0.7,
		SevereFailureThreshold: 0.5,
		MaxAttempts:            3,
		ConfidenceThreshold:    0.6,
		DisagreementThreshold:  0.3,
		BorderlineMargin:       0.05,
		MaxConcurrentJudges:    8,
	}
}

// withDefaults fills zero fields so a partially built Config is usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PanelModel == "" {
		c.PanelModel = d.PanelModel
	}
	if c.EscalationModel == "" {
		c.EscalationModel = d.EscalationModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.PassThreshold <= 0 {
		c.PassThreshold = d.PassThreshold
	}
	if c.SevereFailureThreshold <= 0 {
		c.SevereFailureThreshold = d.SevereFailureThreshold
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = d.ConfidenceThreshold
	}
	if c.DisagreementThreshold <= 0 {
		c.DisagreementThreshold = d.DisagreementThreshold
	}
	if c.BorderlineMargin <= 0 {
		c.BorderlineMargin = d.BorderlineMargin
	}
	if c.MaxConcurrentJudges <= 0 {
		c.MaxConcurrentJudges = d.MaxConcurrentJudges
	}
	c.DimensionThresholds = NormalizeDimensionKeys(c.DimensionThresholds)
	return c
}
