package confidence

type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int

	EntailmentWeight  float64
	SUScoreWeight     float64
	SourceCountWeight float64

	SimilarityThreshold float64
	MaxChunkChars       int
	MinChunkChars       int
	// PassagesPerSource caps ranked passages at this many per source.
	PassagesPerSource    int
	EmbeddingConcurrency int
	FallbackClaimChars   int
	// SourceSaturation is the source count at which the source signal is 1.
	SourceSaturation int
}

func DefaultConfig() Config {
	return Config{
		Model:                "gpt-4o-mini",
		Temperature:          0.1,
		MaxTokens:            2048,
		EntailmentWeight:     0.5,
		SUScoreWeight:        0.3,
		SourceCountWeight:    0.2,
		SimilarityThreshold:  0.7,
		MaxChunkChars:        1000,
		MinChunkChars:        50,
		PassagesPerSource:    3,
		EmbeddingConcurrency: 4,
		FallbackClaimChars:   500,
		SourceSaturation:     5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.EntailmentWeight == 0 && c.SUScoreWeight == 0 && c.SourceCountWeight == 0 {
		c.EntailmentWeight, c.SUScoreWeight, c.SourceCountWeight = d.EntailmentWeight, d.SUScoreWeight, d.SourceCountWeight
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = d.MaxChunkChars
	}
	if c.MinChunkChars < 0 {
		c.MinChunkChars = d.MinChunkChars
	}
	if c.PassagesPerSource <= 0 {
		c.PassagesPerSource = d.PassagesPerSource
	}
	if c.EmbeddingConcurrency <= 0 {
		c.EmbeddingConcurrency = d.EmbeddingConcurrency
	}
	if c.FallbackClaimChars <= 0 {
		c.FallbackClaimChars = d.FallbackClaimChars
	}
	if c.SourceSaturation <= 0 {
		c.SourceSaturation = d.SourceSaturation
	}
	return c
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
