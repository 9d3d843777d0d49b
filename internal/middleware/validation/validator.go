package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxQueryLength      int
	MaxAnswerSize       int
	MaxSources          int
	MaxSourceSize       int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

type source struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// evaluationBody is the subset of every evaluation request body that is
// checked before a handler runs.
type evaluationBody struct {
	Query   *string  `json:"query"`
	Answer  string   `json:"answer"`
	Sources []source `json:"sources"`
}

// Middleware rejects malformed evaluation requests before they reach a
// judge. Only POST bodies under /evaluate and /sessions are inspected.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 5000
	}
	if cfg.MaxAnswerSize == 0 {
		cfg.MaxAnswerSize = 200 * 1024
	}
	if cfg.MaxSources == 0 {
		cfg.MaxSources = 50
	}
	if cfg.MaxSourceSize == 0 {
		cfg.MaxSourceSize = 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		allowed := false
		for _, allowedType := range cfg.AllowedContentTypes {
			if strings.Contains(contentType, allowedType) {
				allowed = true
				break
			}
		}
		if !allowed {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()
		if !strings.Contains(path, "/evaluate/") && !strings.HasSuffix(path, "/sessions") {
			return c.Next()
		}

		var body evaluationBody
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		if msg := cfg.check(body); msg != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": msg,
			})
		}

		if containsXSS(*body.Query) {
			cfg.Logger.Warn("Potential XSS attempt",
				zap.String("ip", c.IP()),
				zap.String("path", path),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid query content",
			})
		}

		return c.Next()
	}
}

func (cfg Config) check(body evaluationBody) string {
	if body.Query == nil || strings.TrimSpace(*body.Query) == "" {
		return "Query is required and must be a string"
	}
	if len(*body.Query) > cfg.MaxQueryLength {
		return "Query exceeds maximum length"
	}
	if len(body.Answer) > cfg.MaxAnswerSize {
		return "Answer exceeds maximum size"
	}
	if len(body.Sources) > cfg.MaxSources {
		return fmt.Sprintf("At most %d sources are allowed", cfg.MaxSources)
	}
	for i, s := range body.Sources {
		if s.URL != "" && !isValidURL(s.URL) {
			return fmt.Sprintf("Source %d has an invalid URL", i+1)
		}
		if len(s.Content) > cfg.MaxSourceSize {
			return fmt.Sprintf("Source %d exceeds maximum size", i+1)
		}
	}
	return ""
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host == "" {
		return false
	}

	return true
}
