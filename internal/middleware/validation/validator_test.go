package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxQueryLength: 50, MaxSources: 2}))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }
	app.Post("/api/v1/evaluate/answer", ok)
	app.Post("/api/v1/sessions", ok)
	app.Post("/api/v1/other", ok)
	app.Get("/api/v1/evaluations", ok)
	return app
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"valid answer request", "POST", "/api/v1/evaluate/answer", "application/json",
			`{"query": "jazz tonight", "answer": "Blue Note at 8", "sources": [{"url": "https://bluenote.example"}]}`, fiber.StatusNoContent},
		{"valid session", "POST", "/api/v1/sessions", "application/json; charset=utf-8", `{"query": "jazz"}`, fiber.StatusNoContent},
		{"missing query", "POST", "/api/v1/evaluate/answer", "application/json", `{"answer": "x"}`, fiber.StatusBadRequest},
		{"blank query", "POST", "/api/v1/sessions", "application/json", `{"query": "   "}`, fiber.StatusBadRequest},
		{"long query", "POST", "/api/v1/sessions", "application/json", `{"query": "` + strings.Repeat("q", 51) + `"}`, fiber.StatusBadRequest},
		{"bad source url", "POST", "/api/v1/evaluate/answer", "application/json",
			`{"query": "q", "sources": [{"url": "ftp://files.example"}]}`, fiber.StatusBadRequest},
		{"too many sources", "POST", "/api/v1/sessions", "application/json",
			`{"query": "q", "sources": [{}, {}, {}]}`, fiber.StatusBadRequest},
		{"script in query", "POST", "/api/v1/sessions", "application/json", `{"query": "<script>alert(1)</script>"}`, fiber.StatusBadRequest},
		{"invalid json", "POST", "/api/v1/sessions", "application/json", `{"query":`, fiber.StatusBadRequest},
		{"wrong content type", "POST", "/api/v1/sessions", "text/plain", `query=jazz`, fiber.StatusUnsupportedMediaType},
		{"other post route unchecked", "POST", "/api/v1/other", "application/json", `{}`, fiber.StatusNoContent},
		{"get passes", "GET", "/api/v1/evaluations", "", "", fiber.StatusNoContent},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
