package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	MaxQueryLength  int
	MaxDocumentSize int
}

// Middleware enforces request shape limits before handlers run: JSON
// bodies on mutating routes, bounded query length on search, bounded
// content size on upload. Handlers own all semantic validation.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 5000
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = 10 * 1024 * 1024
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		if contentType := c.Get("Content-Type"); contentType != "" &&
			!strings.Contains(contentType, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()
		switch {
		case strings.HasSuffix(path, "/search") || strings.HasSuffix(path, "/answer"):
			var req struct {
				Query string `json:"query"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if len(req.Query) > cfg.MaxQueryLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Query exceeds maximum length",
				})
			}

		case strings.HasSuffix(path, "/documents"):
			var req struct {
				Content string `json:"content"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if len(req.Content) > cfg.MaxDocumentSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Document content exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}
