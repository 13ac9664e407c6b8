package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/services"
)

// ok writes the success envelope {success:true, message?, data?}.
func ok(c *fiber.Ctx, status int, message string, data any) error {
	body := fiber.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

// parseBody decodes the JSON request body into out.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// parsePagination reads page and limit query params with sane defaults.
func parsePagination(c *fiber.Ctx) services.Pagination {
	return services.NewPagination(parseInt(c.Query("page"), 1), parseInt(c.Query("limit"), 0))
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}
