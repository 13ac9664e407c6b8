package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/logging"
)

// ErrorHandler renders every error returned by a handler or middleware as the JSON
// envelope {success:false, error, details?}. In production unexpected errors get a
// generic message; elsewhere the underlying error text is returned.
func ErrorHandler(log *logging.Logger, production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := apperr.StatusCode(err)
		message := err.Error()
		var details any

		var appErr *apperr.Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			message = appErr.Message
			details = appErr.Details
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			message = fiberErr.Message
		}

		userID := "-"
		if user := CurrentUser(c); user != nil {
			userID = user.ID
		}
		if status >= fiber.StatusInternalServerError {
			log.Errorf("%s %s user=%s: %v", c.Method(), c.Path(), userID, err)
			if production {
				message = "Internal server error"
				details = nil
			} else if appErr != nil && appErr.Err != nil {
				message = appErr.Message + ": " + appErr.Err.Error()
			}
		} else {
			log.Debugf("%s %s user=%s: %v", c.Method(), c.Path(), userID, err)
		}

		body := fiber.Map{
			"success": false,
			"error":   message,
		}
		if details != nil {
			body["details"] = details
		}
		return c.Status(status).JSON(body)
	}
}
