package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail sends an error response carrying optional field-level details.
func Fail(c *fiber.Ctx, status int, message string, details map[string]string) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
		Details: details,
	})
}

// ValidationDetails flattens validator errors into a field -> reason map.
// Non-validator errors yield nil so callers can fall back to a plain message.
func ValidationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	details := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := strings.ToLower(fieldError.Field())
		switch fieldError.Tag() {
		case "required":
			details[field] = "this field is required"
		case "email":
			details[field] = "must be a valid email address"
		case "max":
			details[field] = "must not exceed " + fieldError.Param() + " characters"
		case "min":
			details[field] = "must be at least " + fieldError.Param()
		case "uuid4":
			details[field] = "must be a valid identifier"
		case "oneof":
			details[field] = "must be one of: " + fieldError.Param()
		default:
			details[field] = "is invalid"
		}
	}
	return details
}
