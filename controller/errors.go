package controller

import (
	"github.com/gofiber/fiber/v2"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

var InvalidRequestError = ErrorResponse{
	Error: "The request was invalid and not recognized",
}

func ErrInvalidRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(&InvalidRequestError)
}

func ErrBadRequest(c *fiber.Ctx, errorText string) error {
	return c.Status(fiber.StatusBadRequest).JSON(&ErrorResponse{
		Error: errorText,
	})
}

var AuthenticationFailedError = ErrorResponse{
	Error: "Authentication failed",
}

func ErrUnauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(&AuthenticationFailedError)
}

var NotAdminError = ErrorResponse{
	Error: "Permission denied: User is not an admin.",
}

func ErrForbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(&NotAdminError)
}

func ErrConflict(c *fiber.Ctx, errorText string) error {
	return c.Status(fiber.StatusConflict).JSON(&ErrorResponse{
		Error: errorText,
	})
}

func ErrInternalServerError(c *fiber.Ctx, errorText string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(&ErrorResponse{
		Error: errorText,
	})
}
