package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type"

func NewApp(pc *PushController) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Cors middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: corsAllowHeaders,
	}))

	app.Get("/health", pc.HandleHealth)

	app.Post("/push/posts", pc.RequireWebhookSecret, pc.HandleDispatch)
	app.Post("/push/receipts", pc.RequireWebhookSecret, pc.HandleReconcile)
	app.Post("/push/tokens", pc.RequireUser, pc.HandleRegisterToken)
	app.Get("/push/tokens", pc.RequireUser, pc.HandleListTokens)
	app.Post("/admin/push/posts", pc.RequireUser, pc.RequireAdmin, pc.HandleAdminDispatch)

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.SendStatus(404)
	})
	return app
}
