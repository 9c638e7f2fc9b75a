package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rankpulse/rankpulse/app/controllers"
	"github.com/rankpulse/rankpulse/internal/pkg/billing"
	"github.com/rankpulse/rankpulse/internal/pkg/database"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	db := database.GetDB()
	repo := billing.NewRepository(db)
	webhooks := controllers.NewWebhookController(
		billing.NewServiceFromDB(db),
		billing.NewGateway(repo),
	)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	// Gateway webhooks carry their own authentication (signature header).
	app.Post("/webhooks/paddle", webhooks.HandlePaddleWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
