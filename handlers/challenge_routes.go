package handlers

import (
	"eco-engage-system/middleware"
	"eco-engage-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService) {
	// 🔓 Public reads
	app.Get("/challenges", challengeService.ListActive)
	app.Get("/challenges/user/:userId", challengeService.ListForUser)

	// 🔐 Authenticated
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/challenges/join", challengeService.Join)
	secured.Post("/challenges/progress", challengeService.ReportProgress)

	// 🔒 Admin-only
	admin := secured.Group("/admin", middleware.RequireAdmin())
	admin.Post("/challenges", challengeService.CreateDefinition)
}
