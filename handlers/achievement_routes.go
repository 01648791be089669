package handlers

import (
	"eco-engage-system/middleware"
	"eco-engage-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAchievementRoutes(app *fiber.App, achievementService *services.AchievementService) {
	// 🔓 Public reads
	app.Get("/achievements", achievementService.ListDefinitions)
	app.Get("/achievements/user/:userId", achievementService.GetUserUnlocks)

	// 🔐 Authenticated
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/achievements/check", achievementService.CheckAchievements)

	// 🔒 Admin-only
	admin := secured.Group("/admin", middleware.RequireAdmin())
	admin.Post("/achievements", achievementService.CreateDefinition)
}
