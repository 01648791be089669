package handlers

import (
	"eco-engage-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService) {
	app.Get("/leaderboard/top", leaderboardService.TopUsers)
	app.Get("/leaderboard/user/:userId", leaderboardService.UserRank)
}
