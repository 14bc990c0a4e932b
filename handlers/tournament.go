// handlers/tournament.go
package handlers

import (
	"spin-tournament-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService) {
	app.Get("/leaderboard", tournamentService.GetAllTimeLeaderboard)
	app.Get("/leaderboard/weekly", tournamentService.GetWeeklyLeaderboard)

	app.Get("/tournaments/current", tournamentService.GetCurrentTournament)
	app.Post("/tournaments/:id/claim", tournamentService.ClaimPrize)
}
