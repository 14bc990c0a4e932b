// handlers/spin.go
package handlers

import (
	"spin-tournament-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSpinRoutes(app *fiber.App, userService *services.UserService, spinService *services.SpinService) {
	app.Post("/users", userService.RegisterUser)
	app.Get("/users/:chat_id", userService.GetUser)
	app.Patch("/users/:chat_id/anon-name", userService.RegenerateAnonName)

	app.Post("/users/:chat_id/spin", spinService.PlaySpin)
}
