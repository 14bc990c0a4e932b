// utils/names.go
package utils

import (
	"math/rand"
	"time"
)

var anonAdjectives = []string{
	"Amber", "Bold", "Brisk", "Clever", "Cosmic", "Crimson", "Daring",
	"Electric", "Fancy", "Fierce", "Gilded", "Happy", "Hidden", "Jolly",
	"Lucky", "Mellow", "Mighty", "Neon", "Nimble", "Quiet", "Rapid",
	"Royal", "Shiny", "Silent", "Sly", "Swift", "Velvet", "Wild",
}

var anonNouns = []string{
	"Ace", "Badger", "Comet", "Dice", "Falcon", "Fox", "Gem", "Joker",
	"King", "Lion", "Lynx", "Otter", "Panther", "Phoenix", "Pirate",
	"Raven", "Rocket", "Shark", "Spinner", "Tiger", "Viper", "Wolf",
}

// GenerateAnonName returns a random two-word alias shown instead of the real
// username in public leaderboards and group posts.
func GenerateAnonName() string {
	return anonAdjectives[rand.Intn(len(anonAdjectives))] + anonNouns[rand.Intn(len(anonNouns))]
}

// RandomTimeThisHour picks a random minute/second within the current hour.
// Used to spread synthetic player activity so it doesn't fire in lockstep.
func RandomTimeThisHour() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(),
		rand.Intn(60), rand.Intn(60), 0, time.UTC)
}
