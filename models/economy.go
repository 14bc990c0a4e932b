// models/economy.go
package models

import "time"

// Core economy tuning. These mirror the production values and are not
// expected to change per-environment, so they live here rather than in env.
const (
	// DefaultSpinsAmount is the base quota granted on signup, on tournament
	// start and on every daily limit growth step.
	DefaultSpinsAmount = 10

	// ReferralGemsRate is the share of a referral's reward credited one hop
	// up to the referrer (always rounded up).
	ReferralGemsRate = 0.05

	// SpinRefillDelay is the pause between quota refills for a user below
	// their effective limit.
	SpinRefillDelay = time.Hour

	// FakeUsersAmount is how many synthetic players are seeded on first boot.
	FakeUsersAmount = 60
	// ActiveFakeUsersAmount is the size of the synthetic cohort kept active
	// during a tournament.
	ActiveFakeUsersAmount = 12
)

// Slot symbols, encoded positionally in the 1..64 roll range.
const (
	SpinSymbols = "bgl7"
	RollMin     = 1
	RollMax     = 64

	// JackpotResult is the only combination counted as a jackpot.
	JackpotResult = "777"
)

// SpinRewards maps an outcome key (symbol triple or pair) to its gem reward.
// Unknown keys pay nothing.
var SpinRewards = map[string]int{
	"777": 70,
	"ggg": 30,
	"lll": 20,
	"bbb": 20,
	"77":  7,
	"gg":  3,
	"ll":  2,
	"bb":  2,
}

// WarningLevel pairs an escalation level with the inactivity threshold that
// triggers it. Evaluated highest threshold first.
type WarningLevel struct {
	Level int
	After time.Duration
}

var WarningLevels = []WarningLevel{
	{1, 12 * time.Hour},
	{2, 24 * time.Hour},
	{3, 72 * time.Hour},
}

// WinEmojis are posted to the group topic ahead of jackpot announcements.
var WinEmojis = []string{"💪", "🎉", "👏", "🔥", "🤘", "🚀", "🥳", "👍", "💎", "🕺", "👑", "💥", "⚽", "💰"}
