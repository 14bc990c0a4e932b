// services/spin_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"spin-tournament-engine/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RandomSource yields uniform randomness for rolls, win announcements and
// cohort sampling. Injected so tests can pin outcomes.
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

type mathRandSource struct{}

func (mathRandSource) Intn(n int) int   { return rand.Intn(n) }
func (mathRandSource) Float64() float64 { return rand.Float64() }

func NewRandomSource() RandomSource { return mathRandSource{} }

// ErrNoSpinsLeft rejects a play attempt against an exhausted quota.
var ErrNoSpinsLeft = errors.New("no spins left")

// SpinResult decodes a roll from the fixed 1..64 range into its outcome key.
// The roll encodes three slot positions in base 4 over the symbol alphabet;
// a full triple collapses to the symbol repeated three times, an adjacent
// pair to the symbol repeated twice. A triple always wins over any pair
// reading. Pure and total: every valid roll maps to exactly one key.
func SpinResult(roll int) string {
	buf := make([]byte, 3)
	div := 1
	for i := range buf {
		buf[i] = models.SpinSymbols[((roll-1)/div)%4]
		div *= 4
	}
	result := string(buf)

	for i := 0; i < len(result)-1; i++ {
		if result[i] == result[i+1] {
			sym := string(result[i])
			return strings.Repeat(sym, strings.Count(result, sym))
		}
	}
	return result
}

// SpinReward looks up the gem payout for an outcome key. Unknown keys pay 0.
func SpinReward(result string) int {
	return models.SpinRewards[result]
}

// PlayOutcome is what a single resolved spin looks like to the caller.
type PlayOutcome struct {
	Roll      int    `json:"roll"`
	Result    string `json:"result"`
	Reward    int    `json:"reward"`
	IsJackpot bool   `json:"is_jackpot"`
	SpinsLeft int    `json:"spins_left"`
	GemsTotal int    `json:"gems_total"`
}

type SpinService struct {
	DB          *gorm.DB
	Ledger      *LedgerService
	Notifier    Notifier
	Rand        RandomSource
	GameTopicID int64
}

func NewSpinService(db *gorm.DB, ledger *LedgerService, notifier Notifier, rng RandomSource, gameTopicID int64) *SpinService {
	return &SpinService{DB: db, Ledger: ledger, Notifier: notifier, Rand: rng, GameTopicID: gameTopicID}
}

// Play consumes one spin, rolls, and settles the reward through the Ledger.
// The quota decrement and the reward credit each commit as their own atomic
// unit; announcements afterwards are best-effort.
func (s *SpinService) Play(user *models.User) (*PlayOutcome, error) {
	if user.SpinsLeft <= 0 {
		return nil, ErrNoSpinsLeft
	}
	if err := s.Ledger.RecordSpin(user); err != nil {
		return nil, err
	}

	roll := s.Rand.Intn(models.RollMax) + 1
	result := SpinResult(roll)
	reward := SpinReward(result)
	isJackpot := result == models.JackpotResult

	if err := s.Ledger.CreditSpinReward(user, reward, isJackpot); err != nil {
		return nil, err
	}

	s.announceWin(user, result, reward)

	return &PlayOutcome{
		Roll:      roll,
		Result:    result,
		Reward:    reward,
		IsJackpot: isJackpot,
		SpinsLeft: user.SpinsLeft,
		GemsTotal: user.GemsTotal,
	}, nil
}

// announceWin posts notable wins to the group topic: every triple, and a
// random fifth of pair wins so the feed stays lively without flooding.
func (s *SpinService) announceWin(user *models.User, result string, reward int) {
	if reward == 0 || user.IsMuted {
		return
	}
	if len(result) != 3 && !(len(result) == 2 && s.Rand.Float64() <= 0.2) {
		return
	}

	if len(result) == 3 {
		emoji := models.WinEmojis[s.Rand.Intn(len(models.WinEmojis))]
		if _, err := s.Notifier.SendToGroupTopic(s.GameTopicID, emoji); err != nil {
			log.Printf("[Spin] group emoji send failed: %v", err)
		}
	}

	text := fmt.Sprintf("🎰 %s hit %s and won %d 💎!", user.DisplayName(), result, reward)
	if _, err := s.Notifier.SendToGroupTopic(s.GameTopicID, text); err != nil {
		log.Printf("[Spin] group win announcement failed: %v", err)
	}
}

// PlaySpin is the interactive play endpoint.
func (s *SpinService) PlaySpin(c *fiber.Ctx) error {
	chatID, err := strconv.ParseInt(c.Params("chat_id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "chat_id must be numeric"})
	}

	var user models.User
	if err := s.DB.First(&user, "chat_id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if user.IsBanned {
		return c.Status(403).JSON(fiber.Map{"error": "user is banned"})
	}

	outcome, err := s.Play(&user)
	if errors.Is(err, ErrNoSpinsLeft) {
		resp := fiber.Map{"error": "no spins left"}
		if user.NextRefillTime != nil {
			resp["next_refill_time"] = user.NextRefillTime.UTC().Format(time.RFC3339)
		}
		return c.Status(403).JSON(resp)
	}
	if err != nil {
		log.Printf("[Spin] play failed for %d: %v", chatID, err)
		return c.Status(500).JSON(fiber.Map{"error": "spin failed"})
	}

	return c.JSON(outcome)
}
