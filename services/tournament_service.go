// services/tournament_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"spin-tournament-engine/models"
	"spin-tournament-engine/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TournamentService owns the weekly tournament lifecycle and the leaderboard
// read paths.
type TournamentService struct {
	DB          *gorm.DB
	Notifier    Notifier
	Cache       *LeaderboardCache
	Rand        RandomSource
	Export      *ExportService
	GameTopicID int64
}

func NewTournamentService(db *gorm.DB, notifier Notifier, cache *LeaderboardCache, rng RandomSource, export *ExportService, gameTopicID int64) *TournamentService {
	return &TournamentService{DB: db, Notifier: notifier, Cache: cache, Rand: rng, Export: export, GameTopicID: gameTopicID}
}

// EnsureIndexes creates the constraints AutoMigrate can't express. The
// partial unique index admits any number of closed tournaments but at most
// one active row.
func EnsureIndexes(db *gorm.DB) error {
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_tournaments_one_active ON tournaments (is_active) WHERE is_active",
	).Error
}

// mondayOf returns 00:00 UTC of the Monday of t's week.
func mondayOf(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// nextMonday returns 00:00 UTC of the Monday after t (t itself if Monday).
func nextMonday(t time.Time) time.Time {
	t = t.UTC()
	offset := (7 - int(t.Weekday()) + 1) % 7
	day := t.AddDate(0, 0, offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// StartTournament opens the weekly cycle: refreshes the synthetic cohort,
// resets everyone's quota to the base amount and creates the tournament row.
// Idempotent: if a tournament is already active it is returned untouched, so
// a rerun of the Monday job can't double-open.
func (s *TournamentService) StartTournament() (*models.Tournament, error) {
	now := time.Now().UTC()
	var tournament models.Tournament
	started := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := activeTournament(lockForUpdate(tx))
		if err != nil {
			return err
		}
		if existing != nil {
			tournament = *existing
			return nil
		}

		var fakes []models.User
		if err := tx.Where("is_fake = ?", true).Find(&fakes).Error; err != nil {
			return err
		}

		// Titled actors stay in; the rest of the cohort is sampled.
		titled := 0
		for _, u := range fakes {
			if u.IsPreviousTournamentWinner {
				titled++
			}
		}
		remaining := models.ActiveFakeUsersAmount - titled
		pool := make([]int, 0, len(fakes))
		for i, u := range fakes {
			if !u.IsPreviousTournamentWinner {
				pool = append(pool, i)
			}
		}
		for i := len(pool) - 1; i > 0; i-- {
			j := s.Rand.Intn(i + 1)
			pool[i], pool[j] = pool[j], pool[i]
		}
		if remaining < 0 {
			remaining = 0
		}
		if remaining > len(pool) {
			remaining = len(pool)
		}
		sampled := make(map[int]bool, remaining)
		for _, idx := range pool[:remaining] {
			sampled[idx] = true
		}

		for i := range fakes {
			fakes[i].IsActive = fakes[i].IsPreviousTournamentWinner || sampled[i]
			next := utils.RandomTimeThisHour()
			fakes[i].NextAutospinTime = &next
			if err := tx.Save(&fakes[i]).Error; err != nil {
				return err
			}
		}

		// Fresh quota for everyone, real and synthetic.
		err = tx.Model(&models.User{}).Where("1 = 1").Updates(map[string]interface{}{
			"spins_left":       models.DefaultSpinsAmount,
			"spins_limit":      models.DefaultSpinsAmount,
			"next_refill_time": nil,
			"warning_level":    0,
		}).Error
		if err != nil {
			return err
		}

		start := mondayOf(now)
		tournament = models.Tournament{
			ID:        uuid.NewString(),
			StartDate: start,
			EndDate:   start.AddDate(0, 0, 6), // the closing Sunday
			IsActive:  true,
		}
		if err := tx.Create(&tournament).Error; err != nil {
			return err
		}
		started = true
		return nil
	})
	if err != nil {
		// A concurrent opener may have won the race and tripped the partial
		// unique index on is_active; their tournament is the one to return.
		if existing, readErr := activeTournament(s.DB); readErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("start tournament: %w", err)
	}

	if started {
		log.Printf("✅ [Tournament] started %s (%s)", tournament.ID, tournament.StartDate.Format("2006/01/02"))
		s.announceStart(&tournament)
	}
	return &tournament, nil
}

func (s *TournamentService) announceStart(t *models.Tournament) {
	startDate := t.StartDate.Format("2006/01/02")

	var users []models.User
	if err := s.DB.Where("is_fake = ? AND is_banned = ?", false, false).Find(&users).Error; err != nil {
		log.Printf("⚠️ [Tournament] loading users for start notice failed: %v", err)
	}
	for _, user := range users {
		time.Sleep(sendPacing)
		text := fmt.Sprintf("🏆 %s, the weekly tournament of %s has begun! Spin to climb the board.", user.DisplayName(), startDate)
		if _, err := s.Notifier.SendToUser(user.ChatID, text); err != nil {
			log.Printf("⚠️ [Tournament] start notice to %d failed: %v", user.ChatID, err)
		}
	}

	if _, err := s.Notifier.SendToGroupTopic(s.GameTopicID, "📣"); err != nil {
		log.Printf("⚠️ [Tournament] group herald failed: %v", err)
	}
	msg, err := s.Notifier.SendToGroupTopic(s.GameTopicID,
		fmt.Sprintf("🏆 The weekly tournament of %s is on! Top 3 by gems take the prizes on Sunday evening.", startDate))
	if err != nil {
		log.Printf("⚠️ [Tournament] group announcement failed: %v", err)
		return
	}
	if copied, err := s.Notifier.CrossPost(msg); err != nil {
		log.Printf("⚠️ [Tournament] cross-post failed: %v", err)
	} else if err := s.Notifier.Pin(copied); err != nil {
		log.Printf("⚠️ [Tournament] pinning cross-post failed: %v", err)
	}
	if err := s.Notifier.Pin(msg); err != nil {
		log.Printf("⚠️ [Tournament] pinning announcement failed: %v", err)
	}
}

func leaderboardStats(tx *gorm.DB, tournamentID string, limit int) ([]models.UserTournamentStat, error) {
	var stats []models.UserTournamentStat
	err := tx.Preload("User").
		Where("tournament_id = ? AND gems > 0", tournamentID).
		Order("gems DESC, created_at ASC").
		Limit(limit).
		Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	return stats, nil
}

// Leaderboard returns up to limit podium entries for a tournament, highest
// gems first; equal scores rank by who reached the board first.
func (s *TournamentService) Leaderboard(tournamentID string, limit int) ([]models.UserTournamentStat, error) {
	return leaderboardStats(s.DB, tournamentID, limit)
}

// EndTournament closes the active cycle: deactivates it, settles the podium
// and title streaks, credits referrers a share of each winner's tournament
// gems, then notifies everyone. Deactivation and settlement commit as one
// transaction, so a failed run leaves the tournament active and the rerun
// picks it up whole. Running with no active tournament is a no-op; an empty
// board deactivates quietly with no podium or streak changes.
func (s *TournamentService) EndTournament() error {
	var tournament *models.Tournament
	var podium []models.UserTournamentStat

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		current, err := activeTournament(lockForUpdate(tx))
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}

		podium, err = leaderboardStats(tx, current.ID, 3)
		if err != nil {
			return err
		}

		if err := tx.Model(current).Update("is_active", false).Error; err != nil {
			return err
		}
		tournament = current

		if len(podium) == 0 {
			return nil
		}

		// Capture streak state before the blanket reset below wipes it.
		winners := make([]models.User, len(podium))
		for i, stat := range podium {
			if err := lockForUpdate(tx).First(&winners[i], "id = ?", stat.UserID).Error; err != nil {
				return err
			}
		}

		// Everyone's streak resets; the champion's is restored below.
		err = tx.Model(&models.User{}).Where("is_banned = ?", false).Updates(map[string]interface{}{
			"tournament_king_wins":          0,
			"is_previous_tournament_winner": false,
		}).Error
		if err != nil {
			return err
		}

		for place, stat := range podium {
			winner := winners[place]

			updates := map[string]interface{}{
				"tournament_wins": winner.TournamentWins + 1,
			}
			if place == 0 {
				kingWins := 1
				if winner.IsPreviousTournamentWinner {
					kingWins = winner.TournamentKingWins + 1
				}
				updates["tournament_king_wins"] = kingWins
				updates["is_previous_tournament_winner"] = true
				if kingWins > winner.MaxTournamentKingWins {
					updates["max_tournament_king_wins"] = kingWins
				}
			}
			if err := tx.Model(&winner).Updates(updates).Error; err != nil {
				return err
			}

			if winner.ReferrerID != nil {
				credit := ReferralCredit(stat.Gems)
				err := tx.Model(&models.User{}).Where("id = ?", *winner.ReferrerID).Updates(map[string]interface{}{
					"gems_total":    gorm.Expr("gems_total + ?", credit),
					"gems_referral": gorm.Expr("gems_referral + ?", credit),
				}).Error
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("end tournament: %w", err)
	}
	if tournament == nil {
		return nil
	}

	s.Cache.Drop(tournament.ID)

	if len(podium) == 0 {
		log.Printf("⚠️ [Tournament] %s ended with an empty board", tournament.ID)
		return nil
	}

	log.Printf("✅ [Tournament] %s settled, podium of %d", tournament.ID, len(podium))
	s.announceEnd(tournament, podium)
	return nil
}

func (s *TournamentService) announceEnd(t *models.Tournament, podium []models.UserTournamentStat) {
	endDate := t.EndDate.Format("2006/01/02")
	nextStart := nextMonday(time.Now().UTC()).Format("2006/01/02")

	medals := []string{"🥇", "🥈", "🥉"}
	lines := make([]string, 0, len(podium))
	for i, stat := range podium {
		lines = append(lines, fmt.Sprintf("%s %s — %d 💎", medals[i], stat.User.DisplayName(), stat.Gems))
	}
	board := strings.Join(lines, "\n")

	winners := make(map[string]bool, len(podium))
	for _, stat := range podium {
		winners[stat.UserID] = true
	}

	var users []models.User
	if err := s.DB.Where("is_fake = ? AND is_banned = ?", false, false).Find(&users).Error; err != nil {
		log.Printf("⚠️ [Tournament] loading users for end notice failed: %v", err)
	}
	for _, user := range users {
		time.Sleep(sendPacing)
		var text string
		if winners[user.ID] {
			text = fmt.Sprintf("🏅 The tournament of %s is over and you made the podium!\n\n%s\n\nClaim your prize with /claim. Next round starts %s.", endDate, board, nextStart)
		} else {
			text = fmt.Sprintf("🏁 The tournament of %s is over.\n\n%s\n\nNext round starts %s — better luck then!", endDate, board, nextStart)
		}
		if _, err := s.Notifier.SendToUser(user.ChatID, text); err != nil {
			log.Printf("⚠️ [Tournament] end notice to %d failed: %v", user.ChatID, err)
		}
	}

	if _, err := s.Notifier.SendToGroupTopic(s.GameTopicID, "🏁"); err != nil {
		log.Printf("⚠️ [Tournament] group flag failed: %v", err)
	}
	msg, err := s.Notifier.SendToGroupTopic(s.GameTopicID,
		fmt.Sprintf("🏁 The tournament of %s has ended!\n\n%s", endDate, board))
	if err != nil {
		log.Printf("⚠️ [Tournament] group podium post failed: %v", err)
		return
	}
	if copied, err := s.Notifier.CrossPost(msg); err != nil {
		log.Printf("⚠️ [Tournament] cross-post failed: %v", err)
	} else if err := s.Notifier.Pin(copied); err != nil {
		log.Printf("⚠️ [Tournament] pinning cross-post failed: %v", err)
	}
	if err := s.Notifier.Pin(msg); err != nil {
		log.Printf("⚠️ [Tournament] pinning podium post failed: %v", err)
	}
}

// GetCurrentTournament reports the active tournament, if any.
func (s *TournamentService) GetCurrentTournament(c *fiber.Ctx) error {
	current, err := activeTournament(s.DB)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if current == nil {
		return c.Status(404).JSON(fiber.Map{"error": "no active tournament"})
	}
	return c.JSON(current)
}

// playerPlace resolves a player's one-based position on the weekly board,
// preferring the Redis mirror and falling back to the stat table with the
// same ordering the board uses. False when the player hasn't scored yet.
func (s *TournamentService) playerPlace(tournamentID string, chatID int64) (int, bool) {
	var user models.User
	if err := s.DB.First(&user, "chat_id = ?", chatID).Error; err != nil {
		return 0, false
	}

	if rank := s.Cache.Rank(tournamentID, user.ID); rank >= 0 {
		return int(rank) + 1, true
	}

	var stat models.UserTournamentStat
	if err := s.DB.Where("user_id = ? AND tournament_id = ?", user.ID, tournamentID).First(&stat).Error; err != nil {
		return 0, false
	}
	if stat.Gems <= 0 {
		return 0, false
	}
	var ahead int64
	err := s.DB.Model(&models.UserTournamentStat{}).
		Where("tournament_id = ? AND (gems > ? OR (gems = ? AND created_at < ?))",
			tournamentID, stat.Gems, stat.Gems, stat.CreatedAt).
		Count(&ahead).Error
	if err != nil {
		return 0, false
	}
	return int(ahead) + 1, true
}

// GetWeeklyLeaderboard serves the active tournament's top 10 from the Redis
// mirror when it's warm, falling back to the store. Passing ?chat_id= adds
// the caller's own position.
func (s *TournamentService) GetWeeklyLeaderboard(c *fiber.Ctx) error {
	current, err := activeTournament(s.DB)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if current == nil {
		return c.Status(404).JSON(fiber.Map{"error": "no active tournament"})
	}

	var entries []fiber.Map
	if cached, err := s.Cache.Top(current.ID, 10); err == nil && len(cached) > 0 {
		entries = make([]fiber.Map, 0, len(cached))
		for i, z := range cached {
			userID, _ := z.Member.(string)
			var user models.User
			if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
				continue
			}
			entries = append(entries, fiber.Map{
				"place":     i + 1,
				"anon_name": user.DisplayName(),
				"gems":      int(z.Score),
			})
		}
	} else {
		stats, err := s.Leaderboard(current.ID, 10)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "DB error"})
		}
		entries = make([]fiber.Map, 0, len(stats))
		for i, stat := range stats {
			entries = append(entries, fiber.Map{
				"place":     i + 1,
				"anon_name": stat.User.DisplayName(),
				"gems":      stat.Gems,
			})
		}
	}

	resp := fiber.Map{"tournament_id": current.ID, "leaderboard": entries}
	if chatID := c.QueryInt("chat_id"); chatID != 0 {
		if place, ok := s.playerPlace(current.ID, int64(chatID)); ok {
			resp["my_place"] = place
		}
	}
	return c.JSON(resp)
}

// GetAllTimeLeaderboard serves the lifetime top 10 by total gems.
func (s *TournamentService) GetAllTimeLeaderboard(c *fiber.Ctx) error {
	var users []models.User
	err := s.DB.Where("gems_total > 0").Order("gems_total DESC").Limit(10).Find(&users).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	entries := make([]fiber.Map, 0, len(users))
	for i, user := range users {
		entries = append(entries, fiber.Map{
			"place":     i + 1,
			"anon_name": user.DisplayName(),
			"gems":      user.GemsTotal,
		})
	}
	return c.JSON(fiber.Map{"leaderboard": entries})
}

// ClaimPrize records a podium finisher's contact email for prize delivery.
// One-shot per (user, tournament); a second claim is rejected.
func (s *TournamentService) ClaimPrize(c *fiber.Ctx) error {
	tournamentID := c.Params("id")
	var req struct {
		ChatID int64  `json:"chat_id"`
		Email  string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(400).JSON(fiber.Map{"error": "chat_id and email are required"})
	}

	var user models.User
	if err := s.DB.First(&user, "chat_id = ?", req.ChatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	var stat models.UserTournamentStat
	claimed := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := lockForUpdate(tx).
			Where("user_id = ? AND tournament_id = ?", user.ID, tournamentID).
			First(&stat).Error
		if err != nil {
			return err
		}
		if stat.PrizeClaimed {
			return nil
		}
		if err := tx.Model(&stat).Update("prize_claimed", true).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("email", req.Email).Error; err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "no tournament result for user"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if !claimed {
		return c.Status(409).JSON(fiber.Map{"error": "prize already claimed"})
	}

	var tournament models.Tournament
	if err := s.DB.First(&tournament, "id = ?", tournamentID).Error; err == nil {
		if err := s.Export.ExportWinner(&user, &tournament, &stat); err != nil {
			log.Printf("⚠️ [Tournament] winner export for %d failed: %v", user.ChatID, err)
		}
	}

	return c.JSON(fiber.Map{"status": "claimed", "tournament_id": tournamentID})
}
