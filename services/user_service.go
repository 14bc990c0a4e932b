// services/user_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"spin-tournament-engine/models"
	"spin-tournament-engine/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	DB       *gorm.DB
	Notifier Notifier
}

func NewUserService(db *gorm.DB, notifier Notifier) *UserService {
	return &UserService{DB: db, Notifier: notifier}
}

// RegisterUser creates a player account on first contact. Registering through
// a referral link grants the referrer an immediate quota boost and links the
// new user one hop up. Re-registering an existing chat id is a no-op.
func (s *UserService) RegisterUser(c *fiber.Ctx) error {
	var req struct {
		ChatID         int64  `json:"chat_id"`
		Username       string `json:"username"`
		Language       string `json:"language"`
		AdvSource      string `json:"adv_source"`
		ReferrerChatID int64  `json:"referrer_chat_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ChatID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "chat_id is required"})
	}

	var existing models.User
	err := s.DB.First(&existing, "chat_id = ?", req.ChatID).Error
	if err == nil {
		return c.JSON(existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	user := models.User{
		ID:         uuid.NewString(),
		ChatID:     req.ChatID,
		Username:   req.Username,
		AnonName:   utils.GenerateAnonName(),
		AdvSource:  req.AdvSource,
		SpinsLeft:  models.DefaultSpinsAmount,
		SpinsLimit: models.DefaultSpinsAmount,
	}
	if req.Language != "" {
		user.Language = req.Language
	}

	var referrer *models.User
	if req.ReferrerChatID != 0 && req.ReferrerChatID != req.ChatID {
		var found models.User
		err := s.DB.First(&found, "chat_id = ?", req.ReferrerChatID).Error
		if err == nil {
			referrer = &found
			user.ReferrerID = &found.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(500).JSON(fiber.Map{"error": "DB error"})
		}
	}

	if err := s.DB.Create(&user).Error; err != nil {
		log.Printf("❌ [Users] creating %d failed: %v", req.ChatID, err)
		return c.Status(500).JSON(fiber.Map{"error": "could not create user"})
	}
	log.Printf("✅ [Users] registered %d as %s", user.ChatID, user.AnonName)

	if referrer != nil {
		err := s.DB.Model(referrer).
			Update("spins_left", gorm.Expr("spins_left + ?", models.DefaultSpinsAmount)).Error
		if err != nil {
			log.Printf("❌ [Users] referral grant to %d failed: %v", referrer.ChatID, err)
		} else {
			text := fmt.Sprintf("🤝 %s joined through your link! You got %d bonus spins.",
				user.DisplayName(), models.DefaultSpinsAmount)
			if _, err := s.Notifier.SendToUser(referrer.ChatID, text); err != nil {
				log.Printf("⚠️ [Users] referral notice to %d failed: %v", referrer.ChatID, err)
			}
		}
	}

	return c.Status(201).JSON(user)
}

// GetUser returns a player by chat id, with their current tournament stat
// when one exists.
func (s *UserService) GetUser(c *fiber.Ctx) error {
	var user models.User
	if err := s.DB.First(&user, "chat_id = ?", c.Params("chat_id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	resp := fiber.Map{"user": user}
	current, err := activeTournament(s.DB)
	if err == nil && current != nil {
		var stat models.UserTournamentStat
		err := s.DB.Where("user_id = ? AND tournament_id = ?", user.ID, current.ID).First(&stat).Error
		if err == nil {
			resp["tournament_stat"] = stat
		}
	}
	return c.JSON(resp)
}

// RegenerateAnonName rerolls the player's public alias.
func (s *UserService) RegenerateAnonName(c *fiber.Ctx) error {
	var user models.User
	if err := s.DB.First(&user, "chat_id = ?", c.Params("chat_id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	user.AnonName = utils.GenerateAnonName()
	if err := s.DB.Save(&user).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "could not update user"})
	}
	return c.JSON(fiber.Map{"anon_name": user.AnonName})
}

// SeedFakeUsers populates the synthetic player pool on first boot. A
// non-empty users table means seeding already happened.
func (s *UserService) SeedFakeUsers() error {
	var count int64
	if err := s.DB.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	for i := 0; i < models.FakeUsersAmount; i++ {
		next := utils.RandomTimeThisHour()
		user := models.User{
			ID:               uuid.NewString(),
			ChatID:           -int64(i + 1),
			Username:         fmt.Sprintf("player%02d", i+1),
			AnonName:         utils.GenerateAnonName(),
			SpinsLeft:        models.DefaultSpinsAmount,
			SpinsLimit:       models.DefaultSpinsAmount,
			IsFake:           true,
			NextAutospinTime: &next,
		}
		if err := s.DB.Create(&user).Error; err != nil {
			return fmt.Errorf("seed synthetic user %d: %w", i+1, err)
		}
	}
	log.Printf("✅ [Users] seeded %d synthetic players", models.FakeUsersAmount)
	return nil
}
