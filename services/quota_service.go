// services/quota_service.go
package services

import (
	"fmt"
	"log"
	"time"

	"spin-tournament-engine/models"

	"gorm.io/gorm"
)

// QuotaService runs the spin quota lifecycle: hourly refills toward the
// effective limit and the daily limit adjustment.
type QuotaService struct {
	DB       *gorm.DB
	Notifier Notifier
	Subs     SubscriptionChecker
}

func NewQuotaService(db *gorm.DB, notifier Notifier, subs SubscriptionChecker) *QuotaService {
	return &QuotaService{DB: db, Notifier: notifier, Subs: subs}
}

// ReferralSpinsBonus grants one base quota per invited user who has spun at
// least once in the current tournament. No tournament means no bonus.
func (s *QuotaService) ReferralSpinsBonus(user *models.User) (int, error) {
	current, err := activeTournament(s.DB)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 0, nil
	}

	var count int64
	err = s.DB.Model(&models.UserTournamentStat{}).
		Joins("JOIN users ON users.id = user_tournament_stats.user_id").
		Where("users.referrer_id = ? AND user_tournament_stats.tournament_id = ? AND user_tournament_stats.spins > 0",
			user.ID, current.ID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count) * models.DefaultSpinsAmount, nil
}

// BonusSpinsLimit is the effective refill ceiling: the stored limit plus the
// referral bonus plus the partner-channel subscription bonus.
func (s *QuotaService) BonusSpinsLimit(user *models.User) (int, error) {
	referral, err := s.ReferralSpinsBonus(user)
	if err != nil {
		return 0, err
	}
	return user.SpinsLimit + referral + s.Subs.SubscriptionSpinsBonus(user.ChatID), nil
}

// RefillSpins tops up every real user whose refill timer has elapsed. Users
// at or above their effective limit get their timer cleared instead; it is
// re-armed on their next spin. Writes touch only the quota columns this job
// owns, so plays and reward credits landing mid-batch are never overwritten.
func (s *QuotaService) RefillSpins() error {
	now := time.Now().UTC()

	var users []models.User
	if err := s.DB.Where("is_fake = ? AND is_banned = ?", false, false).Find(&users).Error; err != nil {
		return fmt.Errorf("load users for refill: %w", err)
	}

	for i := range users {
		user := &users[i]
		if user.NextRefillTime == nil || now.Before(*user.NextRefillTime) {
			continue
		}

		limit, err := s.BonusSpinsLimit(user)
		if err != nil {
			log.Printf("⚠️ [Quota] effective limit for %d failed: %v", user.ChatID, err)
			continue
		}

		if user.SpinsLeft >= limit {
			if err := s.DB.Model(user).Update("next_refill_time", nil).Error; err != nil {
				log.Printf("❌ [Quota] clearing refill timer for %d failed: %v", user.ChatID, err)
			}
			continue
		}

		next := now.Add(models.SpinRefillDelay)
		err = s.DB.Model(user).Updates(map[string]interface{}{
			"spins_left":       limit,
			"next_refill_time": next,
		}).Error
		if err != nil {
			log.Printf("❌ [Quota] refill save for %d failed: %v", user.ChatID, err)
			continue
		}

		time.Sleep(sendPacing)
		text := fmt.Sprintf("🎰 Your spins are refilled! You have %d spins waiting.", limit)
		if _, err := s.Notifier.SendToUser(user.ChatID, text); err != nil {
			log.Printf("⚠️ [Quota] refill notice to %d failed: %v", user.ChatID, err)
		}
	}

	return nil
}

// UpdateSpinsLimit runs once a day just after midnight UTC. Users who played
// within the last day grow their limit by one base quota; idle users decay
// back to the base.
func (s *QuotaService) UpdateSpinsLimit() error {
	now := time.Now().UTC()

	var users []models.User
	if err := s.DB.Where("is_fake = ? AND is_banned = ?", false, false).Find(&users).Error; err != nil {
		return fmt.Errorf("load users for limit update: %w", err)
	}

	for i := range users {
		user := &users[i]
		if user.LastSpinTime == nil {
			continue
		}
		limit := models.DefaultSpinsAmount
		if now.Sub(*user.LastSpinTime) < 24*time.Hour {
			limit = user.SpinsLimit + models.DefaultSpinsAmount
		}
		if err := s.DB.Model(user).Update("spins_limit", limit).Error; err != nil {
			log.Printf("❌ [Quota] limit save for %d failed: %v", user.ChatID, err)
		}
	}

	log.Printf("✅ [Quota] daily limit pass done for %d users", len(users))
	return nil
}
