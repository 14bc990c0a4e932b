// services/warning_service.go
package services

import (
	"fmt"
	"log"
	"time"

	"spin-tournament-engine/models"

	"gorm.io/gorm"
)

// WarningService nudges idle players back into the running tournament with
// an escalating ladder of reminders. Outside a tournament it stays silent.
type WarningService struct {
	DB       *gorm.DB
	Notifier Notifier
}

func NewWarningService(db *gorm.DB, notifier Notifier) *WarningService {
	return &WarningService{DB: db, Notifier: notifier}
}

func warningText(level int, idle time.Duration) string {
	hours := int(idle.Hours())
	switch level {
	case 1:
		return fmt.Sprintf("👋 You haven't spun in %d hours. The tournament is on — don't fall behind!", hours)
	case 2:
		return fmt.Sprintf("⏳ Still no spins after %d hours. Your rivals are pulling ahead!", hours)
	default:
		return fmt.Sprintf("🚨 %d hours without a spin. Last call before the weekend finale!", hours)
	}
}

// SendSpinWarnings walks real users and escalates each to the highest ladder
// level their idle time has crossed, at most one step per run. The previous
// reminder is removed first so a player never sees a stack of them. Players
// who spun today are left alone even if an older threshold still matches.
func (s *WarningService) SendSpinWarnings() error {
	current, err := activeTournament(s.DB)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	now := time.Now().UTC()

	var users []models.User
	if err := s.DB.Where("is_fake = ? AND is_banned = ?", false, false).Find(&users).Error; err != nil {
		return fmt.Errorf("load users for warnings: %w", err)
	}

	for i := range users {
		user := &users[i]
		if user.LastSpinTime == nil {
			continue
		}
		lastSpin := user.LastSpinTime.UTC()
		if lastSpin.Year() == now.Year() && lastSpin.YearDay() == now.YearDay() {
			continue
		}
		idle := now.Sub(lastSpin)

		for j := len(models.WarningLevels) - 1; j >= 0; j-- {
			wl := models.WarningLevels[j]
			if idle < wl.After || user.WarningLevel >= wl.Level {
				continue
			}

			time.Sleep(sendPacing)
			if user.LastWarningMessageID != 0 {
				if err := s.Notifier.DeleteMessage(user.ChatID, user.LastWarningMessageID); err != nil {
					log.Printf("⚠️ [Warnings] deleting old reminder for %d failed: %v", user.ChatID, err)
				}
			}

			msg, err := s.Notifier.SendToUser(user.ChatID, warningText(wl.Level, idle))
			if err != nil {
				log.Printf("⚠️ [Warnings] reminder to %d failed: %v", user.ChatID, err)
			}

			// Only the ladder columns; a reward or play committed while this
			// batch walks must not be overwritten with stale values.
			updates := map[string]interface{}{"warning_level": wl.Level}
			if msg != nil {
				updates["last_warning_message_id"] = msg.MessageID
			}
			if err := s.DB.Model(user).Updates(updates).Error; err != nil {
				log.Printf("❌ [Warnings] save for %d failed: %v", user.ChatID, err)
			}
			break
		}
	}

	return nil
}
