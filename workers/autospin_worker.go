// workers/autospin_worker.go
package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"spin-tournament-engine/models"
	"spin-tournament-engine/services"
	"spin-tournament-engine/utils"

	"gorm.io/gorm"
)

// AutospinWorker keeps the synthetic cohort visibly playing. Each pass picks
// one due active synthetic player and runs a short burst of spins through the
// same resolver and ledger path real players use, so their scores obey every
// economy rule.
type AutospinWorker struct {
	db       *gorm.DB
	spins    *services.SpinService
	rand     services.RandomSource
	interval time.Duration
}

func NewAutospinWorker(db *gorm.DB, spins *services.SpinService, rng services.RandomSource) *AutospinWorker {
	return &AutospinWorker{
		db:       db,
		spins:    spins,
		rand:     rng,
		interval: 1 * time.Minute,
	}
}

func (w *AutospinWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting autospin worker…")
	go w.run(ctx)
}

func (w *AutospinWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.RunOnce(); err != nil {
				log.Printf("❌ [Autospin] pass failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("🛑 Autospin worker stopped")
			return
		}
	}
}

// RunOnce plays 5–10 spins for the first due synthetic player, then tops its
// quota back up and re-arms a random slot within the next hour. At most one
// player per pass so activity trickles in instead of arriving in bursts.
func (w *AutospinWorker) RunOnce() error {
	now := time.Now().UTC()

	var user models.User
	err := w.db.
		Where("is_fake = ? AND is_active = ? AND next_autospin_time < ?", true, true, now).
		Order("next_autospin_time ASC").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	burst := 5 + w.rand.Intn(6)
	for i := 0; i < burst; i++ {
		if _, err := w.spins.Play(&user); err != nil {
			if errors.Is(err, services.ErrNoSpinsLeft) {
				break
			}
			return err
		}
	}

	next := utils.RandomTimeThisHour().Add(time.Hour)
	err = w.db.Model(&user).Updates(map[string]interface{}{
		"spins_left":         models.DefaultSpinsAmount,
		"next_autospin_time": next,
	}).Error
	if err != nil {
		return err
	}

	log.Printf("✅ [Autospin] %s played %d spins, next at %s", user.AnonName, burst, next.Format("15:04:05"))
	return nil
}
