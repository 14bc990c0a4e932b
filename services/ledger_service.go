// services/ledger_service.go
package services

import (
	"errors"
	"math"
	"time"

	"spin-tournament-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService applies all reward and quota deltas. Every public method
// commits as one transaction so concurrent plays and scheduled jobs never
// interleave partial writes on the same user row.
type LedgerService struct {
	DB    *gorm.DB
	Cache *LeaderboardCache
}

func NewLedgerService(db *gorm.DB, cache *LeaderboardCache) *LedgerService {
	return &LedgerService{DB: db, Cache: cache}
}

// ReferralCredit is the one-hop referrer share of a reward, rounded up.
func ReferralCredit(amount int) int {
	return int(math.Ceil(float64(amount) * models.ReferralGemsRate))
}

// lockForUpdate takes a row lock where the dialect supports it. SQLite (used
// in tests) serializes writers on its own and rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// activeTournament returns the single active tournament, or nil when idle.
func activeTournament(tx *gorm.DB) (*models.Tournament, error) {
	var t models.Tournament
	err := tx.Where("is_active = ?", true).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// getOrCreateStat lazily creates the per-(user, tournament) accumulator on
// first touch. The composite primary key keeps the pair unique.
func getOrCreateStat(tx *gorm.DB, userID, tournamentID string) (*models.UserTournamentStat, error) {
	var stat models.UserTournamentStat
	err := tx.Where("user_id = ? AND tournament_id = ?", userID, tournamentID).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stat = models.UserTournamentStat{UserID: userID, TournamentID: tournamentID}
		if err := tx.Create(&stat).Error; err != nil {
			return nil, err
		}
		return &stat, nil
	}
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// RecordSpin consumes one spin: decrements the quota, stamps play time,
// resets the warning ladder and arms the refill timer if it wasn't already.
// The quota can never go negative; an exhausted user is rejected here.
func (s *LedgerService) RecordSpin(user *models.User) error {
	now := time.Now().UTC()

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var locked models.User
		if err := lockForUpdate(tx).First(&locked, "id = ?", user.ID).Error; err != nil {
			return err
		}
		if locked.SpinsLeft <= 0 {
			return ErrNoSpinsLeft
		}

		locked.SpinsTotal++
		locked.SpinsLeft--
		locked.WarningLevel = 0
		locked.LastSpinTime = &now
		if locked.NextRefillTime == nil {
			next := now.Add(models.SpinRefillDelay)
			locked.NextRefillTime = &next
		}
		if err := tx.Save(&locked).Error; err != nil {
			return err
		}

		current, err := activeTournament(tx)
		if err != nil {
			return err
		}
		if current != nil {
			stat, err := getOrCreateStat(tx, locked.ID, current.ID)
			if err != nil {
				return err
			}
			stat.Spins++
			if err := tx.Save(stat).Error; err != nil {
				return err
			}
		}

		*user = locked
		return nil
	})
}

// CreditSpinReward adds a spin reward to the user's lifetime totals and, if
// a tournament is running, to their tournament accumulator. The referrer, if
// any, gets ceil(reward * rate), one hop only. A missing referrer row is
// treated as no relationship at all.
func (s *LedgerService) CreditSpinReward(user *models.User, reward int, isJackpot bool) error {
	if reward == 0 && !isJackpot {
		return nil
	}

	var tournamentID string
	referralDelta := 0
	var referrerID string

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var locked models.User
		if err := lockForUpdate(tx).First(&locked, "id = ?", user.ID).Error; err != nil {
			return err
		}

		locked.GemsTotal += reward
		if isJackpot {
			locked.JackpotsTotal++
		}
		if err := tx.Save(&locked).Error; err != nil {
			return err
		}

		current, err := activeTournament(tx)
		if err != nil {
			return err
		}
		if current != nil {
			tournamentID = current.ID
			stat, err := getOrCreateStat(tx, locked.ID, current.ID)
			if err != nil {
				return err
			}
			stat.Gems += reward
			if isJackpot {
				stat.Jackpots++
			}
			if err := tx.Save(stat).Error; err != nil {
				return err
			}
		}

		if locked.ReferrerID != nil {
			var referrer models.User
			err := lockForUpdate(tx).First(&referrer, "id = ?", *locked.ReferrerID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// dangling reference: proceed without it
				*user = locked
				return nil
			}
			if err != nil {
				return err
			}

			credit := ReferralCredit(reward)
			referrer.GemsTotal += credit
			referrer.GemsReferral += credit
			if err := tx.Save(&referrer).Error; err != nil {
				return err
			}

			if current != nil {
				refStat, err := getOrCreateStat(tx, referrer.ID, current.ID)
				if err != nil {
					return err
				}
				refStat.Gems += credit
				if err := tx.Save(refStat).Error; err != nil {
					return err
				}
			}

			referralDelta = credit
			referrerID = referrer.ID
		}

		*user = locked
		return nil
	})
	if err != nil {
		return err
	}

	if tournamentID != "" {
		s.Cache.BumpScore(tournamentID, user.ID, reward)
		if referralDelta > 0 {
			s.Cache.BumpScore(tournamentID, referrerID, referralDelta)
		}
	}
	return nil
}
