package models

import (
	"time"
)

// User is a player account. Created on first interaction, never deleted.
// Synthetic players (IsFake) share the same row shape and economy rules but
// are excluded from notifications, refills and exports.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ChatID    int64     `json:"chat_id" gorm:"uniqueIndex"`
	Username  string    `json:"username" gorm:"not null"`
	Language  string    `json:"language" gorm:"default:'en'"`
	AnonName  string    `json:"anon_name" gorm:"not null"`
	Email     string    `json:"email,omitempty"`
	AdvSource string    `json:"adv_source,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Lifetime totals
	GemsTotal     int `json:"gems_total" gorm:"default:0"`
	GemsReferral  int `json:"gems_referral" gorm:"default:0"`
	SpinsTotal    int `json:"spins_total" gorm:"default:0"`
	JackpotsTotal int `json:"jackpots_total" gorm:"default:0"`

	// Quota state. SpinsLeft may transiently exceed the effective limit
	// (referral grants land on top) but must never go negative.
	SpinsLeft      int        `json:"spins_left" gorm:"default:10"`
	SpinsLimit     int        `json:"spins_limit" gorm:"default:10"`
	LastSpinTime   *time.Time `json:"last_spin_time,omitempty"`
	NextRefillTime *time.Time `json:"next_refill_time,omitempty"`

	// Inactivity warning ladder
	WarningLevel         int   `json:"warning_level" gorm:"default:0"`
	LastWarningMessageID int64 `json:"last_warning_message_id" gorm:"default:0"`

	// Tournament titles
	TournamentWins             int  `json:"tournament_wins" gorm:"default:0"`
	TournamentKingWins         int  `json:"tournament_king_wins" gorm:"default:0"`
	MaxTournamentKingWins      int  `json:"max_tournament_king_wins" gorm:"default:0"`
	IsPreviousTournamentWinner bool `json:"is_previous_tournament_winner" gorm:"default:false"`

	IsFake   bool `json:"is_fake" gorm:"default:false;index"`
	IsActive bool `json:"is_active" gorm:"default:false"`
	IsMuted  bool `json:"is_muted" gorm:"default:false"`
	IsBanned bool `json:"is_banned" gorm:"default:false"`

	// Synthetic players only: when the autospin worker should play for them.
	NextAutospinTime *time.Time `json:"next_autospin_time,omitempty"`

	// Single-level referral: a plain foreign key, resolved by lookup. The
	// Ledger enforces one-hop semantics; there is no chain traversal.
	ReferrerID *string `json:"referrer_id,omitempty" gorm:"index"`
}

// DisplayName is the public handle used in group announcements.
func (u *User) DisplayName() string {
	if u.AnonName != "" {
		return u.AnonName
	}
	return u.Username
}
