package models

import (
	"time"
)

// Tournament is one weekly competitive cycle (Monday–Sunday). At most one
// tournament is active system-wide; a partial unique index on is_active
// backs that up at the store level.
type Tournament struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date" gorm:"not null"`
	IsActive  bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Stats []UserTournamentStat `json:"stats,omitempty" gorm:"foreignKey:TournamentID"`
}

// UserTournamentStat accumulates one user's activity within one tournament.
// Created lazily on first touch, unique per (user, tournament); CreatedAt
// doubles as the deterministic leaderboard tie-break (first reached wins).
type UserTournamentStat struct {
	UserID       string    `json:"user_id" gorm:"primaryKey"`
	TournamentID string    `json:"tournament_id" gorm:"primaryKey"`
	Gems         int       `json:"gems" gorm:"default:0"`
	Spins        int       `json:"spins" gorm:"default:0"`
	Jackpots     int       `json:"jackpots" gorm:"default:0"`
	PrizeClaimed bool      `json:"prize_claimed" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
