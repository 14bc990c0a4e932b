// services/export_service.go
package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"strconv"
	"time"

	"spin-tournament-engine/models"
	"spin-tournament-engine/utils"

	"gorm.io/gorm"
)

// ExportService snapshots player data to the R2 object store as CSV so the
// operations side can read it without touching the database.
type ExportService struct {
	DB *gorm.DB
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{DB: db}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// UnloadUsers dumps all real users to exports/users.csv. Runs every 10
// minutes; each run overwrites the previous snapshot.
func (s *ExportService) UnloadUsers() error {
	var users []models.User
	if err := s.DB.Where("is_fake = ?", false).Order("created_at ASC").Find(&users).Error; err != nil {
		return fmt.Errorf("load users for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"chat_id", "username", "anon_name", "language", "email", "adv_source",
		"created_at", "gems_total", "gems_referral", "spins_total",
		"jackpots_total", "tournament_wins", "tournament_king_wins",
		"max_tournament_king_wins", "last_spin_time", "is_banned",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, u := range users {
		row := []string{
			strconv.FormatInt(u.ChatID, 10),
			u.Username,
			u.AnonName,
			u.Language,
			u.Email,
			u.AdvSource,
			u.CreatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(u.GemsTotal),
			strconv.Itoa(u.GemsReferral),
			strconv.Itoa(u.SpinsTotal),
			strconv.Itoa(u.JackpotsTotal),
			strconv.Itoa(u.TournamentWins),
			strconv.Itoa(u.TournamentKingWins),
			strconv.Itoa(u.MaxTournamentKingWins),
			formatTimePtr(u.LastSpinTime),
			strconv.FormatBool(u.IsBanned),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}

	url, err := utils.UploadBytesToR2(buf.Bytes(), "exports/users.csv", "text/csv")
	if err != nil {
		return fmt.Errorf("upload user export: %w", err)
	}
	log.Printf("✅ [Export] %d users unloaded to %s", len(users), url)
	return nil
}

// ExportWinner appends a claimed-prize record under exports/winners/ so each
// claim leaves its own object.
func (s *ExportService) ExportWinner(user *models.User, tournament *models.Tournament, stat *models.UserTournamentStat) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"tournament_id", "tournament_end", "chat_id", "anon_name", "email", "gems", "claimed_at"},
		{
			tournament.ID,
			tournament.EndDate.UTC().Format(time.RFC3339),
			strconv.FormatInt(user.ChatID, 10),
			user.AnonName,
			user.Email,
			strconv.Itoa(stat.Gems),
			time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write winner export: %w", err)
	}

	key := fmt.Sprintf("exports/winners/%s-%d.csv", tournament.ID, user.ChatID)
	if _, err := utils.UploadBytesToR2(buf.Bytes(), key, "text/csv"); err != nil {
		return fmt.Errorf("upload winner export: %w", err)
	}
	return nil
}
