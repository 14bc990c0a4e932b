// services/testutil_test.go
package services

import (
	"testing"
	"time"

	"spin-tournament-engine/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory store. The pool is capped at one
// connection because each in-memory SQLite connection is its own database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Tournament{}, &models.UserTournamentStat{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	if err := EnsureIndexes(db); err != nil {
		t.Fatalf("create test indexes: %v", err)
	}
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, chatID int64, mutate func(*models.User)) *models.User {
	t.Helper()
	user := &models.User{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		Username:   "player",
		AnonName:   "SwiftFox",
		SpinsLeft:  models.DefaultSpinsAmount,
		SpinsLimit: models.DefaultSpinsAmount,
	}
	if mutate != nil {
		mutate(user)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func newTestTournament(t *testing.T, db *gorm.DB) *models.Tournament {
	t.Helper()
	start := mondayOf(time.Now().UTC())
	tournament := &models.Tournament{
		ID:        uuid.NewString(),
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
		IsActive:  true,
	}
	if err := db.Create(tournament).Error; err != nil {
		t.Fatalf("create test tournament: %v", err)
	}
	return tournament
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("reload user %s: %v", id, err)
	}
	return &user
}

func loadStat(t *testing.T, db *gorm.DB, userID, tournamentID string) *models.UserTournamentStat {
	t.Helper()
	var stat models.UserTournamentStat
	if err := db.Where("user_id = ? AND tournament_id = ?", userID, tournamentID).First(&stat).Error; err != nil {
		t.Fatalf("load stat for %s: %v", userID, err)
	}
	return &stat
}

// recordingNotifier captures deliveries so tests can assert on them.
type recordingNotifier struct {
	userTexts  map[int64][]string
	groupTexts []string
	deleted    []int64
	nextID     int64
	subsBonus  int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{userTexts: make(map[int64][]string)}
}

func (n *recordingNotifier) SendToUser(chatID int64, text string) (*Message, error) {
	n.userTexts[chatID] = append(n.userTexts[chatID], text)
	n.nextID++
	return &Message{ChatID: chatID, MessageID: n.nextID}, nil
}

func (n *recordingNotifier) SendToGroupTopic(topicID int64, text string) (*Message, error) {
	n.groupTexts = append(n.groupTexts, text)
	n.nextID++
	return &Message{ChatID: -1, MessageID: n.nextID}, nil
}

func (n *recordingNotifier) DeleteMessage(chatID, messageID int64) error {
	n.deleted = append(n.deleted, messageID)
	return nil
}

func (n *recordingNotifier) Pin(msg *Message) error { return nil }

func (n *recordingNotifier) CrossPost(msg *Message) (*Message, error) {
	n.nextID++
	return &Message{ChatID: -1, MessageID: n.nextID}, nil
}

func (n *recordingNotifier) SubscriptionSpinsBonus(chatID int64) int { return n.subsBonus }

// queueRand replays scripted values; exhausted queues fall back to zero.
type queueRand struct {
	ints   []int
	floats []float64
}

func (r *queueRand) Intn(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *queueRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 1
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}
