// services/ledger_service_test.go
package services

import (
	"errors"
	"testing"

	"spin-tournament-engine/models"
)

func TestReferralCredit(t *testing.T) {
	tests := []struct {
		amount int
		want   int
	}{
		{0, 0},
		{3, 1}, // 0.15 rounds up
		{20, 1},
		{70, 4}, // 3.5 rounds up
	}
	for _, tt := range tests {
		if got := ReferralCredit(tt.amount); got != tt.want {
			t.Fatalf("ReferralCredit(%d) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestRecordSpinUpdatesQuotaAndStat(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db, nil)
	tournament := newTestTournament(t, db)

	user := newTestUser(t, db, 200, func(u *models.User) { u.WarningLevel = 2 })

	if err := ledger.RecordSpin(user); err != nil {
		t.Fatalf("RecordSpin: %v", err)
	}

	if user.SpinsLeft != models.DefaultSpinsAmount-1 || user.SpinsTotal != 1 {
		t.Fatalf("quota after spin = %d left / %d total", user.SpinsLeft, user.SpinsTotal)
	}
	if user.WarningLevel != 0 {
		t.Fatalf("warning level = %d, want reset to 0", user.WarningLevel)
	}
	if user.LastSpinTime == nil || user.NextRefillTime == nil {
		t.Fatal("spin and refill timestamps not set")
	}

	stat := loadStat(t, db, user.ID, tournament.ID)
	if stat.Spins != 1 || stat.Gems != 0 {
		t.Fatalf("stat = %d spins / %d gems, want 1/0", stat.Spins, stat.Gems)
	}
}

func TestRecordSpinKeepsRefillTimer(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db, nil)

	user := newTestUser(t, db, 201, nil)
	if err := ledger.RecordSpin(user); err != nil {
		t.Fatalf("first RecordSpin: %v", err)
	}
	armed := *user.NextRefillTime

	if err := ledger.RecordSpin(user); err != nil {
		t.Fatalf("second RecordSpin: %v", err)
	}
	if !user.NextRefillTime.Equal(armed) {
		t.Fatal("second spin re-armed an already armed refill timer")
	}
}

func TestRecordSpinRejectsEmptyQuota(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db, nil)

	user := newTestUser(t, db, 202, func(u *models.User) { u.SpinsLeft = 0 })

	if err := ledger.RecordSpin(user); !errors.Is(err, ErrNoSpinsLeft) {
		t.Fatalf("RecordSpin on empty quota = %v, want ErrNoSpinsLeft", err)
	}
	reloaded := reloadUser(t, db, user.ID)
	if reloaded.SpinsLeft != 0 || reloaded.SpinsTotal != 0 {
		t.Fatalf("rejected spin mutated user: %+v", reloaded)
	}
}

func TestCreditSpinRewardWithReferrer(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db, nil)
	tournament := newTestTournament(t, db)

	referrer := newTestUser(t, db, 300, nil)
	user := newTestUser(t, db, 301, func(u *models.User) { u.ReferrerID = &referrer.ID })

	if err := ledger.CreditSpinReward(user, 70, true); err != nil {
		t.Fatalf("CreditSpinReward: %v", err)
	}

	if user.GemsTotal != 70 || user.JackpotsTotal != 1 {
		t.Fatalf("user totals = %d gems / %d jackpots, want 70/1", user.GemsTotal, user.JackpotsTotal)
	}
	stat := loadStat(t, db, user.ID, tournament.ID)
	if stat.Gems != 70 || stat.Jackpots != 1 {
		t.Fatalf("user stat = %d gems / %d jackpots, want 70/1", stat.Gems, stat.Jackpots)
	}

	ref := reloadUser(t, db, referrer.ID)
	if ref.GemsTotal != 4 || ref.GemsReferral != 4 {
		t.Fatalf("referrer credit = %d total / %d referral, want 4/4", ref.GemsTotal, ref.GemsReferral)
	}
	if ref.JackpotsTotal != 0 {
		t.Fatalf("referrer jackpots = %d, jackpots must not cascade", ref.JackpotsTotal)
	}
	refStat := loadStat(t, db, referrer.ID, tournament.ID)
	if refStat.Gems != 4 || refStat.Jackpots != 0 {
		t.Fatalf("referrer stat = %d gems / %d jackpots, want 4/0", refStat.Gems, refStat.Jackpots)
	}
}

func TestCreditSpinRewardOneHopOnly(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db, nil)

	grand := newTestUser(t, db, 400, nil)
	parent := newTestUser(t, db, 401, func(u *models.User) { u.ReferrerID = &grand.ID })
	user := newTestUser(t, db, 402, func(u *models.User) { u.ReferrerID = &parent.ID })

	if err := ledger.CreditSpinReward(user, 20, false); err != nil {
		t.Fatalf("CreditSpinReward: %v", err)
	}

	if got := reloadUser(t, db, parent.ID).GemsTotal; got != 1 {
		t.Fatalf("parent credit = %d, want 1", got)
	}
	if got := reloadUser(t, db, grand.ID).GemsTotal; got != 0 {
		t.Fatalf("grandparent credit = %d, referral must not chain", got)
	}
}

func TestCreditSpinRewardZeroIsNoop(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db, nil)
	newTestTournament(t, db)

	user := newTestUser(t, db, 500, nil)
	if err := ledger.CreditSpinReward(user, 0, false); err != nil {
		t.Fatalf("CreditSpinReward: %v", err)
	}

	var count int64
	if err := db.Model(&models.UserTournamentStat{}).Count(&count).Error; err != nil {
		t.Fatalf("count stats: %v", err)
	}
	if count != 0 {
		t.Fatalf("zero reward created %d stat rows", count)
	}
}

func TestCreditSpinRewardWithoutTournament(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db, nil)

	user := newTestUser(t, db, 501, nil)
	if err := ledger.CreditSpinReward(user, 30, false); err != nil {
		t.Fatalf("CreditSpinReward: %v", err)
	}

	if user.GemsTotal != 30 {
		t.Fatalf("gems = %d, want 30", user.GemsTotal)
	}
	var count int64
	if err := db.Model(&models.UserTournamentStat{}).Count(&count).Error; err != nil {
		t.Fatalf("count stats: %v", err)
	}
	if count != 0 {
		t.Fatalf("idle period created %d stat rows", count)
	}
}
