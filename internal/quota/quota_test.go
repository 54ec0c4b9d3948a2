package quota

import (
	"context"
	"errors"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/sparkline-ai/chat-backend/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// sqlite cannot take concurrent writers
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &UsageRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, tier models.Tier) uint64 {
	t.Helper()
	// mobile numbers stay unique across tests sharing the cache
	mobile := "+14155550000"
	if tier == models.TierPro {
		mobile = "+14155550001"
	}
	u := models.User{MobileNumber: mobile, Tier: tier}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func TestAdmit_BasicStopsAtDailyLimit(t *testing.T) {
	db := openTestDB(t)
	lim := NewLimiter(db, NewLedger(db))

	userID := seedUser(t, db, models.TierBasic)

	for i := 0; i < BasicDailyPromptLimit; i++ {
		if err := lim.Admit(context.Background(), userID); err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
	}

	err := lim.Admit(context.Background(), userID)
	if !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("expected ErrDailyLimitExceeded, got %v", err)
	}

	// a rejected request must not bump the counter
	var rec UsageRecord
	if err := db.Where("user_id = ? AND day = ?", userID, Today()).First(&rec).Error; err != nil {
		t.Fatalf("load usage record: %v", err)
	}
	if rec.PromptCount != BasicDailyPromptLimit {
		t.Fatalf("expected count %d, got %d", BasicDailyPromptLimit, rec.PromptCount)
	}
}

func TestAdmit_ProIsUnlimitedAndUncounted(t *testing.T) {
	db := openTestDB(t)
	lim := NewLimiter(db, NewLedger(db))

	userID := seedUser(t, db, models.TierPro)

	for i := 0; i < BasicDailyPromptLimit*3; i++ {
		if err := lim.Admit(context.Background(), userID); err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
	}

	var count int64
	db.Model(&UsageRecord{}).Where("user_id = ?", userID).Count(&count)
	if count != 0 {
		t.Fatalf("expected no usage rows for pro user, got %d", count)
	}
}

func TestAdmit_ConcurrentRequestsNeverOvershoot(t *testing.T) {
	db := openTestDB(t)
	lim := NewLimiter(db, NewLedger(db))

	u := models.User{MobileNumber: "+14155550002", Tier: models.TierBasic}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	attempts := BasicDailyPromptLimit + 5

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- lim.Admit(context.Background(), u.ID)
		}()
	}
	wg.Wait()
	close(results)

	admitted, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, ErrDailyLimitExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if admitted != BasicDailyPromptLimit {
		t.Fatalf("expected %d admissions, got %d", BasicDailyPromptLimit, admitted)
	}
	if rejected != attempts-BasicDailyPromptLimit {
		t.Fatalf("expected %d rejections, got %d", attempts-BasicDailyPromptLimit, rejected)
	}

	var rec UsageRecord
	if err := db.Where("user_id = ? AND day = ?", u.ID, Today()).First(&rec).Error; err != nil {
		t.Fatalf("load usage record: %v", err)
	}
	if rec.PromptCount != BasicDailyPromptLimit {
		t.Fatalf("expected count %d, got %d", BasicDailyPromptLimit, rec.PromptCount)
	}
}

func TestGetOrCreate_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedger(db)

	const userID, day = 777, "2026-08-29"

	first, err := ledger.GetOrCreate(context.Background(), userID, day)
	if err != nil {
		t.Fatalf("first get-or-create: %v", err)
	}
	second, err := ledger.GetOrCreate(context.Background(), userID, day)
	if err != nil {
		t.Fatalf("second get-or-create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same row, got ids %d and %d", first.ID, second.ID)
	}

	var count int64
	db.Model(&UsageRecord{}).Where("user_id = ? AND day = ?", userID, day).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}
