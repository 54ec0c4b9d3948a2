package quota

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sparkline-ai/chat-backend/internal/models"
)

// BasicDailyPromptLimit is the number of prompts a basic-tier user may send
// per UTC calendar day. Pro users are not limited.
const BasicDailyPromptLimit = 5

var ErrDailyLimitExceeded = errors.New("daily prompt limit exceeded")

// UsageRecord counts admitted prompts per user per UTC day. One row per
// (user, day), enforced by the unique index; creation goes through an upsert
// so concurrent first access cannot produce duplicates.
type UsageRecord struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	UserID      uint64 `gorm:"not null;index:uniq_usage_user_day,unique,priority:1"`
	Day         string `gorm:"type:varchar(10);not null;index:uniq_usage_user_day,unique,priority:2"`
	PromptCount int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (UsageRecord) TableName() string { return "usage_records" }

// Today returns the current UTC calendar day key.
func Today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// Ledger is the usage counter. It knows nothing about limits; the Limiter
// owns limit semantics.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// GetOrCreate returns the record for (userID, day), creating a zero-count row
// if absent. Safe under concurrent first access: the insert is
// on-conflict-do-nothing against the unique (user, day) index.
func (l *Ledger) GetOrCreate(ctx context.Context, userID uint64, day string) (*UsageRecord, error) {
	rec := UsageRecord{UserID: userID, Day: day}
	if err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error; err != nil {
		return nil, err
	}
	var out UsageRecord
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// IncrementIfBelow adds one to the count only while it is still below limit,
// as a single conditional UPDATE. Returns false when the row was already at
// or above the limit. This is the admission primitive: check and increment
// cannot be interleaved by a concurrent request.
func (l *Ledger) IncrementIfBelow(ctx context.Context, userID uint64, day string, limit int) (bool, error) {
	res := l.db.WithContext(ctx).Model(&UsageRecord{}).
		Where("user_id = ? AND day = ? AND prompt_count < ?", userID, day, limit).
		Update("prompt_count", gorm.Expr("prompt_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Limiter admits or rejects prompt requests based on the user's tier and
// today's usage.
type Limiter struct {
	db     *gorm.DB
	ledger *Ledger
	limit  int
}

func NewLimiter(db *gorm.DB, ledger *Ledger) *Limiter {
	return &Limiter{db: db, ledger: ledger, limit: BasicDailyPromptLimit}
}

// Admit decides whether userID may send a prompt right now. Pro tier is
// always admitted and not counted. Basic tier consumes one unit of today's
// quota on admission only; a rejected request never increments.
func (lim *Limiter) Admit(ctx context.Context, userID uint64) error {
	var user models.User
	if err := lim.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return err
	}
	if user.Tier == models.TierPro {
		return nil
	}

	day := Today()
	if _, err := lim.ledger.GetOrCreate(ctx, userID, day); err != nil {
		return err
	}
	admitted, err := lim.ledger.IncrementIfBelow(ctx, userID, day, lim.limit)
	if err != nil {
		return err
	}
	if !admitted {
		return ErrDailyLimitExceeded
	}
	return nil
}
