package billing

import (
	"time"

	"github.com/sparkline-ai/chat-backend/internal/models"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusCanceled = "canceled"
	StatusTrial    = "trial"
)

// Subscription mirrors the billing provider's view of a user. Mutated only
// by webhook events and checkout bootstrap; one row per user.
type Subscription struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID uint64 `gorm:"uniqueIndex;not null" json:"user_id"`

	CustomerID     *string `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	SubscriptionID *string `gorm:"type:varchar(64);uniqueIndex" json:"-"`

	Tier             models.Tier `gorm:"type:varchar(16);not null;default:basic" json:"tier"`
	Status           string      `gorm:"type:varchar(16);not null;default:active" json:"status"`
	CurrentPeriodEnd *time.Time  `json:"current_period_end,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Subscription) TableName() string { return "subscriptions" }
