package models

import "time"

type Tier string

const (
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MobileNumber string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"mobile_number"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	Tier         Tier      `gorm:"type:varchar(16);not null;default:basic" json:"tier"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
