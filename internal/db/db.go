package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/sparkline-ai/chat-backend/internal/billing"
	"github.com/sparkline-ai/chat-backend/internal/chat"
	"github.com/sparkline-ai/chat-backend/internal/models"
	"github.com/sparkline-ai/chat-backend/internal/otp"
	"github.com/sparkline-ai/chat-backend/internal/quota"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

// Migrate keeps the schema in sync at process start.
func Migrate(gdb *gorm.DB) {
	if err := gdb.AutoMigrate(
		&models.User{},
		&chat.Chatroom{},
		&chat.Message{},
		&chat.Job{},
		&quota.UsageRecord{},
		&otp.OneTimeCode{},
		&billing.Subscription{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
}
