package main

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sparkline-ai/chat-backend/internal/billing"
	"github.com/sparkline-ai/chat-backend/internal/chat"
	"github.com/sparkline-ai/chat-backend/internal/config"
	"github.com/sparkline-ai/chat-backend/internal/db"
	"github.com/sparkline-ai/chat-backend/internal/httpapi"
	"github.com/sparkline-ai/chat-backend/internal/httpapi/handlers"
	"github.com/sparkline-ai/chat-backend/internal/otp"
	"github.com/sparkline-ai/chat-backend/internal/quota"
	"github.com/sparkline-ai/chat-backend/internal/store/rabbitmq"
	"github.com/sparkline-ai/chat-backend/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	db.Migrate(gdb)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	cache, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	cancel()
	if err != nil {
		// the list cache is an optimization, not a dependency
		log.Printf("redis unavailable, chatroom list cache disabled: %v", err)
		cache = nil
	}

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit connect: %v", err)
	}
	defer publisher.Close()

	repo := chat.NewRepo(gdb)

	var listCache chat.ListCache
	if cache != nil {
		listCache = cache
	}
	chatSvc := chat.NewService(repo, publisher, listCache)

	limiter := quota.NewLimiter(gdb, quota.NewLedger(gdb))

	otpSvc := otp.NewService(gdb)

	billingClient := billing.NewClient(cfg.BillingAPIBase, cfg.BillingSecretKey)
	billingSvc := billing.NewService(gdb, billingClient, cfg.BillingProPriceID, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)

	h := handlers.NewHandler(gdb, cfg, chatSvc, limiter, otpSvc, billingSvc)
	r := httpapi.NewRouter(cfg, h)

	c := cron.New()
	if _, err := c.AddFunc("@hourly", func() {
		n, err := otpSvc.PurgeExpired(context.Background())
		if err != nil {
			log.Printf("otp purge: %v", err)
			return
		}
		if n > 0 {
			log.Printf("otp purge removed=%d", n)
		}
	}); err != nil {
		log.Fatalf("cron: %v", err)
	}
	c.Start()
	defer c.Stop()

	log.Printf("api listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
