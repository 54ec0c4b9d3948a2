package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sparkline-ai/chat-backend/internal/billing"
	"github.com/sparkline-ai/chat-backend/internal/chat"
	"github.com/sparkline-ai/chat-backend/internal/common"
	"github.com/sparkline-ai/chat-backend/internal/config"
	"github.com/sparkline-ai/chat-backend/internal/httpapi/middleware"
	"github.com/sparkline-ai/chat-backend/internal/otp"
	"github.com/sparkline-ai/chat-backend/internal/quota"
)

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	ChatSvc *chat.Service
	Limiter *quota.Limiter
	OTP     *otp.Service
	Billing *billing.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, chatSvc *chat.Service, limiter *quota.Limiter, otpSvc *otp.Service, billingSvc *billing.Service) *Handler {
	return &Handler{
		DB:      db,
		Cfg:     cfg,
		ChatSvc: chatSvc,
		Limiter: limiter,
		OTP:     otpSvc,
		Billing: billingSvc,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
