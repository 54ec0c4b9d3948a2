package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sparkline-ai/chat-backend/internal/common"
	"github.com/sparkline-ai/chat-backend/internal/config"
	"github.com/sparkline-ai/chat-backend/internal/httpapi/handlers"
	"github.com/sparkline-ai/chat-backend/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// auth (public)
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/send-otp", h.SendOTP)
	r.POST("/auth/verify-otp", h.VerifyOTP)
	r.POST("/auth/forgot-password", h.ForgotPassword)
	r.POST("/auth/reset-password", h.ResetPassword)

	// billing webhook (signature-verified, not JWT)
	r.POST("/webhook/billing", h.BillingWebhook)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.POST("/auth/change-password", h.ChangePassword)
	authGroup.GET("/user/me", h.Me)

	// chat (JWT required)
	authGroup.POST("/chatroom", h.CreateChatroom)
	authGroup.GET("/chatroom", h.ListChatrooms)
	authGroup.GET("/chatroom/:id", h.GetChatroom)
	authGroup.POST("/chatroom/:id/message", h.SendMessage)

	// billing (JWT required)
	authGroup.POST("/subscribe/pro", h.SubscribePro)
	authGroup.GET("/subscription/status", h.SubscriptionStatus)

	return r
}
