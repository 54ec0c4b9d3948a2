package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sparkline-ai/chat-backend/internal/billing"
	"github.com/sparkline-ai/chat-backend/internal/common"
	"github.com/sparkline-ai/chat-backend/internal/models"
)

func (h *Handler) SubscribePro(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	url, err := h.Billing.CreateProCheckout(c.Request.Context(), &user)
	if err != nil {
		log.Printf("[SubscribePro] checkout failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50010, "payment processing failed")
		return
	}
	common.OK(c, gin.H{"checkout_url": url})
}

func (h *Handler) SubscriptionStatus(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sub, err := h.Billing.Status(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if sub == nil {
		common.OK(c, gin.H{"tier": user.Tier, "status": "no_subscription"})
		return
	}
	common.OK(c, gin.H{
		"tier":               sub.Tier,
		"status":             sub.Status,
		"current_period_end": sub.CurrentPeriodEnd,
	})
}

// BillingWebhook verifies the provider signature before anything else; an
// unverifiable or malformed event never reaches the state machine.
func (h *Handler) BillingWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid payload")
		return
	}

	sig := c.GetHeader("Billing-Signature")
	if !billing.VerifySignature(h.Cfg.BillingWebhookSecret, body, sig) {
		common.Fail(c, http.StatusBadRequest, 40002, "invalid signature")
		return
	}

	var ev billing.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid payload")
		return
	}

	if err := h.Billing.HandleEvent(c.Request.Context(), &ev); err != nil {
		log.Printf("[BillingWebhook] event failed type=%s err=%v", ev.Type, err)
		common.Fail(c, http.StatusInternalServerError, 50011, "failed to process event")
		return
	}
	common.OK(c, gin.H{"status": "success"})
}
