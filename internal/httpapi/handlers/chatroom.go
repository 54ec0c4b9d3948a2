package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sparkline-ai/chat-backend/internal/chat"
	"github.com/sparkline-ai/chat-backend/internal/common"
	"github.com/sparkline-ai/chat-backend/internal/quota"
)

type createChatroomReq struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) CreateChatroom(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createChatroomReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || len(req.Name) > 100 {
		common.Fail(c, http.StatusBadRequest, 10001, "name required (max 100 chars)")
		return
	}

	room, err := h.ChatSvc.CreateChatroom(c.Request.Context(), uid, req.Name)
	if err != nil {
		log.Printf("[CreateChatroom] failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create chatroom")
		return
	}
	common.Created(c, room)
}

func (h *Handler) ListChatrooms(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	rooms, err := h.ChatSvc.ListChatrooms(c.Request.Context(), uid)
	if err != nil {
		log.Printf("[ListChatrooms] failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list chatrooms")
		return
	}
	common.OK(c, gin.H{"chatrooms": rooms})
}

func (h *Handler) GetChatroom(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	roomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid chatroom id")
		return
	}

	room, err := h.ChatSvc.GetChatroom(c.Request.Context(), uid, roomID)
	if err != nil {
		if errors.Is(err, chat.ErrChatroomNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "chatroom not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to load chatroom")
		return
	}
	common.OK(c, room)
}

type sendMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	roomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid chatroom id")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
		common.Fail(c, http.StatusBadRequest, 10001, "content required")
		return
	}

	// ownership first so an unknown chatroom has no side effects, then quota,
	// then persist + dispatch
	if _, err := h.ChatSvc.GetChatroom(c.Request.Context(), uid, roomID); err != nil {
		if errors.Is(err, chat.ErrChatroomNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "chatroom not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to load chatroom")
		return
	}

	if err := h.Limiter.Admit(c.Request.Context(), uid); err != nil {
		if errors.Is(err, quota.ErrDailyLimitExceeded) {
			common.Fail(c, http.StatusTooManyRequests, 42901,
				"Daily message limit exceeded for your Basic tier. Upgrade to Pro for more.")
			return
		}
		log.Printf("[SendMessage] admit failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50004, "internal error")
		return
	}

	msg, err := h.ChatSvc.SendMessage(c.Request.Context(), uid, roomID, req.Content)
	if err != nil {
		if errors.Is(err, chat.ErrChatroomNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "chatroom not found")
			return
		}
		log.Printf("[SendMessage] failed uid=%d chatroom=%d err=%v", uid, roomID, err)
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to send message")
		return
	}

	common.Created(c, msg)
}
