package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sparkline-ai/chat-backend/internal/auth"
	"github.com/sparkline-ai/chat-backend/internal/common"
	"github.com/sparkline-ai/chat-backend/internal/models"
	"github.com/sparkline-ai/chat-backend/internal/otp"
)

var mobileRe = regexp.MustCompile(`^\+?\d{10,15}$`)

const tokenTTL = 24 * time.Hour

type signupReq struct {
	MobileNumber string `json:"mobile_number" binding:"required"`
	Password     string `json:"password" binding:"required"`
}

func userJSON(u *models.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"mobile_number": u.MobileNumber,
		"tier":          u.Tier,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if !mobileRe.MatchString(req.MobileNumber) {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid mobile number")
		return
	}
	if len(req.Password) < 6 || len(req.Password) > 50 {
		common.Fail(c, http.StatusBadRequest, 10003, "password must be 6-50 characters")
		return
	}

	var cnt int64
	if err := h.DB.Model(&models.User{}).Where("mobile_number = ?", req.MobileNumber).Count(&cnt).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if cnt > 0 {
		common.Fail(c, http.StatusConflict, 40901, "user with this mobile number already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	user := models.User{
		MobileNumber: req.MobileNumber,
		PasswordHash: hash,
		Tier:         models.TierBasic,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		common.Fail(c, http.StatusConflict, 40901, "user with this mobile number already exists")
		return
	}

	common.Created(c, userJSON(&user))
}

type sendOTPReq struct {
	MobileNumber string `json:"mobile_number" binding:"required"`
}

func (h *Handler) SendOTP(c *gin.Context) {
	var req sendOTPReq
	if err := c.ShouldBindJSON(&req); err != nil || !mobileRe.MatchString(req.MobileNumber) {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid mobile number")
		return
	}

	// SMS delivery is mocked: the code comes back in the response body.
	code, err := h.OTP.Generate(c.Request.Context(), req.MobileNumber)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to generate otp")
		return
	}
	common.OK(c, gin.H{"message": "OTP sent successfully (mocked)", "otp_code": code})
}

type verifyOTPReq struct {
	MobileNumber string `json:"mobile_number" binding:"required"`
	OTPCode      string `json:"otp_code" binding:"required"`
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyOTPReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.OTP.Verify(c.Request.Context(), req.MobileNumber, req.OTPCode); err != nil {
		if errors.Is(err, otp.ErrVerificationFailed) {
			common.Fail(c, http.StatusBadRequest, 40001, "invalid or expired OTP")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	var user models.User
	if err := h.DB.Where("mobile_number = ?", req.MobileNumber).First(&user).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20004, "failed to sign token")
		return
	}
	common.OK(c, gin.H{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req sendOTPReq
	if err := c.ShouldBindJSON(&req); err != nil || !mobileRe.MatchString(req.MobileNumber) {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid mobile number")
		return
	}
	code, err := h.OTP.Generate(c.Request.Context(), req.MobileNumber)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to generate otp")
		return
	}
	common.OK(c, gin.H{"message": "OTP sent for password reset (mocked)", "otp_code": code})
}

type resetPasswordReq struct {
	MobileNumber string `json:"mobile_number" binding:"required"`
	OTPCode      string `json:"otp_code" binding:"required"`
	NewPassword  string `json:"new_password" binding:"required"`
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(req.NewPassword) < 6 || len(req.NewPassword) > 50 {
		common.Fail(c, http.StatusBadRequest, 10003, "password must be 6-50 characters")
		return
	}

	if err := h.OTP.Verify(c.Request.Context(), req.MobileNumber, req.OTPCode); err != nil {
		if errors.Is(err, otp.ErrVerificationFailed) {
			common.Fail(c, http.StatusBadRequest, 40001, "invalid or expired OTP")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	var user models.User
	if err := h.DB.Where("mobile_number = ?", req.MobileNumber).First(&user).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}
	if err := h.DB.Model(&user).Update("password_hash", hash).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, userJSON(&user))
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(req.NewPassword) < 6 || len(req.NewPassword) > 50 {
		common.Fail(c, http.StatusBadRequest, 10003, "password must be 6-50 characters")
		return
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.OldPassword) {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}
	if err := h.DB.Model(&user).Update("password_hash", hash).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, userJSON(&user))
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, userJSON(&user))
}
